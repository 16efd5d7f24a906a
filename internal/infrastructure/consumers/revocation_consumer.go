// Package consumers contains the Kafka consumers run alongside the HTTP server.
package consumers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/logger"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RevocationConsumer applies revocations published by other instances to the
// local status cache. Every instance reads the whole topic under its own
// consumer group.
type RevocationConsumer struct {
	reader     messageReader
	oracle     service.StatusOracle
	instanceID string
	logger     logger.Logger
	retryDelay time.Duration
}

// NewRevocationConsumer creates a consumer for cfg.RevocationTopic.
func NewRevocationConsumer(cfg config.KafkaConfig, instanceID string, oracle service.StatusOracle, log logger.Logger) *RevocationConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.RevocationTopic,
		GroupID:     constants.RevocationConsumerGroupPrefix + instanceID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     time.Second,
	})
	return newRevocationConsumer(reader, instanceID, oracle, log)
}

func newRevocationConsumer(r messageReader, instanceID string, oracle service.StatusOracle, log logger.Logger) *RevocationConsumer {
	return &RevocationConsumer{
		reader:     r,
		oracle:     oracle,
		instanceID: instanceID,
		logger:     log.WithComponent("revocation_consumer"),
		retryDelay: time.Second,
	}
}

// Start consumes until ctx is cancelled. It blocks; run it in a goroutine.
func (c *RevocationConsumer) Start(ctx context.Context) {
	c.logger.Info(ctx, "starting revocation consumer", logger.String("instance_id", c.instanceID))
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				c.logger.Info(ctx, "stopping revocation consumer")
				return
			}
			c.logger.Error(ctx, "failed to fetch revocation event", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}

		var event models.RevocationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error(ctx, "failed to unmarshal revocation event", err,
				logger.Int64("offset", msg.Offset),
				logger.Int("partition", msg.Partition),
			)
		} else if err := c.handleEvent(ctx, event); err != nil {
			c.logger.Warn(ctx, "discarding invalid revocation event",
				logger.Error(err),
				logger.Int64("offset", msg.Offset),
			)
		}
		// Cache invalidation is best effort and idempotent, so every message
		// is committed, including ones that could not be applied.
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error(ctx, "failed to commit revocation event", err, logger.Int64("offset", msg.Offset))
		}
	}
}

// Close releases the reader.
func (c *RevocationConsumer) Close() error {
	return c.reader.Close()
}

func (c *RevocationConsumer) handleEvent(ctx context.Context, event models.RevocationEvent) error {
	if event.OriginInstance == c.instanceID {
		return nil
	}
	principalID, err := uuid.Parse(event.PrincipalID)
	if err != nil {
		return &consumerError{message: "invalid principal_id", underlying: err}
	}

	switch event.Type {
	case constants.RevocationTypeToken:
		tokenID, err := uuid.Parse(event.TokenID)
		if err != nil {
			return &consumerError{message: "invalid token_id", underlying: err}
		}
		c.oracle.Invalidate(tokenID, principalID)
	case constants.RevocationTypePrincipal:
		c.oracle.InvalidateAllForPrincipal(principalID)
	default:
		return &consumerError{message: "unknown revocation type " + string(event.Type)}
	}

	c.logger.Debug(ctx, "applied remote revocation",
		logger.String("type", string(event.Type)),
		logger.String("principal_id", event.PrincipalID),
		logger.String("origin_instance", event.OriginInstance),
	)
	return nil
}

type consumerError struct {
	message    string
	underlying error
}

func (e *consumerError) Error() string {
	if e.underlying != nil {
		return e.message + ": " + e.underlying.Error()
	}
	return e.message
}

func (e *consumerError) Unwrap() error { return e.underlying }
