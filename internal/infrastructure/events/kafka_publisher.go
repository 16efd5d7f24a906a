// Package events publishes revocation events so every instance can drop its
// cached session status.
package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// HeaderOriginInstance names the Kafka header carrying the publishing instance.
const HeaderOriginInstance = "origin-instance"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes revocation events to the revocation topic, keyed by
// principal so events for one principal stay ordered.
type KafkaPublisher struct {
	writer     messageWriter
	instanceID string
	logger     logger.Logger
}

var _ service.RevocationPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates the publisher for cfg.RevocationTopic.
func NewKafkaPublisher(cfg config.KafkaConfig, instanceID string, log logger.Logger) (*KafkaPublisher, error) {
	if !cfg.Enabled() {
		return nil, errors.ErrInvalidConfig.WithDetail("kafka.brokers", "must not be empty")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.RevocationTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchSize:    1,
	}
	return newKafkaPublisher(writer, instanceID, log), nil
}

func newKafkaPublisher(w messageWriter, instanceID string, log logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:     w,
		instanceID: instanceID,
		logger:     log.WithComponent("revocation_publisher"),
	}
}

// Publish stamps the event with this instance's id and writes it.
func (p *KafkaPublisher) Publish(ctx context.Context, event models.RevocationEvent) error {
	event.OriginInstance = p.instanceID
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal revocation event", err)
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.PrincipalID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderOriginInstance, Value: []byte(p.instanceID)},
		},
		Time: event.OccurredAt,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to write revocation event", err,
			logger.String("type", string(event.Type)),
			logger.String("principal_id", event.PrincipalID),
		)
		return err
	}
	p.logger.Debug(ctx, "revocation event published",
		logger.String("type", string(event.Type)),
		logger.String("principal_id", event.PrincipalID),
		logger.String("token_id", event.TokenID),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher for single-instance deployments.
func NewNoopPublisher() service.RevocationPublisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, models.RevocationEvent) error { return nil }
