package consumers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/internal/domain/service/mocks"
	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// fakeReader hands out queued messages and blocks until ctx ends once they
// run out.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func message(t *testing.T, offset int64, event models.RevocationEvent) kafka.Message {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestRevocationConsumer_HandleEvent(t *testing.T) {
	tokenID, principalID := uuid.New(), uuid.New()

	t.Run("token revocation", func(t *testing.T) {
		oracle := new(mocks.MockStatusOracle)
		oracle.On("Invalidate", tokenID, principalID).Once()
		c := newRevocationConsumer(&fakeReader{}, "instance-a", oracle, logger.NewNoopLogger())

		err := c.handleEvent(context.Background(), models.RevocationEvent{
			Type: constants.RevocationTypeToken, TokenID: tokenID.String(),
			PrincipalID: principalID.String(), OriginInstance: "instance-b",
		})
		require.NoError(t, err)
		oracle.AssertExpectations(t)
	})

	t.Run("principal revocation", func(t *testing.T) {
		oracle := new(mocks.MockStatusOracle)
		oracle.On("InvalidateAllForPrincipal", principalID).Once()
		c := newRevocationConsumer(&fakeReader{}, "instance-a", oracle, logger.NewNoopLogger())

		err := c.handleEvent(context.Background(), models.RevocationEvent{
			Type: constants.RevocationTypePrincipal, PrincipalID: principalID.String(),
			OriginInstance: "instance-b",
		})
		require.NoError(t, err)
		oracle.AssertExpectations(t)
	})

	t.Run("own event ignored", func(t *testing.T) {
		oracle := new(mocks.MockStatusOracle)
		c := newRevocationConsumer(&fakeReader{}, "instance-a", oracle, logger.NewNoopLogger())

		err := c.handleEvent(context.Background(), models.RevocationEvent{
			Type: constants.RevocationTypePrincipal, PrincipalID: principalID.String(),
			OriginInstance: "instance-a",
		})
		require.NoError(t, err)
		oracle.AssertNotCalled(t, "InvalidateAllForPrincipal", principalID)
	})

	t.Run("invalid events", func(t *testing.T) {
		oracle := new(mocks.MockStatusOracle)
		c := newRevocationConsumer(&fakeReader{}, "instance-a", oracle, logger.NewNoopLogger())
		for _, ev := range []models.RevocationEvent{
			{Type: constants.RevocationTypeToken, PrincipalID: "x"},
			{Type: constants.RevocationTypeToken, PrincipalID: principalID.String(), TokenID: "y"},
			{Type: "session", PrincipalID: principalID.String()},
		} {
			assert.Error(t, c.handleEvent(context.Background(), ev))
		}
		oracle.AssertExpectations(t)
	})
}

func TestRevocationConsumer_StartCommitsEverything(t *testing.T) {
	tokenID, principalID := uuid.New(), uuid.New()
	reader := &fakeReader{queue: []kafka.Message{
		message(t, 1, models.RevocationEvent{
			Type: constants.RevocationTypeToken, TokenID: tokenID.String(),
			PrincipalID: principalID.String(), OriginInstance: "instance-b",
		}),
		{Offset: 2, Value: []byte("{not json")},
		message(t, 3, models.RevocationEvent{Type: "bogus", PrincipalID: principalID.String()}),
	}}
	oracle := new(mocks.MockStatusOracle)
	oracle.On("Invalidate", tokenID, principalID).Once()
	c := newRevocationConsumer(reader, "instance-a", oracle, logger.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Start(ctx)
	}()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}

	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
	oracle.AssertExpectations(t)
	assert.NoError(t, c.Close())
}
