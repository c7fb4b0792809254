package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/propia/deal-gateway/internal/queue"
	"github.com/propia/deal-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Channels(t *testing.T) {
	t.Run("transaction event reaches both participants", func(t *testing.T) {
		ev := New(TopicTransactionPaid)
		ev.TransactionID = 7
		ev.BuyerID = 1
		ev.SellerID = 2

		assert.Equal(t, []string{"transaction.7", "user.1", "user.2"}, ev.Channels())
	})

	t.Run("thread event routes by thread id", func(t *testing.T) {
		ev := New(TopicThreadMessage)
		ev.ThreadID = 33
		ev.BuyerID = 1

		assert.Equal(t, []string{"thread.33", "user.1"}, ev.Channels())
	})

	t.Run("buyer and seller never double up", func(t *testing.T) {
		ev := New(TopicTransactionCreated)
		ev.TransactionID = 7
		ev.BuyerID = 1
		ev.SellerID = 1

		assert.Equal(t, []string{"transaction.7", "user.1"}, ev.Channels())
	})
}

func TestNew(t *testing.T) {
	a := New(TopicTransactionCreated)
	b := New(TopicTransactionCreated)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, TopicTransactionCreated, a.Topic)
	assert.False(t, a.OccurredAt.IsZero())
}

func TestRedisPublisher_Publish(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	adapter, err := redis.NewRedisAdapter("events-test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	q, err := queue.NewQueue(adapter, queue.QueueConfig{
		Name:              "test:events",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
	})
	require.NoError(t, err)
	defer q.Stop(time.Second)

	publisher := NewRedisPublisher(adapter, q)

	ev := New(TopicTransactionValidated)
	ev.TransactionID = 7
	ev.ActorID = 2
	ev.BuyerID = 1
	ev.Status = "pending"

	err = publisher.Publish(context.Background(), ev)
	require.NoError(t, err)

	t.Run("durable leg lands on the stream", func(t *testing.T) {
		stats, err := q.GetStats()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.TotalMessages, int64(1))
	})

	t.Run("stream payload round-trips the event", func(t *testing.T) {
		received := make(chan Event, 1)
		err := q.Consume(func(ctx context.Context, msg *queue.Message) error {
			var got Event
			if err := json.Unmarshal(msg.Data, &got); err != nil {
				return err
			}
			received <- got
			return nil
		})
		require.NoError(t, err)

		select {
		case got := <-received:
			assert.Equal(t, ev.ID, got.ID)
			assert.Equal(t, TopicTransactionValidated, got.Topic)
			assert.Equal(t, int64(7), got.TransactionID)
		case <-time.After(3 * time.Second):
			t.Fatal("event not consumed within timeout")
		}
	})
}
