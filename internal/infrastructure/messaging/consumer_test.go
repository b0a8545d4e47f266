package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newTestConsumer(rdb *redis.Client) *Consumer {
	return NewConsumer(rdb, ConsumerConfig{
		Stream:        StreamBookGen,
		Group:         ConsumerGroupBookWorker.WithPrefix("test-"),
		ConsumerName:  "c1",
		BlockTimeout:  20 * time.Millisecond,
		ClaimInterval: time.Hour,
		RetryLimit:    2,
		Backoff:       BackoffConfig{Initial: time.Hour, Max: time.Hour, Multiplier: 1},
	})
}

func stopAndWait(t *testing.T, c *Consumer) {
	t.Helper()
	c.Stop()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumer_DeliversBookJob(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	var mu sync.Mutex
	var got []string
	c := newTestConsumer(rdb)
	c.RegisterHandler(MessageTypeBookGenerate, func(_ context.Context, msg *Message) error {
		var payload BookJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, payload.JobID)
		mu.Unlock()
		return nil
	})
	require.NoError(t, c.Start(ctx))
	assert.Error(t, c.Start(ctx))

	_, err := NewProducer(rdb, 0).PublishBookJob(ctx, "job-42")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)
	stopAndWait(t, c)

	assert.Equal(t, []string{"job-42"}, got)
	pending, err := rdb.XPending(ctx, string(StreamBookGen), "test-"+string(ConsumerGroupBookWorker)).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestConsumer_PermanentErrorGoesToDLQ(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	c := newTestConsumer(rdb)
	c.RegisterHandler(MessageTypeBookGenerate, func(context.Context, *Message) error {
		return Permanent(errors.New("job payload unusable"))
	})
	require.NoError(t, c.Start(ctx))

	_, err := NewProducer(rdb, 0).PublishBookJob(ctx, "job-bad")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		n, err := rdb.XLen(ctx, StreamBookGen.DLQStream()).Result()
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
	stopAndWait(t, c)
}

func TestConsumer_TransientErrorStaysPending(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	calls := make(chan struct{}, 4)
	c := newTestConsumer(rdb)
	c.RegisterHandler(MessageTypeBookGenerate, func(context.Context, *Message) error {
		calls <- struct{}{}
		return errors.New("job store unavailable")
	})
	require.NoError(t, c.Start(ctx))

	_, err := NewProducer(rdb, 0).PublishBookJob(ctx, "job-retry")
	require.NoError(t, err)

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	stopAndWait(t, c)

	pending, err := rdb.XPending(ctx, string(StreamBookGen), "test-"+string(ConsumerGroupBookWorker)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
	n, err := rdb.XLen(ctx, StreamBookGen.DLQStream()).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConsumer_UnhandledTypeIsAcked(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	handled := make(chan string, 1)
	c := newTestConsumer(rdb)
	c.RegisterHandler(MessageTypeBookGenerate, func(_ context.Context, msg *Message) error {
		handled <- msg.ID
		return nil
	})
	require.NoError(t, c.Start(ctx))

	p := NewProducer(rdb, 0)
	msg, err := NewMessage("m-1", "unknown_type", map[string]string{})
	require.NoError(t, err)
	_, err = p.Publish(ctx, StreamBookGen, msg)
	require.NoError(t, err)
	_, err = p.PublishBookJob(ctx, "job-after")
	require.NoError(t, err)

	select {
	case id := <-handled:
		assert.Equal(t, "job-after", id)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	stopAndWait(t, c)

	pending, err := rdb.XPending(ctx, string(StreamBookGen), "test-"+string(ConsumerGroupBookWorker)).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}
