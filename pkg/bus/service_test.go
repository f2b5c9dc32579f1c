package bus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

// Tests below require a reachable Redis instance; skipped otherwise,
// following the same env-gated-skip convention pkg/store uses for
// Postgres.
func newTestService(t *testing.T, serviceSubject string) (*Service, *redis.Client) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rdb.Ping(ctx).Err())

	t.Cleanup(func() { _ = rdb.Close() })
	return NewService(rdb, serviceSubject), rdb
}

func TestConsumerReceivesPublishedMessageAndReplies(t *testing.T) {
	svc, _ := newTestService(t, "TESTSVC")
	ctx := context.Background()

	received := make(chan Message, 1)
	err := svc.AddConsumer("test-consumer", "greet", func(ctx context.Context, msg Message) (Response, error) {
		received <- msg
		return Response{Body: []byte("ack"), Tags: map[string]string{"host_0": "device-abc"}}, nil
	}, func(tags map[string]string) []string {
		subjects := make([]string, 0, len(tags))
		for _, deviceID := range tags {
			subjects = append(subjects, "REPLY."+deviceID)
		}
		return subjects
	})
	require.NoError(t, err)
	defer svc.DeleteConsumer("test-consumer")

	require.NoError(t, svc.Publish(ctx, "greet", []byte("hello"), nil))

	select {
	case msg := <-received:
		require.Equal(t, "hello", string(msg.Body))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for consumer to receive message")
	}
}

func TestHandlerErrorIsCarriedAsReplyBody(t *testing.T) {
	svc, _ := newTestService(t, "TESTSVC3")
	ctx := context.Background()

	failing := NewServiceError("greeter", "greet", "name is required")
	err := svc.AddConsumer("failing-consumer", "greet", func(ctx context.Context, msg Message) (Response, error) {
		return Response{}, failing
	}, func(tags map[string]string) []string {
		return []string{"REPLY.failing"}
	})
	require.NoError(t, err)
	defer svc.DeleteConsumer("failing-consumer")

	replyReceived := make(chan Message, 1)
	err = svc.AddConsumer("failing-reply-listener", "REPLY.failing", func(ctx context.Context, msg Message) (Response, error) {
		replyReceived <- msg
		return Response{}, nil
	}, nil)
	require.NoError(t, err)
	defer svc.DeleteConsumer("failing-reply-listener")

	require.NoError(t, svc.Publish(ctx, "greet", []byte("hello"), nil))

	select {
	case msg := <-replyReceived:
		require.Equal(t, failing.Error(), string(msg.Body))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error reply")
	}
}

func TestReplyOverrideHeaderTakesPrecedence(t *testing.T) {
	svc, _ := newTestService(t, "TESTSVC2")
	ctx := context.Background()

	replyReceived := make(chan struct{}, 1)
	err := svc.AddConsumer("reply-listener", "REPLY.override", func(ctx context.Context, msg Message) (Response, error) {
		replyReceived <- struct{}{}
		return Response{}, nil
	}, nil)
	require.NoError(t, err)
	defer svc.DeleteConsumer("reply-listener")

	err = svc.AddConsumer("main-consumer", "work", func(ctx context.Context, msg Message) (Response, error) {
		return Response{Body: []byte("done")}, nil
	}, func(tags map[string]string) []string {
		return []string{"REPLY.fallback"}
	})
	require.NoError(t, err)
	defer svc.DeleteConsumer("main-consumer")

	err = svc.Publish(ctx, "work", []byte("go"), map[string]string{"reply_override": "REPLY.override"})
	require.NoError(t, err)

	select {
	case <-replyReceived:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reply on override subject")
	}
}
