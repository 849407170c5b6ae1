package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketfiler/internal/shared/eventbus"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPublishRecent(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	s := NewStoreFromClient(client)

	id := time.Now().UnixNano()
	t.Cleanup(func() { client.Del(ctx, eventbus.StreamKey("dispute", id)) })

	for _, to := range []string{"Withdrawn", "Closed"} {
		ev := &eventbus.LifecycleEvent{
			Entity: "dispute", EntityID: id, From: "Open", To: to, ActorID: 3,
			Timestamp: time.Now().UTC(), Data: map[string]string{"reason": fmt.Sprintf("to %s", to)},
		}
		require.NoError(t, s.Publish(ctx, ev))
		assert.NotEmpty(t, ev.ID)
	}

	events, err := s.Recent(ctx, "dispute", id, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Closed", events[0].To)
	assert.Equal(t, id, events[0].EntityID)
	assert.Equal(t, int64(3), events[0].ActorID)
	assert.Equal(t, "to Closed", events[0].Data["reason"])
}
