package data

import (
	"context"
	"testing"
	"time"

	"github.com/lk2023060901/tempshare/internal/file/biz"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/lk2023060901/tempshare/internal/pkg/redis/redistest"
	"github.com/lk2023060901/tempshare/internal/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker(t *testing.T) {
	client := redistest.New(t)
	ctx := context.Background()

	a := NewRedisLocker(client, "sweeper", 5*time.Second)
	b := NewRedisLocker(client, "sweeper", 5*time.Second)

	unlock, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second instance must not acquire a held lock")

	unlock()

	unlockB, ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	unlockB()
}

func TestRedisNotifierThroughEventBridge(t *testing.T) {
	client := redistest.New(t)

	hub := sse.NewHub()
	sub := sse.NewClient("files", 4)
	hub.Register(sub)
	defer hub.Unregister(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge := NewEventBridge(client, "events", hub, "files", logger.NewNop())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	n := NewRedisNotifier(client, "events")
	event := biz.Event{Type: biz.EventFileDeleted, Payload: biz.FileDeletedPayload{ID: "abc"}}

	// 订阅建立前发布的消息会丢失，重试直到收到
	require.Eventually(t, func() bool {
		require.NoError(t, n.Publish(ctx, event))
		select {
		case ev := <-sub.Channel:
			return ev.Type == biz.EventFileDeleted
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
	}
}
