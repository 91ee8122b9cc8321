package data

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lk2023060901/tempshare/internal/file/biz"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	pkgredis "github.com/lk2023060901/tempshare/internal/pkg/redis"
	"github.com/lk2023060901/tempshare/internal/pkg/sse"
	"go.uber.org/zap"
)

// HubNotifier 广播给本进程内的 SSE / WebSocket 订阅者
type HubNotifier struct {
	hub      *sse.Hub
	resource string
}

func NewHubNotifier(hub *sse.Hub, resource string) *HubNotifier {
	return &HubNotifier{hub: hub, resource: resource}
}

var _ biz.Notifier = (*HubNotifier)(nil)

func (n *HubNotifier) Publish(ctx context.Context, event biz.Event) error {
	n.hub.Broadcast(n.resource, sse.Event{Type: event.Type, Data: event.Payload})
	return nil
}

// wireEvent Redis 频道上的消息格式
type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// RedisNotifier 发布到 Redis 频道，每个实例的 EventBridge 再转发给本地订阅者
type RedisNotifier struct {
	client  *pkgredis.Client
	channel string
}

func NewRedisNotifier(client *pkgredis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: client.Key(channel)}
}

var _ biz.Notifier = (*RedisNotifier)(nil)

func (n *RedisNotifier) Publish(ctx context.Context, event biz.Event) error {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	msg, err := json.Marshal(wireEvent{Type: event.Type, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := n.client.Publish(ctx, n.channel, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// EventBridge 把 Redis 频道上的事件转发到本地 Hub
type EventBridge struct {
	client   *pkgredis.Client
	channel  string
	hub      *sse.Hub
	resource string
	logger   *logger.Logger
}

func NewEventBridge(client *pkgredis.Client, channel string, hub *sse.Hub, resource string, log *logger.Logger) *EventBridge {
	return &EventBridge{
		client:   client,
		channel:  client.Key(channel),
		hub:      hub,
		resource: resource,
		logger:   log.Named("event_bridge"),
	}
}

// Run 阻塞直到 ctx 结束
func (b *EventBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", b.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *EventBridge) forward(payload string) {
	var ev wireEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.logger.Warn("dropping malformed event", zap.Error(err))
		return
	}
	b.hub.Broadcast(b.resource, sse.Event{Type: ev.Type, Data: ev.Data})
}
