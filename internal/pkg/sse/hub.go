package sse

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Event SSE 事件
type Event struct {
	ID   uint64      `json:"-"`    // 单调递增序号，由 Hub 分配
	Type string      `json:"type"` // 事件类型
	Data interface{} `json:"data"` // 事件数据
}

// Client 订阅者（SSE 或 WebSocket 连接）
type Client struct {
	ID       string
	Channel  chan Event
	Resource string // 订阅的资源（如 files）
}

// NewClient 创建带缓冲的订阅者
func NewClient(resource string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{
		ID:       uuid.NewString(),
		Channel:  make(chan Event, buffer),
		Resource: resource,
	}
}

// Hub 连接管理器，按资源分组广播
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Resource] == nil {
		h.clients[client.Resource] = make(map[*Client]struct{})
	}
	h.clients[client.Resource][client] = struct{}{}
}

// Unregister 注销客户端并关闭其通道，重复调用是安全的
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.Resource]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.Channel)
	if len(clients) == 0 {
		delete(h.clients, client.Resource)
	}
}

// Broadcast 向订阅 resource 的所有客户端投递事件，返回成功投递数。
// 投递是尽力而为的：缓冲区已满的客户端直接跳过。
func (h *Hub) Broadcast(resource string, event Event) int {
	if event.ID == 0 {
		event.ID = h.seq.Add(1)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients[resource] {
		select {
		case client.Channel <- event:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	return delivered
}

// GetClientCount 获取订阅指定资源的客户端数量
func (h *Hub) GetClientCount(resource string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[resource])
}

// Dropped 因缓冲区满而丢弃的事件总数
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close 断开所有客户端，用于进程退出
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for resource, clients := range h.clients {
		for client := range clients {
			close(client.Channel)
		}
		delete(h.clients, resource)
	}
}

// FormatSSE 格式化为 SSE 消息格式
func (e Event) FormatSSE() string {
	data, err := json.Marshal(e.Data)
	if err != nil {
		data = []byte("null")
	}
	out := ""
	if e.ID != 0 {
		out = "id: " + strconv.FormatUint(e.ID, 10) + "\n"
	}
	return out + "event: " + e.Type + "\ndata: " + string(data) + "\n\n"
}
