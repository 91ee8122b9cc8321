package sse

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// StreamResponse 把 client 收到的事件以 SSE 格式写回，直到连接断开或 Hub 关闭
func StreamResponse(c *gin.Context, client *Client, hub *Hub, keepAliveInterval time.Duration) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	hub.Register(client)
	defer hub.Unregister(client)

	connected := Event{
		Type: "connected",
		Data: map[string]string{"client_id": client.ID, "resource": client.Resource},
	}
	if _, err := fmt.Fprint(c.Writer, connected.FormatSSE()); err != nil {
		return
	}
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return

		case event, ok := <-client.Channel:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(c.Writer, event.FormatSSE()); err != nil {
				return
			}
			c.Writer.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
