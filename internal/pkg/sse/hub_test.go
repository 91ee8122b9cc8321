package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFormatSSE(t *testing.T) {
	event := Event{ID: 7, Type: "new_file", Data: map[string]interface{}{"id": "abc", "filename": "report.pdf"}}

	lines := strings.Split(event.FormatSSE(), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "id: 7", lines[0])
	assert.Equal(t, "event: new_file", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "data: "))

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[2], "data: ")), &data))
	assert.Equal(t, "report.pdf", data["filename"])
	assert.True(t, strings.HasSuffix(event.FormatSSE(), "\n\n"))
}

func TestEventFormatSSEWithoutID(t *testing.T) {
	out := Event{Type: "file_deleted", Data: "x"}.FormatSSE()
	assert.Equal(t, "event: file_deleted\ndata: \"x\"\n\n", out)
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	a := NewClient("files", 1)
	b := NewClient("files", 1)
	other := NewClient("other", 1)
	hub.Register(a)
	hub.Register(b)
	hub.Register(other)
	assert.Equal(t, 2, hub.GetClientCount("files"))

	assert.Equal(t, 2, hub.Broadcast("files", Event{Type: "new_file"}))
	first := <-a.Channel
	assert.Equal(t, "new_file", first.Type)
	assert.NotZero(t, first.ID)

	// b 的缓冲区仍然满着，第二次广播会被丢弃
	assert.Equal(t, 1, hub.Broadcast("files", Event{Type: "file_deleted"}))
	assert.Equal(t, uint64(1), hub.Dropped())
	second := <-a.Channel
	assert.Greater(t, second.ID, first.ID)

	assert.Empty(t, other.Channel)
	assert.Equal(t, 0, hub.Broadcast("nobody", Event{Type: "x"}))
}

func TestHubUnregisterAndClose(t *testing.T) {
	hub := NewHub()
	a := NewClient("files", 0)
	hub.Register(a)
	hub.Unregister(a)
	hub.Unregister(a)
	_, ok := <-a.Channel
	assert.False(t, ok)
	assert.Equal(t, 0, hub.GetClientCount("files"))

	b := NewClient("files", 0)
	hub.Register(b)
	hub.Close()
	_, ok = <-b.Channel
	assert.False(t, ok)
	hub.Unregister(b)
}

func TestStreamResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Request = httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)

	client := NewClient("files", 4)
	done := make(chan struct{})
	go func() {
		StreamResponse(c, client, hub, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.GetClientCount("files") == 1 }, time.Second, 5*time.Millisecond)
	hub.Broadcast("files", Event{Type: "new_file", Data: map[string]string{"id": "abc"}})
	hub.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after hub close")
	}

	body := w.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: new_file")
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
}
