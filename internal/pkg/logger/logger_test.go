package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "nil config", config: nil},
		{name: "default config", config: DefaultConfig()},
		{name: "json console", config: &Config{Level: "debug", Format: "json", Output: "console"}},
		{
			name: "file output",
			config: &Config{
				Level:  "info",
				Format: "json",
				Output: "file",
				File:   FileConfig{Filename: filepath.Join(dir, "a", "app.log"), MaxSize: 1, MaxAge: 1},
			},
		},
		{
			name: "both output",
			config: &Config{
				Level:  "warn",
				Format: "console",
				Output: "both",
				File:   FileConfig{Filename: filepath.Join(dir, "b.log"), MaxSize: 1, MaxAge: 1},
			},
		},
		{name: "upper case level", config: &Config{Level: "INFO", Format: "json", Output: "console"}},
		{name: "invalid level", config: &Config{Level: "loud", Format: "json", Output: "console"}, wantErr: true},
		{name: "invalid format", config: &Config{Level: "info", Format: "xml", Output: "console"}, wantErr: true},
		{name: "invalid output", config: &Config{Level: "info", Format: "json", Output: "syslog"}, wantErr: true},
		{name: "file without name", config: &Config{Level: "info", Format: "json", Output: "file"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
			l.Info("hello")
			_ = l.Sync()
		})
	}
}

func TestLoggerChildren(t *testing.T) {
	l := NewNop()
	assert.NotNil(t, l.With(zap.String("k", "v")))
	assert.NotNil(t, l.Named("sweeper"))
	assert.Equal(t, l.Config(), l.Named("x").Config())
}

func TestGlobalLogger(t *testing.T) {
	prev := L()
	t.Cleanup(func() { SetGlobal(prev) })

	require.NoError(t, InitGlobal(&Config{Level: "error", Format: "json", Output: "console"}))
	assert.Equal(t, "error", L().Config().Level)

	nop := NewNop()
	SetGlobal(nop)
	assert.Same(t, nop, L())
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetPrincipal(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithPrincipal(ctx, "admin")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "admin", GetPrincipal(ctx))

	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{Logger: zap.New(core), config: DefaultConfig()}

	FromContext(ToContext(ctx, l)).Info("with fields")
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "admin", fields["principal"])
}

func TestGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{Logger: zap.New(core), config: DefaultConfig()}

	r := gin.New()
	r.Use(GinLogger(l, MiddlewareOptions{SkipPaths: []string{"/health"}, SkipPathPrefixes: []string{"/events"}}))
	r.Use(GinRecovery(l))
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/events/stream", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	tests := []struct {
		path      string
		status    int
		wantLevel zapcore.Level
		logged    bool
	}{
		{path: "/health", status: http.StatusOK},
		{path: "/events/stream", status: http.StatusOK},
		{path: "/missing", status: http.StatusNotFound, wantLevel: zapcore.WarnLevel, logged: true},
		{path: "/boom", status: http.StatusInternalServerError, wantLevel: zapcore.ErrorLevel, logged: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			before := logs.Len()
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set(RequestIDHeader, "fixed-id")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "fixed-id", w.Header().Get(RequestIDHeader))

			entries := logs.All()[before:]
			if !tt.logged {
				assert.Empty(t, entries)
				return
			}
			require.NotEmpty(t, entries)
			last := entries[len(entries)-1]
			assert.Equal(t, tt.wantLevel, last.Level)
			assert.Equal(t, "fixed-id", last.ContextMap()["request_id"])
		})
	}
}
