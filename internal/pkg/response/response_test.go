package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/tempshare/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/files", nil)

	HandleError(c, apperrors.New(apperrors.ErrFileNotFound))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperrors.ErrFileNotFound, body.Code)
	assert.Equal(t, "File not found or expired", body.Message)
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		accept string
		want   bool
	}{
		{name: "api prefix", path: "/api/files", want: true},
		{name: "browser", path: "/upload", accept: "text/html,application/xhtml+xml,*/*", want: false},
		{name: "json client", path: "/upload", accept: "application/json", want: true},
		{name: "no accept", path: "/upload", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.accept != "" {
				c.Request.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.want, WantsJSON(c))
		})
	}
}

func TestFlashRoundTrip(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/upload", nil)

	Fail(c, "/", apperrors.New(apperrors.ErrFileMissing))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)

	// 下一次请求携带 cookie，读取后清除
	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.AddCookie(cookies[0])

	flashes := PopFlashes(c2)
	require.Len(t, flashes, 1)
	assert.Equal(t, CategoryDanger, flashes[0].Category)
	assert.Equal(t, "No file selected", flashes[0].Message)
	assert.Empty(t, PopFlashes(c2))
}

func TestReplyJSON(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/upload", nil)

	Reply(c, "/", "File uploaded successfully", gin.H{"id": "abc"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "File uploaded successfully")
}
