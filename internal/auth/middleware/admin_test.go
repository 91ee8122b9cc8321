package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/tempshare/internal/auth"
	"github.com/lk2023060901/tempshare/internal/auth/biz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct{}

func (fakeVerifier) VerifySession(_ context.Context, token string) (string, error) {
	if token == "good-token" {
		return "admin", nil
	}
	return "", biz.ErrInvalidSession
}

func (fakeVerifier) Authenticate(_ context.Context, username, password string) (*biz.Admin, error) {
	if username == "admin" && password == "admin123" {
		return &biz.Admin{Username: "admin"}, nil
	}
	return nil, biz.ErrInvalidCredentials
}

var testAuthConfig = AdminAuthConfig{CookieName: "tempshare_admin"}

func newAdminRouter() *gin.Engine {
	r := gin.New()
	admin := r.Group("/admin", RequireAdmin(fakeVerifier{}, testAuthConfig, nil))
	admin.GET("", func(c *gin.Context) {
		name, _ := GetAdmin(c)
		ctxName, _ := auth.AdminFrom(c.Request.Context())
		c.String(http.StatusOK, name+"|"+ctxName)
	})
	admin.POST("/manage", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestRequireAdmin(t *testing.T) {
	r := newAdminRouter()

	tests := []struct {
		name          string
		method        string
		path          string
		cookie        string
		authz         string
		basicUser     string
		basicPass     string
		accept        string
		wantStatus    int
		wantBody      string
		wantLocation  string
		wantChallenge bool
		wantCleared   bool
	}{
		{name: "cookie", method: http.MethodGet, path: "/admin", cookie: "good-token", wantStatus: http.StatusOK, wantBody: "admin|admin"},
		{name: "bearer", method: http.MethodGet, path: "/admin", authz: "Bearer good-token", wantStatus: http.StatusOK, wantBody: "admin|admin"},
		{name: "basic", method: http.MethodGet, path: "/admin", basicUser: "admin", basicPass: "admin123", wantStatus: http.StatusOK, wantBody: "admin|admin"},
		{name: "browser without credentials", method: http.MethodGet, path: "/admin", wantStatus: http.StatusSeeOther, wantLocation: "/admin/login?next=%2Fadmin"},
		{name: "browser post redirects to plain login", method: http.MethodPost, path: "/admin/manage", wantStatus: http.StatusSeeOther, wantLocation: "/admin/login"},
		{name: "stale cookie is cleared", method: http.MethodGet, path: "/admin", cookie: "stale", wantStatus: http.StatusSeeOther, wantLocation: "/admin/login?next=%2Fadmin", wantCleared: true},
		{name: "json client", method: http.MethodGet, path: "/admin", accept: "application/json", wantStatus: http.StatusUnauthorized, wantChallenge: true},
		{name: "wrong basic password", method: http.MethodGet, path: "/admin", basicUser: "admin", basicPass: "nope", wantStatus: http.StatusUnauthorized, wantChallenge: true},
		{name: "bad bearer", method: http.MethodGet, path: "/admin", authz: "Bearer bad", wantStatus: http.StatusUnauthorized, wantChallenge: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: testAuthConfig.CookieName, Value: tt.cookie})
			}
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			if tt.basicUser != "" {
				req.SetBasicAuth(tt.basicUser, tt.basicPass)
			}
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, w.Header().Get("Location"))
			}
			if tt.wantChallenge {
				assert.True(t, strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Basic "))
			}
			if tt.wantCleared {
				var cleared bool
				for _, c := range w.Result().Cookies() {
					if c.Name == testAuthConfig.CookieName && c.MaxAge < 0 {
						cleared = true
					}
				}
				assert.True(t, cleared)
			}
		})
	}
}
