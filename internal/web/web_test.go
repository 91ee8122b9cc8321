package web

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/lk2023060901/tempshare/internal/file/biz"
	"github.com/lk2023060901/tempshare/internal/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	now := time.Now().UTC()
	files := []*biz.File{
		{ID: "a", OriginalName: "report.pdf", UploadedAt: now.Add(-time.Minute), Size: 2048},
		{ID: "b", OriginalName: "<script>.txt", UploadedAt: now.Add(-time.Hour), IsPermanent: true},
	}
	base := Page{
		Title:          "Public File Board",
		Flashes:        []response.Flash{{Category: response.CategorySuccess, Message: "File uploaded successfully"}},
		Window:         "10 minutes",
		WindowSeconds:  600,
		WindowDuration: 10 * time.Minute,
		MaxUpload:      1 << 30,
		Now:            now,
		Files:          files,
	}

	tests := []struct {
		name     string
		page     func() Page
		contains []string
	}{
		{
			name: "index.html",
			page: func() Page { return base },
			contains: []string{"Public File Board", "report.pdf", "/download/a", "File uploaded successfully",
				"&lt;script&gt;.txt", `data-window="600"`, "1.0 GiB"},
		},
		{
			name: "admin.html",
			page: func() Page {
				p := base
				p.Title = "Admin Panel"
				p.Admin = true
				p.Stats = &biz.StorageStats{Files: 2, UsedBytes: 2048, FreeBytes: 3 << 30, FreeKnown: true}
				return p
			},
			contains: []string{"Admin Panel", "make_permanent", "permanent", "2.0 KiB", "3.0 GiB", "Log out"},
		},
		{
			name: "admin_login.html",
			page: func() Page {
				p := base
				p.Title = "Admin Login"
				p.Next = "/admin"
				return p
			},
			contains: []string{"Admin Login", `name="username"`, `value="/admin"`},
		},
		{
			name: "error.html",
			page: func() Page {
				p := base
				p.Status = http.StatusNotFound
				p.Message = "File not found or expired"
				return p
			},
			contains: []string{"404", "File not found or expired"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			page := tt.page()
			require.NoError(t, tmpl.ExecuteTemplate(&buf, tt.name, &page))
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestStaticFS(t *testing.T) {
	for _, name := range []string{"/app.js", "/style.css"} {
		f, err := StaticFS().Open(name)
		require.NoError(t, err, name)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		_ = f.Close()
	}
}

func TestWindowText(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{10 * time.Minute, "10 minutes"},
		{time.Minute, "1 minute"},
		{90 * time.Second, "90 seconds"},
		{500 * time.Millisecond, "500ms"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WindowText(tt.in))
	}
}
