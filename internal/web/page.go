package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/tempshare/internal/file/biz"
	"github.com/lk2023060901/tempshare/internal/pkg/response"
)

// Page 所有页面模板共用的数据
type Page struct {
	Title   string
	Flashes []response.Flash
	Admin   bool

	Window         string
	WindowSeconds  int64
	WindowDuration time.Duration
	MaxUpload      uint64
	Now            time.Time

	Files []*biz.File
	Stats *biz.StorageStats

	// 登录页
	Next string

	// 错误页
	Status  int
	Message string
}

// PageConfig 与请求无关的页面参数
type PageConfig struct {
	ExpiryWindow   time.Duration
	MaxUploadBytes int64
}

// NewPage 填充通用字段并取出待展示的 flash
func NewPage(c *gin.Context, cfg PageConfig, title string) *Page {
	_, isAdmin := c.Get("admin")
	maxUpload := uint64(0)
	if cfg.MaxUploadBytes > 0 {
		maxUpload = uint64(cfg.MaxUploadBytes)
	}
	return &Page{
		Title:          title,
		Flashes:        response.PopFlashes(c),
		Admin:          isAdmin,
		Window:         WindowText(cfg.ExpiryWindow),
		WindowSeconds:  int64(cfg.ExpiryWindow / time.Second),
		WindowDuration: cfg.ExpiryWindow,
		MaxUpload:      maxUpload,
		Now:            time.Now().UTC(),
	}
}

// RenderError 渲染错误页
func RenderError(c *gin.Context, cfg PageConfig, status int, message string) {
	page := NewPage(c, cfg, http.StatusText(status))
	page.Status = status
	page.Message = message
	c.HTML(status, "error.html", page)
}

// WindowText 以分钟为主的可读时长
func WindowText(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	case d >= time.Second:
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	default:
		return d.String()
	}
}
