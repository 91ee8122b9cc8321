package service

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lk2023060901/tempshare/internal/file/biz"
	apperrors "github.com/lk2023060901/tempshare/internal/pkg/errors"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/lk2023060901/tempshare/internal/pkg/response"
	"github.com/lk2023060901/tempshare/internal/pkg/sse"
	"github.com/lk2023060901/tempshare/internal/web"
	"go.uber.org/zap"
)

// multipartOverhead 上传请求体中表单边界与头部所占的余量
const multipartOverhead = 1 << 20

// Options 文件服务参数
type Options struct {
	MaxUploadBytes int64
	Resource       string        // 实时通知订阅的资源名
	KeepAlive      time.Duration // SSE 心跳 / WebSocket ping 间隔
	ClientBuffer   int
}

// FileService 文件相关的 HTTP 接口
type FileService struct {
	uc       *biz.FileUseCase
	hub      *sse.Hub
	upgrader *websocket.Upgrader
	opts     Options
	page     web.PageConfig
	logger   *logger.Logger
}

// NewFileService 创建文件服务
func NewFileService(uc *biz.FileUseCase, hub *sse.Hub, upgrader *websocket.Upgrader, opts Options, log *logger.Logger) *FileService {
	if opts.Resource == "" {
		opts.Resource = "files"
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}
	if upgrader == nil {
		upgrader = sse.NewUpgrader(nil)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &FileService{
		uc:       uc,
		hub:      hub,
		upgrader: upgrader,
		opts:     opts,
		page: web.PageConfig{
			ExpiryWindow:   uc.ExpiryWindow(),
			MaxUploadBytes: opts.MaxUploadBytes,
		},
		logger: log,
	}
}

// PageConfig 页面渲染参数，供其他模块的页面复用
func (s *FileService) PageConfig() web.PageConfig {
	return s.page
}

// FileResponse 文件的 JSON 表示
type FileResponse struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	UploadedAt  time.Time  `json:"upload_time"`
	ExpiresAt   *time.Time `json:"expires_at"`
	IsPermanent bool       `json:"is_permanent"`
	Size        int64      `json:"size"`
	ContentType string     `json:"content_type,omitempty"`
}

func (s *FileService) toResponse(f *biz.File) FileResponse {
	resp := FileResponse{
		ID:          f.ID,
		Filename:    f.OriginalName,
		UploadedAt:  f.UploadedAt,
		IsPermanent: f.IsPermanent,
		Size:        f.Size,
		ContentType: f.ContentType,
	}
	if !f.IsPermanent {
		at := f.ExpiresAt(s.page.ExpiryWindow)
		resp.ExpiresAt = &at
	}
	return resp
}

func (s *FileService) toResponses(files []*biz.File) []FileResponse {
	out := make([]FileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, s.toResponse(f))
	}
	return out
}

// Index 公开文件列表页
func (s *FileService) Index(c *gin.Context) {
	files, err := s.uc.ListPublic(c.Request.Context())
	if err != nil {
		s.logger.WithContext(c.Request.Context()).Error("failed to list files", zap.Error(err))
		web.RenderError(c, s.page, http.StatusInternalServerError, apperrors.GetMessage(apperrors.ExtractCode(err)))
		return
	}

	page := web.NewPage(c, s.page, "Public File Board")
	page.Files = files
	c.HTML(http.StatusOK, "index.html", page)
}

// ListFiles 公开文件列表（JSON）
func (s *FileService) ListFiles(c *gin.Context) {
	files, err := s.uc.ListPublic(c.Request.Context())
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"files": s.toResponses(files)})
}

// Upload 接收 multipart 上传，字段名为 file 或 files[]
func (s *FileService) Upload(c *gin.Context) {
	ctx := c.Request.Context()

	if s.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes+multipartOverhead)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, "/", s.tooLarge())
			return
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			response.Fail(c, "/", apperrors.Wrap(err, apperrors.ErrInvalidParams))
			return
		}
		response.Fail(c, "/", apperrors.Wrap(err, apperrors.ErrFileMissing))
		return
	}
	defer func() { _ = form.RemoveAll() }()

	headers := append(form.File["files[]"], form.File["file"]...)
	if len(headers) == 0 {
		response.Fail(c, "/", apperrors.New(apperrors.ErrFileMissing))
		return
	}

	uploaded := make([]FileResponse, 0, len(headers))
	for _, fh := range headers {
		f, err := s.uploadOne(c, fh)
		if err != nil {
			if len(uploaded) > 0 && !response.WantsJSON(c) {
				response.AddFlash(c, response.CategorySuccess, uploadedMessage(len(uploaded), true))
			}
			response.Fail(c, "/", err)
			return
		}
		uploaded = append(uploaded, s.toResponse(f))
	}

	multi := len(form.File["files[]"]) > 0
	msg := uploadedMessage(len(uploaded), multi)
	s.logger.WithContext(ctx).Debug("upload request completed", zap.Int("files", len(uploaded)))

	if response.WantsJSON(c) {
		response.Created(c, msg, gin.H{"files": uploaded})
		return
	}
	response.RedirectWithFlash(c, "/", response.CategorySuccess, msg)
}

func (s *FileService) uploadOne(c *gin.Context, fh *multipart.FileHeader) (*biz.File, error) {
	if s.opts.MaxUploadBytes > 0 && fh.Size > s.opts.MaxUploadBytes {
		return nil, s.tooLarge()
	}

	src, err := fh.Open()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorageWrite)
	}
	defer src.Close()

	return s.uc.Upload(c.Request.Context(), biz.UploadInput{
		Filename: fh.Filename,
		Content:  src,
		Size:     fh.Size,
	})
}

func (s *FileService) tooLarge() error {
	if s.opts.MaxUploadBytes <= 0 {
		return apperrors.New(apperrors.ErrFileTooLarge)
	}
	return apperrors.New(apperrors.ErrFileTooLarge,
		fmt.Sprintf("Maximum size is %s.", humanize.IBytes(uint64(s.opts.MaxUploadBytes))))
}

func uploadedMessage(n int, multi bool) string {
	if !multi && n == 1 {
		return "File uploaded successfully"
	}
	return fmt.Sprintf("%d file(s) uploaded successfully", n)
}

// Download 以附件形式返回文件内容
func (s *FileService) Download(c *gin.Context) {
	file, rc, err := s.uc.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, "/", err)
		return
	}
	defer rc.Close()

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.OriginalName})
	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.DataFromReader(http.StatusOK, file.Size, contentType, rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

// Health 存活探针：索引可达时返回 OK
func (s *FileService) Health(c *gin.Context) {
	if err := s.uc.Health(c.Request.Context()); err != nil {
		s.logger.WithContext(c.Request.Context()).Error("health check failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Error")
		return
	}
	c.String(http.StatusOK, "OK")
}

// Events SSE 实时通知
func (s *FileService) Events(c *gin.Context) {
	client := sse.NewClient(s.opts.Resource, s.opts.ClientBuffer)
	sse.StreamResponse(c, client, s.hub, s.opts.KeepAlive)
}

// WebSocket WebSocket 实时通知
func (s *FileService) WebSocket(c *gin.Context) {
	client := sse.NewClient(s.opts.Resource, s.opts.ClientBuffer)
	if err := sse.StreamWebSocket(c, s.upgrader, client, s.hub, s.opts.KeepAlive); err != nil {
		s.logger.WithContext(c.Request.Context()).Warn("websocket upgrade failed", zap.Error(err))
	}
}

// RenderFailure API 调用方返回 JSON 错误，浏览器直接渲染错误页
func (s *FileService) RenderFailure(c *gin.Context, err error) {
	if response.WantsJSON(c) {
		response.HandleError(c, err)
		return
	}
	code := apperrors.ExtractCode(err)
	web.RenderError(c, s.PageConfig(), apperrors.GetHTTPStatus(code), apperrors.FormatError(code, apperrors.GetDetails(err)))
	c.Abort()
}

// RouteLimits 公开路由的限流中间件，为空时不限流
type RouteLimits struct {
	// Default 作用于页面、下载与上传
	Default []gin.HandlerFunc
	Upload  gin.HandlerFunc
}

// RegisterRoutes 注册公开路由，api 为 /api 分组
func (s *FileService) RegisterRoutes(r gin.IRoutes, api gin.IRoutes, limits RouteLimits) {
	r.GET("/health", s.Health)
	r.GET("/events", s.clearReadDeadline, s.Events)
	r.GET("/ws", s.clearReadDeadline, s.WebSocket)

	r.GET("/", chain(limits.Default, s.Index)...)
	r.GET("/download/:id", chain(limits.Default, s.Download)...)
	api.GET("/files", chain(limits.Default, s.ListFiles)...)

	upload := chain(limits.Default)
	if limits.Upload != nil {
		upload = append(upload, limits.Upload)
	}
	upload = append(upload, s.clearReadDeadline, s.Upload)
	r.POST("/upload", upload...)
	api.POST("/files", upload...)
}

// clearReadDeadline 解除 server.read_timeout 对本请求的限制，
// 大文件上传与长连接推送的读取时长只受客户端断开约束
func (s *FileService) clearReadDeadline(c *gin.Context) {
	err := http.NewResponseController(c.Writer).SetReadDeadline(time.Time{})
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.WithContext(c.Request.Context()).Debug("failed to clear read deadline", zap.Error(err))
	}
}

func chain(pre []gin.HandlerFunc, handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(pre)+len(handlers)+2)
	out = append(out, pre...)
	return append(out, handlers...)
}
