package service

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/tempshare/internal/pkg/errors"
	"github.com/lk2023060901/tempshare/internal/pkg/response"
	"github.com/lk2023060901/tempshare/internal/web"
	"go.uber.org/zap"
)

// 管理操作
const (
	ActionDelete        = "delete"
	ActionMakePermanent = "make_permanent"
)

const adminPath = "/admin"

// ManageRequest 管理表单
type ManageRequest struct {
	FileID string `form:"file_id" json:"file_id" binding:"required,max=64"`
	Action string `form:"action" json:"action" binding:"required"`
}

// AdminPanel 管理面板：全部文件与存储统计
func (s *FileService) AdminPanel(c *gin.Context) {
	ctx := c.Request.Context()

	files, err := s.uc.ListAll(ctx)
	if err != nil {
		s.adminError(c, err)
		return
	}
	stats, err := s.uc.StorageStats(ctx)
	if err != nil {
		s.adminError(c, err)
		return
	}

	page := web.NewPage(c, s.page, "Admin Panel")
	page.Files = files
	page.Stats = stats
	c.HTML(http.StatusOK, "admin.html", page)
}

func (s *FileService) adminError(c *gin.Context, err error) {
	s.logger.WithContext(c.Request.Context()).Error("admin panel failed", zap.Error(err))
	code := apperrors.ExtractCode(err)
	web.RenderError(c, s.page, apperrors.GetHTTPStatus(code), apperrors.GetMessage(code))
}

// Manage 处理 delete / make_permanent 表单
func (s *FileService) Manage(c *gin.Context) {
	var req ManageRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Fail(c, adminPath, apperrors.Wrap(err, apperrors.ErrInvalidParams))
		return
	}
	s.manage(c, req.FileID, req.Action)
}

func (s *FileService) manage(c *gin.Context, id, action string) {
	ctx := c.Request.Context()

	var (
		changed bool
		err     error
		done    string
	)
	switch action {
	case ActionDelete:
		changed, err = s.uc.Delete(ctx, id)
		done = "File deleted"
	case ActionMakePermanent:
		changed, err = s.uc.MakePermanent(ctx, id)
		done = "File marked as permanent"
	default:
		response.Fail(c, adminPath, apperrors.New(apperrors.ErrUnknownAction, action))
		return
	}
	if err != nil {
		response.Fail(c, adminPath, err)
		return
	}

	data := gin.H{"id": id, "action": action, "changed": changed}
	if !changed {
		// 重复操作或未知 id：不是错误，只提示
		msg := apperrors.GetMessage(apperrors.ErrFileNotFound)
		if response.WantsJSON(c) {
			response.SuccessWithMessage(c, msg, data)
			return
		}
		response.RedirectWithFlash(c, adminPath, response.CategoryInfo, msg)
		return
	}
	response.Reply(c, adminPath, done, data)
}

// ListAllFiles 管理员查看全部文件（JSON）
func (s *FileService) ListAllFiles(c *gin.Context) {
	ctx := c.Request.Context()

	files, err := s.uc.ListAll(ctx)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	stats, err := s.uc.StorageStats(ctx)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"files": s.toResponses(files),
		"storage": gin.H{
			"files":      stats.Files,
			"used_bytes": stats.UsedBytes,
			"free_bytes": stats.FreeBytes,
			"free_known": stats.FreeKnown,
		},
	})
}

// DeleteFile DELETE /api/admin/files/:id
func (s *FileService) DeleteFile(c *gin.Context) {
	s.manage(c, c.Param("id"), ActionDelete)
}

// MakePermanent POST /api/admin/files/:id/permanent
func (s *FileService) MakePermanent(c *gin.Context) {
	s.manage(c, c.Param("id"), ActionMakePermanent)
}

// RegisterAdminRoutes 注册管理路由，调用方负责挂载认证中间件
func (s *FileService) RegisterAdminRoutes(admin gin.IRoutes, api gin.IRoutes) {
	admin.GET("", s.AdminPanel)
	admin.POST("/manage", s.Manage)

	api.GET("/files", s.ListAllFiles)
	api.DELETE("/files/:id", s.DeleteFile)
	api.POST("/files/:id/permanent", s.MakePermanent)
}
