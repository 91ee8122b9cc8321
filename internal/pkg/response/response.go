package response

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/tempshare/internal/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`              // 业务错误码（0表示成功）
	Message string      `json:"message,omitempty"` // 提示信息
	Data    interface{} `json:"data"`
}

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	SuccessWithMessage(c, "", data)
}

// SuccessWithMessage 带消息的成功响应（200）
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(http.StatusOK, Response{
		Code:    apperrors.Success,
		Message: message,
		Data:    data,
	})
}

// Created 创建资源成功（201）
func Created(c *gin.Context, message string, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(http.StatusCreated, Response{
		Code:    apperrors.Success,
		Message: message,
		Data:    data,
	})
}

// HandleError 统一错误处理（使用AppError）
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code := apperrors.ExtractCode(err)
	c.AbortWithStatusJSON(apperrors.GetHTTPStatus(code), Response{
		Code:    code,
		Message: apperrors.FormatError(code, apperrors.GetDetails(err)),
		Data:    struct{}{},
	})
}

// ErrorWithCode 使用错误码的错误响应
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	HandleError(c, apperrors.New(code, details...))
}

// WantsJSON 判断调用方是否为 API 客户端（否则按浏览器表单处理：重定向 + flash）
func WantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// Reply 根据调用方类型输出成功结果：API 返回 JSON，浏览器重定向并带 flash
func Reply(c *gin.Context, location, message string, data interface{}) {
	if WantsJSON(c) {
		SuccessWithMessage(c, message, data)
		return
	}
	RedirectWithFlash(c, location, CategorySuccess, message)
}

// Fail 根据调用方类型输出错误：API 返回 JSON，浏览器重定向并带 flash
func Fail(c *gin.Context, location string, err error) {
	if WantsJSON(c) {
		HandleError(c, err)
		return
	}
	code := apperrors.ExtractCode(err)
	RedirectWithFlash(c, location, CategoryDanger, apperrors.FormatError(code, apperrors.GetDetails(err)))
	c.Abort()
}
