package api

import (
	"errors"
	"net/http"
	"strings"

	"studio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 错误码定义
const (
	// 通用错误码
	ErrCodeInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeInternalError      = "ERR_INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
	ErrCodePayloadTooLarge    = "ERR_PAYLOAD_TOO_LARGE"

	// 认证错误码
	ErrCodeSessionExpired = "ERR_SESSION_EXPIRED"

	// 资源错误码
	ErrCodeGenerationNotFound = "ERR_GENERATION_NOT_FOUND"
	ErrCodeShotNotFound       = "ERR_SHOT_NOT_FOUND"

	// 业务逻辑错误码
	ErrCodeMissingField     = "ERR_MISSING_FIELD"
	ErrCodeGenerationFailed = "ERR_GENERATION_FAILED"
)

// APIError 统一的 API 错误响应结构
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorResponse 返回统一格式的错误响应
func ErrorResponse(c *gin.Context, status int, code string, message string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
	})
}

// ErrorResponseWithDetail 返回带详情的错误响应，detail 会原样展示给工作台用户
func ErrorResponseWithDetail(c *gin.Context, status int, code string, message string, detail string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
		Detail:  detail,
	})
}

// 常用错误响应快捷函数

// BadRequest 400 错误请求
func BadRequest(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401 未授权
func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// NotFound 404 资源不存在
func NotFound(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

// InternalError 500 服务器内部错误
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable 503 服务不可用
func ServiceUnavailable(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// MissingField 缺少必填字段
func MissingField(c *gin.Context, field string) {
	ErrorResponseWithDetail(c, http.StatusBadRequest, ErrCodeMissingField, "missing field", field+" is required")
}

// InvalidPayload 无效的请求体
func InvalidPayload(c *gin.Context) {
	ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload")
}

// RespondServiceError 把服务层错误映射为 HTTP 响应
func RespondServiceError(c *gin.Context, err error, notFoundCode string, fallback string) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		detail := strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
		ErrorResponseWithDetail(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid input", detail)
	case errors.Is(err, service.ErrGeneratorUnavailable):
		ErrorResponseWithDetail(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "image generation unavailable", err.Error())
	case service.IsNotFound(err):
		NotFound(c, notFoundCode, "resource not found")
	case errors.As(err, &maxBytesErr):
		ErrorResponseWithDetail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "payload too large", err.Error())
	default:
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error(fallback)
		ErrorResponseWithDetail(c, http.StatusInternalServerError, ErrCodeInternalError, fallback, err.Error())
	}
}
