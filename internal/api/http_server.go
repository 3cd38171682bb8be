package api

import (
	"net/http"
	"strings"
	"time"

	"studio/internal/auth"
	"studio/internal/config"
	"studio/internal/entity/dto"
	"studio/internal/service"

	"github.com/gin-gonic/gin"
)

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg            config.Config
	authManager    *auth.Manager
	maxUploadBytes int64

	// 服务层
	generationService *service.GenerationService

	// SSE 客户端管理
	events *eventHub
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, generationSvc *service.GenerationService) (*HTTPHandler, error) {
	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	maxUpload := cfg.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 32
	}

	handler := &HTTPHandler{
		cfg:               cfg,
		authManager:       authManager,
		maxUploadBytes:    maxUpload << 20,
		generationService: generationSvc,
		events:            newEventHub(),
	}

	// 设置 SSE 通知回调
	generationSvc.SetNotifyFunc(handler.notifyGenerationComplete)

	return handler, nil
}

// RegisterRoutes 注册 /api 路由
func (h *HTTPHandler) RegisterRoutes(r gin.IRouter) {
	apiGroup := r.Group("/api")
	apiGroup.Use(h.IdentityMiddleware())

	apiGroup.POST("/generations", h.CreateGeneration)
	apiGroup.GET("/generations/:id", h.GetGeneration)

	shots := apiGroup.Group("/shots/:id")
	shots.GET("", h.GetShot)
	shots.PATCH("", h.UpdateShot)
	shots.GET("/generations", h.ListShotGenerations)
	shots.GET("/events", h.StreamShotEvents)
	shots.POST("/background-grid", h.GenerateBackgroundGrid)
	shots.POST("/backgrounds", h.SaveBackgrounds)
}

// Close 结束所有 SSE 长连接，供 http.Server.RegisterOnShutdown 使用
func (h *HTTPHandler) Close() {
	h.events.close()
}

// notifyGenerationComplete 通知生成完成（用于 SSE 推送）
func (h *HTTPHandler) notifyGenerationComplete(shotID string, generation dto.Generation) {
	if strings.TrimSpace(shotID) == "" {
		return
	}
	h.events.publish(shotID, sseMessage{
		event: "generation_completed",
		data:  dto.GenerationDetailResponse{Generation: generation},
	})
}

// requesterName 优先使用 Token 中的身份，其次是表单字段
func requesterName(c *gin.Context, fallback string) string {
	if user := CurrentUser(c); user != nil && strings.TrimSpace(user.Name) != "" {
		return user.Name
	}
	return strings.TrimSpace(fallback)
}

func shotIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		MissingField(c, "shot id")
		return "", false
	}
	return id, true
}

func (h *HTTPHandler) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
}
