package api

import (
	"errors"
	"net/http"

	"studio/internal/entity"
	"studio/internal/entity/dto"
	"studio/internal/service"

	"github.com/gin-gonic/gin"
)

type updateShotRequest struct {
	StoryboardURL *string `json:"storyboard_url"`
	StyleURL      *string `json:"style_url"`
}

// GetShot 返回镜头的分镜、风格与背景
func (h *HTTPHandler) GetShot(c *gin.Context) {
	shotID, ok := shotIDParam(c)
	if !ok {
		return
	}
	shot, err := h.generationService.GetShot(c.Request.Context(), shotID)
	if err != nil {
		RespondServiceError(c, err, ErrCodeShotNotFound, "failed to load shot")
		return
	}
	c.JSON(http.StatusOK, dto.ShotResponse{Shot: *shot})
}

// UpdateShot 修改镜头的分镜图或风格参考图
func (h *HTTPHandler) UpdateShot(c *gin.Context) {
	shotID, ok := shotIDParam(c)
	if !ok {
		return
	}
	var req updateShotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	if req.StoryboardURL == nil && req.StyleURL == nil {
		ErrorResponseWithDetail(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload", "no fields to update")
		return
	}
	shot, err := h.generationService.UpdateShot(c.Request.Context(), shotID, entity.ShotUpdates{
		StoryboardURL: req.StoryboardURL,
		StyleURL:      req.StyleURL,
	})
	if err != nil {
		RespondServiceError(c, err, ErrCodeShotNotFound, "failed to update shot")
		return
	}
	c.JSON(http.StatusOK, dto.ShotResponse{Shot: *shot})
}

// GenerateBackgroundGrid 同步生成背景候选
func (h *HTTPHandler) GenerateBackgroundGrid(c *gin.Context) {
	shotID, ok := shotIDParam(c)
	if !ok {
		return
	}
	h.limitBody(c)
	raw, err := c.MultipartForm()
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			RespondServiceError(c, err, ErrCodeInvalidRequest, "")
			return
		}
		ErrorResponseWithDetail(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload", "expected multipart/form-data")
		return
	}
	form := multipartForm{form: raw}

	base, err := form.file(dto.FieldBaseImage)
	if err != nil {
		ErrorResponseWithDetail(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload", err.Error())
		return
	}

	images, err := h.generationService.GenerateBackgroundGrid(c.Request.Context(), service.BackgroundGridInput{
		ShotID:      shotID,
		BaseImage:   base,
		Context:     form.value(dto.FieldContext),
		AspectRatio: form.value(dto.FieldAspectRatio),
		Model:       form.value(dto.FieldModel),
		Resolution:  form.value(dto.FieldResolution),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) || errors.Is(err, service.ErrGeneratorUnavailable) {
			RespondServiceError(c, err, ErrCodeShotNotFound, "")
			return
		}
		ErrorResponseWithDetail(c, http.StatusBadGateway, ErrCodeGenerationFailed, "background grid generation failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, dto.BackgroundGridResponse{Images: images})
}

// SaveBackgrounds 保存选中的背景
func (h *HTTPHandler) SaveBackgrounds(c *gin.Context) {
	shotID, ok := shotIDParam(c)
	if !ok {
		return
	}
	var req dto.BackgroundSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		MissingField(c, "urls")
		return
	}
	shot, err := h.generationService.SaveBackgrounds(c.Request.Context(), shotID, req.URLs)
	if err != nil {
		RespondServiceError(c, err, ErrCodeShotNotFound, "failed to save backgrounds")
		return
	}
	c.JSON(http.StatusOK, dto.ShotResponse{Shot: *shot})
}
