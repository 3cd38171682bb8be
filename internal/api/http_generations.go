package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"studio/internal/entity/dto"
	"studio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CreateGeneration 接收 multipart 提交，写入 pending 记录后立即返回 202
func (h *HTTPHandler) CreateGeneration(c *gin.Context) {
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

	input, err := buildGenerationInput(form)
	if err != nil {
		ErrorResponseWithDetail(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload", err.Error())
		return
	}
	input.RequestedBy = requesterName(c, form.value(dto.FieldRequestedBy))

	generation, err := h.generationService.CreateGeneration(c.Request.Context(), input)
	if err != nil {
		RespondServiceError(c, err, ErrCodeShotNotFound, "failed to create generation")
		return
	}

	c.JSON(http.StatusAccepted, dto.CreateGenerationResponse{
		Success:      true,
		GenerationID: generation.ID,
	})
}

func buildGenerationInput(form multipartForm) (service.CreateGenerationInput, error) {
	in := service.CreateGenerationInput{
		ShotID:        form.value(dto.FieldShotID),
		Mode:          dto.GenerationMode(strings.ToLower(form.value(dto.FieldMode))),
		Prompt:        form.value(dto.FieldPrompt),
		Model:         form.value(dto.FieldModel),
		Resolution:    form.value(dto.FieldResolution),
		AspectRatio:   form.value(dto.FieldAspectRatio),
		BackgroundURL: form.value(dto.FieldAutoBackgroundURL),
		LightingURL:   form.value(dto.FieldAutoLightingURL),
		Angles: dto.AnglesInputs{
			Angle:      form.value(dto.FieldAngle),
			Length:     form.value(dto.FieldLength),
			Focus:      form.value(dto.FieldFocus),
			Background: form.value(dto.FieldBackground),
		},
	}

	var err error
	if in.ReferenceFiles, err = form.files(dto.FieldReferenceFiles); err != nil {
		return in, err
	}
	if in.BackgroundFile, err = form.file(dto.FieldAutoBackground); err != nil {
		return in, err
	}
	if in.LightingFile, err = form.file(dto.FieldAutoLighting); err != nil {
		return in, err
	}
	if in.CharacterFiles, err = form.characterUploads(); err != nil {
		return in, err
	}
	if in.CharacterURLs, err = form.characterURLs(); err != nil {
		return in, err
	}
	if in.AnchorImage, err = form.file(dto.FieldAnchorImage); err != nil {
		return in, err
	}
	if in.TargetImage, err = form.file(dto.FieldTargetImage); err != nil {
		return in, err
	}

	// automatic 与 storyboard_enhancer 使用不同的分镜字段
	storyboardFileField, storyboardURLField := dto.FieldAutoStoryboard, dto.FieldAutoStoryboardURL
	if in.Mode == dto.ModeStoryboardEnhancer {
		storyboardFileField, storyboardURLField = dto.FieldStoryboardFile, dto.FieldStoryboardURL
	}
	if in.StoryboardFile, err = form.file(storyboardFileField); err != nil {
		return in, err
	}
	in.StoryboardURL = form.value(storyboardURLField)
	return in, nil
}

// GetGeneration 查询单条生成记录
func (h *HTTPHandler) GetGeneration(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		MissingField(c, "generation id")
		return
	}
	generation, err := h.generationService.GetGeneration(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err, ErrCodeGenerationNotFound, "failed to load generation")
		return
	}
	c.JSON(http.StatusOK, dto.GenerationDetailResponse{Generation: *generation})
}

// ListShotGenerations 列出镜头的生成记录，最新在前
func (h *HTTPHandler) ListShotGenerations(c *gin.Context) {
	shotID, ok := shotIDParam(c)
	if !ok {
		return
	}
	generations, err := h.generationService.ListGenerations(c.Request.Context(), shotID)
	if err != nil {
		RespondServiceError(c, err, ErrCodeShotNotFound, "failed to list generations")
		return
	}
	if generations == nil {
		generations = []dto.Generation{}
	}
	c.JSON(http.StatusOK, dto.GenerationListResponse{Generations: generations})
}

// StreamShotEvents 推送镜头下生成记录进入终态的事件
func (h *HTTPHandler) StreamShotEvents(c *gin.Context) {
	shotID, ok := shotIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	events := make(chan sseMessage, 8)
	h.events.register(shotID, events)
	defer h.events.unregister(shotID, events)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	if flusher, ok := c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	heartbeatTicker := time.NewTicker(10 * time.Second)
	defer heartbeatTicker.Stop()

	logger := logrus.WithField("shot_id", shotID)
	logger.Info("generation sse connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			logger.Info("generation sse disconnected")
			return false
		case <-h.events.done():
			logger.Info("generation sse closed by server shutdown")
			return false
		case <-heartbeatTicker.C:
			c.SSEvent("ping", gin.H{"ts": time.Now().UnixMilli()})
			return true
		case msg, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(msg.event, msg.data)
			return true
		}
	})
}
