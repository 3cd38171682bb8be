package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"studio/internal/entity"
	"studio/internal/entity/converter"
	"studio/internal/entity/dto"
	"studio/internal/llm"
	"studio/internal/model"
	"studio/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InterruptedMessage 写入因服务重启而中断的生成记录
const InterruptedMessage = "generation interrupted by server restart"

// Options 生成服务的默认参数
type Options struct {
	DefaultModel       string
	DefaultResolution  string
	DefaultAspectRatio string
	GridCount          int
	Timeout            time.Duration
	PublicBase         string
	HTTPClient         *http.Client
}

// NotifyFunc 在生成记录进入终态时调用（用于 SSE 推送）
type NotifyFunc func(shotID string, generation dto.Generation)

// GenerationService 内容生成服务，封装生成相关的业务逻辑
type GenerationService struct {
	repo       model.Repository
	storage    storage.Storage
	generator  llm.ImageGenerator
	media      *llm.MediaService
	httpClient *http.Client
	opts       Options
	publicBase string

	notifyFunc NotifyFunc

	// 后台生成任务，测试与优雅退出时等待
	inflight sync.WaitGroup
}

// NewGenerationService 创建生成服务实例。generator 可以为 nil，此时提交会返回 ErrGeneratorUnavailable。
func NewGenerationService(repo model.Repository, store storage.Storage, generator llm.ImageGenerator, opts Options) *GenerationService {
	if opts.GridCount <= 0 {
		opts.GridCount = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	s := &GenerationService{
		repo:       repo,
		storage:    store,
		generator:  generator,
		httpClient: opts.HTTPClient,
		opts:       opts,
		publicBase: NormalisePublicBase(opts.PublicBase),
	}
	s.media = llm.NewMediaService(llm.WithLocalLoader(s.loadLocal))
	return s
}

// SetNotifyFunc 设置通知函数（用于 SSE 推送）
func (s *GenerationService) SetNotifyFunc(fn NotifyFunc) {
	s.notifyFunc = fn
}

// Wait 等待所有后台生成任务结束
func (s *GenerationService) Wait() {
	s.inflight.Wait()
}

// NormalisePublicBase 规范化公共 URL 基础路径
func NormalisePublicBase(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = "/files"
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return strings.TrimRight(trimmed, "/")
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}

// publicURL 将存储 key 转换为公开 URL，已是绝对 URL 的原样返回。
func (s *GenerationService) publicURL(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") || strings.HasPrefix(trimmed, s.publicBase+"/") {
		return trimmed
	}
	return s.publicBase + "/" + strings.TrimLeft(trimmed, "/")
}

// PublicURL 暴露给 API 层用于组装响应
func (s *GenerationService) PublicURL(path string) string {
	return s.publicURL(path)
}

// CreateGeneration 校验输入、保存参考图、写入 pending 记录并异步生成。
func (s *GenerationService) CreateGeneration(ctx context.Context, in CreateGenerationInput) (*dto.Generation, error) {
	if err := in.normalise(); err != nil {
		return nil, err
	}
	if s.generator == nil {
		return nil, ErrGeneratorUnavailable
	}

	if _, err := s.repo.EnsureShot(ctx, in.ShotID); err != nil {
		return nil, fmt.Errorf("ensure shot: %w", err)
	}

	ref, err := s.buildRefData(ctx, &in)
	if err != nil {
		return nil, err
	}

	prompt := in.Prompt
	if prompt == "" {
		prompt = synthesizePrompt(in.Mode, ref)
	}

	record := &entity.DbGeneration{
		ID:          uuid.NewString(),
		ShotID:      in.ShotID,
		RequestedBy: in.RequestedBy,
		Mode:        string(in.Mode),
		Prompt:      prompt,
		Model:       firstNonEmpty(in.Model, s.opts.DefaultModel),
		Resolution:  firstNonEmpty(in.Resolution, s.opts.DefaultResolution),
		AspectRatio: firstNonEmpty(in.AspectRatio, s.opts.DefaultAspectRatio),
		Status:      string(dto.StatusPending),
		RefData:     datatypes.NewJSONType(ref),
	}
	if err := s.repo.CreateGeneration(ctx, record); err != nil {
		return nil, fmt.Errorf("create generation: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"generation_id": record.ID,
		"shot_id":       record.ShotID,
		"mode":          record.Mode,
		"model":         record.Model,
	}).Info("generation accepted")

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.handleGeneration(context.WithoutCancel(ctx), *record, referenceURLs(ref))
	}()

	out := converter.GenerationToDTO(record, s.publicURL)
	return &out, nil
}

// handleGeneration 处理内容生成的核心逻辑
func (s *GenerationService) handleGeneration(parent context.Context, record entity.DbGeneration, refs []string) {
	ctx, cancel := context.WithTimeout(parent, s.opts.Timeout)
	defer cancel()

	logger := logrus.WithFields(logrus.Fields{
		"generation_id": record.ID,
		"shot_id":       record.ShotID,
		"model":         record.Model,
	})

	images, err := s.media.PrepareImages(ctx, refs)
	if err != nil {
		logger.WithError(err).Warn("reference images unavailable, generating from prompt only")
		images = nil
	}

	result, err := s.generator.GenerateImages(ctx, llm.ImageRequest{
		Model:       record.Model,
		Prompt:      record.Prompt,
		Images:      images,
		Resolution:  record.Resolution,
		AspectRatio: record.AspectRatio,
		Count:       1,
	})
	if err != nil {
		logger.WithError(err).Error("failed to generate content")
		s.finish(record, dto.StatusFailed, "", err.Error())
		return
	}
	if result == nil || len(result.Images) == 0 {
		logger.Error("provider returned no images")
		s.finish(record, dto.StatusFailed, "", errNoImages.Error())
		return
	}

	keys, notes := s.saveOutputs(ctx, storage.CategoryOutput, record.Model, result.Images[:1])
	imagePath := keys[0]
	if imagePath == "" {
		// 落盘失败时保留服务商返回的地址（通常有时效）
		if first := result.Images[0]; strings.HasPrefix(first, "http://") || strings.HasPrefix(first, "https://") {
			imagePath = first
		} else {
			logger.WithField("issues", notes).Error("failed to persist output image")
			s.finish(record, dto.StatusFailed, "", appendStorageNotes("output image could not be stored", notes))
			return
		}
	}

	logger.WithField("image_path", imagePath).Info("generated content")
	s.finish(record, dto.StatusCompleted, imagePath, appendStorageNotes("", notes))
}

func (s *GenerationService) finish(record entity.DbGeneration, status dto.GenerationStatus, imagePath, errMsg string) {
	updates := entity.GenerationUpdates{Status: &status}
	if imagePath != "" {
		updates.ImagePath = &imagePath
	}
	if errMsg != "" {
		updates.ErrorMessage = &errMsg
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.UpdateGeneration(ctx, record.ID, updates); err != nil {
		logrus.WithError(err).WithField("generation_id", record.ID).Error("failed to update generation")
		return
	}

	record.Status = string(status)
	record.ImagePath = imagePath
	record.ErrorMessage = errMsg
	if s.notifyFunc != nil {
		s.notifyFunc(record.ShotID, converter.GenerationToDTO(&record, s.publicURL))
	}
}

// buildRefData 保存上传文件并记录本次生成使用的输入。
func (s *GenerationService) buildRefData(ctx context.Context, in *CreateGenerationInput) (dto.RefData, error) {
	ref := dto.RefData{Mode: in.Mode}
	save := func(up *Upload, fallback string) (string, error) {
		if up != nil && len(up.Data) > 0 {
			return s.saveUpload(ctx, up)
		}
		return strings.TrimSpace(fallback), nil
	}

	var err error
	switch in.Mode {
	case dto.ModeManual:
		for i := range in.ReferenceFiles {
			up := &in.ReferenceFiles[i]
			url, err := s.saveUpload(ctx, up)
			if err != nil {
				return ref, err
			}
			ref.ManualRefs = append(ref.ManualRefs, dto.ReferenceFile{Name: up.Name, URL: url, Type: up.ContentType})
		}
	case dto.ModeAutomatic:
		if ref.StoryboardURL, err = save(in.StoryboardFile, in.StoryboardURL); err != nil {
			return ref, err
		}
		if ref.BackgroundURL, err = save(in.BackgroundFile, in.BackgroundURL); err != nil {
			return ref, err
		}
		if ref.LightingURL, err = save(in.LightingFile, in.LightingURL); err != nil {
			return ref, err
		}
		for i := range in.CharacterFiles {
			c := &in.CharacterFiles[i]
			url, err := s.saveUpload(ctx, &c.File)
			if err != nil {
				return ref, err
			}
			ref.Characters = append(ref.Characters, dto.CharacterRef{Name: c.Name, URL: url})
		}
		for _, c := range in.CharacterURLs {
			if strings.TrimSpace(c.URL) == "" {
				continue
			}
			ref.Characters = append(ref.Characters, dto.CharacterRef{Name: strings.TrimSpace(c.Name), URL: strings.TrimSpace(c.URL)})
		}
	case dto.ModeStoryboardEnhancer:
		if ref.StoryboardURL, err = save(in.StoryboardFile, in.StoryboardURL); err != nil {
			return ref, err
		}
	case dto.ModeAngles:
		if ref.AnchorURL, err = save(in.AnchorImage, ""); err != nil {
			return ref, err
		}
		if ref.TargetURL, err = save(in.TargetImage, ""); err != nil {
			return ref, err
		}
		angles := in.Angles
		angles.Angle = strings.TrimSpace(angles.Angle)
		angles.Length = strings.TrimSpace(angles.Length)
		angles.Focus = strings.TrimSpace(angles.Focus)
		angles.Background = strings.TrimSpace(angles.Background)
		ref.AnglesInputs = &angles
	}
	return ref, nil
}

// referenceURLs 按对模型的重要程度排列参考图。
func referenceURLs(ref dto.RefData) []string {
	var urls []string
	for _, r := range ref.ManualRefs {
		urls = append(urls, r.URL)
	}
	urls = append(urls, ref.StoryboardURL, ref.BackgroundURL)
	for _, c := range ref.Characters {
		urls = append(urls, c.URL)
	}
	urls = append(urls, ref.LightingURL, ref.AnchorURL, ref.TargetURL)

	out := urls[:0]
	for _, u := range urls {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	return out
}

// GetGeneration 查询单条生成记录
func (s *GenerationService) GetGeneration(ctx context.Context, id string) (*dto.Generation, error) {
	record, err := s.repo.GetGeneration(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	out := converter.GenerationToDTO(record, s.publicURL)
	return &out, nil
}

// ListGenerations 按镜头列出生成记录，最新在前
func (s *GenerationService) ListGenerations(ctx context.Context, shotID string) ([]dto.Generation, error) {
	shotID = strings.TrimSpace(shotID)
	if shotID == "" {
		return nil, invalidInput("shot id is required")
	}
	records, err := s.repo.ListGenerations(ctx, shotID)
	if err != nil {
		return nil, err
	}
	return converter.GenerationsToDTOs(records, s.publicURL), nil
}

// RecoverInterrupted 将上次进程退出时遗留的 pending 记录标记为失败，避免客户端无限轮询。
func (s *GenerationService) RecoverInterrupted(ctx context.Context) (int, error) {
	pending, err := s.repo.ListGenerationsByStatus(ctx, string(dto.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("list pending generations: %w", err)
	}
	failed := dto.StatusFailed
	msg := InterruptedMessage
	recovered := 0
	for _, g := range pending {
		if err := s.repo.UpdateGeneration(ctx, g.ID, entity.GenerationUpdates{Status: &failed, ErrorMessage: &msg}); err != nil {
			logrus.WithError(err).WithField("generation_id", g.ID).Warn("failed to mark interrupted generation")
			continue
		}
		recovered++
	}
	if recovered > 0 {
		logrus.WithField("count", recovered).Info("marked interrupted generations as failed")
	}
	return recovered, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// IsNotFound 判断错误是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
