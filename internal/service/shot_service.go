package service

import (
	"context"
	"errors"
	"strings"

	"studio/internal/entity"
	"studio/internal/entity/converter"
	"studio/internal/entity/dto"
	"studio/internal/llm"
	"studio/internal/storage"

	"github.com/sirupsen/logrus"
)

// GetShot 返回镜头信息；从未被引用过的镜头返回空壳而不落库。
func (s *GenerationService) GetShot(ctx context.Context, id string) (*dto.Shot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidInput("shot id is required")
	}
	shot, err := s.repo.GetShot(ctx, id)
	if IsNotFound(err) {
		return &dto.Shot{ID: id, BackgroundURLs: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	out := converter.ShotToDTO(shot)
	return &out, nil
}

// UpdateShot 更新镜头的分镜图和风格参考图
func (s *GenerationService) UpdateShot(ctx context.Context, id string, updates entity.ShotUpdates) (*dto.Shot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidInput("shot id is required")
	}
	shot, err := s.repo.UpdateShot(ctx, id, updates)
	if err != nil {
		return nil, err
	}
	out := converter.ShotToDTO(shot)
	return &out, nil
}

// SaveBackgrounds 把选中的网格结果追加到镜头背景列表
func (s *GenerationService) SaveBackgrounds(ctx context.Context, shotID string, urls []string) (*dto.Shot, error) {
	shotID = strings.TrimSpace(shotID)
	if shotID == "" {
		return nil, invalidInput("shot id is required")
	}
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return nil, invalidInput("urls must not be empty")
	}
	shot, err := s.repo.AppendShotBackgrounds(ctx, shotID, cleaned)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"shot_id": shotID, "count": len(cleaned)}).Info("background selections saved")
	out := converter.ShotToDTO(shot)
	return &out, nil
}

// GenerateBackgroundGrid 同步生成一组背景候选图，不产生生成记录。
func (s *GenerationService) GenerateBackgroundGrid(ctx context.Context, in BackgroundGridInput) ([]string, error) {
	in.ShotID = strings.TrimSpace(in.ShotID)
	if in.ShotID == "" {
		return nil, invalidInput("shot_id is required")
	}
	if in.BaseImage == nil || len(in.BaseImage.Data) == 0 {
		return nil, invalidInput("base_image is required")
	}
	if s.generator == nil {
		return nil, ErrGeneratorUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	baseURL, err := s.saveUpload(ctx, in.BaseImage)
	if err != nil {
		return nil, err
	}
	images, err := s.media.PrepareImages(ctx, []string{baseURL})
	if err != nil {
		return nil, err
	}

	count := s.opts.GridCount
	model := firstNonEmpty(in.Model, s.opts.DefaultModel)
	logger := logrus.WithFields(logrus.Fields{"shot_id": in.ShotID, "mode": dto.ModeBackgroundGrid, "count": count})

	result, err := s.generator.GenerateImages(ctx, llm.ImageRequest{
		Model:       model,
		Prompt:      backgroundGridPrompt(in.Context, count),
		Images:      images,
		Resolution:  firstNonEmpty(in.Resolution, s.opts.DefaultResolution),
		AspectRatio: firstNonEmpty(in.AspectRatio, s.opts.DefaultAspectRatio),
		Count:       count,
	})
	if err != nil {
		logger.WithError(err).Error("background grid generation failed")
		return nil, err
	}
	if result == nil || len(result.Images) == 0 {
		logger.Error("background grid returned no images")
		return nil, errNoImages
	}

	keys, notes := s.saveOutputs(ctx, storage.CategoryBackground, model, result.Images)
	urls := make([]string, 0, len(keys))
	for i, key := range keys {
		switch {
		case key != "":
			urls = append(urls, s.publicURL(key))
		case strings.HasPrefix(result.Images[i], "http"):
			urls = append(urls, result.Images[i])
		}
	}
	if len(notes) > 0 {
		logger.WithField("issues", notes).Warn("some grid images were not stored")
	}
	if len(urls) == 0 {
		return nil, errors.New(appendStorageNotes("no background images produced", notes))
	}
	logger.WithField("produced", len(urls)).Info("background grid generated")
	return urls, nil
}
