package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var volcengineResolutions = []string{"1K", "2K", "4K"}

type Volcengine struct {
	apiKey string
}

func NewVolcengine(apiKey string) (*Volcengine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("volcengine api key is not configured")
	}
	return &Volcengine{apiKey: strings.TrimSpace(apiKey)}, nil
}

func (v *Volcengine) ProviderID() string {
	return DriverVolcengine
}

func (v *Volcengine) GenerateImages(ctx context.Context, request ImageRequest) (*ImageResult, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}
	if res := strings.TrimSpace(request.Resolution); res != "" && !containsFold(volcengineResolutions, res) {
		return nil, fmt.Errorf("volcengine does not support resolution %q", request.Resolution)
	}

	logger := providerLogger(ctx, v.ProviderID(), request)
	logger.Info("llm_generate_images_start")
	result, err := GenerateImagesByVolcengineProtocol(ctx, v.apiKey, request)
	if err != nil {
		logger.WithError(err).Warn("llm_generate_images_failed")
		return nil, err
	}
	logger.WithField("image_count", len(result.Images)).Info("llm_generate_images_done")
	return result, nil
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

var _ ImageGenerator = (*Volcengine)(nil)
