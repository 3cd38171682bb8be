package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrNoImage is returned when a provider finishes without producing an image.
var ErrNoImage = errors.New("no image in provider response")

// ImageRequest describes one text+reference to image call.
type ImageRequest struct {
	Model       string
	Prompt      string
	Images      []string // http(s) or data URLs
	Resolution  string   // 1K, 2K, 4K
	AspectRatio string   // e.g. 16:9
	Count       int
}

// ImageResult holds the produced images (URLs or data URLs) and any text the
// provider emitted alongside them.
type ImageResult struct {
	Images []string
	Text   string
}

// ImageGenerator is implemented by every image generation provider.
type ImageGenerator interface {
	ProviderID() string
	GenerateImages(ctx context.Context, request ImageRequest) (*ImageResult, error)
}

func (r ImageRequest) count() int {
	if r.Count <= 0 {
		return 1
	}
	return r.Count
}

func (r ImageRequest) validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if strings.TrimSpace(r.Model) == "" {
		return errors.New("model is required")
	}
	return nil
}

func compactImages(images []string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if trimmed := strings.TrimSpace(img); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
