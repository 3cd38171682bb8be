package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studio/internal/utils"

	"github.com/sirupsen/logrus"
)

// LocalLoader reads a reference that only the server can resolve, such as a
// relative /files/... path served from local storage.
type LocalLoader func(ctx context.Context, ref string) ([]byte, error)

// MediaService turns reference inputs into something a provider can consume.
// Remote URLs are passed through unless InlineRemote is set; inline payloads
// are normalised to data URLs; anything else goes through the LocalLoader.
type MediaService struct {
	httpClient   *http.Client
	local        LocalLoader
	inlineRemote bool
}

type MediaOption func(*MediaService)

func WithLocalLoader(loader LocalLoader) MediaOption {
	return func(s *MediaService) { s.local = loader }
}

// WithInlineRemote downloads remote URLs and sends them as data URLs, for
// providers that cannot reach the storage host.
func WithInlineRemote(httpClient *http.Client) MediaOption {
	return func(s *MediaService) {
		s.inlineRemote = true
		if httpClient != nil {
			s.httpClient = httpClient
		}
	}
}

// NewMediaService creates a new MediaService instance.
func NewMediaService(opts ...MediaOption) *MediaService {
	s := &MediaService{httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PrepareImage returns a URL or data URL for one reference input.
func (s *MediaService) PrepareImage(ctx context.Context, input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("empty image input")
	}

	switch {
	case strings.HasPrefix(trimmed, "http://"), strings.HasPrefix(trimmed, "https://"):
		if !s.inlineRemote {
			return trimmed, nil
		}
		data, mimeType, err := s.download(ctx, trimmed)
		if err != nil {
			return "", err
		}
		return utils.EncodeDataURL(data, mimeType), nil
	case strings.HasPrefix(trimmed, "data:"):
		return normalizeDataURL(trimmed)
	default:
		if s.local == nil {
			return "", fmt.Errorf("cannot resolve reference %q", truncateString(trimmed, 64))
		}
		data, err := s.local(ctx, trimmed)
		if err != nil {
			return "", err
		}
		return utils.EncodeDataURL(data, ""), nil
	}
}

// PrepareImages keeps the successfully prepared inputs in order. It fails only
// when every input failed.
func (s *MediaService) PrepareImages(ctx context.Context, inputs []string) ([]string, error) {
	inputs = compactImages(inputs)
	if len(inputs) == 0 {
		return nil, nil
	}

	results := make([]string, 0, len(inputs))
	var errs []string
	for idx, input := range inputs {
		prepared, err := s.PrepareImage(ctx, input)
		if err != nil {
			errs = append(errs, fmt.Sprintf("image %d: %v", idx, err))
			logrus.WithFields(logrus.Fields{
				"index": idx,
				"input": truncateString(input, 128),
			}).WithError(err).Warn("media_service: failed to prepare image")
			continue
		}
		results = append(results, prepared)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("all images failed: %s", strings.Join(errs, "; "))
	}
	return results, nil
}

func (s *MediaService) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"size_bytes": len(data),
		"url":        truncateString(url, 128),
	}).Debug("media_service: downloaded image")
	return data, resp.Header.Get("Content-Type"), nil
}

func normalizeDataURL(input string) (string, error) {
	mimeType, b64Data, _ := utils.ParseDataURL(input)
	if b64Data == "" {
		return "", errors.New("empty base64 payload")
	}
	raw, err := base64.StdEncoding.DecodeString(b64Data)
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	return utils.EncodeDataURL(raw, mimeType), nil
}

// truncateString truncates a string to max length for logging.
func truncateString(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
