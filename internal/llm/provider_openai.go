package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const defaultOpenAICompatEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// OpenAICompatible 对接 OpenRouter 等兼容 chat completions 的图像模型。
type OpenAICompatible struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewOpenAICompatible(apiKey, endpoint string, httpClient *http.Client) (*OpenAICompatible, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai compatible api key is not configured")
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultOpenAICompatEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{} // SSE 不设置整体超时，由 ctx 控制
	}
	return &OpenAICompatible{apiKey: apiKey, endpoint: endpoint, httpClient: httpClient}, nil
}

func (o *OpenAICompatible) ProviderID() string {
	return DriverOpenAI
}

// GenerateImages 每次请求只产出一张图，需要多张时串行调用。
func (o *OpenAICompatible) GenerateImages(ctx context.Context, request ImageRequest) (*ImageResult, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}
	logger := providerLogger(ctx, o.ProviderID(), request)
	logger.Info("llm_generate_images_start")

	merged := &ImageResult{}
	want := request.count()
	for len(merged.Images) < want {
		result, err := GenerateImagesByOpenAIProtocol(ctx, o.httpClient, o.apiKey, o.endpoint, request)
		if err != nil {
			if len(merged.Images) > 0 {
				logger.WithError(err).Warn("llm_generate_images_partial")
				break
			}
			logger.WithError(err).Warn("llm_generate_images_failed")
			return nil, err
		}
		merged.Images = append(merged.Images, result.Images...)
		if merged.Text == "" {
			merged.Text = result.Text
		}
	}
	if len(merged.Images) > want {
		merged.Images = merged.Images[:want]
	}
	logger.WithField("image_count", len(merged.Images)).Info("llm_generate_images_done")
	return merged, nil
}

var _ ImageGenerator = (*OpenAICompatible)(nil)
