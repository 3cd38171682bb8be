package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

type orImageURL struct {
	URL string `json:"url"`
}
type orImage struct {
	Type     string     `json:"type"` // "image_url"
	ImageURL orImageURL `json:"image_url"`
}

type orDelta struct {
	Content string    `json:"content"`
	Images  []orImage `json:"images"`
}
type orChoice struct {
	Delta        orDelta `json:"delta"`
	FinishReason string  `json:"finish_reason"`
	Index        int     `json:"index"`
}
type orStreamChunk struct {
	Choices []orChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type orMsgPart struct {
	Type     string      `json:"type"` // "text" | "image_url"
	Text     string      `json:"text,omitempty"`
	ImageURL *orImageURL `json:"image_url,omitempty"`
}
type orMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type orImageConfig struct {
	AspectRatio string `json:"aspect_ratio,omitempty"`
	ImageSize   string `json:"image_size,omitempty"`
}

type orRequest struct {
	Model       string         `json:"model"`
	Messages    []orMessage    `json:"messages"`
	Modalities  []string       `json:"modalities"`
	Stream      bool           `json:"stream"`
	ImageConfig *orImageConfig `json:"image_config,omitempty"`
}

// 输入图片 data:URL 也行，http(s) 也行
func makeUserMessage(prompt string, refs []string) orMessage {
	parts := []orMsgPart{{Type: "text", Text: prompt}}
	for _, r := range compactImages(refs) {
		parts = append(parts, orMsgPart{
			Type:     "image_url",
			ImageURL: &orImageURL{URL: r},
		})
	}
	return orMessage{Role: "user", Content: parts}
}

func buildOpenAIRequest(request ImageRequest) orRequest {
	req := orRequest{
		Model:      request.Model,
		Messages:   []orMessage{makeUserMessage(request.Prompt, request.Images)},
		Modalities: []string{"image", "text"},
		Stream:     true,
	}
	if request.AspectRatio != "" || request.Resolution != "" {
		req.ImageConfig = &orImageConfig{
			AspectRatio: strings.TrimSpace(request.AspectRatio),
			ImageSize:   strings.ToUpper(strings.TrimSpace(request.Resolution)),
		}
	}
	return req
}

// GenerateImagesByOpenAIProtocol 调用兼容 OpenAI chat completions 的接口（如 OpenRouter），
// 以 SSE 方式读取返回的图片。
func GenerateImagesByOpenAIProtocol(ctx context.Context, httpClient *http.Client, apiKey, endpoint string, request ImageRequest) (*ImageResult, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai compatible api key missing")
	}
	logger := providerLogger(ctx, DriverOpenAI, request)

	body, err := json.Marshal(buildOpenAIRequest(request))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   logSnippet(string(raw)),
		}).Error("openai compatible generate images failed")
		return nil, fmt.Errorf("openai compatible http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return readOpenAIStream(logger, resp.Body)
}

func readOpenAIStream(logger *logrus.Entry, body io.Reader) (*ImageResult, error) {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var text strings.Builder
	result := &ImageResult{}
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk orStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.WithField("data", logSnippet(data)).Debug("skip malformed stream chunk")
			continue
		}
		if chunk.Error != nil && chunk.Error.Message != "" {
			return nil, errors.New(chunk.Error.Message)
		}
		for _, choice := range chunk.Choices {
			text.WriteString(choice.Delta.Content)
			for _, img := range choice.Delta.Images {
				if url := strings.TrimSpace(img.ImageURL.URL); url != "" {
					result.Images = append(result.Images, url)
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	result.Text = strings.TrimSpace(text.String())
	if len(result.Images) == 0 {
		// 部分模型把图片直接写在文本里
		if img := extractInlineImage(result.Text); img != "" {
			result.Images = append(result.Images, img)
			result.Text = strings.TrimSpace(strings.Replace(result.Text, img, "", 1))
		}
	}
	if len(result.Images) == 0 {
		return nil, ErrNoImage
	}
	return result, nil
}

func extractInlineImage(raw string) string {
	for _, marker := range []string{"data:image/", "https://", "http://"} {
		idx := strings.Index(raw, marker)
		if idx == -1 {
			continue
		}
		rest := raw[idx:]
		if end := strings.IndexAny(rest, " \t\r\n\"')"); end != -1 {
			rest = rest[:end]
		}
		return rest
	}
	return ""
}
