package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"
)

//文档:https://www.volcengine.com/docs/82379/1824121

const (
	volcengineMaxSide   = 4096
	volcengineMaxImages = 15
)

// 2K 档位下推荐的宽高像素
var volcengine2KSizes = map[string][2]int{
	"1:1":  {2048, 2048},
	"4:3":  {2304, 1728},
	"3:4":  {1728, 2304},
	"16:9": {2560, 1440},
	"9:16": {1440, 2560},
	"3:2":  {2496, 1664},
	"2:3":  {1664, 2496},
	"21:9": {3024, 1296},
}

var volcengineResolutionScale = map[string]float64{
	"1K": 0.5,
	"2K": 1,
	"4K": 2,
}

// volcengineSize 把分辨率档位和画幅比例换算成接口接受的 Size 参数。
// 比例未知时直接透传档位（1K/2K/4K），由模型按正方形处理。
func volcengineSize(resolution, aspectRatio string) string {
	resolution = strings.ToUpper(strings.TrimSpace(resolution))
	if resolution == "" {
		resolution = "2K"
	}
	scale, ok := volcengineResolutionScale[resolution]
	if !ok {
		return resolution
	}
	base, ok := volcengine2KSizes[strings.TrimSpace(aspectRatio)]
	if !ok {
		return resolution
	}

	w := float64(base[0]) * scale
	h := float64(base[1]) * scale
	if longest := math.Max(w, h); longest > volcengineMaxSide {
		shrink := volcengineMaxSide / longest
		w *= shrink
		h *= shrink
	}
	return fmt.Sprintf("%dx%d", roundTo8(w), roundTo8(h))
}

func roundTo8(v float64) int {
	return int(math.Floor(v/8)) * 8
}

type volcengineEvent struct {
	Type      string
	URL       string
	ErrCode   string
	ErrMessage string
}

const (
	volcengineEventSucceeded = "image_generation.partial_succeeded"
	volcengineEventFailed    = "image_generation.partial_failed"
	volcengineEventCompleted = "image_generation.completed"
)

// collectVolcengineImages 消费流式事件，返回成功的图片与最后一条失败信息。
func collectVolcengineImages(logger *logrus.Entry, next func() (volcengineEvent, error)) (*ImageResult, error) {
	result := &ImageResult{}
	var lastFailure string
	for {
		event, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(result.Images) > 0 {
				logger.WithError(err).Warn("volcengine stream interrupted after partial output")
				break
			}
			return nil, fmt.Errorf("volcengine stream: %w", err)
		}

		switch event.Type {
		case volcengineEventSucceeded:
			if event.URL != "" {
				result.Images = append(result.Images, event.URL)
			}
		case volcengineEventFailed:
			lastFailure = event.ErrMessage
			logger.WithFields(logrus.Fields{"code": event.ErrCode, "message": event.ErrMessage}).Warn("volcengine partial failure")
			if strings.EqualFold(event.ErrCode, "InternalServiceError") {
				return finishVolcengine(result, lastFailure)
			}
		case volcengineEventCompleted:
			return finishVolcengine(result, lastFailure)
		}
	}
	return finishVolcengine(result, lastFailure)
}

func finishVolcengine(result *ImageResult, lastFailure string) (*ImageResult, error) {
	if len(result.Images) == 0 {
		if lastFailure != "" {
			return nil, errors.New(lastFailure)
		}
		return nil, ErrNoImage
	}
	result.Text = lastFailure
	return result, nil
}

func buildVolcengineRequest(request ImageRequest) volcModel.GenerateImagesRequest {
	sequential := volcModel.SequentialImageGeneration("disabled")
	maxImages := request.count()
	if maxImages > volcengineMaxImages {
		maxImages = volcengineMaxImages
	}
	if maxImages > 1 {
		sequential = "auto"
	}

	req := volcModel.GenerateImagesRequest{
		Model:                     request.Model,
		Prompt:                    request.Prompt,
		Size:                      volcengine.String(volcengineSize(request.Resolution, request.AspectRatio)),
		ResponseFormat:            volcengine.String(volcModel.GenerateImagesResponseFormatURL), // 链接 24 小时内有效，需要落盘
		Watermark:                 volcengine.Bool(false),
		SequentialImageGeneration: &sequential,
		SequentialImageGenerationOptions: &volcModel.SequentialImageGenerationOptions{
			MaxImages: &maxImages,
		},
	}
	if images := compactImages(request.Images); len(images) > 0 {
		req.Image = images
	}
	return req
}

// GenerateImagesByVolcengineProtocol 通过 arkruntime 的流式接口生成图片。
func GenerateImagesByVolcengineProtocol(ctx context.Context, apiKey string, request ImageRequest) (*ImageResult, error) {
	logger := providerLogger(ctx, DriverVolcengine, request)
	client := arkruntime.NewClientWithApiKey(apiKey)

	stream, err := client.GenerateImagesStreaming(ctx, buildVolcengineRequest(request))
	if err != nil {
		logger.WithError(err).Error("volcengine generate images failed")
		return nil, fmt.Errorf("volcengine generate images: %w", err)
	}
	defer stream.Close()

	return collectVolcengineImages(logger, func() (volcengineEvent, error) {
		recv, err := stream.Recv()
		if err != nil {
			return volcengineEvent{}, err
		}
		event := volcengineEvent{Type: recv.Type}
		if recv.Url != nil {
			event.URL = strings.TrimSpace(*recv.Url)
		}
		if recv.Error != nil {
			event.ErrCode = recv.Error.Code
			event.ErrMessage = recv.Error.Message
		}
		return event, nil
	})
}
