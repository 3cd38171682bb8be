package service

import (
	"errors"
	"fmt"
	"strings"

	"studio/internal/entity/dto"
)

// ErrInvalidInput 标记调用方可修正的输入错误，API 层映射为 400。
var ErrInvalidInput = errors.New("invalid input")

// ErrGeneratorUnavailable 表示未配置图像生成服务。
var ErrGeneratorUnavailable = errors.New("image generator is not configured")

var errNoImages = errors.New("provider returned no images")

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Upload 是从 multipart 表单读出的一个文件。
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// CharacterUpload 是带名字的角色参考图。
type CharacterUpload struct {
	Name string
	File Upload
}

// CreateGenerationInput 汇总一次提交的全部字段，按 mode 只使用其中一部分。
type CreateGenerationInput struct {
	ShotID      string
	RequestedBy string
	Mode        dto.GenerationMode
	Prompt      string
	Model       string
	Resolution  string
	AspectRatio string

	// manual
	ReferenceFiles []Upload

	// automatic
	StoryboardFile *Upload
	StoryboardURL  string
	BackgroundFile *Upload
	BackgroundURL  string
	LightingFile   *Upload
	LightingURL    string
	CharacterFiles []CharacterUpload
	CharacterURLs  []dto.CharacterRef

	// angles
	Angles      dto.AnglesInputs
	AnchorImage *Upload
	TargetImage *Upload
}

// BackgroundGridInput 背景网格请求
type BackgroundGridInput struct {
	ShotID      string
	BaseImage   *Upload
	Context     string
	AspectRatio string
	Model       string
	Resolution  string
}

func (in *CreateGenerationInput) normalise() error {
	in.ShotID = strings.TrimSpace(in.ShotID)
	in.Prompt = strings.TrimSpace(in.Prompt)
	in.RequestedBy = strings.TrimSpace(in.RequestedBy)
	in.Mode = dto.GenerationMode(strings.ToLower(strings.TrimSpace(string(in.Mode))))

	if in.ShotID == "" {
		return invalidInput("shot_id is required")
	}
	switch in.Mode {
	case dto.ModeManual:
		if in.Prompt == "" {
			return invalidInput("prompt is required for manual generation")
		}
	case dto.ModeAutomatic, dto.ModeStoryboardEnhancer, dto.ModeAngles:
	case dto.ModeBackgroundGrid:
		return invalidInput("background_grid runs through the background-grid endpoint")
	case "":
		return invalidInput("mode is required")
	default:
		return invalidInput("unsupported mode %q", in.Mode)
	}
	return nil
}

// synthesizePrompt 在非 manual 模式下提示词为空时，根据模式输入拼出提示词。
// lighting 参考只是附带的图片，不参与拼接。
func synthesizePrompt(mode dto.GenerationMode, ref dto.RefData) string {
	switch mode {
	case dto.ModeAutomatic:
		var parts []string
		parts = append(parts, "Compose a cinematic frame for this shot")
		if ref.StoryboardURL != "" {
			parts = append(parts, "following the storyboard composition")
		}
		if ref.BackgroundURL != "" {
			parts = append(parts, "set in the provided background")
		}
		if names := characterNames(ref.Characters); names != "" {
			parts = append(parts, "featuring "+names)
		}
		return strings.Join(parts, ", ") + "."
	case dto.ModeStoryboardEnhancer:
		return "Turn the storyboard sketch into a polished, photorealistic frame while keeping its composition and staging."
	case dto.ModeAngles:
		in := dto.AnglesInputs{}
		if ref.AnglesInputs != nil {
			in = *ref.AnglesInputs
		}
		prompt := "Re-render the anchor frame"
		if in.Angle != "" {
			prompt += fmt.Sprintf(" from a %s angle", in.Angle)
		}
		if in.Length != "" {
			prompt += fmt.Sprintf(", %s shot", in.Length)
		}
		if in.Focus != "" {
			prompt += fmt.Sprintf(", focus on %s", in.Focus)
		}
		if in.Background != "" {
			prompt += fmt.Sprintf(", background: %s", in.Background)
		}
		return prompt + "."
	default:
		return ""
	}
}

func backgroundGridPrompt(context string, count int) string {
	prompt := fmt.Sprintf("Generate %d distinct background plates with no people, matching the lighting and style of the reference image", count)
	if trimmed := strings.TrimSpace(context); trimmed != "" {
		prompt += ". Context: " + trimmed
	}
	return prompt + "."
}

func characterNames(chars []dto.CharacterRef) string {
	names := make([]string, 0, len(chars))
	for _, c := range chars {
		if n := strings.TrimSpace(c.Name); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}
