package dto

import (
	"strings"
	"time"
)

// GenerationMode selects which input bundle produced a generation.
type GenerationMode string

const (
	ModeManual             GenerationMode = "manual"
	ModeAutomatic          GenerationMode = "automatic"
	ModeStoryboardEnhancer GenerationMode = "storyboard_enhancer"
	ModeAngles             GenerationMode = "angles"
	// ModeBackgroundGrid is a one-shot synchronous mode; it never produces a Generation.
	ModeBackgroundGrid GenerationMode = "background_grid"
)

// Valid reports whether m is a known mode.
func (m GenerationMode) Valid() bool {
	switch m {
	case ModeManual, ModeAutomatic, ModeStoryboardEnhancer, ModeAngles, ModeBackgroundGrid:
		return true
	default:
		return false
	}
}

// GenerationStatus is the lifecycle state of a generation.
type GenerationStatus string

const (
	StatusPending   GenerationStatus = "pending"
	StatusCompleted GenerationStatus = "completed"
	StatusFailed    GenerationStatus = "failed"
)

// ParseStatus maps provider and backend status strings onto the three
// generation states. Unknown values are treated as still pending.
func ParseStatus(status string) GenerationStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "complete", "succeeded", "success", "done", "ok":
		return StatusCompleted
	case "failed", "failure", "error", "cancelled", "canceled", "aborted":
		return StatusFailed
	default:
		return StatusPending
	}
}

// ReferenceFile is a manual-mode reference image.
type ReferenceFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// CharacterRef names a character image used in automatic mode.
type CharacterRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AnglesInputs holds the free-text fields of angles mode.
type AnglesInputs struct {
	Angle      string `json:"angle,omitempty"`
	Length     string `json:"length,omitempty"`
	Focus      string `json:"focus,omitempty"`
	Background string `json:"background,omitempty"`
}

// RefData records exactly which inputs produced a generation. Mode is the
// discriminant; only the fields belonging to that mode are populated.
type RefData struct {
	Mode GenerationMode `json:"mode"`

	// manual
	ManualRefs []ReferenceFile `json:"manual_refs,omitempty"`

	// automatic, storyboard_enhancer
	StoryboardURL string         `json:"storyboard_url,omitempty"`
	BackgroundURL string         `json:"background_url,omitempty"`
	LightingURL   string         `json:"lighting_url,omitempty"`
	Characters    []CharacterRef `json:"characters,omitempty"`

	// angles
	AnchorURL    string        `json:"anchor_url,omitempty"`
	TargetURL    string        `json:"target_url,omitempty"`
	AnglesInputs *AnglesInputs `json:"angles_inputs,omitempty"`
}

// Generation is one AI image-generation attempt for a shot.
type Generation struct {
	ID           string           `json:"id"`
	ShotID       string           `json:"shot_id"`
	ImageURL     string           `json:"image_url"`
	Prompt       string           `json:"prompt"`
	Model        string           `json:"model"`
	Resolution   string           `json:"resolution"`
	AspectRatio  string           `json:"aspect_ratio"`
	Status       GenerationStatus `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	RequestedBy  string           `json:"requested_by,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	RefData      *RefData         `json:"ref_data,omitempty"`
}

// IsPending reports whether the backend is still working on g.
func (g Generation) IsPending() bool {
	return g.Status == StatusPending
}

// GenerationListResponse is returned by the per-shot listing endpoint.
type GenerationListResponse struct {
	Generations []Generation `json:"generations"`
}

// GenerationDetailResponse wraps a single generation.
type GenerationDetailResponse struct {
	Generation Generation `json:"generation"`
}

// CreateGenerationResponse acknowledges an accepted submission.
type CreateGenerationResponse struct {
	Success      bool   `json:"success"`
	GenerationID string `json:"generation_id,omitempty"`
}

// BackgroundGridResponse carries the candidate images of a background grid run.
type BackgroundGridResponse struct {
	Images []string `json:"images"`
}

// BackgroundSelectionRequest persists chosen grid outputs as shot backgrounds.
type BackgroundSelectionRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

// Multipart field names shared by the workstation client and the backend.
const (
	FieldPrompt      = "prompt"
	FieldMode        = "mode"
	FieldShotID      = "shot_id"
	FieldRequestedBy = "requested_by"
	FieldModel       = "model"
	FieldAspectRatio = "aspect_ratio"
	FieldResolution  = "resolution"

	FieldReferenceFiles = "reference_files"

	FieldAutoStoryboard    = "auto_storyboard"
	FieldAutoStoryboardURL = "auto_storyboard_url"
	FieldAutoBackground    = "auto_background"
	FieldAutoBackgroundURL = "auto_background_url"
	FieldAutoLighting      = "auto_lighting"
	FieldAutoLightingURL   = "auto_lighting_url"
	FieldCharacterFiles    = "character_files"
	FieldCharacterNames    = "character_names"
	FieldCharacterURLs     = "character_urls"

	FieldStoryboardFile = "storyboard_file"
	FieldStoryboardURL  = "storyboard_url"

	FieldAngle       = "angle"
	FieldLength      = "length"
	FieldFocus       = "focus"
	FieldBackground  = "background"
	FieldAnchorImage = "anchor_image"
	FieldTargetImage = "target_image"

	FieldBaseImage = "base_image"
	FieldContext   = "context"
)
