package workstation

import (
	"fmt"
	"strings"
	"studio/internal/entity/dto"
	"time"
)

// Automatic-mode tab ids. Character tabs use their own ids.
const (
	TabStoryboard = "storyboard"
	TabLighting   = "lighting"
	TabBackground = "background"
)

// Draft is everything the user has entered for one submission.
type Draft struct {
	Mode        Mode
	Prompt      string
	Model       string
	AspectRatio string
	Resolution  string

	Manual             ManualInputs
	Automatic          AutomaticInputs
	StoryboardEnhancer StoryboardEnhancerInputs
	Angles             AnglesInputs
}

// ManualInputs are the reference images of manual mode.
type ManualInputs struct {
	References []File
}

// CharacterTab is an ad hoc character slot in automatic mode.
type CharacterTab struct {
	ID   string
	Name string
	File *File
	URL  string
}

// AutomaticInputs is the automatic-mode bundle.
type AutomaticInputs struct {
	SelectedTabs []string
	// Uploads holds files picked for the storyboard, lighting and background tabs.
	Uploads       map[string]*File
	CharacterTabs []CharacterTab
	// CharacterResources are characters picked from the project library.
	CharacterResources []dto.CharacterRef
	// CharacterLibrary is searched for @Name mentions in the prompt.
	CharacterLibrary []dto.CharacterRef
}

// StoryboardEnhancerInputs is the storyboard-enhancer bundle.
type StoryboardEnhancerInputs struct {
	Storyboard *File
}

// AnglesInputs is the angles bundle.
type AnglesInputs struct {
	Angle      string
	Length     string
	Focus      string
	Background string
	Anchor     *File
	Target     *File
}

// GridInputs is the background-grid bundle.
type GridInputs struct {
	BaseImage   *File
	Context     string
	AspectRatio string
}

// NamedFile is a file-based character.
type NamedFile struct {
	Name string
	File File
}

// Payload is the normalised submission for every non-grid mode.
type Payload struct {
	Mode        Mode
	ShotID      string
	RequestedBy string
	Prompt      string
	Model       string
	AspectRatio string
	Resolution  string

	ReferenceFiles []File

	AutoStoryboard    *File
	AutoStoryboardURL string
	AutoBackground    *File
	AutoBackgroundURL string
	AutoLighting      *File
	AutoLightingURL   string
	CharacterFiles    []NamedFile
	CharacterURLs     []dto.CharacterRef

	StoryboardFile *File
	StoryboardURL  string

	Angles      dto.AnglesInputs
	AnchorImage *File
	TargetImage *File
}

// GridPayload is the background-grid submission.
type GridPayload struct {
	ShotID      string
	BaseImage   File
	Context     string
	AspectRatio string
}

// BuildContext is the read-only state a builder may consult.
type BuildContext struct {
	Shot        Shot
	RequestedBy string
}

// ValidationError blocks a submission before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type modeBuilder func(draft Draft, bc BuildContext, p *Payload, ref *dto.RefData) error

var builders = map[Mode]modeBuilder{
	dto.ModeManual:             buildManual,
	dto.ModeAutomatic:          buildAutomatic,
	dto.ModeStoryboardEnhancer: buildStoryboardEnhancer,
	dto.ModeAngles:             buildAngles,
}

// Build validates draft and turns it into a payload plus the ref data the
// optimistic record should carry.
func Build(draft Draft, bc BuildContext) (Payload, dto.RefData, error) {
	if draft.Mode == dto.ModeBackgroundGrid {
		return Payload{}, dto.RefData{}, &ValidationError{Field: "mode", Message: "Background grid runs through its own panel."}
	}
	build, ok := builders[draft.Mode]
	if !ok {
		return Payload{}, dto.RefData{}, &ValidationError{Field: "mode", Message: fmt.Sprintf("Unknown generation mode %q.", draft.Mode)}
	}

	p := Payload{
		Mode:        draft.Mode,
		ShotID:      bc.Shot.ID,
		RequestedBy: strings.TrimSpace(bc.RequestedBy),
		Prompt:      strings.TrimSpace(draft.Prompt),
		Model:       strings.TrimSpace(draft.Model),
		AspectRatio: strings.TrimSpace(draft.AspectRatio),
		Resolution:  strings.TrimSpace(draft.Resolution),
	}
	ref := dto.RefData{Mode: draft.Mode}
	if err := build(draft, bc, &p, &ref); err != nil {
		return Payload{}, dto.RefData{}, err
	}
	return p, ref, nil
}

func buildManual(draft Draft, _ BuildContext, p *Payload, ref *dto.RefData) error {
	if p.Prompt == "" {
		return &ValidationError{Field: "prompt", Message: "Please enter a prompt for manual generation."}
	}
	for _, f := range draft.Manual.References {
		if f.Empty() {
			continue
		}
		p.ReferenceFiles = append(p.ReferenceFiles, f)
		ref.ManualRefs = append(ref.ManualRefs, dto.ReferenceFile{Name: f.Name, Type: f.ContentType})
	}
	return nil
}

func buildAutomatic(draft Draft, bc BuildContext, p *Payload, ref *dto.RefData) error {
	in := draft.Automatic
	selected := make(map[string]bool, len(in.SelectedTabs))
	for _, tab := range in.SelectedTabs {
		selected[tab] = true
	}

	if selected[TabStoryboard] {
		p.AutoStoryboard, p.AutoStoryboardURL = resolveTab(in.Uploads[TabStoryboard], bc.Shot.StoryboardURL)
		ref.StoryboardURL = p.AutoStoryboardURL
	}
	if selected[TabBackground] {
		p.AutoBackground, p.AutoBackgroundURL = resolveTab(in.Uploads[TabBackground], firstNonEmpty(bc.Shot.BackgroundURLs))
		ref.BackgroundURL = p.AutoBackgroundURL
	}
	if selected[TabLighting] {
		p.AutoLighting, p.AutoLightingURL = resolveTab(in.Uploads[TabLighting], bc.Shot.StyleURL)
		ref.LightingURL = p.AutoLightingURL
	}

	seen := make(map[string]bool)
	addURL := func(c dto.CharacterRef) {
		c.Name = strings.TrimSpace(c.Name)
		c.URL = strings.TrimSpace(c.URL)
		if c.URL == "" || seen[c.URL] {
			return
		}
		seen[c.URL] = true
		p.CharacterURLs = append(p.CharacterURLs, c)
		ref.Characters = append(ref.Characters, c)
	}

	for i, tab := range in.CharacterTabs {
		if !selected[tab.ID] {
			continue
		}
		name := strings.TrimSpace(tab.Name)
		if name == "" {
			name = fmt.Sprintf("Character %d", i+1)
		}
		switch {
		case !tab.File.Empty():
			p.CharacterFiles = append(p.CharacterFiles, NamedFile{Name: name, File: *tab.File})
			ref.Characters = append(ref.Characters, dto.CharacterRef{Name: name})
		case strings.TrimSpace(tab.URL) != "":
			addURL(dto.CharacterRef{Name: name, URL: tab.URL})
		}
	}
	for _, c := range in.CharacterResources {
		addURL(c)
	}
	for _, c := range MentionedCharacters(p.Prompt, in.CharacterLibrary) {
		addURL(c)
	}
	return nil
}

func buildStoryboardEnhancer(draft Draft, bc BuildContext, p *Payload, ref *dto.RefData) error {
	p.StoryboardFile, p.StoryboardURL = resolveTab(draft.StoryboardEnhancer.Storyboard, bc.Shot.StoryboardURL)
	ref.StoryboardURL = p.StoryboardURL
	return nil
}

func buildAngles(draft Draft, _ BuildContext, p *Payload, ref *dto.RefData) error {
	in := draft.Angles
	p.Angles = dto.AnglesInputs{
		Angle:      strings.TrimSpace(in.Angle),
		Length:     strings.TrimSpace(in.Length),
		Focus:      strings.TrimSpace(in.Focus),
		Background: strings.TrimSpace(in.Background),
	}
	if !in.Anchor.Empty() {
		anchor := *in.Anchor
		p.AnchorImage = &anchor
	}
	if !in.Target.Empty() {
		target := *in.Target
		p.TargetImage = &target
	}
	angles := p.Angles
	ref.AnglesInputs = &angles
	return nil
}

// BuildGrid validates a background-grid request.
func BuildGrid(in GridInputs, shotID string) (GridPayload, error) {
	if in.BaseImage.Empty() {
		return GridPayload{}, &ValidationError{Field: "base_image", Message: "Please upload a base image for the background grid."}
	}
	return GridPayload{
		ShotID:      shotID,
		BaseImage:   *in.BaseImage,
		Context:     strings.TrimSpace(in.Context),
		AspectRatio: strings.TrimSpace(in.AspectRatio),
	}, nil
}

// NewOptimisticRecord fabricates the pending placeholder shown while a
// submission is in flight.
func NewOptimisticRecord(id string, p Payload, ref dto.RefData, createdAt time.Time) GenerationRecord {
	refCopy := ref
	return GenerationRecord{
		ID:          id,
		ShotID:      p.ShotID,
		Prompt:      p.Prompt,
		Model:       p.Model,
		Resolution:  p.Resolution,
		AspectRatio: p.AspectRatio,
		Status:      dto.StatusPending,
		RequestedBy: p.RequestedBy,
		CreatedAt:   createdAt,
		RefData:     &refCopy,
	}
}

// resolveTab prefers an uploaded file and falls back to a known URL.
func resolveTab(upload *File, fallbackURL string) (*File, string) {
	if !upload.Empty() {
		f := *upload
		return &f, ""
	}
	return nil, strings.TrimSpace(fallbackURL)
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
