package workstation

import (
	"errors"
	"slices"
	"testing"

	"studio/internal/entity/dto"
)

func testShot() Shot {
	return Shot{
		ID:             "shot-1",
		StoryboardURL:  "s.png",
		StyleURL:       "style.png",
		BackgroundURLs: []string{"b1.png", "b2.png"},
	}
}

func png(name string) *File {
	return &File{Name: name, ContentType: "image/png", Data: []byte("\x89PNG" + name)}
}

func TestBuildAutomaticFallsBackToShotURLs(t *testing.T) {
	draft := Draft{
		Mode: dto.ModeAutomatic,
		Automatic: AutomaticInputs{
			SelectedTabs: []string{TabStoryboard, TabBackground},
		},
	}

	p, ref, err := Build(draft, BuildContext{Shot: testShot()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.AutoStoryboardURL != "s.png" {
		t.Errorf("auto_storyboard_url = %q, want s.png", p.AutoStoryboardURL)
	}
	if p.AutoBackgroundURL != "b1.png" {
		t.Errorf("auto_background_url = %q, want b1.png", p.AutoBackgroundURL)
	}
	if p.AutoStoryboard != nil || p.AutoBackground != nil {
		t.Error("file fields set without uploads")
	}
	if p.AutoLighting != nil || p.AutoLightingURL != "" {
		t.Error("lighting resolved although its tab is not selected")
	}
	if ref.StoryboardURL != "s.png" || ref.BackgroundURL != "b1.png" {
		t.Errorf("ref data = %+v", ref)
	}
}

func TestBuildAutomaticTabs(t *testing.T) {
	tests := []struct {
		name   string
		shot   Shot
		inputs AutomaticInputs
		check  func(t *testing.T, p Payload, ref dto.RefData)
	}{
		{
			name: "upload beats fallback url",
			shot: testShot(),
			inputs: AutomaticInputs{
				SelectedTabs: []string{TabStoryboard},
				Uploads:      map[string]*File{TabStoryboard: png("board.png")},
			},
			check: func(t *testing.T, p Payload, ref dto.RefData) {
				if p.AutoStoryboard == nil || p.AutoStoryboard.Name != "board.png" {
					t.Fatalf("storyboard file = %+v", p.AutoStoryboard)
				}
				if p.AutoStoryboardURL != "" || ref.StoryboardURL != "" {
					t.Error("url set alongside upload")
				}
			},
		},
		{
			name: "no upload and no fallback contributes nothing",
			shot: Shot{ID: "shot-1"},
			inputs: AutomaticInputs{
				SelectedTabs: []string{TabStoryboard, TabBackground, TabLighting},
			},
			check: func(t *testing.T, p Payload, _ dto.RefData) {
				if p.AutoStoryboard != nil || p.AutoStoryboardURL != "" ||
					p.AutoBackground != nil || p.AutoBackgroundURL != "" ||
					p.AutoLighting != nil || p.AutoLightingURL != "" {
					t.Errorf("unexpected tab output: %+v", p)
				}
			},
		},
		{
			name: "background skips blank entries",
			shot: Shot{ID: "shot-1", BackgroundURLs: []string{" ", "b2.png"}},
			inputs: AutomaticInputs{
				SelectedTabs: []string{TabBackground},
			},
			check: func(t *testing.T, p Payload, _ dto.RefData) {
				if p.AutoBackgroundURL != "b2.png" {
					t.Errorf("auto_background_url = %q", p.AutoBackgroundURL)
				}
			},
		},
		{
			name: "lighting falls back to style url",
			shot: testShot(),
			inputs: AutomaticInputs{
				SelectedTabs: []string{TabLighting},
			},
			check: func(t *testing.T, p Payload, ref dto.RefData) {
				if p.AutoLightingURL != "style.png" || ref.LightingURL != "style.png" {
					t.Errorf("lighting = %q / %q", p.AutoLightingURL, ref.LightingURL)
				}
			},
		},
		{
			name: "characters split into files and urls",
			shot: testShot(),
			inputs: AutomaticInputs{
				SelectedTabs: []string{"c1", "c2", "c4"},
				CharacterTabs: []CharacterTab{
					{ID: "c1", Name: "Mira", File: png("mira.png")},
					{ID: "c2", URL: "https://cdn/kai.png"},
					{ID: "c3", Name: "Unselected", URL: "https://cdn/nope.png"},
					{ID: "c4", Name: "Empty"},
				},
				CharacterResources: []dto.CharacterRef{
					{Name: "Kai", URL: "https://cdn/kai.png"},
					{Name: "Otto", URL: "https://cdn/otto.png"},
				},
			},
			check: func(t *testing.T, p Payload, ref dto.RefData) {
				if len(p.CharacterFiles) != 1 || p.CharacterFiles[0].Name != "Mira" {
					t.Fatalf("character files = %+v", p.CharacterFiles)
				}
				want := []dto.CharacterRef{
					{Name: "Character 2", URL: "https://cdn/kai.png"},
					{Name: "Otto", URL: "https://cdn/otto.png"},
				}
				if !slices.Equal(p.CharacterURLs, want) {
					t.Errorf("character urls = %+v, want %+v", p.CharacterURLs, want)
				}
				if len(ref.Characters) != 3 {
					t.Errorf("ref characters = %+v", ref.Characters)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ref, err := Build(Draft{Mode: dto.ModeAutomatic, Automatic: tt.inputs}, BuildContext{Shot: tt.shot})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			tt.check(t, p, ref)
		})
	}
}

func TestBuildAutomaticMentions(t *testing.T) {
	draft := Draft{
		Mode:   dto.ModeAutomatic,
		Prompt: "@mira_rose waves at @Kai and @kai again, @nobody watches",
		Automatic: AutomaticInputs{
			CharacterLibrary: []dto.CharacterRef{
				{Name: "Mira Rose", URL: "https://cdn/mira.png"},
				{Name: "Kai", URL: "https://cdn/kai.png"},
			},
		},
	}
	p, _, err := Build(draft, BuildContext{Shot: testShot()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []dto.CharacterRef{
		{Name: "Mira Rose", URL: "https://cdn/mira.png"},
		{Name: "Kai", URL: "https://cdn/kai.png"},
	}
	if !slices.Equal(p.CharacterURLs, want) {
		t.Errorf("character urls = %+v, want %+v", p.CharacterURLs, want)
	}
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
		field string
	}{
		{name: "manual needs a prompt", draft: Draft{Mode: dto.ModeManual, Prompt: "   "}, field: "prompt"},
		{name: "grid goes through BuildGrid", draft: Draft{Mode: dto.ModeBackgroundGrid}, field: "mode"},
		{name: "unknown mode", draft: Draft{Mode: "sketch"}, field: "mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Build(tt.draft, BuildContext{Shot: testShot()})
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestBuildOptionalPromptModes(t *testing.T) {
	for _, mode := range []Mode{dto.ModeAutomatic, dto.ModeStoryboardEnhancer, dto.ModeAngles} {
		t.Run(string(mode), func(t *testing.T) {
			if _, _, err := Build(Draft{Mode: mode}, BuildContext{Shot: testShot()}); err != nil {
				t.Fatalf("empty prompt rejected: %v", err)
			}
		})
	}
}

func TestBuildManual(t *testing.T) {
	draft := Draft{
		Mode:   dto.ModeManual,
		Prompt: "  hero walk cycle ",
		Model:  "seedream-4",
		Manual: ManualInputs{References: []File{*png("a.png"), {Name: "empty.png"}}},
	}
	p, ref, err := Build(draft, BuildContext{Shot: testShot(), RequestedBy: "ana"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Prompt != "hero walk cycle" || p.ShotID != "shot-1" || p.RequestedBy != "ana" || p.Model != "seedream-4" {
		t.Errorf("payload header = %+v", p)
	}
	if len(p.ReferenceFiles) != 1 || len(ref.ManualRefs) != 1 || ref.ManualRefs[0].Name != "a.png" {
		t.Errorf("references = %+v / %+v", p.ReferenceFiles, ref.ManualRefs)
	}
	if ref.Mode != dto.ModeManual {
		t.Errorf("ref mode = %q", ref.Mode)
	}
}

func TestBuildStoryboardEnhancer(t *testing.T) {
	p, ref, err := Build(Draft{Mode: dto.ModeStoryboardEnhancer}, BuildContext{Shot: testShot()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.StoryboardFile != nil || p.StoryboardURL != "s.png" || ref.StoryboardURL != "s.png" {
		t.Errorf("fallback not used: %+v", p)
	}

	p, _, err = Build(Draft{
		Mode:               dto.ModeStoryboardEnhancer,
		StoryboardEnhancer: StoryboardEnhancerInputs{Storyboard: png("frame.png")},
	}, BuildContext{Shot: testShot()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.StoryboardFile == nil || p.StoryboardURL != "" {
		t.Errorf("upload not used: %+v", p)
	}
}

func TestBuildAngles(t *testing.T) {
	draft := Draft{
		Mode: dto.ModeAngles,
		Angles: AnglesInputs{
			Angle:  " low ",
			Focus:  "hands",
			Anchor: png("anchor.png"),
			Target: &File{Name: "blank.png"},
		},
	}
	p, ref, err := Build(draft, BuildContext{Shot: testShot()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Angles.Angle != "low" || p.Angles.Focus != "hands" || p.Angles.Length != "" {
		t.Errorf("angles = %+v", p.Angles)
	}
	if p.AnchorImage == nil || p.TargetImage != nil {
		t.Errorf("anchor/target = %v / %v", p.AnchorImage, p.TargetImage)
	}
	if ref.AnglesInputs == nil || ref.AnglesInputs.Angle != "low" {
		t.Errorf("ref angles = %+v", ref.AnglesInputs)
	}
}

func TestBuildGrid(t *testing.T) {
	if _, err := BuildGrid(GridInputs{Context: "forest"}, "shot-1"); err == nil {
		t.Fatal("missing base image accepted")
	}
	p, err := BuildGrid(GridInputs{BaseImage: png("base.png"), Context: " forest ", AspectRatio: "16:9"}, "shot-1")
	if err != nil {
		t.Fatalf("BuildGrid: %v", err)
	}
	if p.ShotID != "shot-1" || p.Context != "forest" || p.AspectRatio != "16:9" || p.BaseImage.Name != "base.png" {
		t.Errorf("grid payload = %+v", p)
	}
}

func TestNewOptimisticRecord(t *testing.T) {
	p := Payload{ShotID: "shot-1", Prompt: "x", Model: "m", AspectRatio: "1:1", Resolution: "2K"}
	ref := dto.RefData{Mode: dto.ModeManual}
	r := NewOptimisticRecord("temp-1", p, ref, baseTime)

	if r.ID != "temp-1" || !r.IsPending() || r.ImageURL != "" || !r.CreatedAt.Equal(baseTime) {
		t.Errorf("record = %+v", r)
	}
	if r.RefData == nil || r.RefData.Mode != dto.ModeManual {
		t.Errorf("ref data = %+v", r.RefData)
	}
}

func TestMentionedCharacters(t *testing.T) {
	library := []dto.CharacterRef{
		{Name: "Mira Rose", URL: "m.png"},
		{Name: "Kai", URL: "k.png"},
		{Name: "NoURL"},
	}
	tests := []struct {
		name   string
		prompt string
		want   []string
	}{
		{name: "no mentions", prompt: "a quiet street", want: nil},
		{name: "case insensitive", prompt: "@KAI runs", want: []string{"Kai"}},
		{name: "underscores for spaces", prompt: "@mira_rose and @Kai", want: []string{"Mira Rose", "Kai"}},
		{name: "repeats collapse", prompt: "@Kai @kai @KAI", want: []string{"Kai"}},
		{name: "characters without url ignored", prompt: "@NoURL", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range MentionedCharacters(tt.prompt, library) {
				got = append(got, c.Name)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
