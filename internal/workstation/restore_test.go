package workstation

import (
	"context"
	"errors"
	"slices"
	"testing"

	"studio/internal/entity/dto"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestRestoreManualPartialFailure(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	fetcher := &fakeFetcher{files: map[string]File{
		"https://cdn/ok.png": {Name: "download", ContentType: "application/octet-stream", Data: []byte("ok")},
	}}
	record := rec("srv-1", dto.StatusCompleted, 0)
	record.RefData = &dto.RefData{
		Mode: dto.ModeManual,
		ManualRefs: []dto.ReferenceFile{
			{Name: "ok.png", URL: "https://cdn/ok.png", Type: "image/png"},
			{Name: "gone.png", URL: "https://cdn/gone.png", Type: "image/png"},
		},
	}

	restored, err := NewRestorer(fetcher).Restore(context.Background(), record)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	refs := restored.Draft.Manual.References
	if len(refs) != 1 {
		t.Fatalf("references = %d, want 1", len(refs))
	}
	if refs[0].Name != "ok.png" || refs[0].ContentType != "image/png" {
		t.Errorf("reference = %+v", refs[0])
	}
	if !slices.Equal(restored.Failed, []string{"https://cdn/gone.png"}) {
		t.Errorf("failed = %v", restored.Failed)
	}

	warned := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["url"] == "https://cdn/gone.png" {
			warned = true
		}
	}
	if !warned {
		t.Error("fetch failure was not logged")
	}
}

func TestRestoreAutomatic(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]File{
		"https://cdn/board.png": *png("board"),
		"https://cdn/mira.png":  *png("mira"),
	}}
	record := rec("srv-1", dto.StatusCompleted, 0)
	record.Prompt = "@Mira runs"
	record.Model = "seedream-4"
	record.RefData = &dto.RefData{
		Mode:          dto.ModeAutomatic,
		StoryboardURL: "https://cdn/board.png",
		BackgroundURL: "https://cdn/bg.png",
		Characters: []dto.CharacterRef{
			{Name: "Mira", URL: "https://cdn/mira.png"},
			{Name: "Kai", URL: "https://cdn/kai.png"},
			{Name: "Uploaded"},
		},
	}

	restored, err := NewRestorer(fetcher).Restore(context.Background(), record)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	d := restored.Draft
	if d.Mode != dto.ModeAutomatic || d.Prompt != "@Mira runs" || d.Model != "seedream-4" {
		t.Errorf("draft header = %+v", d)
	}
	in := d.Automatic
	if in.Uploads[TabStoryboard] == nil {
		t.Error("storyboard not restored")
	}
	if len(in.CharacterTabs) != 1 || in.CharacterTabs[0].Name != "Mira" || in.CharacterTabs[0].File.Empty() {
		t.Fatalf("character tabs = %+v", in.CharacterTabs)
	}
	want := []string{TabStoryboard, TabBackground, in.CharacterTabs[0].ID}
	if !slices.Equal(in.SelectedTabs, want) {
		t.Errorf("selected tabs = %v, want %v", in.SelectedTabs, want)
	}
	if !fetcher.opts["https://cdn/mira.png"].NoReferrer {
		t.Error("character fetched with referrer")
	}
	if fetcher.opts["https://cdn/board.png"].NoReferrer {
		t.Error("storyboard fetched in no-referrer mode")
	}
	if !slices.Equal(restored.Failed, []string{"https://cdn/kai.png"}) {
		t.Errorf("failed = %v", restored.Failed)
	}
}

func TestRestoreAngles(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]File{"https://cdn/anchor.png": *png("anchor")}}

	tests := []struct {
		name       string
		ref        dto.RefData
		wantAngle  string
		wantAnchor bool
	}{
		{
			name: "inputs and anchor",
			ref: dto.RefData{
				Mode:         dto.ModeAngles,
				AnchorURL:    "https://cdn/anchor.png",
				AnglesInputs: &dto.AnglesInputs{Angle: "low", Focus: "hands"},
			},
			wantAngle:  "low",
			wantAnchor: true,
		},
		{
			name: "missing inputs default to empty",
			ref:  dto.RefData{Mode: dto.ModeAngles},
		},
		{
			name: "anchor that fails to fetch stays nil",
			ref:  dto.RefData{Mode: dto.ModeAngles, AnchorURL: "https://cdn/missing.png"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := rec("srv-1", dto.StatusCompleted, 0)
			ref := tt.ref
			record.RefData = &ref

			restored, err := NewRestorer(fetcher).Restore(context.Background(), record)
			if err != nil {
				t.Fatalf("Restore: %v", err)
			}
			a := restored.Draft.Angles
			if a.Angle != tt.wantAngle || a.Length != "" || a.Background != "" {
				t.Errorf("angles = %+v", a)
			}
			if (a.Anchor != nil) != tt.wantAnchor {
				t.Errorf("anchor = %v, want present=%v", a.Anchor, tt.wantAnchor)
			}
			if a.Target != nil {
				t.Errorf("target = %v, want nil", a.Target)
			}
		})
	}
}

func TestRestoreStoryboardEnhancer(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]File{"https://cdn/frames/board.png": {Data: []byte("x")}}}
	record := rec("srv-1", dto.StatusCompleted, 0)
	record.RefData = &dto.RefData{Mode: dto.ModeStoryboardEnhancer, StoryboardURL: "https://cdn/frames/board.png?sig=abc"}
	fetcher.files[record.RefData.StoryboardURL] = File{Data: []byte("x")}

	restored, err := NewRestorer(fetcher).Restore(context.Background(), record)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	board := restored.Draft.StoryboardEnhancer.Storyboard
	if board == nil || board.Name != "board.png" {
		t.Errorf("storyboard = %+v", board)
	}
}

func TestRestoreRejectsRecordsWithoutRefData(t *testing.T) {
	r := NewRestorer(&fakeFetcher{})
	if _, err := r.Restore(context.Background(), rec("a", dto.StatusCompleted, 0)); !errors.Is(err, ErrNoRefData) {
		t.Errorf("err = %v, want ErrNoRefData", err)
	}
	record := rec("a", dto.StatusCompleted, 0)
	record.RefData = &dto.RefData{Mode: dto.ModeBackgroundGrid}
	if _, err := r.Restore(context.Background(), record); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("err = %v, want ErrUnsupportedMode", err)
	}
}
