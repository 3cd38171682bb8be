package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"studio/internal/entity/dto"
	"studio/internal/workstation"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

var tinyPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestGenerateOptionsDraft(t *testing.T) {
	cfg := defaultProfile()
	cfg.DefaultModel = "profile-model"
	cfg.DefaultAspectRatio = "16:9"
	cfg.Characters = []dto.CharacterRef{{Name: "Mia", URL: "https://cdn/mia.png"}}

	t.Run("manual reads references and profile defaults", func(t *testing.T) {
		ref := writeTempFile(t, "board.png", tinyPNG)
		draft, err := generateOptions{mode: "Manual", prompt: "dusk", references: []string{ref}, resolution: "4K"}.draft(cfg)
		if err != nil {
			t.Fatalf("draft: %v", err)
		}
		if draft.Mode != dto.ModeManual || draft.Model != "profile-model" || draft.AspectRatio != "16:9" || draft.Resolution != "4K" {
			t.Errorf("draft = %+v", draft)
		}
		if len(draft.Manual.References) != 1 || draft.Manual.References[0].Name != "board.png" || draft.Manual.References[0].ContentType != "image/png" {
			t.Errorf("references = %+v", draft.Manual.References)
		}
	})

	t.Run("automatic selects tabs in a stable order", func(t *testing.T) {
		light := writeTempFile(t, "light.png", tinyPNG)
		face := writeTempFile(t, "leo.png", tinyPNG)
		opts := generateOptions{
			mode:       "automatic",
			tabs:       []string{"background"},
			lighting:   light,
			characters: []string{"Leo=" + face, "Ann=https://cdn/ann.png"},
			resources:  []string{"Mia=https://cdn/mia.png"},
		}
		draft, err := opts.draft(cfg)
		if err != nil {
			t.Fatalf("draft: %v", err)
		}
		in := draft.Automatic
		want := []string{workstation.TabBackground, workstation.TabLighting, "character-1", "character-2"}
		if !reflect.DeepEqual(in.SelectedTabs, want) {
			t.Errorf("tabs = %v, want %v", in.SelectedTabs, want)
		}
		if in.Uploads[workstation.TabLighting].Empty() {
			t.Error("lighting upload missing")
		}
		if in.CharacterTabs[0].File.Empty() || in.CharacterTabs[1].URL != "https://cdn/ann.png" {
			t.Errorf("character tabs = %+v", in.CharacterTabs)
		}
		if len(in.CharacterResources) != 1 || len(in.CharacterLibrary) != 1 {
			t.Errorf("resources = %+v library = %+v", in.CharacterResources, in.CharacterLibrary)
		}
	})

	t.Run("absolute character path is read from disk", func(t *testing.T) {
		face := writeTempFile(t, "ann.png", tinyPNG)
		if !filepath.IsAbs(face) {
			t.Fatalf("temp path %q is not absolute", face)
		}
		opts := generateOptions{
			mode:       "automatic",
			characters: []string{"Ann=" + face, "Leo=/files/refs/leo.png"},
		}
		draft, err := opts.draft(cfg)
		if err != nil {
			t.Fatalf("draft: %v", err)
		}
		tabs := draft.Automatic.CharacterTabs
		if len(tabs) != 2 {
			t.Fatalf("character tabs = %+v", tabs)
		}
		if tabs[0].File.Empty() || tabs[0].URL != "" {
			t.Errorf("local tab = %+v", tabs[0])
		}
		if tabs[1].URL != "/files/refs/leo.png" || !tabs[1].File.Empty() {
			t.Errorf("uploaded tab = %+v", tabs[1])
		}
	})

	t.Run("unknown tab", func(t *testing.T) {
		if _, err := (generateOptions{mode: "automatic", tabs: []string{"sky"}}).draft(cfg); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("malformed character", func(t *testing.T) {
		if _, err := (generateOptions{mode: "automatic", characters: []string{"Leo"}}).draft(cfg); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("angles reads anchor and target", func(t *testing.T) {
		anchor := writeTempFile(t, "anchor.png", tinyPNG)
		draft, err := generateOptions{mode: "angles", angle: "low", anchor: anchor}.draft(cfg)
		if err != nil {
			t.Fatalf("draft: %v", err)
		}
		if draft.Angles.Angle != "low" || draft.Angles.Anchor.Empty() || draft.Angles.Target != nil {
			t.Errorf("angles = %+v", draft.Angles)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := (generateOptions{mode: "storyboard_enhancer", storyboard: "/nonexistent/board.png"}).draft(cfg); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestSplitNamed(t *testing.T) {
	cases := []struct {
		raw       string
		name, val string
		wantErr   bool
	}{
		{raw: "Mia=mia.png", name: "Mia", val: "mia.png"},
		{raw: " Leo = https://cdn/leo.png?x=1", name: "Leo", val: "https://cdn/leo.png?x=1"},
		{raw: "Mia", wantErr: true},
		{raw: "Mia=", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			name, val, err := splitNamed(tc.raw)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v", err)
			}
			if name != tc.name || val != tc.val {
				t.Errorf("got %q %q", name, val)
			}
		})
	}
}

func TestIsRemoteRef(t *testing.T) {
	local := writeTempFile(t, "local.png", tinyPNG)
	cases := []struct {
		value string
		want  bool
	}{
		{value: "https://cdn/leo.png", want: true},
		{value: "http://cdn/leo.png", want: true},
		{value: "/files/refs/leo.png", want: true},
		{value: local, want: false},
		{value: "leo.png", want: false},
		{value: "/no/such/leo.png", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			if got := isRemoteRef(tc.value); got != tc.want {
				t.Errorf("isRemoteRef(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestWriteDraftFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	draft := workstation.Draft{
		Mode: dto.ModeManual,
		Manual: workstation.ManualInputs{References: []workstation.File{
			{Name: "ref.png", ContentType: "image/png", Data: tinyPNG},
			{Name: "ref.png", ContentType: "image/png", Data: tinyPNG},
			{Name: "empty.png"},
		}},
	}
	written, err := writeDraftFiles(dir, draft)
	if err != nil {
		t.Fatalf("writeDraftFiles: %v", err)
	}
	if written != 2 {
		t.Fatalf("written = %d", written)
	}
	for _, name := range []string{"ref.png", "ref-1.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}
