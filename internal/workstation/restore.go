package workstation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"studio/internal/entity/dto"

	"github.com/sirupsen/logrus"
)

var (
	ErrNoRefData       = errors.New("workstation: generation has no ref data")
	ErrUnsupportedMode = errors.New("workstation: mode cannot be restored")
)

// Restored is the input state rebuilt from a historical generation.
type Restored struct {
	Draft Draft
	// Failed lists the URLs that could not be fetched and were left out.
	Failed []string
}

// Restorer re-fetches the reference files of a generation.
type Restorer struct {
	fetcher BlobFetcher
}

// NewRestorer creates a Restorer backed by fetcher.
func NewRestorer(fetcher BlobFetcher) *Restorer {
	return &Restorer{fetcher: fetcher}
}

type restoreFunc func(r *Restorer, ctx context.Context, ref dto.RefData, out *Restored)

var restorers = map[Mode]restoreFunc{
	dto.ModeManual:             (*Restorer).restoreManual,
	dto.ModeAutomatic:          (*Restorer).restoreAutomatic,
	dto.ModeStoryboardEnhancer: (*Restorer).restoreStoryboardEnhancer,
	dto.ModeAngles:             (*Restorer).restoreAngles,
}

// Restore rebuilds a Draft from rec. Individual fetch failures are logged
// and the affected input is left out; only a missing or unknown ref data
// fails the whole restore.
func (r *Restorer) Restore(ctx context.Context, rec GenerationRecord) (Restored, error) {
	if rec.RefData == nil {
		return Restored{}, ErrNoRefData
	}
	ref := *rec.RefData
	restore, ok := restorers[ref.Mode]
	if !ok {
		return Restored{}, fmt.Errorf("%w: %q", ErrUnsupportedMode, ref.Mode)
	}

	out := Restored{Draft: Draft{
		Mode:        ref.Mode,
		Prompt:      rec.Prompt,
		Model:       rec.Model,
		AspectRatio: rec.AspectRatio,
		Resolution:  rec.Resolution,
	}}
	restore(r, ctx, ref, &out)

	logrus.WithFields(logrus.Fields{
		"generation_id": rec.ID,
		"mode":          ref.Mode,
		"failed":        len(out.Failed),
	}).Info("workstation: restored generation inputs")
	return out, nil
}

func (r *Restorer) restoreManual(ctx context.Context, ref dto.RefData, out *Restored) {
	for _, m := range ref.ManualRefs {
		f, ok := r.fetch(ctx, m.URL, m.Name, FetchOptions{}, out)
		if !ok {
			continue
		}
		if m.Type != "" {
			f.ContentType = m.Type
		}
		out.Draft.Manual.References = append(out.Draft.Manual.References, f)
	}
}

func (r *Restorer) restoreAutomatic(ctx context.Context, ref dto.RefData, out *Restored) {
	in := AutomaticInputs{
		SelectedTabs: []string{TabStoryboard, TabBackground},
		Uploads:      make(map[string]*File),
	}
	if ref.StoryboardURL != "" {
		if f, ok := r.fetch(ctx, ref.StoryboardURL, "", FetchOptions{}, out); ok {
			in.Uploads[TabStoryboard] = &f
		}
	}
	for _, c := range ref.Characters {
		if strings.TrimSpace(c.URL) == "" {
			continue
		}
		f, ok := r.fetch(ctx, c.URL, c.Name, FetchOptions{NoReferrer: true}, out)
		if !ok {
			continue
		}
		tab := CharacterTab{
			ID:   fmt.Sprintf("character-%d", len(in.CharacterTabs)+1),
			Name: c.Name,
			File: &f,
		}
		in.CharacterTabs = append(in.CharacterTabs, tab)
		in.SelectedTabs = append(in.SelectedTabs, tab.ID)
	}
	out.Draft.Automatic = in
}

func (r *Restorer) restoreStoryboardEnhancer(ctx context.Context, ref dto.RefData, out *Restored) {
	if ref.StoryboardURL == "" {
		return
	}
	if f, ok := r.fetch(ctx, ref.StoryboardURL, "", FetchOptions{}, out); ok {
		out.Draft.StoryboardEnhancer.Storyboard = &f
	}
}

func (r *Restorer) restoreAngles(ctx context.Context, ref dto.RefData, out *Restored) {
	var in AnglesInputs
	if a := ref.AnglesInputs; a != nil {
		in.Angle, in.Length, in.Focus, in.Background = a.Angle, a.Length, a.Focus, a.Background
	}
	// anchor and target stay nil unless a fetch succeeds
	if ref.AnchorURL != "" {
		if f, ok := r.fetch(ctx, ref.AnchorURL, "", FetchOptions{}, out); ok {
			in.Anchor = &f
		}
	}
	if ref.TargetURL != "" {
		if f, ok := r.fetch(ctx, ref.TargetURL, "", FetchOptions{}, out); ok {
			in.Target = &f
		}
	}
	out.Draft.Angles = in
}

func (r *Restorer) fetch(ctx context.Context, rawURL, name string, opts FetchOptions, out *Restored) (File, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return File{}, false
	}
	f, err := r.fetcher.FetchBlob(ctx, rawURL, opts)
	if err == nil && f.Empty() {
		err = errors.New("empty response body")
	}
	if err != nil {
		logrus.WithError(err).WithField("url", rawURL).Warn("workstation: restore fetch failed")
		out.Failed = append(out.Failed, rawURL)
		return File{}, false
	}
	if name = strings.TrimSpace(name); name != "" {
		f.Name = name
	} else if f.Name == "" {
		f.Name = fileNameFromURL(rawURL)
	}
	return f, true
}

func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "reference"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "reference"
	}
	return base
}
