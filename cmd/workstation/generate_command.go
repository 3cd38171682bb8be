package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"studio/internal/entity/dto"
	"studio/internal/workstation"

	"github.com/spf13/cobra"
)

type generateOptions struct {
	mode        string
	prompt      string
	model       string
	aspectRatio string
	resolution  string

	references []string

	tabs       []string
	storyboard string
	background string
	lighting   string
	characters []string
	resources  []string

	angle           string
	length          string
	focus           string
	angleBackground string
	anchor          string
	target          string

	watch bool
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Submit a generation for the shot",
		Example: `  workstation generate -s shot-12 --prompt "wide dusk shot" --ref board.png
  workstation generate -s shot-12 --mode automatic --tab storyboard --tab background --character Mia=mia.png
  workstation generate -s shot-12 --mode angles --angle low --length close-up --anchor frame.png --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureProfile()
			if err != nil {
				return err
			}
			draft, err := opts.draft(cfg)
			if err != nil {
				return err
			}

			session, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			return submitAndReport(cmd.Context(), session, draft, opts.watch, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.mode, "mode", "m", string(dto.ModeManual), "manual, automatic, storyboard_enhancer or angles")
	flags.StringVarP(&opts.prompt, "prompt", "p", "", "Prompt text; @Name mentions pull characters from the profile")
	flags.StringVar(&opts.model, "model", "", "Model id (default from profile)")
	flags.StringVar(&opts.aspectRatio, "aspect-ratio", "", "Aspect ratio such as 16:9")
	flags.StringVar(&opts.resolution, "resolution", "", "1K, 2K or 4K")
	flags.StringArrayVar(&opts.references, "ref", nil, "Manual reference image path (repeatable)")
	flags.StringArrayVar(&opts.tabs, "tab", nil, "Automatic tab to include: storyboard, background or lighting (repeatable)")
	flags.StringVar(&opts.storyboard, "storyboard", "", "Storyboard image path")
	flags.StringVar(&opts.background, "background", "", "Automatic background image path")
	flags.StringVar(&opts.lighting, "lighting", "", "Automatic lighting image path")
	flags.StringArrayVar(&opts.characters, "character", nil, "Character as Name=path-or-url (repeatable)")
	flags.StringArrayVar(&opts.resources, "resource", nil, "Library character as Name=url (repeatable)")
	flags.StringVar(&opts.angle, "angle", "", "Camera angle for angles mode")
	flags.StringVar(&opts.length, "length", "", "Shot length for angles mode")
	flags.StringVar(&opts.focus, "focus", "", "Focus subject for angles mode")
	flags.StringVar(&opts.angleBackground, "angle-background", "", "Background description for angles mode")
	flags.StringVar(&opts.anchor, "anchor", "", "Anchor frame path for angles mode")
	flags.StringVar(&opts.target, "target", "", "Target frame path for angles mode")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "Poll until the shot has no pending generations")

	return cmd
}

func (o generateOptions) draft(cfg profile) (workstation.Draft, error) {
	draft := workstation.Draft{
		Mode:        dto.GenerationMode(strings.ToLower(strings.TrimSpace(o.mode))),
		Prompt:      o.prompt,
		Model:       firstNonEmpty(o.model, cfg.DefaultModel),
		AspectRatio: firstNonEmpty(o.aspectRatio, cfg.DefaultAspectRatio),
		Resolution:  firstNonEmpty(o.resolution, cfg.DefaultResolution),
	}

	switch draft.Mode {
	case dto.ModeManual:
		for _, path := range o.references {
			file, err := readInputFile(path)
			if err != nil {
				return draft, err
			}
			draft.Manual.References = append(draft.Manual.References, *file)
		}

	case dto.ModeAutomatic:
		in := workstation.AutomaticInputs{
			Uploads:          map[string]*workstation.File{},
			CharacterLibrary: cfg.Characters,
		}
		selected := map[string]bool{}
		selectTab := func(tab string) {
			if !selected[tab] {
				selected[tab] = true
				in.SelectedTabs = append(in.SelectedTabs, tab)
			}
		}
		for _, tab := range o.tabs {
			tab = strings.ToLower(strings.TrimSpace(tab))
			switch tab {
			case workstation.TabStoryboard, workstation.TabBackground, workstation.TabLighting:
				selectTab(tab)
			default:
				return draft, fmt.Errorf("unknown tab %q", tab)
			}
		}
		// 指定了文件的标签自动选中
		for _, upload := range [][2]string{
			{workstation.TabStoryboard, o.storyboard},
			{workstation.TabBackground, o.background},
			{workstation.TabLighting, o.lighting},
		} {
			tab := upload[0]
			file, err := readInputFile(upload[1])
			if err != nil {
				return draft, err
			}
			if file != nil {
				in.Uploads[tab] = file
				selectTab(tab)
			}
		}
		for i, raw := range o.characters {
			name, value, err := splitNamed(raw)
			if err != nil {
				return draft, err
			}
			tab := workstation.CharacterTab{ID: fmt.Sprintf("character-%d", i+1), Name: name}
			if isRemoteRef(value) {
				tab.URL = value
			} else if tab.File, err = readInputFile(value); err != nil {
				return draft, err
			}
			in.CharacterTabs = append(in.CharacterTabs, tab)
			selectTab(tab.ID)
		}
		for _, raw := range o.resources {
			name, value, err := splitNamed(raw)
			if err != nil {
				return draft, err
			}
			in.CharacterResources = append(in.CharacterResources, dto.CharacterRef{Name: name, URL: value})
		}
		draft.Automatic = in

	case dto.ModeStoryboardEnhancer:
		file, err := readInputFile(o.storyboard)
		if err != nil {
			return draft, err
		}
		draft.StoryboardEnhancer.Storyboard = file

	case dto.ModeAngles:
		anchor, err := readInputFile(o.anchor)
		if err != nil {
			return draft, err
		}
		target, err := readInputFile(o.target)
		if err != nil {
			return draft, err
		}
		draft.Angles = workstation.AnglesInputs{
			Angle:      o.angle,
			Length:     o.length,
			Focus:      o.focus,
			Background: o.angleBackground,
			Anchor:     anchor,
			Target:     target,
		}
	}
	return draft, nil
}

// submitAndReport submits draft, waits for the create call and optionally
// polls until the shot settles.
func submitAndReport(ctx context.Context, session *workstation.Session, draft workstation.Draft, watch bool, out io.Writer) error {
	sub, err := session.Submit(ctx, draft)
	if err != nil {
		var verr *workstation.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%s: %s", verr.Field, verr.Message)
		}
		return err
	}
	fmt.Fprintf(out, "Submitted %s, waiting for the backend...\n", sub.TempID)

	result, err := sub.Wait(ctx)
	if err != nil {
		return err
	}
	if result.Outcome == workstation.OutcomeRolledBack {
		return fmt.Errorf("generation rolled back: %s", result.Message)
	}
	fmt.Fprintf(out, "Accepted as %s\n", result.GenerationID)

	if !watch {
		return nil
	}
	if err := waitForSettled(ctx, session, out); err != nil {
		return err
	}
	fmt.Fprintln(out, renderGenerations(session.Records()))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
