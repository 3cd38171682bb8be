package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"studio/internal/workstation"

	"github.com/spf13/cobra"
)

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var assumeYes, resubmit, watch bool

	cmd := &cobra.Command{
		Use:   "restore <generation-id>",
		Short: "Re-fetch the inputs of a past generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			if _, err := session.Tick(cmd.Context()); err != nil {
				return err
			}

			confirm := promptConfirmer{in: cmd.InOrStdin(), out: cmd.ErrOrStderr(), assumeYes: assumeYes}
			restored, err := session.Restore(cmd.Context(), strings.TrimSpace(args[0]), confirm)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderDraft(restored.Draft))
			for _, failed := range restored.Failed {
				fmt.Fprintf(out, "Could not fetch %s; input left out.\n", failed)
			}

			if outDir != "" {
				written, err := writeDraftFiles(outDir, restored.Draft)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %d file(s) to %s\n", written, outDir)
			}

			if !resubmit {
				return nil
			}
			return submitAndReport(cmd.Context(), session, restored.Draft, watch, out)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to write restored files into")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&resubmit, "resubmit", false, "Submit the restored inputs as a new generation")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "With --resubmit, poll until settled")
	return cmd
}

func renderDraft(d workstation.Draft) string {
	rows := [][]string{
		{"mode", string(d.Mode)},
		{"prompt", truncate(d.Prompt, 72)},
		{"model", d.Model},
		{"aspect_ratio", d.AspectRatio},
		{"resolution", d.Resolution},
	}
	for _, f := range draftFiles(d) {
		rows = append(rows, []string{f.label, fmt.Sprintf("%s (%s, %d bytes)", f.file.Name, f.file.ContentType, len(f.file.Data))})
	}
	if d.Automatic.SelectedTabs != nil {
		rows = append(rows, []string{"tabs", strings.Join(d.Automatic.SelectedTabs, ", ")})
	}
	for _, c := range d.Automatic.CharacterResources {
		rows = append(rows, []string{"character", c.Name + " " + c.URL})
	}
	for _, pair := range [][2]string{
		{"angle", d.Angles.Angle},
		{"length", d.Angles.Length},
		{"focus", d.Angles.Focus},
		{"angle_background", d.Angles.Background},
	} {
		if pair[1] != "" {
			rows = append(rows, []string{pair[0], pair[1]})
		}
	}
	return renderTable([]string{"Input", "Value"}, rows, nil)
}

type labeledFile struct {
	label string
	file  workstation.File
}

func draftFiles(d workstation.Draft) []labeledFile {
	var files []labeledFile
	add := func(label string, f *workstation.File) {
		if !f.Empty() {
			files = append(files, labeledFile{label: label, file: *f})
		}
	}
	for i := range d.Manual.References {
		add("reference", &d.Manual.References[i])
	}
	tabs := make([]string, 0, len(d.Automatic.Uploads))
	for tab := range d.Automatic.Uploads {
		tabs = append(tabs, tab)
	}
	sort.Strings(tabs)
	for _, tab := range tabs {
		add(tab, d.Automatic.Uploads[tab])
	}
	for _, c := range d.Automatic.CharacterTabs {
		add("character "+c.Name, c.File)
	}
	add("storyboard", d.StoryboardEnhancer.Storyboard)
	add("anchor", d.Angles.Anchor)
	add("target", d.Angles.Target)
	return files
}

func writeDraftFiles(dir string, d workstation.Draft) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	used := map[string]int{}
	written := 0
	for _, f := range draftFiles(d) {
		name := filepath.Base(f.file.Name)
		if name == "" || name == "." || name == string(filepath.Separator) {
			name = "file"
		}
		if n := used[name]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
		}
		used[filepath.Base(f.file.Name)]++
		if err := os.WriteFile(filepath.Join(dir, name), f.file.Data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written++
	}
	return written, nil
}
