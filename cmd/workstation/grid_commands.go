package main

import (
	"fmt"
	"strconv"
	"strings"

	"studio/internal/workstation"

	"github.com/spf13/cobra"
)

func newGridCommand(ctx *commandContext) *cobra.Command {
	var basePath, gridContext, aspectRatio string
	var keep []int

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Generate background candidates from a base image",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := readInputFile(basePath)
			if err != nil {
				return err
			}
			session, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			urls, err := session.GenerateBackgroundGrid(cmd.Context(), workstation.GridInputs{
				BaseImage:   base,
				Context:     gridContext,
				AspectRatio: aspectRatio,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(urls))
			for i, u := range urls {
				rows = append(rows, []string{strconv.Itoa(i + 1), u})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"#", "URL"}, rows, []columnAlignment{alignRight, alignLeft}))

			if len(keep) == 0 {
				return nil
			}
			selected := make([]string, 0, len(keep))
			for _, n := range keep {
				if n < 1 || n > len(urls) {
					return fmt.Errorf("--keep %d is out of range 1..%d", n, len(urls))
				}
				selected = append(selected, urls[n-1])
			}
			if err := session.SaveBackgroundSelections(cmd.Context(), selected); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %d background(s) to shot %s\n", len(selected), session.Shot().ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&basePath, "base", "", "Base image path")
	cmd.Flags().StringVar(&gridContext, "context", "", "Scene description for the candidates")
	cmd.Flags().StringVar(&aspectRatio, "aspect-ratio", "", "Aspect ratio such as 16:9")
	cmd.Flags().IntSliceVar(&keep, "keep", nil, "Candidate numbers to save as shot backgrounds")
	return cmd
}

func newSaveBackgroundsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save-backgrounds <url>...",
		Short: "Save image URLs as the shot's backgrounds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.SaveBackgroundSelections(cmd.Context(), args); err != nil {
				return err
			}
			shot := session.Shot()
			fmt.Fprintf(cmd.OutOrStdout(), "Shot %s backgrounds:\n  %s\n", shot.ID, strings.Join(shot.BackgroundURLs, "\n  "))
			return nil
		},
	}
}
