package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newProfileCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect or create the workstation profile",
	}

	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample profile",
		Annotations: map[string]string{"skipProfileLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(*ctx.configFlag)
			if path == "" {
				var err error
				if path, err = defaultProfilePath(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("profile %s already exists", path)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := writeSampleProfile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureProfile()
			if err != nil {
				return err
			}
			token := "(none)"
			if cfg.Token != "" {
				token = "(set)"
			}
			rows := [][]string{
				{"file", ctx.profilePath},
				{"server_url", cfg.ServerURL},
				{"token", token},
				{"requested_by", cfg.RequestedBy},
				{"default_model", cfg.DefaultModel},
				{"default_aspect_ratio", cfg.DefaultAspectRatio},
				{"default_resolution", cfg.DefaultResolution},
				{"poll_interval_seconds", strconv.Itoa(cfg.PollIntervalSeconds)},
				{"characters", strconv.Itoa(len(cfg.Characters))},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
