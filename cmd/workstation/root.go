package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag, serverFlag, tokenFlag, shotFlag string
	var verbose bool

	ctx := newCommandContext(&configFlag, &serverFlag, &tokenFlag, &shotFlag, &verbose)

	rootCmd := &cobra.Command{
		Use:           "workstation",
		Short:         "Generate, watch and restore shot images from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx.setupLogging(cmd.ErrOrStderr())
			if shouldSkipProfile(cmd) {
				return nil
			}
			_, err := ctx.ensureProfile()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Profile path (default $XDG_CONFIG_HOME/studio/workstation.toml)")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Backend base URL, overrides server_url")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Requester token, overrides token")
	rootCmd.PersistentFlags().StringVarP(&shotFlag, "shot", "s", "", "Shot id")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newRestoreCommand(ctx))
	rootCmd.AddCommand(newGridCommand(ctx))
	rootCmd.AddCommand(newSaveBackgroundsCommand(ctx))
	rootCmd.AddCommand(newProfileCommand(ctx))

	return rootCmd
}
