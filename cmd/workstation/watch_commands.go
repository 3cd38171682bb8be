package main

import (
	"context"
	"fmt"
	"io"

	"studio/internal/workstation"

	"github.com/spf13/cobra"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the shot's generations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			if _, err := session.Tick(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderGenerations(session.Records()))
			return nil
		},
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the shot until no generation is pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.Load(cmd.Context()); err != nil {
				return err
			}
			if err := waitForSettled(cmd.Context(), session, cmd.OutOrStdout()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderGenerations(session.Records()))
			return nil
		},
	}
}

// waitForSettled blocks while the session's poller runs.
func waitForSettled(ctx context.Context, session *workstation.Session, out io.Writer) error {
	done := session.PollDone()
	if done == nil {
		return nil
	}
	fmt.Fprintln(out, "Waiting for pending generations...")
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		session.StopPolling()
		return ctx.Err()
	}
}
