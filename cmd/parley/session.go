package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/parley/internal/config"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage saved sessions",
	Long:  `List, inspect, and remove sessions saved by 'parley run --session' or the servers.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all saved sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, backend *config.Backend) error {
			sessions, err := backend.Store.List(ctx)
			if err != nil {
				return fmt.Errorf("error listing sessions: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved sessions found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Saved Sessions:")
			for _, s := range sessions {
				fmt.Fprintln(cmd.OutOrStdout(), "- "+s)
			}
			return nil
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print a session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, backend *config.Backend) error {
			sess, err := backend.Store.Load(ctx, args[0])
			if err != nil {
				return fmt.Errorf("error loading session '%s': %w", args[0], err)
			}
			data, err := json.MarshalIndent(sess, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		})
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, backend *config.Backend) error {
			var errs []error
			for _, sessionID := range args {
				if err := backend.Store.Delete(ctx, sessionID); err != nil {
					errs = append(errs, fmt.Errorf("error removing '%s': %w", sessionID, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", sessionID)
			}
			return errors.Join(errs...)
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}

// withStore opens the configured store for fn. The in-memory store holds nothing
// between processes, so the file store is used in its place.
func withStore(cmd *cobra.Command, fn func(context.Context, *config.Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store == config.StoreMemory {
		cfg.Store = config.StoreFile
	}
	backend, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(ctx, backend)
}
