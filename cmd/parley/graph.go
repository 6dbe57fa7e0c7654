package main

import (
	"context"
	"fmt"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <graph-file|dir>",
	Short: "Export the dialogue graph as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart of the graph. With --session the nodes the session
visited and the node it is parked at are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		name, _ := cmd.Flags().GetString("graph")
		sessionID, _ := cmd.Flags().GetString("session")

		eng, err := parley.New(args[0])
		if err != nil {
			return fmt.Errorf("error initializing parley: %w", err)
		}

		var overlay *graph.GraphOverlay
		if sessionID != "" {
			err := withStore(cmd, func(ctx context.Context, backend *config.Backend) error {
				sess, err := backend.Store.Load(ctx, sessionID)
				if err != nil {
					return fmt.Errorf("failed to load session %s: %w", sessionID, err)
				}
				if name == "" {
					name = sess.Graph
				}
				overlay = graph.OverlayFromState(sess.State)
				return nil
			})
			if err != nil {
				return err
			}
		}

		g, err := eng.Graph(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().String("graph", "", "Graph to draw when the source holds several")
	graphCmd.Flags().String("session", "", "Highlight the progress of this session")
}
