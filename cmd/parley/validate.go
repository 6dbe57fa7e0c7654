package main

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/validate"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <graph-file|dir>",
	Short: "Check graphs for authoring errors",
	Long: `Checks every graph in the source (or only --graph) for dangling links, a missing
start node, duplicate ids, malformed nodes and unreachable nodes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("graph")
		strict, _ := cmd.Flags().GetBool("strict")
		pairs, _ := cmd.Flags().GetStringArray("var")

		vars, err := parseVars(pairs)
		if err != nil {
			return err
		}
		opts := []validate.Option{validate.WithVariables(vars)}
		if strict {
			opts = append(opts, validate.WithWarningsAsErrors())
		}

		eng, err := parley.New(args[0])
		if err != nil {
			return fmt.Errorf("failed to init engine: %w", err)
		}

		failed, err := runValidate(cmd.Context(), cmd.OutOrStdout(), eng, name, opts...)
		if err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("validation failed: %d graph(s) with errors", failed)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Graph is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("graph", "", "Validate only this graph")
	validateCmd.Flags().Bool("strict", false, "Treat warnings as errors")
	validateCmd.Flags().StringArray("var", nil, "Known initial variable as name=value, used to type-check conditions")
}

// runValidate prints the issues of each graph and returns how many graphs failed.
func runValidate(ctx context.Context, w io.Writer, eng *parley.Engine, name string, opts ...validate.Option) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	names := []string{name}
	if name == "" {
		var err error
		if names, err = eng.Graphs(ctx); err != nil {
			return 0, err
		}
	}

	failed := 0
	for _, n := range names {
		g, err := eng.Graph(ctx, n)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", n, err)
			failed++
			continue
		}
		for _, issue := range validate.Inspect(g, opts...) {
			fmt.Fprintf(w, "%s: %s: %s\n", n, issue.Severity, issue.Error())
		}
		if err := validate.Graph(g, opts...); err != nil {
			failed++
		}
	}
	return failed, nil
}
