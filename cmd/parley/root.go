package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley plays branching dialogue graphs",
	Long: `Parley interprets branching dialogue graphs authored as JSON, YAML or Markdown.
Play them in the terminal, validate and visualize them, or host them over HTTP and MCP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands). Unset flags fall back to PARLEY_* variables.
	rootCmd.PersistentFlags().String("env-file", ".env", "Dotenv file to read before PARLEY_* variables")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().String("store", "", "Session store: memory, file or redis")
	rootCmd.PersistentFlags().String("store-path", "", "Directory of the file session store")
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address of the redis session store")
}

// loadConfig reads the environment and applies the flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	override := func(flag string, dst *string) {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	override("log-level", &cfg.LogLevel)
	override("log-format", &cfg.LogFormat)
	override("store", &cfg.Store)
	override("store-path", &cfg.StorePath)
	override("redis-addr", &cfg.RedisAddr)
	override("graphs", &cfg.Graphs)
	override("addr", &cfg.Addr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	var opts []logging.Option
	if cfg.LogFormat == "json" {
		opts = append(opts, logging.WithJSON())
	}
	return logging.New(level, opts...), nil
}
