package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/internal/platform"
	"github.com/aretw0/notesync/pkg/config"
	"github.com/aretw0/notesync/pkg/core"
)

var (
	verbose    bool
	configPath string
	adapter    string
	dataPath   string

	cfg config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notesync",
	Short: "A real-time notes backend",
	Long: `notesync keeps a collection of notes in a store (files, SQLite or memory)
and pushes every change to connected websocket clients.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)

		loaded, err := config.Load(lookupConfig())
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("adapter") {
			loaded.Store.Adapter = adapter
		}
		if cmd.Flags().Changed("data") {
			loaded.Store.Path = dataPath
		}
		cfg = loaded
		return cfg.Validate()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVarP(&adapter, "adapter", "a", "", "Store adapter: memory, fs or sqlite")
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "", "Store location (directory or database file)")
}

// lookupConfig returns --config, or the nearest notesync.yaml found walking
// up from the working directory.
func lookupConfig() string {
	if configPath != "" {
		return configPath
	}
	root, err := platform.FindRoot(".")
	if err != nil {
		return ""
	}
	candidate := filepath.Join(root, config.DefaultFile)
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	slog.Debug("using config", "path", candidate)
	return candidate
}

// storeOptions maps the loaded configuration onto store options.
func storeOptions() []notesync.Option {
	opts := []notesync.Option{
		notesync.WithAdapter(cfg.Store.Adapter),
		notesync.WithLogger(slog.Default()),
		notesync.WithReadOnly(cfg.Store.ReadOnly),
		notesync.WithDevSafety(cfg.Store.DevSafety),
		notesync.WithEventBuffer(cfg.Store.EventBuffer),
		notesync.WithPollInterval(cfg.Store.PollInterval),
	}
	if cfg.Store.Versioning {
		opts = append(opts, notesync.WithVersioning(true))
	}
	return opts
}

// openService opens the configured store for one-shot commands.
func openService() *core.Service {
	svc, err := notesync.New(cfg.Store.Path, storeOptions()...)
	if err != nil {
		fatal("Failed to open store", err)
	}
	return svc
}

// closeService releases store resources (database handles).
func closeService(svc *core.Service) {
	if c, ok := svc.Store().(core.Closer); ok {
		if err := c.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing store: %v\n", err)
		}
	}
}
