package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/pkg/realtime"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	Long: `Serve opens the store, relays its changes to websocket clients on /ws and
exposes the REST API under /api. It stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}

		svc, err := notesync.New(cfg.Store.Path, storeOptions()...)
		if err != nil {
			return err
		}

		srv := notesync.NewServer(svc, notesync.ServerConfig{
			Addr:            cfg.Server.Addr,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			LogCapacity:     cfg.Realtime.LogCapacity,
			Logger:          slog.Default(),
			Transport: realtime.TransportConfig{
				SendBuffer:     cfg.Realtime.SendBuffer,
				WriteTimeout:   cfg.Realtime.WriteTimeout,
				PingInterval:   cfg.Realtime.PingInterval,
				AllowedOrigins: cfg.Realtime.AllowedOrigins,
			},
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("starting notesync", "version", notesync.Version, "adapter", cfg.Store.Adapter, "path", cfg.Store.Path)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config and PORT)")
}
