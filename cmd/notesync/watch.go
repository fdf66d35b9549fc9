package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/pkg/client"
)

var (
	watchURL   string
	watchAdmin bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to a running server and print its events",
	Long: `Watch opens a websocket session, loads the notes and prints every event the
server pushes. With --admin the session also joins the admin set and receives
connection and log telemetry.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := watchURL
		if url == "" {
			url = localURL(cfg.Server.Addr)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		c, err := client.Dial(dialCtx, url, client.Options{
			UserAgent: "notesync-cli/" + notesync.Version,
			Logger:    slog.Default(),
		})
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.LoadNotes(); err != nil {
			return err
		}
		if watchAdmin {
			if err := c.JoinAdmin(); err != nil {
				return err
			}
		}

		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-c.Done():
				return fmt.Errorf("connection closed by server")
			case <-heartbeat.C:
				_ = c.Activity()
			case ev, ok := <-c.Events():
				if !ok {
					return nil
				}
				fmt.Printf("%s %-20s %s\n", time.Now().Format(time.TimeOnly), ev.Name, ev.Data)
			}
		}
	},
}

// localURL derives the websocket URL of a server listening on addr.
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "ws://localhost:3000/ws"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "ws://" + net.JoinHostPort(host, port) + "/ws"
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchURL, "url", "", "Websocket URL (default derived from server.addr)")
	watchCmd.Flags().BoolVar(&watchAdmin, "admin", false, "Join the admin set")
}
