// Command bench measures how long it takes for N websocket sessions to
// converge on M notes created by one of them.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/pkg/client"
)

func main() {
	adapter := flag.String("adapter", notesync.AdapterMemory, "Store adapter: memory, fs or sqlite")
	clients := flag.Int("clients", 20, "Number of websocket sessions")
	count := flag.Int("count", 500, "Number of notes to create")
	keep := flag.Bool("keep", false, "Keep the benchmark store after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "notesync_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := notesync.New(benchDir,
		notesync.WithAdapter(*adapter),
		notesync.WithLogger(logger),
		notesync.WithVersioning(false),
		notesync.WithEventBuffer(*count),
		notesync.WithPollInterval(10*time.Millisecond),
	)
	if err != nil {
		panic(err)
	}

	srv := notesync.NewServer(svc, notesync.ServerConfig{Addr: "127.0.0.1:0", Logger: logger})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := srv.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "server: %v\n", err)
			os.Exit(1)
		}
	}()
	<-srv.Ready()
	url := "ws://" + srv.Addr().String() + "/ws"

	fmt.Printf("Connecting %d sessions to %s (%s store)...\n", *clients, url, *adapter)
	sessions := make([]*client.Client, *clients)
	for i := range sessions {
		c, err := client.Dial(ctx, url, client.Options{
			UserAgent:   fmt.Sprintf("bench-%d", i),
			EventBuffer: *count * 4,
			Logger:      logger,
		})
		if err != nil {
			panic(err)
		}
		defer c.Close()
		sessions[i] = c
	}

	fmt.Printf("Creating %d notes...\n", *count)
	start := time.Now()
	writer := sessions[0]
	for i := 0; i < *count; i++ {
		if err := writer.CreateNote(fmt.Sprintf("Note %d", i), "This is a benchmark note."); err != nil {
			panic(err)
		}
	}
	sent := time.Since(start)

	// Convergence is read from each session's view.
	var g errgroup.Group
	for _, c := range sessions {
		g.Go(func() error {
			deadline := time.Now().Add(time.Minute)
			for c.View().Len() < *count {
				if time.Now().After(deadline) {
					return fmt.Errorf("session stuck at %d notes", c.View().Len())
				}
				time.Sleep(time.Millisecond)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}
	converged := time.Since(start)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d notes, %d sessions, %s):\n", *count, *clients, *adapter)
	fmt.Printf("  Sent:      %v\n", sent)
	fmt.Printf("  Converged: %v\n", converged)
	fmt.Printf("  Per note:  %v\n", converged/time.Duration(*count))
	fmt.Printf("--------------------------------------------------\n")
}
