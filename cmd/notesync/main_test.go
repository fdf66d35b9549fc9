package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync"
)

func TestLocalURL(t *testing.T) {
	tests := map[string]string{
		":3000":          "ws://localhost:3000/ws",
		"0.0.0.0:8080":   "ws://localhost:8080/ws",
		"127.0.0.1:9000": "ws://127.0.0.1:9000/ws",
		"[::]:7000":      "ws://localhost:7000/ws",
		"garbage":        "ws://localhost:3000/ws",
	}
	for addr, want := range tests {
		assert.Equal(t, want, localURL(addr), addr)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "list", "read", "create", "update", "delete", "stats", "watch", "version"}
	got := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], "missing command %s", name)
	}
}

func TestCreateThenStats(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PORT", "")

	rootCmd.SetArgs([]string{"create", "--data", dir, "--title", "Groceries", "--content", "Milk,eggs"})
	require.NoError(t, rootCmd.Execute())

	svc, err := notesync.New(dir)
	require.NoError(t, err)
	notes, err := svc.ListNotes(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Groceries", notes[0].Title)
	assert.Equal(t, "fs", cfg.Store.Adapter)

	rootCmd.SetArgs([]string{"stats", "--data", dir})
	require.NoError(t, rootCmd.Execute())
}
