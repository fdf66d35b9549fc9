// Package config loads the notesync server configuration from YAML.
//
// Precedence is defaults, then the file, then the environment (PORT), then
// whatever the caller applies on top (CLI flags).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "notesync.yaml"

// Config is the full server configuration.
type Config struct {
	Server   Server   `yaml:"server"`
	Store    Store    `yaml:"store"`
	Realtime Realtime `yaml:"realtime"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Store selects and configures the note store.
type Store struct {
	Adapter      string        `yaml:"adapter"`
	Path         string        `yaml:"path"`
	Versioning   bool          `yaml:"versioning"`
	ReadOnly     bool          `yaml:"read_only"`
	DevSafety    bool          `yaml:"dev_safety"`
	EventBuffer  int           `yaml:"event_buffer"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Realtime configures the websocket transport and the admin log.
type Realtime struct {
	SendBuffer     int           `yaml:"send_buffer"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	LogCapacity    int           `yaml:"log_capacity"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":3000",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: Store{
			Adapter:      "fs",
			Path:         "notes",
			DevSafety:    true,
			EventBuffer:  100,
			PollInterval: 200 * time.Millisecond,
		},
		Realtime: Realtime{
			SendBuffer:     64,
			WriteTimeout:   10 * time.Second,
			PingInterval:   30 * time.Second,
			AllowedOrigins: []string{"*"},
			LogCapacity:    200,
		},
	}
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Load reads path. An empty path falls back to DefaultFile and, when that is
// missing too, to the defaults. An explicit path must exist.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return cfg, applyEnv(&cfg)
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, applyEnv(&cfg)
}

// applyEnv honours PORT the way hosting platforms set it.
func applyEnv(cfg *Config) error {
	port := os.Getenv("PORT")
	if port == "" {
		return nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid PORT %q", port)
	}
	cfg.Server.Addr = ":" + port
	return nil
}

// Validate checks values that would otherwise fail late at startup.
func (c Config) Validate() error {
	switch c.Store.Adapter {
	case "memory", "fs", "sqlite":
	default:
		return fmt.Errorf("unknown store adapter %q", c.Store.Adapter)
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Store.Adapter != "memory" && c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	if c.Realtime.SendBuffer < 0 || c.Realtime.LogCapacity < 0 || c.Store.EventBuffer < 0 {
		return errors.New("buffer sizes must not be negative")
	}
	return nil
}
