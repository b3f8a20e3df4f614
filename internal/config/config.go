package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.stash/config.toml.
type Config struct {
	DefaultSession string   `toml:"default_session"`
	Log            Log      `toml:"log"`
	Refresh        Refresh  `toml:"refresh"`
	Messages       Messages `toml:"messages"`
	Uploads        Uploads  `toml:"uploads"`
	Backend        Backend  `toml:"backend"`
}

// Log configures the daemon logger.
type Log struct {
	Level string `toml:"level"`
}

// Refresh tunes the refresh coalescer.
type Refresh struct {
	Window             Duration `toml:"window"`
	WebpageDelay       Duration `toml:"webpage_delay"`
	WebpageMaxDelay    Duration `toml:"webpage_max_delay"`
	WebpageMaxAttempts int      `toml:"webpage_max_attempts"`
	WebpageBackoff     float64  `toml:"webpage_backoff"`
}

// Messages configures message paging.
type Messages struct {
	PageSize int `toml:"page_size"`
}

// Uploads configures the uploader.
type Uploads struct {
	Concurrency int `toml:"concurrency"`
}

// Backend configures the local storage backend.
type Backend struct {
	// ResolveSchedule is a cron expression for webpage preview resolution.
	ResolveSchedule string `toml:"resolve_schedule"`
	// ResolveDelay is how old a pending preview must be before it resolves.
	ResolveDelay Duration `toml:"resolve_delay"`
	// RefreshRate is the allowed RefreshMessages calls per second per folder.
	RefreshRate  float64 `toml:"refresh_rate"`
	RefreshBurst int     `toml:"refresh_burst"`
}

// Duration is a time.Duration written as a string such as "1s" or "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Log: Log{Level: "info"},
		Refresh: Refresh{
			Window:             Duration{time.Second},
			WebpageDelay:       Duration{500 * time.Millisecond},
			WebpageMaxDelay:    Duration{10 * time.Second},
			WebpageMaxAttempts: 8,
			WebpageBackoff:     2,
		},
		Messages: Messages{PageSize: 20},
		Uploads:  Uploads{Concurrency: 3},
		Backend: Backend{
			ResolveSchedule: "@every 2s",
			ResolveDelay:    Duration{time.Second},
			RefreshRate:     5,
			RefreshBurst:    10,
		},
	}
}

// Load reads config from the given path on top of Default. Returns an error
// if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
