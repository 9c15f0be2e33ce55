// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and watches the visia configuration.
//
// Sources, in order of precedence:
//   - VISIA_* environment variables (a local .env is loaded first)
//   - ~/.visia/config.toml
//   - built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config is the full visia configuration.
type Config struct {
	Backend    BackendConfig    `toml:"backend"`
	Diagnostic DiagnosticConfig `toml:"diagnostic"`
	UI         UIConfig         `toml:"ui"`
	Archive    ArchiveConfig    `toml:"archive"`
	Log        LogConfig        `toml:"log"`
}

// BackendConfig locates the assistant backend and the room service.
type BackendConfig struct {
	// BaseURL is the HTTP endpoint of the assistant backend.
	BaseURL string `toml:"base_url"`
	// SignalURL is the websocket endpoint of the room service.
	SignalURL string `toml:"signal_url"`
	// UserID identifies the patient. Generated per run when empty.
	UserID string `toml:"user_id"`
	// TimeoutSecs bounds ordinary requests.
	TimeoutSecs int `toml:"timeout_secs"`
	// UploadTimeoutSecs bounds image uploads.
	UploadTimeoutSecs int `toml:"upload_timeout_secs"`
}

// DiagnosticConfig tunes the capture session controller.
type DiagnosticConfig struct {
	PollIntervalSecs int  `toml:"poll_interval_secs"`
	SetupTimeoutSecs int  `toml:"setup_timeout_secs"`
	EnableMicrophone bool `toml:"enable_microphone"`
}

// UIConfig holds presentation options.
type UIConfig struct {
	// Plain forces the line-mode interface even on a TTY.
	Plain bool `toml:"plain"`
}

// ArchiveConfig controls the local diagnostic-result archive.
type ArchiveConfig struct {
	Enabled bool `toml:"enabled"`
	// Path of the archive database. Defaults to ~/.visia/archive.db.
	Path string `toml:"path"`
}

// LogConfig controls file logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Path of the log file. Defaults to ~/.visia/visia.log.
	Path string `toml:"path"`
}

// =============================================================================
// DEFAULTS AND PATHS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:           "http://127.0.0.1:8000",
			TimeoutSecs:       30,
			UploadTimeoutSecs: 60,
		},
		Diagnostic: DiagnosticConfig{
			PollIntervalSecs: 2,
			SetupTimeoutSecs: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Dir returns the visia dotdir, creating nothing.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate home directory: %w", err)
	}
	return filepath.Join(home, ".visia"), nil
}

// Path returns the config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir creates the dotdir with owner-only permissions.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// =============================================================================
// LOADING
// =============================================================================

// Load builds the effective configuration: defaults, then the config file
// if present, then environment overrides. A missing config file is not an
// error.
func Load() (*Config, error) {
	// Best effort; a local .env simply may not exist.
	_ = godotenv.Load()

	cfg := Default()

	path, err := Path()
	if err == nil {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.fillDerived()
	return cfg, nil
}

// LoadFromPath reads one specific config file plus env overrides. Used by
// the watcher and by tests.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := loadFile(cfg, path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.fillDerived()
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays VISIA_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("VISIA_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("VISIA_SIGNAL_URL"); v != "" {
		c.Backend.SignalURL = v
	}
	if v := os.Getenv("VISIA_USER_ID"); v != "" {
		c.Backend.UserID = v
	}
	if v := os.Getenv("VISIA_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("VISIA_PLAIN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.UI.Plain = b
		}
	}
	if v := os.Getenv("VISIA_ARCHIVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Archive.Enabled = b
		}
	}
}

// fillDerived resolves paths that default relative to the dotdir.
func (c *Config) fillDerived() {
	dir, err := Dir()
	if err != nil {
		return
	}
	if c.Log.Path == "" {
		c.Log.Path = filepath.Join(dir, "visia.log")
	}
	if c.Archive.Path == "" {
		c.Archive.Path = filepath.Join(dir, "archive.db")
	}
}

// =============================================================================
// DURATION ACCESSORS
// =============================================================================

// Timeout returns the ordinary request timeout.
func (c *Config) Timeout() time.Duration {
	return secs(c.Backend.TimeoutSecs, 30*time.Second)
}

// UploadTimeout returns the upload request timeout.
func (c *Config) UploadTimeout() time.Duration {
	return secs(c.Backend.UploadTimeoutSecs, 60*time.Second)
}

// PollInterval returns the diagnostic poll cadence.
func (c *Config) PollInterval() time.Duration {
	return secs(c.Diagnostic.PollIntervalSecs, 2*time.Second)
}

// SetupTimeout returns the diagnostic setup step bound.
func (c *Config) SetupTimeout() time.Duration {
	return secs(c.Diagnostic.SetupTimeoutSecs, 30*time.Second)
}

func secs(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the configuration to the default path, atomically and with
// owner-only permissions.
func Save(cfg *Config) error {
	if err := EnsureDir(); err != nil {
		return err
	}
	path, err := Path()
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// =============================================================================
// GLOBAL ACCESS
// =============================================================================

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Global returns the process-wide configuration, loading it on first use.
func Global() *Config {
	globalMu.RLock()
	if globalCfg != nil {
		defer globalMu.RUnlock()
		return globalCfg
	}
	globalMu.RUnlock()

	cfg, err := Load()
	if err != nil {
		cfg = Default()
		cfg.fillDerived()
	}
	Replace(cfg)
	return cfg
}

// Replace swaps the process-wide configuration; the watcher uses it on hot
// reload.
func Replace(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = cfg
}
