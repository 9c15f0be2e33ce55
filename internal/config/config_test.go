// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_SensibleTimings(t *testing.T) {
	cfg := Default()
	if cfg.Backend.BaseURL == "" {
		t.Error("default base URL must be set")
	}
	if got := cfg.PollInterval(); got != 2*time.Second {
		t.Errorf("PollInterval() = %v, want 2s", got)
	}
	if got := cfg.SetupTimeout(); got != 30*time.Second {
		t.Errorf("SetupTimeout() = %v, want 30s", got)
	}
}

func TestLoadFromPath_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[backend]
base_url = "https://api.visia.example"
user_id = "patient-42"

[diagnostic]
poll_interval_secs = 5
enable_microphone = true

[archive]
enabled = true
path = "/tmp/archive.db"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.BaseURL != "https://api.visia.example" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.UserID != "patient-42" {
		t.Errorf("UserID = %q", cfg.Backend.UserID)
	}
	if got := cfg.PollInterval(); got != 5*time.Second {
		t.Errorf("PollInterval() = %v, want 5s", got)
	}
	if !cfg.Diagnostic.EnableMicrophone {
		t.Error("EnableMicrophone not applied")
	}
	if !cfg.Archive.Enabled || cfg.Archive.Path != "/tmp/archive.db" {
		t.Errorf("archive config = %+v", cfg.Archive)
	}
	// Untouched sections keep their defaults.
	if got := cfg.UploadTimeout(); got != 60*time.Second {
		t.Errorf("UploadTimeout() = %v, want default 60s", got)
	}
}

func TestEnvOverrides_BeatFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[backend]\nbase_url = \"https://file.example\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VISIA_BASE_URL", "https://env.example")
	t.Setenv("VISIA_PLAIN", "true")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.BaseURL != "https://env.example" {
		t.Errorf("BaseURL = %q, env override must win", cfg.Backend.BaseURL)
	}
	if !cfg.UI.Plain {
		t.Error("VISIA_PLAIN=true not applied")
	}
}

func TestLoadFromPath_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.BaseURL != Default().Backend.BaseURL {
		t.Error("missing file must leave defaults in place")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[backend]\nbase_url = \"https://one.example\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	loaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) { loaded <- cfg })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("[backend]\nbase_url = \"https://two.example\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-loaded:
		if cfg.Backend.BaseURL != "https://two.example" {
			t.Errorf("reloaded BaseURL = %q", cfg.Backend.BaseURL)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}
