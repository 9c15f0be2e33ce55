// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides the file-backed debug log for the visia TUI.
//
// A TUI owns the terminal, so nothing may log to stdout or stderr while the
// program runs. All diagnostics go to ~/.visia/visia.log through a shared
// zerolog logger; the default logger discards everything until Setup runs.
package telemetry

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(io.Discard)
)

// Setup opens (or creates) the log file and installs the shared logger.
// An empty path defaults to ~/.visia/visia.log. Failure to open the file is
// not fatal: the logger keeps discarding and the error is returned for the
// caller to surface once the terminal is available again.
func Setup(path string, level zerolog.Level) error {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".visia", "visia.log")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	mu.Lock()
	logger = zerolog.New(f).Level(level).With().Timestamp().Logger()
	mu.Unlock()
	return nil
}

// L returns the shared logger.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}
