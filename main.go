// visia - terminal client for the vision-assessment assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/visia-health/visia-tui/internal/agent"
	"github.com/visia-health/visia-tui/internal/cli"
	"github.com/visia-health/visia-tui/internal/config"
	"github.com/visia-health/visia-tui/internal/rtc"
	"github.com/visia-health/visia-tui/internal/storage"
	"github.com/visia-health/visia-tui/internal/telemetry"
	"github.com/visia-health/visia-tui/internal/ui/chat"
	"github.com/visia-health/visia-tui/internal/ui/diagnostic"
	"github.com/visia-health/visia-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	plain := flag.Bool("plain", false, "use the line-mode interface instead of the full-screen TUI")
	baseURL := flag.String("backend", "", "backend base URL (overrides config)")
	userID := flag.String("user", "", "patient identifier (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("visia %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg := config.Global()
	if *baseURL != "" {
		cfg.Backend.BaseURL = *baseURL
	}
	if *userID != "" {
		cfg.Backend.UserID = *userID
	}
	if *plain {
		cfg.UI.Plain = true
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if err := telemetry.Setup(cfg.Log.Path, level); err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
	}

	client := agent.NewClient(&agent.ClientConfig{
		BaseURL:       cfg.Backend.BaseURL,
		Timeout:       cfg.Timeout(),
		UploadTimeout: cfg.UploadTimeout(),
	})

	archive := openArchive(cfg)
	if archive != nil {
		defer archive.Close()
	}

	// Fall back to line mode when either side of the terminal is not a TTY,
	// such as piped input or redirected output.
	if cfg.UI.Plain || !cli.IsStdoutTTY() || !cli.IsStdinTTY() {
		if err := cli.Run(cfg, client, archive); err != nil {
			fmt.Fprintf(os.Stderr, "visia: %v\n", err)
			os.Exit(1)
		}
		return
	}

	runTUI(cfg, client, archive)
}

// openArchive opens the encrypted result archive when enabled. A missing
// passphrase disables the archive with a warning instead of storing results
// unprotected.
func openArchive(cfg *config.Config) *storage.Archive {
	if !cfg.Archive.Enabled {
		return nil
	}
	passphrase := os.Getenv("VISIA_ARCHIVE_KEY")
	if passphrase == "" {
		fmt.Fprintln(os.Stderr, "warning: archive enabled but VISIA_ARCHIVE_KEY is unset; results will not be archived")
		return nil
	}
	archive, err := storage.Open(cfg.Archive.Path, passphrase)
	if err != nil {
		telemetry.L().Error().Err(err).Str("path", cfg.Archive.Path).Msg("archive open failed")
		fmt.Fprintf(os.Stderr, "warning: result archive unavailable: %v\n", err)
		return nil
	}
	return archive
}

// runTUI starts the full-screen interface. Bubble Tea restores the
// terminal before repanicking, so the recover here only has to report.
func runTUI(cfg *config.Config, client *agent.Client, archive *storage.Archive) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.L().Error().Interface("panic", r).Msg("tui panic")
			fmt.Fprintf(os.Stderr, "visia crashed: %v\n", r)
			os.Exit(1)
		}
	}()

	theme := styles.NewTheme()

	diagCfg := diagnostic.DefaultConfig()
	diagCfg.PollInterval = cfg.PollInterval()
	diagCfg.SetupTimeout = cfg.SetupTimeout()
	diagCfg.EnableMicrophone = cfg.Diagnostic.EnableMicrophone

	opts := chat.Options{
		UserID:     cfg.Backend.UserID,
		DiagConfig: diagCfg,
		RoomFactory: func() rtc.RoomClient {
			return rtc.NewWSRoomClient(config.Global().Backend.SignalURL)
		},
	}
	if archive != nil {
		opts.Archive = archive
	}

	m := chat.New(client, theme, opts)

	// Hot reload keeps config edits live for the next capture session.
	watcher, err := config.NewWatcher("", nil)
	if err == nil {
		if err := watcher.Watch(); err != nil {
			telemetry.L().Warn().Err(err).Msg("config watch unavailable")
		}
		defer watcher.Close()
	}

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running visia: %v\n", err)
		os.Exit(1)
	}
}
