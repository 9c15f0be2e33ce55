// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/peterh/liner"

	"github.com/visia-health/visia-tui/internal/agent"
	"github.com/visia-health/visia-tui/internal/config"
	"github.com/visia-health/visia-tui/internal/model"
	"github.com/visia-health/visia-tui/internal/rtc"
	"github.com/visia-health/visia-tui/internal/session"
	"github.com/visia-health/visia-tui/internal/storage"
	"github.com/visia-health/visia-tui/internal/telemetry"
	"github.com/visia-health/visia-tui/internal/util"
)

// repl holds the line-mode session state.
type repl struct {
	cfg          *config.Config
	client       *agent.Client
	archive      *storage.Archive
	conversation *model.Conversation
	tracker      *session.Tracker
	userID       string

	line        *liner.State
	historyFile string
}

func newREPL(cfg *config.Config, client *agent.Client, archive *storage.Archive) (*repl, error) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	historyFile := filepath.Join(dir, "chat_history")

	userID := cfg.Backend.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	r := &repl{
		cfg:          cfg,
		client:       client,
		archive:      archive,
		conversation: model.NewConversation(),
		tracker:      session.NewTracker(),
		userID:       userID,
		line:         line,
		historyFile:  historyFile,
	}
	r.loadHistory()
	return r, nil
}

// Close saves history and restores the terminal.
func (r *repl) Close() {
	r.saveHistory()
	r.line.Close()
}

func (r *repl) loadHistory() {
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

func (r *repl) saveHistory() {
	if err := config.EnsureDir(); err != nil {
		return
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	r.line.WriteHistory(f)
}

// Loop reads and dispatches input until quit or ctx cancellation.
func (r *repl) Loop(ctx context.Context) error {
	printNotice("Visia vision assessment assistant. Type /help for commands.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		input, err := r.line.Prompt(promptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		text := strings.TrimSpace(input)
		if text == "" {
			continue
		}
		r.line.AppendHistory(input)
		r.tracker.Touch()

		if strings.HasPrefix(text, "/") {
			if quit := r.handleCommand(ctx, text); quit {
				return nil
			}
			continue
		}

		r.sendTurn(ctx, agent.ChatRequest{
			UserID:   r.userID,
			ThreadID: r.conversation.ThreadID,
			Message:  agent.Text(util.NormalizeText(text)),
		})
	}
}

// handleCommand dispatches a slash command; returns true to quit.
func (r *repl) handleCommand(ctx context.Context, raw string) bool {
	fields := strings.Fields(raw)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true
	case "/help", "/h":
		printNotice(`Commands:
  /attach <path>   attach a photo and send it for review
  /results [n]     show archived diagnostic results
  /new             start a fresh conversation
  /quit            exit`)
	case "/new":
		r.conversation = model.NewConversation()
		printNotice("Started a new conversation.")
	case "/attach":
		if len(fields) < 2 {
			printWarning("Usage: /attach <path-to-image>")
			return false
		}
		r.attach(ctx, strings.Join(fields[1:], " "))
	case "/results":
		r.showResults(ctx)
	default:
		printWarning("Unknown command " + fields[0] + ". Try /help.")
	}
	return false
}

// sendTurn posts one chat turn, prints the reply, and runs the headless
// capture flow when the backend asks for one.
func (r *repl) sendTurn(ctx context.Context, req agent.ChatRequest) {
	if req.Message != nil {
		r.conversation.AppendUser(*req.Message)
	}

	reply, err := r.client.SendChat(ctx, req)
	if err != nil {
		telemetry.L().Error().Err(err).Msg("chat send failed")
		printError(friendlyError(err))
		return
	}

	r.conversation.AppendAssistant(reply.Text())
	printReply(reply.Text())

	if !reply.VideoStreamActive {
		return
	}

	source := rtc.SelfAllocatedRoom()
	if reply.CallID != "" {
		source = rtc.ProvidedRoom(reply.CallID)
	}
	data, callID, err := runHeadlessCapture(ctx, headlessOptions{
		gateway:      r.client,
		room:         rtc.NewWSRoomClient(r.cfg.Backend.SignalURL),
		source:       source,
		patientID:    r.userID,
		pollInterval: r.cfg.PollInterval(),
		setupTimeout: r.cfg.SetupTimeout(),
		enableMic:    r.cfg.Diagnostic.EnableMicrophone,
		progress:     printNotice,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			printWarning("Diagnostic scan cancelled.")
			return
		}
		printError(friendlyError(err))
		return
	}

	if r.archive != nil {
		if err := r.archive.SaveResult(ctx, callID, reply.FunctionalTestType, data); err != nil {
			telemetry.L().Warn().Err(err).Msg("result archive write failed")
		}
	}

	// Forward the results to the assistant as a synthetic turn.
	r.sendTurn(ctx, agent.ChatRequest{
		UserID:                r.userID,
		ThreadID:              r.conversation.ThreadID,
		FunctionalTestResults: data,
		FunctionalTestType:    reply.FunctionalTestType,
	})
}

// attach runs the two-step upload-then-send flow.
func (r *repl) attach(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		printError("Could not open " + path)
		return
	}
	defer f.Close()

	printNotice("Uploading " + filepath.Base(path) + "...")
	imageID, err := r.client.UploadImage(ctx, filepath.Base(path), f)
	if err != nil {
		printError(friendlyError(err))
		return
	}

	turn := model.NewUserMessage("")
	turn.ImageID = imageID
	r.conversation.Append(turn)

	// Attachment-only turn: message stays null.
	r.sendTurn(ctx, agent.ChatRequest{
		UserID:   r.userID,
		ThreadID: r.conversation.ThreadID,
		ImageID:  imageID,
	})
}

func (r *repl) showResults(ctx context.Context) {
	if r.archive == nil {
		printWarning("The result archive is disabled. Enable it in ~/.visia/config.toml.")
		return
	}
	records, err := r.archive.List(ctx, 10)
	if err != nil {
		printError("Could not read the archive: " + err.Error())
		return
	}
	if len(records) == 0 {
		printNotice("No archived results yet.")
		return
	}
	for _, rec := range records {
		fmt.Printf("%s  %-12s %s\n",
			rec.CreatedAt.Format("2006-01-02 15:04"),
			rec.TestType,
			string(rec.Data))
	}
}

// friendlyError picks the line-mode wording for a gateway failure.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, agent.ErrNotAnImage):
		return "That file doesn't look like an image. Please attach a photo (png or jpeg)."
	case agent.IsNetworkFailure(err):
		return "Could not reach the service. Check your connection and try again."
	case agent.IsSetupFailure(err):
		return "The video session could not be started: " + err.Error()
	case agent.IsServerError(err):
		return "The service reported an error. Please try again in a moment."
	default:
		return "Something unexpected went wrong: " + err.Error()
	}
}
