// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/studychat/studychat-tui/internal/config"
	"github.com/studychat/studychat-tui/internal/model"
	"github.com/studychat/studychat-tui/internal/stream"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// StreamTickMsg drives streaming renders at a capped frame rate.
type StreamTickMsg struct {
	Time time.Time
}

// StreamCompleteMsg indicates the stream ended normally. Message is the
// committed assistant message, or nil when the stream produced no text.
type StreamCompleteMsg struct {
	Message *model.Message
}

// StreamErrorMsg indicates the stream ended in a transport failure.
type StreamErrorMsg struct {
	Err error
}

// ConfigReloadedMsg carries a config reloaded from disk. Chat defaults and
// UI options apply immediately; a changed server address takes effect on
// restart because the transport client keeps its base URL.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// clearStatusMsg expires a transient status line.
type clearStatusMsg struct{}

// =============================================================================
// COMMANDS
// =============================================================================

// waitForEvent blocks on the manager event channel and delivers the next
// message. It must be re-issued after every event it returns.
func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// clearStatusCmd expires the status line after a short delay.
func clearStatusCmd() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// =============================================================================
// ERROR PRESENTATION
// =============================================================================

// friendlyError turns a transport failure into a message a user can act on.
func friendlyError(err error) string {
	var tErr *stream.TransportError
	if errors.As(err, &tErr) {
		switch tErr.Kind {
		case stream.KindNetwork:
			return "Cannot reach the server. Is it running?"
		case stream.KindTimeout:
			return "The server took too long to respond."
		case stream.KindHTTP:
			return fmt.Sprintf("Server error (%d): %s", tErr.Status, tErr.Message)
		}
	}
	return err.Error()
}
