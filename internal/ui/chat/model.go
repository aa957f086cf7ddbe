// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/studychat/studychat-tui/internal/assembly"
	"github.com/studychat/studychat-tui/internal/config"
	"github.com/studychat/studychat-tui/internal/model"
	"github.com/studychat/studychat-tui/internal/store"
	"github.com/studychat/studychat-tui/internal/stream"
	"github.com/studychat/studychat-tui/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateStreaming              // Receiving streaming response
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// State
	state State

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int
	ready  bool

	// Backing services
	cfg   *config.Config
	store *store.Store
	mgr   *assembly.Manager
	log   *log.Logger

	// Stream event bridge. Manager callbacks push here; waitForEvent
	// pulls into the Bubble Tea loop.
	events chan tea.Msg

	// Streaming render state
	streamBuf *StreamingBuffer
	streaming string // assistant text rendered so far

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keys     KeyMap

	// Transient status line
	errMsg    string
	statusMsg string
}

// New creates the chat view wired to the given store and stream client.
func New(cfg *config.Config, st *store.Store, client *stream.Client, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.Default()
	}

	theme := styles.NewTheme()

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = theme.InputPrompt.Render("> ")
	input.CharLimit = stream.MaxMessageLen
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := &Model{
		state:     StateReady,
		theme:     theme,
		cfg:       cfg,
		store:     st,
		log:       logger,
		events:    make(chan tea.Msg, 16),
		streamBuf: NewStreamingBuffer(),
		input:     input,
		spinner:   sp,
		keys:      DefaultKeyMap(),
	}

	m.mgr = assembly.New(client, st, assembly.Callbacks{
		OnChunk: func(delta, total string) {
			m.streamBuf.Write(delta)
		},
		OnComplete: func(msg *model.Message) {
			m.events <- StreamCompleteMsg{Message: msg}
		},
		OnError: func(err error) {
			m.events <- StreamErrorMsg{Err: err}
		},
	}, logger)

	return m
}

// Init starts the input blink, the spinner, and the event pump.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForEvent(m.events),
	)
}

// currentConversation returns the active conversation, creating one when
// none exists yet.
func (m *Model) currentConversation() *model.Conversation {
	if conv := m.store.Current(); conv != nil {
		return conv
	}
	return m.store.Create("")
}
