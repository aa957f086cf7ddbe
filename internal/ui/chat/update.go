// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/studychat/studychat-tui/internal/export"
	"github.com/studychat/studychat-tui/internal/stream"
)

// Update handles all Bubble Tea messages for the chat view.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case StreamTickMsg:
		if m.state != StateStreaming {
			break
		}
		if delta, ok := m.streamBuf.Flush(); ok {
			m.streaming += delta
			m.refreshViewport()
		}
		return m, streamTickCmd()

	case StreamCompleteMsg:
		// Final drain; the committed message renders from the store.
		m.streamBuf.ForceFlush()
		m.streaming = ""
		m.state = StateReady
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, waitForEvent(m.events)

	case StreamErrorMsg:
		m.streamBuf.Reset()
		m.streaming = ""
		m.state = StateReady
		m.errMsg = friendlyError(msg.Err)
		m.refreshViewport()
		return m, waitForEvent(m.events)

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		m.statusMsg = "Configuration reloaded"
		return m, clearStatusCmd()

	case clearStatusMsg:
		m.statusMsg = ""

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes keyboard shortcuts. Returns handled=false for keys
// that should fall through to the input and viewport.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.state == StateStreaming {
			m.mgr.Cancel()
		}
		return tea.Quit, true

	case key.Matches(msg, m.keys.Cancel):
		if m.state != StateStreaming {
			return nil, false
		}
		m.mgr.Cancel()
		m.streamBuf.Reset()
		m.streaming = ""
		m.state = StateReady
		m.statusMsg = "Response cancelled"
		m.refreshViewport()
		return clearStatusCmd(), true

	case key.Matches(msg, m.keys.Send):
		return m.sendMessage(), true

	case key.Matches(msg, m.keys.NewConversation):
		if m.state == StateStreaming {
			return nil, true
		}
		m.store.Create("")
		m.errMsg = ""
		m.refreshViewport()
		return nil, true

	case key.Matches(msg, m.keys.Export):
		return m.exportConversation(), true
	}

	return nil, false
}

// sendMessage commits the input as a user message and starts a stream.
func (m *Model) sendMessage() tea.Cmd {
	if m.state == StateStreaming {
		return nil
	}

	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return nil
	}

	conv := m.currentConversation()
	req := &stream.ChatRequest{
		ConversationID: conv.ID,
		Message:        content,
		Model:          m.cfg.Chat.Model,
		Temperature:    m.cfg.Chat.Temperature,
		MaxTokens:      m.cfg.Chat.MaxTokens,
	}

	if err := m.mgr.Start(context.Background(), conv.ID, req); err != nil {
		m.errMsg = friendlyError(err)
		return nil
	}

	m.input.Reset()
	m.errMsg = ""
	m.streaming = ""
	m.streamBuf.Reset()
	m.state = StateStreaming
	m.refreshViewport()
	m.viewport.GotoBottom()

	return tea.Batch(streamTickCmd(), m.spinner.Tick)
}

// exportConversation writes the current conversation as Markdown.
func (m *Model) exportConversation() tea.Cmd {
	conv := m.store.Current()
	if conv == nil || len(conv.Messages) == 0 {
		m.statusMsg = "Nothing to export"
		return clearStatusCmd()
	}

	path, err := export.Markdown(conv, nil)
	if err != nil {
		m.errMsg = "Export failed: " + err.Error()
		return nil
	}
	m.statusMsg = "Exported to " + path
	return clearStatusCmd()
}

// resize lays out the viewport and input for a new terminal size.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	// Header, input box (3 with border), and status bar.
	viewportHeight := height - 1 - 3 - 1
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(width, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = viewportHeight
	}
	m.input.Width = width - 6

	m.refreshViewport()
	m.viewport.GotoBottom()
}
