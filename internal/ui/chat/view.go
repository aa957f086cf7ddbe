// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/studychat/studychat-tui/internal/model"
)

// View renders the chat screen: header, transcript, input, status bar.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.theme.InputContainer.Width(m.width - 2).Render(m.input.View()))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatusBar())
	return sb.String()
}

// renderHeader shows the conversation title and the configured model.
func (m *Model) renderHeader() string {
	title := "studychat"
	if conv := m.store.Current(); conv != nil {
		title = conv.Title
	}

	left := m.theme.HeaderTitle.Render(title)
	right := m.theme.HeaderMeta.Render(m.cfg.Chat.Model)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// renderStatusBar shows errors, transient status, or key hints.
func (m *Model) renderStatusBar() string {
	var content string
	switch {
	case m.errMsg != "":
		content = m.theme.StatusError.Render(m.errMsg)
	case m.statusMsg != "":
		content = m.theme.StatusMsg.Render(m.statusMsg)
	case m.state == StateStreaming:
		content = m.spinner.View() + m.theme.StatusInfo.Render(" streaming... ") +
			m.renderHint(m.keys.Cancel.Help().Key, m.keys.Cancel.Help().Desc)
	default:
		content = strings.Join([]string{
			m.renderHint(m.keys.Send.Help().Key, m.keys.Send.Help().Desc),
			m.renderHint(m.keys.NewConversation.Help().Key, m.keys.NewConversation.Help().Desc),
			m.renderHint(m.keys.Export.Help().Key, m.keys.Export.Help().Desc),
			m.renderHint(m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc),
		}, "  ")
	}
	return m.theme.StatusBar.Width(m.width).Render(content)
}

func (m *Model) renderHint(k, desc string) string {
	return m.theme.ShortcutKey.Render(k) + m.theme.ShortcutDesc.Render(" "+desc)
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// refreshViewport re-renders the transcript into the viewport.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
}

// renderTranscript renders every committed message, plus the in-flight
// assistant text while streaming.
func (m *Model) renderTranscript() string {
	conv := m.store.Current()

	var sb strings.Builder
	if conv == nil || (len(conv.Messages) == 0 && m.state != StateStreaming) {
		return m.theme.Timestamp.Render("Start a conversation by typing below.")
	}

	for _, msg := range conv.Messages {
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n\n")
	}

	if m.state == StateStreaming {
		sb.WriteString(m.theme.AssistantLabel.Render(model.RoleAssistant.DisplayName()))
		sb.WriteString("\n")
		sb.WriteString(m.theme.MessageBody.Width(m.width - 2).Render(m.streaming))
		sb.WriteString(m.theme.StreamCursor.Render("▍"))
	}

	return sb.String()
}

// renderMessage renders one committed message with its role label.
func (m *Model) renderMessage(msg *model.Message) string {
	var label string
	switch msg.Role {
	case model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	case model.RoleAssistant:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	default:
		label = m.theme.SystemLabel.Render(msg.Role.DisplayName())
	}

	if m.cfg.UI.ShowTimestamps {
		label += m.theme.Timestamp.Render("  " + msg.Timestamp.Local().Format("15:04"))
	}

	body := m.theme.MessageBody.Width(m.width - 2).Render(msg.Content)
	return label + "\n" + body
}
