// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// Theme holds all the styled components for the application.
type Theme struct {
	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderMeta  lipgloss.Style

	// Transcript
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	MessageBody    lipgloss.Style
	Timestamp      lipgloss.Style
	StreamCursor   lipgloss.Style

	// Input
	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StatusInfo   lipgloss.Style
	StatusError  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// Feedback
	Spinner   lipgloss.Style
	ErrorBox  lipgloss.Style
	StatusMsg lipgloss.Style
}

// NewTheme builds the default theme. Colors adapt to the terminal
// background via AdaptiveColor.
func NewTheme() *Theme {
	return &Theme{
		Header: lipgloss.NewStyle().
			Background(SurfaceDim).
			Padding(0, 1),
		HeaderTitle: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true),
		HeaderMeta: lipgloss.NewStyle().
			Foreground(TextMuted),

		UserLabel: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true),
		AssistantLabel: lipgloss.NewStyle().
			Foreground(Purple).
			Bold(true),
		SystemLabel: lipgloss.NewStyle().
			Foreground(Amber).
			Bold(true),
		MessageBody: lipgloss.NewStyle().
			Foreground(TextPrimary),
		Timestamp: lipgloss.NewStyle().
			Foreground(TextMuted),
		StreamCursor: lipgloss.NewStyle().
			Foreground(Purple).
			Bold(true),

		InputContainer: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Overlay).
			Padding(0, 1),
		InputPrompt: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true),

		StatusBar: lipgloss.NewStyle().
			Background(SurfaceDim).
			Padding(0, 1),
		StatusInfo: lipgloss.NewStyle().
			Foreground(TextSecondary),
		StatusError: lipgloss.NewStyle().
			Foreground(Rose).
			Bold(true),
		ShortcutKey: lipgloss.NewStyle().
			Foreground(Cyan),
		ShortcutDesc: lipgloss.NewStyle().
			Foreground(TextMuted),

		Spinner: lipgloss.NewStyle().
			Foreground(Purple),
		ErrorBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Rose).
			Foreground(Rose).
			Padding(0, 1),
		StatusMsg: lipgloss.NewStyle().
			Foreground(Emerald),
	}
}
