// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the studychat TUI.
//
// The view renders the current conversation transcript, a single-line
// input, and a status bar. While a response streams, incoming deltas are
// batched by a StreamingBuffer and drained on a fixed tick so the terminal
// repaints at a capped frame rate instead of once per token.
package chat
