// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assembly turns a raw chunk stream into a committed assistant
// message.
//
// The Manager is a single-flight state machine: at most one stream is
// active at a time, and a second Start is rejected rather than queued. The
// user's message is committed to the store before the network request goes
// out, so a failed stream never loses what the user typed. Assistant text
// accumulates in a buffer and is committed as one message only when the
// stream ends normally; errors and cancellation discard the buffer.
package assembly
