// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Conversation is an append-only, chronologically ordered sequence of
// Messages. Messages are immutable once committed; streamed assistant text
// lives in the assembly buffer until completion and only then becomes a
// Message here.
package model
