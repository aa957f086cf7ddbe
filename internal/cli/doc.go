// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli defines the studychat command tree. The bare command starts
// the TUI; subcommands manage saved conversations and configuration from
// scripts or a plain shell.
package cli
