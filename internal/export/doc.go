// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to files in shareable formats.
// Markdown is for reading; JSON is a faithful dump of the stored record.
package export
