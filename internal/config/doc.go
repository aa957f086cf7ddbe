// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves studychat configuration.
//
// Configuration lives at ~/.studychat/config.toml. Values resolve in order
// of precedence: environment variables (STUDYCHAT_*), the config file, then
// built-in defaults. A Watcher can reload the file when it changes on disk.
package config
