// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the in-memory conversation collection and keeps a
// durable mirror of it through a Persister.
//
// The in-memory map is the source of truth while the process runs. Every
// mutation is written through to the persister as a whole-record overwrite;
// a persistence failure is logged and the in-memory result stands. At
// startup Load hydrates the map from whatever the persister can read,
// skipping records that no longer parse.
package store
