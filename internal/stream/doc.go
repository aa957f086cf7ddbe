// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the transport client for the backend's
// streaming chat endpoint.
//
// The client owns one outbound streaming HTTP POST per Session and decodes
// the line-oriented response body into discrete events. Message boundaries
// on the wire do not align with network delivery boundaries: a single read
// may contain zero, one, or many complete "data:" lines, and a line may be
// split across two reads. The reader carries the incomplete tail between
// reads, so the decoded event sequence is identical for every possible
// split of the same byte stream.
//
// Each opened session produces zero or more chunk events followed by
// exactly one terminal event (done or error) - unless the caller closes the
// session, in which case the read loop stops silently at its next
// suspension point. Client-initiated cancellation is never surfaced as an
// error.
package stream
