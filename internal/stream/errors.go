// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrorKind classifies a transport failure.
type ErrorKind int

const (
	// KindHTTP is a non-success HTTP status received before streaming began.
	KindHTTP ErrorKind = iota
	// KindNetwork is a connection or read failure during the stream.
	KindNetwork
	// KindTimeout is a network timeout or exceeded deadline.
	KindTimeout
	// KindUnknown is any other unexpected failure.
	KindUnknown
)

// String returns the kind's wire-friendly name.
func (k ErrorKind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TransportError is the single terminal error type surfaced by a Session.
type TransportError struct {
	Kind    ErrorKind
	Status  int    // HTTP status, set for KindHTTP
	Message string // human-readable detail
	Err     error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("stream %s error (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("stream %s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("stream %s error: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyErr maps a read/dial failure to a TransportError.
func classifyErr(err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, Message: "request deadline exceeded", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: KindTimeout, Message: "network timeout", Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &TransportError{Kind: KindNetwork, Message: urlErr.Err.Error(), Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &TransportError{Kind: KindNetwork, Message: opErr.Error(), Err: err}
	}

	return &TransportError{Kind: KindUnknown, Message: err.Error(), Err: err}
}

// apiErrorBody is the backend's error response shape.
type apiErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// extractAPIError builds a KindHTTP error from a non-success response,
// pulling the human-readable message out of the body when it parses.
func extractAPIError(status int, body []byte) *TransportError {
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil {
		switch {
		case apiErr.Message != "":
			return &TransportError{Kind: KindHTTP, Status: status, Message: apiErr.Message}
		case apiErr.Error != "":
			return &TransportError{Kind: KindHTTP, Status: status, Message: apiErr.Error}
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "request failed"
	}
	return &TransportError{Kind: KindHTTP, Status: status, Message: msg}
}
