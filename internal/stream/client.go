// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// StreamPath is the backend's streaming chat endpoint.
	StreamPath = "/api/chat/stream"

	// MaxLineSize bounds the read buffer for a single protocol line
	// (64KB). Longer lines are discarded without being buffered whole.
	MaxLineSize = 64 * 1024

	// MaxErrorBodySize limits how much of an error response is read.
	MaxErrorBodySize = 1 * 1024 * 1024

	// MaxMessageLen mirrors the backend's message length limit.
	MaxMessageLen = 10000

	// MaxTemperature and MaxTokensLimit mirror the backend's parameter
	// bounds, so obviously-invalid requests fail before a network call.
	MaxTemperature = 2.0
	MaxTokensLimit = 32000
)

// doneSentinel is the literal end-of-stream payload.
const doneSentinel = "[DONE]"

// dataPrefix marks protocol-bearing lines; everything else is ignored.
const dataPrefix = "data:"

// sharedStreamingClient has no overall timeout: stream lifetime is
// controlled by the session context. Connection pooling is shared across
// sessions.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// =============================================================================
// REQUEST VALIDATION
// =============================================================================

// Validation errors, checked client-side before any network activity.
var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = fmt.Errorf("message exceeds maximum length of %d characters", MaxMessageLen)
	ErrBadTemperature = errors.New("temperature must be between 0 and 2")
	ErrBadMaxTokens   = fmt.Errorf("max_tokens must be between 1 and %d", MaxTokensLimit)
)

// ChatRequest is the JSON body of a streaming chat request.
type ChatRequest struct {
	ConversationID string  `json:"conversation_id,omitempty"`
	Message        string  `json:"message"`
	Model          string  `json:"model,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	MaxTokens      int     `json:"max_tokens,omitempty"`
}

// Validate checks the request against the backend's documented limits.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLen {
		return ErrMessageTooLong
	}
	if r.Temperature < 0 || r.Temperature > MaxTemperature {
		return ErrBadTemperature
	}
	if r.MaxTokens < 0 || r.MaxTokens > MaxTokensLimit {
		return ErrBadMaxTokens
	}
	return nil
}

// =============================================================================
// CLIENT
// =============================================================================

// Client opens streaming chat sessions against a single backend.
// It is stateless between sessions and safe for reuse.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *log.Logger
}

// NewClient creates a client for the given backend base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: sharedStreamingClient,
		log:        log.Default(),
	}
}

// WithLogger sets the logger used for protocol diagnostics.
func (c *Client) WithLogger(logger *log.Logger) *Client {
	if logger != nil {
		c.log = logger
	}
	return c
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}
