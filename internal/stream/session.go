// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// Chunk is one incremental unit of assistant text from the wire.
type Chunk struct {
	Content        string `json:"content"`
	IsFinal        bool   `json:"is_final"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

// Event is the tagged union delivered on a session's channel. Exactly one
// of the three arms is set: Chunk for payload, Done for normal completion,
// Err for a terminal transport failure.
type Event struct {
	Chunk *Chunk
	Done  bool
	Err   error
}

// IsTerminal reports whether the event ends the stream.
func (e Event) IsTerminal() bool {
	return e.Done || e.Err != nil
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one open streaming request. Events arrive on Events() in
// strict network arrival order; the channel is closed after the terminal
// event, or after a silent stop when the session is closed by the caller.
type Session struct {
	events    chan Event
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Events returns the event channel for this session.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Close aborts the underlying request. The read loop observes the
// cancellation at its next suspension point and stops without emitting
// further events; an abort is not a transport failure. Safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(s.cancel)
}

// Open starts a streaming chat request and returns its session. The HTTP
// exchange runs in a background goroutine; every outcome, including a
// non-success status, is delivered as an event. Open itself fails only on
// an invalid request or an unbuildable body.
func (c *Client) Open(ctx context.Context, req *ChatRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		events: make(chan Event, 8),
		cancel: cancel,
	}

	go c.run(streamCtx, s, body)

	return s, nil
}

// run drives the HTTP exchange and the read loop. It closes the event
// channel on return, which is the only way the channel closes.
func (c *Client) run(ctx context.Context, s *Session, body []byte) {
	defer close(s.events)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+StreamPath, bytes.NewReader(body))
	if err != nil {
		s.emit(ctx, Event{Err: &TransportError{Kind: KindUnknown, Message: err.Error(), Err: err}})
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// Client-initiated abort, never an error event.
			return
		}
		s.emit(ctx, Event{Err: classifyErr(err)})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		c.log.Warn("stream request rejected", "status", resp.StatusCode)
		s.emit(ctx, Event{Err: extractAPIError(resp.StatusCode, errBody)})
		return
	}

	c.readLoop(ctx, s, resp.Body)
}

// readLoop decodes the response body line by line. bufio carries the
// incomplete tail of a line between reads; a trailing line without a
// newline (EOF mid-line) is still processed. The read buffer caps a
// single line at MaxLineSize, so an oversized line is discarded without
// ever being held in memory whole.
func (c *Client) readLoop(ctx context.Context, s *Session, body io.Reader) {
	reader := bufio.NewReaderSize(body, MaxLineSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadSlice('\n')

		if err == bufio.ErrBufferFull {
			c.log.Warn("skipping oversized stream line")
			for err == bufio.ErrBufferFull {
				_, err = reader.ReadSlice('\n')
			}
			if err == nil {
				continue
			}
			line = nil
		}

		if len(line) > 0 {
			terminal := c.handleLine(ctx, s, string(line))
			if terminal {
				return
			}
		}

		if err != nil {
			if err == io.EOF {
				// HTTP body close ends the stream normally.
				s.emit(ctx, Event{Done: true})
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.emit(ctx, Event{Err: classifyErr(err)})
			return
		}
	}
}

// handleLine parses one protocol line and emits the resulting events.
// Returns true when the line terminated the stream.
func (c *Client) handleLine(ctx context.Context, s *Session, line string) bool {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return false
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return false
	}

	if payload == doneSentinel {
		s.emit(ctx, Event{Done: true})
		return true
	}

	var chunk Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		// Protocol tolerance: malformed lines never abort the stream.
		c.log.Debug("skipping malformed stream line", "err", err)
		return false
	}

	if !s.emit(ctx, Event{Chunk: &chunk}) {
		return true
	}

	if chunk.IsFinal {
		// A final chunk ends the stream exactly like the sentinel; any
		// trailing [DONE] line is never read.
		s.emit(ctx, Event{Done: true})
		return true
	}

	return false
}

// emit delivers an event unless the session has been cancelled. Reports
// whether the event was delivered.
func (s *Session) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
