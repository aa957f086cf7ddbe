// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package assembly

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/studychat/studychat-tui/internal/model"
	"github.com/studychat/studychat-tui/internal/store"
	"github.com/studychat/studychat-tui/internal/stream"
)

// ErrStreamActive is returned by Start while another stream is in flight.
var ErrStreamActive = errors.New("a response is already streaming")

// =============================================================================
// STATE
// =============================================================================

// State is the manager's position in the stream lifecycle.
type State int

const (
	// StateIdle means no stream is active and Start may be called.
	StateIdle State = iota

	// StateStreaming means chunks are being consumed.
	StateStreaming

	// StateCompleting means the terminal event arrived and the assistant
	// message is being committed.
	StateCompleting
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleting:
		return "completing"
	default:
		return "invalid"
	}
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Opener starts streaming chat requests. *stream.Client satisfies it.
type Opener interface {
	Open(ctx context.Context, req *stream.ChatRequest) (*stream.Session, error)
}

// Committer appends messages to stored conversations. *store.Store
// satisfies it.
type Committer interface {
	AddMessage(id string, msg *model.Message) error
}

// Callbacks are invoked from the consumer goroutine, never under the
// manager's lock. Any field may be nil.
type Callbacks struct {
	// OnChunk fires per chunk with the new delta and the full text so far.
	OnChunk func(delta, total string)

	// OnComplete fires after a normal end of stream. msg is the committed
	// assistant message, or nil when the stream produced no text.
	OnComplete func(msg *model.Message)

	// OnError fires when the stream ends in a transport failure.
	// Cancellation never reaches OnError.
	OnError func(err error)
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager assembles one streaming response at a time. All methods are safe
// for concurrent use.
type Manager struct {
	mu     sync.Mutex
	state  State
	buf    strings.Builder
	convID string

	// gen advances every time a stream is admitted or torn down. Start
	// records the value at admission and re-checks it after dialing, so a
	// Cancel that lands while the request is still being opened prevents
	// the session from ever being installed.
	gen uint64

	// messageID holds the server-assigned message ID; the first chunk
	// that carries one wins, later values are ignored.
	messageID string

	sess *stream.Session

	opener    Opener
	committer Committer
	callbacks Callbacks
	log       *log.Logger
}

// New creates an idle manager.
func New(opener Opener, committer Committer, cb Callbacks, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		state:     StateIdle,
		opener:    opener,
		committer: committer,
		callbacks: cb,
		log:       logger,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsStreaming reports whether a stream is in flight.
func (m *Manager) IsStreaming() bool {
	return m.State() != StateIdle
}

// StreamingText returns the assistant text assembled so far.
func (m *Manager) StreamingText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.String()
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start sends a chat request for the given conversation and begins
// consuming the response stream. The user's message is committed before
// the request goes out. Returns ErrStreamActive if a stream is already in
// flight; a validation failure commits nothing.
func (m *Manager) Start(ctx context.Context, convID string, req *stream.ChatRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrStreamActive
	}
	m.state = StateStreaming
	m.gen++
	gen := m.gen
	m.buf.Reset()
	m.messageID = ""
	m.convID = convID
	m.mu.Unlock()

	// Commit what the user typed before anything can fail on the wire.
	if err := m.committer.AddMessage(convID, model.NewUserMessage(req.Message)); err != nil {
		m.reset(gen)
		return err
	}

	sess, err := m.opener.Open(ctx, req)
	if err != nil {
		m.reset(gen)
		return err
	}

	m.mu.Lock()
	if m.gen != gen {
		// Cancelled while the request was being opened; the stream must
		// not be consumed or committed.
		m.mu.Unlock()
		sess.Close()
		return nil
	}
	m.sess = sess
	m.mu.Unlock()

	go m.consume(sess)
	return nil
}

// Cancel aborts the active stream and discards the assembled text. A
// cancelled stream commits no assistant message and raises no error.
// Cancelling an idle manager is a no-op.
func (m *Manager) Cancel() {
	m.mu.Lock()
	sess := m.sess
	m.sess = nil
	m.state = StateIdle
	m.gen++
	m.buf.Reset()
	m.messageID = ""
	m.mu.Unlock()

	if sess != nil {
		sess.Close()
		m.log.Debug("stream cancelled")
	}
}

// reset returns the manager to idle, dropping any assembled text. It is a
// no-op when the start identified by gen has already been torn down.
func (m *Manager) reset(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	m.gen++
	m.sess = nil
	m.state = StateIdle
	m.buf.Reset()
	m.messageID = ""
}

// =============================================================================
// STREAM CONSUMPTION
// =============================================================================

// consume drains one session's events. Events belonging to a session the
// manager no longer tracks (cancelled, superseded) are dropped.
func (m *Manager) consume(sess *stream.Session) {
	for ev := range sess.Events() {
		switch {
		case ev.Chunk != nil:
			m.handleChunk(sess, ev.Chunk)
		case ev.Err != nil:
			m.handleError(sess, ev.Err)
		case ev.Done:
			m.handleDone(sess)
		}
	}
}

func (m *Manager) handleChunk(sess *stream.Session, chunk *stream.Chunk) {
	m.mu.Lock()
	if m.sess != sess {
		m.mu.Unlock()
		return
	}
	if m.messageID == "" && chunk.MessageID != "" {
		m.messageID = chunk.MessageID
	}
	m.buf.WriteString(chunk.Content)
	total := m.buf.String()
	onChunk := m.callbacks.OnChunk
	m.mu.Unlock()

	if onChunk != nil {
		onChunk(chunk.Content, total)
	}
}

func (m *Manager) handleError(sess *stream.Session, err error) {
	m.mu.Lock()
	if m.sess != sess {
		m.mu.Unlock()
		return
	}
	m.sess = nil
	m.state = StateIdle
	m.buf.Reset()
	m.messageID = ""
	onError := m.callbacks.OnError
	m.mu.Unlock()

	m.log.Warn("stream failed", "error", err)
	if onError != nil {
		onError(err)
	}
}

// handleDone commits the assembled text as one assistant message and
// returns to idle. An empty buffer commits nothing.
func (m *Manager) handleDone(sess *stream.Session) {
	m.mu.Lock()
	if m.sess != sess {
		m.mu.Unlock()
		return
	}
	m.state = StateCompleting
	text := m.buf.String()
	msgID := m.messageID
	convID := m.convID
	m.sess = nil
	m.buf.Reset()
	m.messageID = ""
	m.mu.Unlock()

	var msg *model.Message
	if text != "" {
		msg = model.NewAssistantMessage(msgID, text)
		if err := m.committer.AddMessage(convID, msg); err != nil {
			if errors.Is(err, store.ErrConversationNotFound) {
				// Deleted mid-stream; the response has nowhere to go.
				m.log.Warn("discarding assistant message for deleted conversation", "conversation", convID)
				msg = nil
			} else {
				m.log.Error("failed to commit assistant message", "conversation", convID, "error", err)
			}
		}
	}

	m.mu.Lock()
	m.state = StateIdle
	onComplete := m.callbacks.OnComplete
	m.mu.Unlock()

	if onComplete != nil {
		onComplete(msg)
	}
}
