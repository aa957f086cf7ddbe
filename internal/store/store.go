// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/studychat/studychat-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// PERSISTER INTERFACE
// =============================================================================

// Persister mirrors the in-memory collection to durable storage. Records
// are written whole; the last write for an ID wins.
type Persister interface {
	// SaveConversation overwrites the stored record for the conversation.
	SaveConversation(conv *model.Conversation) error

	// DeleteConversation removes the stored record. Deleting a record
	// that was never saved is not an error.
	DeleteConversation(id string) error

	// LoadAll reads every readable conversation record. Records that no
	// longer parse are skipped, not fatal.
	LoadAll() ([]*model.Conversation, error)

	// Close releases the underlying storage.
	Close() error
}

// =============================================================================
// STORE
// =============================================================================

// Store is the in-memory conversation collection. All methods are safe for
// concurrent use. Mutations are written through to the persister; a write
// failure is logged and the in-memory state stands.
type Store struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	currentID     string

	persister Persister
	log       *log.Logger
}

// New creates a store backed by the given persister. A nil persister gives
// a memory-only store.
func New(p Persister, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		conversations: make(map[string]*model.Conversation),
		persister:     p,
		log:           logger,
	}
}

// Load hydrates the store from the persister. Existing in-memory state is
// replaced. A nil persister makes Load a no-op.
func (s *Store) Load() error {
	if s.persister == nil {
		return nil
	}

	convs, err := s.persister.LoadAll()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make(map[string]*model.Conversation, len(convs))
	for _, conv := range convs {
		s.conversations[conv.ID] = conv
	}

	s.log.Debug("store hydrated", "conversations", len(convs))
	return nil
}

// Close flushes nothing (writes are synchronous) and closes the persister.
func (s *Store) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close()
}

// =============================================================================
// CONVERSATION LIFECYCLE
// =============================================================================

// Create adds a new empty conversation, makes it current, and returns a
// copy. An empty title gets the default placeholder.
func (s *Store) Create(title string) *model.Conversation {
	conv := model.NewConversation(title)

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.currentID = conv.ID
	clone := conv.Clone()
	s.mu.Unlock()

	s.persist(conv.ID)
	return clone
}

// Get returns a copy of the conversation with the given ID.
func (s *Store) Get(id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conv.Clone(), nil
}

// List returns metadata for every conversation, most recently updated
// first.
func (s *Store) List() []model.ConversationMeta {
	s.mu.Lock()
	metas := make([]model.ConversationMeta, 0, len(s.conversations))
	for _, conv := range s.conversations {
		metas = append(metas, conv.Meta())
	}
	s.mu.Unlock()

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas
}

// Delete removes a conversation from the collection and its stored record.
// If it was current, the store is left with no current conversation.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.conversations[id]; !ok {
		s.mu.Unlock()
		return ErrConversationNotFound
	}
	delete(s.conversations, id)
	if s.currentID == id {
		s.currentID = ""
	}
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.DeleteConversation(id); err != nil {
			s.log.Warn("failed to delete stored conversation", "id", id, "error", err)
		}
	}
	return nil
}

// Rename sets an explicit title on a conversation.
func (s *Store) Rename(id, title string) error {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return ErrConversationNotFound
	}
	conv.SetTitle(title)
	s.mu.Unlock()

	s.persist(id)
	return nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// AddMessage appends a message to a conversation and writes the record
// through. The conversation's title and UpdatedAt are maintained by the
// append.
func (s *Store) AddMessage(id string, msg *model.Message) error {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return ErrConversationNotFound
	}
	conv.AddMessage(msg)
	s.mu.Unlock()

	s.persist(id)
	return nil
}

// =============================================================================
// CURRENT CONVERSATION
// =============================================================================

// Current returns a copy of the current conversation, or nil when none is
// selected.
func (s *Store) Current() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[s.currentID]
	if !ok {
		return nil
	}
	return conv.Clone()
}

// CurrentID returns the ID of the current conversation, or "".
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// SetCurrent selects the conversation with the given ID.
func (s *Store) SetCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return ErrConversationNotFound
	}
	s.currentID = id
	return nil
}

// =============================================================================
// WRITE-THROUGH
// =============================================================================

// persist writes one conversation's record through to the persister. The
// snapshot is taken under the lock; the write happens outside it.
func (s *Store) persist(id string) {
	if s.persister == nil {
		return
	}

	s.mu.Lock()
	conv, ok := s.conversations[id]
	var snapshot *model.Conversation
	if ok {
		snapshot = conv.Clone()
	}
	s.mu.Unlock()

	if snapshot == nil {
		return
	}
	if err := s.persister.SaveConversation(snapshot); err != nil {
		s.log.Warn("failed to persist conversation", "id", id, "error", err)
	}
}
