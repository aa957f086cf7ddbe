// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studychat/studychat-tui/internal/model"
)

// recordingPersister captures persister calls for assertions and can be
// told to fail.
type recordingPersister struct {
	mu      sync.Mutex
	saved   map[string]*model.Conversation
	deleted []string
	failAll bool
}

func newRecordingPersister() *recordingPersister {
	return &recordingPersister{saved: make(map[string]*model.Conversation)}
}

func (p *recordingPersister) SaveConversation(conv *model.Conversation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return errors.New("disk full")
	}
	p.saved[conv.ID] = conv
	return nil
}

func (p *recordingPersister) DeleteConversation(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return errors.New("disk full")
	}
	p.deleted = append(p.deleted, id)
	delete(p.saved, id)
	return nil
}

func (p *recordingPersister) LoadAll() ([]*model.Conversation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var convs []*model.Conversation
	for _, c := range p.saved {
		convs = append(convs, c)
	}
	return convs, nil
}

func (p *recordingPersister) Close() error { return nil }

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestCreateMakesCurrent(t *testing.T) {
	s := New(nil, nil)

	conv := s.Create("")
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, model.DefaultTitle, conv.Title)
	assert.Equal(t, conv.ID, s.CurrentID())
}

func TestGetReturnsCopy(t *testing.T) {
	s := New(nil, nil)
	conv := s.Create("notes")

	got, err := s.Get(conv.ID)
	require.NoError(t, err)

	// Mutating the copy must not leak into the store.
	got.Title = "mutated"
	again, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "notes", again.Title)
}

func TestGetUnknown(t *testing.T) {
	s := New(nil, nil)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestListMostRecentFirst(t *testing.T) {
	s := New(nil, nil)
	a := s.Create("first")
	b := s.Create("second")

	// Touch the older one so it sorts to the front.
	require.NoError(t, s.AddMessage(a.ID, model.NewUserMessage("hi")))

	metas := s.List()
	require.Len(t, metas, 2)
	assert.Equal(t, a.ID, metas[0].ID)
	assert.Equal(t, b.ID, metas[1].ID)
}

func TestDelete(t *testing.T) {
	p := newRecordingPersister()
	s := New(p, nil)
	conv := s.Create("doomed")

	require.NoError(t, s.Delete(conv.ID))
	_, err := s.Get(conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.Empty(t, s.CurrentID(), "deleting the current conversation unsets it")
	assert.Contains(t, p.deleted, conv.ID)

	assert.ErrorIs(t, s.Delete(conv.ID), ErrConversationNotFound)
}

func TestRename(t *testing.T) {
	s := New(nil, nil)
	conv := s.Create("")

	require.NoError(t, s.Rename(conv.ID, "Budget planning"))
	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Budget planning", got.Title)

	// An explicit title survives later messages.
	require.NoError(t, s.AddMessage(conv.ID, model.NewUserMessage("unrelated text")))
	got, err = s.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Budget planning", got.Title)

	assert.ErrorIs(t, s.Rename("nope", "x"), ErrConversationNotFound)
}

func TestSetCurrent(t *testing.T) {
	s := New(nil, nil)
	a := s.Create("a")
	s.Create("b")

	require.NoError(t, s.SetCurrent(a.ID))
	assert.Equal(t, a.ID, s.CurrentID())
	require.NotNil(t, s.Current())
	assert.Equal(t, a.ID, s.Current().ID)

	assert.ErrorIs(t, s.SetCurrent("nope"), ErrConversationNotFound)
}

func TestCurrentNilWhenUnset(t *testing.T) {
	s := New(nil, nil)
	assert.Nil(t, s.Current())
}

// =============================================================================
// MESSAGES
// =============================================================================

func TestAddMessage(t *testing.T) {
	s := New(nil, nil)
	conv := s.Create("")

	require.NoError(t, s.AddMessage(conv.ID, model.NewUserMessage("what is a monad")))
	require.NoError(t, s.AddMessage(conv.ID, model.NewAssistantMessage("", "a monoid in the category of endofunctors")))

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, model.RoleUser, got.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "what is a monad", got.Title)
}

func TestAddMessageUnknownConversation(t *testing.T) {
	s := New(nil, nil)
	err := s.AddMessage("nope", model.NewUserMessage("hi"))
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

// =============================================================================
// WRITE-THROUGH
// =============================================================================

func TestMutationsWriteThrough(t *testing.T) {
	p := newRecordingPersister()
	s := New(p, nil)

	conv := s.Create("")
	require.Contains(t, p.saved, conv.ID, "create persists")

	require.NoError(t, s.AddMessage(conv.ID, model.NewUserMessage("hello")))
	require.Len(t, p.saved[conv.ID].Messages, 1, "append persists the whole record")

	require.NoError(t, s.Rename(conv.ID, "greetings"))
	assert.Equal(t, "greetings", p.saved[conv.ID].Title)
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	p := newRecordingPersister()
	p.failAll = true
	s := New(p, nil)

	conv := s.Create("")
	require.NoError(t, s.AddMessage(conv.ID, model.NewUserMessage("hi")))

	// In-memory state stands despite the failed writes.
	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)

	require.NoError(t, s.Delete(conv.ID))
	_, err = s.Get(conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestLoadReplacesState(t *testing.T) {
	p := newRecordingPersister()

	seed := New(p, nil)
	a := seed.Create("stale")
	require.NoError(t, seed.AddMessage(a.ID, model.NewUserMessage("old")))

	s := New(p, nil)
	require.NoError(t, s.Load())
	require.Len(t, s.List(), 1)

	// The durable mirror changes behind the store's back; a reload must
	// reflect exactly what is on disk, not merge with memory.
	b := model.NewConversation("fresh")
	p.mu.Lock()
	delete(p.saved, a.ID)
	p.saved[b.ID] = b
	p.mu.Unlock()

	require.NoError(t, s.Load())
	metas := s.List()
	require.Len(t, metas, 1)
	assert.Equal(t, b.ID, metas[0].ID)
	_, err := s.Get(a.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentAppends(t *testing.T) {
	s := New(newRecordingPersister(), nil)
	conv := s.Create("")

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = s.AddMessage(conv.ID, model.NewUserMessage("msg"))
		}()
	}
	wg.Wait()

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, n)
}
