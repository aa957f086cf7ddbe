// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studychat/studychat-tui/internal/config"
	"github.com/studychat/studychat-tui/internal/store"
	"github.com/studychat/studychat-tui/internal/stream"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	return New(config.Default(), store.New(nil, nil), stream.NewClient("http://localhost:0"), nil)
}

func TestConfigReloadSwapsDefaults(t *testing.T) {
	m := newTestModel(t)

	next := config.Default()
	next.Chat.Model = "mistral-small-latest"
	next.Chat.Temperature = 0.2

	updated, cmd := m.Update(ConfigReloadedMsg{Config: next})
	got, ok := updated.(*Model)
	require.True(t, ok)

	assert.Same(t, next, got.cfg)
	assert.Equal(t, "Configuration reloaded", got.statusMsg)
	assert.NotNil(t, cmd, "status line must expire")
}

func TestStreamCompleteDrainsRenderBuffer(t *testing.T) {
	m := newTestModel(t)
	m.state = StateStreaming
	m.streamBuf.Write("left over")
	m.streaming = "partial"

	updated, _ := m.Update(StreamCompleteMsg{Message: nil})
	got, ok := updated.(*Model)
	require.True(t, ok)

	assert.Equal(t, StateReady, got.state)
	assert.Empty(t, got.streaming)
	assert.Equal(t, 0, got.streamBuf.pending())
}
