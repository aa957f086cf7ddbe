// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studychat/studychat-tui/internal/store"
)

func TestResolveConversation(t *testing.T) {
	st := store.New(nil, nil)
	a := st.Create("alpha")
	st.Create("beta")

	got, err := resolveConversation(st, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = resolveConversation(st, a.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = resolveConversation(st, "zzzz")
	assert.Error(t, err)

	// Empty prefix matches everything and is ambiguous.
	_, err = resolveConversation(st, "")
	assert.Error(t, err)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "12345678", shortID("123456789abc"))
	assert.Equal(t, "abc", shortID("abc"))
}
