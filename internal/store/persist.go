// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/studychat/studychat-tui/internal/model"
)

// conversationKeyPrefix namespaces conversation records in the kv table so
// other record kinds can share the same database.
const conversationKeyPrefix = "conversation:"

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// =============================================================================
// SQLITE PERSISTER
// =============================================================================

// SQLitePersister mirrors conversations into a namespaced key-value table
// in a SQLite database. Each conversation is one JSON record under the key
// "conversation:<id>"; saves are whole-record upserts.
type SQLitePersister struct {
	db  *sql.DB
	log *log.Logger
}

// NewSQLitePersister opens (or creates) the database at path and ensures
// the kv schema exists. The parent directory is created if missing.
func NewSQLitePersister(path string, logger *log.Logger) (*SQLitePersister, error) {
	if logger == nil {
		logger = log.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; funnel everything through one
	// connection to avoid SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLitePersister{db: db, log: logger}, nil
}

// Close closes the underlying database.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}

// SaveConversation upserts the whole conversation record. The last write
// for an ID wins.
func (p *SQLitePersister) SaveConversation(conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", conv.ID, err)
	}

	_, err = p.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		conversationKey(conv.ID), data,
	)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.ID, err)
	}
	return nil
}

// DeleteConversation removes the stored record. Missing records are not an
// error.
func (p *SQLitePersister) DeleteConversation(id string) error {
	_, err := p.db.Exec(`DELETE FROM kv WHERE key = ?`, conversationKey(id))
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

// LoadAll scans the conversation namespace and decodes every record.
// Records that fail to decode are logged and skipped so one corrupted row
// cannot block startup.
func (p *SQLitePersister) LoadAll() ([]*model.Conversation, error) {
	rows, err := p.db.Query(
		`SELECT key, value FROM kv WHERE key LIKE ?`,
		conversationKeyPrefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("scan conversations: %w", err)
	}
	defer rows.Close()

	var convs []*model.Conversation
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		var conv model.Conversation
		if err := json.Unmarshal(value, &conv); err != nil {
			p.log.Warn("skipping corrupted conversation record", "key", key, "error", err)
			continue
		}
		convs = append(convs, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan conversations: %w", err)
	}

	return convs, nil
}

// conversationKey builds the namespaced record key for a conversation ID.
func conversationKey(id string) string {
	return conversationKeyPrefix + id
}
