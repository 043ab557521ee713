// LumiClaw - Telegram message adaptation engine
// License: MIT
//
// Copyright (c) 2026 LumiClaw contributors

package telegram

import (
	"sync"
	"time"

	"github.com/lumiclaw/lumiclaw/pkg/logger"
)

// BusinessConnection records the bot's standing on one Telegram business
// connection. Entries are upserted from business_connection updates and never
// removed; a connection that went away simply stays disabled.
type BusinessConnection struct {
	ID            string
	OwnerUserID   string
	OwnerChatID   string
	Enabled       bool
	CanReply      bool
	EstablishedAt time.Time
}

// ConnectionTable is the adapter-owned store of business connections,
// consulted before every send that targets a business session. Writes come
// from the update-handling goroutine, reads from any in-flight send; entries
// are last-writer-wins.
type ConnectionTable struct {
	mu    sync.RWMutex
	conns map[string]BusinessConnection
}

func NewConnectionTable() *ConnectionTable {
	return &ConnectionTable{conns: make(map[string]BusinessConnection)}
}

// Upsert stores or replaces the record for conn.ID.
func (t *ConnectionTable) Upsert(conn BusinessConnection) {
	t.mu.Lock()
	t.conns[conn.ID] = conn
	t.mu.Unlock()

	logger.InfoCF("telegram", "Business connection updated", map[string]any{
		"connection_id": conn.ID,
		"owner_user_id": conn.OwnerUserID,
		"enabled":       conn.Enabled,
		"can_reply":     conn.CanReply,
	})
}

// Get returns the record for id, if known.
func (t *ConnectionTable) Get(id string) (BusinessConnection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	conn, ok := t.conns[id]
	return conn, ok
}

// AllowSend decides whether an outbound send over the given connection may
// proceed. A known connection must be enabled and allowed to reply. An
// unknown connection is allowed optimistically: the table may simply not have
// seen the connection update yet, and Telegram re-validates on its side.
func (t *ConnectionTable) AllowSend(id string) bool {
	conn, ok := t.Get(id)
	if !ok {
		logger.WarnCF("telegram", "Business connection not in table, sending optimistically", map[string]any{
			"connection_id": id,
		})
		return true
	}
	if !conn.Enabled {
		logger.WarnCF("telegram", "Business connection is disabled, dropping send", map[string]any{
			"connection_id": id,
		})
		return false
	}
	if !conn.CanReply {
		logger.WarnCF("telegram", "Bot cannot reply on business connection, dropping send", map[string]any{
			"connection_id": id,
		})
		return false
	}
	return true
}

// Len reports the number of known connections.
func (t *ConnectionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}
