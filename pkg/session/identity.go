// LumiClaw - Telegram message adaptation engine
// License: MIT
//
// Copyright (c) 2026 LumiClaw contributors

// Package session encodes and decodes the opaque session keys the runtime
// uses to address a conversation target.
//
// Wire forms:
//
//	<chat_id>
//	<chat_id>#<thread_id>            forum topic thread
//	<chat_id>#business#<conn_id>     business-channel session
//
// A key never carries both a thread and a business suffix; Parse rejects
// that combination instead of guessing which one wins.
package session

import (
	"fmt"
	"strings"
)

const businessMarker = "#business#"

// Identity is the decoded form of a session key.
type Identity struct {
	ChatID               string
	ThreadID             string
	BusinessConnectionID string
}

// Parse decodes a session key into its components.
func Parse(key string) (Identity, error) {
	if key == "" {
		return Identity{}, fmt.Errorf("empty session key")
	}

	if chat, conn, ok := strings.Cut(key, businessMarker); ok {
		if chat == "" {
			return Identity{}, fmt.Errorf("session key %q: empty chat id", key)
		}
		if conn == "" {
			return Identity{}, fmt.Errorf("session key %q: empty business connection id", key)
		}
		if strings.Contains(chat, "#") {
			return Identity{}, fmt.Errorf("session key %q: thread and business suffixes are mutually exclusive", key)
		}
		if strings.Contains(conn, "#") {
			return Identity{}, fmt.Errorf("session key %q: malformed business suffix", key)
		}
		return Identity{ChatID: chat, BusinessConnectionID: conn}, nil
	}

	if chat, thread, ok := strings.Cut(key, "#"); ok {
		if chat == "" || thread == "" {
			return Identity{}, fmt.Errorf("session key %q: malformed thread suffix", key)
		}
		if strings.Contains(thread, "#") {
			return Identity{}, fmt.Errorf("session key %q: malformed thread suffix", key)
		}
		return Identity{ChatID: chat, ThreadID: thread}, nil
	}

	return Identity{ChatID: key}, nil
}

// String encodes the identity back into its wire form.
func (id Identity) String() string {
	switch {
	case id.BusinessConnectionID != "":
		return id.ChatID + businessMarker + id.BusinessConnectionID
	case id.ThreadID != "":
		return id.ChatID + "#" + id.ThreadID
	default:
		return id.ChatID
	}
}

// IsBusiness reports whether the session is bound to a business connection.
func (id Identity) IsBusiness() bool {
	return id.BusinessConnectionID != ""
}
