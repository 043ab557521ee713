// LumiClaw - Telegram message adaptation engine
// License: MIT
//
// Copyright (c) 2026 LumiClaw contributors

package message

import (
	"strings"
	"time"
)

// Type distinguishes one-to-one chats from group chats.
type Type int

const (
	DirectMessage Type = iota
	GroupMessage
)

func (t Type) String() string {
	if t == GroupMessage {
		return "group"
	}
	return "direct"
}

// Chain is an ordered sequence of message parts, the outbound unit of work.
type Chain []Part

// PlainText flattens the chain's plain segments into one string.
func (c Chain) PlainText() string {
	var b strings.Builder
	for _, p := range c {
		if plain, ok := p.(Plain); ok {
			b.WriteString(plain.Text)
		}
	}
	return b.String()
}

// HasMedia reports whether the chain carries any non-text attachment.
func (c Chain) HasMedia() bool {
	for _, p := range c {
		switch p.(type) {
		case Image, Voice, Video, File:
			return true
		}
	}
	return false
}

// Member identifies a chat participant.
type Member struct {
	ID   string
	Name string
}

// Message is the platform-agnostic representation of one inbound message.
//
// Parts preserves the original ordering of reply/mention/media/text segments;
// Text is the flattened plain-text projection used for command matching.
type Message struct {
	SessionID string
	Type      Type
	GroupID   string
	MessageID string
	Sender    Member
	SelfID    string
	Text      string
	Parts     []Part
	Timestamp time.Time

	// BusinessConnectionID is set when the message arrived over a Telegram
	// business connection.
	BusinessConnectionID string

	// Raw holds the opaque platform update for handlers that need it.
	Raw any
}
