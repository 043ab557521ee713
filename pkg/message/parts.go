// LumiClaw - Telegram message adaptation engine
// License: MIT
//
// Copyright (c) 2026 LumiClaw contributors

package message

import "time"

// Part is one segment of a message chain. The variant set is closed: every
// implementation lives in this package so translation code can switch
// exhaustively over the concrete types.
type Part interface {
	isPart()
}

// Plain is a run of plain text.
type Plain struct {
	Text string
}

// Mention references another chat member by display name.
type Mention struct {
	TargetID string
	Display  string
}

// Reply embeds the message being replied to. Built from one prior translation
// pass; Parts never contains another Reply.
type Reply struct {
	ID         string
	SenderID   string
	SenderName string
	Text       string
	Time       time.Time
	Parts      []Part
}

// Image is a picture attachment. Stickers are represented as images too.
type Image struct {
	Source Source
}

// Voice is a voice note attachment.
type Voice struct {
	Source Source
}

// Video is a video attachment.
type Video struct {
	Source Source
}

// File is a generic document attachment.
type File struct {
	Source Source
	Name   string
}

func (Plain) isPart()   {}
func (Mention) isPart() {}
func (Reply) isPart()   {}
func (Image) isPart()   {}
func (Voice) isPart()   {}
func (Video) isPart()   {}
func (File) isPart()    {}

// Source locates attachment bytes: either a remote URL or a local path.
type Source struct {
	URL  string
	Path string
}

// IsRemote reports whether the attachment still needs to be fetched before it
// can be uploaded.
func (s Source) IsRemote() bool {
	return s.Path == "" && s.URL != ""
}

// Local returns the local path when present, else the URL. Telegram accepts
// both file uploads and URL references for most send calls.
func (s Source) Local() string {
	if s.Path != "" {
		return s.Path
	}
	return s.URL
}
