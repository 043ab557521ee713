// LumiClaw - Telegram message adaptation engine
// License: MIT
//
// Copyright (c) 2026 LumiClaw contributors

package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/lumiclaw/lumiclaw/pkg/logger"
	"github.com/lumiclaw/lumiclaw/pkg/message"
)

// streamState tracks where a streaming session is in its lifecycle.
type streamState int

const (
	stateAccumulating streamState = iota
	stateSentInitial
	stateEditing
	stateFinalized
)

// streamSession holds the mutable state of one streaming delivery: the text
// accumulated so far for the current target message, what Telegram currently
// displays, and the edit throttle bookkeeping. All methods run on the single
// goroutine inside SendStreaming, which is what guarantees edits are issued
// strictly in order.
type streamSession struct {
	a         *Adapter
	target    sendTarget
	state     streamState
	buffer    string
	displayed string
	messageID int
	lastEdit  int64 // UnixNano of the last edit attempt
}

// SendStreaming consumes a finite sequence of partial chains and delivers
// them as one initial send followed by throttled edits, converging on the
// final accumulated content. Non-text parts are sent immediately, outside the
// edit protocol. Send and edit failures are logged and absorbed; the stream
// always runs to completion unless ctx is cancelled, in which case no further
// calls are issued.
func (a *Adapter) SendStreaming(ctx context.Context, sessionID string, deltas <-chan message.Chain) error {
	target, err := a.resolveTarget(sessionID)
	if err != nil {
		return fmt.Errorf("streaming send: %w", err)
	}
	if target.business != "" && !a.connections.AllowSend(target.business) {
		return nil
	}

	s := &streamSession{a: a, target: target}

	for {
		select {
		case <-ctx.Done():
			// Producer abandoned: leave the message as last edited.
			s.state = stateFinalized
			return ctx.Err()
		case chain, ok := <-deltas:
			if !ok {
				s.finalize(ctx)
				return nil
			}
			s.consume(ctx, chain)
		}
	}
}

func (s *streamSession) consume(ctx context.Context, chain message.Chain) {
	grew := false
	for _, part := range chain {
		switch pt := part.(type) {
		case message.Plain:
			s.buffer += pt.Text
			grew = true
		case message.Image:
			_ = s.a.sendPhoto(ctx, s.target, pt.Source)
		case message.Voice:
			_ = s.a.sendVoice(ctx, s.target, pt.Source)
		case message.Video:
			_ = s.a.sendVideo(ctx, s.target, pt.Source)
		case message.File:
			_ = s.a.sendDocument(ctx, s.target, pt)
		case message.Reply, message.Mention:
			// Not meaningful mid-stream.
		}
	}
	if grew && s.buffer != "" {
		s.deliver(ctx)
	}
}

// deliver pushes the accumulated buffer toward Telegram: first occurrence of
// text sends a new message, later growth edits it under the throttle. A
// buffer that outgrows the length cap seals the current message at a chunk
// boundary and starts a fresh one, instead of attempting an edit the API is
// guaranteed to reject.
func (s *streamSession) deliver(ctx context.Context) {
	for len([]rune(s.buffer)) > s.a.maxLen {
		head := SplitMessage(s.buffer, s.a.maxLen)[0]
		s.seal(ctx, head)

		rest := strings.TrimLeft(string([]rune(s.buffer)[len([]rune(head)):]), " \t\r\n")
		s.buffer = rest
		s.displayed = ""
		s.messageID = 0
		s.state = stateAccumulating
	}

	if s.buffer == "" {
		return
	}

	if s.messageID == 0 {
		s.sendInitial(ctx)
		return
	}

	s.state = stateEditing
	now := s.a.now().UnixNano()
	if now-s.lastEdit < int64(s.a.throttle) {
		// Folded into the next eligible edit.
		return
	}
	s.edit(ctx, s.buffer, "")
	s.lastEdit = s.a.now().UnixNano()
}

func (s *streamSession) sendInitial(ctx context.Context) {
	msg, err := s.a.api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:               s.target.chat,
		Text:                 s.buffer,
		MessageThreadID:      s.target.thread,
		BusinessConnectionID: s.target.business,
	})
	if err != nil {
		logger.WarnCF(component, "Streaming initial send failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	s.messageID = msg.MessageID
	s.displayed = s.buffer
	s.state = stateSentInitial
	s.lastEdit = s.a.now().UnixNano()
}

// seal writes final content to the current target message before rolling
// over to a new one.
func (s *streamSession) seal(ctx context.Context, text string) {
	if s.messageID == 0 {
		msg, err := s.a.api.SendMessage(ctx, &telego.SendMessageParams{
			ChatID:               s.target.chat,
			Text:                 text,
			MessageThreadID:      s.target.thread,
			BusinessConnectionID: s.target.business,
		})
		if err != nil {
			logger.WarnCF(component, "Streaming rollover send failed", map[string]any{
				"error": err.Error(),
			})
			return
		}
		s.messageID = msg.MessageID
		return
	}
	if text != s.displayed {
		s.editRendered(ctx, text)
	}
}

// finalize issues the converging edit: only when the accumulated content
// differs from what is displayed, rendered with markup where possible.
func (s *streamSession) finalize(ctx context.Context) {
	defer func() { s.state = stateFinalized }()

	if s.buffer == "" || s.buffer == s.displayed {
		return
	}

	if s.messageID == 0 {
		// Stream ended before anything was sent; deliver in one shot.
		params := &telego.SendMessageParams{
			ChatID:               s.target.chat,
			Text:                 renderHTML(s.buffer),
			ParseMode:            telego.ModeHTML,
			MessageThreadID:      s.target.thread,
			BusinessConnectionID: s.target.business,
		}
		_ = s.a.sendTextWithFallback(ctx, params, s.buffer)
		return
	}

	s.editRendered(ctx, s.buffer)
}

// editRendered edits with markup rendering, retrying once as plain text when
// the markup edit is rejected.
func (s *streamSession) editRendered(ctx context.Context, text string) {
	if err := s.tryEdit(ctx, renderHTML(text), telego.ModeHTML); err != nil {
		logger.WarnCF(component, "Markup edit failed, retrying as plain text", map[string]any{
			"error": err.Error(),
		})
		if err := s.tryEdit(ctx, text, ""); err != nil {
			logger.WarnCF(component, "Plain edit failed", map[string]any{
				"error": err.Error(),
			})
			return
		}
	}
	s.displayed = text
}

func (s *streamSession) edit(ctx context.Context, text, parseMode string) {
	if err := s.tryEdit(ctx, text, parseMode); err != nil {
		logger.WarnCF(component, "Streaming edit failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	s.displayed = text
}

func (s *streamSession) tryEdit(ctx context.Context, text, parseMode string) error {
	_, err := s.a.api.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    s.target.chat,
		MessageID: s.messageID,
		Text:      text,
		ParseMode: parseMode,
	})
	return err
}
