package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/lumiclaw/lumiclaw/pkg/logger"
	"github.com/lumiclaw/lumiclaw/pkg/message"
	"github.com/lumiclaw/lumiclaw/pkg/session"
)

// Translate converts a Telegram update into a canonical message. The result
// is nil (with nil error) when the update carries no deliverable payload or
// was fully handled inline (the /start greeting).
func (a *Adapter) Translate(ctx context.Context, update telego.Update) (*message.Message, error) {
	return a.convert(ctx, update, 0)
}

// convert does the work of Translate. depth bounds reply expansion: the
// replied-to message is translated once with depth 1, which disables further
// reply expansion and the /start intercept. Acyclic by construction.
func (a *Adapter) convert(ctx context.Context, update telego.Update, depth int) (*message.Message, error) {
	tm := inboundPayload(update)
	if tm == nil {
		return nil, nil
	}
	if tm.From == nil {
		return nil, fmt.Errorf("update %d: message has no sender", update.UpdateID)
	}

	chatID := strconv.FormatInt(tm.Chat.ID, 10)

	m := &message.Message{
		SessionID: chatID,
		MessageID: strconv.Itoa(tm.MessageID),
		Sender: message.Member{
			ID:   strconv.FormatInt(tm.From.ID, 10),
			Name: tm.From.Username,
		},
		SelfID:    a.username,
		Timestamp: time.Unix(tm.Date, 0),
		Raw:       update,
	}

	if tm.Chat.Type == "private" {
		m.Type = message.DirectMessage
	} else {
		m.Type = message.GroupMessage
		m.GroupID = chatID
		if tm.MessageThreadID != 0 {
			// Forum topic: the thread becomes part of the session key.
			m.GroupID = session.Identity{
				ChatID:   chatID,
				ThreadID: strconv.Itoa(tm.MessageThreadID),
			}.String()
			m.SessionID = m.GroupID
		}
	}

	if bm := businessPayload(update); bm != nil && bm.BusinessConnectionID != "" {
		m.BusinessConnectionID = bm.BusinessConnectionID
		m.SessionID = session.Identity{
			ChatID:               m.SessionID,
			BusinessConnectionID: bm.BusinessConnectionID,
		}.String()
	}

	if reply := tm.ReplyToMessage; reply != nil && depth == 0 && !isTopicHeaderReference(tm) {
		nested, err := a.convert(ctx, telego.Update{UpdateID: 1, Message: reply}, depth+1)
		if err != nil {
			logger.DebugCF(component, "Skipping unconvertible reply", map[string]any{
				"message_id": reply.MessageID,
				"error":      err.Error(),
			})
		} else if nested != nil {
			m.Parts = append(m.Parts, message.Reply{
				ID:         nested.MessageID,
				SenderID:   nested.Sender.ID,
				SenderName: nested.Sender.Name,
				Text:       nested.Text,
				Time:       nested.Timestamp,
				Parts:      nested.Parts,
			})
		}
	}

	switch {
	case tm.Text != "":
		if err := a.convertText(m, tm); err != nil {
			return nil, err
		}
		if depth == 0 && strings.TrimSpace(m.Text) == "/start" {
			a.sendStartGreeting(ctx, tm.Chat.ID)
			return nil, nil
		}

	case tm.Voice != nil:
		src, err := a.resolveFile(ctx, tm.Voice.FileID)
		if err != nil {
			return nil, err
		}
		m.Parts = append(m.Parts, message.Voice{Source: src})

	case len(tm.Photo) > 0:
		// Telegram orders photo sizes ascending; take the largest.
		src, err := a.resolveFile(ctx, tm.Photo[len(tm.Photo)-1].FileID)
		if err != nil {
			return nil, err
		}
		m.Parts = append(m.Parts, message.Image{Source: src})
		if tm.Caption != "" {
			m.Text = tm.Caption
			m.Parts = append(m.Parts, message.Plain{Text: tm.Caption})
			for _, e := range tm.CaptionEntities {
				if e.Type != "mention" {
					continue
				}
				if name, ok := entityText(tm.Caption, e); ok {
					m.Parts = append(m.Parts, message.Mention{TargetID: name, Display: name})
				}
			}
		}

	case tm.Sticker != nil:
		src, err := a.resolveFile(ctx, tm.Sticker.FileID)
		if err != nil {
			return nil, err
		}
		m.Parts = append(m.Parts, message.Image{Source: src})
		if tm.Sticker.Emoji != "" {
			caption := "Sticker: " + tm.Sticker.Emoji
			m.Text = caption
			m.Parts = append(m.Parts, message.Plain{Text: caption})
		}

	case tm.Document != nil:
		src, err := a.resolveFile(ctx, tm.Document.FileID)
		if err != nil {
			return nil, err
		}
		m.Parts = append(m.Parts, message.File{Source: src, Name: tm.Document.FileName})

	case tm.Video != nil:
		src, err := a.resolveFile(ctx, tm.Video.FileID)
		if err != nil {
			return nil, err
		}
		m.Parts = append(m.Parts, message.Video{Source: src})
	}

	return m, nil
}

// convertText handles the plain-text payload: command de-addressing, mention
// extraction, and bot-mention excision from the flattened text.
func (a *Adapter) convertText(m *message.Message, tm *telego.Message) error {
	plain := tm.Text

	if strings.HasPrefix(plain, "/") {
		plain = a.normalizeCommand(plain)
	}

	for _, e := range tm.Entities {
		if e.Type != "mention" {
			continue
		}
		runes := []rune(plain)
		if e.Offset < 0 || e.Offset+e.Length > len(runes) || e.Length < 1 {
			continue
		}
		name := string(runes[e.Offset+1 : e.Offset+e.Length])
		m.Parts = append(m.Parts, message.Mention{TargetID: name, Display: name})
		// A mention of this bot is noise for command parsing; cut it out of
		// the flattened text but keep the Mention part.
		if strings.EqualFold(name, a.username) {
			plain = string(runes[:e.Offset]) + string(runes[e.Offset+e.Length:])
		}
	}

	if plain != "" {
		m.Parts = append(m.Parts, message.Plain{Text: plain})
	}
	m.Text = plain
	return nil
}

// normalizeCommand strips an "@botname" suffix from the command token, but
// only when it names this bot. A command addressed at another bot in a
// multi-bot group passes through untouched so the caller can ignore it.
func (a *Adapter) normalizeCommand(text string) string {
	cmd, rest, hasRest := strings.Cut(text, " ")
	name, botName, hasAt := strings.Cut(cmd, "@")
	if !hasAt || botName != a.username {
		return text
	}
	if hasRest {
		return name + " " + rest
	}
	return name
}

func (a *Adapter) sendStartGreeting(ctx context.Context, chatID int64) {
	_, err := a.api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: tu.ID(chatID),
		Text:   a.cfg.StartMessage,
	})
	if err != nil {
		logger.WarnCF(component, "Failed to send start greeting", map[string]any{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
}

// resolveFile turns a Telegram file id into a downloadable source URL.
func (a *Adapter) resolveFile(ctx context.Context, fileID string) (message.Source, error) {
	f, err := a.api.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return message.Source{}, fmt.Errorf("get file %s: %w", fileID, err)
	}
	if f.FilePath == "" {
		return message.Source{}, fmt.Errorf("get file %s: empty file path", fileID)
	}
	return message.Source{URL: a.fileURL(f.FilePath)}, nil
}

// businessPayload returns the business message variant of an update, if any.
func businessPayload(update telego.Update) *telego.Message {
	if update.BusinessMessage != nil {
		return update.BusinessMessage
	}
	return update.EditedBusinessMessage
}

// isTopicHeaderReference reports whether the reply pointer is just the forum
// topic header every topic message formally replies to.
func isTopicHeaderReference(tm *telego.Message) bool {
	return tm.IsTopicMessage &&
		tm.ReplyToMessage != nil &&
		tm.MessageThreadID == tm.ReplyToMessage.MessageID
}

func entityText(text string, e telego.MessageEntity) (string, bool) {
	runes := []rune(text)
	if e.Offset < 0 || e.Length < 1 || e.Offset+e.Length > len(runes) {
		return "", false
	}
	return string(runes[e.Offset+1 : e.Offset+e.Length]), true
}
