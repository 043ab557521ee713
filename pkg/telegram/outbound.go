package telegram

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/lumiclaw/lumiclaw/pkg/logger"
	"github.com/lumiclaw/lumiclaw/pkg/message"
	"github.com/lumiclaw/lumiclaw/pkg/session"
	"github.com/lumiclaw/lumiclaw/pkg/utils"
)

// sendTarget carries the resolved addressing shared by every send op of one
// outbound chain.
type sendTarget struct {
	chat     telego.ChatID
	thread   int
	business string
}

func (a *Adapter) resolveTarget(sessionID string) (sendTarget, error) {
	id, err := session.Parse(sessionID)
	if err != nil {
		return sendTarget{}, err
	}

	chatID, err := strconv.ParseInt(id.ChatID, 10, 64)
	if err != nil {
		return sendTarget{}, fmt.Errorf("invalid chat id %q: %w", id.ChatID, err)
	}

	target := sendTarget{chat: tu.ID(chatID), business: id.BusinessConnectionID}
	if id.ThreadID != "" {
		target.thread, err = strconv.Atoi(id.ThreadID)
		if err != nil {
			return sendTarget{}, fmt.Errorf("invalid thread id %q: %w", id.ThreadID, err)
		}
	}
	return target, nil
}

// SendChain delivers a canonical message chain to the session's chat. Plain
// parts are chunked under the length cap and sent as HTML with a plain-text
// fallback; media parts become one send op each. A denied business session is
// a silent no-op: the gate has already logged the reason.
func (a *Adapter) SendChain(ctx context.Context, sessionID string, chain message.Chain) error {
	target, err := a.resolveTarget(sessionID)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if target.business != "" && !a.connections.AllowSend(target.business) {
		return nil
	}

	// The chain-level reply reference and mention prefix are gathered up
	// front; the reply attaches to the first text send, the mention prefixes
	// the first plain part exactly once.
	var replyTo int
	var mention string
	for _, p := range chain {
		switch pt := p.(type) {
		case message.Reply:
			if replyTo == 0 {
				replyTo, _ = strconv.Atoi(pt.ID)
			}
		case message.Mention:
			if mention == "" {
				mention = pt.Display
			}
		}
	}

	var lastErr error
	mentionApplied := false
	replyApplied := false

	for _, part := range chain {
		switch pt := part.(type) {
		case message.Plain:
			text := pt.Text
			if mention != "" && !mentionApplied {
				text = "@" + mention + " " + text
				mentionApplied = true
			}
			for _, chunk := range SplitMessage(text, a.maxLen) {
				params := &telego.SendMessageParams{
					ChatID:               target.chat,
					Text:                 renderHTML(chunk),
					ParseMode:            telego.ModeHTML,
					MessageThreadID:      target.thread,
					BusinessConnectionID: target.business,
				}
				if replyTo != 0 && !replyApplied {
					params.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo}
				}
				if err := a.sendTextWithFallback(ctx, params, chunk); err != nil {
					lastErr = err
					continue
				}
				replyApplied = true
			}

		case message.Image:
			if err := a.sendPhoto(ctx, target, pt.Source); err != nil {
				lastErr = err
			}

		case message.Voice:
			if err := a.sendVoice(ctx, target, pt.Source); err != nil {
				lastErr = err
			}

		case message.Video:
			if err := a.sendVideo(ctx, target, pt.Source); err != nil {
				lastErr = err
			}

		case message.File:
			if err := a.sendDocument(ctx, target, pt); err != nil {
				lastErr = err
			}

		case message.Reply, message.Mention:
			// Consumed above.
		}
	}

	return lastErr
}

// sendTextWithFallback tries the rendered HTML first and retries the raw
// chunk without a parse mode when Telegram rejects the markup. Rendering
// problems must never escalate past this point.
func (a *Adapter) sendTextWithFallback(ctx context.Context, params *telego.SendMessageParams, raw string) error {
	if _, err := a.api.SendMessage(ctx, params); err != nil {
		logger.WarnCF(component, "HTML send failed, falling back to plain text", map[string]any{
			"error": err.Error(),
		})
		params.Text = raw
		params.ParseMode = ""
		if _, err := a.api.SendMessage(ctx, params); err != nil {
			logger.WarnCF(component, "Plain text send failed", map[string]any{
				"error": err.Error(),
			})
			return err
		}
	}
	return nil
}

func (a *Adapter) sendPhoto(ctx context.Context, target sendTarget, src message.Source) error {
	input, cleanup, err := inputFile(src, "")
	if err != nil {
		logger.WarnCF(component, "Cannot open photo source", map[string]any{"error": err.Error()})
		return err
	}
	defer cleanup()

	_, err = a.api.SendPhoto(ctx, &telego.SendPhotoParams{
		ChatID:               target.chat,
		Photo:                input,
		MessageThreadID:      target.thread,
		BusinessConnectionID: target.business,
	})
	if err != nil {
		logger.WarnCF(component, "Photo send failed", map[string]any{"error": err.Error()})
	}
	return err
}

func (a *Adapter) sendVoice(ctx context.Context, target sendTarget, src message.Source) error {
	input, cleanup, err := inputFile(src, "")
	if err != nil {
		logger.WarnCF(component, "Cannot open voice source", map[string]any{"error": err.Error()})
		return err
	}
	defer cleanup()

	_, err = a.api.SendVoice(ctx, &telego.SendVoiceParams{
		ChatID:               target.chat,
		Voice:                input,
		MessageThreadID:      target.thread,
		BusinessConnectionID: target.business,
	})
	if err != nil {
		logger.WarnCF(component, "Voice send failed", map[string]any{"error": err.Error()})
	}
	return err
}

func (a *Adapter) sendVideo(ctx context.Context, target sendTarget, src message.Source) error {
	input, cleanup, err := inputFile(src, "")
	if err != nil {
		logger.WarnCF(component, "Cannot open video source", map[string]any{"error": err.Error()})
		return err
	}
	defer cleanup()

	_, err = a.api.SendVideo(ctx, &telego.SendVideoParams{
		ChatID:               target.chat,
		Video:                input,
		MessageThreadID:      target.thread,
		BusinessConnectionID: target.business,
	})
	if err != nil {
		logger.WarnCF(component, "Video send failed", map[string]any{"error": err.Error()})
	}
	return err
}

// sendDocument uploads a document, materializing remote sources to local
// storage first so the declared filename survives the upload.
func (a *Adapter) sendDocument(ctx context.Context, target sendTarget, doc message.File) error {
	src := doc.Source
	if src.IsRemote() {
		name := doc.Name
		if name == "" {
			name = path.Base(src.URL)
		}
		local, err := utils.DownloadNamed(ctx, a.httpClient, src.URL, name)
		if err != nil {
			logger.WarnCF(component, "Document fetch failed", map[string]any{
				"url":   src.URL,
				"error": err.Error(),
			})
			return err
		}
		defer os.Remove(local)
		src = message.Source{Path: local}
	}

	input, cleanup, err := inputFile(src, doc.Name)
	if err != nil {
		logger.WarnCF(component, "Cannot open document source", map[string]any{"error": err.Error()})
		return err
	}
	defer cleanup()

	_, err = a.api.SendDocument(ctx, &telego.SendDocumentParams{
		ChatID:               target.chat,
		Document:             input,
		MessageThreadID:      target.thread,
		BusinessConnectionID: target.business,
	})
	if err != nil {
		logger.WarnCF(component, "Document send failed", map[string]any{"error": err.Error()})
	}
	return err
}

// inputFile builds a telego input from a source: remote URLs pass through as
// URL uploads, local paths are opened for streaming upload. The cleanup
// closes any opened file and is always safe to call.
func inputFile(src message.Source, name string) (telego.InputFile, func(), error) {
	if src.IsRemote() {
		return tu.FileFromURL(src.URL), func() {}, nil
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return telego.InputFile{}, func() {}, fmt.Errorf("open %s: %w", src.Path, err)
	}
	if name != "" {
		return tu.File(tu.NameReader(f, name)), func() { f.Close() }, nil
	}
	return tu.File(f), func() { f.Close() }, nil
}
