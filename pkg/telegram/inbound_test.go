package telegram

import (
	"context"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumiclaw/lumiclaw/pkg/message"
)

func privateText(chatID, userID int64, text string) *telego.Message {
	return &telego.Message{
		MessageID: 10,
		From:      &telego.User{ID: userID, Username: "alice"},
		Chat:      telego.Chat{ID: chatID, Type: "private"},
		Date:      1700000100,
		Text:      text,
	}
}

func TestTranslate_PrivateTextMessage(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	m, err := a.Translate(context.Background(), telego.Update{
		Message: privateText(42, 7, "hello there"),
	})
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, "42", m.SessionID)
	assert.Equal(t, message.DirectMessage, m.Type)
	assert.Empty(t, m.GroupID)
	assert.Equal(t, "10", m.MessageID)
	assert.Equal(t, "7", m.Sender.ID)
	assert.Equal(t, "alice", m.Sender.Name)
	assert.Equal(t, "testbot", m.SelfID)
	assert.Equal(t, "hello there", m.Text)
	require.Len(t, m.Parts, 1)
	assert.Equal(t, message.Plain{Text: "hello there"}, m.Parts[0])
}

func TestTranslate_CommandAddressedToThisBot(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	m, err := a.Translate(context.Background(), telego.Update{
		Message: privateText(42, 7, "/weather@testbot Paris"),
	})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "/weather Paris", m.Text)
}

func TestTranslate_CommandAddressedToOtherBotUntouched(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	m, err := a.Translate(context.Background(), telego.Update{
		Message: privateText(42, 7, "/weather@otherbot Paris"),
	})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "/weather@otherbot Paris", m.Text)
}

func TestTranslate_BotMentionExcisedFromText(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	tm := privateText(42, 7, "hello @testbot now")
	tm.Entities = []telego.MessageEntity{
		{Type: "mention", Offset: 6, Length: 8},
	}

	m, err := a.Translate(context.Background(), telego.Update{Message: tm})
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.NotContains(t, m.Text, "@testbot")
	assert.Contains(t, m.Text, "hello")
	assert.Contains(t, m.Text, "now")

	var mentions []message.Mention
	for _, p := range m.Parts {
		if mn, ok := p.(message.Mention); ok {
			mentions = append(mentions, mn)
		}
	}
	require.Len(t, mentions, 1)
	assert.Equal(t, "testbot", mentions[0].Display)
}

func TestTranslate_OtherUserMentionKeptInText(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	tm := privateText(42, 7, "ask @bob about it")
	tm.Entities = []telego.MessageEntity{
		{Type: "mention", Offset: 4, Length: 4},
	}

	m, err := a.Translate(context.Background(), telego.Update{Message: tm})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "ask @bob about it", m.Text)
}

func TestTranslate_StartInterceptedWithGreeting(t *testing.T) {
	fake := &fakeAPI{}
	a := newTestAdapter(fake)
	a.cfg.StartMessage = "Hi! I am up and running."

	m, err := a.Translate(context.Background(), telego.Update{
		Message: privateText(42, 7, "/start"),
	})
	require.NoError(t, err)
	assert.Nil(t, m, "start is handled inline, not delivered")

	require.Len(t, fake.sends, 1)
	assert.Equal(t, "Hi! I am up and running.", fake.sends[0].Text)
	assert.Equal(t, int64(42), fake.sends[0].ChatID.ID)
}

func TestTranslate_ForumThreadSessionKey(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	tm := privateText(100, 7, "topic talk")
	tm.Chat.Type = "supergroup"
	tm.MessageThreadID = 7

	m, err := a.Translate(context.Background(), telego.Update{Message: tm})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, message.GroupMessage, m.Type)
	assert.Equal(t, "100#7", m.SessionID)
	assert.Equal(t, "100#7", m.GroupID)
}

func TestTranslate_BusinessMessageSessionSuffix(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	tm := privateText(55, 7, "hi via business")
	tm.BusinessConnectionID = "conn1"

	m, err := a.Translate(context.Background(), telego.Update{BusinessMessage: tm})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "55#business#conn1", m.SessionID)
	assert.Equal(t, "conn1", m.BusinessConnectionID)
}

func TestTranslate_ReplyExpandedOneLevel(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	grandparent := privateText(42, 8, "the original")
	grandparent.MessageID = 1
	parent := privateText(42, 9, "the middle")
	parent.MessageID = 2
	parent.ReplyToMessage = grandparent
	parent.From.Username = "bob"
	tm := privateText(42, 7, "the reply")
	tm.MessageID = 3
	tm.ReplyToMessage = parent

	m, err := a.Translate(context.Background(), telego.Update{Message: tm})
	require.NoError(t, err)
	require.NotNil(t, m)

	var replies []message.Reply
	for _, p := range m.Parts {
		if r, ok := p.(message.Reply); ok {
			replies = append(replies, r)
		}
	}
	require.Len(t, replies, 1)
	assert.Equal(t, "2", replies[0].ID)
	assert.Equal(t, "bob", replies[0].SenderName)
	assert.Equal(t, "the middle", replies[0].Text)

	for _, p := range replies[0].Parts {
		_, nested := p.(message.Reply)
		assert.False(t, nested, "reply expansion stops at depth one")
	}
}

func TestTranslate_TopicHeaderReferenceNotAReply(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	header := privateText(100, 8, "topic header")
	header.MessageID = 7
	tm := privateText(100, 7, "topic talk")
	tm.Chat.Type = "supergroup"
	tm.MessageThreadID = 7
	tm.IsTopicMessage = true
	tm.ReplyToMessage = header

	m, err := a.Translate(context.Background(), telego.Update{Message: tm})
	require.NoError(t, err)
	require.NotNil(t, m)
	for _, p := range m.Parts {
		_, isReply := p.(message.Reply)
		assert.False(t, isReply)
	}
}

func TestTranslate_StickerBecomesImageWithCaption(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	tm := privateText(42, 7, "")
	tm.Sticker = &telego.Sticker{FileID: "stk1", Emoji: "😀"}

	m, err := a.Translate(context.Background(), telego.Update{Message: tm})
	require.NoError(t, err)
	require.NotNil(t, m)

	require.Len(t, m.Parts, 2)
	img, ok := m.Parts[0].(message.Image)
	require.True(t, ok)
	assert.Equal(t, "https://files.example/documents/stk1", img.Source.URL)
	assert.Equal(t, message.Plain{Text: "Sticker: 😀"}, m.Parts[1])
	assert.Equal(t, "Sticker: 😀", m.Text)
}

func TestTranslate_PhotoPicksLargestSize(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	tm := privateText(42, 7, "")
	tm.Photo = []telego.PhotoSize{
		{FileID: "small"},
		{FileID: "big"},
	}
	tm.Caption = "look at this"

	m, err := a.Translate(context.Background(), telego.Update{Message: tm})
	require.NoError(t, err)
	require.NotNil(t, m)

	img, ok := m.Parts[0].(message.Image)
	require.True(t, ok)
	assert.Equal(t, "https://files.example/documents/big", img.Source.URL)
	assert.Equal(t, "look at this", m.Text)
}

func TestTranslate_DocumentKeepsFilename(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	tm := privateText(42, 7, "")
	tm.Document = &telego.Document{FileID: "doc1", FileName: "report.pdf"}

	m, err := a.Translate(context.Background(), telego.Update{Message: tm})
	require.NoError(t, err)
	require.NotNil(t, m)

	require.Len(t, m.Parts, 1)
	f, ok := m.Parts[0].(message.File)
	require.True(t, ok)
	assert.Equal(t, "report.pdf", f.Name)
	assert.Equal(t, "https://files.example/documents/doc1", f.Source.URL)
}

func TestTranslate_EmptyUpdateDropped(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	m, err := a.Translate(context.Background(), telego.Update{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestTranslate_SenderlessMessageRejected(t *testing.T) {
	a := newTestAdapter(&fakeAPI{})

	tm := privateText(42, 7, "anonymous")
	tm.From = nil

	_, err := a.Translate(context.Background(), telego.Update{Message: tm})
	assert.Error(t, err)
}
