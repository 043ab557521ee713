package bus

import (
	"context"
	"testing"
	"time"

	"github.com/lumiclaw/lumiclaw/pkg/message"
)

func TestMessageBusRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishInbound(InboundEvent{Message: &message.Message{SessionID: "42", Text: "hi"}})

	evt, ok := mb.ConsumeInbound(context.Background())
	if !ok {
		t.Fatal("expected inbound event")
	}
	if evt.Message.SessionID != "42" || evt.Message.Text != "hi" {
		t.Fatalf("unexpected event: %+v", evt.Message)
	}

	mb.PublishOutbound(OutboundEvent{SessionID: "42", Chain: message.Chain{message.Plain{Text: "hello"}}})

	out, ok := mb.SubscribeOutbound(context.Background())
	if !ok {
		t.Fatal("expected outbound event")
	}
	if out.SessionID != "42" || out.Chain.PlainText() != "hello" {
		t.Fatalf("unexpected event: %+v", out)
	}
}

func TestMessageBusContextCancel(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatal("expected no event on cancelled context")
	}
}

func TestMessageBusPublishAfterClose(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()
	mb.Close() // second close is a no-op

	// Must not panic on a closed bus.
	mb.PublishInbound(InboundEvent{})
	mb.PublishOutbound(OutboundEvent{})

	if _, ok := mb.ConsumeInbound(context.Background()); ok {
		t.Fatal("expected closed bus to report no events")
	}
}
