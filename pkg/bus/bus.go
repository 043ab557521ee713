package bus

import (
	"context"
	"sync"
)

type MessageBus struct {
	inbound  chan InboundEvent
	outbound chan OutboundEvent
	closed   bool
	mu       sync.RWMutex
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundEvent, 100),
		outbound: make(chan OutboundEvent, 100),
	}
}

func (mb *MessageBus) PublishInbound(evt InboundEvent) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}
	mb.inbound <- evt
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundEvent, bool) {
	select {
	case evt, ok := <-mb.inbound:
		if !ok {
			return InboundEvent{}, false
		}
		return evt, true
	case <-ctx.Done():
		return InboundEvent{}, false
	}
}

func (mb *MessageBus) PublishOutbound(evt OutboundEvent) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}
	mb.outbound <- evt
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundEvent, bool) {
	select {
	case evt, ok := <-mb.outbound:
		if !ok {
			return OutboundEvent{}, false
		}
		return evt, true
	case <-ctx.Done():
		return OutboundEvent{}, false
	}
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound)
	close(mb.outbound)
}
