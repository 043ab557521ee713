package bus

import "github.com/lumiclaw/lumiclaw/pkg/message"

// InboundEvent wraps one translated platform update on its way to the runtime.
type InboundEvent struct {
	Message *message.Message
}

// OutboundEvent is a canonical chain addressed at a session key, on its way
// back to the platform adapter.
type OutboundEvent struct {
	SessionID string
	Chain     message.Chain
}
