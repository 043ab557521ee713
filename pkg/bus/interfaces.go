package bus

import "context"

type Publisher interface {
	PublishInbound(InboundEvent)
	PublishOutbound(OutboundEvent)
}

type Subscriber interface {
	ConsumeInbound(context.Context) (InboundEvent, bool)
	SubscribeOutbound(context.Context) (OutboundEvent, bool)
}

type Broker interface {
	Publisher
	Subscriber
	Close()
}
