package chat

type EventType string

const (
	EventMessageUpdated EventType = "message.updated"
	EventMessageDeleted EventType = "message.deleted"
	EventDraftUpdated   EventType = "draft.updated"
	EventDraftDeleted   EventType = "draft.deleted"
)

// Event is a real-time event delivered to the composer.
type Event struct {
	Type       EventType
	ChannelCID string
	Message    *LocalMessage
	Draft      *Draft
}

// Subscription is returned by an event registration.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() {
	f()
}
