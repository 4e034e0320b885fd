package chat

type NotificationSeverity string

const (
	SeverityWarning NotificationSeverity = "warning"
	SeverityError   NotificationSeverity = "error"
)

type NotificationOrigin struct {
	Emitter string
	Context map[string]any
}

// Notification is a user-facing message describing a blocked or failed operation.
type Notification struct {
	Severity NotificationSeverity
	Message  string
	Origin   NotificationOrigin
	// Type is a machine-readable failure type such as "api:attachment:upload:failed".
	Type   string
	Reason string
	Err    error
}

// Notifier is the sink for user-facing notifications.
type Notifier interface {
	AddWarning(n Notification)
	AddError(n Notification)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) AddWarning(Notification) {}
func (NopNotifier) AddError(Notification)   {}
