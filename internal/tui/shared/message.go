package shared

type (
	ErrorMsg error

	// ComposerChangedMsg is sent whenever any part of the composition changed.
	ComposerChangedMsg struct{}

	MessagesChangedMsg struct{}

	NotificationsChangedMsg struct{}

	ReturnToInputMsg struct{}

	// SentMsg reports a message that left the composer.
	SentMsg struct {
		ID string
	}
)
