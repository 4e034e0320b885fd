package chat

import "time"

// DraftMessage is the draft payload. It mirrors Message without local-only fields.
type DraftMessage struct {
	ID              string
	ParentID        string
	Text            string
	Attachments     []Attachment
	MentionedUsers  []string
	PollID          string
	QuotedMessageID string
	ShowInChannel   bool
	Custom          map[string]any
}

// Draft is a stored draft as returned by the server.
type Draft struct {
	ChannelCID    string
	ParentID      string
	CreatedAt     time.Time
	Message       DraftMessage
	QuotedMessage *LocalMessage
}
