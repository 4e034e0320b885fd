// Package chat defines the message shapes exchanged between the composer and its collaborators.
package chat

import "time"

type MessageType string

const (
	MessageTypeRegular MessageType = "regular"
	MessageTypeReply   MessageType = "reply"
	MessageTypeSystem  MessageType = "system"
)

type MessageStatus string

const (
	MessageStatusSending  MessageStatus = "sending"
	MessageStatusReceived MessageStatus = "received"
	MessageStatusFailed   MessageStatus = "failed"
)

// Message is the wire payload sent to the server.
// Attachments is nil when the composition carries none so the server keeps its own value.
type Message struct {
	ID              string
	ParentID        string
	Type            MessageType
	Text            string
	Attachments     []Attachment
	MentionedUsers  []string
	PollID          string
	QuotedMessageID string
	ShowInChannel   bool
	SharedLocation  *SharedLocation
	Custom          map[string]any
}

// LocalMessage is the in-memory representation used for optimistic rendering.
type LocalMessage struct {
	ID              string
	ParentID        string
	Type            MessageType
	Text            string
	Attachments     []Attachment
	MentionedUsers  []User
	PollID          string
	QuotedMessageID string
	QuotedMessage   *LocalMessage
	ShowInChannel   bool
	SharedLocation  *SharedLocation
	Custom          map[string]any

	User      *User
	UserID    string
	Status    MessageStatus
	Command   string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// SendOptions are flags sent alongside a message.
type SendOptions struct {
	SkipEnrichURL bool
}

// MentionedUserIDs returns the ids of the mentioned users. It is nil only when
// MentionedUsers is nil.
func (m *LocalMessage) MentionedUserIDs() []string {
	if m.MentionedUsers == nil {
		return nil
	}

	ids := make([]string, 0, len(m.MentionedUsers))
	for _, u := range m.MentionedUsers {
		ids = append(ids, u.ID)
	}

	return ids
}

// ToMessage converts a local message to its wire shape.
func (m *LocalMessage) ToMessage() Message {
	return Message{
		ID:              m.ID,
		ParentID:        m.ParentID,
		Type:            m.Type,
		Text:            m.Text,
		Attachments:     m.Attachments,
		MentionedUsers:  m.MentionedUserIDs(),
		PollID:          m.PollID,
		QuotedMessageID: m.QuotedMessageID,
		ShowInChannel:   m.ShowInChannel,
		SharedLocation:  m.SharedLocation,
		Custom:          m.Custom,
	}
}

type SharedLocation struct {
	Latitude          float64
	Longitude         float64
	EndAt             *time.Time
	CreatedByDeviceID string
}

// Command is a slash command available in a channel.
type Command struct {
	Name        string
	Description string
	Args        string
	Set         string
}
