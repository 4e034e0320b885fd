package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ras0q/lazycompose/internal/chat"
)

func TestSendMessageRequest(t *testing.T) {
	t.Run("nil attachments are left out", func(t *testing.T) {
		got := SendMessageRequest(chat.Message{ID: "m1", Type: chat.MessageTypeRegular, Text: "hi"}, chat.SendOptions{})
		assert.JSONEq(t, `{"message":{"id":"m1","type":"regular","text":"hi"}}`, string(got))
	})

	t.Run("empty attachments clear and skip flag is sent", func(t *testing.T) {
		got := SendMessageRequest(chat.Message{ID: "m1", Attachments: []chat.Attachment{}}, chat.SendOptions{SkipEnrichURL: true})
		assert.JSONEq(t, `{"message":{"id":"m1","text":"","attachments":[]},"skip_enrich_url":true}`, string(got))
	})

	t.Run("empty mentions clear", func(t *testing.T) {
		got := SendMessageRequest(chat.Message{ID: "m1", Type: chat.MessageTypeRegular, Text: "hi", MentionedUsers: []string{}}, chat.SendOptions{})
		assert.JSONEq(t, `{"message":{"id":"m1","type":"regular","text":"hi","mentioned_users":[]}}`, string(got))
	})

	t.Run("bare poll message has no text", func(t *testing.T) {
		got := SendMessageRequest(chat.Message{ID: "m1", PollID: "poll1"}, chat.SendOptions{})
		assert.JSONEq(t, `{"message":{"id":"m1","poll_id":"poll1"}}`, string(got))
	})

	t.Run("poll with a message type keeps its text", func(t *testing.T) {
		got := SendMessageRequest(chat.Message{ID: "m1", Type: chat.MessageTypeRegular, PollID: "poll1"}, chat.SendOptions{})
		assert.JSONEq(t, `{"message":{"id":"m1","type":"regular","text":"","poll_id":"poll1"}}`, string(got))
	})

	t.Run("every field", func(t *testing.T) {
		endAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		m := chat.Message{
			ID:              "m1",
			ParentID:        "p1",
			Type:            chat.MessageTypeReply,
			Text:            "look @alice",
			Attachments:     []chat.Attachment{{Type: chat.AttachmentTypeImage, ImageURL: "https://cdn/a.png", FileSize: 42}},
			MentionedUsers:  []string{"alice"},
			PollID:          "poll1",
			QuotedMessageID: "q1",
			ShowInChannel:   true,
			SharedLocation:  &chat.SharedLocation{Latitude: 1.5, Longitude: -2.25, EndAt: &endAt, CreatedByDeviceID: "phone"},
			Custom:          map[string]any{"priority": "high", "text": "shadowed", "score": 3},
		}

		got := SendMessageRequest(m, chat.SendOptions{})
		assert.JSONEq(t, `{"message":{
			"id":"m1","parent_id":"p1","type":"reply","text":"look @alice",
			"attachments":[{"type":"image","image_url":"https://cdn/a.png","file_size":42}],
			"mentioned_users":["alice"],"poll_id":"poll1","quoted_message_id":"q1","show_in_channel":true,
			"shared_location":{"latitude":1.5,"longitude":-2.25,"end_at":"2025-03-01T12:00:00Z","created_by_device_id":"phone"},
			"priority":"high","score":3
		}}`, string(got))
	})
}

func TestCreateDraftRequest(t *testing.T) {
	got := CreateDraftRequest(chat.DraftMessage{Text: "later", QuotedMessageID: "q1"})
	assert.JSONEq(t, `{"message":{"text":"later","quoted_message_id":"q1"}}`, string(got))
}

func TestDraftRoundTrip(t *testing.T) {
	want := chat.Draft{
		ChannelCID: "messaging:general",
		ParentID:   "p1",
		CreatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 123, time.UTC),
		Message: chat.DraftMessage{
			ID:             "d1",
			Text:           "draft",
			Attachments:    []chat.Attachment{{Type: chat.AttachmentTypeFile, AssetURL: "https://cdn/a.pdf", Title: "a.pdf"}},
			MentionedUsers: []string{"bob"},
			PollID:         "poll1",
			ShowInChannel:  true,
			Custom:         map[string]any{"mood": "calm", "weight": 1.5},
		},
	}

	got, err := DecodeDraft(EncodeDraft(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeDraft(t *testing.T) {
	t.Run("unknown fields become custom data", func(t *testing.T) {
		got, err := DecodeDraft([]byte(`{
			"channel_cid":"messaging:general",
			"created_at":"2025-03-01T12:00:00Z",
			"extra":{"ignored":true},
			"message":{"text":"hi","tags":["a",1,null],"attachments":[{"type":"image","blur":false}]}
		}`))
		require.NoError(t, err)

		assert.Equal(t, "messaging:general", got.ChannelCID)
		assert.Equal(t, "hi", got.Message.Text)
		assert.Equal(t, map[string]any{"tags": []any{"a", 1.0, nil}}, got.Message.Custom)
		require.Len(t, got.Message.Attachments, 1)
		assert.Equal(t, map[string]any{"blur": false}, got.Message.Attachments[0].Custom)
	})

	t.Run("broken input", func(t *testing.T) {
		_, err := DecodeDraft([]byte(`{"message":`))
		assert.Error(t, err)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		_, err := DecodeDraft([]byte(`{"created_at":"yesterday"}`))
		assert.Error(t, err)
	})
}
