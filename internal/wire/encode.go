// Package wire encodes outbound messages and drafts as JSON request bodies and decodes drafts
// returned by the server.
package wire

import (
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/jx"

	"github.com/ras0q/lazycompose/internal/chat"
)

// reservedMessageKeys are the message fields custom data may not shadow.
var reservedMessageKeys = []string{
	"id", "parent_id", "type", "text", "attachments", "mentioned_users", "poll_id",
	"quoted_message_id", "show_in_channel", "shared_location",
}

// SendMessageRequest is the body of a send-message call.
func SendMessageRequest(m chat.Message, opts chat.SendOptions) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) {
			EncodeMessage(e, m)
		})
		if opts.SkipEnrichURL {
			e.Field("skip_enrich_url", func(e *jx.Encoder) {
				e.Bool(true)
			})
		}
	})

	return e.Bytes()
}

// CreateDraftRequest is the body of a create-draft call.
func CreateDraftRequest(d chat.DraftMessage) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) {
			EncodeDraftMessage(e, d)
		})
	})

	return e.Bytes()
}

// EncodeDraft writes a stored draft the way the server returns it.
func EncodeDraft(d chat.Draft) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("channel_cid", func(e *jx.Encoder) { e.Str(d.ChannelCID) })
		if d.ParentID != "" {
			e.Field("parent_id", func(e *jx.Encoder) { e.Str(d.ParentID) })
		}
		e.Field("created_at", func(e *jx.Encoder) { e.Str(d.CreatedAt.UTC().Format(time.RFC3339Nano)) })
		e.Field("message", func(e *jx.Encoder) {
			EncodeDraftMessage(e, d.Message)
		})
	})

	return e.Bytes()
}

// EncodeMessage writes m as a JSON object. Attachments and mentioned users are left out when nil
// so the server keeps what it has; an empty non-nil slice clears them. A bare poll message
// carries no text.
func EncodeMessage(e *jx.Encoder, m chat.Message) {
	e.ObjStart()

	e.FieldStart("id")
	e.Str(m.ID)
	strField(e, "parent_id", m.ParentID)
	strField(e, "type", string(m.Type))
	if !isPollOnly(m) {
		e.FieldStart("text")
		e.Str(m.Text)
	}

	if m.Attachments != nil {
		e.FieldStart("attachments")
		encodeAttachments(e, m.Attachments)
	}
	if m.MentionedUsers != nil {
		e.FieldStart("mentioned_users")
		encodeStrings(e, m.MentionedUsers)
	}

	strField(e, "poll_id", m.PollID)
	strField(e, "quoted_message_id", m.QuotedMessageID)
	if m.ShowInChannel {
		e.FieldStart("show_in_channel")
		e.Bool(true)
	}
	if m.SharedLocation != nil {
		e.FieldStart("shared_location")
		encodeLocation(e, *m.SharedLocation)
	}
	encodeCustomFields(e, m.Custom)

	e.ObjEnd()
}

func isPollOnly(m chat.Message) bool {
	return m.PollID != "" && m.Text == "" && m.Type == ""
}

// EncodeDraftMessage writes d as a JSON object.
func EncodeDraftMessage(e *jx.Encoder, d chat.DraftMessage) {
	e.ObjStart()

	strField(e, "id", d.ID)
	strField(e, "parent_id", d.ParentID)
	e.FieldStart("text")
	e.Str(d.Text)

	if len(d.Attachments) > 0 {
		e.FieldStart("attachments")
		encodeAttachments(e, d.Attachments)
	}
	if len(d.MentionedUsers) > 0 {
		e.FieldStart("mentioned_users")
		encodeStrings(e, d.MentionedUsers)
	}

	strField(e, "poll_id", d.PollID)
	strField(e, "quoted_message_id", d.QuotedMessageID)
	if d.ShowInChannel {
		e.FieldStart("show_in_channel")
		e.Bool(true)
	}
	encodeCustomFields(e, d.Custom)

	e.ObjEnd()
}

func strField(e *jx.Encoder, name, v string) {
	if v == "" {
		return
	}

	e.FieldStart(name)
	e.Str(v)
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func encodeAttachments(e *jx.Encoder, attachments []chat.Attachment) {
	e.ArrStart()
	for _, a := range attachments {
		encodeAttachment(e, a)
	}
	e.ArrEnd()
}

func encodeAttachment(e *jx.Encoder, a chat.Attachment) {
	e.ObjStart()
	strField(e, "type", string(a.Type))
	strField(e, "title", a.Title)
	strField(e, "title_link", a.TitleLink)
	strField(e, "text", a.Text)
	strField(e, "image_url", a.ImageURL)
	strField(e, "thumb_url", a.ThumbURL)
	strField(e, "asset_url", a.AssetURL)
	strField(e, "og_scrape_url", a.OGScrapeURL)
	strField(e, "author_name", a.AuthorName)
	strField(e, "mime_type", a.MimeType)
	if a.FileSize > 0 {
		e.FieldStart("file_size")
		e.Int64(a.FileSize)
	}
	strField(e, "fallback", a.Fallback)
	encodeCustomFields(e, a.Custom)
	e.ObjEnd()
}

func encodeLocation(e *jx.Encoder, l chat.SharedLocation) {
	e.ObjStart()
	e.FieldStart("latitude")
	e.Float64(l.Latitude)
	e.FieldStart("longitude")
	e.Float64(l.Longitude)
	if l.EndAt != nil {
		e.FieldStart("end_at")
		e.Str(l.EndAt.UTC().Format(time.RFC3339Nano))
	}
	strField(e, "created_by_device_id", l.CreatedByDeviceID)
	e.ObjEnd()
}

// encodeCustomFields flattens custom data into the enclosing object in key order.
func encodeCustomFields(e *jx.Encoder, custom map[string]any) {
	keys := make([]string, 0, len(custom))
	for k := range custom {
		if !slices.Contains(reservedMessageKeys, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		e.FieldStart(k)
		encodeAny(e, custom[k])
	}
}

func encodeAny(e *jx.Encoder, v any) {
	switch v := v.(type) {
	case nil:
		e.Null()
	case string:
		e.Str(v)
	case bool:
		e.Bool(v)
	case int:
		e.Int(v)
	case int64:
		e.Int64(v)
	case float64:
		e.Float64(v)
	case []string:
		encodeStrings(e, v)
	case []any:
		e.ArrStart()
		for _, x := range v {
			encodeAny(e, x)
		}
		e.ArrEnd()
	case map[string]any:
		e.ObjStart()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			e.FieldStart(k)
			encodeAny(e, v[k])
		}
		e.ObjEnd()
	case fmt.Stringer:
		e.Str(v.String())
	default:
		e.Str(fmt.Sprint(v))
	}
}
