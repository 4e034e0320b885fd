package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/ras0q/lazycompose/internal/chat"
)

// DecodeDraft reads a stored draft. Unknown message fields end up in the message's custom data.
func DecodeDraft(data []byte) (chat.Draft, error) {
	var d chat.Draft

	err := jx.DecodeBytes(data).Obj(func(dec *jx.Decoder, key string) error {
		switch key {
		case "channel_cid":
			v, err := dec.Str()
			d.ChannelCID = v
			return err
		case "parent_id":
			v, err := dec.Str()
			d.ParentID = v
			return err
		case "created_at":
			v, err := dec.Str()
			if err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return errors.Wrapf(err, "parse created_at %q", v)
			}
			d.CreatedAt = t
			return nil
		case "message":
			m, err := decodeDraftMessage(dec)
			d.Message = m
			return err
		default:
			return dec.Skip()
		}
	})
	if err != nil {
		return chat.Draft{}, errors.Wrap(err, "decode draft")
	}

	return d, nil
}

func decodeDraftMessage(dec *jx.Decoder) (chat.DraftMessage, error) {
	var m chat.DraftMessage

	err := dec.Obj(func(dec *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			m.ID, err = dec.Str()
		case "parent_id":
			m.ParentID, err = dec.Str()
		case "text":
			m.Text, err = dec.Str()
		case "attachments":
			m.Attachments, err = decodeAttachments(dec)
		case "mentioned_users":
			m.MentionedUsers, err = decodeStrings(dec)
		case "poll_id":
			m.PollID, err = dec.Str()
		case "quoted_message_id":
			m.QuotedMessageID, err = dec.Str()
		case "show_in_channel":
			m.ShowInChannel, err = dec.Bool()
		default:
			var v any
			if v, err = decodeAny(dec); err != nil {
				return err
			}
			if m.Custom == nil {
				m.Custom = make(map[string]any)
			}
			m.Custom[key] = v
		}

		return err
	})

	return m, err
}

func decodeStrings(dec *jx.Decoder) ([]string, error) {
	var res []string
	err := dec.Arr(func(dec *jx.Decoder) error {
		v, err := dec.Str()
		if err != nil {
			return err
		}
		res = append(res, v)
		return nil
	})

	return res, err
}

func decodeAttachments(dec *jx.Decoder) ([]chat.Attachment, error) {
	res := []chat.Attachment{}
	err := dec.Arr(func(dec *jx.Decoder) error {
		a, err := decodeAttachment(dec)
		if err != nil {
			return err
		}
		res = append(res, a)
		return nil
	})

	return res, err
}

func decodeAttachment(dec *jx.Decoder) (chat.Attachment, error) {
	var a chat.Attachment

	err := dec.Obj(func(dec *jx.Decoder, key string) (err error) {
		switch key {
		case "type":
			var v string
			v, err = dec.Str()
			a.Type = chat.AttachmentType(v)
		case "title":
			a.Title, err = dec.Str()
		case "title_link":
			a.TitleLink, err = dec.Str()
		case "text":
			a.Text, err = dec.Str()
		case "image_url":
			a.ImageURL, err = dec.Str()
		case "thumb_url":
			a.ThumbURL, err = dec.Str()
		case "asset_url":
			a.AssetURL, err = dec.Str()
		case "og_scrape_url":
			a.OGScrapeURL, err = dec.Str()
		case "author_name":
			a.AuthorName, err = dec.Str()
		case "mime_type":
			a.MimeType, err = dec.Str()
		case "file_size":
			a.FileSize, err = dec.Int64()
		case "fallback":
			a.Fallback, err = dec.Str()
		default:
			var v any
			if v, err = decodeAny(dec); err != nil {
				return err
			}
			if a.Custom == nil {
				a.Custom = make(map[string]any)
			}
			a.Custom[key] = v
		}

		return err
	})

	return a, err
}

// decodeAny reads any JSON value. Numbers become float64.
func decodeAny(dec *jx.Decoder) (any, error) {
	switch dec.Next() {
	case jx.String:
		return dec.Str()
	case jx.Number:
		return dec.Float64()
	case jx.Bool:
		return dec.Bool()
	case jx.Null:
		return nil, dec.Null()
	case jx.Array:
		res := []any{}
		err := dec.Arr(func(dec *jx.Decoder) error {
			v, err := decodeAny(dec)
			if err != nil {
				return err
			}
			res = append(res, v)
			return nil
		})
		return res, err
	case jx.Object:
		res := map[string]any{}
		err := dec.Obj(func(dec *jx.Decoder, key string) error {
			v, err := decodeAny(dec)
			if err != nil {
				return err
			}
			res[key] = v
			return nil
		})
		return res, err
	default:
		return nil, errors.New("unexpected json value")
	}
}
