package onebot

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bdobrica/turbobot/internal/turbobot/chat"
)

// Platform is the value stamped on chat.Message.Platform.
const Platform = "onebot"

const (
	groupPrefix   = "group:"
	privatePrefix = "private:"
)

// segment is one element of an OneBot message array.
type segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

func textSegment(text string) segment {
	return segment{Type: "text", Data: map[string]string{"text": text}}
}

func replySegment(messageID string) segment {
	return segment{Type: "reply", Data: map[string]string{"id": messageID}}
}

// parseEvent converts a message event. It returns nil for every other post
// type, for messages the bot sent itself, and for events missing a sender.
func parseEvent(ev gjson.Result) *chat.Message {
	if ev.Get("post_type").String() != "message" {
		return nil
	}
	userID := ev.Get("user_id").String()
	if userID == "" || userID == ev.Get("self_id").String() {
		return nil
	}

	msg := &chat.Message{
		Platform: Platform,
		ID:       ev.Get("message_id").String(),
		UserID:   userID,
	}
	switch ev.Get("message_type").String() {
	case "group":
		msg.ConversationID = groupPrefix + ev.Get("group_id").String()
	case "private":
		msg.ConversationID = privatePrefix + userID
		msg.Private = true
	default:
		return nil
	}

	body := ev.Get("message")
	if !body.Exists() {
		body = ev.Get("raw_message")
	}
	var segs []segment
	if body.IsArray() {
		segs = arraySegments(body)
	} else {
		segs = cqSegments(body.String())
	}
	msg.Text, msg.Attachments = flatten(segs)
	return msg
}

func arraySegments(body gjson.Result) []segment {
	var segs []segment
	body.ForEach(func(_, s gjson.Result) bool {
		seg := segment{Type: s.Get("type").String(), Data: map[string]string{}}
		s.Get("data").ForEach(func(k, v gjson.Result) bool {
			seg.Data[k.String()] = v.String()
			return true
		})
		segs = append(segs, seg)
		return true
	})
	return segs
}

// cqSegments splits a CQ-code string such as
// "hello[CQ:image,file=a.png,url=https://x/a.png]" into segments.
func cqSegments(s string) []segment {
	var segs []segment
	for s != "" {
		start := strings.Index(s, "[CQ:")
		if start < 0 {
			segs = append(segs, textSegment(unescapeCQ(s, false)))
			break
		}
		if start > 0 {
			segs = append(segs, textSegment(unescapeCQ(s[:start], false)))
		}
		end := strings.IndexByte(s[start:], ']')
		if end < 0 {
			segs = append(segs, textSegment(unescapeCQ(s[start:], false)))
			break
		}
		segs = append(segs, parseCQ(s[start+4:start+end]))
		s = s[start+end+1:]
	}
	return segs
}

// parseCQ parses the inside of one CQ code: "type,key=value,...".
func parseCQ(code string) segment {
	parts := strings.Split(code, ",")
	seg := segment{Type: parts[0], Data: make(map[string]string, len(parts)-1)}
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if ok {
			seg.Data[k] = unescapeCQ(v, true)
		}
	}
	return seg
}

var (
	textUnescaper  = strings.NewReplacer("&#91;", "[", "&#93;", "]", "&amp;", "&")
	paramUnescaper = strings.NewReplacer("&#44;", ",", "&#91;", "[", "&#93;", "]", "&amp;", "&")
)

func unescapeCQ(s string, param bool) string {
	if param {
		return paramUnescaper.Replace(s)
	}
	return textUnescaper.Replace(s)
}

// flatten joins text segments and collects image attachments. Mentions and
// other segment types are dropped.
func flatten(segs []segment) (string, []chat.Attachment) {
	var (
		text        strings.Builder
		attachments []chat.Attachment
	)
	for _, seg := range segs {
		switch seg.Type {
		case "text":
			text.WriteString(seg.Data["text"])
		case "image":
			url := seg.Data["url"]
			if url == "" && isHTTP(seg.Data["file"]) {
				url = seg.Data["file"]
			}
			attachments = append(attachments, chat.Attachment{
				Kind: chat.AttachmentImage,
				URL:  url,
				Name: seg.Data["file"],
			})
		}
	}
	return strings.TrimSpace(text.String()), attachments
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// target resolves a conversation ID into send_msg parameters.
func target(conversationID string) (map[string]any, bool) {
	if id, ok := strings.CutPrefix(conversationID, groupPrefix); ok {
		n, err := strconv.ParseInt(id, 10, 64)
		return map[string]any{"message_type": "group", "group_id": n}, err == nil
	}
	if id, ok := strings.CutPrefix(conversationID, privatePrefix); ok {
		n, err := strconv.ParseInt(id, 10, 64)
		return map[string]any{"message_type": "private", "user_id": n}, err == nil
	}
	return nil, false
}
