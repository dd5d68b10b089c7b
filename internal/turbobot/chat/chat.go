// Package chat defines the transport-neutral message model shared by the
// Matrix and OneBot adapters, the command router and the upload sessions.
package chat

import (
	"context"
	"strings"
)

// AttachmentImage is the attachment kind carried by picture messages.
const AttachmentImage = "image"

// Attachment is a media item referenced by an inbound message. URL is the
// locator the originating transport knows how to download (an http(s) URL
// for OneBot, an mxc:// URI for Matrix).
type Attachment struct {
	Kind string
	URL  string
	Name string
}

// Message is one inbound chat message.
type Message struct {
	// Platform names the transport that delivered the message ("matrix",
	// "onebot").
	Platform string
	// ID is the platform message ID, used for replies and recalls.
	ID string
	// UserID is the platform-scoped sender identity.
	UserID string
	// ConversationID is the room or group the message was posted in. For
	// private conversations it identifies the one-to-one chat.
	ConversationID string
	// Private is true for one-to-one conversations.
	Private bool
	// Text is the plain-text body with attachments removed.
	Text        string
	Attachments []Attachment
}

// Images returns the image attachments in message order.
func (m *Message) Images() []Attachment {
	var out []Attachment
	for _, a := range m.Attachments {
		if a.Kind == AttachmentImage && a.URL != "" {
			out = append(out, a)
		}
	}
	return out
}

// SessionKey identifies the caller within one conversation on one platform.
func (m *Message) SessionKey() string {
	return strings.Join([]string{m.Platform, m.ConversationID, m.UserID}, ":")
}

// Handler receives every inbound message a transport accepts.
type Handler func(ctx context.Context, t Transport, msg *Message)

// Transport is a chat platform connection.
type Transport interface {
	// Name returns the platform name stamped on messages.
	Name() string
	// Run delivers inbound messages to h until ctx is cancelled.
	Run(ctx context.Context, h Handler) error
	// Reply posts text into the conversation msg came from.
	Reply(ctx context.Context, msg *Message, text string) error
	// Recall removes msg from the conversation where the platform allows it.
	Recall(ctx context.Context, msg *Message) error
	// Download fetches the bytes behind an attachment.
	Download(ctx context.Context, a Attachment) ([]byte, error)
}

// Replier sends a reply into a fixed conversation.
type Replier func(ctx context.Context, text string) error

// ReplierFor binds t and msg into a Replier.
func ReplierFor(t Transport, msg *Message) Replier {
	return func(ctx context.Context, text string) error {
		return t.Reply(ctx, msg, text)
	}
}
