// Package matrix is the Matrix chat transport. It turns room messages into
// chat.Message values and sends replies, redactions and media downloads
// through mautrix.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/turbobot/internal/turbobot/chat"
)

// Platform is the value stamped on chat.Message.Platform.
const Platform = "matrix"

const (
	backoffMin = 2 * time.Second
	backoffMax = 5 * time.Minute
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// DB persists the sync position. When nil an in-memory store is used and
	// history replays on restart.
	DB *sql.DB
	// Logger receives the mautrix client's own log output.
	Logger *zerolog.Logger
}

// Client is a chat.Transport over one Matrix account.
type Client struct {
	client  *mautrix.Client
	userID  id.UserID
	started time.Time

	mu      sync.Mutex
	members map[id.RoomID]int
}

var _ chat.Transport = (*Client)(nil)

// New creates a Matrix client. It does not contact the homeserver.
func New(cfg Config) (*Client, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}
	if cfg.Logger != nil {
		client.Log = *cfg.Logger
	}
	if cfg.DB != nil {
		client.Store = NewSyncStore(cfg.DB)
	} else {
		slog.Warn("Matrix sync store: no DB configured, history will replay on restart")
	}

	return &Client{
		client:  client,
		userID:  id.UserID(cfg.UserID),
		members: make(map[id.RoomID]int),
	}, nil
}

// Name implements chat.Transport.
func (c *Client) Name() string { return Platform }

// Run syncs until ctx is cancelled, reconnecting with exponential back-off.
func (c *Client) Run(ctx context.Context, h chat.Handler) error {
	c.started = time.Now()

	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return errors.New("matrix: unsupported syncer")
	}
	syncer.OnEventType(event.StateMember, c.handleMember)
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		if msg := c.toMessage(ctx, evt); msg != nil {
			h(ctx, c, msg)
		}
	})

	slog.Info("Matrix transport starting", "user", c.userID)
	backoff := backoffMin
	for {
		err := c.client.SyncWithContext(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}
		slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffMax)
	}
}

// handleMember joins rooms the bot is invited to and drops the cached member
// count of rooms whose membership changed.
func (c *Client) handleMember(ctx context.Context, evt *event.Event) {
	c.mu.Lock()
	delete(c.members, evt.RoomID)
	c.mu.Unlock()

	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipInvite || evt.GetStateKey() != c.userID.String() {
		return
	}
	if _, err := c.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("matrix: invite could not be accepted", "room", evt.RoomID, "err", err)
			return
		}
		slog.Error("matrix: failed to join room", "room", evt.RoomID, "err", err)
		return
	}
	slog.Info("matrix: joined room", "room", evt.RoomID, "inviter", evt.Sender)
}

// toMessage converts a text or image event. Own messages and events from
// before the transport started are ignored.
func (c *Client) toMessage(ctx context.Context, evt *event.Event) *chat.Message {
	if evt.Sender == c.userID {
		return nil
	}
	if !c.started.IsZero() && time.UnixMilli(evt.Timestamp).Before(c.started) {
		return nil
	}
	return convert(evt, c.isPrivate(ctx, evt.RoomID))
}

func convert(evt *event.Event, private bool) *chat.Message {
	content := evt.Content.AsMessage()
	if content == nil {
		return nil
	}

	msg := &chat.Message{
		Platform:       Platform,
		ID:             evt.ID.String(),
		UserID:         evt.Sender.String(),
		ConversationID: evt.RoomID.String(),
		Private:        private,
	}
	switch content.MsgType {
	case event.MsgText:
		msg.Text = content.Body
	case event.MsgImage:
		if content.URL == "" {
			return nil
		}
		msg.Attachments = []chat.Attachment{{
			Kind: chat.AttachmentImage,
			URL:  string(content.URL),
			Name: content.Body,
		}}
	default:
		return nil
	}
	return msg
}

// isPrivate reports whether the room has exactly two joined members.
func (c *Client) isPrivate(ctx context.Context, roomID id.RoomID) bool {
	c.mu.Lock()
	n, ok := c.members[roomID]
	c.mu.Unlock()
	if ok {
		return n == 2
	}

	resp, err := c.client.JoinedMembers(ctx, roomID)
	if err != nil {
		slog.Warn("matrix: joined members lookup failed", "room", roomID, "err", err)
		return false
	}
	n = len(resp.Joined)
	c.mu.Lock()
	c.members[roomID] = n
	c.mu.Unlock()
	return n == 2
}

// Reply sends text as a threaded reply to msg.
func (c *Client) Reply(ctx context.Context, msg *chat.Message, text string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}
	if msg.ID != "" {
		content.RelatesTo = &event.RelatesTo{
			InReplyTo: &event.InReplyTo{EventID: id.EventID(msg.ID)},
		}
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(msg.ConversationID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// Recall redacts msg.
func (c *Client) Recall(ctx context.Context, msg *chat.Message) error {
	if _, err := c.client.RedactEvent(ctx, id.RoomID(msg.ConversationID), id.EventID(msg.ID)); err != nil {
		return fmt.Errorf("failed to redact event: %w", err)
	}
	return nil
}

// Download fetches the media behind an mxc:// attachment.
func (c *Client) Download(ctx context.Context, a chat.Attachment) ([]byte, error) {
	uri, err := id.ParseContentURI(a.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid content URI %q: %w", a.URL, err)
	}
	data, err := c.client.DownloadBytes(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	return data, nil
}
