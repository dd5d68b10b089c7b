// Package onebot is the QQ chat transport. It speaks the OneBot v11 protocol
// over a forward websocket to an implementation such as NapCat or LLOneBot.
package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/bdobrica/turbobot/internal/turbobot/chat"
)

const (
	backoffMin = 2 * time.Second
	backoffMax = 2 * time.Minute

	// DefaultActionTimeout bounds the wait for an action response.
	DefaultActionTimeout = 10 * time.Second

	maxDownloadBytes = 10 << 20
)

// ErrNotConnected is returned by actions issued while the websocket is down.
var ErrNotConnected = errors.New("onebot: not connected")

// Config holds OneBot connection settings.
type Config struct {
	// URL is the forward websocket endpoint, e.g. ws://127.0.0.1:3001.
	URL         string
	AccessToken string
	// ActionTimeout bounds each echo-correlated action. Default 10s.
	ActionTimeout time.Duration
	// HTTPClient downloads image attachments. Default http.DefaultClient.
	HTTPClient *http.Client
}

type action struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

// Client is a chat.Transport over one OneBot connection.
type Client struct {
	cfg    Config
	dialer websocket.Dialer

	writeMu sync.Mutex
	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan gjson.Result
}

var _ chat.Transport = (*Client)(nil)

// New creates a OneBot client. It does not dial until Run.
func New(cfg Config) *Client {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{
		cfg: cfg,
		dialer: websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		pending: make(map[string]chan gjson.Result),
	}
}

// Name implements chat.Transport.
func (c *Client) Name() string { return Platform }

// Run keeps a connection open until ctx is cancelled, reconnecting with
// exponential back-off. h runs on the read loop, so it must hand off any
// work that issues actions.
func (c *Client) Run(ctx context.Context, h chat.Handler) error {
	backoff := backoffMin
	for {
		connected, err := c.session(ctx, h)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = backoffMin
		}
		slog.Error("OneBot connection lost; reconnecting", "err", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffMax)
	}
}

// session dials once and reads until the connection fails. connected reports
// whether the dial succeeded.
func (c *Client) session(ctx context.Context, h chat.Handler) (connected bool, err error) {
	header := http.Header{}
	if c.cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("onebot dial failed: %w (status: %d)", err, resp.StatusCode)
		}
		return false, fmt.Errorf("onebot dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	slog.Info("OneBot connected", "url", c.cfg.URL)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		c.dispatch(ctx, h, data)
	}
}

func (c *Client) dispatch(ctx context.Context, h chat.Handler, data []byte) {
	if !gjson.ValidBytes(data) {
		slog.Warn("OneBot: dropping non-JSON frame", "len", len(data))
		return
	}
	frame := gjson.ParseBytes(data)

	if echo := frame.Get("echo"); echo.Exists() && !frame.Get("post_type").Exists() {
		c.mu.Lock()
		ch, ok := c.pending[echo.String()]
		delete(c.pending, echo.String())
		c.mu.Unlock()
		if ok {
			ch <- frame
		}
		return
	}

	if msg := parseEvent(frame); msg != nil {
		h(ctx, c, msg)
	}
}

// call sends one action and waits for the response carrying its echo.
func (c *Client) call(ctx context.Context, name string, params any) (gjson.Result, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return gjson.Result{}, ErrNotConnected
	}
	echo := uuid.NewString()
	ch := make(chan gjson.Result, 1)
	c.pending[echo] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, echo)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(action{Action: name, Params: params, Echo: echo})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to send %s: %w", name, err)
	}

	timer := time.NewTimer(c.cfg.ActionTimeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		if status := resp.Get("status").String(); status != "ok" || resp.Get("retcode").Int() != 0 {
			return resp, fmt.Errorf("%s failed: status=%s retcode=%d %s",
				name, status, resp.Get("retcode").Int(), resp.Get("message").String())
		}
		return resp, nil
	case <-timer.C:
		return gjson.Result{}, fmt.Errorf("%s: no response within %s", name, c.cfg.ActionTimeout)
	case <-ctx.Done():
		return gjson.Result{}, ctx.Err()
	}
}

// Reply sends text to the conversation of msg, quoting msg when it has an ID.
func (c *Client) Reply(ctx context.Context, msg *chat.Message, text string) error {
	params, ok := target(msg.ConversationID)
	if !ok {
		return fmt.Errorf("onebot: unknown conversation %q", msg.ConversationID)
	}
	var segs []segment
	if msg.ID != "" {
		segs = append(segs, replySegment(msg.ID))
	}
	params["message"] = append(segs, textSegment(text))

	_, err := c.call(ctx, "send_msg", params)
	return err
}

// Recall deletes msg. Group recalls need the bot to be an admin.
func (c *Client) Recall(ctx context.Context, msg *chat.Message) error {
	id, err := strconv.ParseInt(msg.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("onebot: invalid message id %q", msg.ID)
	}
	_, err = c.call(ctx, "delete_msg", map[string]any{"message_id": id})
	return err
}

// Download fetches an image attachment over HTTP.
func (c *Client) Download(ctx context.Context, a chat.Attachment) ([]byte, error) {
	if !isHTTP(a.URL) {
		return nil, fmt.Errorf("onebot: attachment has no http url: %q", a.URL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download attachment: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return data, nil
}
