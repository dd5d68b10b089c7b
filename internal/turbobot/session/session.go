// Package session runs the interactive avatar upload flow.
//
// A session is created by the setAvatar command, waits for the caller's next
// message carrying an image, then downloads the image through the transport
// that delivered it and submits it to the account service. Sessions are keyed
// by chat.Message.SessionKey, so one caller has at most one live session per
// conversation.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/turbobot/internal/turbobot/chat"
	"github.com/bdobrica/turbobot/internal/turbobot/credentials"
	"github.com/bdobrica/turbobot/internal/turbobot/metrics"
	"github.com/bdobrica/turbobot/internal/turbobot/observability"
	"github.com/bdobrica/turbobot/internal/turbobot/remote"
)

// State is a step of the upload flow.
type State int

const (
	Idle State = iota
	AwaitingImage
	Uploading
	Done
	Failed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingImage:
		return "awaiting_image"
	case Uploading:
		return "uploading"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Done || s == Failed || s == TimedOut }

// Replies sent by the flow.
const (
	NotBoundMessage     = "您尚未绑定，请先使用 /bind 指令绑定。"
	PromptMessage       = "请发送您要上传的图片（超时时间%d秒）"
	RepromptMessage     = "未检测到图片，请发送一张图片。"
	BusyMessage         = "您已有一个正在进行的头像设置，请直接发送图片或等待其超时。"
	TimeoutMessage      = "等待图片超时，已取消头像设置。"
	DownloadFailMessage = "图片下载失败，请重试。"
	SuccessMessage      = "头像设置成功！"
)

// Action is the verb phrase used when rendering upload failures.
const Action = "设置头像"

// AvatarPath is the upload endpoint.
const AvatarPath = "/web/setAvatar"

// ErrSessionActive is returned by Start when the caller already has a live
// session. The existing session is left untouched.
var ErrSessionActive = errors.New("upload session already active")

// Result describes a session that reached a terminal state.
type Result struct {
	ID       string
	Platform string
	UserID   string
	State    State
	Err      error
}

// Config configures a Manager.
type Config struct {
	// Timeout is the wait window for the image. Default: 60s.
	Timeout time.Duration
	// UploadTimeout bounds the download and the upload call. Default: 60s.
	UploadTimeout time.Duration

	Credentials credentials.Store
	Remote      *remote.Client
	Metrics     *metrics.Metrics

	// OnFinish, when set, is called once for every session that reaches a
	// terminal state.
	OnFinish func(ctx context.Context, r Result)
}

type session struct {
	id         string
	key        string
	serviceKey string
	deadline   time.Time
	transport  chat.Transport
	origin     *chat.Message
	timer      *time.Timer
}

// Manager owns every live upload session. It is safe for concurrent use.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates a Manager with cfg, applying defaults.
func NewManager(cfg Config) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 60 * time.Second
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
}

// Start opens a session for the sender of msg and returns the reply to send:
// the prompt on success, or the reason no session was opened.
//
// An unbound caller fails immediately with credentials.ErrNotBound. A caller
// with a live session gets ErrSessionActive and the live session keeps its
// deadline.
func (m *Manager) Start(ctx context.Context, t chat.Transport, msg *chat.Message) (string, error) {
	key, ok := m.cfg.Credentials.Key(msg.UserID)
	if !ok {
		m.finish(ctx, Result{Platform: msg.Platform, UserID: msg.UserID, State: Failed, Err: credentials.ErrNotBound})
		return NotBoundMessage, credentials.ErrNotBound
	}

	m.mu.Lock()
	if _, live := m.sessions[msg.SessionKey()]; live {
		m.mu.Unlock()
		return BusyMessage, ErrSessionActive
	}
	s := &session{
		id:         uuid.New().String(),
		key:        msg.SessionKey(),
		serviceKey: key,
		deadline:   time.Now().Add(m.cfg.Timeout),
		transport:  t,
		origin:     msg,
	}
	m.sessions[s.key] = s
	s.timer = time.AfterFunc(m.cfg.Timeout, func() { m.expire(s.key, s.id) })
	m.mu.Unlock()

	m.cfg.Metrics.SessionStarted()
	observability.WithTrace(ctx).Info("avatar session started",
		"session", s.id, "user", msg.UserID, "deadline", s.deadline.Format(time.RFC3339))
	return fmt.Sprintf(PromptMessage, int(m.cfg.Timeout/time.Second)), nil
}

// Offer hands msg to the caller's live session. It reports false when the
// sender has no session, in which case msg should be routed normally.
//
// A message without an image re-prompts and leaves the session waiting. A
// message with an image ends the wait and runs the upload before returning.
func (m *Manager) Offer(ctx context.Context, t chat.Transport, msg *chat.Message) bool {
	m.mu.Lock()
	s, ok := m.sessions[msg.SessionKey()]
	if !ok {
		m.mu.Unlock()
		return false
	}
	images := msg.Images()
	if len(images) == 0 {
		m.mu.Unlock()
		m.reply(ctx, t, msg, RepromptMessage)
		return true
	}
	delete(m.sessions, s.key)
	s.timer.Stop()
	m.mu.Unlock()

	m.cfg.Metrics.SessionReleased()
	m.upload(ctx, t, msg, s, images[0])
	return true
}

func (m *Manager) upload(ctx context.Context, t chat.Transport, msg *chat.Message, s *session, img chat.Attachment) {
	log := observability.WithTrace(ctx).With("session", s.id, "user", msg.UserID)
	log.Info("avatar session uploading", "state", Uploading.String())

	dlCtx, cancel := context.WithTimeout(ctx, m.cfg.UploadTimeout)
	data, err := t.Download(dlCtx, img)
	cancel()
	if err != nil {
		log.Warn("avatar download failed", "err", err)
		m.reply(ctx, t, msg, DownloadFailMessage)
		m.finish(ctx, Result{ID: s.id, Platform: msg.Platform, UserID: msg.UserID, State: Failed, Err: err})
		return
	}

	o := m.cfg.Remote.Do(ctx, remote.Request{
		Method:  http.MethodPost,
		Path:    AvatarPath,
		Key:     s.serviceKey,
		Body:    map[string]string{"avatarBase64": base64.StdEncoding.EncodeToString(data)},
		Timeout: m.cfg.UploadTimeout,
	})
	if !o.OK() {
		m.reply(ctx, t, msg, remote.Render(Action, o))
		m.finish(ctx, Result{ID: s.id, Platform: msg.Platform, UserID: msg.UserID, State: Failed, Err: o.Err()})
		return
	}
	m.reply(ctx, t, msg, SuccessMessage)
	m.finish(ctx, Result{ID: s.id, Platform: msg.Platform, UserID: msg.UserID, State: Done})
}

// expire times out the session identified by key and id. A session that was
// already consumed, or replaced after its removal, is left alone.
func (m *Manager) expire(key, id string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if !ok || s.id != id {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, key)
	m.mu.Unlock()

	m.cfg.Metrics.SessionReleased()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.reply(ctx, s.transport, s.origin, TimeoutMessage)
	m.finish(ctx, Result{ID: s.id, Platform: s.origin.Platform, UserID: s.origin.UserID, State: TimedOut})
}

func (m *Manager) reply(ctx context.Context, t chat.Transport, msg *chat.Message, text string) {
	if err := t.Reply(ctx, msg, text); err != nil {
		observability.WithTrace(ctx).Warn("avatar session reply failed", "user", msg.UserID, "err", err)
	}
}

func (m *Manager) finish(ctx context.Context, r Result) {
	m.cfg.Metrics.SessionFinished(r.State.String())
	observability.WithTrace(ctx).Info("avatar session finished",
		"session", r.ID, "user", r.UserID, "state", r.State.String(), "err", r.Err)
	if m.cfg.OnFinish != nil {
		m.cfg.OnFinish(ctx, r)
	}
}

// Active returns the number of sessions waiting for an image.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Pending reports whether the sender of msg has a live session.
func (m *Manager) Pending(msg *chat.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[msg.SessionKey()]
	return ok
}

// Close drops every live session without replying. Used on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.sessions {
		s.timer.Stop()
		delete(m.sessions, key)
		m.cfg.Metrics.SessionReleased()
	}
}
