package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/turbobot/internal/turbobot/chat"
	"github.com/bdobrica/turbobot/internal/turbobot/credentials"
	"github.com/bdobrica/turbobot/internal/turbobot/remote"
)

type fakeTransport struct {
	mu      sync.Mutex
	replies []string
	images  map[string][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{images: map[string][]byte{}}
}

func (f *fakeTransport) Name() string                                { return "fake" }
func (f *fakeTransport) Run(ctx context.Context, _ chat.Handler) error { <-ctx.Done(); return nil }
func (f *fakeTransport) Recall(context.Context, *chat.Message) error { return nil }

func (f *fakeTransport) Reply(_ context.Context, _ *chat.Message, text string) error {
	f.mu.Lock()
	f.replies = append(f.replies, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Download(_ context.Context, a chat.Attachment) ([]byte, error) {
	data, ok := f.images[a.URL]
	if !ok {
		return nil, errors.New("404")
	}
	return data, nil
}

func (f *fakeTransport) Replies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.replies...)
}

type fixture struct {
	mgr      *Manager
	tr       *fakeTransport
	store    *credentials.FileStore
	mu       sync.Mutex
	uploads  []string
	auth     []string
	status   int
	finished chan Result
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{tr: newFakeTransport(), status: http.StatusOK, finished: make(chan Result, 4)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AvatarBase64 string `json:"avatarBase64"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.uploads = append(f.uploads, body.AvatarBase64)
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		status := f.status
		f.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	store, err := credentials.OpenFile(filepath.Join(t.TempDir(), "creds.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	f.store = store
	f.mgr = NewManager(Config{
		Timeout:     timeout,
		Credentials: store,
		Remote:      remote.New(remote.Config{BaseURL: srv.URL}),
		OnFinish:    func(_ context.Context, r Result) { f.finished <- r },
	})
	t.Cleanup(f.mgr.Close)
	return f
}

func msg(user, text string, images ...string) *chat.Message {
	m := &chat.Message{Platform: "fake", ConversationID: "g1", UserID: user, Text: text}
	for _, u := range images {
		m.Attachments = append(m.Attachments, chat.Attachment{Kind: chat.AttachmentImage, URL: u})
	}
	return m
}

func waitResult(t *testing.T, f *fixture) Result {
	t.Helper()
	select {
	case r := <-f.finished:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
		return Result{}
	}
}

func TestStart_UnboundFailsImmediately(t *testing.T) {
	f := newFixture(t, time.Minute)

	reply, err := f.mgr.Start(context.Background(), f.tr, msg("u1", "/setAvatar"))
	if !errors.Is(err, credentials.ErrNotBound) {
		t.Fatalf("err = %v, want ErrNotBound", err)
	}
	if reply != NotBoundMessage {
		t.Errorf("reply = %q", reply)
	}
	if r := waitResult(t, f); r.State != Failed {
		t.Errorf("state = %v, want failed", r.State)
	}
	if f.mgr.Active() != 0 {
		t.Error("unbound caller must never reach AwaitingImage")
	}
}

func TestStart_TimeoutRepliesOnceAndReleases(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	if err := f.store.Bind("u1", "tok", "key-1"); err != nil {
		t.Fatal(err)
	}

	reply, err := f.mgr.Start(context.Background(), f.tr, msg("u1", "/setAvatar"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if reply != "请发送您要上传的图片（超时时间0秒）" {
		t.Errorf("prompt = %q", reply)
	}
	if f.mgr.Active() != 1 {
		t.Fatalf("Active = %d, want 1", f.mgr.Active())
	}

	if r := waitResult(t, f); r.State != TimedOut {
		t.Fatalf("state = %v, want timed_out", r.State)
	}
	time.Sleep(100 * time.Millisecond)
	if got := f.tr.Replies(); len(got) != 1 || got[0] != TimeoutMessage {
		t.Fatalf("replies = %q, want exactly one timeout notice", got)
	}
	if f.mgr.Active() != 0 {
		t.Error("session not released after timeout")
	}

	// A later message with an image is no longer captured.
	if f.mgr.Offer(context.Background(), f.tr, msg("u1", "", "http://img/1")) {
		t.Error("Offer after timeout should not be consumed")
	}

	// A fresh session can be started.
	if _, err := f.mgr.Start(context.Background(), f.tr, msg("u1", "/setAvatar")); err != nil {
		t.Fatalf("second Start: %v", err)
	}
}

func TestOffer_ImageUploads(t *testing.T) {
	f := newFixture(t, time.Minute)
	_ = f.store.Bind("u1", "tok", "key-1")
	f.tr.images["http://img/1"] = []byte("PNGDATA")

	if _, err := f.mgr.Start(context.Background(), f.tr, msg("u1", "/setAvatar")); err != nil {
		t.Fatal(err)
	}
	if !f.mgr.Offer(context.Background(), f.tr, msg("u1", "", "http://img/1")) {
		t.Fatal("Offer should consume the image")
	}

	if r := waitResult(t, f); r.State != Done {
		t.Fatalf("state = %v, err = %v", r.State, r.Err)
	}
	if got := f.tr.Replies(); len(got) != 1 || got[0] != SuccessMessage {
		t.Errorf("replies = %q", got)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.uploads) != 1 || f.uploads[0] != base64.StdEncoding.EncodeToString([]byte("PNGDATA")) {
		t.Errorf("uploads = %q", f.uploads)
	}
	if f.auth[0] != "BotKey key-1" {
		t.Errorf("Authorization = %q", f.auth[0])
	}
	if f.mgr.Active() != 0 {
		t.Error("session should be released after upload")
	}
}

func TestOffer_NoImageReprompts(t *testing.T) {
	f := newFixture(t, time.Minute)
	_ = f.store.Bind("u1", "tok", "key-1")
	f.tr.images["http://img/1"] = []byte("x")
	_, _ = f.mgr.Start(context.Background(), f.tr, msg("u1", "/setAvatar"))

	if !f.mgr.Offer(context.Background(), f.tr, msg("u1", "hello")) {
		t.Fatal("text from the same caller should be consumed")
	}
	if got := f.tr.Replies(); len(got) != 1 || got[0] != RepromptMessage {
		t.Errorf("replies = %q", got)
	}
	if !f.mgr.Pending(msg("u1", "")) {
		t.Fatal("session should still be awaiting an image")
	}

	// Another user in the same room is not captured.
	if f.mgr.Offer(context.Background(), f.tr, msg("u2", "", "http://img/1")) {
		t.Error("other users must not feed the session")
	}

	f.mgr.Offer(context.Background(), f.tr, msg("u1", "", "http://img/1"))
	if r := waitResult(t, f); r.State != Done {
		t.Errorf("state = %v", r.State)
	}
}

func TestStart_SecondInvocationRejected(t *testing.T) {
	f := newFixture(t, time.Minute)
	_ = f.store.Bind("u1", "tok", "key-1")

	if _, err := f.mgr.Start(context.Background(), f.tr, msg("u1", "/setAvatar")); err != nil {
		t.Fatal(err)
	}
	reply, err := f.mgr.Start(context.Background(), f.tr, msg("u1", "/setAvatar"))
	if !errors.Is(err, ErrSessionActive) || reply != BusyMessage {
		t.Fatalf("second Start = %q, %v", reply, err)
	}
	if f.mgr.Active() != 1 {
		t.Errorf("Active = %d, want the original session only", f.mgr.Active())
	}
}

func TestOffer_DownloadFailure(t *testing.T) {
	f := newFixture(t, time.Minute)
	_ = f.store.Bind("u1", "tok", "key-1")
	_, _ = f.mgr.Start(context.Background(), f.tr, msg("u1", "/setAvatar"))

	f.mgr.Offer(context.Background(), f.tr, msg("u1", "", "http://img/missing"))
	if r := waitResult(t, f); r.State != Failed {
		t.Fatalf("state = %v", r.State)
	}
	if got := f.tr.Replies(); len(got) != 1 || got[0] != DownloadFailMessage {
		t.Errorf("replies = %q", got)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.uploads) != 0 {
		t.Error("nothing should be uploaded after a failed download")
	}
}

func TestOffer_UploadRejected(t *testing.T) {
	f := newFixture(t, time.Minute)
	_ = f.store.Bind("u1", "tok", "key-1")
	f.tr.images["http://img/1"] = []byte("x")
	f.status = http.StatusForbidden
	_, _ = f.mgr.Start(context.Background(), f.tr, msg("u1", "/setAvatar"))

	f.mgr.Offer(context.Background(), f.tr, msg("u1", "", "http://img/1"))
	r := waitResult(t, f)
	if r.State != Failed || !errors.Is(r.Err, remote.ErrForbidden) {
		t.Fatalf("result = %+v", r)
	}
	if got := f.tr.Replies(); len(got) != 1 || got[0] != "权限不足，无法设置头像。" {
		t.Errorf("replies = %q", got)
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		Idle: "idle", AwaitingImage: "awaiting_image", Uploading: "uploading",
		Done: "done", Failed: "failed", TimedOut: "timed_out",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q", s, s.String())
		}
	}
	if !TimedOut.Terminal() || AwaitingImage.Terminal() {
		t.Error("Terminal mismatch")
	}
}
