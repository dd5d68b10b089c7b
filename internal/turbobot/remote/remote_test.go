package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bdobrica/turbobot/internal/turbobot/metrics"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Kind
		message string
	}{
		{"ok", 200, `{"a":1}`, KindSuccess, ""},
		{"bad request", 400, ``, KindClientRejected, ""},
		{"unauthorized", 401, ``, KindUnauthorized, ""},
		{"forbidden", 403, ``, KindForbidden, ""},
		{"banned", 410, ``, KindAccountBanned, ""},
		{"server error with message", 500, `{"message":"数据库维护中"}`, KindServerError, "数据库维护中"},
		{"server error without message", 500, `oops`, KindServerError, "服务器内部错误"},
		{"server error empty message", 500, `{"message":""}`, KindServerError, "服务器内部错误"},
		{"teapot", 418, ``, KindUnknownStatus, ""},
		{"created is not success", 201, `{}`, KindUnknownStatus, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Classify(tt.status, []byte(tt.body))
			if o.Kind != tt.want {
				t.Fatalf("Kind = %v, want %v", o.Kind, tt.want)
			}
			if o.Message != tt.message {
				t.Errorf("Message = %q, want %q", o.Message, tt.message)
			}
			if (o.Err() == nil) != (tt.want == KindSuccess) {
				t.Errorf("Err() = %v", o.Err())
			}
		})
	}
}

func TestOutcomeErr_Sentinels(t *testing.T) {
	if !errors.Is(Classify(401, nil).Err(), ErrUnauthorized) {
		t.Error("401 should map to ErrUnauthorized")
	}
	if !errors.Is(Classify(410, nil).Err(), ErrAccountBanned) {
		t.Error("410 should map to ErrAccountBanned")
	}
	if !errors.Is(Classify(503, nil).Err(), ErrUnknownStatus) {
		t.Error("503 should map to ErrUnknownStatus")
	}
	if !errors.Is(TransportFailure(io.EOF).Err(), ErrTransport) {
		t.Error("transport failure should map to ErrTransport")
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		o    Outcome
		want string
	}{
		{"bad request", Classify(400, nil), "设置票失败，请求数据不合法，请检查输入。"},
		{"unauthorized", Classify(401, nil), UnauthorizedMessage},
		{"forbidden", Classify(403, nil), "权限不足，无法设置票。"},
		{"banned", Classify(410, nil), BannedMessage},
		{"server", Classify(500, []byte(`{"message":"稍后再试"}`)), "稍后再试"},
		{"unknown", Classify(502, nil), "设置票失败，HTTP响应状态码为 502。"},
		{"transport", TransportFailure(errors.New("dial tcp: refused")), "设置票过程中出现错误：dial tcp: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render("设置票", tt.o); got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderMalformed_TruncatesRunes(t *testing.T) {
	body := strings.Repeat("数", 150)
	got := RenderMalformed("绑定", Classify(200, []byte(body)))
	want := "绑定失败，服务器返回数据异常：" + strings.Repeat("数", 100)
	if got != want {
		t.Errorf("RenderMalformed = %q", got)
	}
}

func TestClient_Do_PostJSON(t *testing.T) {
	var gotAuth, gotType, gotMethod, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/"})
	o := c.Post(context.Background(), "/web/setTickets", "key-123", map[string]int{"ticketId": 3})

	if !o.OK() {
		t.Fatalf("outcome = %v, want success", o.Kind)
	}
	if gotMethod != http.MethodPost || gotPath != "/web/setTickets" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotAuth != "BotKey key-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBody["ticketId"] != float64(3) {
		t.Errorf("body = %v", gotBody)
	}
	if string(o.Body) != `{"ok":true}` {
		t.Errorf("Body = %q", o.Body)
	}
}

func TestClient_Do_GetQueryNoKey(t *testing.T) {
	var gotAuth, gotQuery string
	var gotLen int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		gotLen = r.ContentLength
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	o := c.Get(context.Background(), "/web/userHistory", "", url.Values{"page": {"2"}})
	if !o.OK() {
		t.Fatalf("outcome = %v", o.Kind)
	}
	if gotAuth != "" {
		t.Errorf("Authorization should be absent, got %q", gotAuth)
	}
	if gotQuery != "page=2" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotLen > 0 {
		t.Errorf("GET should carry no body, ContentLength = %d", gotLen)
	}
}

func TestClient_Do_RawBodyPassedThrough(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	c.Post(context.Background(), "/web/setSettings", "k", json.RawMessage(`{"showRating":true}`))
	if got != `{"showRating":true}` {
		t.Errorf("body = %q", got)
	}
}

func TestClient_Do_StatusGrid(t *testing.T) {
	for _, status := range []int{400, 401, 403, 410, 500, 418} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		o := New(Config{BaseURL: srv.URL}).Get(context.Background(), "/x", "k", nil)
		srv.Close()
		if o.Status != status {
			t.Errorf("status %d: Outcome.Status = %d", status, o.Status)
		}
		if want := Classify(status, nil).Kind; o.Kind != want {
			t.Errorf("status %d: Kind = %v, want %v", status, o.Kind, want)
		}
	}
}

func TestClient_Do_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	o := New(Config{BaseURL: base}).Get(context.Background(), "/x", "k", nil)
	if o.Kind != KindTransportFailure || o.Cause == nil {
		t.Fatalf("outcome = %+v, want transport failure", o)
	}
}

func TestClient_Do_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{BaseURL: srv.URL, Timeout: time.Minute})
	o := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow", Timeout: 50 * time.Millisecond})
	if o.Kind != KindTransportFailure {
		t.Fatalf("Kind = %v, want transport failure", o.Kind)
	}
}

func TestClient_Do_ObservesMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	c := New(Config{BaseURL: srv.URL, Metrics: m})
	c.Get(context.Background(), "/web/friendList", "k", nil)

	n, err := testutil.GatherAndCount(reg, "turbobot_remote_requests_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 1 {
		t.Errorf("remote_requests_total series = %d, want 1", n)
	}
}
