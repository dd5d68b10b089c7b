package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bdobrica/turbobot/internal/turbobot/credentials"
	"github.com/bdobrica/turbobot/internal/turbobot/format"
	"github.com/bdobrica/turbobot/internal/turbobot/remote"
	"github.com/bdobrica/turbobot/internal/turbobot/session"
)

// NotBoundMessage is the reply to any account command from an unbound user.
const NotBoundMessage = session.NotBoundMessage

// HandlersConfig holds the dependencies of Handlers.
type HandlersConfig struct {
	Credentials credentials.Store
	Remote      *remote.Client
	Formatter   *format.Formatter
	Sessions    *session.Manager
	// BotName is sent as botName when binding.
	BotName string
	// RecallBind recalls the message that carried the bind token.
	RecallBind bool
}

// Handlers holds all command handlers and dependencies.
type Handlers struct {
	creds      credentials.Store
	remote     *remote.Client
	format     *format.Formatter
	sessions   *session.Manager
	botName    string
	recallBind bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg HandlersConfig) *Handlers {
	return &Handlers{
		creds:      cfg.Credentials,
		remote:     cfg.Remote,
		format:     cfg.Formatter,
		sessions:   cfg.Sessions,
		botName:    cfg.BotName,
		recallBind: cfg.RecallBind,
	}
}

// call describes one authenticated request made on behalf of the caller.
type call struct {
	// action is the verb phrase used when rendering failures.
	action string
	method string
	path   string
	query  url.Values
	body   any
}

// successFunc renders the payload of a 200 response. Returning
// remote.ErrMalformedResponse renders the body excerpt instead.
type successFunc func(o remote.Outcome) (string, error)

// invoke performs c with the caller's service key and renders the outcome.
func (h *Handlers) invoke(ctx context.Context, cmd *Command, c call, onOK successFunc) (string, error) {
	key, ok := h.creds.Key(cmd.Message.UserID)
	if !ok {
		return NotBoundMessage, credentials.ErrNotBound
	}

	o := h.remote.Do(ctx, remote.Request{
		Method: c.method,
		Path:   c.path,
		Query:  c.query,
		Body:   c.body,
		Key:    key,
	})
	if !o.OK() {
		return remote.Render(c.action, o), o.Err()
	}

	reply, err := onOK(o)
	if errors.Is(err, remote.ErrMalformedResponse) {
		return remote.RenderMalformed(c.action, o), err
	}
	return reply, err
}

// fixed returns a successFunc that ignores the payload.
func fixed(reply string) successFunc {
	return func(remote.Outcome) (string, error) { return reply, nil }
}

func get(action, path string, query url.Values) call {
	return call{action: action, method: http.MethodGet, path: path, query: query}
}

func post(action, path string, body any) call {
	return call{action: action, method: http.MethodPost, path: path, body: body}
}

// pageArg parses an optional page number, defaulting to 1.
func pageArg(arg string) int {
	if !isDigits(arg) {
		return 1
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 1
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pageQuery(page int) url.Values {
	return url.Values{"page": {strconv.Itoa(page)}}
}

func invalid(what string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, what)
}
