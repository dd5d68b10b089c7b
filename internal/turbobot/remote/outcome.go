package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Kind classifies one HTTP exchange with the account service.
type Kind int

const (
	KindSuccess Kind = iota
	KindClientRejected
	KindUnauthorized
	KindForbidden
	KindAccountBanned
	KindServerError
	KindUnknownStatus
	KindTransportFailure
)

var kindNames = [...]string{
	KindSuccess:          "success",
	KindClientRejected:   "client_rejected",
	KindUnauthorized:     "unauthorized",
	KindForbidden:        "forbidden",
	KindAccountBanned:    "account_banned",
	KindServerError:      "server_error",
	KindUnknownStatus:    "unknown_status",
	KindTransportFailure: "transport_failure",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

var (
	ErrClientRejected    = errors.New("remote rejected the request")
	ErrUnauthorized      = errors.New("remote credential missing or invalid")
	ErrForbidden         = errors.New("remote permission denied")
	ErrAccountBanned     = errors.New("remote account banned")
	ErrServerError       = errors.New("remote server error")
	ErrUnknownStatus     = errors.New("remote returned an unexpected status")
	ErrTransport         = errors.New("remote request failed")
	ErrMalformedResponse = errors.New("remote response malformed")
)

// defaultServerMessage is shown for a 500 whose body has no "message" field.
const defaultServerMessage = "服务器内部错误"

// Outcome is the classified result of one request.
type Outcome struct {
	Kind   Kind
	Status int
	// Body is the raw response body. For KindSuccess it is the payload.
	Body []byte
	// Message is the server-supplied text for KindServerError.
	Message string
	// Cause is the underlying error for KindTransportFailure.
	Cause error
}

// OK reports whether the request succeeded.
func (o Outcome) OK() bool { return o.Kind == KindSuccess }

// Err maps the outcome to its sentinel error, or nil on success.
func (o Outcome) Err() error {
	switch o.Kind {
	case KindSuccess:
		return nil
	case KindClientRejected:
		return fmt.Errorf("%w (status %d)", ErrClientRejected, o.Status)
	case KindUnauthorized:
		return ErrUnauthorized
	case KindForbidden:
		return ErrForbidden
	case KindAccountBanned:
		return ErrAccountBanned
	case KindServerError:
		return fmt.Errorf("%w: %s", ErrServerError, o.Message)
	case KindUnknownStatus:
		return fmt.Errorf("%w: %d", ErrUnknownStatus, o.Status)
	default:
		return fmt.Errorf("%w: %v", ErrTransport, o.Cause)
	}
}

// Excerpt returns at most n runes of the body, for diagnostics in replies.
func (o Outcome) Excerpt(n int) string {
	r := []rune(string(o.Body))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// Classify maps a status code and body to an Outcome. It depends on the body
// only for 200 (kept as payload) and 500 (message extraction).
func Classify(status int, body []byte) Outcome {
	o := Outcome{Status: status, Body: body}
	switch status {
	case http.StatusOK:
		o.Kind = KindSuccess
	case http.StatusBadRequest:
		o.Kind = KindClientRejected
	case http.StatusUnauthorized:
		o.Kind = KindUnauthorized
	case http.StatusForbidden:
		o.Kind = KindForbidden
	case http.StatusGone:
		o.Kind = KindAccountBanned
	case http.StatusInternalServerError:
		o.Kind = KindServerError
		o.Message = defaultServerMessage
		if gjson.ValidBytes(body) {
			if msg := gjson.GetBytes(body, "message"); msg.Exists() && msg.String() != "" {
				o.Message = msg.String()
			}
		}
	default:
		o.Kind = KindUnknownStatus
	}
	return o
}

// TransportFailure wraps err as an Outcome.
func TransportFailure(err error) Outcome {
	return Outcome{Kind: KindTransportFailure, Cause: err}
}
