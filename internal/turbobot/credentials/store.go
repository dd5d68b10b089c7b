// Package credentials persists the binding between a chat user and the
// service key the remote account service issued for them.
package credentials

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyBound is returned by Bind when the user already has a binding.
	ErrAlreadyBound = errors.New("user is already bound")
	// ErrNotBound is returned by Unbind when the user has no binding.
	ErrNotBound = errors.New("user is not bound")
)

// Binding is the durable association for one user.
type Binding struct {
	UserID     string
	BotToken   string
	ServiceKey string
	BoundAt    time.Time
}

// Store is the credential store contract. Implementations must make Bind's
// check-then-write atomic per user and persist every mutation before
// returning.
type Store interface {
	IsBound(userID string) bool
	// Key returns the service key for userID and whether one exists.
	Key(userID string) (string, bool)
	Bind(userID, botToken, serviceKey string) error
	Unbind(userID string) error
	// List returns every binding ordered by user ID.
	List() []Binding
}
