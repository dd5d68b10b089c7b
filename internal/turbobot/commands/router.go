// Package commands provides command parsing, authorization and routing for
// turbobot, plus the handlers for every account service command.
package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bdobrica/turbobot/internal/turbobot/chat"
)

// ErrNotACommand is returned when a message is not addressed to the bot:
// no trigger character where one is required, or no registered name matches.
// Callers should use errors.Is to distinguish this expected case from real
// errors and stay silent.
var ErrNotACommand = errors.New("not a command")

// ErrUnauthorized is returned when the conversation fails the command's
// authorization rule. The message is dropped without a reply.
var ErrUnauthorized = errors.New("conversation not authorized")

// ErrInvalidArgument marks a missing or malformed command argument. The
// handler's reply explains the expected form.
var ErrInvalidArgument = errors.New("invalid argument")

// Command is one routed invocation.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Trigger is the name or alias the text matched.
	Trigger string
	// Arg is the trimmed text after the trigger.
	Arg string

	Message   *chat.Message
	Transport chat.Transport
}

// Args splits Arg on whitespace.
func (c *Command) Args() []string {
	return strings.Fields(c.Arg)
}

// Reply sends text into the conversation the command came from.
func (c *Command) Reply(ctx context.Context, text string) error {
	return c.Transport.Reply(ctx, c.Message, text)
}

// Handler runs a command and returns the one reply for the user. The error
// classifies the outcome for audit and metrics; the reply is sent either way.
type Handler func(ctx context.Context, cmd *Command) (string, error)

// Rule decides whether a message may trigger a command.
type Rule func(msg *chat.Message) bool

// GroupRule allows private conversations unconditionally and group
// conversations listed in scopes. An empty scopes list allows everything.
func GroupRule(scopes []string) Rule {
	allowed := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			allowed[s] = struct{}{}
		}
	}
	return func(msg *chat.Message) bool {
		if len(allowed) == 0 || msg.Private {
			return true
		}
		_, ok := allowed[msg.ConversationID]
		return ok
	}
}

// Descriptor is the static registration of one command.
type Descriptor struct {
	Name    string
	Aliases []string
	// Usage is returned for "<command> help" without running Handler.
	Usage string
	// Authorize defaults to the router's rule when nil.
	Authorize Rule
	Handler   Handler
}

type trigger struct {
	word string
	desc *Descriptor
}

type shortcut struct {
	desc *Descriptor
	arg  string
}

// Options configures a Router.
type Options struct {
	// Triggers lists the accepted leading trigger characters. Default "/".
	Triggers string
	// RequirePrefix rejects text that does not start with a trigger
	// character. Shortcuts are exempt.
	RequirePrefix bool
	// Rule is the default authorization rule. Default: allow everything.
	Rule Rule
}

// Router routes chat messages to command handlers.
type Router struct {
	opts        Options
	descriptors []*Descriptor
	byName      map[string]*Descriptor
	// triggers is kept sorted longest word first.
	triggers  []trigger
	shortcuts map[string]shortcut
}

// NewRouter creates a new command router.
func NewRouter(opts Options) *Router {
	if opts.Triggers == "" {
		opts.Triggers = "/"
	}
	if opts.Rule == nil {
		opts.Rule = GroupRule(nil)
	}
	return &Router{
		opts:      opts,
		byName:    make(map[string]*Descriptor),
		shortcuts: make(map[string]shortcut),
	}
}

// Register adds a command. Names and aliases are matched as exact strings and
// must be unique across the router.
func (r *Router) Register(d Descriptor) error {
	if d.Name == "" || d.Handler == nil {
		return fmt.Errorf("command %q: name and handler are required", d.Name)
	}
	if d.Authorize == nil {
		d.Authorize = r.opts.Rule
	}
	desc := &d

	words := append([]string{d.Name}, d.Aliases...)
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		for _, t := range r.triggers {
			if t.word == w {
				return fmt.Errorf("command %q: %q already registered by %q", d.Name, w, t.desc.Name)
			}
		}
	}
	for w := range seen {
		r.triggers = append(r.triggers, trigger{word: w, desc: desc})
	}
	slices.SortStableFunc(r.triggers, func(a, b trigger) int {
		if n := len(b.word) - len(a.word); n != 0 {
			return n
		}
		return strings.Compare(a.word, b.word)
	})

	r.descriptors = append(r.descriptors, desc)
	r.byName[d.Name] = desc
	return nil
}

// Shortcut maps a whole message text to a registered command with a fixed
// argument. Shortcuts need no trigger character.
func (r *Router) Shortcut(text, name, arg string) error {
	d, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("shortcut %q: unknown command %q", text, name)
	}
	r.shortcuts[text] = shortcut{desc: d, arg: arg}
	return nil
}

// Descriptors returns the registered commands in registration order.
func (r *Router) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, *d)
	}
	return out
}

// Parse resolves text to a command. The longest registered name or alias
// that prefixes the text wins; the trimmed remainder is the argument.
func (r *Router) Parse(text string) (*Command, error) {
	cmd, _, err := r.parse(text)
	return cmd, err
}

func (r *Router) parse(text string) (*Command, *Descriptor, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, ErrNotACommand
	}

	if sc, ok := r.shortcuts[text]; ok {
		return &Command{Name: sc.desc.Name, Trigger: text, Arg: sc.arg}, sc.desc, nil
	}

	first, size := utf8.DecodeRuneInString(text)
	if strings.ContainsRune(r.opts.Triggers, first) {
		text = text[size:]
	} else if r.opts.RequirePrefix {
		return nil, nil, ErrNotACommand
	}

	for _, t := range r.triggers {
		if strings.HasPrefix(text, t.word) {
			return &Command{
				Name:    t.desc.Name,
				Trigger: t.word,
				Arg:     strings.TrimSpace(text[len(t.word):]),
			}, t.desc, nil
		}
	}
	return nil, nil, ErrNotACommand
}

// Route parses msg, checks authorization and runs the handler. The returned
// Command is nil when the message is not a command. A "help" argument
// returns the command's usage without running the handler.
func (r *Router) Route(ctx context.Context, t chat.Transport, msg *chat.Message) (*Command, string, error) {
	cmd, desc, err := r.parse(msg.Text)
	if err != nil {
		return nil, "", err
	}
	cmd.Message = msg
	cmd.Transport = t

	if !desc.Authorize(msg) {
		return cmd, "", ErrUnauthorized
	}
	if strings.EqualFold(cmd.Arg, "help") {
		return cmd, desc.Usage, nil
	}
	reply, err := desc.Handler(ctx, cmd)
	return cmd, reply, err
}

// Dispatch runs the named handler directly, skipping parsing and
// authorization.
func (r *Router) Dispatch(ctx context.Context, name string, cmd *Command) (string, error) {
	d, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("no handler registered for command %q", name)
	}
	cmd.Name = name
	return d.Handler(ctx, cmd)
}
