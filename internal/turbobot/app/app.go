// Package app wires turbobot together: transports, the session manager, the
// command router, the audit log and the optional HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/bdobrica/turbobot/common/redact"
	"github.com/bdobrica/turbobot/common/trace"
	"github.com/bdobrica/turbobot/internal/turbobot/catalog"
	"github.com/bdobrica/turbobot/internal/turbobot/chat"
	"github.com/bdobrica/turbobot/internal/turbobot/commands"
	"github.com/bdobrica/turbobot/internal/turbobot/config"
	"github.com/bdobrica/turbobot/internal/turbobot/credentials"
	"github.com/bdobrica/turbobot/internal/turbobot/format"
	"github.com/bdobrica/turbobot/internal/turbobot/matrix"
	"github.com/bdobrica/turbobot/internal/turbobot/metrics"
	"github.com/bdobrica/turbobot/internal/turbobot/observability"
	"github.com/bdobrica/turbobot/internal/turbobot/onebot"
	"github.com/bdobrica/turbobot/internal/turbobot/remote"
	"github.com/bdobrica/turbobot/internal/turbobot/session"
	"github.com/bdobrica/turbobot/internal/turbobot/store"
)

// Command results recorded in metrics and the audit log.
const (
	ResultOK           = "ok"
	ResultInvalid      = "invalid"
	ResultNotBound     = "not_bound"
	ResultBusy         = "busy"
	ResultError        = "error"
	ResultUnauthorized = "unauthorized"
)

// secretArgs lists commands whose argument is a credential and is never
// written to the audit log.
var secretArgs = map[string]bool{"bind": true}

// App is the running bot.
type App struct {
	cfg *config.Config

	store    *store.Store
	creds    *credentials.FileStore
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	sessions *session.Manager
	router   *commands.Router

	transports []chat.Transport
	health     *HealthServer

	inflight sync.WaitGroup
}

// New builds every component from cfg. Nothing connects until Run.
func New(cfg *config.Config) (*App, error) {
	db, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a, err := build(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, db *store.Store) (*App, error) {
	creds, err := credentials.OpenFile(cfg.DataFile)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	client := remote.New(remote.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RemoteTimeout,
		Metrics: m,
	})

	a := &App{
		cfg:      cfg,
		store:    db,
		creds:    creds,
		metrics:  m,
		registry: registry,
	}
	a.sessions = session.NewManager(session.Config{
		Timeout:       cfg.SessionTimeout,
		UploadTimeout: cfg.UploadTimeout,
		Credentials:   creds,
		Remote:        client,
		Metrics:       m,
		OnFinish:      a.auditSession,
	})

	handlers := commands.NewHandlers(commands.HandlersConfig{
		Credentials: creds,
		Remote:      client,
		Formatter:   format.New(cat),
		Sessions:    a.sessions,
		BotName:     cfg.BotName,
		RecallBind:  cfg.RecallBind,
	})
	a.router = commands.NewRouter(commands.Options{
		Triggers:      cfg.CommandStart,
		RequirePrefix: cfg.RequirePrefix,
		Rule:          commands.GroupRule(cfg.AllowedGroups),
	})
	if err := handlers.Register(a.router); err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}

	if cfg.Matrix.Enabled() {
		logger := observability.Zerolog(os.Stdout, cfg.LogLevel, cfg.LogFormat, "mautrix")
		mc, err := matrix.New(matrix.Config{
			Homeserver:  cfg.Matrix.Homeserver,
			UserID:      cfg.Matrix.UserID,
			AccessToken: cfg.Matrix.AccessToken,
			DB:          db.DB(),
			Logger:      &logger,
		})
		if err != nil {
			return nil, err
		}
		a.transports = append(a.transports, mc)
	}
	if cfg.OneBot.Enabled() {
		a.transports = append(a.transports, onebot.New(onebot.Config{
			URL:         cfg.OneBot.URL,
			AccessToken: cfg.OneBot.AccessToken,
		}))
	}

	if cfg.HTTPAddr != "" {
		a.health = NewHealthServer(cfg.HTTPAddr, a, registry)
	}
	return a, nil
}

// Run serves every transport and the HTTP surface until ctx is cancelled or
// one of them fails, then waits for in-flight messages.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range a.transports {
		g.Go(func() error {
			if err := t.Run(ctx, a.dispatch); err != nil {
				return fmt.Errorf("%s transport: %w", t.Name(), err)
			}
			return nil
		})
	}
	if a.health != nil {
		g.Go(func() error { return a.health.Serve(ctx) })
	}

	slog.Info("turbobot is running", "transports", len(a.transports), "commands", len(a.router.Descriptors()))
	err := g.Wait()
	a.inflight.Wait()
	return err
}

// Close drops live sessions and closes the database.
func (a *App) Close() error {
	a.sessions.Close()
	return a.store.Close()
}

// dispatch is the chat.Handler given to transports. Each message is handled
// on its own goroutine.
func (a *App) dispatch(ctx context.Context, t chat.Transport, msg *chat.Message) {
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.HandleMessage(ctx, t, msg)
	}()
}

// HandleMessage routes one inbound message: a live upload session sees it
// first, then the command router. Non-commands and messages from
// conversations outside the allow-list are dropped without a reply.
func (a *App) HandleMessage(ctx context.Context, t chat.Transport, msg *chat.Message) {
	ctx, _ = trace.Ensure(ctx)
	log := observability.WithTrace(ctx).With("platform", msg.Platform, "user", msg.UserID)

	if a.sessions.Offer(ctx, t, msg) {
		return
	}

	cmd, reply, err := a.router.Route(ctx, t, msg)
	switch {
	case errors.Is(err, commands.ErrNotACommand):
		return
	case errors.Is(err, commands.ErrUnauthorized):
		log.Debug("command from unauthorized conversation dropped", "command", cmd.Name, "conversation", msg.ConversationID)
		a.metrics.ObserveCommand(cmd.Name, ResultUnauthorized)
		return
	}

	if reply != "" {
		if rerr := t.Reply(ctx, msg, reply); rerr != nil {
			log.Error("failed to send reply", "command", cmd.Name, "err", rerr)
		}
	}

	result := classify(err)
	a.metrics.ObserveCommand(cmd.Name, result)
	log.Info("command handled", "command", cmd.Name, "result", result)
	a.auditCommand(ctx, cmd, result, err)
}

func classify(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, commands.ErrInvalidArgument):
		return ResultInvalid
	case errors.Is(err, credentials.ErrNotBound):
		return ResultNotBound
	case errors.Is(err, session.ErrSessionActive):
		return ResultBusy
	default:
		return ResultError
	}
}

func (a *App) auditCommand(ctx context.Context, cmd *commands.Command, result string, err error) {
	rec := store.AuditRecord{
		TraceID:  trace.FromContext(ctx),
		Platform: cmd.Message.Platform,
		Actor:    cmd.Message.UserID,
		Action:   cmd.Name,
		Result:   result,
		Payload:  store.AuditPayload{"trigger": cmd.Trigger, "conversation": cmd.Message.ConversationID},
	}
	if !secretArgs[cmd.Name] {
		rec.Target = cmd.Arg
	}
	if err != nil {
		rec.Error = err.Error()
		if secretArgs[cmd.Name] {
			rec.Error = redact.String(rec.Error, cmd.Arg)
		}
	}
	if werr := a.store.WriteAudit(ctx, rec); werr != nil {
		observability.WithTrace(ctx).Warn("failed to write audit entry", "err", werr)
	}
}

func (a *App) auditSession(ctx context.Context, r session.Result) {
	ctx, _ = trace.Ensure(ctx)
	rec := store.AuditRecord{
		TraceID:  trace.FromContext(ctx),
		Platform: r.Platform,
		Actor:    r.UserID,
		Action:   "avatarSession",
		Target:   r.ID,
		Result:   r.State.String(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	if err := a.store.WriteAudit(ctx, rec); err != nil {
		observability.WithTrace(ctx).Warn("failed to write session audit entry", "err", err)
	}
}

// BindingCount implements StatusProvider.
func (a *App) BindingCount() int { return len(a.creds.List()) }

// ActiveSessions implements StatusProvider.
func (a *App) ActiveSessions() int { return a.sessions.Active() }
