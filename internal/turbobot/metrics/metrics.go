// Package metrics exposes Prometheus collectors for command traffic, remote
// calls and avatar upload sessions.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the turbobot collectors. A nil *Metrics is valid and
// records nothing, which keeps unit tests free of registry plumbing.
type Metrics struct {
	commands       *prometheus.CounterVec
	remoteRequests *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
	sessionsActive prometheus.Gauge
	sessionsDone   *prometheus.CounterVec
}

// New registers the collectors on reg. When a collector with the same name is
// already registered its existing instance is reused, so building several
// apps against the default registry in one process does not panic.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turbobot",
			Name:      "commands_total",
			Help:      "Routed chat commands by command name and result.",
		}, []string{"command", "result"}),
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turbobot",
			Name:      "remote_requests_total",
			Help:      "Requests sent to the account service by path and outcome kind.",
		}, []string{"path", "outcome"}),
		remoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "turbobot",
			Name:      "remote_request_duration_seconds",
			Help:      "Latency of account service requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "turbobot",
			Name:      "upload_sessions_active",
			Help:      "Avatar upload sessions waiting for an image.",
		}),
		sessionsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turbobot",
			Name:      "upload_sessions_total",
			Help:      "Avatar upload sessions by terminal state.",
		}, []string{"state"}),
	}

	var err error
	if m.commands, err = register(reg, m.commands); err != nil {
		return nil, err
	}
	if m.remoteRequests, err = register(reg, m.remoteRequests); err != nil {
		return nil, err
	}
	if m.remoteDuration, err = register(reg, m.remoteDuration); err != nil {
		return nil, err
	}
	if m.sessionsActive, err = register(reg, m.sessionsActive); err != nil {
		return nil, err
	}
	if m.sessionsDone, err = register(reg, m.sessionsDone); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveCommand counts one routed command.
func (m *Metrics) ObserveCommand(command, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result).Inc()
}

// ObserveRemote counts one account service request and its latency.
func (m *Metrics) ObserveRemote(path, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.remoteRequests.WithLabelValues(path, outcome).Inc()
	m.remoteDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// SessionStarted marks an upload session entering AwaitingImage.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

// SessionReleased marks a session leaving AwaitingImage.
func (m *Metrics) SessionReleased() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// SessionFinished counts a session reaching a terminal state.
func (m *Metrics) SessionFinished(state string) {
	if m == nil {
		return
	}
	m.sessionsDone.WithLabelValues(state).Inc()
}
