package monitor

import (
	"context"
	"time"

	"github.com/rileyhilliard/vmwatch/internal/cache"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/logger"
	"github.com/rileyhilliard/vmwatch/internal/registry"
	"github.com/rileyhilliard/vmwatch/internal/remote"
)

// DefaultDockerCommand is prefixed to every docker invocation.
const DefaultDockerCommand = "sudo docker"

// TestConnectTimeout bounds the dial for reachability checks.
const TestConnectTimeout = 10 * time.Second

// Monitor answers host and container queries for registered hosts.
type Monitor struct {
	registry registry.Registry
	runner   remote.Runner
	cache    *cache.TelemetryCache
	log      logger.Logger
	docker   string
	now      func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// WithDockerCommand replaces DefaultDockerCommand, e.g. with "docker" when
// the SSH user is in the docker group.
func WithDockerCommand(cmd string) Option {
	return func(m *Monitor) {
		if cmd != "" {
			m.docker = cmd
		}
	}
}

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates a Monitor. A nil cache gets a default one.
func New(reg registry.Registry, runner remote.Runner, c *cache.TelemetryCache, opts ...Option) *Monitor {
	if c == nil {
		c = cache.New(cache.DefaultTTL)
	}
	m := &Monitor{
		registry: reg,
		runner:   runner,
		cache:    c,
		log:      logger.NewEnvLogger("[monitor]"),
		docker:   DefaultDockerCommand,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Cache returns the telemetry cache.
func (m *Monitor) Cache() *cache.TelemetryCache {
	return m.cache
}

// Registry returns the host registry.
func (m *Monitor) Registry() registry.Registry {
	return m.registry
}

// hostCall is the resolved credential plus an open session for one
// operation.
type hostCall struct {
	cred    registry.Credential
	session remote.Session
}

// failure describes why an operation could not complete.
type failure struct {
	notFound bool
	reason   string
	code     string
}

// open resolves label and opens a session. Any resolution failure, including
// a broken registry, is reported as not found.
func (m *Monitor) open(ctx context.Context, label string) (*hostCall, *failure) {
	cred, err := m.registry.Resolve(ctx, label)
	if err != nil {
		if errors.IsCode(err, errors.ErrNotFound) {
			return nil, &failure{notFound: true, reason: "VM not found", code: errors.ErrNotFound}
		}
		m.log.Error("registry lookup for %s failed: %s", label, errors.Reason(err))
		return nil, &failure{notFound: true, reason: errors.Reason(err), code: errors.ErrRegistry}
	}

	session, err := m.runner.Open(ctx, cred)
	if err != nil {
		return nil, failureFrom(err)
	}
	return &hostCall{cred: cred, session: session}, nil
}

// failureFrom classifies a dial or transport error.
func failureFrom(err error) *failure {
	return &failure{reason: errors.Reason(err), code: errors.Classify(err)}
}

// transportFailure reports the session's transport error, if any.
func (c *hostCall) transportFailure() *failure {
	if err := c.session.Err(); err != nil {
		return failureFrom(err)
	}
	return nil
}
