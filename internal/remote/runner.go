// Package remote runs introspection commands on fleet hosts over SSH.
package remote

import (
	"context"
	"strings"
	"time"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/logger"
	"github.com/rileyhilliard/vmwatch/internal/registry"
	"github.com/rileyhilliard/vmwatch/pkg/sshutil"
)

// Default timeouts.
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultCommandTimeout = 15 * time.Second
)

// Session runs commands against one open connection. Run never fails
// loudly: a non-zero exit or a transport error yields empty output and
// ok=false, and is logged. Err reports the first transport error (timeout
// or dropped connection) so callers can discard a partial result.
type Session interface {
	Run(ctx context.Context, cmd string) (output string, ok bool)
	Err() error
	Close() error
}

// Runner opens authenticated sessions.
type Runner interface {
	Open(ctx context.Context, cred registry.Credential) (Session, error)
}

// Config holds SSH settings shared by every session a runner opens.
type Config struct {
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	KnownHostsPath string
	// StrictHostKeys=false skips host key verification entirely.
	StrictHostKeys bool
	ResolveAliases bool
}

// DialFunc opens a client for a credential.
type DialFunc func(ctx context.Context, cred registry.Credential) (sshutil.SSHClient, error)

// SSHRunner opens a new SSH connection per session, or borrows one from a
// Pool when configured.
type SSHRunner struct {
	cfg  Config
	pool *Pool
	log  logger.Logger
	dial DialFunc
}

// RunnerOption configures an SSHRunner.
type RunnerOption func(*SSHRunner)

// WithPool reuses connections from p.
func WithPool(p *Pool) RunnerOption {
	return func(r *SSHRunner) { r.pool = p }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) RunnerOption {
	return func(r *SSHRunner) { r.log = l }
}

// WithDialer replaces the SSH dialer.
func WithDialer(d DialFunc) RunnerOption {
	return func(r *SSHRunner) { r.dial = d }
}

// NewSSHRunner creates a runner. Zero timeouts take the defaults.
func NewSSHRunner(cfg Config, opts ...RunnerOption) *SSHRunner {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	r := &SSHRunner{
		cfg: cfg,
		log: logger.NewEnvLogger("[remote]"),
	}
	r.dial = r.dialSSH
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the runner's effective settings.
func (r *SSHRunner) Config() Config {
	return r.cfg
}

// Open dials (or borrows) a connection for cred.
func (r *SSHRunner) Open(ctx context.Context, cred registry.Credential) (Session, error) {
	if r.pool != nil {
		client, release, err := r.pool.Acquire(ctx, cred, r.dial)
		if err != nil {
			r.log.Error("connect to %s failed: %s", cred.Label, errors.Reason(err))
			return nil, err
		}
		return &sshSession{client: client, release: release, label: cred.Label, timeout: r.cfg.CommandTimeout, log: r.log}, nil
	}

	client, err := r.dial(ctx, cred)
	if err != nil {
		r.log.Error("connect to %s failed: %s", cred.Label, errors.Reason(err))
		return nil, err
	}
	return &sshSession{
		client:  client,
		release: func(bool) { _ = client.Close() },
		label:   cred.Label,
		timeout: r.cfg.CommandTimeout,
		log:     r.log,
	}, nil
}

// OpenWithTimeout is Open with a connect timeout overriding the configured one.
func (r *SSHRunner) OpenWithTimeout(ctx context.Context, cred registry.Credential, timeout time.Duration) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.Open(ctx, cred)
}

func (r *SSHRunner) dialSSH(ctx context.Context, cred registry.Credential) (sshutil.SSHClient, error) {
	return sshutil.Dial(ctx, TargetFor(cred), sshutil.Options{
		ConnectTimeout:        r.cfg.ConnectTimeout,
		KnownHostsPath:        r.cfg.KnownHostsPath,
		InsecureIgnoreHostKey: !r.cfg.StrictHostKeys,
		ResolveAliases:        r.cfg.ResolveAliases,
	})
}

// TargetFor maps a stored credential to an SSH dial target.
func TargetFor(cred registry.Credential) sshutil.Target {
	t := sshutil.Target{
		Label:   cred.Label,
		Address: cred.Address,
		Port:    cred.Port,
		User:    cred.Username,
	}
	switch cred.AuthMethod {
	case registry.AuthKey:
		t.PrivateKey = []byte(cred.PrivateKey)
	case registry.AuthPassword:
		t.Password = cred.Password
	case registry.AuthAgent:
		t.UseAgent = true
	}
	return t
}

type sshSession struct {
	client  sshutil.SSHClient
	release func(broken bool)
	label   string
	timeout time.Duration
	log     logger.Logger
	err     error
	closed  bool
}

func (s *sshSession) Run(ctx context.Context, cmd string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stdout, stderr, code, err := s.client.ExecContext(ctx, cmd)
	if err != nil {
		if s.err == nil {
			s.err = err
		}
		s.log.Error("command on %s failed: %s: %s", s.label, cmd, errors.Reason(err))
		return "", false
	}
	if code != 0 {
		s.log.Warn("command on %s exited %d: %s: %s", s.label, code, cmd, strings.TrimSpace(string(stderr)))
		return "", false
	}
	return strings.TrimSpace(string(stdout)), true
}

func (s *sshSession) Err() error {
	return s.err
}

func (s *sshSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.release(s.err != nil)
	return nil
}

// RunOnce opens a session, runs one command and closes the session. The
// error is the dial error or the session's transport error.
func RunOnce(ctx context.Context, r Runner, cred registry.Credential, cmd string) (string, bool, error) {
	session, err := r.Open(ctx, cred)
	if err != nil {
		return "", false, err
	}
	defer session.Close()

	out, ok := session.Run(ctx, cmd)
	return out, ok, session.Err()
}
