package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/logger"
	"github.com/rileyhilliard/vmwatch/internal/registry"
	"github.com/rileyhilliard/vmwatch/pkg/sshutil"
)

// Pool defaults.
const (
	DefaultPoolSize    = 16
	DefaultIdleTimeout = 5 * time.Minute

	// DefaultAliveTimeout bounds the keepalive check on a pooled connection.
	DefaultAliveTimeout = 2 * time.Second
)

// Pool keeps one SSH connection per host label for reuse across sessions.
// It holds at most maxSize connections; when full, Acquire hands out a
// direct connection that is closed on release. Acquire never waits for a
// slot and the pool lock is never held across a dial.
type Pool struct {
	mu           sync.Mutex
	connections  map[string]*poolEntry
	maxSize      int
	idleTimeout  time.Duration
	aliveTimeout time.Duration
	now          func() time.Time
	log          logger.Logger
}

// poolEntry holds a connection and its metadata.
type poolEntry struct {
	client      sshutil.SSHClient
	fingerprint string
	lastUsed    time.Time
	inUse       int
}

// NewPool creates a pool. Zero values take the defaults.
func NewPool(maxSize int, idleTimeout time.Duration) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultPoolSize
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Pool{
		connections:  make(map[string]*poolEntry),
		maxSize:      maxSize,
		idleTimeout:  idleTimeout,
		aliveTimeout: DefaultAliveTimeout,
		now:          time.Now,
		log:          logger.NewEnvLogger("[pool]"),
	}
}

// Acquire returns a client for cred and a release func that must be called
// once the caller is done. Pass broken=true when the connection failed so
// it is dropped rather than reused.
func (p *Pool) Acquire(ctx context.Context, cred registry.Credential, dial DialFunc) (sshutil.SSHClient, func(broken bool), error) {
	fp := fingerprint(cred)

	p.mu.Lock()
	p.evictIdleLocked()
	entry, exists := p.connections[cred.Label]
	if exists && entry.fingerprint != fp && entry.inUse == 0 {
		// Credential changed since the connection was made.
		p.removeLocked(cred.Label)
		exists = false
	}
	if exists && entry.fingerprint == fp {
		entry.inUse++
		entry.lastUsed = p.now()
	}
	p.mu.Unlock()

	if exists && entry.fingerprint == fp {
		release := p.releaser(cred.Label, entry)
		switch p.alive(ctx, entry.client) {
		case aliveOK:
			return entry.client, release, nil
		case aliveCanceled:
			release(false)
			return nil, nil, errors.WrapWithCode(ctx.Err(), errors.ErrTimeout,
				"Gave up waiting on the pooled connection to "+cred.Label, "")
		}
		p.log.Debug("pooled connection to %s is dead, redialing", cred.Label)
		release(true)
	}

	client, err := dial(ctx, cred)
	if err != nil {
		return nil, nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, taken := p.connections[cred.Label]; !taken && len(p.connections) < p.maxSize {
		entry := &poolEntry{client: client, fingerprint: fp, lastUsed: p.now(), inUse: 1}
		p.connections[cred.Label] = entry
		return client, p.releaser(cred.Label, entry), nil
	}

	p.log.Debug("pool full or slot taken for %s, using a direct connection", cred.Label)
	return client, func(bool) { _ = client.Close() }, nil
}

type aliveState int

const (
	aliveOK aliveState = iota
	aliveDead
	aliveCanceled
)

// alive checks client without outliving ctx or aliveTimeout. A check that
// times out counts as dead; closing the client unblocks the goroutine.
func (p *Pool) alive(ctx context.Context, client sshutil.SSHClient) aliveState {
	done := make(chan bool, 1)
	go func() { done <- client.Alive() }()

	timer := time.NewTimer(p.aliveTimeout)
	defer timer.Stop()

	select {
	case ok := <-done:
		if ok {
			return aliveOK
		}
		return aliveDead
	case <-timer.C:
		return aliveDead
	case <-ctx.Done():
		return aliveCanceled
	}
}

func (p *Pool) releaser(label string, entry *poolEntry) func(broken bool) {
	var once sync.Once
	return func(broken bool) {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()

			entry.inUse--
			entry.lastUsed = p.now()
			if broken && p.connections[label] == entry {
				p.removeLocked(label)
			}
		})
	}
}

// Close closes all connections in the pool and clears it.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for label := range p.connections {
		p.removeLocked(label)
	}
}

// CloseOne closes and removes a specific connection from the pool.
func (p *Pool) CloseOne(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(label)
}

// Size returns the number of connections in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections)
}

// Labels returns the labels with pooled connections.
func (p *Pool) Labels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	labels := make([]string, 0, len(p.connections))
	for label := range p.connections {
		labels = append(labels, label)
	}
	return labels
}

func (p *Pool) evictIdleLocked() {
	now := p.now()
	for label, entry := range p.connections {
		if entry.inUse == 0 && now.Sub(entry.lastUsed) >= p.idleTimeout {
			p.log.Debug("evicting idle connection to %s", label)
			p.removeLocked(label)
		}
	}
}

func (p *Pool) removeLocked(label string) {
	if entry, ok := p.connections[label]; ok {
		if entry.client != nil {
			_ = entry.client.Close()
		}
		delete(p.connections, label)
	}
}

// fingerprint identifies the connection-relevant parts of a credential.
func fingerprint(cred registry.Credential) string {
	h := sha256.New()
	for _, part := range []string{cred.Address, cred.Endpoint(), cred.Username, string(cred.AuthMethod), cred.Password, cred.PrivateKey} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
