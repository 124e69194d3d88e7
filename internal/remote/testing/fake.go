// Package testing provides a scripted Runner for exercising code that runs
// remote commands without SSH.
package testing

import (
	"context"
	"strings"
	"sync"

	"github.com/rileyhilliard/vmwatch/internal/registry"
	"github.com/rileyhilliard/vmwatch/internal/remote"
)

// FakeRunner answers commands from per-host scripts. A command matches a
// script entry exactly, or else the longest entry it contains. Unmatched
// commands fail like a non-zero exit.
type FakeRunner struct {
	mu    sync.Mutex
	hosts map[string]*fakeHost

	opens    map[string]int
	commands map[string][]string
}

type fakeHost struct {
	openErr   error
	responses map[string]response
}

type response struct {
	output string
	ok     bool
	err    error
	panics bool
}

// NewFakeRunner creates an empty runner. Every host opens successfully
// until SetOpenError says otherwise.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		hosts:    make(map[string]*fakeHost),
		opens:    make(map[string]int),
		commands: make(map[string][]string),
	}
}

func (r *FakeRunner) host(label string) *fakeHost {
	h, ok := r.hosts[label]
	if !ok {
		h = &fakeHost{responses: make(map[string]response)}
		r.hosts[label] = h
	}
	return h
}

func (r *FakeRunner) set(label, cmd string, resp response) *FakeRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host(label).responses[cmd] = resp
	return r
}

// SetResponse makes cmd succeed on label with output.
func (r *FakeRunner) SetResponse(label, cmd, output string) *FakeRunner {
	return r.set(label, cmd, response{output: output, ok: true})
}

// SetFailure makes cmd exit non-zero on label.
func (r *FakeRunner) SetFailure(label, cmd string) *FakeRunner {
	return r.set(label, cmd, response{})
}

// SetTransportError makes cmd fail on label as if the connection broke.
func (r *FakeRunner) SetTransportError(label, cmd string, err error) *FakeRunner {
	return r.set(label, cmd, response{err: err})
}

// SetPanic makes cmd panic on label.
func (r *FakeRunner) SetPanic(label, cmd string) *FakeRunner {
	return r.set(label, cmd, response{panics: true})
}

// SetOpenError makes Open fail for label.
func (r *FakeRunner) SetOpenError(label string, err error) *FakeRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host(label).openErr = err
	return r
}

// Opens returns how many sessions were opened for label.
func (r *FakeRunner) Opens(label string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens[label]
}

// Commands returns the commands run on label, in order.
func (r *FakeRunner) Commands(label string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.commands[label]))
	copy(out, r.commands[label])
	return out
}

// Open implements remote.Runner.
func (r *FakeRunner) Open(ctx context.Context, cred registry.Credential) (remote.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opens[cred.Label]++
	if err := r.host(cred.Label).openErr; err != nil {
		return nil, err
	}
	return &fakeSession{runner: r, label: cred.Label}, nil
}

func (r *FakeRunner) lookup(label, cmd string) (response, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands[label] = append(r.commands[label], cmd)
	h := r.host(label)
	if resp, ok := h.responses[cmd]; ok {
		return resp, true
	}

	best := ""
	for pattern := range h.responses {
		if len(pattern) > len(best) && strings.Contains(cmd, pattern) {
			best = pattern
		}
	}
	if best == "" {
		return response{}, false
	}
	return h.responses[best], true
}

type fakeSession struct {
	runner *FakeRunner
	label  string
	err    error
}

func (s *fakeSession) Run(ctx context.Context, cmd string) (string, bool) {
	if err := ctx.Err(); err != nil {
		if s.err == nil {
			s.err = err
		}
		return "", false
	}

	resp, ok := s.runner.lookup(s.label, cmd)
	if !ok {
		return "", false
	}
	if resp.panics {
		panic("scripted panic for " + cmd)
	}
	if resp.err != nil {
		if s.err == nil {
			s.err = resp.err
		}
		return "", false
	}
	return resp.output, resp.ok
}

func (s *fakeSession) Err() error {
	return s.err
}

func (s *fakeSession) Close() error {
	return nil
}

var _ remote.Runner = (*FakeRunner)(nil)
