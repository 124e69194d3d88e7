package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrSSH,
		ErrNotFound,
		ErrAuth,
		ErrTimeout,
		ErrUnreachable,
		ErrHostKey,
		ErrParse,
		ErrPartial,
		ErrExec,
		ErrRegistry,
		ErrNotify,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Invalid configuration in .vmwatch.yaml",
			suggestion: "Check your configuration file syntax",
		},
		{
			name:       "registry error",
			code:       ErrRegistry,
			message:    "Cannot open host registry",
			suggestion: "Check registry.path in your config",
		},
		{
			name:       "notify error",
			code:       ErrNotify,
			message:    "Alert e-mail could not be delivered",
			suggestion: "Check notify.email settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := WrapWithCode(
		errors.New("dial tcp 10.0.0.5:22: i/o timeout"),
		ErrTimeout,
		"Cannot connect to web1",
		"Check that the VM is running",
	)

	output := err.Error()
	lines := strings.Split(output, "\n")

	assert.True(t, strings.HasPrefix(lines[0], "✗"), "first line should start with failure symbol")
	assert.Contains(t, lines[0], "Cannot connect to web1")
	assert.Contains(t, output, "i/o timeout")
	assert.Contains(t, output, "Check that the VM is running")
}

func TestErrorWithoutSuggestion(t *testing.T) {
	output := New(ErrExec, "Command failed", "").Error()
	assert.Equal(t, "✗ Command failed\n", output)
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying network error")
	wrapped := Wrap(cause, "SSH connection failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrSSH, wrapped.Code, "Wrap should default to ErrSSH code")
	assert.Equal(t, cause, wrapped.Cause)
	assert.True(t, errors.Is(wrapped, cause))
}

func TestIsCode(t *testing.T) {
	err := New(ErrConfig, "Config error", "")

	assert.True(t, IsCode(err, ErrConfig))
	assert.False(t, IsCode(err, ErrSSH))
	assert.False(t, IsCode(errors.New("standard error"), ErrConfig))
	assert.False(t, IsCode(nil, ErrConfig))

	wrapped := fmt.Errorf("resolve: %w", NotFound("ghost1"))
	assert.True(t, IsCode(wrapped, ErrNotFound))
}

func TestNotFound(t *testing.T) {
	err := NotFound("ghost1")
	assert.Equal(t, ErrNotFound, err.Code)
	assert.Contains(t, err.Message, "ghost1")
}

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom\nsecond line"), want: "boom"},
		{name: "structured without cause", err: New(ErrAuth, "Key rejected", "fix it"), want: "Key rejected"},
		{
			name: "structured with cause",
			err:  WrapWithCode(errors.New("connection refused"), ErrUnreachable, "Cannot reach web1", ""),
			want: "Cannot reach web1: connection refused",
		},
		{
			name: "nested structured cause",
			err:  WrapWithCode(New(ErrSSH, "inner", "x"), ErrExec, "outer", ""),
			want: "outer: inner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reason(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "dial timeout", err: errors.New("dial tcp 10.0.0.1:22: i/o timeout"), want: ErrTimeout},
		{name: "context deadline", err: fmt.Errorf("run: %w", context.DeadlineExceeded), want: ErrTimeout},
		{name: "refused", err: errors.New("dial tcp 10.0.0.1:22: connect: connection refused"), want: ErrUnreachable},
		{name: "no route", err: errors.New("connect: no route to host"), want: ErrUnreachable},
		{name: "dns", err: errors.New("dial tcp: lookup nope: no such host"), want: ErrUnreachable},
		{
			name: "auth",
			err:  errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]"),
			want: ErrAuth,
		},
		{name: "host key", err: errors.New("ssh: handshake failed: knownhosts: key mismatch for host key"), want: ErrHostKey},
		{name: "existing code kept", err: New(ErrAuth, "Unsupported private key format", ""), want: ErrAuth},
		{name: "unknown", err: errors.New("something odd"), want: ErrSSH},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOk   bool
	}{
		{name: "ExitError returns code", err: NewExitError(2), wantCode: 2, wantOk: true},
		{name: "wrapped ExitError", err: fmt.Errorf("alerts: %w", NewExitError(3)), wantCode: 3, wantOk: true},
		{name: "standard error returns false", err: errors.New("standard error")},
		{name: "nil error returns false", err: nil},
		{name: "structured Error returns false", err: New(ErrExec, "test", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := GetExitCode(tt.err)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "exit code 137", NewExitError(137).Error())
}
