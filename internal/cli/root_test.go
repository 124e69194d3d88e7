package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUnknownCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unknown command error",
			err:  errors.New(`unknown command "foo" for "vmw"`),
			want: true,
		},
		{
			name: "unknown flag error",
			err:  errors.New(`unknown flag: --foo`),
			want: true,
		},
		{
			name: "other error",
			err:  errors.New("connection failed"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnknownCommandError(tt.err))
		})
	}
}

func TestExtractUnknownCommand(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "standard cobra format",
			err:  errors.New(`unknown command "foo" for "vmw"`),
			want: "foo",
		},
		{
			name: "command with hyphen",
			err:  errors.New(`unknown command "container-stat" for "vmw"`),
			want: "container-stat",
		},
		{
			name: "no quotes returns empty",
			err:  errors.New("unknown command foo"),
			want: "",
		},
		{
			name: "single quote returns empty",
			err:  errors.New(`unknown command "foo`),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractUnknownCommand(tt.err))
		})
	}
}

func TestJSONRequested(t *testing.T) {
	assert.True(t, jsonRequested([]string{"stats", "web1", "--json"}))
	assert.True(t, jsonRequested([]string{"--json=true", "alerts"}))
	assert.False(t, jsonRequested([]string{"stats", "web1"}))
	assert.False(t, jsonRequested([]string{"logs", "--", "--json"}))
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"frobnicate", "--no-color"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "'frobnicate' isn't a vmw command")
}

func TestRun_FlagErrorAsJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"stats", "--bogus", "--json"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), `"success": false`)
	assert.Empty(t, stderr.String())
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	want := []string{
		"serve", "stats", "test", "validate", "containers", "images", "stopped",
		"container-stats", "start", "stop", "logs", "alerts", "host", "init", "version",
	}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, flag := range []string{"config", "verbose", "json", "no-color"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	t.Cleanup(func() { SetVersionInfo(origVersion, origCommit, origDate) })
	SetVersionInfo("1.4.0", "abc123", "2025-01-01")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "vmw v1.4.0")
	assert.Contains(t, stdout.String(), "commit: abc123")

	stdout.Reset()
	require.Equal(t, 0, run([]string{"version", "--short"}, &stdout, &stderr))
	assert.Equal(t, "1.4.0\n", stdout.String())
	assert.Equal(t, "1.4.0", GetVersion())
}

func TestFormatVersion(t *testing.T) {
	tests := []struct{ in, want string }{
		{"dev", "dev"},
		{"", ""},
		{"1.2.3", "v1.2.3"},
		{"v1.2.3", "v1.2.3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatVersion(tt.in))
	}
}
