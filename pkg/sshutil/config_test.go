package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestParseSSHConfigFile(t *testing.T) {
	path := writeSSHConfig(t, `
Host web1
    HostName 10.0.0.5
    User ubuntu
    Port 22
    IdentityFile ~/.ssh/id_fleet

Host db1
    HostName db.internal
    User postgres

Host *
    ServerAliveInterval 60

Host stage-*
    User deploy
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)

	// Wildcard patterns are not pickable hosts.
	require.Len(t, hosts, 2)
	assert.Equal(t, "db1", hosts[0].Alias)
	assert.Equal(t, "web1", hosts[1].Alias)

	assert.Equal(t, SSHHostEntry{Alias: "db1", Hostname: "db.internal", User: "postgres"}, hosts[0])
	assert.Equal(t, "10.0.0.5", hosts[1].Hostname)
	assert.Equal(t, "22", hosts[1].Port)
	assert.Contains(t, hosts[1].IdentityFile, "id_fleet")
	assert.NotContains(t, hosts[1].IdentityFile, "~")
}

func TestParseSSHConfigFile_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		aliases []string
	}{
		{
			name:    "empty file",
			content: "",
		},
		{
			name:    "comments only",
			content: "# fleet hosts\n\n# none yet\n",
		},
		{
			name: "duplicate host keeps one entry",
			content: `
Host web1
    HostName first.example.com

Host web1
    HostName second.example.com
`,
			aliases: []string{"web1"},
		},
		{
			name: "multiple patterns on one line",
			content: `
Host vm3 vm1 vm2
    User ops
`,
			aliases: []string{"vm1", "vm2", "vm3"},
		},
		{
			name: "entries after Match are hidden",
			content: `
Host before-match
    HostName before.example.com

Match host *.example.com
    User matchuser

Host after-match
    HostName after.example.com
`,
			aliases: []string{"before-match"},
		},
		{
			name: "punctuation in alias",
			content: `
Host my-vm_01
    HostName vm01.example.com
`,
			aliases: []string{"my-vm_01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := ParseSSHConfigFile(writeSSHConfig(t, tt.content))
			require.NoError(t, err)

			var got []string
			for _, h := range hosts {
				got = append(got, h.Alias)
			}
			assert.Equal(t, tt.aliases, got)
		})
	}
}

func TestParseSSHConfigFile_Missing(t *testing.T) {
	hosts, err := ParseSSHConfigFile(filepath.Join(t.TempDir(), "nope"))
	assert.NoError(t, err)
	assert.Nil(t, hosts)
}

func TestLookupHost(t *testing.T) {
	path := writeSSHConfig(t, `
Host web1
    HostName 10.0.0.5
    User deploy
    Port 2222
`)

	entry, ok := LookupHost(path, "web1")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.5", entry.Hostname)
	assert.Equal(t, "deploy", entry.User)
	assert.Equal(t, "2222", entry.Port)

	_, ok = LookupHost(path, "10.0.0.9")
	assert.False(t, ok)

	_, ok = LookupHost(filepath.Join(t.TempDir(), "missing"), "web1")
	assert.False(t, ok)
}

func TestResolveSSHSettings(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	require.NoError(t, os.MkdirAll(filepath.Join(tmpHome, ".ssh"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(tmpHome, ".ssh", "config"), []byte(`
Host db-alias
    HostName 10.1.1.1
    User postgres
    Port 2200
`), 0600))

	tests := []struct {
		name        string
		target      Target
		useConfig   bool
		wantAddress string
		wantUser    string
	}{
		{
			name:        "plain address defaults to port 22",
			target:      Target{Address: "10.0.0.5", User: "ubuntu"},
			wantAddress: "10.0.0.5:22",
			wantUser:    "ubuntu",
		},
		{
			name:        "explicit port",
			target:      Target{Address: "10.0.0.5", Port: 2022, User: "ubuntu"},
			wantAddress: "10.0.0.5:2022",
			wantUser:    "ubuntu",
		},
		{
			name:        "alias resolved from ssh config",
			target:      Target{Address: "db-alias"},
			useConfig:   true,
			wantAddress: "10.1.1.1:2200",
			wantUser:    "postgres",
		},
		{
			name:        "stored user and port win over ssh config",
			target:      Target{Address: "db-alias", Port: 22, User: "admin"},
			useConfig:   true,
			wantAddress: "10.1.1.1:22",
			wantUser:    "admin",
		},
		{
			name:        "alias ignored when resolution is off",
			target:      Target{Address: "db-alias", User: "x"},
			wantAddress: "db-alias:22",
			wantUser:    "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := resolveSSHSettings(tt.target, tt.useConfig)
			assert.Equal(t, tt.wantAddress, s.address())
			assert.Equal(t, tt.wantUser, s.user)
		})
	}
}
