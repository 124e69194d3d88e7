package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/registry"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, DriverSQLite, cfg.Registry.Driver)
	assert.Equal(t, "VMW_SEAL_KEY", cfg.Registry.SealKeyEnv)
	assert.Equal(t, 30*time.Second, cfg.SSH.ConnectTimeout)
	assert.Equal(t, 15*time.Second, cfg.SSH.CommandTimeout)
	assert.True(t, cfg.SSH.StrictHostKeys)
	assert.True(t, cfg.SSH.Pool.Enabled)
	assert.Equal(t, 16, cfg.SSH.Pool.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.Coalesce)
	assert.Equal(t, "sudo docker", cfg.Monitor.DockerCommand)
	assert.Equal(t, 40.0, cfg.Thresholds.HostRAM)
	assert.Equal(t, 80.0, cfg.Thresholds.ContainerBlockIOMB)
	assert.Equal(t, 5, cfg.Alerts.Concurrency)
	assert.Equal(t, ":5050", cfg.Server.Addr)
	assert.NoError(t, Validate(cfg))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
version: 1
registry:
  driver: static
hosts:
  - label: web1
    address: 10.0.0.5
    username: ops
    auth_method: password
    password: hunter2
  - label: db1
    address: db1.lan
    port: 2222
    auth_method: agent
ssh:
  connect_timeout: 5s
  pool:
    enabled: false
cache:
  ttl: 1m
  coalesce: true
monitor:
  docker_command: docker
thresholds:
  host_ram: 65
alerts:
  dial_rate: 0
server:
  addr: 127.0.0.1:9000
notify:
  email:
    host: smtp.example.com
    from: vmwatch@example.com
    to: [oncall@example.com]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverStatic, cfg.Registry.Driver)
	require.Len(t, cfg.Hosts, 2)
	assert.Equal(t, "web1", cfg.Hosts[0].Label)
	assert.Equal(t, registry.AuthPassword, cfg.Hosts[0].AuthMethod)
	assert.Equal(t, "hunter2", cfg.Hosts[0].Password)
	assert.Equal(t, 2222, cfg.Hosts[1].Port)
	assert.Equal(t, registry.AuthAgent, cfg.Hosts[1].AuthMethod)

	assert.Equal(t, 5*time.Second, cfg.SSH.ConnectTimeout)
	assert.Equal(t, 15*time.Second, cfg.SSH.CommandTimeout, "unset keys keep defaults")
	assert.False(t, cfg.SSH.Pool.Enabled)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Coalesce)
	assert.Equal(t, "docker", cfg.Monitor.DockerCommand)
	assert.Equal(t, 65.0, cfg.Thresholds.HostRAM)
	assert.Equal(t, 80.0, cfg.Thresholds.HostDisk)
	assert.Zero(t, cfg.Alerts.DialRate)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 587, cfg.Notify.Email.Port)
	assert.Equal(t, []string{"oncall@example.com"}, cfg.Notify.Email.To)

	assert.NoError(t, Validate(cfg))
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "cache:\n  ttl: 1m\n")
	t.Setenv("VMW_CACHE_TTL", "90s")
	t.Setenv("VMW_THRESHOLDS_HOST_DISK", "70")
	t.Setenv("VMW_NOTIFY_EMAIL_PASSWORD", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 70.0, cfg.Thresholds.HostDisk)
	assert.Equal(t, "from-env", cfg.Notify.Email.Password)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	_, err = Load(writeConfig(t, "cache: [unclosed"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_ExpandsPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := Load(writeConfig(t, "registry:\n  path: ~/fleet/hosts.db\nssh:\n  known_hosts: ${HOME}/kh\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "fleet", "hosts.db"), cfg.Registry.Path)
	assert.Equal(t, home+"/kh", cfg.SSH.KnownHosts)
}

func TestFind(t *testing.T) {
	t.Run("explicit", func(t *testing.T) {
		path := writeConfig(t, "version: 1\n")
		got, err := Find(path)
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("explicit missing", func(t *testing.T) {
		_, err := Find(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})

	t.Run("parent directory", func(t *testing.T) {
		root := t.TempDir()
		t.Setenv("HOME", t.TempDir())
		require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("version: 1\n"), 0o644))
		sub := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(sub, 0o755))
		t.Chdir(sub)

		got, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, ConfigFileName), got)
	})

	t.Run("global", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		require.NoError(t, os.MkdirAll(filepath.Dir(global), 0o755))
		require.NoError(t, os.WriteFile(global, []byte("version: 1\n"), 0o644))
		t.Chdir(t.TempDir())

		got, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, global, got)
	})
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("VMW_SERVER_ADDR", ":7000")

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Registry.Driver)
}

func TestLoadEnvFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VMW_TEST_DOTENV=loaded\nVMW_TEST_KEEP=file\n"), 0o600))
	t.Setenv("VMW_TEST_KEEP", "env")
	t.Setenv("VMW_TEST_DOTENV", "")
	os.Unsetenv("VMW_TEST_DOTENV")

	require.NoError(t, LoadEnvFiles())
	assert.Equal(t, "loaded", os.Getenv("VMW_TEST_DOTENV"))
	assert.Equal(t, "env", os.Getenv("VMW_TEST_KEEP"), "existing variables win")
}
