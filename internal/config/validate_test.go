package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/registry"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "future version", mutate: func(c *Config) { c.Version = 99 }, wantErr: "from the future"},
		{name: "unknown driver", mutate: func(c *Config) { c.Registry.Driver = "redis" }, wantErr: "registry.driver"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Registry.Path = "" }, wantErr: "registry.path"},
		{name: "static without hosts", mutate: func(c *Config) { c.Registry.Driver = DriverStatic }, wantErr: "hosts list is empty"},
		{
			name: "static with hosts",
			mutate: func(c *Config) {
				c.Registry.Driver = DriverStatic
				c.Hosts = []registry.Credential{{Label: "web1", Address: "10.0.0.5", Password: "pw"}}
			},
		},
		{
			name: "invalid host",
			mutate: func(c *Config) {
				c.Hosts = []registry.Credential{{Label: "web1"}}
			},
			wantErr: "hosts[0]",
		},
		{
			name: "duplicate host",
			mutate: func(c *Config) {
				h := registry.Credential{Label: "web1", Address: "10.0.0.5", Password: "pw"}
				c.Hosts = []registry.Credential{h, h}
			},
			wantErr: "twice",
		},
		{name: "negative connect timeout", mutate: func(c *Config) { c.SSH.ConnectTimeout = -time.Second }, wantErr: "connect_timeout"},
		{name: "empty pool", mutate: func(c *Config) { c.SSH.Pool.MaxSize = 0 }, wantErr: "max_size"},
		{name: "pool off ignores size", mutate: func(c *Config) { c.SSH.Pool.Enabled = false; c.SSH.Pool.MaxSize = 0 }},
		{name: "zero ttl", mutate: func(c *Config) { c.Cache.TTL = 0 }, wantErr: "cache.ttl"},
		{name: "empty docker command", mutate: func(c *Config) { c.Monitor.DockerCommand = " " }, wantErr: "docker_command"},
		{name: "ram over 100", mutate: func(c *Config) { c.Thresholds.HostRAM = 120 }, wantErr: "host_ram"},
		{name: "block io may exceed 100", mutate: func(c *Config) { c.Thresholds.ContainerBlockIOMB = 5000 }},
		{name: "negative block io", mutate: func(c *Config) { c.Thresholds.ContainerBlockIOMB = -1 }, wantErr: "container_block_io_mb"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Alerts.Concurrency = 0 }, wantErr: "concurrency"},
		{name: "bad addr", mutate: func(c *Config) { c.Server.Addr = "5050" }, wantErr: "server.addr"},
		{name: "partial email", mutate: func(c *Config) { c.Notify.Email.Host = "smtp.example.com" }, wantErr: "notify.email"},
		{
			name: "bad email address",
			mutate: func(c *Config) {
				c.Notify.Email.Host = "smtp.example.com"
				c.Notify.Email.From = "vmwatch"
				c.Notify.Email.To = []string{"oncall@example.com"}
			},
			wantErr: "doesn't look like",
		},
		{
			name: "complete email",
			mutate: func(c *Config) {
				c.Notify.Email.Host = "smtp.example.com"
				c.Notify.Email.From = "vmwatch@example.com"
				c.Notify.Email.To = []string{"oncall@example.com"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	assert.Error(t, Validate(nil))
}
