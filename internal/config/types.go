package config

import (
	"time"

	"github.com/rileyhilliard/vmwatch/internal/alerts"
	"github.com/rileyhilliard/vmwatch/internal/notify"
	"github.com/rileyhilliard/vmwatch/internal/registry"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Registry drivers.
const (
	DriverSQLite = "sqlite"
	DriverStatic = "static"
)

// Config represents the complete .vmwatch.yaml configuration file.
type Config struct {
	Version    int                   `yaml:"version" mapstructure:"version"`
	Registry   RegistryConfig        `yaml:"registry" mapstructure:"registry"`
	Hosts      []registry.Credential `yaml:"hosts,omitempty" mapstructure:"hosts"`
	SSH        SSHConfig             `yaml:"ssh" mapstructure:"ssh"`
	Cache      CacheConfig           `yaml:"cache" mapstructure:"cache"`
	Monitor    MonitorConfig         `yaml:"monitor" mapstructure:"monitor"`
	Thresholds alerts.Thresholds     `yaml:"thresholds" mapstructure:"thresholds"`
	Alerts     AlertsConfig          `yaml:"alerts" mapstructure:"alerts"`
	Server     ServerConfig          `yaml:"server" mapstructure:"server"`
	Notify     NotifyConfig          `yaml:"notify" mapstructure:"notify"`
}

// RegistryConfig selects where host credentials live.
type RegistryConfig struct {
	// Driver is "sqlite" (writable store) or "static" (the hosts list below).
	Driver string `yaml:"driver" mapstructure:"driver"`

	// Path is the SQLite database file.
	Path string `yaml:"path" mapstructure:"path"`

	// SealKeyEnv names the environment variable holding the passphrase
	// used to seal stored passwords and keys. Unset means plaintext.
	SealKeyEnv string `yaml:"seal_key_env" mapstructure:"seal_key_env"`
}

// SSHConfig controls dialing and command execution.
type SSHConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`
	KnownHosts     string        `yaml:"known_hosts" mapstructure:"known_hosts"`
	StrictHostKeys bool          `yaml:"strict_host_keys" mapstructure:"strict_host_keys"`

	// ResolveAliases applies ~/.ssh/config Host entries to stored addresses.
	ResolveAliases bool       `yaml:"resolve_aliases" mapstructure:"resolve_aliases"`
	Pool           PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig controls connection reuse.
type PoolConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxSize     int           `yaml:"max_size" mapstructure:"max_size"`
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// CacheConfig controls the host metrics cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`

	// Coalesce merges concurrent misses for the same host into one fetch.
	Coalesce bool `yaml:"coalesce" mapstructure:"coalesce"`
}

// MonitorConfig controls the remote commands.
type MonitorConfig struct {
	// DockerCommand prefixes every docker invocation, e.g. "docker" when the
	// login user is in the docker group.
	DockerCommand string `yaml:"docker_command" mapstructure:"docker_command"`
}

// AlertsConfig controls fleet evaluation.
type AlertsConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`

	// DialRate caps new host evaluations per second. 0 disables pacing.
	DialRate float64 `yaml:"dial_rate" mapstructure:"dial_rate"`
}

// ServerConfig controls `vmw serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// NotifyConfig configures alert delivery.
type NotifyConfig struct {
	Email notify.EmailConfig `yaml:"email" mapstructure:"email"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Registry: RegistryConfig{
			Driver:     DriverSQLite,
			Path:       "~/" + GlobalConfigDir + "/hosts.db",
			SealKeyEnv: "VMW_SEAL_KEY",
		},
		Hosts: []registry.Credential{},
		SSH: SSHConfig{
			ConnectTimeout: 30 * time.Second,
			CommandTimeout: 15 * time.Second,
			KnownHosts:     "~/.ssh/known_hosts",
			StrictHostKeys: true,
			ResolveAliases: true,
			Pool: PoolConfig{
				Enabled:     true,
				MaxSize:     16,
				IdleTimeout: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Monitor: MonitorConfig{
			DockerCommand: "sudo docker",
		},
		Thresholds: alerts.DefaultThresholds(),
		Alerts: AlertsConfig{
			Concurrency: 5,
			DialRate:    10,
		},
		Server: ServerConfig{
			Addr: ":5050",
		},
		Notify: NotifyConfig{
			Email: notify.EmailConfig{
				Port:    587,
				Subject: notify.DefaultSubject,
			},
		},
	}
}
