package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/registry"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but vmw only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade vmw to the latest release")
	}

	checks := []struct {
		section string
		err     error
	}{
		{"registry", validateRegistry(cfg.Registry, cfg.Hosts)},
		{"ssh", validateSSH(cfg.SSH)},
		{"cache", validateCache(cfg.Cache)},
		{"monitor", validateMonitor(cfg.Monitor)},
		{"thresholds", validateThresholds(cfg)},
		{"alerts", validateAlerts(cfg.Alerts)},
		{"server", validateServer(cfg.Server)},
		{"notify", validateNotify(cfg.Notify)},
	}
	for _, c := range checks {
		if c.err != nil {
			return errors.WrapWithCode(c.err, errors.ErrConfig, c.err.Error(),
				fmt.Sprintf("Check the '%s' section in your %s.", c.section, ConfigFileName))
		}
	}
	return nil
}

func validateRegistry(reg RegistryConfig, hosts []registry.Credential) error {
	switch reg.Driver {
	case DriverSQLite:
		if reg.Path == "" {
			return fmt.Errorf("registry.path is empty - point it at the SQLite file, or ':memory:'")
		}
	case DriverStatic:
		if len(hosts) == 0 {
			return fmt.Errorf("registry.driver is 'static' but the hosts list is empty")
		}
	default:
		return fmt.Errorf("registry.driver '%s' isn't valid - use 'sqlite' or 'static'", reg.Driver)
	}

	seen := make(map[string]bool, len(hosts))
	for i, h := range hosts {
		h = h.Normalize()
		if err := h.Validate(); err != nil {
			return fmt.Errorf("hosts[%d]: %s", i, errors.Reason(err))
		}
		if seen[h.Label] {
			return fmt.Errorf("hosts has '%s' twice - labels must be unique", h.Label)
		}
		seen[h.Label] = true
	}
	return nil
}

func validateSSH(s SSHConfig) error {
	if s.ConnectTimeout < 0 {
		return fmt.Errorf("ssh.connect_timeout can't be negative")
	}
	if s.CommandTimeout < 0 {
		return fmt.Errorf("ssh.command_timeout can't be negative")
	}
	if s.Pool.Enabled && s.Pool.MaxSize < 1 {
		return fmt.Errorf("ssh.pool.max_size needs to be at least 1 when the pool is enabled (got %d)", s.Pool.MaxSize)
	}
	if s.Pool.IdleTimeout < 0 {
		return fmt.Errorf("ssh.pool.idle_timeout can't be negative")
	}
	return nil
}

func validateCache(c CacheConfig) error {
	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl needs to be positive - try something like '5m'")
	}
	return nil
}

func validateMonitor(m MonitorConfig) error {
	if strings.TrimSpace(m.DockerCommand) == "" {
		return fmt.Errorf("monitor.docker_command is empty - use 'docker' or 'sudo docker'")
	}
	return nil
}

func validateThresholds(cfg *Config) error {
	percents := []struct {
		name  string
		value float64
	}{
		{"host_ram", cfg.Thresholds.HostRAM},
		{"host_disk", cfg.Thresholds.HostDisk},
		{"container_cpu", cfg.Thresholds.ContainerCPU},
		{"container_ram", cfg.Thresholds.ContainerRAM},
	}
	for _, p := range percents {
		if p.value < 0 || p.value > 100 {
			return fmt.Errorf("thresholds.%s needs to be 0-100 (got %g)", p.name, p.value)
		}
	}
	if cfg.Thresholds.ContainerBlockIOMB < 0 {
		return fmt.Errorf("thresholds.container_block_io_mb can't be negative (got %g)", cfg.Thresholds.ContainerBlockIOMB)
	}
	return nil
}

func validateAlerts(a AlertsConfig) error {
	if a.Concurrency < 1 {
		return fmt.Errorf("alerts.concurrency needs to be at least 1 (got %d)", a.Concurrency)
	}
	if a.DialRate < 0 {
		return fmt.Errorf("alerts.dial_rate can't be negative - use 0 to disable pacing")
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		return fmt.Errorf("server.addr '%s' should look like ':5050' or '127.0.0.1:5050'", s.Addr)
	}
	return nil
}

// validateNotify only checks e-mail settings when some are present.
func validateNotify(n NotifyConfig) error {
	e := n.Email
	if e.Host == "" && e.From == "" && len(e.To) == 0 {
		return nil
	}
	if !e.Enabled() {
		return fmt.Errorf("notify.email needs host, from and at least one 'to' address")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("notify.email.port %d is out of range", e.Port)
	}
	for _, addr := range append([]string{e.From}, e.To...) {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("notify.email address '%s' doesn't look like an e-mail address", addr)
		}
	}
	return nil
}
