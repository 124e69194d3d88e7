package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/registry"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".vmwatch.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/vmwatch"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides: VMW_CACHE_TTL=1m.
	EnvPrefix = "VMW"
)

// LoadEnvFiles loads .env from the current directory, then from the
// global config directory. Variables already set in the environment win.
// Missing files are ignored.
func LoadEnvFiles() error {
	var paths []string
	if _, err := os.Stat(".env"); err == nil {
		paths = append(paths, ".env")
	}
	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, GlobalConfigDir, ".env")
		if _, err := os.Stat(global); err == nil {
			paths = append(paths, global)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read .env file",
			"Check the KEY=value syntax in "+strings.Join(paths, ", "))
	}
	return nil
}

// Load reads config from the specified path. Environment variables with
// the VMW_ prefix override file values.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'vmw init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .vmwatch.yaml in current directory
// 3. .vmwatch.yaml in parent directories (stops at git root or home)
// 4. ~/.config/vmwatch/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if home != "" && parent == home {
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		// Stop at git root
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
	}

	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the found path, or returns defaults
// (with environment overrides applied) if there is none.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "environment")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, source string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+source)
	}

	cfg.Registry.Path = ExpandTilde(Expand(cfg.Registry.Path))
	cfg.SSH.KnownHosts = ExpandTilde(Expand(cfg.SSH.KnownHosts))
	if cfg.Hosts == nil {
		cfg.Hosts = []registry.Credential{}
	}

	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("version", d.Version)
	v.SetDefault("registry.driver", d.Registry.Driver)
	v.SetDefault("registry.path", d.Registry.Path)
	v.SetDefault("registry.seal_key_env", d.Registry.SealKeyEnv)

	v.SetDefault("ssh.connect_timeout", d.SSH.ConnectTimeout)
	v.SetDefault("ssh.command_timeout", d.SSH.CommandTimeout)
	v.SetDefault("ssh.known_hosts", d.SSH.KnownHosts)
	v.SetDefault("ssh.strict_host_keys", d.SSH.StrictHostKeys)
	v.SetDefault("ssh.resolve_aliases", d.SSH.ResolveAliases)
	v.SetDefault("ssh.pool.enabled", d.SSH.Pool.Enabled)
	v.SetDefault("ssh.pool.max_size", d.SSH.Pool.MaxSize)
	v.SetDefault("ssh.pool.idle_timeout", d.SSH.Pool.IdleTimeout)

	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.coalesce", d.Cache.Coalesce)
	v.SetDefault("monitor.docker_command", d.Monitor.DockerCommand)

	v.SetDefault("thresholds.host_ram", d.Thresholds.HostRAM)
	v.SetDefault("thresholds.host_disk", d.Thresholds.HostDisk)
	v.SetDefault("thresholds.container_cpu", d.Thresholds.ContainerCPU)
	v.SetDefault("thresholds.container_ram", d.Thresholds.ContainerRAM)
	v.SetDefault("thresholds.container_block_io_mb", d.Thresholds.ContainerBlockIOMB)

	v.SetDefault("alerts.concurrency", d.Alerts.Concurrency)
	v.SetDefault("alerts.dial_rate", d.Alerts.DialRate)
	v.SetDefault("server.addr", d.Server.Addr)

	v.SetDefault("notify.email.host", "")
	v.SetDefault("notify.email.port", d.Notify.Email.Port)
	v.SetDefault("notify.email.username", "")
	v.SetDefault("notify.email.password", "")
	v.SetDefault("notify.email.from", "")
	v.SetDefault("notify.email.to", []string{})
	v.SetDefault("notify.email.subject", d.Notify.Email.Subject)
	v.SetDefault("notify.email.insecure_skip_verify", false)
}
