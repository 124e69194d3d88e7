package cli

import (
	"fmt"

	"github.com/rileyhilliard/vmwatch/internal/alerts"
	"github.com/rileyhilliard/vmwatch/internal/cache"
	"github.com/rileyhilliard/vmwatch/internal/config"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/logger"
	"github.com/rileyhilliard/vmwatch/internal/monitor"
	"github.com/rileyhilliard/vmwatch/internal/notify"
	"github.com/rileyhilliard/vmwatch/internal/registry"
	"github.com/rileyhilliard/vmwatch/internal/remote"
)

// app is the object graph every command works against.
type app struct {
	cfg     *config.Config
	path    string
	reg     registry.Registry
	store   registry.Store // nil for the static driver
	monitor *monitor.Monitor
	engine  *alerts.Engine
	sink    notify.Sink
	closers []func()
}

// newRunner builds the SSH runner. Tests replace it with a scripted fake.
var newRunner = func(cfg *config.Config) (remote.Runner, func()) {
	rc := remote.Config{
		ConnectTimeout: cfg.SSH.ConnectTimeout,
		CommandTimeout: cfg.SSH.CommandTimeout,
		KnownHostsPath: cfg.SSH.KnownHosts,
		StrictHostKeys: cfg.SSH.StrictHostKeys,
		ResolveAliases: cfg.SSH.ResolveAliases,
	}
	if !cfg.SSH.Pool.Enabled {
		return remote.NewSSHRunner(rc), func() {}
	}
	pool := remote.NewPool(cfg.SSH.Pool.MaxSize, cfg.SSH.Pool.IdleTimeout)
	return remote.NewSSHRunner(rc, remote.WithPool(pool)), pool.Close
}

// loadConfig finds, loads and validates the config. With no file on disk
// the defaults apply.
func loadConfig(g *globals) (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	logger.Default().Debug("config loaded from %q: %s", path, config.Summary(cfg))
	return cfg, path, nil
}

// openRegistry opens the host registry the config selects.
func openRegistry(cfg *config.Config) (registry.Registry, registry.Store, error) {
	switch cfg.Registry.Driver {
	case config.DriverStatic:
		reg, err := registry.NewStatic(cfg.Hosts)
		if err != nil {
			return nil, nil, err
		}
		return reg, nil, nil
	case config.DriverSQLite, "":
		store, err := registry.OpenSQLite(cfg.Registry.Path, registry.SealerFromEnv(cfg.Registry.SealKeyEnv))
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown registry driver '%s'", cfg.Registry.Driver),
			"Set registry.driver to sqlite or static")
	}
}

// buildSink picks the alert delivery channel: e-mail with retries when
// SMTP is configured, the log otherwise.
func buildSink(cfg *config.Config) (notify.Sink, error) {
	if !cfg.Notify.Email.Enabled() {
		return notify.LogSink{Log: logger.NewEnvLogger("[notify]")}, nil
	}
	email, err := notify.NewEmailSink(cfg.Notify.Email)
	if err != nil {
		return nil, err
	}
	return notify.WithRetry(email, logger.NewEnvLogger("[notify]")), nil
}

// openApp wires the registry, runner, cache, monitor, engine and sink.
// Callers must Close the result.
func openApp(g *globals) (*app, error) {
	cfg, path, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	reg, store, err := openRegistry(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, path: path, reg: reg, store: store}
	if store != nil {
		a.closers = append(a.closers, func() { _ = store.Close() })
	}

	runner, closeRunner := newRunner(cfg)
	a.closers = append(a.closers, closeRunner)

	var cacheOpts []cache.Option
	if cfg.Cache.Coalesce {
		cacheOpts = append(cacheOpts, cache.WithCoalescing())
	}
	a.monitor = monitor.New(reg, runner, cache.New(cfg.Cache.TTL, cacheOpts...),
		monitor.WithDockerCommand(cfg.Monitor.DockerCommand))
	a.engine = alerts.NewEngine(a.monitor, reg,
		alerts.WithConcurrency(cfg.Alerts.Concurrency),
		alerts.WithDialRate(cfg.Alerts.DialRate))

	a.sink, err = buildSink(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases pooled connections and the registry, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// writableStore returns the SQLite store, or an error explaining that the
// static driver is edited through the config file.
func (a *app) writableStore() (registry.Store, error) {
	if a.store == nil {
		return nil, errors.New(errors.ErrRegistry,
			"The static registry is read-only",
			"Edit the hosts list in your .vmwatch.yaml, or switch registry.driver to sqlite")
	}
	return a.store, nil
}
