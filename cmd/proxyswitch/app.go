package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/user/proxyswitch/internal/command"
	"github.com/user/proxyswitch/internal/config"
	"github.com/user/proxyswitch/internal/logger"
	"github.com/user/proxyswitch/internal/manager"
	"github.com/user/proxyswitch/internal/probe"
	"github.com/user/proxyswitch/internal/state"
	"github.com/user/proxyswitch/internal/target"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfgManager *config.Manager
	cfg        *config.Config
	log        *logger.Logger
	runner     command.Runner
	mgr        *manager.Manager
}

// loadConfig resolves the config path, creating a default file on first use.
func loadConfig() (*config.Manager, error) {
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	if err := config.EnsureConfigExists(configPath); err != nil {
		return nil, fmt.Errorf("failed to ensure config exists: %w", err)
	}
	cfgManager := config.NewManager(configPath)
	if err := cfgManager.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfgManager, nil
}

// newApp loads config, starts logging and assembles the manager. Progress
// lines go to stdout as they are written.
func newApp() (*app, error) {
	cfgManager, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg := cfgManager.Get()

	a := &app{cfgManager: cfgManager, cfg: cfg, runner: command.Exec{}}

	fileLogger, err := logger.New(logger.Config{
		LogDir:    cfg.Logging.Dir,
		LogFile:   cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		ToConsole: cfg.Logging.Console,
		Level:     cfg.Logging.Level,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logger: %v\n", err)
	} else {
		a.log = fileLogger
		if err := fileLogger.RotateIfNeeded(cfg.Logging.MaxSizeMB); err != nil {
			slog.Warn("log rotation failed", "error", err)
		}
	}

	home, _ := os.UserHomeDir()
	bp := cfg.BypassList()
	adapters := manager.AdaptersFor(runtime.GOOS, manager.Deps{
		Runner:         a.runner,
		Bypass:         bp,
		CommandTimeout: cfg.CommandTimeout(),
		Home:           home,
		ShellProfiles:  cfg.ShellProfiles,
		ProxyChains:    cfg.ProxyChains,
	})
	router := manager.NewRouter(adapters, manager.RouterOptions{
		Mandatory: manager.Mandatory,
		Store:     state.NewStore(cfg.StateFile),
	})

	verifier := probe.New(bp)
	verifier.SocketTimeout = secondsOr(cfg.Probe.SocketTimeoutSeconds, probe.DefaultSocketTimeout)
	verifier.HTTPTimeout = secondsOr(cfg.Probe.HTTPTimeoutSeconds, probe.DefaultHTTPTimeout)
	verifier.EchoURL = cfg.Probe.EchoURL

	a.mgr = manager.New(router, verifier, manager.Options{
		Sink: func(line string) { fmt.Println(line) },
	})
	return a, nil
}

func (a *app) Close() {
	if a.log != nil {
		a.log.Close()
	}
}

// resolveTarget picks the target from args, else the active connection (when
// preferActive), else the config file.
func (a *app) resolveTarget(args []string, kind string, preferActive bool) (target.ProxyTarget, error) {
	switch len(args) {
	case 2:
		return target.Parse(args[0], args[1], kind)
	case 1:
		return target.Parse(args[0], fmt.Sprint(a.cfg.Proxy.Port), kind)
	}
	if preferActive {
		if t, ok := a.mgr.Status().ProxyTarget(); ok {
			return t, nil
		}
	}
	t, ok, err := a.cfg.Target()
	if err != nil {
		return target.ProxyTarget{}, err
	}
	if !ok {
		return target.ProxyTarget{}, fmt.Errorf("no proxy given: pass HOST PORT, set proxy.host in %s or export PROXY_IP/PROXY_PORT", a.cfgManager.Path())
	}
	if kind != "" {
		k, err := target.ParseKind(kind)
		if err != nil {
			return target.ProxyTarget{}, err
		}
		return target.New(t.Host(), t.Port(), k)
	}
	return t, nil
}
