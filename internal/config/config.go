package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/user/proxyswitch/internal/bypass"
	"github.com/user/proxyswitch/internal/probe"
	"github.com/user/proxyswitch/internal/target"
)

// Config represents the application configuration
type Config struct {
	Proxy                 ProxyConfig   `yaml:"proxy" mapstructure:"proxy"`
	Bypass                []string      `yaml:"bypass" mapstructure:"bypass"`
	ShellProfiles         []string      `yaml:"shell_profiles,omitempty" mapstructure:"shell_profiles"`
	ProxyChains           []string      `yaml:"proxychains,omitempty" mapstructure:"proxychains"`
	Probe                 ProbeConfig   `yaml:"probe" mapstructure:"probe"`
	CommandTimeoutSeconds int           `yaml:"command_timeout_seconds" mapstructure:"command_timeout_seconds"`
	StateFile             string        `yaml:"state_file" mapstructure:"state_file"`
	Logging               LoggingConfig `yaml:"logging" mapstructure:"logging"`
	API                   APIConfig     `yaml:"api" mapstructure:"api"`
}

// ProxyConfig is the last used (or preset) proxy target
type ProxyConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	Kind string `yaml:"kind" mapstructure:"kind"`
}

// ProbeConfig tunes the connectivity test
type ProbeConfig struct {
	EchoURL              string `yaml:"echo_url" mapstructure:"echo_url"`
	SocketTimeoutSeconds int    `yaml:"socket_timeout_seconds" mapstructure:"socket_timeout_seconds"`
	HTTPTimeoutSeconds   int    `yaml:"http_timeout_seconds" mapstructure:"http_timeout_seconds"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Dir       string `yaml:"dir" mapstructure:"dir"`
	File      string `yaml:"file" mapstructure:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	Console   bool   `yaml:"console" mapstructure:"console"`
}

// APIConfig configures the local control API
type APIConfig struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// EnvPrefix prefixes every environment override, e.g. PROXYSWITCH_PROXY_KIND.
const EnvPrefix = "PROXYSWITCH"

// Default returns the built-in configuration rooted at home.
func Default(home string) Config {
	dir := filepath.Join(home, ".proxyswitch")
	return Config{
		Proxy:  ProxyConfig{Kind: string(target.HTTPHTTPS)},
		Bypass: append([]string(nil), bypass.Defaults...),
		Probe: ProbeConfig{
			EchoURL:              probe.DefaultEchoURL,
			SocketTimeoutSeconds: int(probe.DefaultSocketTimeout / time.Second),
			HTTPTimeoutSeconds:   int(probe.DefaultHTTPTimeout / time.Second),
		},
		CommandTimeoutSeconds: 5,
		StateFile:             filepath.Join(dir, "state.yaml"),
		Logging: LoggingConfig{
			Level:     "info",
			Dir:       filepath.Join(dir, "logs"),
			File:      "proxyswitch.log",
			MaxSizeMB: 10,
			Console:   true,
		},
		API: APIConfig{Listen: "127.0.0.1:7890"},
	}
}

// Manager handles configuration loading and access
type Manager struct {
	config     *Config
	configPath string
	home       string
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	home, _ := os.UserHomeDir()
	return &Manager{
		configPath: configPath,
		home:       home,
	}
}

// Path returns the file the manager reads and writes.
func (m *Manager) Path() string { return m.configPath }

// Load reads the configuration file and applies environment overrides. A
// missing file is not an error; defaults and the environment still apply.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := viper.New()
	def := Default(m.home)
	v.SetDefault("proxy.host", def.Proxy.Host)
	v.SetDefault("proxy.port", def.Proxy.Port)
	v.SetDefault("proxy.kind", def.Proxy.Kind)
	v.SetDefault("bypass", def.Bypass)
	v.SetDefault("probe.echo_url", def.Probe.EchoURL)
	v.SetDefault("probe.socket_timeout_seconds", def.Probe.SocketTimeoutSeconds)
	v.SetDefault("probe.http_timeout_seconds", def.Probe.HTTPTimeoutSeconds)
	v.SetDefault("command_timeout_seconds", def.CommandTimeoutSeconds)
	v.SetDefault("state_file", def.StateFile)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.dir", def.Logging.Dir)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("logging.max_size_mb", def.Logging.MaxSizeMB)
	v.SetDefault("logging.console", def.Logging.Console)
	v.SetDefault("api.listen", def.API.Listen)

	v.SetConfigFile(m.configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The variables the desktop tool has always honoured.
	if err := v.BindEnv("proxy.host", EnvPrefix+"_PROXY_HOST", "PROXY_IP"); err != nil {
		return fmt.Errorf("failed to bind proxy.host: %w", err)
	}
	if err := v.BindEnv("proxy.port", EnvPrefix+"_PROXY_PORT", "PROXY_PORT"); err != nil {
		return fmt.Errorf("failed to bind proxy.port: %w", err)
	}

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	m.normalize(&cfg)

	m.config = &cfg
	return nil
}

func (m *Manager) normalize(cfg *Config) {
	if cfg.CommandTimeoutSeconds < 1 {
		cfg.CommandTimeoutSeconds = 1
	}
	if cfg.CommandTimeoutSeconds > 5 {
		cfg.CommandTimeoutSeconds = 5
	}
	if cfg.Probe.SocketTimeoutSeconds <= 0 {
		cfg.Probe.SocketTimeoutSeconds = int(probe.DefaultSocketTimeout / time.Second)
	}
	if cfg.Probe.HTTPTimeoutSeconds <= 0 {
		cfg.Probe.HTTPTimeoutSeconds = int(probe.DefaultHTTPTimeout / time.Second)
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 10
	}
	if len(cfg.ShellProfiles) == 0 {
		cfg.ShellProfiles = nil
	}
	if len(cfg.ProxyChains) == 0 {
		cfg.ProxyChains = nil
	}
	cfg.StateFile = expandTilde(cfg.StateFile, m.home)
	cfg.Logging.Dir = expandTilde(cfg.Logging.Dir, m.home)
	for i, p := range cfg.ShellProfiles {
		cfg.ShellProfiles[i] = expandTilde(p, m.home)
	}
	for i, p := range cfg.ProxyChains {
		cfg.ProxyChains[i] = expandTilde(p, m.home)
	}
}

// Get returns the current configuration (thread-safe)
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Target returns the configured proxy target. ok is false when no host is
// configured; err is set when one is configured but invalid.
func (c *Config) Target() (t target.ProxyTarget, ok bool, err error) {
	if strings.TrimSpace(c.Proxy.Host) == "" {
		return target.ProxyTarget{}, false, nil
	}
	t, err = target.Spec{Host: c.Proxy.Host, Port: c.Proxy.Port, Kind: target.Kind(c.Proxy.Kind)}.Target()
	if err != nil {
		return target.ProxyTarget{}, false, err
	}
	return t, true, nil
}

// BypassList builds the bypass list from the configured patterns.
func (c *Config) BypassList() bypass.List {
	return bypass.New(c.Bypass)
}

// CommandTimeout bounds every configuration command.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// LogPath is the full path of the log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Logging.Dir, c.Logging.File)
}

// SetLastTarget records t in the config file so the next connect can omit it.
// Only the file content is rewritten; environment overrides are not persisted.
func (m *Manager) SetLastTarget(t target.ProxyTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fileCfg := Default(m.home)
	data, err := os.ReadFile(m.configPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	spec := t.Spec()
	fileCfg.Proxy = ProxyConfig{Host: spec.Host, Port: spec.Port, Kind: string(spec.Kind)}
	if m.config != nil {
		m.config.Proxy = fileCfg.Proxy
	}
	return save(m.configPath, &fileCfg)
}

// save writes cfg to path
func save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	// First check for config in current directory
	if _, err := os.Stat("configs/config.yaml"); err == nil {
		return "configs/config.yaml"
	}

	// Then check executable directory
	exe, err := os.Executable()
	if err == nil {
		configPath := filepath.Join(filepath.Dir(exe), "configs", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	// Fall back to the home directory, whether or not it exists yet
	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".proxyswitch", "config.yaml")
	}
	return "configs/config.yaml"
}

// EnsureConfigExists creates default config if it doesn't exist
func EnsureConfigExists(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return nil // Already exists
	}
	home, _ := os.UserHomeDir()
	cfg := Default(home)
	return save(configPath, &cfg)
}

func expandTilde(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
