// Package config loads the dashboard configuration from aira.yaml, AIRA_*
// environment variables and built-in defaults, in increasing order of
// precedence: defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/aira-metrics/dashboard/internal/recovery"
)

// EnvPrefix prefixes every environment override: AIRA_API_BASE_URL sets
// api.base_url.
const EnvPrefix = "AIRA"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	API      APIConfig      `mapstructure:"api"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	DevProxy     bool          `mapstructure:"dev_proxy"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Retries        int           `mapstructure:"retries"`
	SessionsMethod string        `mapstructure:"sessions_method"`
	DetailPaths    []string      `mapstructure:"detail_paths"`
}

type AuthConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	GoogleClientID string        `mapstructure:"google_client_id"`
	SessionSecret  string        `mapstructure:"session_secret"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	AllowedDomains []string      `mapstructure:"allowed_domains"`
	SecureCookie   bool          `mapstructure:"secure_cookie"`
}

// FallbackConfig decides what is shown when the analytics API fails.
type FallbackConfig struct {
	// Sources are tried in order: "cache", "placeholder" (alias "fixtures").
	Sources   []string      `mapstructure:"sources"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dev   bool   `mapstructure:"dev"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", Runtime.DefaultListen)
	v.SetDefault("server.dev_proxy", false)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("api.base_url", "https://aira-metrics.onwavemaker.com")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.retries", 0)
	v.SetDefault("api.sessions_method", "post")
	v.SetDefault("api.detail_paths", []string{"/sessions/{id}", "/session-details/{id}"})

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.google_client_id", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", 12*time.Hour)
	v.SetDefault("auth.allowed_domains", []string{})
	v.SetDefault("auth.secure_cookie", false)

	v.SetDefault("fallback.sources", []string{"cache", "placeholder"})
	v.SetDefault("fallback.cache_ttl", 30*time.Minute)
	v.SetDefault("fallback.cache_size", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev", false)
}

// New returns a viper instance with defaults and environment overrides
// installed. path names an explicit config file; when empty aira.yaml is
// searched for in the runtime's config directories.
func New(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("aira")
		v.SetConfigType("yaml")
		for _, dir := range Runtime.ConfigDirs {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// Load reads the configuration. A missing config file is not an error unless
// path was given explicitly.
func Load(path string) (*Config, *viper.Viper, error) {
	v := New(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// Decode unmarshals and validates the configuration held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.Retries < 0 {
		errs = append(errs, errors.New("api.retries must not be negative"))
	}
	switch strings.ToLower(c.API.SessionsMethod) {
	case "post", "get":
	default:
		errs = append(errs, fmt.Errorf("api.sessions_method must be post or get, got %q", c.API.SessionsMethod))
	}
	for _, p := range c.API.DetailPaths {
		if !strings.Contains(p, "{id}") {
			errs = append(errs, fmt.Errorf("api.detail_paths entry %q lacks {id}", p))
		}
	}
	if c.Auth.Enabled {
		if c.Auth.GoogleClientID == "" {
			errs = append(errs, errors.New("auth.google_client_id is required when auth is enabled"))
		}
		if len(c.Auth.SessionSecret) < 32 {
			errs = append(errs, errors.New("auth.session_secret must be at least 32 bytes when auth is enabled"))
		}
	}
	if c.Fallback.CacheSize <= 0 {
		errs = append(errs, errors.New("fallback.cache_size must be positive"))
	}

	return errors.Join(errs...)
}

// Watch calls onChange with the re-read configuration whenever the config
// file changes. Invalid edits are reported through onError and ignored.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Decode(v)
		if err != nil {
			onError(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		if err := recovery.Call("config reload", func() { onChange(cfg) }); err != nil {
			onError(err)
		}
	})
	v.WatchConfig()
}
