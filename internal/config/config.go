// Package config resolves runtime settings from flags, SPECLOCK_*
// environment variables and the optional .speclock/config.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// EnvPrefix namespaces environment variables (SPECLOCK_LOG_LEVEL, ...).
const EnvPrefix = "SPECLOCK"

// FileName is the optional config file inside the state directory.
const FileName = "config.yaml"

// Keys shared between flag binding and Load.
const (
	KeyProjectRoot         = "project_root"
	KeyLogLevel            = "log_level"
	KeyVCSTimeout          = "vcs.timeout"
	KeyPollInterval        = "watch.poll_interval"
	KeyDebounce            = "watch.debounce"
	KeyWatchIgnore         = "watch.ignore"
	KeyRevertsRequireLocks = "drift.reverts_require_locks"
	KeyIndexEnabled        = "index.enabled"
	KeyContextHTML         = "context.html"
	KeyProviderName        = "provider.name"
	KeyProviderModel       = "provider.model"
	KeyProviderMaxTokens   = "provider.max_tokens"
	KeyProviderAPIKey      = "provider.api_key"
	KeyProviderBaseURL     = "provider.base_url"
	KeyHTTPAddr            = "http.addr"
)

// Config holds all runtime configuration.
type Config struct {
	ProjectRoot string
	LogLevel    zerolog.Level

	VCSTimeout time.Duration

	PollInterval time.Duration
	Debounce     time.Duration
	WatchIgnore  []string

	RevertsRequireLocks bool
	IndexEnabled        bool
	ContextHTML         bool

	Provider Provider

	HTTPAddr string
}

// Provider selects and configures the LLM backend used by `ask`.
type Provider struct {
	Name      string
	Model     string
	MaxTokens int
	APIKey    string
	BaseURL   string
}

// New returns a viper instance with defaults and environment binding in
// place. Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyProjectRoot, ".")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyVCSTimeout, 10*time.Second)
	v.SetDefault(KeyPollInterval, 5*time.Second)
	v.SetDefault(KeyDebounce, 2*time.Second)
	v.SetDefault(KeyWatchIgnore, []string{})
	v.SetDefault(KeyRevertsRequireLocks, false)
	v.SetDefault(KeyIndexEnabled, true)
	v.SetDefault(KeyContextHTML, false)
	v.SetDefault(KeyProviderName, "anthropic")
	v.SetDefault(KeyProviderModel, "")
	v.SetDefault(KeyProviderMaxTokens, 1024)
	v.SetDefault(KeyProviderAPIKey, "")
	v.SetDefault(KeyProviderBaseURL, "")
	v.SetDefault(KeyHTTPAddr, ":8787")

	// SPECLOCK_WATCH_POLL_INTERVAL -> watch.poll_interval
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load merges the project's config file (if any) into v and returns the
// resolved configuration.
func Load(v *viper.Viper) (Config, error) {
	root, err := filepath.Abs(v.GetString(KeyProjectRoot))
	if err != nil {
		return Config{}, fmt.Errorf("resolving project root: %w", err)
	}

	path := filepath.Join(brain.StatePath(root), FileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", FileName, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("checking %s: %w", FileName, err)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(v.GetString(KeyLogLevel)))
	if err != nil {
		return Config{}, fmt.Errorf("invalid log level %q: %w", v.GetString(KeyLogLevel), err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	cfg := Config{
		ProjectRoot:         root,
		LogLevel:            level,
		VCSTimeout:          v.GetDuration(KeyVCSTimeout),
		PollInterval:        v.GetDuration(KeyPollInterval),
		Debounce:            v.GetDuration(KeyDebounce),
		WatchIgnore:         v.GetStringSlice(KeyWatchIgnore),
		RevertsRequireLocks: v.GetBool(KeyRevertsRequireLocks),
		IndexEnabled:        v.GetBool(KeyIndexEnabled),
		ContextHTML:         v.GetBool(KeyContextHTML),
		Provider: Provider{
			Name:      strings.ToLower(v.GetString(KeyProviderName)),
			Model:     v.GetString(KeyProviderModel),
			MaxTokens: v.GetInt(KeyProviderMaxTokens),
			APIKey:    v.GetString(KeyProviderAPIKey),
			BaseURL:   v.GetString(KeyProviderBaseURL),
		},
		HTTPAddr: v.GetString(KeyHTTPAddr),
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", KeyPollInterval)
	}
	if cfg.Debounce <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", KeyDebounce)
	}
	return cfg, nil
}
