// Package config loads the coordinator daemon's configuration: built-in
// defaults, overridden by a TOML file, overridden by environment variables,
// in that order. Grounded on the teacher's own viper usage (its config
// validation in cmd/bd/doctor/config_values.go reads a layered config the
// same way) and its BurntSushi/toml dependency for the file format itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config is the coordinator daemon's full runtime configuration (spec
// §6.3's config surface: storage location, upstream credentials, webhook
// secrets, sync cadence).
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Sync     SyncConfig     `mapstructure:"sync"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Linear   LinearConfig   `mapstructure:"linear"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type StorageConfig struct {
	DatabasePath string        `mapstructure:"database_path"`
	BusyTimeout  time.Duration `mapstructure:"busy_timeout"`
}

type SyncConfig struct {
	FilesRoot       string        `mapstructure:"files_root"`
	FilePattern     string        `mapstructure:"file_pattern"`
	WatchDebounce   time.Duration `mapstructure:"watch_debounce"`
	WatchStability  time.Duration `mapstructure:"watch_stability"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

type GitHubConfig struct {
	AppID          int64  `mapstructure:"app_id"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	Owner          string `mapstructure:"owner"`
	Repo           string `mapstructure:"repo"`
}

type LinearConfig struct {
	APIKey    string `mapstructure:"api_key"`
	TeamID    string `mapstructure:"team_id"`
	Endpoint  string `mapstructure:"endpoint"`
}

type WebhookConfig struct {
	GitHubSecret string `mapstructure:"github_secret"`
	LinearSecret string `mapstructure:"linear_secret"`
	ReplayWindow time.Duration `mapstructure:"replay_window"`
}

type HTTPConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Defaults is the built-in configuration that Load layers the TOML file and
// the environment over (spec §6.3).
func Defaults() Config {
	return Config{
		Storage: StorageConfig{
			DatabasePath: ".coordinator/state.db",
			BusyTimeout:  30 * time.Second,
		},
		Sync: SyncConfig{
			FilesRoot:       ".todo",
			FilePattern:     "[id]-[title].md",
			WatchDebounce:   500 * time.Millisecond,
			WatchStability:  100 * time.Millisecond,
			PollInterval:    5 * time.Minute,
			MaxRetryBackoff: 2 * time.Minute,
		},
		Webhook: WebhookConfig{
			ReplayWindow: 60 * time.Second,
		},
		HTTP: HTTPConfig{
			ListenAddr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configPath (a TOML file; may not exist, in which case only
// defaults and environment apply) and env vars prefixed COORDINATOR_,
// layered over Defaults().
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("COORDINATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// bindDefaults seeds viper with cfg's zero/default values so environment
// variables and the TOML file only need to override what they care about.
func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("storage.database_path", cfg.Storage.DatabasePath)
	v.SetDefault("storage.busy_timeout", cfg.Storage.BusyTimeout)
	v.SetDefault("sync.files_root", cfg.Sync.FilesRoot)
	v.SetDefault("sync.file_pattern", cfg.Sync.FilePattern)
	v.SetDefault("sync.watch_debounce", cfg.Sync.WatchDebounce)
	v.SetDefault("sync.watch_stability", cfg.Sync.WatchStability)
	v.SetDefault("sync.poll_interval", cfg.Sync.PollInterval)
	v.SetDefault("sync.max_retry_backoff", cfg.Sync.MaxRetryBackoff)
	v.SetDefault("webhook.replay_window", cfg.Webhook.ReplayWindow)
	v.SetDefault("http.listen_addr", cfg.HTTP.ListenAddr)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

// WriteDefaultFile writes Defaults() to path as a starter TOML config
// (spec §6.3).
func WriteDefaultFile(path string) error {
	cfg := Defaults()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return nil
}
