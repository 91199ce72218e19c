package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/yourusername/immich-dedup/pkg/dedup"
	"github.com/yourusername/immich-dedup/pkg/immich"
)

// EnvPrefix is prepended to every key when reading the environment, e.g. IMMICH_API_KEY.
const EnvPrefix = "IMMICH"

// Config holds all application configuration
type Config struct {
	// Immich connection
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Duplicate resolution
	ExternalLibraryPrefix string `mapstructure:"external_library_prefix"`
	UploadPrefix          string `mapstructure:"upload_prefix"`
	PageSize              int    `mapstructure:"page_size"`
	ForceDelete           bool   `mapstructure:"force_delete"`
	DeleteBatchSize       int    `mapstructure:"delete_batch_size"`
	TieBreak              string `mapstructure:"tie_break"` // "id", "input", "strict"
	JournalPath           string `mapstructure:"journal_path"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	// Server settings
	ListenAddr string `mapstructure:"listen_addr"`

	// Authentication
	AuthMode string       `mapstructure:"auth_mode"` // "none", "api_key", "oauth", "both"
	APIKeys  []string     `mapstructure:"api_keys"`
	OAuth    *OAuthConfig `mapstructure:"oauth"`

	// Cache settings
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// Rate limiting
	RateLimitPerSecond int `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int `mapstructure:"rate_limit_burst"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Photo frame
	FrameWidth  int `mapstructure:"frame_width"`
	FrameHeight int `mapstructure:"frame_height"`

	// Scheduled sweep, disabled while SweepCron is empty
	SweepCron        string `mapstructure:"sweep_cron"` // standard 5-field cron expression
	SweepDelete      bool   `mapstructure:"sweep_delete"`
	SweepCheckManual bool   `mapstructure:"sweep_check_manual"`

	// SweepTimeout bounds one scheduled run; zero leaves it unbounded
	SweepTimeout time.Duration `mapstructure:"sweep_timeout"`
}

// OAuthConfig holds OAuth configuration
type OAuthConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	UserInfoURL  string   `mapstructure:"userinfo_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"url":       "url",
	"api-key":   "api_key",
	"tie-break": "tie_break",
	"journal":   "journal_path",
	"listen":    "listen_addr",
	"log-level": "log_level",
	"log-json":  "log_json",
}

// Load loads configuration from file, environment and flags, in increasing
// order of precedence. flags may be nil; only flags named in flagKeys are bound.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDerivedDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Required keys still need a default so AutomaticEnv can see them
	v.SetDefault("url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("timeout", 30*time.Second)

	v.SetDefault("external_library_prefix", "/volume1/photo/Photos")
	v.SetDefault("upload_prefix", "/usr/src/app/upload/upload/")
	v.SetDefault("page_size", immich.MaxPageSize)
	v.SetDefault("force_delete", true)
	v.SetDefault("delete_batch_size", 0)
	v.SetDefault("tie_break", "id")
	v.SetDefault("journal_path", "~/.immich-dedup/journal.db")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("auth_mode", "none")
	v.SetDefault("api_keys", []string{})
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("rate_limit_per_second", 100)
	v.SetDefault("rate_limit_burst", 200)
	v.SetDefault("request_timeout", 30*time.Second)

	v.SetDefault("frame_width", 600)
	v.SetDefault("frame_height", 448)

	v.SetDefault("sweep_cron", "")
	v.SetDefault("sweep_delete", false)
	v.SetDefault("sweep_check_manual", false)
	v.SetDefault("sweep_timeout", 30*time.Minute)
}

// applyDerivedDefaults restores defaults that were explicitly set to zero values.
func applyDerivedDefaults(cfg *Config) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = immich.MaxPageSize
	}

	if cfg.TieBreak == "" {
		cfg.TieBreak = "id"
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	if cfg.AuthMode == "" {
		cfg.AuthMode = "none"
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = 100
	}

	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 200
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}

	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}

	// An empty prefix would classify nothing and silently plan no deletions
	if c.ExternalLibraryPrefix == "" {
		return fmt.Errorf("external_library_prefix is required")
	}
	if c.UploadPrefix == "" {
		return fmt.Errorf("upload_prefix is required")
	}

	if c.PageSize > immich.MaxPageSize {
		return fmt.Errorf("page_size must be at most %d, got %d", immich.MaxPageSize, c.PageSize)
	}

	if c.DeleteBatchSize < 0 {
		return fmt.Errorf("delete_batch_size must not be negative, got %d", c.DeleteBatchSize)
	}

	if _, err := dedup.ParseTieBreak(c.TieBreak); err != nil {
		return fmt.Errorf("invalid tie_break: %w", err)
	}

	validAuthModes := map[string]bool{
		"none":    true,
		"api_key": true,
		"oauth":   true,
		"both":    true,
	}
	if !validAuthModes[c.AuthMode] {
		return fmt.Errorf("invalid auth_mode: %s", c.AuthMode)
	}

	if (c.AuthMode == "api_key" || c.AuthMode == "both") && len(c.APIKeys) == 0 {
		return fmt.Errorf("api_keys required when auth_mode is %s", c.AuthMode)
	}

	if (c.AuthMode == "oauth" || c.AuthMode == "both") && c.OAuth == nil {
		return fmt.Errorf("oauth configuration required when auth_mode is %s", c.AuthMode)
	}

	if c.OAuth != nil && (c.AuthMode == "oauth" || c.AuthMode == "both") && c.OAuth.UserInfoURL == "" {
		return fmt.Errorf("oauth.userinfo_url required when auth_mode is %s", c.AuthMode)
	}

	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame_width and frame_height must be positive, got %dx%d", c.FrameWidth, c.FrameHeight)
	}

	if c.SweepCron != "" {
		if _, err := cron.ParseStandard(c.SweepCron); err != nil {
			return fmt.Errorf("invalid sweep_cron %q: %w", c.SweepCron, err)
		}
	}

	if c.SweepTimeout < 0 {
		return fmt.Errorf("sweep_timeout must not be negative, got %s", c.SweepTimeout)
	}

	return nil
}

// FinderSettings builds the dedup runner settings. Call after Validate.
func (c *Config) FinderSettings() dedup.Settings {
	tieBreak, _ := dedup.ParseTieBreak(c.TieBreak)

	return dedup.Settings{
		Classifier: dedup.Classifier{
			ExternalLibraryPrefix: c.ExternalLibraryPrefix,
			UploadPrefix:          c.UploadPrefix,
		},
		TieBreak:  tieBreak,
		PageSize:  c.PageSize,
		Force:     c.ForceDelete,
		BatchSize: c.DeleteBatchSize,
	}
}
