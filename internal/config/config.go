package config

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config holds client configuration.
type Config struct {
	BaseURL           string
	Token             string
	PollInterval      time.Duration
	PageSize          int
	CacheDBPath       string
	DirectUploadLimit int64
	Debug             bool
}

// fileConfig is the TOML file shape.
type fileConfig struct {
	BaseURL           string `toml:"base_url"`
	Token             string `toml:"token"`
	PollInterval      string `toml:"poll_interval"`
	PageSize          int    `toml:"page_size"`
	CacheDB           string `toml:"cache_db"`
	DirectUploadLimit int64  `toml:"direct_upload_limit"`
}

// DefaultCacheDBPath returns the default cache path using XDG_CACHE_HOME.
func DefaultCacheDBPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "voxa", "jobs.db")
}

// DefaultConfigPath returns the default config file path using
// XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "voxa", "config.toml")
}

// Load builds Config from defaults, the TOML file, flags, and VOXA_*
// environment overrides, in that order. args are the flags after the
// subcommand name.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:           "http://localhost:8000",
		PollInterval:      time.Second,
		PageSize:          10,
		CacheDBPath:       DefaultCacheDBPath(),
		DirectUploadLimit: 32 << 20,
	}

	configPath := os.Getenv("VOXA_CONFIG")
	if configPath == "" {
		configPath = DefaultConfigPath()
	}
	if _, err := os.Stat(configPath); err == nil {
		var fc fileConfig
		if _, err := toml.DecodeFile(configPath, &fc); err != nil {
			return nil, err
		}
		applyFile(cfg, fc)
	}

	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "API base URL")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "Bearer token")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Job status poll interval")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Job list page size")
	fs.StringVar(&cfg.CacheDBPath, "cache-db", cfg.CacheDBPath, "Local job cache path")
	fs.Int64Var(&cfg.DirectUploadLimit, "direct-limit", cfg.DirectUploadLimit, "Max size for direct submission")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.BaseURL != "" {
		cfg.BaseURL = fc.BaseURL
	}
	if fc.Token != "" {
		cfg.Token = fc.Token
	}
	if fc.PollInterval != "" {
		if d, err := time.ParseDuration(fc.PollInterval); err == nil {
			cfg.PollInterval = d
		}
	}
	if fc.PageSize > 0 {
		cfg.PageSize = fc.PageSize
	}
	if fc.CacheDB != "" {
		cfg.CacheDBPath = fc.CacheDB
	}
	if fc.DirectUploadLimit > 0 {
		cfg.DirectUploadLimit = fc.DirectUploadLimit
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VOXA_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("VOXA_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("VOXA_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("VOXA_PAGE_SIZE"); v != "" {
		if n := cast.ToInt(v); n > 0 {
			cfg.PageSize = n
		}
	}
	if v := os.Getenv("VOXA_CACHE_DB"); v != "" {
		cfg.CacheDBPath = v
	}
	if v := os.Getenv("VOXA_DEBUG"); v != "" {
		cfg.Debug = cast.ToBool(v)
	}
}
