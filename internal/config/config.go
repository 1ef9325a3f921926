// Package config binds the driver configuration from spec section 6
// out of a config file, environment variables, and CLI flags, via
// viper — the same layered-config approach used across the example
// corpus (Silthus-go-selfupdate, gravitational-teleport, kalbasit-ncps).
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the driver configuration recognized per spec section 6.
type Config struct {
	InstallDir     string        `mapstructure:"install_dir"`
	ManifestPath   string        `mapstructure:"manifest_path"`
	ContentHost    string        `mapstructure:"content_host"`
	MirrorsURL     string        `mapstructure:"mirrors_url"`
	Debug          bool          `mapstructure:"debug"`
	WorkerCount    int           `mapstructure:"worker_count"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
	CheckInterval  time.Duration `mapstructure:"check_interval"`
	ForceCheck     bool          `mapstructure:"force_check"`
}

// Defaults per spec sections 5 and 6.
const (
	DefaultContentHost    = "https://cdn.toontownrewritten.com/content"
	DefaultMirrorsURL     = "https://www.toontownrewritten.com/api/mirrors"
	DefaultRequestTimeout = 30 * time.Second
	DefaultRetryCount     = 3
	DefaultRetryInterval  = 10 * time.Second
	DefaultCheckInterval  = 24 * time.Hour
)

// BindFlags registers the patcher's flags on fs and binds them into v,
// so callers get flag > env > file > default layering for free.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String("install-dir", "", "installation directory to patch (required)")
	fs.String("manifest-path", "patchmanifest", "path suffix appended to the content host")
	fs.Bool("debug", false, "enable per-file decision logging")
	fs.Int("worker-count", 0, "parallel worker count (0 = logical CPU count)")
	fs.Duration("request-timeout", DefaultRequestTimeout, "HTTP request timeout")
	fs.Int("retry-count", DefaultRetryCount, "HTTP/verification retry attempts")
	fs.Duration("retry-interval", DefaultRetryInterval, "pause between retries")
	fs.Duration("check-interval", DefaultCheckInterval, "minimum time between manifest checks")
	fs.Bool("force-check", false, "ignore check-interval and check the manifest now")

	_ = v.BindPFlag("install_dir", fs.Lookup("install-dir"))
	_ = v.BindPFlag("manifest_path", fs.Lookup("manifest-path"))
	_ = v.BindPFlag("debug", fs.Lookup("debug"))
	_ = v.BindPFlag("worker_count", fs.Lookup("worker-count"))
	_ = v.BindPFlag("request_timeout", fs.Lookup("request-timeout"))
	_ = v.BindPFlag("retry_count", fs.Lookup("retry-count"))
	_ = v.BindPFlag("retry_interval", fs.Lookup("retry-interval"))
	_ = v.BindPFlag("check_interval", fs.Lookup("check-interval"))
	_ = v.BindPFlag("force_check", fs.Lookup("force-check"))

	v.SetDefault("content_host", DefaultContentHost)
	v.SetDefault("mirrors_url", DefaultMirrorsURL)
	v.SetEnvPrefix("ttrpatch")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load materializes a Config from v after BindFlags and any file/env
// sources have been configured by the caller.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = DefaultRetryCount
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	return cfg, nil
}
