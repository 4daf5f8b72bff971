// Package config holds the typed configuration shared by the server and the
// console, loaded through viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config is the full mosdash configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Client ClientConfig `mapstructure:"client"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig configures `mosdash serve`.
type ServerConfig struct {
	Dir           string        `mapstructure:"dir"`            // config directory
	RuleDir       string        `mapstructure:"rule_dir"`       // relative to Dir
	ConfigPattern string        `mapstructure:"config_pattern"` // glob for config files
	RulePattern   string        `mapstructure:"rule_pattern"`   // glob for rule files
	Port          int           `mapstructure:"port"`
	LogFile       string        `mapstructure:"log_file"` // relative to Dir unless absolute
	StrictLog     bool          `mapstructure:"strict_log"`
	Stream        bool          `mapstructure:"stream"` // tail the log file for /log/stream
	Systemctl     string        `mapstructure:"systemctl"`
	Unit          string        `mapstructure:"unit"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
	ActionRate    float64       `mapstructure:"action_rate"` // per second, 0 = unlimited
	ActionBurst   int           `mapstructure:"action_burst"`
}

// ClientConfig configures the console and the one-shot commands.
type ClientConfig struct {
	URL          string        `mapstructure:"url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Refresh      time.Duration `mapstructure:"refresh"` // periodic log refresh, 0 = manual only
	PageSize     int           `mapstructure:"page_size"`
	LegacyOffset bool          `mapstructure:"legacy_offset"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.dir", ".")
	v.SetDefault("server.rule_dir", "rule")
	v.SetDefault("server.config_pattern", "*.yaml")
	v.SetDefault("server.rule_pattern", "*")
	v.SetDefault("server.port", 1323)
	v.SetDefault("server.log_file", "mosdns.log")
	v.SetDefault("server.strict_log", true)
	v.SetDefault("server.stream", true)
	v.SetDefault("server.systemctl", "systemctl")
	v.SetDefault("server.unit", "mosdns")
	v.SetDefault("server.action_timeout", 30*time.Second)
	v.SetDefault("server.action_rate", 1.0)
	v.SetDefault("server.action_burst", 3)

	v.SetDefault("client.url", "http://localhost:1323")
	v.SetDefault("client.timeout", 10*time.Second)
	v.SetDefault("client.refresh", time.Duration(0))
	v.SetDefault("client.page_size", 10)
	v.SetDefault("client.legacy_offset", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Dir == "" {
		errs = append(errs, errors.New("server.dir must not be empty"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.ActionRate < 0 {
		errs = append(errs, fmt.Errorf("server.action_rate must not be negative"))
	}
	if u, err := url.Parse(c.Client.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("client.url %q is not an absolute URL", c.Client.URL))
	}
	if c.Client.Timeout <= 0 {
		errs = append(errs, errors.New("client.timeout must be positive"))
	}
	if c.Client.Refresh < 0 {
		errs = append(errs, errors.New("client.refresh must not be negative"))
	}
	switch c.Client.PageSize {
	case 5, 10, 20, 50:
	default:
		errs = append(errs, fmt.Errorf("client.page_size %d not one of 5, 10, 20, 50", c.Client.PageSize))
	}

	return errors.Join(errs...)
}
