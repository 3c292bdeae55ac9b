// The application's root configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

var instance *Config

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Network NetworkConfig `mapstructure:"network"`
	Intel   IntelConfig   `mapstructure:"intel"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" json:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" json:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// NetworkConfig holds settings for the HTTP transport.
type NetworkConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors"`
	ProxyURL        string        `mapstructure:"proxy_url"`
}

// IntelConfig holds settings for the Intel client itself.
type IntelConfig struct {
	// BaseURL and IdentityURL override the production endpoints, mainly
	// useful against staging mirrors.
	BaseURL     string `mapstructure:"base_url"`
	IdentityURL string `mapstructure:"identity_url"`

	// Email/Password select credential login; leave both empty for
	// cookie-only mode.
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`

	// Cookies is a Cookie-header-style string injected into the session
	// jar before the first request.
	Cookies string `mapstructure:"cookies"`

	// ScanWorkers bounds the concurrency of range scans.
	ScanWorkers int `mapstructure:"scan_workers"`
}

// SetDefaults seeds viper so the app can run with a minimal config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "ingress-intel")
	v.SetDefault("network.request_timeout", 30*time.Second)
	v.SetDefault("intel.scan_workers", 4)
}

// Validate rejects configurations the client cannot act on.
func (c *Config) Validate() error {
	if (c.Intel.Email == "") != (c.Intel.Password == "") {
		return fmt.Errorf("intel.email and intel.password must be set together")
	}
	if c.Intel.Email == "" && c.Intel.Cookies == "" {
		return fmt.Errorf("either intel credentials or intel.cookies must be configured")
	}
	if c.Intel.ScanWorkers < 0 {
		return fmt.Errorf("intel.scan_workers must not be negative")
	}
	return nil
}

// Set stores the configuration singleton. The root command calls this after
// unmarshaling and validating; tests call it directly.
func Set(cfg *Config) {
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Set() in the root command.")
	}
	return instance
}
