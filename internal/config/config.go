package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "STOA"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "stoa.db"
	defaultLogLevel      = "info"
	defaultCookieName    = "stoa_session"
	defaultBasePath      = "/apps/stoa"
	defaultPageSize      = 10
	defaultMaxMediaBytes = 5 << 20
)

// AppConfig captures runtime configuration for the proxy server.
type AppConfig struct {
	HTTPAddress       string
	ProxySharedSecret string
	SessionCookieName string
	DatabasePath      string
	LogLevel          string
	BasePath          string
	PageSize          int
	MaxMediaBytes     int64
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("app.base_path", defaultBasePath)
	configViper.SetDefault("feed.page_size", defaultPageSize)
	configViper.SetDefault("media.max_bytes", defaultMaxMediaBytes)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		ProxySharedSecret: configViper.GetString("proxy.shared_secret"),
		SessionCookieName: configViper.GetString("session.cookie_name"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		BasePath:          configViper.GetString("app.base_path"),
		PageSize:          configViper.GetInt("feed.page_size"),
		MaxMediaBytes:     configViper.GetInt64("media.max_bytes"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.ProxySharedSecret) == "" {
		return fmt.Errorf("proxy.shared_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("app.base_path must start with a slash")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("feed.page_size must be positive")
	}
	if c.MaxMediaBytes <= 0 {
		return fmt.Errorf("media.max_bytes must be positive")
	}
	return nil
}
