package core

import (
	"fmt"
	"strings"
	"time"
)

type OAuthConfig struct {
	RedirectURL string        `koanf:"redirect_url" mapstructure:"redirect_url"`
	StateTTL    time.Duration `koanf:"state_ttl" mapstructure:"state_ttl"`
}

type RefreshConfig struct {
	FreshnessWindow time.Duration `koanf:"freshness_window" mapstructure:"freshness_window"`
	MaxAttempts     int           `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type Config struct {
	ServiceName    string        `koanf:"service_name" mapstructure:"service_name"`
	RequestTimeout time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	OAuth          OAuthConfig   `koanf:"oauth" mapstructure:"oauth"`
	Refresh        RefreshConfig `koanf:"refresh" mapstructure:"refresh"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "square",
		RequestTimeout: 20 * time.Second,
		OAuth: OAuthConfig{
			StateTTL: defaultOAuthStateTTL,
		},
		Refresh: RefreshConfig{
			FreshnessWindow: 14 * 24 * time.Hour,
			MaxAttempts:     3,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("core: request_timeout must not be negative")
	}
	if c.Refresh.MaxAttempts < 0 {
		return fmt.Errorf("core: refresh.max_attempts must not be negative")
	}
	return nil
}
