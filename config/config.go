package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the server. Tags use mapstructure for
// Viper unmarshalling; every key can be overridden by environment variable.
type Config struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	RedisDB     int    `mapstructure:"REDIS_DB"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	JWTSecretKey        string `mapstructure:"JWT_SECRET_KEY"`
	TokenIssuer         string `mapstructure:"TOKEN_ISSUER"`
	AccessTokenTTLMin   int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTokenTTLHour int    `mapstructure:"REFRESH_TOKEN_TTL_HOUR"`

	// Cookie attributes are deployment configuration, never inferred from
	// request headers.
	CookieDomain      string `mapstructure:"COOKIE_DOMAIN"`
	CookieCrossOrigin bool   `mapstructure:"COOKIE_CROSS_ORIGIN"`
	Production        bool   `mapstructure:"PRODUCTION"`

	AlertWebhookURL string `mapstructure:"ALERT_WEBHOOK_URL"`

	RevocationCleanupDays int `mapstructure:"REVOCATION_CLEANUP_DAYS"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHour) * time.Hour
}

// CookiePolicy computes the cookie attribute policy once from deployment
// configuration. It is threaded through to every cookie write so attributes
// never depend on per-request host sniffing.
func (c *Config) CookiePolicy() CookiePolicy {
	return CookiePolicy{
		Domain:      c.CookieDomain,
		CrossOrigin: c.CookieCrossOrigin,
		Secure:      c.Production,
	}
}

// CookiePolicy is the value object governing credential cookie attributes.
type CookiePolicy struct {
	Domain      string
	CrossOrigin bool
	Secure      bool
}

// SameSite returns None for cross-origin deployments (which requires
// Secure) and Lax otherwise.
func (p CookiePolicy) SameSite() http.SameSite {
	if p.CrossOrigin {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// LoadConfig reads configuration from file, environment variables, and
// defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/authgate/")
	v.AddConfigPath("$HOME/.authgate")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/authgate_dev")
	v.SetDefault("MONGO_DB_NAME", "authgate_dev")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "authgate-server")
	v.SetDefault("JWT_SECRET_KEY", "a_very_secret_jwt_key_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("TOKEN_ISSUER", "authgate")
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 15)
	v.SetDefault("REFRESH_TOKEN_TTL_HOUR", 168) // 7 days
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_CROSS_ORIGIN", false)
	v.SetDefault("PRODUCTION", false)
	v.SetDefault("ALERT_WEBHOOK_URL", "")
	v.SetDefault("REVOCATION_CLEANUP_DAYS", 10)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
