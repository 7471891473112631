// Package config loads the service configuration from .env, config.yml and the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "change_in_production"

// Config holds every tunable of the service.
type Config struct {
	Env  string `mapstructure:"APP_ENV"`
	Port string `mapstructure:"PORT"`

	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	DatabaseReadURL string `mapstructure:"DATABASE_READ_URL"`

	JWTSecret                string `mapstructure:"JWT_SECRET"`
	JWTSecretSSMParam        string `mapstructure:"JWT_SECRET_SSM_PARAM"`
	AWSRegion                string `mapstructure:"AWS_REGION"`
	AccessTokenExpireMinutes int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	LoginTokenExpireMinutes  int    `mapstructure:"LOGIN_TOKEN_EXPIRE_MINUTES"`

	StorageDriver  string `mapstructure:"STORAGE_DRIVER"`
	MediaDir       string `mapstructure:"MEDIA_DIR"`
	MediaURLPrefix string `mapstructure:"MEDIA_URL_PREFIX"`
	S3Bucket       string `mapstructure:"S3_BUCKET"`
	S3PublicURL    string `mapstructure:"S3_PUBLIC_URL"`
	MaxUploadMB    int    `mapstructure:"MAX_UPLOAD_MB"`

	AllowedOrigins     string `mapstructure:"ALLOWED_ORIGINS"`
	BlockedIPs         string `mapstructure:"BLOCKED_IPS"`
	TrustedProxies     string `mapstructure:"TRUSTED_PROXIES"`
	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	BlockedTitleWords  string `mapstructure:"BLOCKED_TITLE_WORDS"`

	ReadTimeoutSeconds  int `mapstructure:"READ_TIMEOUT_SECONDS"`
	WriteTimeoutSeconds int `mapstructure:"WRITE_TIMEOUT_SECONDS"`
	IdleTimeoutSeconds  int `mapstructure:"IDLE_TIMEOUT_SECONDS"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

var defaults = map[string]any{
	"APP_ENV":                     "development",
	"PORT":                        "8080",
	"DATABASE_URL":                "sqlite:blog.db",
	"DATABASE_READ_URL":           "",
	"JWT_SECRET":                  defaultJWTSecret,
	"JWT_SECRET_SSM_PARAM":        "",
	"AWS_REGION":                  "us-east-1",
	"ACCESS_TOKEN_EXPIRE_MINUTES": 60 * 24 * 7,
	"LOGIN_TOKEN_EXPIRE_MINUTES":  60 * 24 * 7,
	"STORAGE_DRIVER":              "local",
	"MEDIA_DIR":                   "app/media",
	"MEDIA_URL_PREFIX":            "/media",
	"S3_BUCKET":                   "",
	"S3_PUBLIC_URL":               "",
	"MAX_UPLOAD_MB":               10,
	"ALLOWED_ORIGINS":             "*",
	"BLOCKED_IPS":                 "",
	"TRUSTED_PROXIES":             "",
	"RATE_LIMIT_PER_MINUTE":       100,
	"BLOCKED_TITLE_WORDS":         "",
	"READ_TIMEOUT_SECONDS":        180,
	"WRITE_TIMEOUT_SECONDS":       180,
	"IDLE_TIMEOUT_SECONDS":        180,
	"LOG_LEVEL":                   "info",
}

// Load reads .env (when present), an optional config.yml and the environment,
// applies defaults and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config.yml: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required values are present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" && c.JWTSecretSSMParam == "" {
		return errors.New("JWT_SECRET or JWT_SECRET_SSM_PARAM is required")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	if c.AccessTokenExpireMinutes <= 0 || c.LoginTokenExpireMinutes <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE cannot be negative")
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		return err
	}

	switch c.StorageDriver {
	case "local":
		if c.MediaDir == "" {
			return errors.New("MEDIA_DIR is required for local storage")
		}
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.IsProduction() && c.JWTSecretSSMParam == "" {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
	}
	if c.IsProduction() && c.AllowedOrigins == "*" {
		log.Warn().Msg("ALLOWED_ORIGINS is '*' in production")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func (c *Config) Address() string {
	return fmt.Sprintf("0.0.0.0:%s", c.Port)
}

func (c *Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func (c *Config) BlockedIPList() []string {
	return splitList(c.BlockedIPs)
}

// TrustedProxyNets parses TRUSTED_PROXIES. Entries are CIDR ranges or single
// addresses; only peers inside them may set forwarding headers.
func (c *Config) TrustedProxyNets() ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, entry := range splitList(c.TrustedProxies) {
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
		}
		nets = append(nets, ipNet)
	}
	return nets, nil
}

// TitleBlocklist returns the lower-cased words a post title may not contain.
func (c *Config) TitleBlocklist() []string {
	words := splitList(c.BlockedTitleWords)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return words
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

func (c *Config) LoginTokenTTL() time.Duration {
	return time.Duration(c.LoginTokenExpireMinutes) * time.Minute
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
