package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Evidence modes for the testing validation stage.
const (
	EvidenceStatic    = "static"
	EvidenceSimulated = "simulated"
	EvidencePortal    = "portal"
)

// Config holds the configuration for the application.
type Config struct {
	Server struct {
		Addr          string `mapstructure:"addr"`
		Environment   string `mapstructure:"environment"`
		DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
		LogLevel      string `mapstructure:"log_level"`
	} `mapstructure:"server"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`
	Auth struct {
		OktaDomain   string `mapstructure:"okta_domain"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURL  string `mapstructure:"redirect_url"`
		// SwaggerClientID is the public PKCE client used by /docs; defaults to ClientID.
		SwaggerClientID string `mapstructure:"swagger_client_id"`
		// AllowedDomains restricts requesters by email domain; empty allows all.
		AllowedDomains []string `mapstructure:"allowed_domains"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Engine struct {
		Timezone      string        `mapstructure:"timezone"`
		EvidenceMode  string        `mapstructure:"evidence_mode"`
		EvidencePass  bool          `mapstructure:"evidence_pass"`
		EvidenceLink  string        `mapstructure:"evidence_link"`
		PortalURL     string        `mapstructure:"portal_url"`
		PortalTimeout time.Duration `mapstructure:"portal_timeout"`
		Seed          int64         `mapstructure:"seed"`
		// SessionIdleTimeout discards unfinished assessments left untouched this long.
		SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	} `mapstructure:"engine"`
	ReferenceData struct {
		File string `mapstructure:"file"`
	} `mapstructure:"reference_data"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.environment", "production")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("engine.timezone", "UTC")
	v.SetDefault("engine.evidence_mode", EvidenceSimulated)
	v.SetDefault("engine.evidence_pass", true)
	v.SetDefault("engine.portal_timeout", 5*time.Second)
	v.SetDefault("engine.seed", 1)
	v.SetDefault("engine.session_idle_timeout", 24*time.Hour)
	v.SetDefault("reference_data.file", "config/reference.yaml")

	// Keys without a meaningful default are still registered so that
	// environment overrides reach Unmarshal.
	for _, key := range []string{
		"db.host", "db.user", "db.password", "db.name",
		"redis.addr", "redis.password",
		"auth.okta_domain", "auth.client_id", "auth.client_secret", "auth.redirect_url", "auth.swagger_client_id",
		"tls.cert_file", "tls.key_file",
		"engine.evidence_link", "engine.portal_url",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("server.dev_mode_bypass", false)
	v.SetDefault("redis.db", 0)
	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.hostnames", []string{"localhost"})
	v.SetDefault("auth.allowed_domains", []string{})
}

// LoadConfig loads the configuration from a file and the environment.
// An empty path searches for config.yaml in . and ./config; a missing
// file is not an error in that case.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)
	if config.Auth.SwaggerClientID == "" {
		config.Auth.SwaggerClientID = config.Auth.ClientID
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Engine.EvidenceMode {
	case EvidenceStatic, EvidenceSimulated:
	case EvidencePortal:
		if c.Engine.PortalURL == "" {
			return errors.New("engine.portal_url is required when evidence_mode is portal")
		}
	default:
		return fmt.Errorf("unknown engine.evidence_mode %q", c.Engine.EvidenceMode)
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return fmt.Errorf("engine.timezone: %w", err)
	}
	return nil
}

// Location returns the time zone used for peak hours and maintenance windows.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns the PostgreSQL connection string, or "" when no database is configured.
func (c *Config) DSN() string {
	if c.DB.Host == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

// IsDevelopment reports whether the server runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development" || c.Server.Environment == "dev"
}

// normalizeOktaIssuer ensures the provided Okta issuer string is in a
// predictable form. It removes any trailing slash and leaves the scheme and
// path intact.
func normalizeOktaIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
