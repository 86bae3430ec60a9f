package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"SLANGLAB_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"SLANGLAB_DB_MAX_CONNS" default:"8"`

	// Web search provider. An empty key or engine id leaves the source
	// registered but inert: it logs and contributes zero hits.
	SearchAPIKey            string  `envconfig:"SEARCH_API_KEY" default:""`
	SearchEngineID          string  `envconfig:"SEARCH_ENGINE_ID" default:""`
	SearchAPIEndpoint       string  `envconfig:"SEARCH_API_ENDPOINT" default:"https://www.googleapis.com/customsearch/v1"`
	SearchRequestsPerSecond float64 `envconfig:"SEARCH_REQUESTS_PER_SECOND" default:"2"`

	NewsAPIKey      string `envconfig:"NEWS_API_KEY" default:""`
	NewsAPIEndpoint string `envconfig:"NEWS_API_ENDPOINT" default:"https://newsapi.org/v2/everything"`

	SourceTimeout time.Duration `envconfig:"SOURCE_TIMEOUT" default:"15s"`

	AdminTokenHash     string `envconfig:"ADMIN_TOKEN_HASH" default:""`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("SLANGLAB_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("SLANGLAB_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("SLANGLAB_DB_MIN_CONNS (%d) cannot exceed SLANGLAB_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.SearchAPIEndpoint) == "" {
		return fmt.Errorf("SEARCH_API_ENDPOINT must not be empty")
	}
	if c.SearchRequestsPerSecond <= 0 {
		return fmt.Errorf("SEARCH_REQUESTS_PER_SECOND must be > 0")
	}
	if strings.TrimSpace(c.NewsAPIEndpoint) == "" {
		return fmt.Errorf("NEWS_API_ENDPOINT must not be empty")
	}
	if c.SourceTimeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be > 0")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
