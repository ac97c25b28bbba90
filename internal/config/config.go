package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name, e.g. AUTHZ_PORT.
const EnvPrefix = "AUTHZ_"

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
	StorageConfig
	BootstrapConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
	Storage
	Bootstrap
}

// New loads the configuration from the process environment.
func New() (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

// NewFromMap loads the configuration from the given variables instead of the
// process environment. Keys include the prefix.
func NewFromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg mainConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c mainConfig) validate() error {
	if len(c.OAuth.Scopes) == 0 {
		return fmt.Errorf("%sSCOPES must list at least one scope", EnvPrefix)
	}
	if c.OAuth.CodeTTL <= 0 {
		return fmt.Errorf("%sCODE_TTL must be positive", EnvPrefix)
	}
	switch c.Storage.Store {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return fmt.Errorf("%sSQLITE_PATH is required for the sqlite store", EnvPrefix)
		}
	case StoreRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return fmt.Errorf("%sREDIS_ADDR is required for the redis store", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown %sSTORE %q", EnvPrefix, c.Storage.Store)
	}
	if c.Security.RateLimitEnabled && (c.Security.RateLimitRPS <= 0 || c.Security.RateLimitBurst <= 0) {
		return fmt.Errorf("%sRATE_LIMIT_RPS and %sRATE_LIMIT_BURST must be positive", EnvPrefix, EnvPrefix)
	}
	return nil
}
