package config

import "time"

type SecurityConfig interface {
	GetMaxSessionAge() time.Duration
	GetSecureCookies() bool
	GetEnableRateLimiting() bool
	GetRateLimit() (rps float64, burst int)
}

type Security struct {
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	SecureCookies    bool          `env:"SECURE_COOKIES" envDefault:"false"`
	RateLimitEnabled bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     float64       `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst   int           `env:"RATE_LIMIT_BURST" envDefault:"10"`
}

var _ SecurityConfig = Security{}

// GetMaxSessionAge is how long a browser session lives after its last write.
func (s Security) GetMaxSessionAge() time.Duration {
	return s.SessionTTL
}

func (s Security) GetSecureCookies() bool {
	return s.SecureCookies
}

func (s Security) GetEnableRateLimiting() bool {
	return s.RateLimitEnabled
}

// GetRateLimit returns the per-client token endpoint limit.
func (s Security) GetRateLimit() (float64, int) {
	return s.RateLimitRPS, s.RateLimitBurst
}
