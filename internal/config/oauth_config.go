package config

import "time"

type OAuthConfig interface {
	GetScopes() []string
	GetAuthCodeTimeout() time.Duration
	GetMaxBounces() int
}

type OAuth struct {
	Scopes     []string      `env:"SCOPES" envDefault:"read,writeown,writeall" envSeparator:","`
	CodeTTL    time.Duration `env:"CODE_TTL" envDefault:"10m"`
	MaxBounces int           `env:"MAX_BOUNCES" envDefault:"3"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetScopes() []string {
	return append([]string(nil), o.Scopes...)
}

func (o OAuth) GetAuthCodeTimeout() time.Duration {
	return o.CodeTTL
}

func (o OAuth) GetMaxBounces() int {
	return o.MaxBounces
}
