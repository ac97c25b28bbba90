package config

// Store kinds
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type StorageConfig interface {
	GetStore() string
	GetSQLitePath() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisKeyPrefix() string
}

type Storage struct {
	Store          string `env:"STORE" envDefault:"memory"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"./data/authz.db"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"authz:"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetStore() string          { return s.Store }
func (s Storage) GetSQLitePath() string     { return s.SQLitePath }
func (s Storage) GetRedisAddr() string      { return s.RedisAddr }
func (s Storage) GetRedisPassword() string  { return s.RedisPassword }
func (s Storage) GetRedisKeyPrefix() string { return s.RedisKeyPrefix }
