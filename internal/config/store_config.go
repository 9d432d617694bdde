package config

import (
	"strings"
	"time"
)

type StoreConfig interface {
	GetStoreDriver() string
	GetSQLitePath() string
	GetDatabaseURL() string
	GetDBQueryTimeout() time.Duration
}

type Store struct {
	Driver         string        `env:"STORE_DRIVER" envDefault:"memory"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"./data/identity.db"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	DBQueryTimeout time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"5s"`
}

var _ StoreConfig = Store{}

func (s Store) GetStoreDriver() string {
	if s.Driver == "" {
		return StoreMemory
	}
	return strings.ToLower(s.Driver)
}

func (s Store) GetSQLitePath() string {
	return s.SQLitePath
}

func (s Store) GetDatabaseURL() string {
	return s.DatabaseURL
}

func (s Store) GetDBQueryTimeout() time.Duration {
	return s.DBQueryTimeout
}
