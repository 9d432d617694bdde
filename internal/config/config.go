package config

import (
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	EnvDev = "DEV"

	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config interface {
	EnvConfig
	TokenConfig
	SecurityConfig
	StoreConfig
	CorsConfig
	Validate() error
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsDev() bool
	GetLogLevel() string
	GetShutdownTimeout() time.Duration
	GetOTLPEndpoint() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Tokens
	Security
	Store
	Cors
}

// New reads an optional .env file, then the process environment.
func New() (Config, error) {
	return Load(".env")
}

// Load is New with an explicit dotenv path. Variables already set in the
// environment win over the file.
func Load(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "[config.Load] loading %s", dotenvPath)
		}
	}

	cfg := mainConfig{}
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load] parse env")
	}
	cfg.Cors.allowed = newAllowedOrigins(cfg.Origins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c mainConfig) Validate() error {
	if c.JWTSecret == "" && c.SigningKeyFile == "" && !c.IsDev() {
		return errors.New("[config] JWT_SECRET or JWT_SIGNING_KEY_FILE is required outside DEV")
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("[config] ACCESS_TOKEN_TTL must be positive")
	}
	if c.RevocationSweepInterval < 0 {
		return errors.New("[config] REVOCATION_SWEEP_INTERVAL must not be negative")
	}
	switch c.GetStoreDriver() {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("[config] SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("[config] DATABASE_URL is required for the postgres store")
		}
	default:
		return errors.Errorf("[config] unknown STORE_DRIVER %q", c.Driver)
	}
	return nil
}
