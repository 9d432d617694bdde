package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-identity-service/internal/config"
	"github.com/jrsteele09/go-identity-service/users"
	"github.com/jrsteele09/go-identity-service/users/pgrepo"
	fakeuserrepo "github.com/jrsteele09/go-identity-service/users/repofake"
	"github.com/jrsteele09/go-identity-service/users/sqliterepo"
	"github.com/rs/zerolog/log"
)

// userStore is the selected UserRepo and how to release it.
type userStore struct {
	Repo  users.UserRepo
	close func()
}

func (s userStore) Close() {
	if s.close != nil {
		s.close()
	}
}

func openUserStore(ctx context.Context, c config.Config) (userStore, error) {
	driver := c.GetStoreDriver()
	logger := log.With().Str("store", driver).Logger()

	switch driver {
	case config.StoreSQLite:
		store, err := sqliterepo.Open(ctx, c.GetSQLitePath())
		if err != nil {
			return userStore{}, fmt.Errorf("sqliterepo.Open: %w", err)
		}
		logger.Info().Str("path", c.GetSQLitePath()).Msg("user store ready")
		return userStore{Repo: store, close: func() { _ = store.Close() }}, nil

	case config.StorePostgres:
		db, err := pgrepo.New(ctx, pgrepo.Config{
			URL:          c.GetDatabaseURL(),
			QueryTimeout: c.GetDBQueryTimeout(),
		})
		if err != nil {
			return userStore{}, fmt.Errorf("pgrepo.New: %w", err)
		}
		logger.Info().Msg("user store ready")
		return userStore{Repo: pgrepo.NewUserRepo(db), close: db.Close}, nil

	default:
		logger.Warn().Msg("users are kept in memory and lost on restart")
		return userStore{Repo: fakeuserrepo.NewFakeUserRepo()}, nil
	}
}
