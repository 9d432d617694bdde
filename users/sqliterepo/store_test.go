package sqliterepo_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jrsteele09/go-identity-service/internal/utils"
	"github.com/jrsteele09/go-identity-service/users"
	"github.com/jrsteele09/go-identity-service/users/sqliterepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqliterepo.Store {
	t.Helper()

	store, err := sqliterepo.Open(context.Background(), filepath.Join(t.TempDir(), "data", "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := sqliterepo.Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.db")
	ctx := context.Background()

	store, err := sqliterepo.Open(ctx, path)
	require.NoError(t, err)
	created, err := store.Create(ctx, &users.User{Username: "alice", PasswordHash: "h1"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// migrations are idempotent and data survives
	store, err = sqliterepo.Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", loaded.Username)
}

func TestStore_CreateAndFind(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	created, err := store.Create(ctx, &users.User{Username: "alice", PasswordHash: "h1"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	byName, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, created.ID, byName.ID)
	require.Equal(t, "h1", byName.PasswordHash)
	require.Equal(t, created.CreatedAt, byName.CreatedAt)

	_, err = store.Create(ctx, &users.User{Username: "alice", PasswordHash: "h2"})
	require.ErrorIs(t, err, users.ErrConflict)

	_, err = store.FindByUsername(ctx, "ghost")
	require.ErrorIs(t, err, users.ErrNotFound)
	_, err = store.FindByID(ctx, 12345)
	require.ErrorIs(t, err, users.ErrNotFound)
}

func TestStore_Update(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	alice, err := store.Create(ctx, &users.User{Username: "alice", PasswordHash: "h1"})
	require.NoError(t, err)
	_, err = store.Create(ctx, &users.User{Username: "bob", PasswordHash: "h2"})
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, alice.ID, users.UserUpdate{PasswordHash: utils.Ptr("h9")}))
	loaded, err := store.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "h9", loaded.PasswordHash)
	require.Equal(t, "alice", loaded.Username)

	require.NoError(t, store.Update(ctx, alice.ID, users.UserUpdate{Username: utils.Ptr("alicia")}))
	loaded, err = store.FindByUsername(ctx, "alicia")
	require.NoError(t, err)
	require.Equal(t, alice.ID, loaded.ID)

	err = store.Update(ctx, alice.ID, users.UserUpdate{Username: utils.Ptr("bob")})
	require.ErrorIs(t, err, users.ErrConflict)

	err = store.Update(ctx, 999, users.UserUpdate{PasswordHash: utils.Ptr("x")})
	require.ErrorIs(t, err, users.ErrNotFound)

	err = store.Update(ctx, 999, users.UserUpdate{})
	require.ErrorIs(t, err, users.ErrNotFound)
	require.NoError(t, store.Update(ctx, alice.ID, users.UserUpdate{}))
}

func TestStore_ConcurrentCreate(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, &users.User{Username: "same", PasswordHash: "h"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, users.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, workers-1, conflicts)
}
