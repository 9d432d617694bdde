package fakeuserrepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-identity-service/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo keeps users in memory. It backs the "memory" store driver and the tests.
type FakeUserRepo struct {
	users       map[int64]*users.User
	usernameIds map[string]int64 // username to user id
	nextID      int64
	lock        sync.RWMutex
	nowFunc     func() time.Time
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[int64]*users.User),
		usernameIds: make(map[string]int64),
		nowFunc:     time.Now,
	}
}

func (ur *FakeUserRepo) FindByUsername(_ context.Context, username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernameIds[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	return ur.copyOf(id), nil
}

func (ur *FakeUserRepo) FindByID(_ context.Context, id int64) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if _, ok := ur.users[id]; !ok {
		return nil, users.ErrNotFound
	}
	return ur.copyOf(id), nil
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) (*users.User, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, taken := ur.usernameIds[user.Username]; taken {
		return nil, users.ErrConflict
	}

	ur.nextID++
	now := ur.nowFunc()
	stored := *user
	stored.ID = ur.nextID
	stored.CreatedAt = now
	stored.UpdatedAt = now

	ur.users[stored.ID] = &stored
	ur.usernameIds[stored.Username] = stored.ID

	created := stored
	return &created, nil
}

func (ur *FakeUserRepo) Update(_ context.Context, id int64, update users.UserUpdate) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return users.ErrNotFound
	}

	if update.Username != nil && *update.Username != user.Username {
		if _, taken := ur.usernameIds[*update.Username]; taken {
			return users.ErrConflict
		}
		delete(ur.usernameIds, user.Username)
		ur.usernameIds[*update.Username] = id
	}

	update.Apply(user)
	user.UpdatedAt = ur.nowFunc()
	return nil
}

func (ur *FakeUserRepo) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored users.
func (ur *FakeUserRepo) Len() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return len(ur.users)
}

// copyOf hands out a copy so callers never mutate the stored record. Caller holds the lock.
func (ur *FakeUserRepo) copyOf(id int64) *users.User {
	u := *ur.users[id]
	return &u
}
