// Package credentials hashes and verifies user passwords.
//
// Hashing is expensive, so every Hasher bounds how many hash
// operations run at once. Requests waiting for a slot give up when their
// context is cancelled instead of piling up behind the CPU.
package credentials

import (
	"context"
	"fmt"
	"runtime"

	apperrors "github.com/jrsteele09/go-identity-service/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// MaxSecretBytes is the longest secret bcrypt accepts.
const MaxSecretBytes = 72

// ErrSecretTooLong is returned by Hash for secrets longer than MaxSecretBytes.
var ErrSecretTooLong = fmt.Errorf("password longer than %d bytes: %w", MaxSecretBytes, apperrors.ErrInvalidRequest)

// Hasher produces salted one-way digests and checks secrets against them.
type Hasher interface {
	// Hash returns a new salted digest. Two calls with the same secret return different digests.
	Hash(ctx context.Context, secret string) (string, error)

	// Verify reports whether secret matches digest. It never errors for a bad digest, it returns false.
	Verify(ctx context.Context, secret, digest string) bool
}

// BcryptHasher implements Hasher with bcrypt.
type BcryptHasher struct {
	cost  int
	slots *semaphore.Weighted
}

var _ Hasher = (*BcryptHasher)(nil)

// BcryptOption configures the bcrypt hasher.
type BcryptOption func(*BcryptHasher)

// WithCost sets the bcrypt cost. Values outside bcrypt's range are ignored.
func WithCost(cost int) BcryptOption {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithConcurrency caps the number of hashes computed at the same time.
// Zero or negative keeps the default of GOMAXPROCS.
func WithConcurrency(n int) BcryptOption {
	return func(h *BcryptHasher) {
		if n > 0 {
			h.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewBcryptHasher creates a bcrypt hasher with cost DefaultCost unless overridden.
func NewBcryptHasher(opts ...BcryptOption) *BcryptHasher {
	h := &BcryptHasher{cost: DefaultCost}
	for _, opt := range opts {
		opt(h)
	}
	if h.slots == nil {
		h.slots = semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
	}
	return h
}

// Cost returns the configured bcrypt work factor.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

func (h *BcryptHasher) Hash(ctx context.Context, secret string) (string, error) {
	if len(secret) > MaxSecretBytes {
		return "", ErrSecretTooLong
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", errors.Wrap(err, "[BcryptHasher.Hash] waiting for hash slot")
	}
	defer h.slots.Release(1)

	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", errors.Wrap(err, "[BcryptHasher.Hash] bcrypt.GenerateFromPassword")
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(ctx context.Context, secret, digest string) bool {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.slots.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
