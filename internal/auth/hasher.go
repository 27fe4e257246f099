package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Supported bcrypt costs. The save hooks use model.DefaultHashCost.
const (
	MinHashCost = 8
	MaxHashCost = 12
)

// Hasher hashes and compares passwords with bcrypt. At most `workers` hash
// operations run at once; waiting callers give up when their context ends.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher creates a hasher. Out of range costs are clamped to [MinHashCost, MaxHashCost]
// and a non-positive worker count falls back to GOMAXPROCS.
func NewHasher(cost, workers int) *Hasher {
	switch {
	case cost < MinHashCost:
		cost = MinHashCost
	case cost > MaxHashCost:
		cost = MaxHashCost
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(workers))}
}

// Cost returns the bcrypt cost used for new hashes.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns the bcrypt hash of plaintext.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash worker: %w", err)
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare reports whether plaintext matches hash. A mismatch is not an error;
// errors are reserved for cancellation and malformed hashes.
func (h *Hasher) Compare(ctx context.Context, hash, plaintext string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("acquire hash worker: %w", err)
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}
