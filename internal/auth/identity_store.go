package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Samocology/noap-backend/internal/cache"
	"github.com/Samocology/noap-backend/internal/model"
)

const (
	identityKeyPrefix    = "identity:"
	otpCooldownKeyPrefix = "otp_cooldown:"

	// IdentityTTL bounds how long a cached identity may lag behind the database.
	IdentityTTL = 5 * time.Minute
)

// IdentityStoreInterface defines the Redis backed state used by the auth flows.
type IdentityStoreInterface interface {
	GetIdentity(ctx context.Context, kind model.Kind, id uuid.UUID) (Identity, bool)
	PutIdentity(ctx context.Context, identity Identity) error
	InvalidateIdentity(ctx context.Context, kind model.Kind, id uuid.UUID) error
	AcquireOTPCooldown(ctx context.Context, kind model.Kind, email string, window time.Duration) (bool, error)
	ReleaseOTPCooldown(ctx context.Context, kind model.Kind, email string) error
}

// IdentityStore caches resolved identities and tracks OTP resend cooldowns in Redis.
type IdentityStore struct {
	cache *cache.Client
}

// Ensure IdentityStore implements IdentityStoreInterface
var _ IdentityStoreInterface = (*IdentityStore)(nil)

// NewIdentityStore creates a new identity store.
func NewIdentityStore(cache *cache.Client) *IdentityStore {
	return &IdentityStore{cache: cache}
}

func identityKey(kind model.Kind, id uuid.UUID) string {
	return identityKeyPrefix + string(kind) + ":" + id.String()
}

func cooldownKey(kind model.Kind, email string) string {
	return otpCooldownKeyPrefix + string(kind) + ":" + strings.ToLower(email)
}

// GetIdentity returns a cached identity. Misses, redis outages and corrupt entries all report false.
func (s *IdentityStore) GetIdentity(ctx context.Context, kind model.Kind, id uuid.UUID) (Identity, bool) {
	data, err := s.cache.Get(ctx, identityKey(kind, id))
	if err != nil || data == nil {
		return Identity{}, false
	}
	var identity Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return Identity{}, false
	}
	return identity, true
}

// PutIdentity caches identity for IdentityTTL.
func (s *IdentityStore) PutIdentity(ctx context.Context, identity Identity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return s.cache.Set(ctx, identityKey(identity.Kind, identity.ID), payload, IdentityTTL)
}

// InvalidateIdentity drops the cached identity after a write.
func (s *IdentityStore) InvalidateIdentity(ctx context.Context, kind model.Kind, id uuid.UUID) error {
	return s.cache.Delete(ctx, identityKey(kind, id))
}

// AcquireOTPCooldown reports whether a new OTP may be sent to email. A
// non-positive window disables the cooldown.
func (s *IdentityStore) AcquireOTPCooldown(ctx context.Context, kind model.Kind, email string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	return s.cache.SetNX(ctx, cooldownKey(kind, email), []byte("1"), window)
}

// ReleaseOTPCooldown clears the cooldown, used when the OTP could not be delivered.
func (s *IdentityStore) ReleaseOTPCooldown(ctx context.Context, kind model.Kind, email string) error {
	return s.cache.Delete(ctx, cooldownKey(kind, email))
}
