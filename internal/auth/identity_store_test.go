package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samocology/noap-backend/internal/cache"
	"github.com/Samocology/noap-backend/internal/model"
)

func newTestStore(t *testing.T) (*IdentityStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c := cache.New(s.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return NewIdentityStore(c), s
}

func TestIdentityStore_RoundTripAndInvalidate(t *testing.T) {
	store, s := newTestStore(t)
	ctx := context.Background()
	identity := Identity{ID: uuid.New(), Kind: model.KindMember, Role: model.RoleMember, Email: "jane@x.com", Name: "Jane"}

	_, ok := store.GetIdentity(ctx, model.KindMember, identity.ID)
	assert.False(t, ok)

	require.NoError(t, store.PutIdentity(ctx, identity))
	got, ok := store.GetIdentity(ctx, model.KindMember, identity.ID)
	require.True(t, ok)
	assert.Equal(t, identity, got)

	// Same id under another kind is a different principal.
	_, ok = store.GetIdentity(ctx, model.KindSchool, identity.ID)
	assert.False(t, ok)

	require.NoError(t, store.InvalidateIdentity(ctx, model.KindMember, identity.ID))
	_, ok = store.GetIdentity(ctx, model.KindMember, identity.ID)
	assert.False(t, ok)

	require.NoError(t, store.PutIdentity(ctx, identity))
	s.FastForward(IdentityTTL + time.Second)
	_, ok = store.GetIdentity(ctx, model.KindMember, identity.ID)
	assert.False(t, ok)
}

func TestIdentityStore_CorruptEntryIsMiss(t *testing.T) {
	store, s := newTestStore(t)
	id := uuid.New()
	require.NoError(t, s.Set(identityKey(model.KindAdmin, id), "{not json"))

	_, ok := store.GetIdentity(context.Background(), model.KindAdmin, id)
	assert.False(t, ok)
}

func TestIdentityStore_OTPCooldown(t *testing.T) {
	store, s := newTestStore(t)
	ctx := context.Background()

	ok, err := store.AcquireOTPCooldown(ctx, model.KindSchool, "s@acme.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AcquireOTPCooldown(ctx, model.KindSchool, "S@ACME.com", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	s.FastForward(time.Minute + time.Second)
	ok, err = store.AcquireOTPCooldown(ctx, model.KindSchool, "s@acme.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.ReleaseOTPCooldown(ctx, model.KindSchool, "s@acme.com"))
	ok, err = store.AcquireOTPCooldown(ctx, model.KindSchool, "s@acme.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdentityStore_CooldownDisabled(t *testing.T) {
	store, _ := newTestStore(t)
	for i := 0; i < 3; i++ {
		ok, err := store.AcquireOTPCooldown(context.Background(), model.KindMember, "m@x.com", 0)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestIdentityOf(t *testing.T) {
	school := &model.School{ID: uuid.New(), Name: "Acme", Credentials: model.Credentials{Email: "s@acme.com", Verified: true}}

	identity := IdentityOf(school)
	assert.Equal(t, school.ID, identity.ID)
	assert.Equal(t, model.KindSchool, identity.Kind)
	assert.Equal(t, model.RoleSchool, identity.Role)
	assert.Equal(t, "Acme", identity.Name)
	assert.True(t, identity.Verified)

	ctx := ContextWithIdentity(context.Background(), identity)
	got, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, identity, got)

	_, ok = IdentityFromContext(context.Background())
	assert.False(t, ok)
}
