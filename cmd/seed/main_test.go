package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samocology/noap-backend/internal/auth"
	"github.com/Samocology/noap-backend/internal/logging"
	"github.com/Samocology/noap-backend/internal/model"
	"github.com/Samocology/noap-backend/internal/repository/repotest"
	"github.com/Samocology/noap-backend/internal/service"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	logger := logging.Discard()
	repo := repotest.NewPrincipalRepository()
	roles := service.NewRoleRegistry(repotest.NewRoleRepository())
	credentials := service.NewCredentialStore(repo, roles, auth.NewHasher(auth.MinHashCost, 1), auth.NewIdentityStore(nil), logger)

	require.NoError(t, seedRoles(ctx, roles, logger))
	require.NoError(t, seedRoles(ctx, roles, logger))
	list, err := roles.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	created, err := seedAdmin(ctx, credentials, repo, "Root", "Root@NOAP.org", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)

	admin := repo.Get(model.KindAdmin, "root@noap.org")
	require.NotNil(t, admin)
	assert.True(t, admin.Creds().Verified)

	created, err = seedAdmin(ctx, credentials, repo, "Root", "root@noap.org", "other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, repo.Count(model.KindAdmin))

	_, err = credentials.Authenticate(ctx, model.KindAdmin, "root@noap.org", "s3cret")
	assert.NoError(t, err)
}

func TestSeedAdmin_FailedVerificationRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := repotest.NewPrincipalRepository()
	roles := service.NewRoleRegistry(repotest.NewRoleRepository())
	credentials := service.NewCredentialStore(repo, roles, auth.NewHasher(auth.MinHashCost, 1), auth.NewIdentityStore(nil), logging.Discard())

	repo.FailSave = errors.New("connection reset")
	created, err := seedAdmin(ctx, credentials, repo, "Root", "root@noap.org", "s3cret")
	require.Error(t, err)
	assert.False(t, created)
	assert.Equal(t, 0, repo.Count(model.KindAdmin))

	created, err = seedAdmin(ctx, credentials, repo, "Root", "root@noap.org", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)
	admin := repo.Get(model.KindAdmin, "root@noap.org")
	require.NotNil(t, admin)
	assert.True(t, admin.Creds().Verified)
}
