package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Samocology/noap-backend/internal/auth"
	apperrors "github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/model"
	"github.com/Samocology/noap-backend/internal/repository"
)

// dummyHash is compared against when no principal matches, so a lookup miss
// costs about as much as a wrong password.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3Z0sE9VUP8KXy0pL9IobbXe"

// CredentialStore owns principal records and their passwords.
type CredentialStore interface {
	Register(ctx context.Context, principal model.Principal, password string) error
	Authenticate(ctx context.Context, kind model.Kind, email, password string) (model.Principal, error)
	Lookup(ctx context.Context, kind model.Kind, id uuid.UUID) (auth.Identity, error)
	FindByEmail(ctx context.Context, kind model.Kind, email string) (model.Principal, error)
	ResetPassword(ctx context.Context, kind model.Kind, id uuid.UUID, password string) error
	// WithRepository returns a store bound to repo, typically a transaction.
	WithRepository(repo repository.PrincipalRepository) CredentialStore
}

type credentialStore struct {
	principalRepo repository.PrincipalRepository
	roles         RoleRegistry
	hasher        *auth.Hasher
	identities    auth.IdentityStoreInterface
	logger        *slog.Logger
}

// NewCredentialStore creates a new credential store.
func NewCredentialStore(principalRepo repository.PrincipalRepository, roles RoleRegistry, hasher *auth.Hasher, identities auth.IdentityStoreInterface, logger *slog.Logger) CredentialStore {
	return &credentialStore{
		principalRepo: principalRepo,
		roles:         roles,
		hasher:        hasher,
		identities:    identities,
		logger:        logger,
	}
}

func (s *credentialStore) WithRepository(repo repository.PrincipalRepository) CredentialStore {
	clone := *s
	clone.principalRepo = repo
	return &clone
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register stores a new unverified principal with a hashed password.
func (s *credentialStore) Register(ctx context.Context, principal model.Principal, password string) error {
	creds := principal.Creds()
	creds.Email = NormalizeEmail(creds.Email)
	if creds.Email == "" {
		return apperrors.Validation("email is required")
	}
	if password == "" {
		return apperrors.Validation("password is required")
	}

	// Fast path only; the unique index decides races.
	_, err := s.principalRepo.FindByEmail(ctx, principal.PrincipalKind(), creds.Email)
	if err == nil {
		return apperrors.ErrDuplicateEmail
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return storageError("check email", err)
	}

	role, err := s.roles.FindOrCreate(ctx, model.RoleFor(principal.PrincipalKind()))
	if err != nil {
		return err
	}

	hashed, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return storageError("hash password", err)
	}
	creds.PasswordHash = hashed
	creds.RoleID = role.ID
	creds.Verified = false
	creds.ClearOTP()

	if err := s.principalRepo.Create(ctx, principal); err != nil {
		return storageError("create principal", err)
	}
	s.logger.Info("principal registered",
		slog.String("kind", string(principal.PrincipalKind())),
		slog.String("id", principal.PrincipalID().String()))
	return nil
}

// Authenticate checks email and password. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *credentialStore) Authenticate(ctx context.Context, kind model.Kind, email, password string) (model.Principal, error) {
	principal, err := s.principalRepo.FindByEmail(ctx, kind, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_, _ = s.hasher.Compare(ctx, dummyHash, password)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, storageError("find principal", err)
	}

	ok, err := s.hasher.Compare(ctx, principal.Creds().PasswordHash, password)
	if err != nil {
		if ctx.Err() != nil {
			return nil, storageError("compare password", err)
		}
		// A malformed stored hash can never match.
		s.logger.Warn("stored password hash unreadable",
			slog.String("kind", string(kind)),
			slog.String("id", principal.PrincipalID().String()))
		return nil, apperrors.ErrInvalidCredentials
	}
	if !ok {
		return nil, apperrors.ErrInvalidCredentials
	}
	return principal, nil
}

// Lookup resolves a principal id to an identity, going through the identity cache.
func (s *credentialStore) Lookup(ctx context.Context, kind model.Kind, id uuid.UUID) (auth.Identity, error) {
	if identity, ok := s.identities.GetIdentity(ctx, kind, id); ok {
		return identity, nil
	}
	principal, err := s.principalRepo.FindByID(ctx, kind, id)
	if err != nil {
		return auth.Identity{}, storageError("find principal", err)
	}
	identity := auth.IdentityOf(principal)
	if err := s.identities.PutIdentity(ctx, identity); err != nil {
		s.logger.Warn("cache identity failed", slog.String("error", err.Error()))
	}
	return identity, nil
}

// FindByEmail returns the principal of kind registered under email.
func (s *credentialStore) FindByEmail(ctx context.Context, kind model.Kind, email string) (model.Principal, error) {
	principal, err := s.principalRepo.FindByEmail(ctx, kind, NormalizeEmail(email))
	if err != nil {
		return nil, storageError("find principal", err)
	}
	return principal, nil
}

// ResetPassword replaces the password of an existing principal.
func (s *credentialStore) ResetPassword(ctx context.Context, kind model.Kind, id uuid.UUID, password string) error {
	if password == "" {
		return apperrors.Validation("password is required")
	}
	hashed, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return storageError("hash password", err)
	}
	if err := s.principalRepo.UpdatePassword(ctx, kind, id, hashed); err != nil {
		return storageError("update password", err)
	}
	s.invalidate(ctx, kind, id)
	return nil
}

func (s *credentialStore) invalidate(ctx context.Context, kind model.Kind, id uuid.UUID) {
	if err := s.identities.InvalidateIdentity(ctx, kind, id); err != nil {
		s.logger.Warn("invalidate identity failed", slog.String("error", err.Error()))
	}
}
