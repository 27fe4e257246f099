package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Samocology/noap-backend/internal/auth"
	apperrors "github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/model"
)

// DefaultResetTTL is the lifetime of password reset tokens.
const DefaultResetTTL = time.Hour

// SessionService issues bearer tokens and resolves them back to live principals.
type SessionService interface {
	Issue(id uuid.UUID, role model.RoleName) (string, error)
	Validate(ctx context.Context, token string) (auth.Identity, error)
	IssueReset(principal model.Principal) (string, error)
	ValidateReset(ctx context.Context, token string) (auth.Identity, error)
}

type sessionService struct {
	tokens      *auth.TokenService
	credentials CredentialStore
	resetTTL    time.Duration
}

// NewSessionService creates a new session service.
func NewSessionService(tokens *auth.TokenService, credentials CredentialStore, resetTTL time.Duration) SessionService {
	if resetTTL <= 0 {
		resetTTL = DefaultResetTTL
	}
	return &sessionService{tokens: tokens, credentials: credentials, resetTTL: resetTTL}
}

// Issue signs a session token without expiry.
func (s *sessionService) Issue(id uuid.UUID, role model.RoleName) (string, error) {
	return s.tokens.Sign(id, string(role), auth.PurposeSession, 0)
}

// Validate resolves a session token. Bad signatures, expired or wrong-purpose
// tokens and vanished principals all yield ErrAuthenticationFailed.
func (s *sessionService) Validate(ctx context.Context, token string) (auth.Identity, error) {
	return s.resolve(ctx, token, auth.PurposeSession)
}

// IssueReset signs a short-lived password reset token for principal. The
// token stops validating once the password changes.
func (s *sessionService) IssueReset(principal model.Principal) (string, error) {
	return s.tokens.SignReset(principal.PrincipalID(), string(model.RoleFor(principal.PrincipalKind())),
		auth.PasswordFingerprint(principal.Creds().PasswordHash), s.resetTTL)
}

// ValidateReset resolves a password reset token. Tokens issued against an
// earlier password, including one already redeemed, are rejected.
func (s *sessionService) ValidateReset(ctx context.Context, token string) (auth.Identity, error) {
	claims, err := s.tokens.Parse(token, auth.PurposePasswordReset)
	if err != nil {
		return auth.Identity{}, apperrors.ErrAuthenticationFailed
	}
	identity, err := s.resolveClaims(ctx, claims)
	if err != nil {
		return auth.Identity{}, err
	}

	principal, err := s.credentials.FindByEmail(ctx, identity.Kind, identity.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return auth.Identity{}, apperrors.ErrAuthenticationFailed
		}
		return auth.Identity{}, err
	}
	current := auth.PasswordFingerprint(principal.Creds().PasswordHash)
	if principal.PrincipalID() != identity.ID ||
		subtle.ConstantTimeCompare([]byte(current), []byte(claims.Fingerprint)) != 1 {
		return auth.Identity{}, apperrors.ErrAuthenticationFailed
	}
	return identity, nil
}

func (s *sessionService) resolve(ctx context.Context, token, purpose string) (auth.Identity, error) {
	claims, err := s.tokens.Parse(token, purpose)
	if err != nil {
		return auth.Identity{}, apperrors.ErrAuthenticationFailed
	}
	return s.resolveClaims(ctx, claims)
}

func (s *sessionService) resolveClaims(ctx context.Context, claims *auth.Claims) (auth.Identity, error) {
	role := model.RoleName(claims.Role)
	if !role.Valid() {
		return auth.Identity{}, apperrors.ErrAuthenticationFailed
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return auth.Identity{}, apperrors.ErrAuthenticationFailed
	}

	identity, err := s.credentials.Lookup(ctx, model.Kind(role), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return auth.Identity{}, apperrors.ErrAuthenticationFailed
		}
		return auth.Identity{}, err
	}
	if identity.Role != role {
		return auth.Identity{}, apperrors.ErrAuthenticationFailed
	}
	return identity, nil
}
