package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/Samocology/noap-backend/internal/auth"
	apperrors "github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/model"
	"github.com/Samocology/noap-backend/internal/repository"
)

// DefaultOTPTTL is how long an issued code stays valid.
const DefaultOTPTTL = 10 * time.Minute

const (
	otpMin   = 100000
	otpRange = 900000
)

// OTPService issues and verifies one-time email verification codes.
type OTPService interface {
	Issue(ctx context.Context, principal model.Principal) (string, error)
	Verify(ctx context.Context, kind model.Kind, email, code string) (model.Principal, error)
	WithRepository(repo repository.PrincipalRepository) OTPService
}

// OTPOption customises the OTP service.
type OTPOption func(*otpService)

// WithOTPClock overrides the time source.
func WithOTPClock(now func() time.Time) OTPOption {
	return func(s *otpService) { s.now = now }
}

// WithOTPRandom overrides the randomness source used to draw codes.
func WithOTPRandom(r io.Reader) OTPOption {
	return func(s *otpService) { s.random = r }
}

// WithOTPTTL overrides the validity window.
func WithOTPTTL(ttl time.Duration) OTPOption {
	return func(s *otpService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

type otpService struct {
	principalRepo repository.PrincipalRepository
	identities    auth.IdentityStoreInterface
	logger        *slog.Logger
	ttl           time.Duration
	now           func() time.Time
	random        io.Reader
}

// NewOTPService creates a new OTP service.
func NewOTPService(principalRepo repository.PrincipalRepository, identities auth.IdentityStoreInterface, logger *slog.Logger, opts ...OTPOption) OTPService {
	s := &otpService{
		principalRepo: principalRepo,
		identities:    identities,
		logger:        logger,
		ttl:           DefaultOTPTTL,
		now:           time.Now,
		random:        rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *otpService) WithRepository(repo repository.PrincipalRepository) OTPService {
	clone := *s
	clone.principalRepo = repo
	return &clone
}

func (s *otpService) generate() (string, error) {
	n, err := rand.Int(s.random, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("draw otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// Issue draws a fresh code for principal, replacing any pending one, and
// returns it for dispatch.
func (s *otpService) Issue(ctx context.Context, principal model.Principal) (string, error) {
	creds := principal.Creds()
	if creds.Verified {
		return "", apperrors.ErrAlreadyVerified
	}
	code, err := s.generate()
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(s.ttl)

	if err := s.principalRepo.SetOTP(ctx, principal.PrincipalKind(), principal.PrincipalID(), code, expiresAt); err != nil {
		// The row exists, so a miss means it was verified concurrently.
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.ErrAlreadyVerified
		}
		return "", storageError("store otp", err)
	}
	creds.SetOTP(code, expiresAt)
	return code, nil
}

// Verify checks code against the pending one for email. Every failure,
// including an unknown email, is reported as ErrInvalidOrExpiredOTP.
func (s *otpService) Verify(ctx context.Context, kind model.Kind, email, code string) (model.Principal, error) {
	principal, err := s.principalRepo.FindByEmail(ctx, kind, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidOrExpiredOTP
		}
		return nil, storageError("find principal", err)
	}

	creds := principal.Creds()
	now := s.now()
	if creds.Verified || !creds.HasPendingOTP() {
		return nil, apperrors.ErrInvalidOrExpiredOTP
	}
	if subtle.ConstantTimeCompare([]byte(*creds.OTPCode), []byte(code)) != 1 {
		return nil, apperrors.ErrInvalidOrExpiredOTP
	}
	if !now.Before(*creds.OTPExpiresAt) {
		return nil, apperrors.ErrInvalidOrExpiredOTP
	}

	consumed, err := s.principalRepo.ConsumeOTP(ctx, kind, principal.PrincipalID(), code, now)
	if err != nil {
		return nil, storageError("consume otp", err)
	}
	if !consumed {
		return nil, apperrors.ErrInvalidOrExpiredOTP
	}

	creds.Verified = true
	creds.ClearOTP()
	if err := s.identities.InvalidateIdentity(ctx, kind, principal.PrincipalID()); err != nil {
		s.logger.Warn("invalidate identity failed", slog.String("error", err.Error()))
	}
	s.logger.Info("principal verified",
		slog.String("kind", string(kind)),
		slog.String("id", principal.PrincipalID().String()))
	return principal, nil
}
