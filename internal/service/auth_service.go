package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Samocology/noap-backend/internal/auth"
	apperrors "github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/mail"
	"github.com/Samocology/noap-backend/internal/metrics"
	"github.com/Samocology/noap-backend/internal/model"
	"github.com/Samocology/noap-backend/internal/repository"
)

// SchoolSignup is the profile submitted when a school registers.
type SchoolSignup struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Tier     model.SchoolTier
	Status   model.SchoolStatus
	Address  model.Address
}

// MemberSignup is the profile submitted when a member registers.
type MemberSignup struct {
	Name     string
	Email    string
	Phone    string
	Password string
	SchoolID *uuid.UUID
	Address  model.Address
}

// AuthResult is returned by every flow that ends in a session.
type AuthResult struct {
	Principal model.Principal
	Token     string
}

// AuthConfig holds tunables of the auth flows.
type AuthConfig struct {
	OTPTTL            time.Duration
	OTPResendCooldown time.Duration
	ResetURLBase      string
}

// AuthService handles authentication operations.
type AuthService interface {
	SignupSchool(ctx context.Context, in SchoolSignup) (*model.School, error)
	SignupMember(ctx context.Context, in MemberSignup) (*model.Member, error)
	SendOTP(ctx context.Context, kind model.Kind, email string) error
	VerifyOTP(ctx context.Context, kind model.Kind, email, code string) (*AuthResult, error)
	Login(ctx context.Context, kind model.Kind, email, password string) (*AuthResult, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, password string) error
}

// AuthDependencies are the collaborators of the auth flows.
type AuthDependencies struct {
	Principals  repository.PrincipalRepository
	Roles       RoleRegistry
	Credentials CredentialStore
	OTP         OTPService
	Sessions    SessionService
	Identities  auth.IdentityStoreInterface
	Mailer      mail.Dispatcher
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

type authService struct {
	AuthDependencies
	cfg AuthConfig
}

// NewAuthService creates a new authentication service.
func NewAuthService(deps AuthDependencies, cfg AuthConfig) AuthService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = DefaultOTPTTL
	}
	return &authService{AuthDependencies: deps, cfg: cfg}
}

// SignupSchool registers an unverified school and mails it a code.
func (s *authService) SignupSchool(ctx context.Context, in SchoolSignup) (*model.School, error) {
	school := &model.School{
		Name:        strings.TrimSpace(in.Name),
		Phone:       strings.TrimSpace(in.Phone),
		Tier:        in.Tier,
		Status:      in.Status,
		Address:     in.Address,
		Credentials: model.Credentials{Email: in.Email},
	}
	err := s.validateSchool(school)
	if err == nil {
		err = s.signup(ctx, school, in.Password)
	}
	s.Metrics.Signup(string(model.KindSchool), err)
	if err != nil {
		return nil, err
	}
	return school, nil
}

func (s *authService) validateSchool(school *model.School) error {
	switch {
	case school.Name == "":
		return apperrors.Validation("School name is required")
	case school.Phone == "":
		return apperrors.Validation("Phone number is required")
	case school.Tier != "" && !school.Tier.Valid():
		return apperrors.Validation("tier must be one of basic, premium, enterprise")
	case school.Status != "" && !school.Status.Valid():
		return apperrors.Validation("status must be one of active, inactive, suspended")
	}
	return nil
}

// SignupMember registers an unverified member and mails it a code.
func (s *authService) SignupMember(ctx context.Context, in MemberSignup) (*model.Member, error) {
	member := &model.Member{
		Name:        strings.TrimSpace(in.Name),
		Phone:       strings.TrimSpace(in.Phone),
		SchoolID:    in.SchoolID,
		Address:     in.Address,
		Active:      true,
		Credentials: model.Credentials{Email: in.Email},
	}
	var err error
	if member.Name == "" {
		err = apperrors.Validation("name is required")
	} else {
		err = s.signup(ctx, member, in.Password)
	}
	s.Metrics.Signup(string(model.KindMember), err)
	if err != nil {
		return nil, err
	}
	return member, nil
}

// signup creates the principal and dispatches its first code in one
// transaction, so a failed dispatch leaves no record behind.
func (s *authService) signup(ctx context.Context, principal model.Principal, password string) error {
	return s.Principals.WithTransaction(ctx, func(ctx context.Context, tx repository.PrincipalRepository) error {
		if err := s.Credentials.WithRepository(tx).Register(ctx, principal, password); err != nil {
			return err
		}
		return s.issueAndDispatch(ctx, tx, principal)
	})
}

func (s *authService) issueAndDispatch(ctx context.Context, tx repository.PrincipalRepository, principal model.Principal) error {
	code, err := s.OTP.WithRepository(tx).Issue(ctx, principal)
	if err != nil {
		return err
	}
	subject, body := mail.OTPMessage(code, s.cfg.OTPTTL)
	if err := s.Mailer.Send(ctx, principal.Creds().Email, subject, body); err != nil {
		s.Logger.Error("otp dispatch failed",
			slog.String("kind", string(principal.PrincipalKind())),
			slog.String("id", principal.PrincipalID().String()),
			slog.String("error", err.Error()))
		return apperrors.Unavailable(fmt.Errorf("dispatch otp: %w", err))
	}
	s.Metrics.OTPIssued(string(principal.PrincipalKind()))
	return nil
}

// SendOTP issues a fresh code for an existing unverified principal. The
// previous code stops working once the new one is stored.
func (s *authService) SendOTP(ctx context.Context, kind model.Kind, email string) error {
	principal, err := s.Credentials.FindByEmail(ctx, kind, email)
	if err != nil {
		return err
	}
	if principal.Creds().Verified {
		return apperrors.ErrAlreadyVerified
	}

	allowed, err := s.Identities.AcquireOTPCooldown(ctx, kind, principal.Creds().Email, s.cfg.OTPResendCooldown)
	if err != nil {
		return storageError("acquire otp cooldown", err)
	}
	if !allowed {
		return apperrors.ErrTooManyRequests
	}

	err = s.Principals.WithTransaction(ctx, func(ctx context.Context, tx repository.PrincipalRepository) error {
		return s.issueAndDispatch(ctx, tx, principal)
	})
	if err != nil {
		if releaseErr := s.Identities.ReleaseOTPCooldown(ctx, kind, principal.Creds().Email); releaseErr != nil {
			s.Logger.Warn("release otp cooldown failed", slog.String("error", releaseErr.Error()))
		}
		return err
	}
	return nil
}

// VerifyOTP consumes a code and starts a session for the now verified principal.
func (s *authService) VerifyOTP(ctx context.Context, kind model.Kind, email, code string) (*AuthResult, error) {
	principal, err := s.OTP.Verify(ctx, kind, email, code)
	s.Metrics.OTPVerified(string(kind), err)
	if err != nil {
		return nil, err
	}
	return s.session(principal)
}

// Login checks credentials of a principal of kind and starts a session.
func (s *authService) Login(ctx context.Context, kind model.Kind, email, password string) (*AuthResult, error) {
	result, err := s.login(ctx, kind, email, password)
	s.Metrics.Login(string(kind), err)
	return result, err
}

func (s *authService) login(ctx context.Context, kind model.Kind, email, password string) (*AuthResult, error) {
	principal, err := s.Credentials.Authenticate(ctx, kind, email, password)
	if err != nil {
		return nil, err
	}

	if kind == model.KindAdmin {
		role, err := s.Roles.FindOrCreate(ctx, model.RoleAdmin)
		if err != nil {
			return nil, err
		}
		if principal.Creds().RoleID != role.ID {
			s.Logger.Warn("admin login without admin role", slog.String("id", principal.PrincipalID().String()))
			return nil, apperrors.ErrInvalidCredentials
		}
	}
	return s.session(principal)
}

func (s *authService) session(principal model.Principal) (*AuthResult, error) {
	token, err := s.Sessions.Issue(principal.PrincipalID(), model.RoleFor(principal.PrincipalKind()))
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &AuthResult{Principal: principal, Token: token}, nil
}

// resetKinds lists who may reset a password by email, in lookup order.
var resetKinds = []model.Kind{model.KindMember, model.KindSchool}

// RequestPasswordReset mails a one hour reset link to the member or school
// registered under email.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	err := s.requestPasswordReset(ctx, email)
	s.Metrics.PasswordReset("request", err)
	return err
}

func (s *authService) requestPasswordReset(ctx context.Context, email string) error {
	var principal model.Principal
	for _, kind := range resetKinds {
		p, err := s.Credentials.FindByEmail(ctx, kind, email)
		if err == nil {
			principal = p
			break
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
	}
	if principal == nil {
		return apperrors.ErrNotFound
	}

	token, err := s.Sessions.IssueReset(principal)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	link := strings.TrimRight(s.cfg.ResetURLBase, "/") + "/" + token
	subject, body := mail.PasswordResetMessage(link)
	if err := s.Mailer.Send(ctx, principal.Creds().Email, subject, body); err != nil {
		s.Logger.Error("password reset dispatch failed",
			slog.String("id", principal.PrincipalID().String()),
			slog.String("error", err.Error()))
		return apperrors.Unavailable(fmt.Errorf("dispatch reset: %w", err))
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a reset token.
func (s *authService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	err := s.confirmPasswordReset(ctx, token, password)
	s.Metrics.PasswordReset("confirm", err)
	return err
}

func (s *authService) confirmPasswordReset(ctx context.Context, token, password string) error {
	identity, err := s.Sessions.ValidateReset(ctx, token)
	if err != nil {
		return err
	}
	if err := s.Credentials.ResetPassword(ctx, identity.Kind, identity.ID, password); err != nil {
		return err
	}
	s.Logger.Info("password reset", slog.String("kind", string(identity.Kind)), slog.String("id", identity.ID.String()))
	return nil
}
