package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Samocology/noap-backend/internal/auth"
	"github.com/Samocology/noap-backend/internal/cache"
	"github.com/Samocology/noap-backend/internal/logging"
	"github.com/Samocology/noap-backend/internal/mail"
	"github.com/Samocology/noap-backend/internal/mail/mailtest"
	"github.com/Samocology/noap-backend/internal/metrics"
	"github.com/Samocology/noap-backend/internal/model"
	"github.com/Samocology/noap-backend/internal/repository/repotest"
)

const resetURLBase = "https://app.noap.org/reset-password"

// MockDispatcher is a mock implementation of mail.Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type harness struct {
	now        time.Time
	repo       *repotest.PrincipalRepository
	roleRepo   *repotest.RoleRepository
	redis      *miniredis.Miniredis
	identities *auth.IdentityStore
	tokens     *auth.TokenService
	mailer     *mailtest.Recorder
	metrics    *metrics.Metrics

	roles       RoleRegistry
	credentials CredentialStore
	otp         OTPService
	sessions    SessionService
	svc         AuthService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	cfg        AuthConfig
	dispatcher mail.Dispatcher
	otpOpts    []OTPOption
}

func withCooldown(d time.Duration) harnessOption {
	return func(c *harnessConfig) { c.cfg.OTPResendCooldown = d }
}

func withDispatcher(d mail.Dispatcher) harnessOption {
	return func(c *harnessConfig) { c.dispatcher = d }
}

func withOTPOptions(opts ...OTPOption) harnessOption {
	return func(c *harnessConfig) { c.otpOpts = append(c.otpOpts, opts...) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		now:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		repo:     repotest.NewPrincipalRepository(),
		roleRepo: repotest.NewRoleRepository(),
		redis:    miniredis.RunT(t),
		mailer:   &mailtest.Recorder{},
		metrics:  metrics.New(),
	}
	clock := func() time.Time { return h.now }

	hc := &harnessConfig{cfg: AuthConfig{OTPTTL: DefaultOTPTTL, ResetURLBase: resetURLBase}, dispatcher: h.mailer}
	for _, opt := range opts {
		opt(hc)
	}

	client := cache.New(h.redis.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	h.identities = auth.NewIdentityStore(client)

	tokens, err := auth.NewTokenService("test-secret", "k1", "noap", auth.WithClock(clock))
	require.NoError(t, err)
	h.tokens = tokens

	logger := logging.Discard()
	hasher := auth.NewHasher(auth.MinHashCost, 4)
	h.roles = NewRoleRegistry(h.roleRepo)
	h.credentials = NewCredentialStore(h.repo, h.roles, hasher, h.identities, logger)
	h.otp = NewOTPService(h.repo, h.identities, logger, append([]OTPOption{WithOTPClock(clock)}, hc.otpOpts...)...)
	h.sessions = NewSessionService(tokens, h.credentials, DefaultResetTTL)
	h.svc = NewAuthService(AuthDependencies{
		Principals:  h.repo,
		Roles:       h.roles,
		Credentials: h.credentials,
		OTP:         h.otp,
		Sessions:    h.sessions,
		Identities:  h.identities,
		Mailer:      hc.dispatcher,
		Metrics:     h.metrics,
		Logger:      logger,
	}, hc.cfg)
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *harness) signupSchool(t *testing.T, email string) *model.School {
	t.Helper()
	school, err := h.svc.SignupSchool(context.Background(), SchoolSignup{
		Name:     "Acme",
		Email:    email,
		Phone:    "123",
		Password: "pw1",
	})
	require.NoError(t, err)
	return school
}

func (h *harness) seedAdmin(t *testing.T, email, password string) *model.Admin {
	t.Helper()
	role, err := h.roles.FindOrCreate(context.Background(), model.RoleAdmin)
	require.NoError(t, err)
	admin := &model.Admin{
		Name:        "Root",
		Credentials: model.Credentials{Email: email, PasswordHash: password, RoleID: role.ID, Verified: true},
	}
	h.repo.Put(admin)
	return admin
}
