package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"

	"github.com/Samocology/noap-backend/docs"
	"github.com/Samocology/noap-backend/internal/auth"
	"github.com/Samocology/noap-backend/internal/config"
	"github.com/Samocology/noap-backend/internal/handler"
	"github.com/Samocology/noap-backend/internal/logging"
	"github.com/Samocology/noap-backend/internal/mail/mailtest"
	"github.com/Samocology/noap-backend/internal/metrics"
	"github.com/Samocology/noap-backend/internal/model"
	"github.com/Samocology/noap-backend/internal/repository/repotest"
	"github.com/Samocology/noap-backend/internal/service"
)

type testServer struct {
	e      *echo.Echo
	repo   *repotest.PrincipalRepository
	roles  service.RoleRegistry
	mailer *mailtest.Recorder
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := logging.Discard()
	repo := repotest.NewPrincipalRepository()
	roles := service.NewRoleRegistry(repotest.NewRoleRepository())
	identities := auth.NewIdentityStore(nil)
	mailer := &mailtest.Recorder{}

	tokens, err := auth.NewTokenService("router-secret", "k1", "noap")
	require.NoError(t, err)

	credentials := service.NewCredentialStore(repo, roles, auth.NewHasher(auth.MinHashCost, 2), identities, logger)
	otp := service.NewOTPService(repo, identities, logger)
	sessions := service.NewSessionService(tokens, credentials, service.DefaultResetTTL)
	authService := service.NewAuthService(service.AuthDependencies{
		Principals:  repo,
		Roles:       roles,
		Credentials: credentials,
		OTP:         otp,
		Sessions:    sessions,
		Identities:  identities,
		Mailer:      mailer,
		Metrics:     metrics.New(),
		Logger:      logger,
	}, service.AuthConfig{ResetURLBase: "https://app.noap.org/reset-password"})

	e := echo.New()
	Register(e, Dependencies{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics.New(),
		Sessions:    sessions,
		AuthHandler: handler.NewAuthHandler(authService),
		UserHandler: handler.NewUserHandler(roles),
	})
	return &testServer{e: e, repo: repo, roles: roles, mailer: mailer}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func (s *testServer) seedAdmin(t *testing.T, email, password string) {
	t.Helper()
	role, err := s.roles.FindOrCreate(context.Background(), model.RoleAdmin)
	require.NoError(t, err)
	s.repo.Put(&model.Admin{
		Name:        "Root",
		Credentials: model.Credentials{Email: email, PasswordHash: password, RoleID: role.ID, Verified: true},
	})
}

func TestSchoolOnboarding(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/auth/school/signup",
		`{"name":"Acme Academy","password":"pw1","contact":{"email":"Office@Acme.edu","phone":"+2348000000000","address":{"city":"Lagos"}}}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "OTP sent to your email. Please verify to complete registration.", body["message"])

	code := s.mailer.LastCode("office@acme.edu")
	require.Len(t, code, 6)

	rec, body = s.do(t, http.MethodPost, "/auth/school/verify-otp",
		`{"email":"office@acme.edu","otp":"`+code+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	school, _ := body["school"].(map[string]interface{})
	require.NotNil(t, school)
	assert.NotContains(t, school, "password")

	rec, body = s.do(t, http.MethodPost, "/auth/school/verify-otp",
		`{"email":"office@acme.edu","otp":"`+code+`"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired OTP", body["error"])

	rec, body = s.do(t, http.MethodGet, "/auth/me", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "school", body["role"])
	assert.Equal(t, true, body["is_verified"])

	rec, body = s.do(t, http.MethodPost, "/auth/school/login", `{"email":"office@acme.edu","password":"pw1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["token"])
}

func TestSchoolSignupFlatFields(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/auth/school/signup",
		`{"name":"Flat School","password":"pw1","email":"flat@school.edu","phone":"123","city":"Abuja","tier":"premium"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	school, ok := s.repo.Get(model.KindSchool, "flat@school.edu").(*model.School)
	require.True(t, ok)
	assert.Equal(t, "Abuja", school.Address.City)
	assert.Equal(t, model.SchoolTier("premium"), school.Tier)
	assert.False(t, school.Verified)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		message string
	}{
		{"school without name", "/auth/school/signup", `{"password":"pw1","email":"a@b.co","phone":"1"}`, http.StatusBadRequest, "name is required"},
		{"school without phone", "/auth/school/signup", `{"name":"A","password":"pw1","email":"a@b.co"}`, http.StatusBadRequest, "Phone number is required"},
		{"school without email", "/auth/school/signup", `{"name":"A","password":"pw1","phone":"1"}`, http.StatusBadRequest, "Email is required"},
		{"school bad tier", "/auth/school/signup", `{"name":"A","password":"pw1","email":"a@b.co","phone":"1","tier":"gold"}`, http.StatusBadRequest, "tier must be one of basic, premium, enterprise"},
		{"member bad email", "/auth/member/signup", `{"name":"M","email":"nope","password":"pw1"}`, http.StatusBadRequest, "email must be a valid email address"},
		{"member bad school id", "/auth/member/signup", `{"name":"M","email":"m@b.co","password":"pw1","school_id":"nope"}`, http.StatusBadRequest, "school_id must be a valid UUID"},
		{"login without password", "/auth/member/login", `{"email":"m@b.co"}`, http.StatusBadRequest, "password is required"},
		{"malformed code", "/auth/member/verify-otp", `{"email":"m@b.co","otp":"12ab"}`, http.StatusBadRequest, "Invalid or expired OTP"},
		{"malformed json", "/auth/member/login", `{"email":`, http.StatusBadRequest, "invalid request body"},
		{"unknown email for otp", "/auth/school/send-otp", `{"email":"ghost@b.co"}`, http.StatusNotFound, "user not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, tt.path, tt.body, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, body["error"])
		})
	}
}

func TestRoleGate(t *testing.T) {
	s := newTestServer(t)
	s.seedAdmin(t, "root@noap.org", "s3cret")

	rec, _ := s.do(t, http.MethodPost, "/auth/member/signup", `{"name":"Jane","email":"jane@x.com","password":"pw1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	_, body := s.do(t, http.MethodPost, "/auth/member/login", `{"email":"jane@x.com","password":"pw1"}`, "")
	memberToken, _ := body["token"].(string)
	require.NotEmpty(t, memberToken)

	_, body = s.do(t, http.MethodPost, "/auth/admin/login", `{"email":"root@noap.org","password":"s3cret"}`, "")
	adminToken, _ := body["token"].(string)
	require.NotEmpty(t, adminToken)
	assert.Contains(t, body, "admin")

	rec, _ = s.do(t, http.MethodGet, "/user-roles", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/user-roles", "", memberToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACCESS_DENIED", body["code"])

	rec, _ = s.do(t, http.MethodGet, "/user-roles", "", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var roles []model.Role
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roles))
	assert.Len(t, roles, 2)

	rec, _ = s.do(t, http.MethodGet, "/auth/me", "", memberToken+"x")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

var resetLink = regexp.MustCompile(`reset-password/([A-Za-z0-9_\-.]+)`)

func TestPasswordReset(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodPost, "/auth/member/signup", `{"name":"Jane","email":"jane@x.com","password":"old"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := s.do(t, http.MethodPost, "/auth/password-reset", `{"email":"jane@x.com"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password reset email sent", body["message"])

	msg, ok := s.mailer.Last("jane@x.com")
	require.True(t, ok)
	assert.Equal(t, "Password Reset", msg.Subject)
	match := resetLink.FindStringSubmatch(msg.Body)
	require.Len(t, match, 2)

	rec, _ = s.do(t, http.MethodGet, "/auth/me", "", match[1])
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "reset tokens are not sessions")

	rec, _ = s.do(t, http.MethodPost, "/auth/password-reset/confirm", `{"token":"`+match[1]+`","password":"new"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = s.do(t, http.MethodPost, "/auth/member/login", `{"email":"jane@x.com","password":"old"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/auth/member/login", `{"email":"jane@x.com","password":"new"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/auth/password-reset/confirm", `{"token":"`+match[1]+`","password":"again"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "reset tokens are single use")

	rec, body = s.do(t, http.MethodPost, "/auth/password-reset", `{"email":"nobody@x.com"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.do(t, http.MethodPost, "/auth/member/login", `{"email":"x@y.co","password":"p"}`, "")
	rec, _ = s.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="POST",path="/auth/member/login",status="401"} 1`)
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.AuthRateLimit = 1 })

	rec, _ := s.do(t, http.MethodPost, "/auth/member/login", `{"email":"x@y.co","password":"p"}`, "")
	assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)

	rec, body := s.do(t, http.MethodPost, "/auth/member/login", `{"email":"x@y.co","password":"p"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too many requests", body["error"])
	assert.Equal(t, "TOO_MANY_REQUESTS", body["code"])

	rec, _ = s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code, "only /auth is limited")
}

func TestRoutesAreDocumented(t *testing.T) {
	s := newTestServer(t)
	raw, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	require.NoError(t, err)
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	undocumented := map[string]bool{"/healthz": true, "/metrics": true, "/swagger/*": true}
	for _, r := range s.e.Routes() {
		if undocumented[r.Path] || strings.HasPrefix(r.Method, "echo_") {
			continue
		}
		assert.Contains(t, doc.Paths[r.Path], strings.ToLower(r.Method), r.Method+" "+r.Path)
	}
}
