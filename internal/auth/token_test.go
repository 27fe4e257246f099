package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, opts ...TokenOption) *TokenService {
	t.Helper()
	svc, err := NewTokenService("test-secret", "k1", "noap", opts...)
	require.NoError(t, err)
	return svc
}

func TestTokenService_SignAndParse(t *testing.T) {
	svc := newTestTokenService(t)
	id := uuid.New()

	token, err := svc.Sign(id, "member", PurposeSession, 0)
	require.NoError(t, err)

	claims, err := svc.Parse(token, PurposeSession)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.Subject)
	assert.Equal(t, "member", claims.Role)
	assert.Equal(t, "noap", claims.Issuer)
	assert.Nil(t, claims.ExpiresAt)
}

func TestTokenService_RejectsTamperedPayload(t *testing.T) {
	svc := newTestTokenService(t)
	token, err := svc.Sign(uuid.New(), "member", PurposeSession, 0)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	forged := strings.Replace(string(payload), `"role":"member"`, `"role":"admin"`, 1)
	require.NotEqual(t, string(payload), forged)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = svc.Parse(strings.Join(parts, "."), PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_ParseFailures(t *testing.T) {
	svc := newTestTokenService(t)
	id := uuid.New()

	resetToken, err := svc.Sign(id, "member", PurposePasswordReset, time.Hour)
	require.NoError(t, err)

	other, err := NewTokenService("other-secret", "k1", "noap")
	require.NoError(t, err)
	foreign, err := other.Sign(id, "member", PurposeSession, 0)
	require.NoError(t, err)

	wrongIssuer, err := NewTokenService("test-secret", "k1", "someone-else")
	require.NoError(t, err)
	misissued, err := wrongIssuer.Sign(id, "member", PurposeSession, 0)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: "admin", Purpose: PurposeSession,
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.String(), Issuer: "noap"}})
	none.Header["kid"] = "k1"
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"reset token used as session", resetToken},
		{"signed with another secret", foreign},
		{"wrong issuer", misissued},
		{"alg none", unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Parse(tt.token, PurposeSession)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenService_ResetTokenExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := newTestTokenService(t, WithClock(clock))

	token, err := svc.Sign(uuid.New(), "school", PurposePasswordReset, time.Hour)
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	_, err = svc.Parse(token, PurposePasswordReset)
	require.NoError(t, err)

	_, err = svc.Parse(token, PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)

	now = now.Add(2 * time.Minute)
	_, err = svc.Parse(token, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_KeyRotation(t *testing.T) {
	old := newTestTokenService(t)
	token, err := old.Sign(uuid.New(), "admin", PurposeSession, 0)
	require.NoError(t, err)

	rotated, err := NewTokenService("new-secret", "k2", "noap", WithPreviousKeys(map[string]string{"k1": "test-secret"}))
	require.NoError(t, err)
	_, err = rotated.Parse(token, PurposeSession)
	assert.NoError(t, err)

	fresh, err := rotated.Sign(uuid.New(), "admin", PurposeSession, 0)
	require.NoError(t, err)
	_, err = old.Parse(fresh, PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)

	dropped, err := NewTokenService("new-secret", "k2", "noap")
	require.NoError(t, err)
	_, err = dropped.Parse(token, PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenService_RequiresSecret(t *testing.T) {
	_, err := NewTokenService("", "k1", "noap")
	assert.Error(t, err)
}

func TestTokenService_SignResetCarriesFingerprint(t *testing.T) {
	svc := newTestTokenService(t)
	fp := PasswordFingerprint("$2a$10$abcdefghijklmnopqrstuv")

	token, err := svc.SignReset(uuid.New(), "member", fp, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Parse(token, PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, fp, claims.Fingerprint)
	assert.NotNil(t, claims.ExpiresAt)

	_, err = svc.Parse(token, PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordFingerprint(t *testing.T) {
	a := PasswordFingerprint("$2a$10$first")
	assert.Len(t, a, 24)
	assert.Equal(t, a, PasswordFingerprint("$2a$10$first"))
	assert.NotEqual(t, a, PasswordFingerprint("$2a$10$second"))
}
