package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// PurposeSession marks tokens returned by login and OTP verification.
	PurposeSession = "session"
	// PurposePasswordReset marks tokens mailed by the password reset flow.
	PurposePasswordReset = "password_reset"
)

// ErrInvalidToken is returned for every token that cannot be trusted.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents JWT claims.
type Claims struct {
	Role    string `json:"role"`
	Purpose string `json:"purpose"`

	// Fingerprint ties a reset token to the password hash it was issued against.
	Fingerprint string `json:"fpr,omitempty"`
	jwt.RegisteredClaims
}

// PasswordFingerprint derives a short stable digest of a password hash. It
// changes whenever the password does.
func PasswordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:12])
}

// TokenService signs and parses HS256 tokens. The active key signs; retired
// keys stay in the ring so tokens issued before a rotation keep validating.
type TokenService struct {
	keyID  string
	keys   map[string][]byte
	issuer string
	now    func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithPreviousKeys adds retired verification keys addressed by key id.
func WithPreviousKeys(keys map[string]string) TokenOption {
	return func(s *TokenService) {
		for kid, secret := range keys {
			if kid == "" || secret == "" || kid == s.keyID {
				continue
			}
			s.keys[kid] = []byte(secret)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService creates a token service signing with secret under keyID.
func NewTokenService(secret, keyID, issuer string, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if keyID == "" {
		keyID = "default"
	}
	s := &TokenService{
		keyID:  keyID,
		keys:   map[string][]byte{keyID: []byte(secret)},
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign issues a token for subject. A zero ttl produces a token without expiry.
func (s *TokenService) Sign(subject uuid.UUID, role, purpose string, ttl time.Duration) (string, error) {
	return s.sign(&Claims{Role: role, Purpose: purpose}, subject, ttl)
}

// SignReset issues a password reset token bound to fingerprint.
func (s *TokenService) SignReset(subject uuid.UUID, role, fingerprint string, ttl time.Duration) (string, error) {
	return s.sign(&Claims{Role: role, Purpose: PurposePasswordReset, Fingerprint: fingerprint}, subject, ttl)
}

func (s *TokenService) sign(claims *Claims, subject uuid.UUID, ttl time.Duration) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:  subject.String(),
		Issuer:   s.issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.keys[s.keyID])
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates signature, issuer, expiry and purpose and returns the claims.
func (s *TokenService) Parse(tokenString, purpose string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, s.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: unexpected purpose %q", ErrInvalidToken, claims.Purpose)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}
	return claims, nil
}

func (s *TokenService) keyFunc(token *jwt.Token) (interface{}, error) {
	kid, _ := token.Header["kid"].(string)
	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return key, nil
}
