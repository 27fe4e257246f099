package middleware

import (
	"context"
	"errors"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Samocology/noap-backend/internal/auth"
	apperrors "github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/model"
)

// IdentityKey is the echo context key holding the authenticated auth.Identity.
const IdentityKey = "identity"

// TokenValidator resolves a bearer token to a live identity.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (auth.Identity, error)
}

// Authenticate requires a valid `Authorization: Bearer <token>` header. The
// resolved identity is stored on the echo context and on the request context.
func Authenticate(validator TokenValidator) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ContextKey:  IdentityKey,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			identity, err := validator.Validate(c.Request().Context(), token)
			if err != nil {
				return nil, err
			}
			return identity, nil
		},
		SuccessHandler: func(c echo.Context) {
			identity, ok := c.Get(IdentityKey).(auth.Identity)
			if !ok {
				return
			}
			req := c.Request()
			c.SetRequest(req.WithContext(auth.ContextWithIdentity(req.Context(), identity)))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if errors.Is(err, apperrors.ErrDependencyUnavailable) {
				return apperrors.ToEcho(err)
			}
			return apperrors.ToEcho(apperrors.ErrAuthenticationFailed)
		},
	})
}

// RequireRole lets the request through when the identity holds any of roles.
// It must run after Authenticate.
func RequireRole(roles ...model.RoleName) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := IdentityFrom(c)
			if !ok {
				return apperrors.ToEcho(apperrors.ErrAuthenticationFailed)
			}
			for _, role := range roles {
				if identity.Role == role {
					return next(c)
				}
			}
			return apperrors.ToEcho(apperrors.ErrAuthorizationDenied)
		}
	}
}

// IdentityFrom returns the identity placed by Authenticate.
func IdentityFrom(c echo.Context) (auth.Identity, bool) {
	if identity, ok := c.Get(IdentityKey).(auth.Identity); ok {
		return identity, true
	}
	return auth.IdentityFromContext(c.Request().Context())
}
