package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/middleware"
	"github.com/Samocology/noap-backend/internal/service"
)

// UserHandler serves endpoints for the authenticated caller.
type UserHandler struct {
	roles service.RoleRegistry
}

// NewUserHandler creates a handler layer.
func NewUserHandler(roles service.RoleRegistry) *UserHandler {
	return &UserHandler{roles: roles}
}

// Me godoc
// @Summary Current identity
// @Description Returns the identity resolved from the bearer token.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} auth.Identity
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return errors.ToEcho(errors.ErrAuthenticationFailed)
	}
	return c.JSON(http.StatusOK, identity)
}

// ListRoles godoc
// @Summary List roles
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Role
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /user-roles [get]
func (h *UserHandler) ListRoles(c echo.Context) error {
	roles, err := h.roles.List(c.Request().Context())
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, roles)
}
