package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/model"
	"github.com/Samocology/noap-backend/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// AddressRequest is a postal address.
type AddressRequest struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode"`
}

func (a *AddressRequest) toModel() model.Address {
	if a == nil {
		return model.Address{}
	}
	return model.Address{Street: a.Street, City: a.City, State: a.State, Country: a.Country, ZipCode: a.ZipCode}
}

// ContactRequest groups the contact details of a school.
type ContactRequest struct {
	Email   string          `json:"email" validate:"omitempty,email"`
	Phone   string          `json:"phone"`
	Address *AddressRequest `json:"address"`
}

// SchoolSignupRequest represents a school registration. Contact details may be
// sent nested under contact or as flat fields.
type SchoolSignupRequest struct {
	Name     string          `json:"name" validate:"required"`
	Password string          `json:"password" validate:"required"`
	Contact  *ContactRequest `json:"contact"`
	Email    string          `json:"email" validate:"omitempty,email"`
	Phone    string          `json:"phone"`
	Tier     string          `json:"tier" validate:"omitempty,oneof=basic premium enterprise"`
	Status   string          `json:"status" validate:"omitempty,oneof=active inactive suspended"`
	AddressRequest
}

func (r *SchoolSignupRequest) toInput() service.SchoolSignup {
	in := service.SchoolSignup{
		Name:     r.Name,
		Email:    r.Email,
		Phone:    r.Phone,
		Password: r.Password,
		Tier:     model.SchoolTier(r.Tier),
		Status:   model.SchoolStatus(r.Status),
		Address:  r.AddressRequest.toModel(),
	}
	if r.Contact != nil {
		if r.Contact.Email != "" {
			in.Email = r.Contact.Email
		}
		if r.Contact.Phone != "" {
			in.Phone = r.Contact.Phone
		}
		if r.Contact.Address != nil {
			in.Address = r.Contact.Address.toModel()
		}
	}
	return in
}

// MemberSignupRequest represents a member registration.
type MemberSignupRequest struct {
	Name     string          `json:"name" validate:"required"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required"`
	Phone    string          `json:"phone"`
	SchoolID string          `json:"school_id"`
	Address  *AddressRequest `json:"address"`
}

// EmailRequest carries only an email address.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyOTPRequest represents an OTP submission.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PasswordResetConfirmRequest sets a new password with a mailed token.
type PasswordResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// MessageResponse is returned by flows that end in an email.
type MessageResponse struct {
	Message string `json:"message"`
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.ToEcho(errors.Validation("invalid request body"))
	}
	if err := c.Validate(req); err != nil {
		return errors.ToEcho(err)
	}
	return nil
}

func sessionResponse(result *service.AuthResult) echo.Map {
	return echo.Map{
		string(result.Principal.PrincipalKind()): result.Principal,
		"token":                                  result.Token,
	}
}

// SchoolSignup godoc
// @Summary Register a school
// @Description Creates an unverified school and emails it a 6 digit code valid for 10 minutes.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SchoolSignupRequest true "School registration"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/school/signup [post]
func (h *AuthHandler) SchoolSignup(c echo.Context) error {
	var req SchoolSignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	in := req.toInput()
	if strings.TrimSpace(in.Email) == "" {
		return errors.ToEcho(errors.Validation("Email is required"))
	}

	if _, err := h.authService.SignupSchool(c.Request().Context(), in); err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusCreated, MessageResponse{
		Message: "OTP sent to your email. Please verify to complete registration.",
	})
}

// SchoolSendOTP godoc
// @Summary Send a school verification code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "School email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/school/send-otp [post]
func (h *AuthHandler) SchoolSendOTP(c echo.Context) error {
	return h.sendOTP(c, model.KindSchool)
}

// SchoolResendOTP godoc
// @Summary Resend a school verification code
// @Description Replaces the pending code; the previous one stops working.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "School email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/school/resend-otp [post]
func (h *AuthHandler) SchoolResendOTP(c echo.Context) error {
	return h.sendOTP(c, model.KindSchool)
}

// SchoolVerifyOTP godoc
// @Summary Verify a school email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Email and code"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/school/verify-otp [post]
func (h *AuthHandler) SchoolVerifyOTP(c echo.Context) error {
	return h.verifyOTP(c, model.KindSchool)
}

// SchoolLogin godoc
// @Summary School login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/school/login [post]
func (h *AuthHandler) SchoolLogin(c echo.Context) error {
	return h.login(c, model.KindSchool)
}

// MemberSignup godoc
// @Summary Register a member
// @Description Creates an unverified member and emails it a 6 digit code.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body MemberSignupRequest true "Member registration"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/member/signup [post]
func (h *AuthHandler) MemberSignup(c echo.Context) error {
	var req MemberSignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	in := service.MemberSignup{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Address:  req.Address.toModel(),
	}
	if req.SchoolID != "" {
		id, err := uuid.Parse(req.SchoolID)
		if err != nil {
			return errors.ToEcho(errors.Validation("school_id must be a valid UUID"))
		}
		in.SchoolID = &id
	}

	member, err := h.authService.SignupMember(c.Request().Context(), in)
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "OTP sent to your email. Please verify to complete registration.",
		"member":  member,
	})
}

// MemberResendOTP godoc
// @Summary Resend a member verification code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Member email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/member/resend-otp [post]
func (h *AuthHandler) MemberResendOTP(c echo.Context) error {
	return h.sendOTP(c, model.KindMember)
}

// MemberVerifyOTP godoc
// @Summary Verify a member email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Email and code"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/member/verify-otp [post]
func (h *AuthHandler) MemberVerifyOTP(c echo.Context) error {
	return h.verifyOTP(c, model.KindMember)
}

// MemberLogin godoc
// @Summary Member login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/member/login [post]
func (h *AuthHandler) MemberLogin(c echo.Context) error {
	return h.login(c, model.KindMember)
}

// AdminLogin godoc
// @Summary Admin login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/admin/login [post]
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	return h.login(c, model.KindAdmin)
}

// PasswordReset godoc
// @Summary Request a password reset
// @Description Emails a reset link valid for one hour to the member or school with this email.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Account email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/password-reset [post]
func (h *AuthHandler) PasswordReset(c echo.Context) error {
	var req EmailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Password reset email sent"})
}

// PasswordResetConfirm godoc
// @Summary Set a new password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body PasswordResetConfirmRequest true "Reset token and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/password-reset/confirm [post]
func (h *AuthHandler) PasswordResetConfirm(c echo.Context) error {
	var req PasswordResetConfirmRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.ConfirmPasswordReset(c.Request().Context(), req.Token, req.Password); err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Password has been reset"})
}

func (h *AuthHandler) sendOTP(c echo.Context, kind model.Kind) error {
	var req EmailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.SendOTP(c.Request().Context(), kind, req.Email); err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "OTP sent to your email"})
}

func (h *AuthHandler) verifyOTP(c echo.Context, kind model.Kind) error {
	var req VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return errors.ToEcho(errors.Validation("invalid request body"))
	}
	// A malformed code is just another wrong code.
	if err := c.Validate(&req); err != nil {
		return errors.ToEcho(errors.ErrInvalidOrExpiredOTP)
	}
	result, err := h.authService.VerifyOTP(c.Request().Context(), kind, req.Email, req.OTP)
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, sessionResponse(result))
}

func (h *AuthHandler) login(c echo.Context, kind model.Kind) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	result, err := h.authService.Login(c.Request().Context(), kind, req.Email, req.Password)
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, sessionResponse(result))
}
