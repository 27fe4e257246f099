package router

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"github.com/Samocology/noap-backend/internal/config"
	"github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/handler"
	authmw "github.com/Samocology/noap-backend/internal/middleware"
	"github.com/Samocology/noap-backend/internal/metrics"
	"github.com/Samocology/noap-backend/internal/model"
)

// Dependencies are the collaborators Register wires into routes.
type Dependencies struct {
	Config      *config.Config
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Sessions    authmw.TokenValidator
	AuthHandler *handler.AuthHandler
	UserHandler *handler.UserHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, deps Dependencies) {
	e.HideBanner = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = errorHandler(deps.Logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(requestLogger(deps.Logger))
	e.Use(deps.Metrics.Middleware())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	authGroup := e.Group("/auth")
	if deps.Config != nil && deps.Config.AuthRateLimit > 0 {
		authGroup.Use(rateLimiter(deps.Config.AuthRateLimit))
	}

	school := authGroup.Group("/school")
	school.POST("/signup", deps.AuthHandler.SchoolSignup)
	school.POST("/send-otp", deps.AuthHandler.SchoolSendOTP)
	school.POST("/resend-otp", deps.AuthHandler.SchoolResendOTP)
	school.POST("/verify-otp", deps.AuthHandler.SchoolVerifyOTP)
	school.POST("/login", deps.AuthHandler.SchoolLogin)

	member := authGroup.Group("/member")
	member.POST("/signup", deps.AuthHandler.MemberSignup)
	member.POST("/resend-otp", deps.AuthHandler.MemberResendOTP)
	member.POST("/verify-otp", deps.AuthHandler.MemberVerifyOTP)
	member.POST("/login", deps.AuthHandler.MemberLogin)

	authGroup.POST("/admin/login", deps.AuthHandler.AdminLogin)
	authGroup.POST("/password-reset", deps.AuthHandler.PasswordReset)
	authGroup.POST("/password-reset/confirm", deps.AuthHandler.PasswordResetConfirm)

	// Secured routes
	authenticate := authmw.Authenticate(deps.Sessions)
	authGroup.GET("/me", deps.UserHandler.Me, authenticate)
	e.GET("/user-roles", deps.UserHandler.ListRoles, authenticate, authmw.RequireRole(model.RoleAdmin))
}

// rateLimiter allows perSecond requests per client IP, with a burst of the same size.
func rateLimiter(perSecond float64) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(perSecond)),
		ErrorHandler: func(c echo.Context, err error) error {
			return errors.ToEcho(errors.ErrAuthorizationDenied)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return errors.ToEcho(errors.ErrTooManyRequests)
		},
	})
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

// errorHandler renders every error as an errors.ErrorResponse body.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if !stderrors.As(err, &he) {
			he = errors.ToEcho(err)
		}
		body, ok := he.Message.(errors.ErrorResponse)
		if !ok {
			body = errors.ErrorResponse{Error: fmt.Sprint(he.Message)}
		}
		if he.Code >= http.StatusInternalServerError && he.Internal != nil {
			logger.Error("request failed",
				slog.String("path", c.Path()),
				slog.String("error", he.Internal.Error()))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(he.Code)
		} else {
			err = c.JSON(he.Code, body)
		}
		if err != nil {
			logger.Error("write error response", slog.String("error", err.Error()))
		}
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface. The first failing field becomes
// a validation error carrying a readable message.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Validation(err.Error())
	}
	return errors.Validation(fieldMessage(fieldErrs[0]))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "len":
		return fmt.Sprintf("%s must be %s characters long", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
