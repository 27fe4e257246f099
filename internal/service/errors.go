package service

import (
	"errors"
	"fmt"

	apperrors "github.com/Samocology/noap-backend/internal/errors"
)

var domainErrors = []error{
	apperrors.ErrValidation,
	apperrors.ErrDuplicateEmail,
	apperrors.ErrInvalidCredentials,
	apperrors.ErrAuthenticationFailed,
	apperrors.ErrAuthorizationDenied,
	apperrors.ErrNotFound,
	apperrors.ErrInvalidOrExpiredOTP,
	apperrors.ErrAlreadyVerified,
	apperrors.ErrTooManyRequests,
	apperrors.ErrDependencyUnavailable,
}

// storageError passes domain errors through and marks anything else as a
// dependency failure.
func storageError(op string, err error) error {
	for _, kind := range domainErrors {
		if errors.Is(err, kind) {
			return err
		}
	}
	return apperrors.Unavailable(fmt.Errorf("%s: %w", op, err))
}
