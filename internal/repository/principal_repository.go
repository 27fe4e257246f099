package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/model"
)

// PrincipalRepository defines persistence operations shared by admins, members and schools.
type PrincipalRepository interface {
	Create(ctx context.Context, principal model.Principal) error
	Save(ctx context.Context, principal model.Principal) error
	FindByID(ctx context.Context, kind model.Kind, id uuid.UUID) (model.Principal, error)
	FindByEmail(ctx context.Context, kind model.Kind, email string) (model.Principal, error)
	SetOTP(ctx context.Context, kind model.Kind, id uuid.UUID, code string, expiresAt time.Time) error
	ConsumeOTP(ctx context.Context, kind model.Kind, id uuid.UUID, code string, now time.Time) (bool, error)
	UpdatePassword(ctx context.Context, kind model.Kind, id uuid.UUID, passwordHash string) error
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo PrincipalRepository) error) error
}

type principalRepository struct {
	db *gorm.DB
}

// NewPrincipalRepository builds a GORM-backed repository.
func NewPrincipalRepository(db *gorm.DB) PrincipalRepository {
	return &principalRepository{db: db}
}

// Create inserts a principal. The unique email index is the authoritative
// duplicate guard; its violation maps to ErrDuplicateEmail.
func (r *principalRepository) Create(ctx context.Context, principal model.Principal) error {
	if err := r.db.WithContext(ctx).Create(principal).Error; err != nil {
		return translate(err)
	}
	return nil
}

// Save persists every column of an existing principal.
func (r *principalRepository) Save(ctx context.Context, principal model.Principal) error {
	if err := r.db.WithContext(ctx).Save(principal).Error; err != nil {
		return translate(err)
	}
	return nil
}

// FindByID finds a principal of the given kind by ID.
func (r *principalRepository) FindByID(ctx context.Context, kind model.Kind, id uuid.UUID) (model.Principal, error) {
	dest := model.New(kind)
	if dest == nil {
		return nil, apperrors.ErrNotFound
	}
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(dest).Error; err != nil {
		return nil, translate(err)
	}
	return dest, nil
}

// FindByEmail finds a principal of the given kind by its normalised email.
func (r *principalRepository) FindByEmail(ctx context.Context, kind model.Kind, email string) (model.Principal, error) {
	dest := model.New(kind)
	if dest == nil {
		return nil, apperrors.ErrNotFound
	}
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(dest).Error; err != nil {
		return nil, translate(err)
	}
	return dest, nil
}

// SetOTP overwrites the pending code of an unverified principal.
func (r *principalRepository) SetOTP(ctx context.Context, kind model.Kind, id uuid.UUID, code string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(model.New(kind)).
		Where("id = ? AND verified = ?", id, false).
		Updates(map[string]interface{}{
			"otp_code":       code,
			"otp_expires_at": expiresAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ConsumeOTP marks the principal verified and clears its code in a single
// conditional update. It reports false when the code did not match or had
// already expired, which also makes concurrent verification single-winner.
func (r *principalRepository) ConsumeOTP(ctx context.Context, kind model.Kind, id uuid.UUID, code string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(model.New(kind)).
		Where("id = ? AND otp_code = ? AND otp_expires_at > ?", id, code, now).
		Updates(map[string]interface{}{
			"verified":       true,
			"otp_code":       nil,
			"otp_expires_at": nil,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UpdatePassword replaces the stored hash.
func (r *principalRepository) UpdatePassword(ctx context.Context, kind model.Kind, id uuid.UUID, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(model.New(kind)).
		Where("id = ?", id).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// WithTransaction executes a function within a database transaction.
func (r *principalRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo PrincipalRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &principalRepository{db: tx}
		return fn(ctx, txRepo)
	})
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.ErrDuplicateEmail
	default:
		return err
	}
}
