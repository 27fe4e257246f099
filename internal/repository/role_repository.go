package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/model"
)

// RoleRepository defines role persistence operations.
type RoleRepository interface {
	FindByName(ctx context.Context, name model.RoleName) (*model.Role, error)
	FindOrCreate(ctx context.Context, role *model.Role) (*model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
}

type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new role repository.
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

// FindByName finds a role by its name.
func (r *roleRepository) FindByName(ctx context.Context, name model.RoleName) (*model.Role, error) {
	var role model.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// FindOrCreate returns the role named role.Name, creating it when it doesn't
// exist. A concurrent insert that loses the unique-index race re-reads the winner.
func (r *roleRepository) FindOrCreate(ctx context.Context, role *model.Role) (*model.Role, error) {
	existing, err := r.FindByName(ctx, role.Name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	// Role doesn't exist, create it
	if err := r.db.WithContext(ctx).Create(role).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.FindByName(ctx, role.Name)
		}
		return nil, err
	}
	return role, nil
}

// List returns all roles ordered by name.
func (r *roleRepository) List(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := r.db.WithContext(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}
