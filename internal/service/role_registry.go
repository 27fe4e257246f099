package service

import (
	"context"
	"fmt"

	apperrors "github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/model"
	"github.com/Samocology/noap-backend/internal/repository"
)

// RoleRegistry is the only place role records are created.
type RoleRegistry interface {
	FindOrCreate(ctx context.Context, name model.RoleName) (*model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
}

type roleRegistry struct {
	roleRepo repository.RoleRepository
}

// NewRoleRegistry creates a new role registry.
func NewRoleRegistry(roleRepo repository.RoleRepository) RoleRegistry {
	return &roleRegistry{roleRepo: roleRepo}
}

// FindOrCreate returns the canonical role for name, creating it with the
// default permission set on first use.
func (r *roleRegistry) FindOrCreate(ctx context.Context, name model.RoleName) (*model.Role, error) {
	if !name.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown role %q", name))
	}
	role, err := r.roleRepo.FindOrCreate(ctx, &model.Role{
		Name:        name,
		Permissions: model.DefaultPermissions(name),
	})
	if err != nil {
		return nil, storageError("find or create role", err)
	}
	return role, nil
}

// List returns every role record.
func (r *roleRegistry) List(ctx context.Context) ([]model.Role, error) {
	roles, err := r.roleRepo.List(ctx)
	if err != nil {
		return nil, storageError("list roles", err)
	}
	return roles, nil
}
