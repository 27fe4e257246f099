package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleName is drawn from the closed set admin/member/school.
type RoleName string

const (
	RoleAdmin  RoleName = "admin"
	RoleMember RoleName = "member"
	RoleSchool RoleName = "school"
)

// Valid reports whether r is one of the enumerated role names.
func (r RoleName) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleSchool:
		return true
	}
	return false
}

// RoleFor returns the role every principal of kind carries.
func RoleFor(kind Kind) RoleName {
	return RoleName(kind)
}

// Permission tags.
const (
	PermRead   = "read"
	PermWrite  = "write"
	PermDelete = "delete"
	PermAdmin  = "admin"
)

// DefaultPermissions returns the permission set a freshly created role receives.
func DefaultPermissions(name RoleName) []string {
	switch name {
	case RoleAdmin:
		return []string{PermRead, PermWrite, PermDelete, PermAdmin}
	case RoleMember, RoleSchool:
		return []string{PermRead, PermWrite}
	}
	return nil
}

// Role is the canonical record for a role name.
type Role struct {
	ID          uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name        RoleName  `json:"name" gorm:"type:varchar(16);uniqueIndex;not null"`
	Permissions []string  `json:"permissions" gorm:"serializer:json;type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
