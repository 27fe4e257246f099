package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SchoolTier is the subscription tier of a school.
type SchoolTier string

const (
	TierBasic      SchoolTier = "basic"
	TierPremium    SchoolTier = "premium"
	TierEnterprise SchoolTier = "enterprise"
)

// Valid reports whether t is a known tier.
func (t SchoolTier) Valid() bool {
	switch t {
	case TierBasic, TierPremium, TierEnterprise:
		return true
	}
	return false
}

// SchoolStatus is the operational status of a school.
type SchoolStatus string

const (
	SchoolActive    SchoolStatus = "active"
	SchoolInactive  SchoolStatus = "inactive"
	SchoolSuspended SchoolStatus = "suspended"
)

// Valid reports whether s is a known status.
func (s SchoolStatus) Valid() bool {
	switch s {
	case SchoolActive, SchoolInactive, SchoolSuspended:
		return true
	}
	return false
}

// School represents an institution registered on the platform.
type School struct {
	ID      uuid.UUID    `json:"id" gorm:"type:char(36);primaryKey"`
	Name    string       `json:"name" gorm:"size:255;not null;index"`
	Tier    SchoolTier   `json:"tier" gorm:"type:varchar(20);default:'basic'"`
	Status  SchoolStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	Phone   string       `json:"phone" gorm:"size:64;not null"`
	Address Address      `json:"address" gorm:"embedded;embeddedPrefix:address_"`

	Credentials `gorm:"embedded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *School) PrincipalID() uuid.UUID { return s.ID }
func (s *School) PrincipalKind() Kind    { return KindSchool }
func (s *School) DisplayName() string    { return s.Name }
func (s *School) Creds() *Credentials    { return &s.Credentials }

// BeforeCreate sets UUID and defaults before creating the record.
func (s *School) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Tier == "" {
		s.Tier = TierBasic
	}
	if s.Status == "" {
		s.Status = SchoolActive
	}
	return nil
}

// BeforeSave keeps the stored password hashed.
func (s *School) BeforeSave(tx *gorm.DB) error {
	return s.Credentials.ensureHashed()
}
