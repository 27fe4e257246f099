package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Member represents a staff member who may be affiliated with a school.
type Member struct {
	ID       uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Name     string     `json:"name" gorm:"size:255;not null"`
	SchoolID *uuid.UUID `json:"school_id,omitempty" gorm:"type:char(36);index"`
	Phone    string     `json:"phone,omitempty" gorm:"size:64"`
	Address  Address    `json:"address" gorm:"embedded;embeddedPrefix:address_"`
	Active   bool       `json:"is_active" gorm:"default:true"`

	Credentials `gorm:"embedded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Member) PrincipalID() uuid.UUID { return m.ID }
func (m *Member) PrincipalKind() Kind    { return KindMember }
func (m *Member) DisplayName() string    { return m.Name }
func (m *Member) Creds() *Credentials    { return &m.Credentials }

// BeforeCreate sets UUID before creating the record.
func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// BeforeSave keeps the stored password hashed.
func (m *Member) BeforeSave(tx *gorm.DB) error {
	return m.Credentials.ensureHashed()
}
