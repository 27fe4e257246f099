package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Admin represents a platform administrator. Admins are provisioned by the seed command.
type Admin struct {
	ID   uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name string    `json:"name" gorm:"size:255;not null"`

	Credentials `gorm:"embedded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Admin) PrincipalID() uuid.UUID { return a.ID }
func (a *Admin) PrincipalKind() Kind    { return KindAdmin }
func (a *Admin) DisplayName() string    { return a.Name }
func (a *Admin) Creds() *Credentials    { return &a.Credentials }

// BeforeCreate sets UUID before creating the record.
func (a *Admin) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// BeforeSave keeps the stored password hashed.
func (a *Admin) BeforeSave(tx *gorm.DB) error {
	return a.Credentials.ensureHashed()
}
