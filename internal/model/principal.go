package model

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Kind discriminates the three principal variants.
type Kind string

const (
	KindAdmin  Kind = "admin"
	KindMember Kind = "member"
	KindSchool Kind = "school"
)

// Valid reports whether k is one of the known principal kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAdmin, KindMember, KindSchool:
		return true
	}
	return false
}

// DefaultHashCost is used by the save hooks when a plaintext password reaches the database layer.
const DefaultHashCost = 10

// Credentials holds the fields shared by every principal kind.
type Credentials struct {
	Email        string     `json:"email" gorm:"column:email;uniqueIndex;size:255;not null"`
	PasswordHash string     `json:"-" gorm:"column:password_hash;size:255;not null"` // Never expose in JSON
	RoleID       uuid.UUID  `json:"role_id" gorm:"column:role_id;type:char(36);not null;index"`
	Verified     bool       `json:"is_verified" gorm:"column:verified;default:false"`
	OTPCode      *string    `json:"-" gorm:"column:otp_code;size:6"`
	OTPExpiresAt *time.Time `json:"-" gorm:"column:otp_expires_at"`
}

// HasPendingOTP reports whether a code is waiting to be verified.
func (c *Credentials) HasPendingOTP() bool {
	return c.OTPCode != nil && *c.OTPCode != "" && c.OTPExpiresAt != nil
}

// SetOTP replaces any pending code.
func (c *Credentials) SetOTP(code string, expiresAt time.Time) {
	c.OTPCode = &code
	c.OTPExpiresAt = &expiresAt
}

// ClearOTP voids the pending code.
func (c *Credentials) ClearOTP() {
	c.OTPCode = nil
	c.OTPExpiresAt = nil
}

// ensureHashed hashes PasswordHash unless it already holds a bcrypt hash, so
// unrelated updates never hash a hash.
func (c *Credentials) ensureHashed() error {
	if c.PasswordHash == "" || IsPasswordHash(c.PasswordHash) {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(c.PasswordHash), DefaultHashCost)
	if err != nil {
		return err
	}
	c.PasswordHash = string(hashed)
	return nil
}

// IsPasswordHash reports whether value carries a bcrypt signature.
func IsPasswordHash(value string) bool {
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}

// Principal is implemented by Admin, Member and School.
type Principal interface {
	PrincipalID() uuid.UUID
	PrincipalKind() Kind
	DisplayName() string
	Creds() *Credentials
}

// Address is the postal address attached to members and schools.
type Address struct {
	Street  string `json:"street,omitempty" gorm:"size:255"`
	City    string `json:"city,omitempty" gorm:"size:120"`
	State   string `json:"state,omitempty" gorm:"size:120"`
	ZipCode string `json:"zip_code,omitempty" gorm:"size:32"`
	Country string `json:"country,omitempty" gorm:"size:120"`
}

// New returns an empty record for kind, suitable as a gorm destination.
func New(kind Kind) Principal {
	switch kind {
	case KindAdmin:
		return &Admin{}
	case KindMember:
		return &Member{}
	case KindSchool:
		return &School{}
	}
	return nil
}
