package domain

import (
	"time"

	"github.com/google/uuid"
)

type CodeType string

const (
	CodeEmailVerification CodeType = "email_verification"
	CodePasswordReset     CodeType = "password_reset"
)

const (
	EmailVerificationTTL = 365 * 24 * time.Hour
	PasswordResetTTL     = time.Hour
	// PasswordResetWindow bounds how often a reset code may be requested per user.
	PasswordResetWindow = 5 * time.Minute
)

func (t CodeType) Valid() bool {
	switch t {
	case CodeEmailVerification, CodePasswordReset:
		return true
	}
	return false
}

type VerificationCode struct {
	ID        string    `json:"id" gorm:"type:varchar(24);primary_key"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
	Type      CodeType  `json:"type" gorm:"type:varchar(32);not null;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
}

func (c *VerificationCode) Valid(codeType CodeType, now time.Time) bool {
	return c.Type == codeType && c.ExpiresAt.After(now)
}
