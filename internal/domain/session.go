package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionTTL = 30 * 24 * time.Hour
	// SessionRenewWindow is how close to expiry a session must be before a refresh extends it.
	SessionRenewWindow = 24 * time.Hour
)

type Session struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
}

func (s *Session) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

func (s *Session) NearExpiry(now time.Time) bool {
	return s.ExpiresAt.Sub(now) <= SessionRenewWindow
}
