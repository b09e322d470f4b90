package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name         string    `json:"name" gorm:"not null"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Verified     bool      `json:"verified" gorm:"not null;default:false"`
	Avatar       string    `json:"avatar,omitempty"`
	Banner       string    `json:"banner,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Location     string    `json:"location,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sanitized returns a copy of the user without the password hash.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.PasswordHash = ""
	return &cp
}

// UserPatch lists the fields a flow may change on an existing user.
// Nil fields are left untouched.
type UserPatch struct {
	Verified     *bool
	PasswordHash *string
}

func (p UserPatch) Empty() bool {
	return p.Verified == nil && p.PasswordHash == nil
}
