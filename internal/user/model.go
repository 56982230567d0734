package user

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Email is the identity key used by tokens
// and project memberships.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Password length bounds. bcrypt ignores everything past 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
	MaxUsernameLength = 64
)
