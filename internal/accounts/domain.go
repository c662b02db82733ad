// internal/accounts/domain.go
package accounts

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimited        = errors.New("rate limit exceeded")
)

// User represents a registered library user.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the fields a user may change on their own profile.
// Empty fields are left unchanged.
type ProfileUpdate struct {
	Name     string
	Email    string
	Password string
}
