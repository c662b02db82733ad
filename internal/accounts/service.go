// internal/accounts/service.go
package accounts

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the accounts service.
type Service interface {
	Register(ctx context.Context, name, email, password string) (*User, error)
	CreateUser(ctx context.Context, name, email, password, role string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}
