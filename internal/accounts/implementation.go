// internal/accounts/implementation.go
package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/time/rate"
)

// service implements the Service interface.
type service struct {
	db              *sql.DB
	registerLimiter *rate.Limiter
	loginLimiter    *rate.Limiter
}

// NewService creates a new accounts service instance. Register and
// Authenticate are throttled independently, so a registration burst cannot
// starve logins.
func NewService(db *sql.DB) Service {
	return &service{
		db:              db,
		registerLimiter: rate.NewLimiter(rate.Every(time.Minute), 5),
		loginLimiter:    rate.NewLimiter(rate.Every(time.Minute), 5),
	}
}

// Register creates a new user with the default role.
func (s *service) Register(ctx context.Context, name, email, password string) (*User, error) {
	if !s.registerLimiter.Allow() {
		return nil, ErrRateLimited
	}
	return s.CreateUser(ctx, name, email, password, RoleUser)
}

// CreateUser creates a new user with an explicit role. Used by Register and
// by administrative tooling.
func (s *service) CreateUser(ctx context.Context, name, email, password, role string) (*User, error) {
	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:    uuid.New(),
		Name:  name,
		Email: email,
		Role:  role,
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, salt, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query, user.ID, user.Name, user.Email, passwordHash, salt, user.Role).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// Authenticate verifies a user's credentials and returns the user if successful.
func (s *service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	if !s.loginLimiter.Allow() {
		return nil, ErrRateLimited
	}

	query := `
		SELECT id, name, email, password_hash, salt, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	user := &User{}
	var passwordHash, salt string
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&passwordHash,
		&salt,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	ok, err := verifyPassword(password, salt, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUser retrieves a user by their ID.
func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, name, email, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	user := &User{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return user, nil
}

// UpdateProfile applies the non-empty fields of upd to the user's profile.
func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != "" {
		user.Name = upd.Name
	}
	if upd.Email != "" {
		user.Email = upd.Email
	}

	passwordClause := ""
	args := []interface{}{user.Name, user.Email, id}
	if upd.Password != "" {
		passwordHash, salt, err := hashPassword(upd.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordClause = ", password_hash = $4, salt = $5"
		args = append(args, passwordHash, salt)
	}

	query := `
		UPDATE users
		SET name = $1, email = $2, updated_at = NOW()` + passwordClause + `
		WHERE id = $3
		RETURNING updated_at
	`
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&user.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}

// ListUsers returns all registered users.
func (s *service) ListUsers(ctx context.Context) ([]*User, error) {
	query := `
		SELECT id, name, email, role, created_at, updated_at
		FROM users
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		user := &User{}
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
