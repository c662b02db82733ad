// internal/catalog/service.go
package catalog

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// CapacityAdjuster resizes a book's copy pool inside the caller's
// transaction. The lending ledger implements it.
type CapacityAdjuster interface {
	AdjustCapacityTx(ctx context.Context, tx *sql.Tx, bookID uuid.UUID, newTotal int) error
}

// Service defines the interface for the catalog service.
type Service interface {
	CreateBook(ctx context.Context, input BookInput) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	ListBooks(ctx context.Context, filter ListFilter) (*BookPage, error)
	UpdateBook(ctx context.Context, id uuid.UUID, upd BookUpdate) (*Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error

	ListCategories(ctx context.Context) ([]*Category, error)
	CreateCategory(ctx context.Context, name, description, icon string) (*Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, name, description, icon string) (*Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}
