// internal/lending/service.go
package lending

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"bookhive/internal/eventlog"
)

// Service is the lending ledger. It is the only component that mutates
// available-copy counts or loan records.
type Service interface {
	Borrow(ctx context.Context, userID, bookID uuid.UUID) error
	Return(ctx context.Context, userID, bookID uuid.UUID) error
	AdjustCapacity(ctx context.Context, bookID uuid.UUID, newTotal int) error
	AdjustCapacityTx(ctx context.Context, tx *sql.Tx, bookID uuid.UUID, newTotal int) error
	ListLoans(ctx context.Context, userID uuid.UUID) (*Loans, error)
	ActiveLoanCount(ctx context.Context, bookID uuid.UUID) (int, error)
	History(ctx context.Context, bookID uuid.UUID) ([]eventlog.Event, error)
}
