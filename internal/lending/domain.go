// internal/lending/domain.go
package lending

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrUnavailable      = errors.New("book is not available for borrowing")
	ErrAlreadyBorrowed  = errors.New("book already borrowed by this user")
	ErrNotBorrowed      = errors.New("no active loan for this book")
	ErrInconsistent     = errors.New("loan records are internally inconsistent")
	ErrCapacityTooSmall = errors.New("new capacity is smaller than the number of copies on loan")
)

// Loan is one borrow record. A loan with a nil ReturnedAt is active.
type Loan struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	BookID     uuid.UUID  `json:"book_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

// LoanDetail is a loan joined with the book fields the client renders.
type LoanDetail struct {
	Loan
	Title      string `json:"title"`
	Author     string `json:"author"`
	Category   string `json:"category"`
	CoverImage string `json:"cover_image,omitempty"`
}

// Loans is a user's borrow history split into active and closed loans.
type Loans struct {
	Current []*LoanDetail `json:"current"`
	Past    []*LoanDetail `json:"past"`
}

// Event types appended to the lending event log.
const (
	EventBookBorrowed     = "BookBorrowed"
	EventBookReturned     = "BookReturned"
	EventCapacityAdjusted = "CapacityAdjusted"
)

// BookBorrowedEvent is recorded when a borrow succeeds.
type BookBorrowedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	UserID     uuid.UUID `json:"user_id"`
	BookID     uuid.UUID `json:"book_id"`
	BorrowedAt time.Time `json:"borrowed_at"`
}

// BookReturnedEvent is recorded when a return succeeds.
type BookReturnedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	UserID     uuid.UUID `json:"user_id"`
	BookID     uuid.UUID `json:"book_id"`
	ReturnedAt time.Time `json:"returned_at"`
}

// CapacityAdjustedEvent is recorded when a book's copy pool is resized.
type CapacityAdjustedEvent struct {
	BookID       uuid.UUID `json:"book_id"`
	OldTotal     int       `json:"old_total"`
	NewTotal     int       `json:"new_total"`
	NewAvailable int       `json:"new_available"`
}

// resizePool computes the new available-copy count when a book's copy pool is
// resized. Copies on loan stay on loan: available' = newTotal - inUse. A
// newTotal smaller than the number of copies on loan is rejected, so
// 0 <= available' <= newTotal always holds.
func resizePool(total, available, newTotal int) (int, error) {
	inUse := total - available
	if newTotal < inUse {
		return 0, ErrCapacityTooSmall
	}
	return newTotal - inUse, nil
}
