// internal/lending/implementation.go
package lending

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bookhive/internal/eventlog"
)

// service implements the Service interface.
type service struct {
	db     *sql.DB
	log    *eventlog.Log
	tracer trace.Tracer
}

// NewService creates a new lending ledger instance.
func NewService(db *sql.DB, log *eventlog.Log) Service {
	return &service{
		db:     db,
		log:    log,
		tracer: otel.Tracer("bookhive/lending"),
	}
}

// Borrow debits one copy of the book and opens a loan for the user. The
// decrement, the loan row and the audit event commit in one transaction, so a
// failed precondition leaves no partial state behind.
func (s *service) Borrow(ctx context.Context, userID, bookID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "lending.borrow",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Conditional decrement: concurrent borrows race on this row update, so
	// the count can never go below zero.
	res, err := tx.ExecContext(ctx, `
		UPDATE books
		SET available_copies = available_copies - 1,
		    available = (available_copies - 1) > 0,
		    updated_at = NOW()
		WHERE id = $1 AND available_copies > 0
	`, bookID)
	if err != nil {
		return fmt.Errorf("debit copy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit copy: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT TRUE FROM books WHERE id = $1`, bookID).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return ErrBookNotFound
			}
			return fmt.Errorf("check book: %w", err)
		}
		return ErrUnavailable
	}

	loan := Loan{
		ID:         uuid.New(),
		UserID:     userID,
		BookID:     bookID,
		BorrowedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO loans (id, user_id, book_id, borrowed_at)
		VALUES ($1, $2, $3, $4)
	`, loan.ID, loan.UserID, loan.BookID, loan.BorrowedAt)
	if err != nil {
		// The partial unique index on active loans rejects a second active
		// loan of the same book by the same user.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrAlreadyBorrowed
		}
		return fmt.Errorf("insert loan: %w", err)
	}

	err = s.log.AppendTx(ctx, tx, bookID, EventBookBorrowed, BookBorrowedEvent{
		LoanID:     loan.ID,
		UserID:     userID,
		BookID:     bookID,
		BorrowedAt: loan.BorrowedAt,
	})
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	span.SetAttributes(attribute.Bool("borrow.success", true))
	return nil
}

// Return closes the user's active loan and credits the copy back. Like
// Borrow, all three writes commit in one transaction.
func (s *service) Return(ctx context.Context, userID, bookID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "lending.return",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE loans
		SET returned_at = NOW()
		WHERE user_id = $1 AND book_id = $2 AND returned_at IS NULL
		RETURNING id, returned_at
	`, userID, bookID)
	if err != nil {
		return fmt.Errorf("close loan: %w", err)
	}

	var closed []Loan
	for rows.Next() {
		loan := Loan{UserID: userID, BookID: bookID}
		var returnedAt time.Time
		if err := rows.Scan(&loan.ID, &returnedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan loan: %w", err)
		}
		loan.ReturnedAt = &returnedAt
		closed = append(closed, loan)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("close loan: %w", err)
	}

	switch len(closed) {
	case 1:
		// the single active loan, as the invariant requires
	case 0:
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT TRUE FROM books WHERE id = $1`, bookID).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return ErrBookNotFound
			}
			return fmt.Errorf("check book: %w", err)
		}
		return ErrNotBorrowed
	default:
		// More than one active loan for (user, book) violates the ledger
		// invariant; roll back rather than guess which record to close.
		return ErrInconsistent
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE books
		SET available_copies = available_copies + 1,
		    available = TRUE,
		    updated_at = NOW()
		WHERE id = $1 AND available_copies < total_copies
	`, bookID)
	if err != nil {
		return fmt.Errorf("credit copy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit copy: %w", err)
	}
	if affected == 0 {
		// A credit that would push available past total means the counters
		// and the loan records disagree.
		return ErrInconsistent
	}

	err = s.log.AppendTx(ctx, tx, bookID, EventBookReturned, BookReturnedEvent{
		LoanID:     closed[0].ID,
		UserID:     userID,
		BookID:     bookID,
		ReturnedAt: *closed[0].ReturnedAt,
	})
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	span.SetAttributes(attribute.Bool("return.success", true))
	return nil
}

// AdjustCapacity resizes a book's copy pool. Copies currently on loan are
// preserved; shrinking below the on-loan count is rejected.
func (s *service) AdjustCapacity(ctx context.Context, bookID uuid.UUID, newTotal int) error {
	ctx, span := s.tracer.Start(ctx, "lending.adjust_capacity",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.Int("new.total", newTotal),
		),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.AdjustCapacityTx(ctx, tx, bookID, newTotal); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// AdjustCapacityTx resizes the pool inside the caller's transaction, so a
// metadata change and a resize can commit or roll back together.
func (s *service) AdjustCapacityTx(ctx context.Context, tx *sql.Tx, bookID uuid.UUID, newTotal int) error {
	var total, available int
	err := tx.QueryRowContext(ctx, `
		SELECT total_copies, available_copies
		FROM books
		WHERE id = $1
		FOR UPDATE
	`, bookID).Scan(&total, &available)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrBookNotFound
		}
		return fmt.Errorf("lock book: %w", err)
	}

	newAvailable, err := resizePool(total, available, newTotal)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE books
		SET total_copies = $2, available_copies = $3, available = $4, updated_at = NOW()
		WHERE id = $1
	`, bookID, newTotal, newAvailable, newAvailable > 0)
	if err != nil {
		return fmt.Errorf("resize pool: %w", err)
	}

	err = s.log.AppendTx(ctx, tx, bookID, EventCapacityAdjusted, CapacityAdjustedEvent{
		BookID:       bookID,
		OldTotal:     total,
		NewTotal:     newTotal,
		NewAvailable: newAvailable,
	})
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	return nil
}

// ListLoans returns the user's loans, newest first, split into active and
// closed.
func (s *service) ListLoans(ctx context.Context, userID uuid.UUID) (*Loans, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.book_id, l.borrowed_at, l.returned_at,
		       COALESCE(b.title, ''), COALESCE(b.author, ''),
		       COALESCE(b.category, ''), COALESCE(b.cover_image, '')
		FROM loans l
		LEFT JOIN books b ON b.id = l.book_id
		WHERE l.user_id = $1
		ORDER BY l.borrowed_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	defer rows.Close()

	loans := &Loans{Current: []*LoanDetail{}, Past: []*LoanDetail{}}
	for rows.Next() {
		detail := &LoanDetail{}
		detail.UserID = userID
		var returnedAt sql.NullTime
		err := rows.Scan(
			&detail.ID,
			&detail.BookID,
			&detail.BorrowedAt,
			&returnedAt,
			&detail.Title,
			&detail.Author,
			&detail.Category,
			&detail.CoverImage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		if returnedAt.Valid {
			t := returnedAt.Time
			detail.ReturnedAt = &t
			loans.Past = append(loans.Past, detail)
		} else {
			loans.Current = append(loans.Current, detail)
		}
	}

	return loans, rows.Err()
}

// ActiveLoanCount returns the number of open loans for a book.
func (s *service) ActiveLoanCount(ctx context.Context, bookID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loans WHERE book_id = $1 AND returned_at IS NULL
	`, bookID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active loans: %w", err)
	}
	return count, nil
}

// History returns a book's lending events in order.
func (s *service) History(ctx context.Context, bookID uuid.UUID) ([]eventlog.Event, error) {
	return s.log.History(ctx, bookID)
}
