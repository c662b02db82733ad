// internal/eventlog/eventlog.go
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrVersionConflict = errors.New("version conflict: concurrent append")

var payloadCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is one append-only record in a book's lending history.
type Event struct {
	ID        int64           `json:"id"`
	BookID    uuid.UUID       `json:"book_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
}

// Log stores lending events with a monotonically increasing version per book.
type Log struct {
	db     *sql.DB
	tracer trace.Tracer
}

// New creates an event log backed by the given database.
func New(db *sql.DB) *Log {
	return &Log{
		db:     db,
		tracer: otel.Tracer("bookhive/eventlog"),
	}
}

// AppendTx appends one event inside the caller's transaction, so the audit
// record commits or rolls back together with the ledger mutation. The caller
// must already hold a row lock on the book in the same transaction; that lock
// serializes version assignment per aggregate. A 23505 on (aggregate_id,
// version) therefore only fires for an append outside that discipline.
func (l *Log) AppendTx(ctx context.Context, tx *sql.Tx, bookID uuid.UUID, eventType string, payload interface{}) error {
	ctx, span := l.tracer.Start(ctx, "eventlog.append",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	data, err := payloadCodec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	var currentVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM lending_events
		WHERE aggregate_id = $1
	`, bookID).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("query current version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lending_events (aggregate_id, event_type, event_data, version, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, bookID, eventType, data, currentVersion+1, time.Now().UTC())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrVersionConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}

	span.SetAttributes(attribute.Int("event.version", currentVersion+1))
	return nil
}

// History returns a book's lending events in version order.
func (l *Log) History(ctx context.Context, bookID uuid.UUID) ([]Event, error) {
	ctx, span := l.tracer.Start(ctx, "eventlog.history",
		trace.WithAttributes(attribute.String("book.id", bookID.String())),
	)
	defer span.End()

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, event_data, version, created_at
		FROM lending_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.BookID, &event.Type, &event.Payload, &event.Version, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}
