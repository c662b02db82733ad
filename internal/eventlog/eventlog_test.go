package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookhive/internal/store"
)

func setupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	host := envOr("PGHOST", "localhost")
	port := envOr("PGPORT", "5432")
	user := envOr("PGUSER", "user")
	password := envOr("PGPASSWORD", "password")
	dbname := envOr("PGDATABASE", "testdb")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}

	if err := store.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	_, err = db.Exec("TRUNCATE TABLE lending_events")
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func envOr(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func appendEvent(t *testing.T, db *sql.DB, log *Log, bookID uuid.UUID, eventType string, payload interface{}) {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, log.AppendTx(context.Background(), tx, bookID, eventType, payload))
	require.NoError(t, tx.Commit())
}

func TestAppendAssignsSequentialVersions(t *testing.T) {
	db := setupTestDB(t)
	log := New(db)
	ctx := context.Background()

	bookID := uuid.New()
	otherBook := uuid.New()

	appendEvent(t, db, log, bookID, "BookBorrowed", map[string]string{"user": "a"})
	appendEvent(t, db, log, bookID, "BookReturned", map[string]string{"user": "a"})
	appendEvent(t, db, log, otherBook, "BookBorrowed", map[string]string{"user": "b"})

	events, err := log.History(ctx, bookID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "BookBorrowed", events[0].Type)
	assert.Equal(t, 1, events[0].Version)
	assert.Equal(t, "BookReturned", events[1].Type)
	assert.Equal(t, 2, events[1].Version)
	assert.JSONEq(t, `{"user":"a"}`, string(events[0].Payload))

	// Versions are per book, not global.
	events, err = log.History(ctx, otherBook)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Version)
}

func TestHistoryOfUnknownBookIsEmpty(t *testing.T) {
	db := setupTestDB(t)
	log := New(db)

	events, err := log.History(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, events, "an empty history must encode as [], not null")
	assert.Empty(t, events)
}

func TestRolledBackAppendLeavesNoTrace(t *testing.T) {
	db := setupTestDB(t)
	log := New(db)
	ctx := context.Background()

	bookID := uuid.New()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, log.AppendTx(ctx, tx, bookID, "BookBorrowed", map[string]string{"user": "a"}))
	require.NoError(t, tx.Rollback())

	events, err := log.History(ctx, bookID)
	require.NoError(t, err)
	assert.Empty(t, events)

	// The version the rolled-back append claimed is free again.
	appendEvent(t, db, log, bookID, "BookBorrowed", map[string]string{"user": "b"})
	events, err = log.History(ctx, bookID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Version)
}
