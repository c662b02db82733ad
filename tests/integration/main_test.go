// tests/integration/main_test.go
package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookhive/internal/accounts"
	"bookhive/internal/auth"
	"bookhive/internal/catalog"
	"bookhive/internal/eventlog"
	"bookhive/internal/lending"
	"bookhive/internal/server"
	"bookhive/internal/store"
)

type TestSuite struct {
	db     *sql.DB
	server *httptest.Server
	issuer *auth.Issuer
}

func setupTestSuite(t *testing.T) *TestSuite {
	t.Helper()

	host := envOr("PGHOST", "localhost")
	port := envOr("PGPORT", "5432")
	user := envOr("PGUSER", "user")
	password := envOr("PGPASSWORD", "password")
	dbname := envOr("PGDATABASE", "testdb")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	if err := db.Ping(); err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}

	require.NoError(t, store.Migrate(context.Background(), db))
	_, err = db.Exec("TRUNCATE TABLE users, categories, books, loans, lending_events CASCADE")
	require.NoError(t, err)

	issuer := auth.NewIssuer("integration-test-secret", time.Hour)
	ledger := lending.NewService(db, eventlog.New(db))
	catalogSvc := catalog.NewService(db, ledger)
	accountsSvc := accounts.NewService(db)

	handler := server.New(server.Deps{
		Issuer:   issuer,
		Accounts: accounts.NewHandler(accountsSvc, issuer),
		Catalog:  catalog.NewHandler(catalogSvc, ledger),
		Lending:  lending.NewHandler(ledger),
	})

	ts := &TestSuite{db: db, server: httptest.NewServer(handler), issuer: issuer}
	t.Cleanup(func() {
		ts.server.Close()
		ts.db.Close()
	})
	return ts
}

func envOr(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func (ts *TestSuite) post(t *testing.T, path, token string, payload interface{}) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(http.MethodPost, ts.server.URL+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (ts *TestSuite) getBook(t *testing.T, id string) *catalog.Book {
	t.Helper()
	resp, err := ts.server.Client().Get(ts.server.URL + "/api/books/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var book catalog.Book
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&book))
	return &book
}

// login registers a user (if needed) and returns a bearer token.
func (ts *TestSuite) registerAndLogin(t *testing.T, name, email string) string {
	t.Helper()

	resp := ts.post(t, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "SecurePass123",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.post(t, "/api/auth/login", "", map[string]string{
		"email": email, "password": "SecurePass123",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.NotEmpty(t, login.Token)
	return login.Token
}

// adminToken mints an admin credential directly; admin creation is a CLI
// concern, not an API one.
func (ts *TestSuite) adminToken(t *testing.T) string {
	t.Helper()
	admin, err := accounts.NewService(ts.db).CreateUser(context.Background(),
		"Admin", fmt.Sprintf("admin-%d@test.com", time.Now().UnixNano()), "SecurePass123", accounts.RoleAdmin)
	require.NoError(t, err)
	token, err := ts.issuer.Sign(admin.ID, admin.Role)
	require.NoError(t, err)
	return token
}

func (ts *TestSuite) addBook(t *testing.T, admin string, title, isbn string, copies int) *catalog.Book {
	t.Helper()
	resp := ts.post(t, "/api/books", admin, map[string]interface{}{
		"title":        title,
		"author":       "Jane Austen",
		"description":  "A classic novel.",
		"isbn":         isbn,
		"category":     "Fiction",
		"total_copies": copies,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var book catalog.Book
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&book))
	return &book
}

func TestBorrowFlow(t *testing.T) {
	ts := setupTestSuite(t)

	admin := ts.adminToken(t)
	reader := ts.registerAndLogin(t, "Test Reader", "reader@example.com")

	book := ts.addBook(t, admin, "Pride and Prejudice", "9780141439518", 5)
	assert.Equal(t, 5, book.AvailableCopies)

	// Borrow the book
	resp := ts.post(t, "/api/books/"+book.ID.String()+"/borrow", reader, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := ts.getBook(t, book.ID.String())
	assert.Equal(t, 4, updated.AvailableCopies)
	assert.True(t, updated.Available)

	// A second borrow of the same title is rejected
	resp = ts.post(t, "/api/books/"+book.ID.String()+"/borrow", reader, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The loan shows up on the reader's profile
	req, err := http.NewRequest(http.MethodGet, ts.server.URL+"/api/users/me/loans", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+reader)
	loansResp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	defer loansResp.Body.Close()
	require.Equal(t, http.StatusOK, loansResp.StatusCode)
	var loans lending.Loans
	require.NoError(t, json.NewDecoder(loansResp.Body).Decode(&loans))
	require.Len(t, loans.Current, 1)
	assert.Equal(t, "Pride and Prejudice", loans.Current[0].Title)

	// Return the book
	resp = ts.post(t, "/api/books/"+book.ID.String()+"/return", reader, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated = ts.getBook(t, book.ID.String())
	assert.Equal(t, 5, updated.AvailableCopies)
}

func TestConcurrentBorrowPreventsDoubleBooking(t *testing.T) {
	ts := setupTestSuite(t)

	admin := ts.adminToken(t)
	book := ts.addBook(t, admin, "The Great Gatsby", "9780743273565", 1)

	// Create readers directly; going through the auth endpoints for all
	// ten would trip the login rate limiter.
	accountsSvc := accounts.NewService(ts.db)
	var tokens []string
	for i := 0; i < 10; i++ {
		reader, err := accountsSvc.CreateUser(context.Background(),
			fmt.Sprintf("Reader %d", i), fmt.Sprintf("reader%d@test.com", i), "SecurePass123", accounts.RoleUser)
		require.NoError(t, err)
		token, err := ts.issuer.Sign(reader.ID, reader.Role)
		require.NoError(t, err)
		tokens = append(tokens, token)
	}

	// Attempt concurrent borrows of the single copy
	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0

	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			resp := ts.post(t, "/api/books/"+book.ID.String()+"/borrow", token, nil)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}(token)
	}
	wg.Wait()

	assert.Equal(t, 1, successCount, "only one concurrent borrow should succeed")

	updated := ts.getBook(t, book.ID.String())
	assert.Equal(t, 0, updated.AvailableCopies)
	assert.False(t, updated.Available)
}

func TestCapacityAdjustmentThroughBookUpdate(t *testing.T) {
	ts := setupTestSuite(t)

	admin := ts.adminToken(t)
	readerA := ts.registerAndLogin(t, "Reader A", "reader-a@example.com")
	readerB := ts.registerAndLogin(t, "Reader B", "reader-b@example.com")

	book := ts.addBook(t, admin, "Pride and Prejudice", "9780141439518", 3)

	for _, reader := range []string{readerA, readerB} {
		resp := ts.post(t, "/api/books/"+book.ID.String()+"/borrow", reader, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	// Grow the pool: the two copies on loan stay out.
	req, err := http.NewRequest(http.MethodPut, ts.server.URL+"/api/books/"+book.ID.String(),
		bytes.NewBufferString(`{"total_copies": 5}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+admin)
	updResp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	defer updResp.Body.Close()
	require.Equal(t, http.StatusOK, updResp.StatusCode)

	updated := ts.getBook(t, book.ID.String())
	assert.Equal(t, 5, updated.TotalCopies)
	assert.Equal(t, 3, updated.AvailableCopies)

	// Shrinking below the on-loan count is rejected, and the metadata change
	// riding in the same request must not survive the rollback.
	req, err = http.NewRequest(http.MethodPut, ts.server.URL+"/api/books/"+book.ID.String(),
		bytes.NewBufferString(`{"title": "Renamed", "total_copies": 1}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+admin)
	updResp, err = ts.server.Client().Do(req)
	require.NoError(t, err)
	updResp.Body.Close()
	require.Equal(t, http.StatusConflict, updResp.StatusCode)

	updated = ts.getBook(t, book.ID.String())
	assert.Equal(t, "Pride and Prejudice", updated.Title)
	assert.Equal(t, 5, updated.TotalCopies)

	// Deleting a book with an active loan is refused.
	req, err = http.NewRequest(http.MethodDelete, ts.server.URL+"/api/books/"+book.ID.String(), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+admin)
	delResp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusConflict, delResp.StatusCode)
}
