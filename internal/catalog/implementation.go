// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// service implements the Service interface.
type service struct {
	db     *sql.DB
	ledger CapacityAdjuster
}

// NewService creates a new catalog service instance.
func NewService(db *sql.DB, ledger CapacityAdjuster) Service {
	return &service{db: db, ledger: ledger}
}

// CreateBook adds a new title to the catalog with all copies available.
func (s *service) CreateBook(ctx context.Context, input BookInput) (*Book, error) {
	if input.TotalCopies < 1 {
		input.TotalCopies = 1
	}

	book := &Book{
		ID:              uuid.New(),
		Title:           input.Title,
		Author:          input.Author,
		Description:     input.Description,
		ISBN:            input.ISBN,
		PublishedDate:   input.PublishedDate,
		Category:        input.Category,
		CoverImage:      input.CoverImage,
		Available:       true,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: input.TotalCopies,
		AddedBy:         input.AddedBy,
	}

	query := `
		INSERT INTO books (id, title, author, description, isbn, published_date,
			category, cover_image, available, total_copies, available_copies, added_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		book.ID, book.Title, book.Author, book.Description, book.ISBN, book.PublishedDate,
		book.Category, book.CoverImage, book.Available, book.TotalCopies, book.AvailableCopies, book.AddedBy,
	).Scan(&book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrISBNTaken
		}
		return nil, fmt.Errorf("insert book: %w", err)
	}

	return book, nil
}

const bookColumns = `
	b.id, b.title, b.author, b.description, b.isbn, b.published_date,
	b.category, b.cover_image, b.available, b.total_copies, b.available_copies,
	b.added_by, COALESCE(u.name, ''), b.created_at, b.updated_at
`

func scanBook(row interface{ Scan(...interface{}) error }) (*Book, error) {
	book := &Book{}
	var publishedDate sql.NullTime
	var addedBy uuid.NullUUID
	err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Description,
		&book.ISBN,
		&publishedDate,
		&book.Category,
		&book.CoverImage,
		&book.Available,
		&book.TotalCopies,
		&book.AvailableCopies,
		&addedBy,
		&book.AddedByName,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if publishedDate.Valid {
		t := publishedDate.Time
		book.PublishedDate = &t
	}
	if addedBy.Valid {
		book.AddedBy = addedBy.UUID
	}
	return book, nil
}

// GetBook retrieves a single book by its ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	query := `
		SELECT ` + bookColumns + `
		FROM books b
		LEFT JOIN users u ON u.id = b.added_by
		WHERE b.id = $1
	`
	book, err := scanBook(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("query book: %w", err)
	}
	return book, nil
}

// ListBooks returns one page of books, newest first, with pagination math.
func (s *service) ListBooks(ctx context.Context, filter ListFilter) (*BookPage, error) {
	f := filter.normalize()

	var conditions []string
	var args []interface{}

	if f.Category != "" {
		args = append(args, f.Category)
		conditions = append(conditions, fmt.Sprintf("b.category = $%d", len(args)))
	}
	if f.AvailableOnly {
		conditions = append(conditions, "b.available = TRUE")
	}
	if f.Search != "" {
		args = append(args, f.Search)
		conditions = append(conditions, fmt.Sprintf(
			"to_tsvector('english', b.title || ' ' || b.author || ' ' || b.description) @@ plainto_tsquery('english', $%d)",
			len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM books b" + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	listQuery := `
		SELECT ` + bookColumns + `
		FROM books b
		LEFT JOIN users u ON u.id = b.added_by` + whereClause + fmt.Sprintf(`
		ORDER BY b.created_at DESC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	return &BookPage{
		Books: books,
		Pagination: Pagination{
			Total: total,
			Page:  f.Page,
			Pages: pageCount(total, f.Limit),
			Limit: f.Limit,
		},
	}, nil
}

// UpdateBook applies metadata changes and, when TotalCopies is set, resizes
// the copy pool through the lending ledger. Everything runs in one
// transaction: a rejected resize rolls the metadata change back too, so an
// error response never leaves partial state behind.
func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, upd BookUpdate) (*Book, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	book := &Book{ID: id}
	var publishedDate sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT title, author, description, isbn, published_date, category,
			cover_image, total_copies
		FROM books
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&book.Title, &book.Author, &book.Description, &book.ISBN,
		&publishedDate, &book.Category, &book.CoverImage, &book.TotalCopies)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("lock book: %w", err)
	}
	if publishedDate.Valid {
		t := publishedDate.Time
		book.PublishedDate = &t
	}

	if upd.Title != nil {
		book.Title = *upd.Title
	}
	if upd.Author != nil {
		book.Author = *upd.Author
	}
	if upd.Description != nil {
		book.Description = *upd.Description
	}
	if upd.ISBN != nil {
		book.ISBN = *upd.ISBN
	}
	if upd.PublishedDate != nil {
		book.PublishedDate = upd.PublishedDate
	}
	if upd.Category != nil {
		book.Category = *upd.Category
	}
	if upd.CoverImage != nil {
		book.CoverImage = *upd.CoverImage
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE books
		SET title = $2, author = $3, description = $4, isbn = $5,
			published_date = $6, category = $7, cover_image = $8, updated_at = NOW()
		WHERE id = $1
	`, id, book.Title, book.Author, book.Description, book.ISBN,
		book.PublishedDate, book.Category, book.CoverImage)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrISBNTaken
		}
		return nil, fmt.Errorf("update book: %w", err)
	}

	if upd.TotalCopies != nil && *upd.TotalCopies != book.TotalCopies {
		if err := s.ledger.AdjustCapacityTx(ctx, tx, id, *upd.TotalCopies); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetBook(ctx, id)
}

// DeleteBook removes a book from the catalog.
func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if affected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// ListCategories returns all categories, name-sorted, with book counts.
func (s *service) ListCategories(ctx context.Context) ([]*Category, error) {
	query := `
		SELECT c.id, c.name, c.description, c.icon, c.created_at, COUNT(b.id)
		FROM categories c
		LEFT JOIN books b ON b.category = c.name
		GROUP BY c.id, c.name, c.description, c.icon, c.created_at
		ORDER BY c.name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := []*Category{}
	for rows.Next() {
		category := &Category{}
		if err := rows.Scan(&category.ID, &category.Name, &category.Description, &category.Icon, &category.CreatedAt, &category.Books); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}

	return categories, rows.Err()
}

// CreateCategory adds a new category with a unique name.
func (s *service) CreateCategory(ctx context.Context, name, description, icon string) (*Category, error) {
	if icon == "" {
		icon = "📚"
	}

	category := &Category{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Icon:        icon,
	}

	query := `
		INSERT INTO categories (id, name, description, icon)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query, category.ID, category.Name, category.Description, category.Icon).
		Scan(&category.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}

	return category, nil
}

// UpdateCategory renames or redescribes a category. Empty fields are unchanged.
func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, name, description, icon string) (*Category, error) {
	category := &Category{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, description, icon, created_at FROM categories WHERE id = $1
	`, id).Scan(&category.Name, &category.Description, &category.Icon, &category.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("query category: %w", err)
	}

	if name != "" {
		category.Name = name
	}
	if description != "" {
		category.Description = description
	}
	if icon != "" {
		category.Icon = icon
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE categories SET name = $2, description = $3, icon = $4 WHERE id = $1
	`, id, category.Name, category.Description, category.Icon)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	return category, nil
}

// DeleteCategory removes a category. Books keep their free-text label.
func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if affected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
