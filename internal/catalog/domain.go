// internal/catalog/domain.go
package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category already exists")
	ErrISBNTaken        = errors.New("a book with this ISBN already exists")
)

// Book represents a title in the catalog. Copy counts are owned by the
// lending ledger; the catalog only reads them.
type Book struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	Description     string     `json:"description"`
	ISBN            string     `json:"isbn,omitempty"`
	PublishedDate   *time.Time `json:"published_date,omitempty"`
	Category        string     `json:"category"`
	CoverImage      string     `json:"cover_image,omitempty"`
	Available       bool       `json:"available"`
	TotalCopies     int        `json:"total_copies"`
	AvailableCopies int        `json:"available_copies"`
	AddedBy         uuid.UUID  `json:"added_by,omitempty"`
	AddedByName     string     `json:"added_by_name,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Category is a free-form book grouping with a display icon.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Books       int       `json:"count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListFilter narrows and pages a book listing.
type ListFilter struct {
	Page          int
	Limit         int
	Category      string
	Search        string
	AvailableOnly bool
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Limit int `json:"limit"`
}

// BookPage is one page of books plus the math the client needs for paging.
type BookPage struct {
	Books      []*Book    `json:"books"`
	Pagination Pagination `json:"pagination"`
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// normalize clamps page and limit to sane bounds.
func (f ListFilter) normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
	return f
}

// pageCount returns ceil(total/limit), never less than zero.
func pageCount(total, limit int) int {
	if total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// BookInput carries the fields an administrator sets when creating a book.
type BookInput struct {
	Title         string
	Author        string
	Description   string
	ISBN          string
	PublishedDate *time.Time
	Category      string
	CoverImage    string
	TotalCopies   int
	AddedBy       uuid.UUID
}

// BookUpdate carries optional changes. Nil fields are unchanged. TotalCopies
// resizes the copy pool through the lending ledger in the same transaction as
// the metadata change.
type BookUpdate struct {
	Title         *string
	Author        *string
	Description   *string
	ISBN          *string
	PublishedDate *time.Time
	Category      *string
	CoverImage    *string
	TotalCopies   *int
}
