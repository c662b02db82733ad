// internal/catalog/handler.go
package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bookhive/internal/auth"
	"bookhive/internal/httpx"
	"bookhive/internal/lending"
)

type Handler struct {
	service Service
	ledger  lending.Service
}

func NewHandler(service Service, ledger lending.Service) *Handler {
	return &Handler{service: service, ledger: ledger}
}

// HandleListBooks returns a filtered, paginated book listing.
// GET /api/books
func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := ListFilter{
		Page:          page,
		Limit:         limit,
		Category:      q.Get("category"),
		Search:        q.Get("search"),
		AvailableOnly: q.Get("available") == "true",
	}

	result, err := h.service.ListBooks(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, result)
}

// HandleGetBook returns a single book.
// GET /api/books/{id}
func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, book)
}

type bookRequest struct {
	Title         string `json:"title" validate:"required"`
	Author        string `json:"author" validate:"required"`
	Description   string `json:"description" validate:"required"`
	ISBN          string `json:"isbn"`
	PublishedDate string `json:"published_date" validate:"omitempty,datetime=2006-01-02"`
	Category      string `json:"category" validate:"required"`
	CoverImage    string `json:"cover_image" validate:"omitempty,url"`
	TotalCopies   int    `json:"total_copies" validate:"omitempty,min=1"`
}

// HandleCreateBook adds a book to the catalog. Admin only.
// POST /api/books
func (h *Handler) HandleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "please provide all required fields")
		return
	}

	userID, _ := auth.UserID(r.Context())
	input := BookInput{
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		ISBN:        req.ISBN,
		Category:    req.Category,
		CoverImage:  req.CoverImage,
		TotalCopies: req.TotalCopies,
		AddedBy:     userID,
	}
	if req.PublishedDate != "" {
		date, err := time.Parse("2006-01-02", req.PublishedDate)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "published_date must be YYYY-MM-DD")
			return
		}
		input.PublishedDate = &date
	}

	book, err := h.service.CreateBook(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, book)
}

type bookUpdateRequest struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	Description   *string `json:"description"`
	ISBN          *string `json:"isbn"`
	PublishedDate *string `json:"published_date" validate:"omitempty,datetime=2006-01-02"`
	Category      *string `json:"category"`
	CoverImage    *string `json:"cover_image"`
	TotalCopies   *int    `json:"total_copies" validate:"omitempty,min=1"`
}

// HandleUpdateBook updates book metadata and, when total_copies is present,
// resizes the copy pool; both commit in one transaction. Admin only.
// PUT /api/books/{id}
func (h *Handler) HandleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	var req bookUpdateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid book payload")
		return
	}

	upd := BookUpdate{
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		ISBN:        req.ISBN,
		Category:    req.Category,
		CoverImage:  req.CoverImage,
		TotalCopies: req.TotalCopies,
	}
	if req.PublishedDate != nil {
		date, err := time.Parse("2006-01-02", *req.PublishedDate)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "published_date must be YYYY-MM-DD")
			return
		}
		upd.PublishedDate = &date
	}

	book, err := h.service.UpdateBook(r.Context(), id, upd)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, book)
}

// HandleDeleteBook removes a book. Deletion is refused while copies are on
// loan so active loan records never dangle. Admin only.
// DELETE /api/books/{id}
func (h *Handler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	active, err := h.ledger.ActiveLoanCount(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if active > 0 {
		httpx.Error(w, http.StatusConflict, "book has copies on loan and cannot be removed")
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	httpx.Message(w, http.StatusOK, "book removed")
}

// HandleListCategories returns all categories with book counts.
// GET /api/categories
func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, categories)
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// HandleCreateCategory adds a category. Admin only.
// POST /api/categories
func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "please provide a category name")
		return
	}

	category, err := h.service.CreateCategory(r.Context(), req.Name, req.Description, req.Icon)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, category)
}

// HandleUpdateCategory updates a category. Admin only.
// PUT /api/categories/{id}
func (h *Handler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid category payload")
		return
	}

	category, err := h.service.UpdateCategory(r.Context(), id, req.Name, req.Description, req.Icon)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, category)
}

// HandleDeleteCategory removes a category. Admin only.
// DELETE /api/categories/{id}
func (h *Handler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	httpx.Message(w, http.StatusOK, "category removed")
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBookNotFound), errors.Is(err, lending.ErrBookNotFound):
		httpx.Error(w, http.StatusNotFound, "book not found")
	case errors.Is(err, ErrCategoryNotFound):
		httpx.Error(w, http.StatusNotFound, "category not found")
	case errors.Is(err, ErrCategoryExists):
		httpx.Error(w, http.StatusConflict, "category already exists")
	case errors.Is(err, ErrISBNTaken):
		httpx.Error(w, http.StatusConflict, "a book with this ISBN already exists")
	case errors.Is(err, lending.ErrCapacityTooSmall):
		httpx.Error(w, http.StatusConflict, "total copies cannot drop below copies on loan")
	default:
		httpx.Error(w, http.StatusInternalServerError, err.Error())
	}
}
