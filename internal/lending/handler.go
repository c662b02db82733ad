// internal/lending/handler.go
package lending

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bookhive/internal/auth"
	"bookhive/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// HandleBorrow lends a copy of a book to the authenticated user.
// POST /api/books/{id}/borrow
func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	bookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	userID, _ := auth.UserID(r.Context())
	if err := h.service.Borrow(r.Context(), userID, bookID); err != nil {
		writeError(w, err)
		return
	}

	httpx.Message(w, http.StatusOK, "book borrowed successfully")
}

// HandleReturn closes the authenticated user's active loan of a book.
// POST /api/books/{id}/return
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	bookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	userID, _ := auth.UserID(r.Context())
	if err := h.service.Return(r.Context(), userID, bookID); err != nil {
		writeError(w, err)
		return
	}

	httpx.Message(w, http.StatusOK, "book returned successfully")
}

// HandleMyLoans returns the authenticated user's borrow history.
// GET /api/users/me/loans
func (h *Handler) HandleMyLoans(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	loans, err := h.service.ListLoans(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, loans)
}

// HandleHistory returns a book's lending event trail. Admin only.
// GET /api/books/{id}/history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	bookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	events, err := h.service.History(r.Context(), bookID)
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, events)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBookNotFound):
		httpx.Error(w, http.StatusNotFound, "book not found")
	case errors.Is(err, ErrUnavailable):
		httpx.Error(w, http.StatusBadRequest, "book is not available for borrowing")
	case errors.Is(err, ErrAlreadyBorrowed):
		httpx.Error(w, http.StatusBadRequest, "you have already borrowed this book")
	case errors.Is(err, ErrNotBorrowed):
		httpx.Error(w, http.StatusBadRequest, "you have not borrowed this book")
	case errors.Is(err, ErrCapacityTooSmall):
		httpx.Error(w, http.StatusConflict, "total copies cannot drop below copies on loan")
	default:
		httpx.Error(w, http.StatusInternalServerError, err.Error())
	}
}
