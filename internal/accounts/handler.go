// internal/accounts/handler.go
package accounts

import (
	"errors"
	"net/http"

	"bookhive/internal/auth"
	"bookhive/internal/httpx"
)

type Handler struct {
	service Service
	issuer  *auth.Issuer
}

func NewHandler(service Service, issuer *auth.Issuer) *Handler {
	return &Handler{service: service, issuer: issuer}
}

// HandleRegister creates a new user account.
// POST /api/auth/register
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
	}

	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "please provide all required fields")
		return
	}

	if _, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		h.writeError(w, err)
		return
	}

	httpx.Message(w, http.StatusCreated, "user registered successfully")
}

// HandleLogin authenticates a user and returns a signed token.
// POST /api/auth/login
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "please provide email and password")
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	token, err := h.issuer.Sign(user.ID, user.Role)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"user":  user,
		"token": token,
	})
}

// HandleMe returns the authenticated user's profile.
// GET /api/users/me
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, user)
}

// HandleUpdateMe updates the authenticated user's profile.
// PUT /api/users/me
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email" validate:"omitempty,email"`
		Password string `json:"password" validate:"omitempty,min=6"`
	}

	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid profile payload")
		return
	}

	userID, _ := auth.UserID(r.Context())
	user, err := h.service.UpdateProfile(r.Context(), userID, ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, user)
}

// HandleListUsers returns all users. Admin only.
// GET /api/users
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		httpx.Error(w, http.StatusNotFound, "user not found")
	case errors.Is(err, ErrEmailTaken):
		httpx.Error(w, http.StatusConflict, "email already in use")
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Error(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, ErrRateLimited):
		httpx.Error(w, http.StatusTooManyRequests, "too many attempts, try again later")
	default:
		httpx.Error(w, http.StatusInternalServerError, err.Error())
	}
}
