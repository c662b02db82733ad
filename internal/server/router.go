// internal/server/router.go
package server

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bookhive/internal/accounts"
	"bookhive/internal/auth"
	"bookhive/internal/catalog"
	"bookhive/internal/lending"
)

// Deps are the wired collaborators the router exposes over HTTP.
type Deps struct {
	Issuer   *auth.Issuer
	Accounts *accounts.Handler
	Catalog  *catalog.Handler
	Lending  *lending.Handler
}

// New builds the API router.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	authenticated := auth.Middleware(deps.Issuer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", deps.Accounts.HandleRegister)
		r.Post("/auth/login", deps.Accounts.HandleLogin)

		// Public catalog reads
		r.Get("/books", deps.Catalog.HandleListBooks)
		r.Get("/books/{id}", deps.Catalog.HandleGetBook)
		r.Get("/categories", deps.Catalog.HandleListCategories)

		// Routes for any authenticated user
		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Get("/users/me", deps.Accounts.HandleMe)
			r.Put("/users/me", deps.Accounts.HandleUpdateMe)
			r.Get("/users/me/loans", deps.Lending.HandleMyLoans)

			r.Post("/books/{id}/borrow", deps.Lending.HandleBorrow)
			r.Post("/books/{id}/return", deps.Lending.HandleReturn)
		})

		// Administrative routes
		r.Group(func(r chi.Router) {
			r.Use(authenticated, auth.RequireAdmin)

			r.Get("/users", deps.Accounts.HandleListUsers)

			r.Post("/books", deps.Catalog.HandleCreateBook)
			r.Put("/books/{id}", deps.Catalog.HandleUpdateBook)
			r.Delete("/books/{id}", deps.Catalog.HandleDeleteBook)
			r.Get("/books/{id}/history", deps.Lending.HandleHistory)

			r.Post("/categories", deps.Catalog.HandleCreateCategory)
			r.Put("/categories/{id}", deps.Catalog.HandleUpdateCategory)
			r.Delete("/categories/{id}", deps.Catalog.HandleDeleteCategory)
		})
	})

	return r
}

// requestLogger logs one line per request with the request ID and timing.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("[REQ] id=%s %s %s status=%d dur=%s",
			middleware.GetReqID(r.Context()), r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
