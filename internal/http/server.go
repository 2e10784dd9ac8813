// Package http exposes the JSON API and the embedded front end.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"tally/internal/analytics"
	"tally/internal/auth"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
	appweb "tally/web"
)

// Deps collects the services the server routes requests to.
type Deps struct {
	Auth            *auth.Service
	Users           *storage.UserRepository
	Categories      *storage.CategoryRepository
	TransactionRepo *storage.TransactionRepository
	Transactions    *services.TransactionService
	Analytics       *analytics.Service
	Store           *storage.Store
	Logger          *log.Logger
}

type Server struct {
	http.Server
	log          *log.Logger
	auth         *auth.Service
	users        *storage.UserRepository
	categories   *storage.CategoryRepository
	txnRepo      *storage.TransactionRepository
	transactions *services.TransactionService
	analytics    *analytics.Service
	store        *storage.Store
	rateLimiter  *rateLimiter
	startedAt    time.Time

	shutdownRequested chan struct{}
	shutdownOnce      sync.Once
	stopOnce          sync.Once
}

// NewServer configures all routes, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		log:               deps.Logger.WithComponent(log.ComponentHTTP),
		auth:              deps.Auth,
		users:             deps.Users,
		categories:        deps.Categories,
		txnRepo:           deps.TransactionRepo,
		transactions:      deps.Transactions,
		analytics:         deps.Analytics,
		store:             deps.Store,
		rateLimiter:       newRateLimiter(),
		startedAt:         time.Now(),
		shutdownRequested: make(chan struct{}),
	}

	mux.HandleFunc("GET /health", s.withRequestLogging(s.handleHealth))

	mux.HandleFunc("POST /api/auth/register", s.withRequestLogging(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.withRequestLogging(s.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", s.withRequestLogging(s.handleLogout))

	mux.HandleFunc("GET /api/users/me", s.api(s.handleGetProfile))
	mux.HandleFunc("PUT /api/users/me", s.api(s.handleUpdateProfile))

	mux.HandleFunc("GET /api/categories", s.api(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.api(s.handleCreateCategory))
	mux.HandleFunc("GET /api/categories/{id}", s.api(s.handleGetCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.api(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.api(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/transactions", s.api(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.api(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions/export", s.api(s.handleExportTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", s.api(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.api(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.api(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/analytics/monthly", s.api(s.handleAnalyticsMonthly))
	mux.HandleFunc("GET /api/analytics/category", s.api(s.handleAnalyticsCategory))
	mux.HandleFunc("GET /api/analytics/trend", s.api(s.handleAnalyticsTrend))
	mux.HandleFunc("GET /api/analytics/comparison", s.api(s.handleAnalyticsComparison))
	mux.HandleFunc("GET /api/analytics/quarterly", s.api(s.handleAnalyticsQuarterly))
	mux.HandleFunc("GET /api/analytics/category-detail", s.api(s.handleAnalyticsCategoryDetail))
	mux.HandleFunc("GET /api/analytics/transaction-detail", s.api(s.handleAnalyticsTransactionDetail))
	mux.HandleFunc("GET /api/analytics/category-transactions/{id}", s.api(s.handleAnalyticsCategoryTransactions))

	mux.HandleFunc("POST /api/shutdown", s.api(s.handleShutdown))

	// Unknown API paths get a JSON 404 instead of the static fallback.
	mux.HandleFunc("/api/", s.withRequestLogging(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	}))

	// Static front end (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.FileServer(http.FS(sub))
		mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Tiny cache for static assets
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.log.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	return s
}

// api composes the standard middleware for authenticated JSON routes.
func (s *Server) api(next http.HandlerFunc) http.HandlerFunc {
	return s.withRequestLogging(s.requireAuth(next))
}

// ShutdownRequested is closed when a client asks the process to stop via
// the shutdown endpoint.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdownRequested
}

// requestShutdown signals the process to stop, at most once.
func (s *Server) requestShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownRequested)
	})
}

// Shutdown stops the rate limiter's cleanup goroutine and then shuts the
// HTTP server down gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Uptime    int64     `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   "tally",
		Uptime:    int64(time.Since(s.startedAt).Seconds()),
	})
}

type shutdownResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// handleShutdown saves a final snapshot, acknowledges the request, and
// signals the process to stop after a short grace so the response can be
// flushed to the client.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	s.log.InfoContext(r.Context(), "Shutdown requested",
		log.FieldUserID, user.ID,
		log.FieldUsername, user.Username,
		log.FieldOperation, log.OpShutdown)

	if err := s.store.Save(r.Context()); err != nil {
		s.log.ErrorContext(r.Context(), "Snapshot save before shutdown failed", log.FieldError, err)
	}

	writeJSON(w, http.StatusOK, shutdownResponse{
		Message:   "server shutting down",
		Timestamp: time.Now().UTC(),
	})

	go func() {
		time.Sleep(500 * time.Millisecond)
		s.requestShutdown()
	}()
}
