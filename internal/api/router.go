package api

import (
	"database/sql"
	"net/http"
	"time"
)

// Config wires the API router.
type Config struct {
	DB            *sql.DB
	SessionSecret string
	SessionTTL    time.Duration
	SecureCookies bool
	BcryptCost    int
	Notifier      Notifier
	Reminders     *ReminderLimiter
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{
		DB:            cfg.DB,
		SessionSecret: cfg.SessionSecret,
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.SecureCookies,
		BcryptCost:    cfg.BcryptCost,
	}
	itemsHandler := &ItemsHandler{DB: cfg.DB, Notifier: cfg.Notifier, Reminders: cfg.Reminders}

	// State-changing routes need a session and a matching CSRF token.
	protected := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(CSRF(h))
	}

	// Public.
	mux.HandleFunc("GET /api/csrf-cookie", authHandler.CSRFCookie)
	mux.Handle("POST /api/auth/register", CSRF(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", CSRF(http.HandlerFunc(authHandler.Login)))

	// Session.
	mux.Handle("POST /api/auth/logout", protected(authHandler.Logout))
	mux.Handle("GET /api/auth/me", RequireAuth(http.HandlerFunc(authHandler.Me)))

	// Items: reads answer anonymous callers with an empty list or 404.
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.Handle("POST /api/items", protected(itemsHandler.Create))
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.Handle("PATCH /api/items/{id}", protected(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", protected(itemsHandler.Delete))
	mux.Handle("POST /api/items/{id}/notify", protected(itemsHandler.Notify))
	mux.Handle("PUT /api/items/{id}/photo", protected(itemsHandler.UploadPhoto))
	mux.HandleFunc("GET /api/items/{id}/photo", itemsHandler.GetPhoto)

	return Authenticate(cfg.DB, cfg.SessionSecret)(mux)
}

// HealthHandler reports whether the database is reachable.
func HealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			requestLogger(r.Context()).Error("health check failed", "error", err)
			jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
