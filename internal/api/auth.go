package api

import (
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lenderapp/lender/internal/access"
	"github.com/lenderapp/lender/internal/auth"
	"github.com/lenderapp/lender/internal/model"
	"github.com/lenderapp/lender/internal/store"
)

// AuthHandler handles session endpoints.
type AuthHandler struct {
	DB            *sql.DB
	SessionSecret string
	SessionTTL    time.Duration
	SecureCookies bool
	// BcryptCost defaults to bcrypt.DefaultCost when zero.
	BcryptCost int

	dummyOnce sync.Once
	dummyHash []byte
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// CSRFCookie handles GET /api/csrf-cookie. The cookie is readable by scripts
// so that browser clients can echo it in the X-XSRF-TOKEN header.
func (h *AuthHandler) CSRFCookie(w http.ResponseWriter, r *http.Request) {
	token, err := auth.NewCSRFToken()
	if err != nil {
		writeError(w, r, err, "generating csrf token")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CSRFCookieName,
		Value:    token,
		Path:     "/",
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.Registration
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err, "registering")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cost())
	if err != nil {
		writeError(w, r, err, "hashing password")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Name, req.Email, string(hash))
	if err != nil {
		writeError(w, r, err, "creating user")
		return
	}

	requestLogger(r.Context()).Info("user registered", "user_id", user.ID)
	h.startSession(w, r, user, http.StatusCreated)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, model.NormalizeEmail(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		// Spend the same bcrypt work as a wrong password.
		_ = bcrypt.CompareHashAndPassword(h.unknownUserHash(), []byte(req.Password))
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, r, err, "looking up user")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		requestLogger(r.Context()).Warn("login failed", "user_id", user.ID, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	requestLogger(r.Context()).Info("user logged in", "user_id", user.ID)
	h.startSession(w, r, user, http.StatusOK)
}

func (h *AuthHandler) cost() int {
	if h.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}
	return h.BcryptCost
}

// unknownUserHash returns a hash at the configured cost to compare against
// when the email has no account.
func (h *AuthHandler) unknownUserHash() []byte {
	h.dummyOnce.Do(func() {
		h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("lender-unknown-user"), h.cost())
	})
	return h.dummyHash
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User, status int) {
	token, claims, err := auth.GenerateToken(h.SessionSecret, user.ID, user.Name, user.Email, h.SessionTTL)
	if err != nil {
		writeError(w, r, err, "issuing session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	jsonResponse(w, status, sessionResponse{User: user, Token: token})
}

// Logout handles POST /api/auth/logout. The token stays revoked until it
// would have expired.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		writeError(w, r, err, "revoking session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	requestLogger(r.Context()).Info("user logged out", "user_id", claims.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFrom(r.Context())
	if p == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, p.UserID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if err != nil {
		writeError(w, r, err, "loading user")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}
