package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"utility-tracker/internal/auth"
	"utility-tracker/internal/insights"
	"utility-tracker/internal/metrics"
	"utility-tracker/internal/models"
	"utility-tracker/internal/storage"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// SessionDuration is how long sessions last (30 days).
	SessionDuration = 30 * 24 * time.Hour
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db           *storage.DB
	views        *insights.Service
	authn        *auth.PasswordAuthenticator
	tokens       *auth.JWTManager
	metrics      *metrics.Metrics
	templateDir  string
	secureCookie bool
	now          func() time.Time
}

// Option configures optional Handlers dependencies.
type Option func(*Handlers)

// WithTokens enables the JSON API with bearer tokens issued by m.
func WithTokens(m *auth.JWTManager) Option {
	return func(h *Handlers) { h.tokens = m }
}

// WithMetrics records request metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handlers) { h.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, views *insights.Service, templateDir string, secureCookie bool, opts ...Option) *Handlers {
	h := &Handlers{
		db:           db,
		views:        views,
		authn:        auth.NewPasswordAuthenticator(db),
		templateDir:  templateDir,
		secureCookie: secureCookie,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// APIEnabled reports whether bearer tokens can be issued.
func (h *Handlers) APIEnabled() bool {
	return h.tokens != nil
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

func withUser(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
}

// AuthMiddleware wraps handlers to require authentication.
// Sessions past the halfway point of their lifetime are renewed.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		info, err := h.db.ValidateSessionWithInfo(r.Context(), cookie.Value)
		if err != nil {
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		now := h.now()
		if info.ExpiresAt.Sub(now) < SessionDuration/2 {
			newExpiresAt := now.Add(SessionDuration)
			if err := h.db.RenewSession(r.Context(), cookie.Value, newExpiresAt); err != nil {
				slog.WarnContext(r.Context(), "Failed to renew session", "user_id", info.User.ID, "error", err)
			} else {
				h.setSessionCookie(w, cookie.Value)
			}
		}

		next.ServeHTTP(w, withUser(r, info.User))
	})
}

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Error    string
	Username string
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if _, err := h.db.ValidateSession(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
	}
	h.render(w, r, "login.html", LoginViewModel{})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "login.html", LoginViewModel{Error: "Invalid form submission"})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if username == "" || password == "" {
		h.render(w, r, "login.html", LoginViewModel{Error: "Username and password are required", Username: username})
		return
	}

	user, err := h.authn.Authenticate(r.Context(), username, password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			slog.ErrorContext(r.Context(), "Login failed", "username", username, "error", err)
		}
		h.render(w, r, "login.html", LoginViewModel{Error: "Invalid username or password", Username: username})
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to generate session token", "error", err)
		h.render(w, r, "login.html", LoginViewModel{Error: "An error occurred. Please try again."})
		return
	}

	if err := h.db.CreateSession(r.Context(), token, user.ID, h.now().Add(SessionDuration)); err != nil {
		slog.ErrorContext(r.Context(), "Failed to create session", "user_id", user.ID, "error", err)
		h.render(w, r, "login.html", LoginViewModel{Error: "An error occurred. Please try again."})
		return
	}

	slog.InfoContext(r.Context(), "User logged in", "user_id", user.ID, "username", user.Username)
	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if user, err := h.db.ValidateSession(r.Context(), cookie.Value); err == nil {
			h.views.Forget(user.ID)
		}
		if err := h.db.DeleteSession(r.Context(), cookie.Value); err != nil {
			slog.ErrorContext(r.Context(), "Failed to delete session", "error", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// overview loads the current derived view for the request's user.
func (h *Handlers) overview(r *http.Request) (*insights.View, error) {
	user := GetUserFromContext(r)
	if user == nil {
		return nil, errors.New("no user in request context")
	}
	return h.views.Overview(r.Context(), user.ID, h.now())
}

// hxLocation tells HTMX to load path into the content area after a write.
func hxLocation(w http.ResponseWriter, path string) {
	w.Header().Set("HX-Location", fmt.Sprintf(`{"path":%q, "target":"#content"}`, path))
}

// writeError maps storage and validation errors onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case models.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.ErrorContext(r.Context(), op+" failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string {
		return d.StringFixed(2)
	},
	"date": func(t time.Time) string {
		return t.Format("Jan 02, 2006")
	},
	"isodate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(models.DateLayout)
	},
	"pct": func(f float64) string {
		return fmt.Sprintf("%.1f%%", f)
	},
	"label": func(s any) string {
		v := strings.ReplaceAll(fmt.Sprint(s), "_", " ")
		if v == "" {
			return v
		}
		return strings.ToUpper(v[:1]) + v[1:]
	},
	"abs": func(n int) int {
		if n < 0 {
			return -n
		}
		return n
	},
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, viewName string, data any) {
	tmpl, err := template.New("base.html").Funcs(templateFuncs).ParseFiles(
		filepath.Join(h.templateDir, "base.html"),
		filepath.Join(h.templateDir, viewName),
	)
	if err != nil {
		slog.ErrorContext(r.Context(), "Template error", "view", viewName, "error", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	target := "base.html"
	if r.Header.Get("HX-Request") == "true" {
		target = "content"
	}
	if err := tmpl.ExecuteTemplate(w, target, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "view", viewName, "error", err)
	}
}
