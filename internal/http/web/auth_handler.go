package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/delcom/healthtrack/internal/http/middleware"
	"github.com/delcom/healthtrack/internal/observability"
	"github.com/delcom/healthtrack/internal/service"
)

// AuthWebHandler serves the login and registration pages and their form
// submissions. Failures surface as flash messages over a redirect, not as
// JSON envelopes.
type AuthWebHandler struct {
	auth     *service.AuthService
	gate     *service.Gate
	guard    service.AuthAbuseGuard
	sessions *SessionManager
}

func NewAuthWebHandler(auth *service.AuthService, gate *service.Gate, guard service.AuthAbuseGuard, sessions *SessionManager) *AuthWebHandler {
	return &AuthWebHandler{auth: auth, gate: gate, guard: guard, sessions: sessions}
}

func (h *AuthWebHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, "login.html", pageData{
		Title:        "Sign in",
		FlashError:   h.sessions.Flashes(w, r, "error"),
		FlashSuccess: h.sessions.Flashes(w, r, "success"),
	})
}

func (h *AuthWebHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.sessions.AddFlash(w, r, "error", "invalid form submission")
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	sourceIP := middleware.ClientIP(r)

	if cooldown, err := h.guard.Check(r.Context(), service.AuthAbuseScopeLogin, email, sourceIP); err == nil && cooldown > 0 {
		h.sessions.AddFlash(w, r, "error", "too many failed attempts, try again later")
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	user, token, err := h.auth.Login(email, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			if _, gerr := h.guard.RegisterFailure(r.Context(), service.AuthAbuseScopeLogin, email, sourceIP); gerr != nil {
				slog.WarnContext(r.Context(), "abuse guard unavailable", "error", gerr)
			}
			h.sessions.AddFlash(w, r, "error", "email or password incorrect")
		} else {
			slog.ErrorContext(r.Context(), "web login failed", "error", err)
			h.sessions.AddFlash(w, r, "error", "something went wrong, please try again")
		}
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	if err := h.guard.Reset(r.Context(), service.AuthAbuseScopeLogin, email, sourceIP); err != nil {
		slog.WarnContext(r.Context(), "abuse guard reset failed", "error", err)
	}
	if err := h.sessions.SetAuth(w, r, user.ID, token); err != nil {
		slog.ErrorContext(r.Context(), "session save failed", "error", err)
		h.sessions.AddFlash(w, r, "error", "something went wrong, please try again")
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	observability.Audit(r, "auth.login", "user_id", user.ID.String(), "surface", "web")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthWebHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	render(w, "register.html", pageData{
		Title:      "Create account",
		FlashError: h.sessions.Flashes(w, r, "error"),
	})
}

func (h *AuthWebHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.sessions.AddFlash(w, r, "error", "invalid form submission")
		http.Redirect(w, r, "/auth/register", http.StatusSeeOther)
		return
	}
	name := strings.TrimSpace(r.PostFormValue("name"))
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	var message string
	switch {
	case name == "":
		message = "name is required"
	case email == "":
		message = "email is required"
	case password == "":
		message = "password is required"
	}
	if message != "" {
		h.sessions.AddFlash(w, r, "error", message)
		http.Redirect(w, r, "/auth/register", http.StatusSeeOther)
		return
	}

	user, err := h.auth.Register(name, email, password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			h.sessions.AddFlash(w, r, "error", "user already registered with this email")
		} else {
			slog.ErrorContext(r.Context(), "web register failed", "error", err)
			h.sessions.AddFlash(w, r, "error", "something went wrong, please try again")
		}
		http.Redirect(w, r, "/auth/register", http.StatusSeeOther)
		return
	}
	observability.Audit(r, "auth.register", "user_id", user.ID.String(), "surface", "web")
	h.sessions.AddFlash(w, r, "success", "account created, please sign in")
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// Logout revokes the session's token rows and clears the cookie. A stale
// or missing credential still clears the cookie and lands on the login
// page.
func (h *AuthWebHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.sessions.Token(r); token != "" {
		if user, err := h.gate.Resolve(r.Context(), token); err == nil {
			if err := h.auth.Logout(user.ID); err != nil {
				slog.ErrorContext(r.Context(), "web logout failed", "error", err, "user_id", user.ID.String())
			} else {
				observability.Audit(r, "auth.logout", "user_id", user.ID.String(), "surface", "web")
			}
		}
	}
	_ = h.sessions.Clear(w, r)
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}
