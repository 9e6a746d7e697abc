package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/delcom/healthtrack/internal/http/middleware"
	"github.com/delcom/healthtrack/internal/http/response"
	"github.com/delcom/healthtrack/internal/identity"
	"github.com/delcom/healthtrack/internal/observability"
	"github.com/delcom/healthtrack/internal/service"
)

type AuthHandler struct {
	auth  *service.AuthService
	guard service.AuthAbuseGuard
}

func NewAuthHandler(auth *service.AuthService, guard service.AuthAbuseGuard) *AuthHandler {
	return &AuthHandler{auth: auth, guard: guard}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch {
	case strings.TrimSpace(req.Name) == "":
		response.Fail(w, http.StatusBadRequest, "name is required")
		return
	case strings.TrimSpace(req.Email) == "":
		response.Fail(w, http.StatusBadRequest, "email is required")
		return
	case req.Password == "":
		response.Fail(w, http.StatusBadRequest, "password is required")
		return
	}

	user, err := h.auth.Register(strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.Fail(w, http.StatusBadRequest, "user already registered with this email")
			return
		}
		slog.ErrorContext(r.Context(), "register failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	observability.Audit(r, "auth.register", "user_id", user.ID.String())
	response.Created(w, "user registered successfully", map[string]any{"user": user})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch {
	case strings.TrimSpace(req.Email) == "":
		response.Fail(w, http.StatusBadRequest, "email is required")
		return
	case req.Password == "":
		response.Fail(w, http.StatusBadRequest, "password is required")
		return
	}
	sourceIP := middleware.ClientIP(r)

	cooldown, err := h.guard.Check(r.Context(), service.AuthAbuseScopeLogin, req.Email, sourceIP)
	if err != nil {
		slog.WarnContext(r.Context(), "abuse guard unavailable", "error", err)
	} else if cooldown > 0 {
		response.Fail(w, http.StatusTooManyRequests, "too many failed attempts, try again later")
		return
	}

	user, token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			if _, gerr := h.guard.RegisterFailure(r.Context(), service.AuthAbuseScopeLogin, req.Email, sourceIP); gerr != nil {
				slog.WarnContext(r.Context(), "abuse guard unavailable", "error", gerr)
			}
			observability.Audit(r, "auth.login.denied", "email", req.Email)
			response.Fail(w, http.StatusBadRequest, "email or password incorrect")
		case errors.Is(err, service.ErrTokenPersistence):
			slog.ErrorContext(r.Context(), "token persistence failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "failed to create authentication token")
		default:
			slog.ErrorContext(r.Context(), "login failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if err := h.guard.Reset(r.Context(), service.AuthAbuseScopeLogin, req.Email, sourceIP); err != nil {
		slog.WarnContext(r.Context(), "abuse guard reset failed", "error", err)
	}
	observability.Audit(r, "auth.login", "user_id", user.ID.String())
	response.Success(w, "login successful", map[string]any{"token": token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusForbidden, "user not authenticated")
		return
	}
	if err := h.auth.Logout(user.ID); err != nil {
		slog.ErrorContext(r.Context(), "logout failed", "error", err, "user_id", user.ID.String())
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	observability.Audit(r, "auth.logout")
	response.Success(w, "logout successful", nil)
}
