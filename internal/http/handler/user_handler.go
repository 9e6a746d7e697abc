package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/delcom/healthtrack/internal/http/response"
	"github.com/delcom/healthtrack/internal/identity"
	"github.com/delcom/healthtrack/internal/observability"
	"github.com/delcom/healthtrack/internal/repository"
	"github.com/delcom/healthtrack/internal/service"
)

type UserHandler struct {
	users *service.UserService
	auth  *service.AuthService
}

func NewUserHandler(users *service.UserService, auth *service.AuthService) *UserHandler {
	return &UserHandler{users: users, auth: auth}
}

type updateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusForbidden, "user not authenticated")
		return
	}
	response.Success(w, "user profile", map[string]any{"user": user})
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusForbidden, "user not authenticated")
		return
	}
	var req updateProfileRequest
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
	}

	updated, err := h.users.UpdateProfile(user.ID, strings.TrimSpace(req.Name), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Fail(w, http.StatusNotFound, "user not found")
			return
		}
		slog.ErrorContext(r.Context(), "profile update failed", "error", err, "user_id", user.ID.String())
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	response.Success(w, "profile updated successfully", map[string]any{"user": updated})
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusForbidden, "user not authenticated")
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		response.Fail(w, http.StatusBadRequest, "password is required")
		return
	}

	if _, err := h.auth.ChangePassword(user.ID, req.OldPassword, req.NewPassword); err != nil {
		// The old password acts as the confirmation of the change.
		if errors.Is(err, service.ErrPasswordMismatch) {
			response.Fail(w, http.StatusBadRequest, "password confirmation does not match")
			return
		}
		slog.ErrorContext(r.Context(), "password change failed", "error", err, "user_id", user.ID.String())
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	observability.Audit(r, "auth.password_changed")
	response.Success(w, "password changed successfully", nil)
}
