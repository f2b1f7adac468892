package handler

import (
	"errors"
	"net/http"

	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/repository"
	"github.com/matchmate/matchmate-go/internal/service"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// HandleRegister handles POST /api/v1/auth/register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailRequired),
			errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrPasswordRequired),
			errors.Is(err, service.ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			internalError(w, r, err)
		}
		return
	}

	writeData(w, http.StatusCreated, resp)
}

// HandleLogin handles POST /api/v1/auth/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		internalError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, resp)
}

// HandleRefresh handles POST /api/v1/auth/refresh requests.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.service.Refresh(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshTokenRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidRefreshToken):
			writeError(w, http.StatusUnauthorized, err.Error())
		default:
			internalError(w, r, err)
		}
		return
	}

	writeData(w, http.StatusOK, pair)
}

// HandleLogout handles POST /api/v1/auth/logout requests.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), userID, req); err != nil {
		internalError(w, r, err)
		return
	}

	writeMessage(w, "logged out")
}

// HandleMe handles GET /api/v1/auth/me requests.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		internalError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, resp)
}
