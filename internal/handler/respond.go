package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matchmate/matchmate-go/internal/middleware"
	"github.com/matchmate/matchmate-go/internal/model"
)

const maxJSONBody = 1 << 20 // 1MB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData[T any](w http.ResponseWriter, status int, data T) {
	writeJSON(w, status, model.OK(data, ""))
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, model.APIResponse[any]{Success: true, Message: msg})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.Fail[any](msg))
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON reads a JSON request body into dst. On failure it writes the
// error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// requireUser returns the authenticated user ID, writing a 401 if absent.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

// idParam parses a positive integer URL parameter, writing a 400 if invalid.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
