package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/service"
)

// DiscoveryHandler handles HTTP requests for discovery, swipes, matches and
// the shortlist.
type DiscoveryHandler struct {
	service *service.DiscoveryService
}

// NewDiscoveryHandler creates a new DiscoveryHandler.
func NewDiscoveryHandler(svc *service.DiscoveryService) *DiscoveryHandler {
	return &DiscoveryHandler{service: svc}
}

// HandleDiscover handles GET /api/v1/discover requests.
func (h *DiscoveryHandler) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	cards, err := h.service.Discover(r.Context(), userID, limit)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, cards)
}

// HandleSwipe handles POST /api/v1/swipes requests.
func (h *DiscoveryHandler) HandleSwipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.SwipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Swipe(r.Context(), userID, req)
	if err != nil {
		writeTargetError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, resp)
}

// HandleMatches handles GET /api/v1/matches requests.
func (h *DiscoveryHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	matches, err := h.service.Matches(r.Context(), userID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, matches)
}

// HandleListShortlist handles GET /api/v1/shortlist requests.
func (h *DiscoveryHandler) HandleListShortlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	entries, err := h.service.Shortlist(r.Context(), userID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, entries)
}

// HandleAddToShortlist handles POST /api/v1/shortlist requests.
func (h *DiscoveryHandler) HandleAddToShortlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.ShortlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.AddToShortlist(r.Context(), userID, req); err != nil {
		writeTargetError(w, r, err)
		return
	}

	writeMessage(w, "added to shortlist")
}

// HandleRemoveFromShortlist handles DELETE /api/v1/shortlist/{user_id} requests.
func (h *DiscoveryHandler) HandleRemoveFromShortlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	targetID, ok := idParam(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.service.RemoveFromShortlist(r.Context(), userID, targetID); err != nil {
		writeTargetError(w, r, err)
		return
	}

	writeMessage(w, "removed from shortlist")
}

// HandleCommonInterests handles GET /api/v1/profiles/{user_id}/common-interests requests.
func (h *DiscoveryHandler) HandleCommonInterests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	otherID, ok := idParam(w, r, "user_id")
	if !ok {
		return
	}

	ci, err := h.service.CommonInterests(r.Context(), userID, otherID)
	if err != nil {
		writeTargetError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, ci)
}

func writeTargetError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrTargetRequired),
		errors.Is(err, service.ErrSelfTarget),
		errors.Is(err, service.ErrInvalidDirection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrShortlistEntryNotFound),
		errors.Is(err, service.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		internalError(w, r, err)
	}
}
