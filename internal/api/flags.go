package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/retrouvtout/backend/internal/model"
	"github.com/retrouvtout/backend/internal/store"
)

// FlagsHandler handles moderation report endpoints.
type FlagsHandler struct {
	DB *sql.DB
}

type createFlagRequest struct {
	EntityType  string `json:"entity_type"`
	EntityID    int64  `json:"entity_id"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

type reviewFlagRequest struct {
	Status string `json:"status"`
}

// Create handles POST /api/flags.
func (h *FlagsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createFlagRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.EntityType != model.FlagEntityListing && req.EntityType != model.FlagEntityMessage {
		jsonError(w, http.StatusBadRequest, "entity_type must be listing or message")
		return
	}
	if req.Reason == "" {
		jsonError(w, http.StatusBadRequest, "reason required")
		return
	}

	switch req.EntityType {
	case model.FlagEntityListing:
		listing, err := store.GetListing(r.Context(), h.DB, req.EntityID)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to check listing")
			return
		}
		if listing == nil || listing.Status == model.ListingStatusDeleted {
			jsonError(w, http.StatusNotFound, "listing not found")
			return
		}
	case model.FlagEntityMessage:
		message, err := store.GetMessage(r.Context(), h.DB, req.EntityID)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to check message")
			return
		}
		if message == nil {
			jsonError(w, http.StatusNotFound, "message not found")
			return
		}
	}

	flag, err := store.CreateFlag(r.Context(), h.DB, &model.ModerationFlag{
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		Reason:      req.Reason,
		Description: req.Description,
		CreatedBy:   claims.UserID,
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create report")
		return
	}

	jsonResponse(w, http.StatusCreated, flag)
}

// List handles GET /api/flags (moderator and up).
func (h *FlagsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != model.FlagStatusPending &&
		status != model.FlagStatusReviewed && status != model.FlagStatusDismissed {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	flags, err := store.ListFlags(r.Context(), h.DB, status)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if flags == nil {
		flags = []model.ModerationFlag{}
	}
	jsonResponse(w, http.StatusOK, flags)
}

// Review handles POST /api/flags/{id}/review (moderator and up).
func (h *FlagsHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid flag id")
		return
	}

	var req reviewFlagRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != model.FlagStatusReviewed && req.Status != model.FlagStatusDismissed {
		jsonError(w, http.StatusBadRequest, "status must be reviewed or dismissed")
		return
	}

	flag, err := store.GetFlag(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get report")
		return
	}
	if flag == nil {
		jsonError(w, http.StatusNotFound, "report not found")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.ReviewFlag(r.Context(), h.DB, id, claims.UserID, req.Status); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to review report")
		return
	}

	updated, _ := store.GetFlag(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, updated)
}
