package api

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/retrouvtout/backend/internal/store"
)

// UsersHandler handles profile endpoints.
type UsersHandler struct {
	DB *sql.DB
}

type updateProfileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	jsonResponse(w, http.StatusOK, user)
}

// UpdateMe handles PUT /api/users/me.
func (h *UsersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := store.UpdateUserProfile(r.Context(), h.DB, claims.UserID, req.Name, req.Phone); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	user, _ := store.GetUser(r.Context(), h.DB, claims.UserID)
	jsonResponse(w, http.StatusOK, user)
}

// UnreadCount handles GET /api/users/me/unread.
func (h *UsersHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	count, err := store.CountUnreadMessages(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to count unread messages")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]int64{"unread": count})
}
