package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/retrouvtout/backend/internal/handover"
)

// ConfirmationsHandler handles handover confirmation endpoints.
type ConfirmationsHandler struct {
	Service *handover.Service
}

// Generate handles POST /api/confirmations/generate?threadId=N.
func (h *ConfirmationsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	threadID, err := strconv.ParseInt(r.URL.Query().Get("threadId"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid threadId")
		return
	}

	claims := GetClaims(r.Context())
	confirmation, err := h.Service.Generate(r.Context(), threadID, claims.UserID)
	if err != nil {
		appError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, confirmation)
}

// Validate handles POST /api/confirmations/validate?code=XXXXXX.
func (h *ConfirmationsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("code")))
	if code == "" {
		jsonError(w, http.StatusBadRequest, "code required")
		return
	}

	claims := GetClaims(r.Context())
	confirmation, err := h.Service.Validate(r.Context(), code, claims.UserID)
	if err != nil {
		appError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, confirmation)
}

// ForThread handles GET /api/confirmations/thread/{threadId}.
func (h *ConfirmationsHandler) ForThread(w http.ResponseWriter, r *http.Request) {
	threadID, err := strconv.ParseInt(r.PathValue("threadId"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	claims := GetClaims(r.Context())
	confirmation, err := h.Service.ThreadConfirmation(r.Context(), threadID, claims.UserID)
	if err != nil {
		appError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, confirmation)
}
