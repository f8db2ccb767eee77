package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/retrouvtout/backend/internal/model"
	"github.com/retrouvtout/backend/internal/store"
)

// AlertsHandler handles saved-search alert endpoints.
type AlertsHandler struct {
	DB *sql.DB
}

type alertRequest struct {
	Title        string     `json:"title"`
	QueryText    string     `json:"query_text"`
	Category     string     `json:"category"`
	LocationText string     `json:"location_text"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	RadiusKm     *float64   `json:"radius_km"`
	DateFrom     *time.Time `json:"date_from"`
	DateTo       *time.Time `json:"date_to"`
	Channels     []string   `json:"channels"`
}

func (req *alertRequest) validate() string {
	if req.Title == "" {
		return "title required"
	}
	if req.Category != "" && !model.ValidCategory(req.Category) {
		return "invalid category"
	}
	if len(req.Channels) == 0 {
		return "at least one notification channel required"
	}
	for _, c := range req.Channels {
		if !model.ValidChannel(c) {
			return "invalid notification channel: " + c
		}
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return "latitude and longitude must be set together"
	}
	if req.RadiusKm != nil {
		if *req.RadiusKm <= 0 {
			return "radius must be positive"
		}
		if req.Latitude == nil {
			return "radius requires coordinates"
		}
	}
	if req.DateFrom != nil && req.DateTo != nil && req.DateTo.Before(*req.DateFrom) {
		return "date_to must not be before date_from"
	}
	return ""
}

func (req *alertRequest) toModel(ownerID int64) *model.Alert {
	return &model.Alert{
		OwnerID:      ownerID,
		Title:        req.Title,
		QueryText:    req.QueryText,
		Category:     req.Category,
		LocationText: req.LocationText,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusKm:     req.RadiusKm,
		DateFrom:     req.DateFrom,
		DateTo:       req.DateTo,
		Channels:     req.Channels,
	}
}

// List handles GET /api/alerts.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	alerts, err := store.ListUserAlerts(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	jsonResponse(w, http.StatusOK, alerts)
}

// Create handles POST /api/alerts.
func (h *AlertsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req alertRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	alert, err := store.CreateAlert(r.Context(), h.DB, req.toModel(claims.UserID))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create alert")
		return
	}

	jsonResponse(w, http.StatusCreated, alert)
}

// Get handles GET /api/alerts/{id}.
func (h *AlertsHandler) Get(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, alert)
}

// Update handles PUT /api/alerts/{id}.
func (h *AlertsHandler) Update(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req alertRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	updated := req.toModel(alert.OwnerID)
	updated.ID = alert.ID

	if err := store.UpdateAlert(r.Context(), h.DB, updated); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update alert")
		return
	}

	fresh, _ := store.GetAlert(r.Context(), h.DB, alert.ID)
	jsonResponse(w, http.StatusOK, fresh)
}

// Toggle handles POST /api/alerts/{id}/toggle.
func (h *AlertsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if err := store.ToggleAlert(r.Context(), h.DB, alert.ID); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to toggle alert")
		return
	}

	fresh, _ := store.GetAlert(r.Context(), h.DB, alert.ID)
	jsonResponse(w, http.StatusOK, fresh)
}

// Delete handles DELETE /api/alerts/{id}.
func (h *AlertsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if err := store.DeleteAlert(r.Context(), h.DB, alert.ID); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete alert")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "alert deleted"})
}

// loadOwned fetches the alert from the path and checks ownership. Writes the
// error response itself.
func (h *AlertsHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*model.Alert, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid alert id")
		return nil, false
	}

	alert, err := store.GetAlert(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get alert")
		return nil, false
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, "alert not found")
		return nil, false
	}

	claims := GetClaims(r.Context())
	if alert.OwnerID != claims.UserID {
		jsonError(w, http.StatusForbidden, "not your alert")
		return nil, false
	}
	return alert, true
}
