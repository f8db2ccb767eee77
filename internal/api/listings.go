package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/retrouvtout/backend/internal/alert"
	"github.com/retrouvtout/backend/internal/imaging"
	"github.com/retrouvtout/backend/internal/model"
	"github.com/retrouvtout/backend/internal/store"
)

// ListingsHandler handles found-item listing endpoints.
type ListingsHandler struct {
	DB     *sql.DB
	Worker *alert.Worker
}

type listingRequest struct {
	Title        string     `json:"title"`
	Category     string     `json:"category"`
	LocationText string     `json:"location_text"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	FoundAt      *time.Time `json:"found_at"`
	Description  string     `json:"description"`
}

func (req *listingRequest) validate() string {
	if req.Title == "" {
		return "title required"
	}
	if !model.ValidCategory(req.Category) {
		return "invalid category"
	}
	if req.LocationText == "" {
		return "location required"
	}
	if req.FoundAt == nil {
		return "found date required"
	}
	if req.FoundAt.After(time.Now().Add(time.Minute)) {
		return "found date cannot be in the future"
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return "latitude and longitude must be set together"
	}
	if req.Latitude != nil {
		if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
			return "invalid coordinates"
		}
	}
	return ""
}

// Search handles GET /api/listings.
func (h *ListingsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.ListingFilter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Location: q.Get("location"),
	}
	if v := q.Get("date_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid date_from (want YYYY-MM-DD)")
			return
		}
		filter.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid date_to (want YYYY-MM-DD)")
			return
		}
		filter.DateTo = &t
	}

	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))

	listings, total, err := store.SearchListings(r.Context(), h.DB, filter, page, size)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to search listings")
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"listings": listings,
		"total":    total,
	})
}

// Create handles POST /api/listings.
func (h *ListingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	listing, err := store.CreateListing(r.Context(), h.DB, &model.Listing{
		FinderID:     claims.UserID,
		Title:        req.Title,
		Category:     req.Category,
		LocationText: req.LocationText,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		FoundAt:      *req.FoundAt,
		Description:  req.Description,
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create listing")
		return
	}

	// Alert matching runs in the background, off the request path.
	h.Worker.Enqueue(listing.ID)

	jsonResponse(w, http.StatusCreated, listing)
}

// Mine handles GET /api/listings/mine.
func (h *ListingsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	listings, err := store.ListUserListings(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	jsonResponse(w, http.StatusOK, listings)
}

// Get handles GET /api/listings/{id}.
func (h *ListingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	listing, err := store.GetListing(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get listing")
		return
	}
	if listing == nil || listing.Status == model.ListingStatusDeleted {
		jsonError(w, http.StatusNotFound, "listing not found")
		return
	}

	// The route is public; claims are present only for logged-in viewers.
	claims := GetClaims(r.Context())
	var viewerID int64
	var moderator bool
	if claims != nil {
		viewerID = claims.UserID
		moderator = model.RoleAtLeast(claims.Role, model.RoleModerator)
	}

	if listing.Status == model.ListingStatusSuspended &&
		listing.FinderID != viewerID && !moderator {
		jsonError(w, http.StatusNotFound, "listing not found")
		return
	}

	// View counting is best effort.
	if listing.FinderID != viewerID {
		if err := store.IncrementListingViews(r.Context(), h.DB, id); err == nil {
			listing.ViewsCount++
		}
	}

	jsonResponse(w, http.StatusOK, listing)
}

// Update handles PUT /api/listings/{id}.
func (h *ListingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	listing, ok := h.loadOwned(w, r, id)
	if !ok {
		return
	}

	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	listing.Title = req.Title
	listing.Category = req.Category
	listing.LocationText = req.LocationText
	listing.Latitude = req.Latitude
	listing.Longitude = req.Longitude
	listing.FoundAt = *req.FoundAt
	listing.Description = req.Description

	if err := store.UpdateListing(r.Context(), h.DB, listing); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update listing")
		return
	}

	updated, _ := store.GetListing(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/listings/{id}. Listings are soft deleted.
func (h *ListingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	if _, ok := h.loadOwned(w, r, id); !ok {
		return
	}

	if err := store.SetListingStatus(r.Context(), h.DB, id, model.ListingStatusDeleted); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete listing")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "listing deleted"})
}

// SetStatus handles PUT /api/listings/{id}/status (moderator and up). It is
// used to suspend a reported listing or reinstate it.
func (h *ListingsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != model.ListingStatusActive && req.Status != model.ListingStatusSuspended {
		jsonError(w, http.StatusBadRequest, "status must be active or suspended")
		return
	}

	listing, err := store.GetListing(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get listing")
		return
	}
	if listing == nil || listing.Status == model.ListingStatusDeleted {
		jsonError(w, http.StatusNotFound, "listing not found")
		return
	}

	if err := store.SetListingStatus(r.Context(), h.DB, id, req.Status); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update listing status")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "status updated"})
}

// UploadImage handles PUT /api/listings/{id}/image.
func (h *ListingsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	if _, ok := h.loadOwned(w, r, id); !ok {
		return
	}

	// Limit to 5 MB.
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20)

	if err := r.ParseMultipartForm(5 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	result, err := imaging.Process(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetListingImage(r.Context(), h.DB, id, result.Data, result.MIME); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/listings/{id}/image.
func (h *ListingsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	data, mime, err := store.GetListingImage(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// loadOwned fetches a listing and checks the caller may modify it. Moderators
// and admins may modify any listing. Writes the error response itself.
func (h *ListingsHandler) loadOwned(w http.ResponseWriter, r *http.Request, id int64) (*model.Listing, bool) {
	listing, err := store.GetListing(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get listing")
		return nil, false
	}
	if listing == nil || listing.Status == model.ListingStatusDeleted {
		jsonError(w, http.StatusNotFound, "listing not found")
		return nil, false
	}

	claims := GetClaims(r.Context())
	if listing.FinderID != claims.UserID && !model.RoleAtLeast(claims.Role, model.RoleModerator) {
		jsonError(w, http.StatusForbidden, "not your listing")
		return nil, false
	}
	return listing, true
}
