package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/retrouvtout/backend/internal/model"
	"github.com/retrouvtout/backend/internal/notify"
	"github.com/retrouvtout/backend/internal/store"
)

// ThreadsHandler handles conversation endpoints.
type ThreadsHandler struct {
	DB         *sql.DB
	Dispatcher *notify.Dispatcher
}

type createThreadRequest struct {
	ListingID int64 `json:"listing_id"`
}

type createMessageRequest struct {
	Body string `json:"body"`
}

// Create handles POST /api/threads. The caller becomes the claiming owner of
// the listing's item.
func (h *ThreadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createThreadRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	listing, err := store.GetListing(r.Context(), h.DB, req.ListingID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get listing")
		return
	}
	if listing == nil || listing.Status != model.ListingStatusActive {
		jsonError(w, http.StatusNotFound, "listing not found or no longer active")
		return
	}
	if listing.FinderID == claims.UserID {
		jsonError(w, http.StatusBadRequest, "cannot contact yourself about your own listing")
		return
	}

	existing, err := store.GetThreadByListingAndOwner(r.Context(), h.DB, listing.ID, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to check existing conversation")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, "conversation already exists for this listing")
		return
	}

	thread, err := store.CreateThread(r.Context(), h.DB, listing.ID, claims.UserID, listing.FinderID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	h.Dispatcher.SendPush(r.Context(), listing.FinderID, "New claim",
		fmt.Sprintf("Someone thinks %q is theirs", listing.Title),
		fmt.Sprintf("/messages/%d", thread.ID))

	jsonResponse(w, http.StatusCreated, thread)
}

// List handles GET /api/threads.
func (h *ThreadsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	status := r.URL.Query().Get("status")
	if status != "" && status != model.ThreadStatusPending &&
		status != model.ThreadStatusApproved && status != model.ThreadStatusClosed {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	threads, err := store.ListUserThreads(r.Context(), h.DB, claims.UserID, status)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if threads == nil {
		threads = []model.Thread{}
	}
	jsonResponse(w, http.StatusOK, threads)
}

// Get handles GET /api/threads/{id}.
func (h *ThreadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	thread, ok := h.loadParty(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, thread)
}

// Approve handles POST /api/threads/{id}/approve. When both parties have
// approved, the thread transitions to approved and a handover code can be
// generated.
func (h *ThreadsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	thread, ok := h.loadParty(w, r)
	if !ok {
		return
	}
	if thread.Status != model.ThreadStatusPending {
		jsonError(w, http.StatusBadRequest, "conversation is not pending")
		return
	}

	claims := GetClaims(r.Context())
	updated, err := store.ApproveThread(r.Context(), h.DB, thread.ID, claims.UserID)
	if err != nil {
		if strings.Contains(err.Error(), "not pending") {
			jsonError(w, http.StatusBadRequest, "conversation is not pending")
			return
		}
		jsonError(w, http.StatusInternalServerError, "failed to approve conversation")
		return
	}

	if updated.Status == model.ThreadStatusApproved {
		url := fmt.Sprintf("/messages/%d", updated.ID)
		h.Dispatcher.SendPush(r.Context(), updated.OwnerID, "Contact approved",
			"Both parties approved. You can arrange the handover.", url)
		h.Dispatcher.SendPush(r.Context(), updated.FinderID, "Contact approved",
			"Both parties approved. You can arrange the handover.", url)
	}

	jsonResponse(w, http.StatusOK, updated)
}

// Close handles POST /api/threads/{id}/close.
func (h *ThreadsHandler) Close(w http.ResponseWriter, r *http.Request) {
	thread, ok := h.loadParty(w, r)
	if !ok {
		return
	}
	if thread.Status == model.ThreadStatusClosed {
		jsonError(w, http.StatusBadRequest, "conversation already closed")
		return
	}

	if err := store.CloseThread(r.Context(), h.DB, thread.ID); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to close conversation")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "conversation closed"})
}

// Messages handles GET /api/threads/{id}/messages.
func (h *ThreadsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	thread, ok := h.loadParty(w, r)
	if !ok {
		return
	}

	messages, err := store.ListThreadMessages(r.Context(), h.DB, thread.ID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	jsonResponse(w, http.StatusOK, messages)
}

// SendMessage handles POST /api/threads/{id}/messages.
func (h *ThreadsHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	thread, ok := h.loadParty(w, r)
	if !ok {
		return
	}
	if thread.Status == model.ThreadStatusClosed {
		jsonError(w, http.StatusBadRequest, "conversation is closed")
		return
	}

	var req createMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		jsonError(w, http.StatusBadRequest, "message body required")
		return
	}
	if len(req.Body) > 4000 {
		jsonError(w, http.StatusBadRequest, "message too long")
		return
	}

	claims := GetClaims(r.Context())
	message, err := store.CreateMessage(r.Context(), h.DB, thread.ID, claims.UserID, req.Body)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	recipient := thread.OwnerID
	if claims.UserID == thread.OwnerID {
		recipient = thread.FinderID
	}
	h.Dispatcher.SendPush(r.Context(), recipient, "New message",
		fmt.Sprintf("New message about %q", thread.ListingTitle),
		fmt.Sprintf("/messages/%d", thread.ID))

	jsonResponse(w, http.StatusCreated, message)
}

// MarkRead handles POST /api/threads/{id}/read.
func (h *ThreadsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	thread, ok := h.loadParty(w, r)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	if err := store.MarkThreadRead(r.Context(), h.DB, thread.ID, claims.UserID); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to mark conversation read")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "marked read"})
}

// loadParty fetches the thread from the path and checks the caller is one of
// its parties. Writes the error response itself.
func (h *ThreadsHandler) loadParty(w http.ResponseWriter, r *http.Request) (*model.Thread, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid thread id")
		return nil, false
	}

	thread, err := store.GetThread(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get conversation")
		return nil, false
	}
	if thread == nil {
		jsonError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}

	claims := GetClaims(r.Context())
	if !thread.IsParty(claims.UserID) {
		jsonError(w, http.StatusForbidden, "not a party to this conversation")
		return nil, false
	}
	return thread, true
}
