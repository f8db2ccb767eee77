package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/retrouvtout/backend/internal/alert"
	"github.com/retrouvtout/backend/internal/db"
	"github.com/retrouvtout/backend/internal/handover"
	"github.com/retrouvtout/backend/internal/model"
	"github.com/retrouvtout/backend/internal/notify"
	"github.com/retrouvtout/backend/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB) {
	t.Helper()
	database := db.NewTestDB(t)

	hub := notify.NewHub()
	dispatcher := notify.NewDispatcher(notify.NewMockEmailProvider(nil), notify.NewMockSMSProvider(nil), hub, nil)
	worker := alert.NewWorker(database, dispatcher, "http://localhost:3000", nil)
	handoverSvc := handover.NewService(database, dispatcher, nil)

	router := NewRouter(database, testJWTSecret, worker, handoverSvc, dispatcher, hub)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, database
}

// registerUser creates an account through the API and returns its token.
func registerUser(t *testing.T, server *httptest.Server, email string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"name":     "Test User",
		"email":    email,
		"password": "password123",
		"phone":    "+38640111222",
	})
	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: %d", resp.StatusCode)
	}

	body, _ = json.Marshal(map[string]string{"email": email, "password": "password123"})
	resp, err = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}
	return token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func doJSON(t *testing.T, req *http.Request, wantStatus int, target any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", req.Method, req.URL.Path, wantStatus, resp.StatusCode)
	}
	if target != nil {
		json.NewDecoder(resp.Body).Decode(target)
	}
}

func createListingViaAPI(t *testing.T, server *httptest.Server, token, title string) model.Listing {
	t.Helper()
	req, _ := authRequest("POST", server.URL+"/api/listings", token, map[string]any{
		"title":         title,
		"category":      model.CategoryElectronics,
		"location_text": "Central station",
		"found_at":      time.Now().Add(-time.Hour).Format(time.RFC3339),
		"description":   "found near the ticket machines",
	})
	var listing model.Listing
	doJSON(t, req, http.StatusCreated, &listing)
	return listing
}

func TestRegisterAndLogin(t *testing.T) {
	server, _ := setupTestServer(t)

	registerUser(t, server, "alice@example.com")

	// Duplicate email.
	body, _ := json.Marshal(map[string]string{
		"name": "Dup", "email": "alice@example.com", "password": "password123",
	})
	resp, _ := http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Short password.
	body, _ = json.Marshal(map[string]string{
		"name": "Bob", "email": "bob@example.com", "password": "short",
	})
	resp, _ = http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Bad credentials.
	body, _ = json.Marshal(map[string]string{"email": "alice@example.com", "password": "wrong"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerUser(t, server, "alice@example.com")

	req, _ := authRequest("GET", server.URL+"/api/users/me", token, nil)
	doJSON(t, req, http.StatusOK, nil)

	req, _ = authRequest("POST", server.URL+"/api/auth/logout", token, nil)
	doJSON(t, req, http.StatusOK, nil)

	req, _ = authRequest("GET", server.URL+"/api/users/me", token, nil)
	doJSON(t, req, http.StatusUnauthorized, nil)
}

func TestListingsAPIFlow(t *testing.T) {
	server, _ := setupTestServer(t)
	finderToken := registerUser(t, server, "finder@example.com")
	otherToken := registerUser(t, server, "other@example.com")

	listing := createListingViaAPI(t, server, finderToken, "Black iPhone 13")
	if listing.Status != model.ListingStatusActive {
		t.Errorf("new listing should be active, got %s", listing.Status)
	}

	// Invalid category is rejected.
	req, _ := authRequest("POST", server.URL+"/api/listings", finderToken, map[string]any{
		"title":         "Something",
		"category":      "bicycles",
		"location_text": "Park",
		"found_at":      time.Now().Format(time.RFC3339),
	})
	doJSON(t, req, http.StatusBadRequest, nil)

	// Public search finds it.
	resp, err := http.Get(server.URL + "/api/listings?q=iphone")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var searchResp struct {
		Listings []model.Listing `json:"listings"`
		Total    int64           `json:"total"`
	}
	json.NewDecoder(resp.Body).Decode(&searchResp)
	resp.Body.Close()
	if searchResp.Total != 1 {
		t.Errorf("expected 1 search hit, got %d", searchResp.Total)
	}

	// Another user's view bumps the counter.
	url := fmt.Sprintf("%s/api/listings/%d", server.URL, listing.ID)
	req, _ = authRequest("GET", url, otherToken, nil)
	var got model.Listing
	doJSON(t, req, http.StatusOK, &got)
	if got.ViewsCount != 1 {
		t.Errorf("expected 1 view, got %d", got.ViewsCount)
	}

	// Only the finder can update.
	update := map[string]any{
		"title":         "Black iPhone 13 Pro",
		"category":      model.CategoryElectronics,
		"location_text": "Central station",
		"found_at":      time.Now().Add(-time.Hour).Format(time.RFC3339),
	}
	req, _ = authRequest("PUT", url, otherToken, update)
	doJSON(t, req, http.StatusForbidden, nil)
	req, _ = authRequest("PUT", url, finderToken, update)
	doJSON(t, req, http.StatusOK, &got)
	if got.Title != "Black iPhone 13 Pro" {
		t.Errorf("title not updated: %s", got.Title)
	}

	// Delete hides the listing.
	req, _ = authRequest("DELETE", url, finderToken, nil)
	doJSON(t, req, http.StatusOK, nil)
	req, _ = authRequest("GET", url, finderToken, nil)
	doJSON(t, req, http.StatusNotFound, nil)
}

func TestAlertsAPIFlow(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerUser(t, server, "alice@example.com")
	otherToken := registerUser(t, server, "bob@example.com")

	req, _ := authRequest("POST", server.URL+"/api/alerts", token, map[string]any{
		"title":    "My phone",
		"category": model.CategoryElectronics,
		"channels": []string{model.ChannelPush},
	})
	var created model.Alert
	doJSON(t, req, http.StatusCreated, &created)
	if !created.Active {
		t.Error("new alert should be active")
	}

	// Missing channels is rejected.
	req, _ = authRequest("POST", server.URL+"/api/alerts", token, map[string]any{
		"title": "No channels",
	})
	doJSON(t, req, http.StatusBadRequest, nil)

	req, _ = authRequest("GET", server.URL+"/api/alerts", token, nil)
	var alerts []model.Alert
	doJSON(t, req, http.StatusOK, &alerts)
	if len(alerts) != 1 {
		t.Errorf("expected 1 alert, got %d", len(alerts))
	}

	// Alerts are private.
	url := fmt.Sprintf("%s/api/alerts/%d", server.URL, created.ID)
	req, _ = authRequest("GET", url, otherToken, nil)
	doJSON(t, req, http.StatusForbidden, nil)

	// Toggle pauses it.
	req, _ = authRequest("POST", url+"/toggle", token, nil)
	var toggled model.Alert
	doJSON(t, req, http.StatusOK, &toggled)
	if toggled.Active {
		t.Error("toggled alert should be paused")
	}

	req, _ = authRequest("DELETE", url, token, nil)
	doJSON(t, req, http.StatusOK, nil)
	req, _ = authRequest("GET", url, token, nil)
	doJSON(t, req, http.StatusNotFound, nil)
}

func TestThreadsAndHandoverFlow(t *testing.T) {
	server, _ := setupTestServer(t)
	finderToken := registerUser(t, server, "finder@example.com")
	ownerToken := registerUser(t, server, "owner@example.com")

	listing := createListingViaAPI(t, server, finderToken, "Red wallet")

	// The finder cannot claim their own listing.
	req, _ := authRequest("POST", server.URL+"/api/threads", finderToken, map[string]any{
		"listing_id": listing.ID,
	})
	doJSON(t, req, http.StatusBadRequest, nil)

	// The owner opens a thread.
	req, _ = authRequest("POST", server.URL+"/api/threads", ownerToken, map[string]any{
		"listing_id": listing.ID,
	})
	var thread model.Thread
	doJSON(t, req, http.StatusCreated, &thread)

	// Opening a second thread for the same listing conflicts.
	req, _ = authRequest("POST", server.URL+"/api/threads", ownerToken, map[string]any{
		"listing_id": listing.ID,
	})
	doJSON(t, req, http.StatusConflict, nil)

	// A confirmation cannot be generated while the thread is pending.
	generateURL := fmt.Sprintf("%s/api/confirmations/generate?threadId=%d", server.URL, thread.ID)
	req, _ = authRequest("POST", generateURL, ownerToken, nil)
	doJSON(t, req, http.StatusBadRequest, nil)

	// Messaging works while pending.
	threadURL := fmt.Sprintf("%s/api/threads/%d", server.URL, thread.ID)
	req, _ = authRequest("POST", threadURL+"/messages", ownerToken, map[string]string{
		"body": "I think that's my wallet, it has a tram ticket inside",
	})
	doJSON(t, req, http.StatusCreated, nil)

	// Both parties approve.
	req, _ = authRequest("POST", threadURL+"/approve", ownerToken, nil)
	doJSON(t, req, http.StatusOK, &thread)
	if thread.Status != model.ThreadStatusPending {
		t.Errorf("one approval should keep the thread pending, got %s", thread.Status)
	}
	req, _ = authRequest("POST", threadURL+"/approve", finderToken, nil)
	doJSON(t, req, http.StatusOK, &thread)
	if thread.Status != model.ThreadStatusApproved {
		t.Fatalf("both approvals should approve the thread, got %s", thread.Status)
	}

	// Generate a handover code.
	req, _ = authRequest("POST", generateURL, ownerToken, nil)
	var confirmation model.Confirmation
	doJSON(t, req, http.StatusCreated, &confirmation)
	if len(confirmation.Code) != model.CodeLength {
		t.Fatalf("unexpected code: %q", confirmation.Code)
	}

	// The finder validates it at handover.
	validateURL := fmt.Sprintf("%s/api/confirmations/validate?code=%s", server.URL, confirmation.Code)
	req, _ = authRequest("POST", validateURL, finderToken, nil)
	doJSON(t, req, http.StatusOK, &confirmation)
	if !confirmation.Used() {
		t.Error("validated confirmation should be used")
	}

	// The thread is closed and the listing resolved.
	req, _ = authRequest("GET", threadURL, ownerToken, nil)
	doJSON(t, req, http.StatusOK, &thread)
	if thread.Status != model.ThreadStatusClosed {
		t.Errorf("thread should be closed, got %s", thread.Status)
	}
	req, _ = authRequest("GET", fmt.Sprintf("%s/api/listings/%d", server.URL, listing.ID), finderToken, nil)
	var resolved model.Listing
	doJSON(t, req, http.StatusOK, &resolved)
	if resolved.Status != model.ListingStatusResolved {
		t.Errorf("listing should be resolved, got %s", resolved.Status)
	}

	// The code cannot be reused.
	req, _ = authRequest("POST", validateURL, ownerToken, nil)
	doJSON(t, req, http.StatusBadRequest, nil)
}

func TestThreadPrivacy(t *testing.T) {
	server, _ := setupTestServer(t)
	finderToken := registerUser(t, server, "finder@example.com")
	ownerToken := registerUser(t, server, "owner@example.com")
	strangerToken := registerUser(t, server, "stranger@example.com")

	listing := createListingViaAPI(t, server, finderToken, "Umbrella")

	req, _ := authRequest("POST", server.URL+"/api/threads", ownerToken, map[string]any{
		"listing_id": listing.ID,
	})
	var thread model.Thread
	doJSON(t, req, http.StatusCreated, &thread)

	threadURL := fmt.Sprintf("%s/api/threads/%d", server.URL, thread.ID)
	req, _ = authRequest("GET", threadURL, strangerToken, nil)
	doJSON(t, req, http.StatusForbidden, nil)
	req, _ = authRequest("GET", threadURL+"/messages", strangerToken, nil)
	doJSON(t, req, http.StatusForbidden, nil)
}

func TestModerationFlow(t *testing.T) {
	server, database := setupTestServer(t)
	userToken := registerUser(t, server, "user@example.com")
	modToken := registerUser(t, server, "mod@example.com")

	// Promote the second account to moderator directly in the store.
	mod, err := store.GetUserByEmail(context.Background(), database, "mod@example.com")
	if err != nil || mod == nil {
		t.Fatalf("loading moderator: %v", err)
	}
	if err := store.SetUserRole(context.Background(), database, mod.ID, model.RoleModerator); err != nil {
		t.Fatalf("promoting moderator: %v", err)
	}
	// Re-login so the token carries the new role.
	body, _ := json.Marshal(map[string]string{"email": "mod@example.com", "password": "password123"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	resp.Body.Close()
	modToken = loginResp["token"]

	listing := createListingViaAPI(t, server, userToken, "Suspicious listing")

	// Anyone can report.
	req, _ := authRequest("POST", server.URL+"/api/flags", userToken, map[string]any{
		"entity_type": model.FlagEntityListing,
		"entity_id":   listing.ID,
		"reason":      "spam",
	})
	var flag model.ModerationFlag
	doJSON(t, req, http.StatusCreated, &flag)

	// Only moderators can list reports.
	req, _ = authRequest("GET", server.URL+"/api/flags", userToken, nil)
	doJSON(t, req, http.StatusForbidden, nil)
	req, _ = authRequest("GET", server.URL+"/api/flags", modToken, nil)
	var flags []model.ModerationFlag
	doJSON(t, req, http.StatusOK, &flags)
	if len(flags) != 1 {
		t.Fatalf("expected 1 flag, got %d", len(flags))
	}

	// Review and suspend the listing.
	req, _ = authRequest("POST", fmt.Sprintf("%s/api/flags/%d/review", server.URL, flag.ID), modToken,
		map[string]string{"status": model.FlagStatusReviewed})
	doJSON(t, req, http.StatusOK, &flag)
	if flag.Status != model.FlagStatusReviewed {
		t.Errorf("flag should be reviewed, got %s", flag.Status)
	}

	req, _ = authRequest("PUT", fmt.Sprintf("%s/api/listings/%d/status", server.URL, listing.ID), modToken,
		map[string]string{"status": model.ListingStatusSuspended})
	doJSON(t, req, http.StatusOK, nil)

	// Suspended listings disappear from search.
	resp, _ = http.Get(server.URL + "/api/listings")
	var searchResp struct {
		Total int64 `json:"total"`
	}
	json.NewDecoder(resp.Body).Decode(&searchResp)
	resp.Body.Close()
	if searchResp.Total != 0 {
		t.Errorf("suspended listing should not appear in search, total=%d", searchResp.Total)
	}
}

func TestListingDetailPublic(t *testing.T) {
	server, database := setupTestServer(t)
	finderToken := registerUser(t, server, "finder@example.com")
	listing := createListingViaAPI(t, server, finderToken, "Black umbrella")

	// Anonymous fetch works and bumps the view counter.
	resp, err := http.Get(fmt.Sprintf("%s/api/listings/%d", server.URL, listing.ID))
	if err != nil {
		t.Fatalf("anonymous get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for anonymous fetch, got %d", resp.StatusCode)
	}
	var got model.Listing
	json.NewDecoder(resp.Body).Decode(&got)
	if got.ViewsCount != 1 {
		t.Errorf("anonymous view should count, got %d", got.ViewsCount)
	}

	// The finder's own fetch does not.
	req, _ := authRequest("GET", fmt.Sprintf("%s/api/listings/%d", server.URL, listing.ID), finderToken, nil)
	doJSON(t, req, http.StatusOK, &got)
	if got.ViewsCount != 1 {
		t.Errorf("finder's own view should not count, got %d", got.ViewsCount)
	}

	// A suspended listing is hidden from anonymous viewers but not its finder.
	if err := store.SetListingStatus(context.Background(), database, listing.ID, model.ListingStatusSuspended); err != nil {
		t.Fatalf("suspending listing: %v", err)
	}
	resp, err = http.Get(fmt.Sprintf("%s/api/listings/%d", server.URL, listing.ID))
	if err != nil {
		t.Fatalf("anonymous get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for suspended listing, got %d", resp.StatusCode)
	}
	req, _ = authRequest("GET", fmt.Sprintf("%s/api/listings/%d", server.URL, listing.ID), finderToken, nil)
	doJSON(t, req, http.StatusOK, &got)
	if got.Status != model.ListingStatusSuspended {
		t.Errorf("finder should see the suspended listing, got %s", got.Status)
	}
}
