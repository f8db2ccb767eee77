package handover

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/retrouvtout/backend/internal/apperr"
	"github.com/retrouvtout/backend/internal/db"
	"github.com/retrouvtout/backend/internal/model"
	"github.com/retrouvtout/backend/internal/notify"
	"github.com/retrouvtout/backend/internal/store"
)

type fixture struct {
	db      *sql.DB
	service *Service
	sms     *notify.MockSMSProvider
	owner   *model.User
	finder  *model.User
	listing *model.Listing
	thread  *model.Thread
}

// setup creates two users, a listing, and a thread approved by both parties.
func setup(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	sms := notify.NewMockSMSProvider(nil)
	dispatcher := notify.NewDispatcher(notify.NewMockEmailProvider(nil), sms, notify.NewHub(), nil)
	service := NewService(database, dispatcher, nil)

	finder, err := store.CreateUser(ctx, database, "Finder", "finder@example.com", "hash", "+38640111222")
	if err != nil {
		t.Fatalf("creating finder: %v", err)
	}
	owner, err := store.CreateUser(ctx, database, "Owner", "owner@example.com", "hash", "+38640333444")
	if err != nil {
		t.Fatalf("creating owner: %v", err)
	}

	listing, err := store.CreateListing(ctx, database, &model.Listing{
		FinderID:     finder.ID,
		Title:        "Red wallet",
		Category:     model.CategoryOther,
		LocationText: "City park",
		FoundAt:      time.Now().Add(-2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("creating listing: %v", err)
	}

	thread, err := store.CreateThread(ctx, database, listing.ID, owner.ID, finder.ID)
	if err != nil {
		t.Fatalf("creating thread: %v", err)
	}
	if _, err := store.ApproveThread(ctx, database, thread.ID, owner.ID); err != nil {
		t.Fatalf("owner approval: %v", err)
	}
	thread, err = store.ApproveThread(ctx, database, thread.ID, finder.ID)
	if err != nil {
		t.Fatalf("finder approval: %v", err)
	}
	if thread.Status != model.ThreadStatusApproved {
		t.Fatalf("expected approved thread, got %s", thread.Status)
	}

	return &fixture{
		db:      database,
		service: service,
		sms:     sms,
		owner:   owner,
		finder:  finder,
		listing: listing,
		thread:  thread,
	}
}

func TestGenerate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	confirmation, err := f.service.Generate(ctx, f.thread.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(confirmation.Code) != model.CodeLength {
		t.Errorf("expected %d-character code, got %q", model.CodeLength, confirmation.Code)
	}
	for _, c := range confirmation.Code {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			t.Errorf("code contains invalid character: %q", confirmation.Code)
			break
		}
	}
	if confirmation.Used() {
		t.Error("fresh confirmation should not be used")
	}

	ttl := time.Until(confirmation.ExpiresAt)
	if ttl < 23*time.Hour || ttl > 25*time.Hour {
		t.Errorf("expected ~24h expiry, got %s", ttl)
	}

	// Both parties receive the code via SMS.
	if got := len(f.sms.Sent()); got != 2 {
		t.Errorf("expected 2 code SMS, got %d", got)
	}
}

func TestGenerateRequiresApprovedThread(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// A second listing with a still-pending thread.
	listing, _ := store.CreateListing(ctx, f.db, &model.Listing{
		FinderID:     f.finder.ID,
		Title:        "Umbrella",
		Category:     model.CategoryOther,
		LocationText: "Bus stop",
		FoundAt:      time.Now().Add(-time.Hour),
	})
	pending, err := store.CreateThread(ctx, f.db, listing.ID, f.owner.ID, f.finder.ID)
	if err != nil {
		t.Fatalf("creating thread: %v", err)
	}

	_, err = f.service.Generate(ctx, pending.ID, f.owner.ID)
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("expected validation error for pending thread, got %v", err)
	}
}

func TestGenerateRejectsNonParty(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	stranger, _ := store.CreateUser(ctx, f.db, "Stranger", "stranger@example.com", "hash", "")

	_, err := f.service.Generate(ctx, f.thread.ID, stranger.ID)
	if !apperr.Is(err, apperr.CodeAuthorization) {
		t.Errorf("expected authorization error, got %v", err)
	}
}

func TestGenerateReplacesPriorCode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.service.Generate(ctx, f.thread.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := f.service.Generate(ctx, f.thread.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if first.Code == second.Code {
		t.Fatal("regeneration should produce a new code")
	}

	// The old code no longer redeems.
	if _, err := f.service.Validate(ctx, first.Code, f.owner.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected not found for replaced code, got %v", err)
	}

	// The new one does.
	if _, err := f.service.Validate(ctx, second.Code, f.owner.ID); err != nil {
		t.Errorf("new code should validate: %v", err)
	}
}

func TestValidateClosesThreadAndResolvesListing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	confirmation, err := f.service.Generate(ctx, f.thread.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	redeemed, err := f.service.Validate(ctx, confirmation.Code, f.finder.ID)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !redeemed.Used() {
		t.Error("redeemed confirmation should be marked used")
	}
	if redeemed.UsedBy == nil || *redeemed.UsedBy != f.finder.ID {
		t.Error("redeemed confirmation should record the redeeming user")
	}

	thread, _ := store.GetThread(ctx, f.db, f.thread.ID)
	if thread.Status != model.ThreadStatusClosed {
		t.Errorf("expected closed thread, got %s", thread.Status)
	}

	listing, _ := store.GetListing(ctx, f.db, f.listing.ID)
	if listing.Status != model.ListingStatusResolved {
		t.Errorf("expected resolved listing, got %s", listing.Status)
	}
}

func TestValidateSingleUse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	confirmation, err := f.service.Generate(ctx, f.thread.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := f.service.Validate(ctx, confirmation.Code, f.owner.ID); err != nil {
		t.Fatalf("first Validate: %v", err)
	}

	_, err = f.service.Validate(ctx, confirmation.Code, f.finder.ID)
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("expected validation error for reused code, got %v", err)
	}
}

func TestValidateExpiredCode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	confirmation, err := f.service.Generate(ctx, f.thread.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Age the confirmation past its expiry.
	if _, err := f.db.ExecContext(ctx,
		`UPDATE confirmations SET expires_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Minute), confirmation.ID,
	); err != nil {
		t.Fatalf("aging confirmation: %v", err)
	}

	_, err = f.service.Validate(ctx, confirmation.Code, f.owner.ID)
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("expected validation error for expired code, got %v", err)
	}
}

func TestValidateRejectsNonParty(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	confirmation, err := f.service.Generate(ctx, f.thread.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	stranger, _ := store.CreateUser(ctx, f.db, "Stranger", "stranger@example.com", "hash", "")
	_, err = f.service.Validate(ctx, confirmation.Code, stranger.ID)
	if !apperr.Is(err, apperr.CodeAuthorization) {
		t.Errorf("expected authorization error, got %v", err)
	}
}

func TestValidateUnknownCode(t *testing.T) {
	f := setup(t)

	_, err := f.service.Validate(context.Background(), "ZZZZZZ", f.owner.ID)
	if !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestThreadConfirmation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.service.ThreadConfirmation(ctx, f.thread.ID, f.owner.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected not found before generation, got %v", err)
	}

	generated, err := f.service.Generate(ctx, f.thread.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	got, err := f.service.ThreadConfirmation(ctx, f.thread.ID, f.finder.ID)
	if err != nil {
		t.Fatalf("ThreadConfirmation: %v", err)
	}
	if got.Code != generated.Code {
		t.Errorf("expected code %s, got %s", generated.Code, got.Code)
	}
}

func TestSweepDeletesExpiredUnused(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	confirmation, err := f.service.Generate(ctx, f.thread.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := f.db.ExecContext(ctx,
		`UPDATE confirmations SET expires_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Minute), confirmation.ID,
	); err != nil {
		t.Fatalf("aging confirmation: %v", err)
	}

	sweeper := NewSweeper(f.db, nil)
	sweeper.Sweep(ctx)

	got, err := store.GetConfirmationByThread(ctx, f.db, f.thread.ID)
	if err != nil {
		t.Fatalf("getting confirmation: %v", err)
	}
	if got != nil {
		t.Error("expired unused confirmation should have been swept")
	}
}
