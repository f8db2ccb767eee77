package store

import (
	"context"
	"testing"
	"time"

	"github.com/retrouvtout/backend/internal/db"
	"github.com/retrouvtout/backend/internal/model"
)

func TestSearchListingsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	finder := seedUser(t, database, "finder@example.com")

	seedListing(t, database, finder.ID, "Black iPhone", model.CategoryElectronics)
	seedListing(t, database, finder.ID, "House keys", model.CategoryKeys)
	seedListing(t, database, finder.ID, "Blue backpack", model.CategoryBags)

	listings, total, err := SearchListings(ctx, database, ListingFilter{}, 1, 20)
	if err != nil {
		t.Fatalf("SearchListings: %v", err)
	}
	if total != 3 || len(listings) != 3 {
		t.Errorf("expected 3 listings, got %d (total %d)", len(listings), total)
	}

	listings, total, err = SearchListings(ctx, database, ListingFilter{Category: model.CategoryKeys}, 1, 20)
	if err != nil {
		t.Fatalf("SearchListings by category: %v", err)
	}
	if total != 1 || listings[0].Title != "House keys" {
		t.Errorf("category filter failed: total=%d", total)
	}

	// Keyword search is case-insensitive over title and description.
	listings, _, err = SearchListings(ctx, database, ListingFilter{Query: "IPHONE"}, 1, 20)
	if err != nil {
		t.Fatalf("SearchListings by query: %v", err)
	}
	if len(listings) != 1 || listings[0].Title != "Black iPhone" {
		t.Error("query filter should match title case-insensitively")
	}

	_, total, err = SearchListings(ctx, database, ListingFilter{Query: "unicorn"}, 1, 20)
	if err != nil {
		t.Fatalf("SearchListings no match: %v", err)
	}
	if total != 0 {
		t.Errorf("expected no matches, got %d", total)
	}
}

func TestSearchListingsExcludesNonActive(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	finder := seedUser(t, database, "finder@example.com")

	active := seedListing(t, database, finder.ID, "Visible", model.CategoryOther)
	hidden := seedListing(t, database, finder.ID, "Hidden", model.CategoryOther)
	if err := SetListingStatus(ctx, database, hidden.ID, model.ListingStatusSuspended); err != nil {
		t.Fatalf("suspending listing: %v", err)
	}

	listings, total, err := SearchListings(ctx, database, ListingFilter{}, 1, 20)
	if err != nil {
		t.Fatalf("SearchListings: %v", err)
	}
	if total != 1 || listings[0].ID != active.ID {
		t.Error("search should only return active listings")
	}
}

func TestSearchListingsPaging(t *testing.T) {
	database := db.NewTestDB(t)
	finder := seedUser(t, database, "finder@example.com")

	for i := 0; i < 5; i++ {
		seedListing(t, database, finder.ID, "Item", model.CategoryOther)
	}

	listings, total, err := SearchListings(context.Background(), database, ListingFilter{}, 2, 2)
	if err != nil {
		t.Fatalf("SearchListings: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(listings) != 2 {
		t.Errorf("expected page of 2, got %d", len(listings))
	}
}

func TestDeletedListingIsImmutable(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	finder := seedUser(t, database, "finder@example.com")

	listing := seedListing(t, database, finder.ID, "Gone", model.CategoryOther)
	if err := SetListingStatus(ctx, database, listing.ID, model.ListingStatusDeleted); err != nil {
		t.Fatalf("deleting listing: %v", err)
	}

	// Neither updates nor status changes touch a deleted listing.
	listing.Title = "Changed"
	if err := UpdateListing(ctx, database, listing); err != nil {
		t.Fatalf("UpdateListing: %v", err)
	}
	if err := SetListingStatus(ctx, database, listing.ID, model.ListingStatusActive); err != nil {
		t.Fatalf("SetListingStatus: %v", err)
	}

	got, err := GetListing(ctx, database, listing.ID)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if got.Title != "Gone" || got.Status != model.ListingStatusDeleted {
		t.Errorf("deleted listing changed: title=%s status=%s", got.Title, got.Status)
	}
}

func TestIncrementListingViews(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	finder := seedUser(t, database, "finder@example.com")
	listing := seedListing(t, database, finder.ID, "Watched", model.CategoryOther)

	for i := 0; i < 3; i++ {
		if err := IncrementListingViews(ctx, database, listing.ID); err != nil {
			t.Fatalf("IncrementListingViews: %v", err)
		}
	}

	got, _ := GetListing(ctx, database, listing.ID)
	if got.ViewsCount != 3 {
		t.Errorf("expected 3 views, got %d", got.ViewsCount)
	}
}

func TestSearchListingsDateRange(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	finder := seedUser(t, database, "finder@example.com")

	old, err := CreateListing(ctx, database, &model.Listing{
		FinderID:     finder.ID,
		Title:        "Old find",
		Category:     model.CategoryOther,
		LocationText: "Somewhere",
		FoundAt:      time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("creating listing: %v", err)
	}
	recent := seedListing(t, database, finder.ID, "Recent find", model.CategoryOther)

	from := time.Now().Add(-24 * time.Hour)
	listings, _, err := SearchListings(ctx, database, ListingFilter{DateFrom: &from}, 1, 20)
	if err != nil {
		t.Fatalf("SearchListings: %v", err)
	}
	if len(listings) != 1 || listings[0].ID != recent.ID {
		t.Error("date_from filter should exclude older finds")
	}

	to := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	listings, _, err = SearchListings(ctx, database, ListingFilter{DateTo: &to}, 1, 20)
	if err != nil {
		t.Fatalf("SearchListings: %v", err)
	}
	if len(listings) != 1 || listings[0].ID != old.ID {
		t.Error("date_to filter should exclude newer finds")
	}
}
