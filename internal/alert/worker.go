package alert

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/retrouvtout/backend/internal/model"
	"github.com/retrouvtout/backend/internal/notify"
	"github.com/retrouvtout/backend/internal/store"
)

// Worker runs the alert-matching sweep off the request path. Listing creation
// enqueues the listing ID and returns immediately; the worker matches it
// against a snapshot of active alerts and dispatches notifications.
type Worker struct {
	db         *sql.DB
	dispatcher *notify.Dispatcher
	baseURL    string
	queue      chan int64
	stopCh     chan struct{}
	logger     *slog.Logger
}

// NewWorker creates a worker. baseURL is used to build listing links in
// notification bodies.
func NewWorker(db *sql.DB, dispatcher *notify.Dispatcher, baseURL string, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		db:         db,
		dispatcher: dispatcher,
		baseURL:    baseURL,
		queue:      make(chan int64, 256),
		stopCh:     make(chan struct{}),
		logger:     logger,
	}
}

// Start launches the worker loop.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case listingID := <-w.queue:
				if err := w.Process(ctx, listingID); err != nil {
					w.logger.Error("alert sweep failed", "listing_id", listingID, "error", err)
				}
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts the worker loop down. Queued listings are dropped.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// Enqueue schedules a listing for matching without blocking the caller. When
// the queue is full the listing is dropped and logged; the sweep is
// best-effort by contract.
func (w *Worker) Enqueue(listingID int64) {
	select {
	case w.queue <- listingID:
	default:
		w.logger.Warn("alert queue full, dropping listing", "listing_id", listingID)
	}
}

// Process runs one matching sweep for a listing. Each alert is handled in
// isolation: a failure to persist or notify one alert is logged and the sweep
// moves on to the next.
func (w *Worker) Process(ctx context.Context, listingID int64) error {
	listing, err := store.GetListing(ctx, w.db, listingID)
	if err != nil {
		return fmt.Errorf("loading listing: %w", err)
	}
	if listing == nil || listing.Status != model.ListingStatusActive {
		return nil
	}

	alerts, err := store.ListActiveAlerts(ctx, w.db)
	if err != nil {
		return fmt.Errorf("loading active alerts: %w", err)
	}

	matches := FindMatches(listing, alerts)
	for _, a := range matches {
		if err := w.processMatch(ctx, &a, listing); err != nil {
			w.logger.Error("alert match processing failed",
				"alert_id", a.ID, "listing_id", listing.ID, "error", err)
		}
	}

	if len(matches) > 0 {
		w.logger.Info("alert sweep done", "listing_id", listing.ID, "matches", len(matches))
	}
	return nil
}

// processMatch records the trigger and notifies the alert's owner on each of
// its channels. Channel failures are absorbed by the dispatcher.
func (w *Worker) processMatch(ctx context.Context, a *model.Alert, listing *model.Listing) error {
	if err := store.MarkAlertTriggered(ctx, w.db, a.ID, time.Now().UTC()); err != nil {
		return err
	}

	owner, err := store.GetUser(ctx, w.db, a.OwnerID)
	if err != nil {
		return err
	}
	if owner == nil || !owner.Active {
		return nil
	}

	listingURL := fmt.Sprintf("%s/listings/%d", w.baseURL, listing.ID)

	for _, channel := range a.Channels {
		switch channel {
		case model.ChannelEmail:
			subject := fmt.Sprintf("New found item matches your alert %q", a.Title)
			body := fmt.Sprintf("<p>%s was just posted and matches your alert %q.</p><p><a href=%q>View the listing</a></p>",
				listing.Title, a.Title, listingURL)
			w.dispatcher.SendEmail(ctx, owner, subject, body)
		case model.ChannelSMS:
			text := fmt.Sprintf("New found item for your alert %q: %s. See %s", a.Title, listing.Title, listingURL)
			w.dispatcher.SendSMS(ctx, owner.Phone, text)
		case model.ChannelPush:
			body := fmt.Sprintf("%q matches your alert %q", listing.Title, a.Title)
			w.dispatcher.SendPush(ctx, owner.ID, "New found item!", body, listingURL)
		}
	}
	return nil
}
