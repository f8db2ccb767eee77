package handover

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/retrouvtout/backend/internal/store"
)

// SweepInterval is how often expired unused confirmations are purged.
const SweepInterval = time.Hour

// Sweeper periodically deletes confirmations that expired without being
// redeemed. Pure housekeeping: every error is logged and the ticker keeps
// running.
type Sweeper struct {
	db       *sql.DB
	interval time.Duration
	stopCh   chan struct{}
	logger   *slog.Logger
}

// NewSweeper creates a sweeper with the default interval.
func NewSweeper(db *sql.DB, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		db:       db,
		interval: SweepInterval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Start launches the periodic sweep.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts the sweeper down.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

// Sweep runs one cleanup pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	n, err := store.DeleteExpiredConfirmations(ctx, s.db, time.Now().UTC())
	if err != nil {
		s.logger.Error("confirmation sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("cleaned up expired confirmations", "count", n)
	}
}
