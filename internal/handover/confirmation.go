// Package handover implements the confirmation-code exchange that closes a
// conversation and resolves its listing once the item changed hands.
package handover

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/retrouvtout/backend/internal/apperr"
	"github.com/retrouvtout/backend/internal/model"
	"github.com/retrouvtout/backend/internal/notify"
	"github.com/retrouvtout/backend/internal/store"
)

// codeAttempts bounds the retries when a generated code collides with another
// live code.
const codeAttempts = 5

// Service implements confirmation generation and redemption.
type Service struct {
	db         *sql.DB
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

// NewService creates a handover service.
func NewService(db *sql.DB, dispatcher *notify.Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, dispatcher: dispatcher, logger: logger}
}

// Generate issues a fresh confirmation code for the thread, replacing any
// prior one, and delivers it to both parties out-of-band.
func (s *Service) Generate(ctx context.Context, threadID, userID int64) (*model.Confirmation, error) {
	thread, err := store.GetThread(ctx, s.db, threadID)
	if err != nil {
		return nil, apperr.Internal("loading thread", err)
	}
	if thread == nil {
		return nil, apperr.NotFound("thread")
	}
	if !thread.IsParty(userID) {
		return nil, apperr.Authorization("you are not a party to this thread")
	}
	if thread.Status != model.ThreadStatusApproved {
		return nil, apperr.Validation("thread must be approved")
	}

	var confirmation *model.Confirmation
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, apperr.Internal("generating code", err)
		}

		confirmation, err = store.ReplaceConfirmation(ctx, s.db, threadID, code, time.Now().UTC().Add(model.ConfirmationTTL))
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrCodeCollision) {
			s.logger.Warn("confirmation code collision, regenerating", "thread_id", threadID)
			continue
		}
		return nil, apperr.Internal("storing confirmation", err)
	}
	if confirmation == nil {
		return nil, apperr.Internal("generating confirmation", errors.New("exhausted code attempts"))
	}

	s.deliverCode(ctx, thread, confirmation.Code)

	s.logger.Info("confirmation generated", "thread_id", threadID, "user_id", userID)
	return confirmation, nil
}

// Validate redeems a confirmation code. On success the thread is closed, the
// listing is resolved and both parties are notified. A code redeems exactly
// once; concurrent redeemers race on the store's compare-and-set.
func (s *Service) Validate(ctx context.Context, code string, userID int64) (*model.Confirmation, error) {
	confirmation, err := store.GetConfirmationByCode(ctx, s.db, code)
	if err != nil {
		return nil, apperr.Internal("loading confirmation", err)
	}
	if confirmation == nil {
		return nil, apperr.NotFound("confirmation")
	}
	if confirmation.Expired(time.Now().UTC()) {
		return nil, apperr.Validation("confirmation code expired")
	}
	if confirmation.Used() {
		return nil, apperr.Validation("confirmation code already used")
	}

	thread, err := store.GetThread(ctx, s.db, confirmation.ThreadID)
	if err != nil {
		return nil, apperr.Internal("loading thread", err)
	}
	if thread == nil {
		return nil, apperr.NotFound("thread")
	}
	if !thread.IsParty(userID) {
		return nil, apperr.Authorization("you are not a party to this thread")
	}

	redeemed, err := store.RedeemConfirmation(ctx, s.db, confirmation.ID, userID)
	if errors.Is(err, store.ErrCodeUsed) {
		return nil, apperr.Validation("confirmation code already used")
	}
	if err != nil {
		return nil, apperr.Internal("redeeming confirmation", err)
	}

	s.notifyHandover(ctx, thread)

	s.logger.Info("handover confirmed", "thread_id", thread.ID, "user_id", userID)
	return redeemed, nil
}

// ThreadConfirmation returns the confirmation bound to a thread, restricted to
// the thread's parties.
func (s *Service) ThreadConfirmation(ctx context.Context, threadID, userID int64) (*model.Confirmation, error) {
	thread, err := store.GetThread(ctx, s.db, threadID)
	if err != nil {
		return nil, apperr.Internal("loading thread", err)
	}
	if thread == nil {
		return nil, apperr.NotFound("thread")
	}
	if !thread.IsParty(userID) {
		return nil, apperr.Authorization("you are not a party to this thread")
	}

	confirmation, err := store.GetConfirmationByThread(ctx, s.db, threadID)
	if err != nil {
		return nil, apperr.Internal("loading confirmation", err)
	}
	if confirmation == nil {
		return nil, apperr.NotFound("confirmation")
	}
	return confirmation, nil
}

// deliverCode sends the code to both parties via SMS and push. Failures are
// absorbed by the dispatcher; the generated confirmation stands regardless.
func (s *Service) deliverCode(ctx context.Context, thread *model.Thread, code string) {
	text := fmt.Sprintf("Handover code for %q: %s. Valid 24h.", thread.ListingTitle, code)
	body := fmt.Sprintf("Code: %s (valid 24h)", code)
	url := fmt.Sprintf("/messages/%d", thread.ID)

	for _, userID := range []int64{thread.OwnerID, thread.FinderID} {
		user, err := store.GetUser(ctx, s.db, userID)
		if err != nil || user == nil {
			s.logger.Error("loading party for code delivery", "user_id", userID, "error", err)
			continue
		}
		s.dispatcher.SendSMS(ctx, user.Phone, text)
		s.dispatcher.SendPush(ctx, user.ID, "Handover code generated", body, url)
	}
}

// notifyHandover tells both parties the handover went through.
func (s *Service) notifyHandover(ctx context.Context, thread *model.Thread) {
	ownerBody := fmt.Sprintf("You recovered %q", thread.ListingTitle)
	finderBody := fmt.Sprintf("Item handed over: %q", thread.ListingTitle)

	s.dispatcher.SendPush(ctx, thread.OwnerID, "Item recovered!", ownerBody, "/profile")
	s.dispatcher.SendPush(ctx, thread.FinderID, "Handover confirmed!", finderBody, "/profile")

	for userID, text := range map[int64]string{
		thread.OwnerID:  fmt.Sprintf("Handover confirmed for %q. Thanks for using the service!", thread.ListingTitle),
		thread.FinderID: fmt.Sprintf("Thanks for helping return %q!", thread.ListingTitle),
	} {
		user, err := store.GetUser(ctx, s.db, userID)
		if err != nil || user == nil {
			s.logger.Error("loading party for handover notice", "user_id", userID, "error", err)
			continue
		}
		s.dispatcher.SendSMS(ctx, user.Phone, text)
	}
}

// generateCode draws a uniformly random code over the confirmation alphabet.
func generateCode() (string, error) {
	alphabetLen := big.NewInt(int64(len(model.CodeAlphabet)))
	code := make([]byte, model.CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		code[i] = model.CodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
