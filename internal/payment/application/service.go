package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/parkflow/parkflow/internal/payment/domain"
	"github.com/parkflow/parkflow/pkg/logging"
)

const defaultCurrency = "INR"

// Service implements both payment-side saga steps: turning a consumed
// slot_reserved event into a checkout session plus pending transaction,
// and reconciling processor webhooks onto the transaction record. All
// effects are keyed by reservation or session id so re-delivery of any
// message is safe.
type Service struct {
	log      *slog.Logger
	repo     TransactionRepository
	checkout CheckoutClient
}

func NewService(log *slog.Logger, repo TransactionRepository, checkout CheckoutClient) *Service {
	return &Service{log: log, repo: repo, checkout: checkout}
}

// HandleSlotReserved is the payment intent step. Invoked at least once per
// reservation; the existing-transaction check makes re-runs return the
// first outcome instead of opening a second session.
func (s *Service) HandleSlotReserved(ctx context.Context, ev domain.SlotReserved) (domain.Transaction, error) {
	if existing, err := s.repo.ByReservation(ctx, ev.ReservationID); err == nil {
		s.log.Info("transaction already exists for reservation", "reservation_id", ev.ReservationID, "transaction_id", existing.ID)
		return existing, nil
	} else if !errors.Is(err, domain.ErrTransactionNotFound) {
		return domain.Transaction{}, err
	}

	profile, err := s.repo.Profile(ctx, ev.UserID)
	if err != nil {
		return domain.Transaction{}, err
	}

	session, err := s.checkout.CreateSession(ctx, CheckoutInput{
		ReservationID: ev.ReservationID,
		SlotID:        ev.SlotID,
		VehicleID:     ev.VehicleID,
		GarageID:      ev.GarageID,
		UserID:        ev.UserID,
		CustomerEmail: profile.Email,
		Currency:      defaultCurrency,
		Amount:        ev.Price,
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	t := domain.NewPendingTransaction(ev.UserID, ev.Price, defaultCurrency,
		ev.ReservationID, session.ID, ev.SlotID, ev.VehicleID, ev.GarageID)
	if err := s.repo.CreatePending(ctx, t); err != nil {
		return domain.Transaction{}, err
	}

	s.log.Info("checkout session opened", "reservation_id", ev.ReservationID,
		"transaction_id", t.ID, "session_id", session.ID, "amount", ev.Price)
	return t, nil
}

// CompleteBySession marks the transaction completed and queues the
// PAYMENT_COMPLETED outcome. The transaction update commits first; a
// failed enqueue is logged and surfaces through the outbox, never by
// rolling the completion back.
func (s *Service) CompleteBySession(ctx context.Context, sessionID, paymentID string, headers map[string]string, traceparent string) error {
	t, err := s.repo.Complete(ctx, sessionID, paymentID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(domain.PaymentCompleted{
		TransactionID: t.ID,
		ReservationID: t.ReservationID,
		UserID:        t.UserID,
	})
	if err != nil {
		return err
	}
	if err := s.repo.Enqueue(ctx, t.ReservationID, domain.TopicPaymentCompleted, payload, headers, traceparent); err != nil {
		s.log.Error("outcome enqueue failed", "session_id", sessionID, logging.Err(err))
		return err
	}
	s.log.Info("payment completed", "transaction_id", t.ID, "reservation_id", t.ReservationID)
	return nil
}

// FailBySession marks the transaction failed, storing the raw processor
// payload as error detail, and queues PAYMENT_FAILED.
func (s *Service) FailBySession(ctx context.Context, sessionID string, errorDetails []byte, headers map[string]string, traceparent string) error {
	t, err := s.repo.Fail(ctx, sessionID, errorDetails)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(domain.PaymentFailed{
		CheckoutSessionID: sessionID,
		ReservationID:     t.ReservationID,
	})
	if err != nil {
		return err
	}
	if err := s.repo.Enqueue(ctx, t.ReservationID, domain.TopicPaymentFailed, payload, headers, traceparent); err != nil {
		s.log.Error("outcome enqueue failed", "session_id", sessionID, logging.Err(err))
		return err
	}
	s.log.Info("payment failed", "transaction_id", t.ID, "reservation_id", t.ReservationID)
	return nil
}
