package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/parkflow/parkflow/internal/parking/domain"
	"github.com/parkflow/parkflow/pkg/logging"
)

// ErrInvalidInput marks request-shaped failures; the HTTP layer turns it
// into a 400 and it is never retried.
var ErrInvalidInput = errors.New("invalid input")

// Service is the reservation saga coordinator. Creating a reservation is
// synchronous up to the slot CAS and the outbox insert; everything after
// that (checkout session, payment outcome) arrives through events keyed by
// the reservation id, so redelivery never double-charges or double-books.
type Service struct {
	log      *slog.Logger
	repo     ReservationRepository
	catalog  CatalogRepository
	users    UserDirectory
	validate *validator.Validate
}

func NewService(log *slog.Logger, repo ReservationRepository, catalog CatalogRepository, users UserDirectory) *Service {
	return &Service{
		log:      log,
		repo:     repo,
		catalog:  catalog,
		users:    users,
		validate: validator.New(),
	}
}

type CreateReservationInput struct {
	UserID       string    `validate:"required"`
	VehicleID    string    `validate:"required"`
	GarageID     string    `validate:"required"`
	SlotID       string    `validate:"required"`
	PricePerHour float64   `validate:"required,gt=0"`
	EndTime      time.Time `validate:"required"`
}

// CreateReservation drives the first saga step: CAS the slot, persist the
// reservation, queue slot_reserved. It returns as soon as the transaction
// commits and never waits for the payment leg.
func (s *Service) CreateReservation(ctx context.Context, in CreateReservationInput, headers map[string]string, traceparent string) (domain.Reservation, error) {
	if err := s.validate.Struct(in); err != nil {
		return domain.Reservation{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !in.EndTime.After(time.Now().UTC()) {
		return domain.Reservation{}, fmt.Errorf("%w: endTime must be in the future", ErrInvalidInput)
	}

	res := domain.NewReservation(in.UserID, in.VehicleID, in.GarageID, in.SlotID, in.EndTime.UTC(), in.PricePerHour)

	event := domain.SlotReserved{
		SlotID:        res.SlotID,
		UserID:        res.UserID,
		VehicleID:     res.VehicleID,
		GarageID:      res.GarageID,
		Price:         res.TotalCharge,
		ReservationID: res.ID,
		Timestamp:     res.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return domain.Reservation{}, err
	}

	if err := s.repo.ReserveWithOutbox(ctx, res, domain.TopicSlotReserved, payload, headers, traceparent); err != nil {
		return domain.Reservation{}, err
	}

	s.log.Info("reservation created", "reservation_id", res.ID, "slot_id", res.SlotID, "total_charge", res.TotalCharge)
	return res, nil
}

func (s *Service) CancelReservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return s.repo.Cancel(ctx, reservationID)
}

// UpdateReservation accepts only transitions out of active. Re-activating
// a terminal reservation would detach it from its slot: the slot was
// released on cancel and may already be held by someone else.
func (s *Service) UpdateReservation(ctx context.Context, reservationID string, patch ReservationPatch) (domain.Reservation, error) {
	if patch.Status != nil {
		switch *patch.Status {
		case domain.ReservationCompleted, domain.ReservationCancelled:
		case domain.ReservationActive:
			return domain.Reservation{}, fmt.Errorf("%w: a reservation cannot return to active", ErrInvalidInput)
		default:
			return domain.Reservation{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *patch.Status)
		}
	}
	return s.repo.Update(ctx, reservationID, patch)
}

func (s *Service) GetReservation(ctx context.Context, reservationID string) (domain.ReservationView, error) {
	return s.repo.Get(ctx, reservationID)
}

func (s *Service) ListReservations(ctx context.Context, filter ReservationFilter) ([]domain.ReservationView, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) AvailableSlots(ctx context.Context, garageID, slotType string) ([]domain.AvailableSlot, error) {
	return s.catalog.AvailableSlots(ctx, garageID, slotType)
}

func (s *Service) Pricing(ctx context.Context, garageID string) ([]domain.GaragePricing, error) {
	garages, err := s.catalog.Garages(ctx, garageID)
	if err != nil {
		return nil, err
	}
	if len(garages) == 0 && garageID != "" {
		return nil, domain.ErrGarageNotFound
	}
	pricing := make([]domain.GaragePricing, 0, len(garages))
	for _, g := range garages {
		pricing = append(pricing, g.Pricing())
	}
	return pricing, nil
}

// HandlePaymentFailed is the compensating step: a failed payment releases
// the slot through the same cancel path a client request would use. A
// missing or already-cancelled reservation is treated as done, so the
// handler is safe under at-least-once delivery.
func (s *Service) HandlePaymentFailed(ctx context.Context, ev domain.PaymentFailed) error {
	if ev.ReservationID == "" {
		s.log.Warn("payment failed event without reservation id", "session_id", ev.CheckoutSessionID)
		return nil
	}
	res, err := s.repo.Cancel(ctx, ev.ReservationID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			s.log.Warn("payment failed for unknown reservation", "reservation_id", ev.ReservationID)
			return nil
		}
		return err
	}
	s.log.Info("reservation cancelled after payment failure", "reservation_id", res.ID, "slot_id", res.SlotID)
	return nil
}

// HandlePaymentCompleted acknowledges the outcome without a transition:
// completed on a reservation means the stay ended, and active is the only
// state a payment confirmation can arrive in.
func (s *Service) HandlePaymentCompleted(ctx context.Context, ev domain.PaymentCompleted) error {
	s.log.Info("payment completed", "reservation_id", ev.ReservationID, "transaction_id", ev.TransactionID)
	return nil
}

func (s *Service) HandleUserRegistered(ctx context.Context, ev domain.UserRegistered) error {
	if ev.ID == "" {
		return nil
	}
	if err := s.users.UpsertUser(ctx, ev.ID, ev.Name, ev.Email); err != nil {
		s.log.Error("user directory upsert failed", "user_id", ev.ID, logging.Err(err))
		return err
	}
	return nil
}
