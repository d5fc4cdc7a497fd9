package application

import (
	"context"

	"github.com/parkflow/parkflow/internal/parking/domain"
)

// ReservationPatch is a partial update; nil fields are left untouched.
type ReservationPatch struct {
	Status    *domain.ReservationStatus
	VehicleID *string
}

type ReservationFilter struct {
	UserID string
	Status domain.ReservationStatus
}

// ReservationRepository owns the slot/reservation state. ReserveWithOutbox
// performs the slot compare-and-swap, the reservation insert and the
// outbox insert in one transaction; it is the sole concurrency-control
// point of the whole saga.
type ReservationRepository interface {
	ReserveWithOutbox(ctx context.Context, res domain.Reservation, eventType string, payload []byte, headers map[string]string, traceparent string) error
	Cancel(ctx context.Context, reservationID string) (domain.Reservation, error)
	Update(ctx context.Context, reservationID string, patch ReservationPatch) (domain.Reservation, error)
	Get(ctx context.Context, reservationID string) (domain.ReservationView, error)
	List(ctx context.Context, filter ReservationFilter) ([]domain.ReservationView, error)
}

// CatalogRepository serves the side-effect-free projections.
type CatalogRepository interface {
	AvailableSlots(ctx context.Context, garageID, slotType string) ([]domain.AvailableSlot, error)
	Garages(ctx context.Context, garageID string) ([]domain.Garage, error)
}

// UserDirectory keeps the local copy of user profiles for read-side joins.
type UserDirectory interface {
	UpsertUser(ctx context.Context, id, name, email string) error
}
