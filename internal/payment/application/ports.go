package application

import (
	"context"

	"github.com/parkflow/parkflow/internal/payment/domain"
)

type TransactionRepository interface {
	Profile(ctx context.Context, userID string) (domain.Profile, error)
	ByReservation(ctx context.Context, reservationID string) (domain.Transaction, error)
	CreatePending(ctx context.Context, t domain.Transaction) error
	// Complete and Fail are keyed by checkout session id and update the
	// row exactly once; a second call for the same session is a no-op
	// returning the already-terminal record.
	Complete(ctx context.Context, sessionID, paymentID string) (domain.Transaction, error)
	Fail(ctx context.Context, sessionID string, errorDetails []byte) (domain.Transaction, error)
	// Enqueue appends an outcome event to the outbox after the
	// transaction row has committed; ordering within the handler is the
	// only consistency guarantee on this path.
	Enqueue(ctx context.Context, aggregateID, eventType string, payload []byte, headers map[string]string, traceparent string) error
}

type CheckoutInput struct {
	ReservationID string
	SlotID        string
	VehicleID     string
	GarageID      string
	UserID        string
	CustomerEmail string
	Currency      string
	Amount        float64
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutClient opens a session with the external processor. The
// implementation is breaker-wrapped; callers see domain.ErrExternalPayment
// when the processor rejects or the breaker is open.
type CheckoutClient interface {
	CreateSession(ctx context.Context, in CheckoutInput) (CheckoutSession, error)
}
