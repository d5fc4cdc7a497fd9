package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is the payment authority's record of one reservation's
// charge. It transitions out of pending exactly once, keyed on the
// external checkout-session id delivered by the processor webhook — never
// on a client request, so completion cannot be forged.
type Transaction struct {
	ID                string
	UserID            string
	Amount            float64
	Currency          string
	Status            TransactionStatus
	ReservationID     string
	CheckoutSessionID string
	PaymentID         string
	SlotID            string
	VehicleID         string
	GarageID          string
	ErrorDetails      []byte
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

// Profile is the local copy of a user's contact details, looked up when
// opening a checkout session.
type Profile struct {
	ID    string
	Name  string
	Email string
	Phone string
}

func NewPendingTransaction(userID string, amount float64, currency, reservationID, sessionID, slotID, vehicleID, garageID string) Transaction {
	return Transaction{
		ID:                uuid.NewString(),
		UserID:            userID,
		Amount:            amount,
		Currency:          currency,
		Status:            TransactionPending,
		ReservationID:     reservationID,
		CheckoutSessionID: sessionID,
		SlotID:            slotID,
		VehicleID:         vehicleID,
		GarageID:          garageID,
		CreatedAt:         time.Now().UTC(),
	}
}
