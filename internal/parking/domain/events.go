package domain

import "time"

// Topic names double as outbox event types; the dispatcher publishes each
// event to the topic named by its type.
const (
	TopicSlotReserved     = "slot_reserved"
	TopicPaymentCompleted = "PAYMENT_COMPLETED"
	TopicPaymentFailed    = "PAYMENT_FAILED"
	TopicUserRegistered   = "user_registered"
)

// SlotReserved carries everything the payment side needs to open a
// checkout session without calling back: no RPC leg exists in this saga.
type SlotReserved struct {
	SlotID        string    `json:"slotId"`
	UserID        string    `json:"userId"`
	VehicleID     string    `json:"vehicleId"`
	GarageID      string    `json:"garageId"`
	Price         float64   `json:"price"`
	ReservationID string    `json:"reservationId"`
	Timestamp     time.Time `json:"timestamp"`
}

// PaymentCompleted and PaymentFailed are the outcome events published by
// the payment authority and consumed here to close the saga.
type PaymentCompleted struct {
	TransactionID string `json:"transactionId"`
	ReservationID string `json:"reservationId"`
	UserID        string `json:"userId"`
}

type PaymentFailed struct {
	CheckoutSessionID string `json:"checkoutSessionId"`
	ReservationID     string `json:"reservationId"`
}

// UserRegistered is emitted by the user service; consumed to keep the
// local profile directory used for read-side joins.
type UserRegistered struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
