package domain

import "time"

const (
	TopicSlotReserved     = "slot_reserved"
	TopicPaymentCompleted = "PAYMENT_COMPLETED"
	TopicPaymentFailed    = "PAYMENT_FAILED"
)

// SlotReserved is the reservation authority's event as this service
// decodes it. The payload carries everything needed to open a checkout
// session; there is no callback to the parking side.
type SlotReserved struct {
	SlotID        string    `json:"slotId"`
	UserID        string    `json:"userId"`
	VehicleID     string    `json:"vehicleId"`
	GarageID      string    `json:"garageId"`
	Price         float64   `json:"price"`
	ReservationID string    `json:"reservationId"`
	Timestamp     time.Time `json:"timestamp"`
}

type PaymentCompleted struct {
	TransactionID string `json:"transactionId"`
	ReservationID string `json:"reservationId"`
	UserID        string `json:"userId"`
}

type PaymentFailed struct {
	CheckoutSessionID string `json:"checkoutSessionId"`
	ReservationID     string `json:"reservationId"`
}
