package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is a time-bounded claim on exactly one slot. Active is the
// only non-terminal status; there is no transition back into active.
type Reservation struct {
	ID           string
	UserID       string
	VehicleID    string
	GarageID     string
	SlotID       string
	StartTime    time.Time
	EndTime      time.Time
	PricePerHour float64
	TotalCharge  float64
	Status       ReservationStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReservationView is a reservation joined with display-only user and
// vehicle details. The references are weak: the query layer fills them
// in when the directory rows exist, callers must tolerate blanks.
type ReservationView struct {
	Reservation
	UserName    string
	UserEmail   string
	VehicleType string
}

// TotalCharge bills started hours in full: a 90 minute stay at 80/h
// charges 2 hours.
func TotalCharge(start, end time.Time, pricePerHour float64) float64 {
	hours := end.Sub(start).Hours()
	whole := int(hours)
	if hours > float64(whole) {
		whole++
	}
	return float64(whole) * pricePerHour
}

// NewReservation stamps identity and charge at creation time. The charge
// is immutable afterwards.
func NewReservation(userID, vehicleID, garageID, slotID string, endTime time.Time, pricePerHour float64) Reservation {
	now := time.Now().UTC()
	return Reservation{
		ID:           uuid.NewString(),
		UserID:       userID,
		VehicleID:    vehicleID,
		GarageID:     garageID,
		SlotID:       slotID,
		StartTime:    now,
		EndTime:      endTime,
		PricePerHour: pricePerHour,
		TotalCharge:  TotalCharge(now, endTime, pricePerHour),
		Status:       ReservationActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
