package domain

import "time"

type SlotStatus string

const (
	SlotStatusAvailable   SlotStatus = "available"
	SlotStatusReserved    SlotStatus = "reserved"
	SlotStatusOccupied    SlotStatus = "occupied"
	SlotStatusMaintenance SlotStatus = "maintenance"
)

// Slot is the unit resource being allocated: one physical parking space.
// At most one active reservation may hold a slot; that invariant lives in
// the store's conditional update, never in read-then-write code.
type Slot struct {
	ID         string
	GarageID   string
	SlotNumber int
	SlotType   string
	Status     SlotStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AvailableSlot joins a free slot with the garage fields clients need to
// pick one (availability listing only).
type AvailableSlot struct {
	Slot
	GarageName   string
	Location     string
	PricePerHour float64
}
