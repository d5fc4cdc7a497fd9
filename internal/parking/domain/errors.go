package domain

import "errors"

var (
	// ErrSlotUnavailable means the conditional update matched zero rows:
	// another caller won the slot, or it is not in the available state.
	ErrSlotUnavailable = errors.New("slot is already reserved or cannot be reserved")

	ErrSlotNotFound        = errors.New("slot not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrGarageNotFound      = errors.New("garage not found")
)
