package domain

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrExternalPayment means the processor rejected the checkout
	// session; the reservation stays reserved (no compensation on this
	// path, the failure never produced a transaction to fail).
	ErrExternalPayment = errors.New("external payment error")

	// ErrInvalidSignature rejects webhook callbacks that do not verify
	// against the shared secret. Nothing is mutated on this path.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
