package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkflow/parkflow/internal/payment/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	const op = "payment.postgres.Profile"

	var p domain.Profile
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, COALESCE(phone, '') FROM users WHERE id=$1`, userID).
		Scan(&p.ID, &p.Name, &p.Email, &p.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, fmt.Errorf("%s: %w", op, domain.ErrUserNotFound)
		}
		return domain.Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

const selectTransaction = `SELECT id, user_id, amount, currency, status, reservation_id,
	checkout_session_id, COALESCE(payment_id, ''), slot_id, vehicle_id, garage_id,
	error_details, created_at, completed_at FROM transactions`

func (r *Repository) ByReservation(ctx context.Context, reservationID string) (domain.Transaction, error) {
	const op = "payment.postgres.ByReservation"

	t, err := scanTransaction(r.pool.QueryRow(ctx, selectTransaction+` WHERE reservation_id=$1`, reservationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, fmt.Errorf("%s: %w", op, domain.ErrTransactionNotFound)
		}
		return domain.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *Repository) CreatePending(ctx context.Context, t domain.Transaction) error {
	const op = "payment.postgres.CreatePending"

	// ON CONFLICT keeps re-delivered slot_reserved events from producing
	// a second transaction for the same reservation.
	_, err := r.pool.Exec(ctx, `INSERT INTO transactions
		(id, user_id, amount, currency, status, reservation_id, checkout_session_id, slot_id, vehicle_id, garage_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (reservation_id) DO NOTHING`,
		t.ID, t.UserID, t.Amount, t.Currency, t.Status, t.ReservationID,
		t.CheckoutSessionID, t.SlotID, t.VehicleID, t.GarageID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Complete flips a pending transaction to completed, stamping the
// completion time and the processor's payment id. The status guard in the
// WHERE clause makes redelivered webhooks no-ops; the already-terminal row
// is returned instead.
func (r *Repository) Complete(ctx context.Context, sessionID, paymentID string) (domain.Transaction, error) {
	const op = "payment.postgres.Complete"

	t, err := scanTransaction(r.pool.QueryRow(ctx, `UPDATE transactions
		SET status=$1, payment_id=$2, completed_at=now()
		WHERE checkout_session_id=$3 AND status=$4
		RETURNING id, user_id, amount, currency, status, reservation_id, checkout_session_id,
			COALESCE(payment_id, ''), slot_id, vehicle_id, garage_id, error_details, created_at, completed_at`,
		domain.TransactionCompleted, paymentID, sessionID, domain.TransactionPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.bySession(ctx, op, sessionID)
		}
		return domain.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *Repository) Fail(ctx context.Context, sessionID string, errorDetails []byte) (domain.Transaction, error) {
	const op = "payment.postgres.Fail"

	t, err := scanTransaction(r.pool.QueryRow(ctx, `UPDATE transactions
		SET status=$1, error_details=$2, completed_at=now()
		WHERE checkout_session_id=$3 AND status=$4
		RETURNING id, user_id, amount, currency, status, reservation_id, checkout_session_id,
			COALESCE(payment_id, ''), slot_id, vehicle_id, garage_id, error_details, created_at, completed_at`,
		domain.TransactionFailed, errorDetails, sessionID, domain.TransactionPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.bySession(ctx, op, sessionID)
		}
		return domain.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// bySession resolves the zero-rows case of Complete/Fail: either the
// session is unknown (not found) or the row already left pending.
func (r *Repository) bySession(ctx context.Context, op, sessionID string) (domain.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, selectTransaction+` WHERE checkout_session_id=$1`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, fmt.Errorf("%s: %w", op, domain.ErrTransactionNotFound)
		}
		return domain.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *Repository) Enqueue(ctx context.Context, aggregateID, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	const op = "payment.postgres.Enqueue"

	_, err := r.pool.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"transaction", aggregateID, eventType, payload, headers, traceparent)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Amount, &t.Currency, &t.Status, &t.ReservationID,
		&t.CheckoutSessionID, &t.PaymentID, &t.SlotID, &t.VehicleID, &t.GarageID,
		&t.ErrorDetails, &t.CreatedAt, &t.CompletedAt)
	return t, err
}
