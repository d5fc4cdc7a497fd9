package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkflow/parkflow/internal/parking/application"
	"github.com/parkflow/parkflow/internal/parking/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// ReserveWithOutbox is the saga's only mutual-exclusion point. The slot
// flip is a single conditional UPDATE: concurrent callers race on the
// WHERE clause and the storage layer lets exactly one through. The
// reservation row and the slot_reserved outbox row commit in the same
// transaction, so a reservation is never visible before its slot update
// and never exists without a queued event.
func (r *Repository) ReserveWithOutbox(ctx context.Context, res domain.Reservation, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	const op = "parking.postgres.ReserveWithOutbox"

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx,
		`UPDATE slots SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`,
		domain.SlotStatusReserved, res.SlotID, domain.SlotStatusAvailable)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() != 1 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE id=$1)`, res.SlotID).Scan(&exists); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			return fmt.Errorf("%s: %w", op, domain.ErrSlotNotFound)
		}
		return fmt.Errorf("%s: %w", op, domain.ErrSlotUnavailable)
	}

	_, err = tx.Exec(ctx, `INSERT INTO reservations
		(id, user_id, vehicle_id, garage_id, slot_id, start_time, end_time, price_per_hour, total_charge, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		res.ID, res.UserID, res.VehicleID, res.GarageID, res.SlotID,
		res.StartTime, res.EndTime, res.PricePerHour, res.TotalCharge,
		res.Status, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"reservation", res.ID, eventType, payload, headers, traceparent)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return tx.Commit(ctx)
}

// Cancel flips the reservation terminal and releases the slot in one
// transaction. A reservation that is already cancelled is returned as-is:
// the slot was released the first time and must not be touched again.
func (r *Repository) Cancel(ctx context.Context, reservationID string) (domain.Reservation, error) {
	const op = "parking.postgres.Cancel"

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	res, err := scanReservation(tx.QueryRow(ctx, selectReservation+` WHERE id=$1 FOR UPDATE`, reservationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, fmt.Errorf("%s: %w", op, domain.ErrReservationNotFound)
		}
		return domain.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}
	if res.Status == domain.ReservationCancelled {
		return res, tx.Commit(ctx)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `UPDATE reservations SET status=$1, updated_at=$2 WHERE id=$3`,
		domain.ReservationCancelled, now, reservationID)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}
	_, err = tx.Exec(ctx, `UPDATE slots SET status=$1, updated_at=$2 WHERE id=$3`,
		domain.SlotStatusAvailable, now, res.SlotID)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}

	res.Status = domain.ReservationCancelled
	res.UpdatedAt = now
	return res, tx.Commit(ctx)
}

// Update applies a partial update. A status change to cancelled goes
// through the same slot release as Cancel.
func (r *Repository) Update(ctx context.Context, reservationID string, patch application.ReservationPatch) (domain.Reservation, error) {
	const op = "parking.postgres.Update"

	if patch.Status != nil && *patch.Status == domain.ReservationCancelled {
		res, err := r.Cancel(ctx, reservationID)
		if err != nil {
			return domain.Reservation{}, err
		}
		if patch.VehicleID == nil {
			return res, nil
		}
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	res, err := scanReservation(tx.QueryRow(ctx, selectReservation+` WHERE id=$1 FOR UPDATE`, reservationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, fmt.Errorf("%s: %w", op, domain.ErrReservationNotFound)
		}
		return domain.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}

	// status moves only out of active; a terminal row keeps its status
	if patch.Status != nil && *patch.Status != domain.ReservationCancelled && res.Status == domain.ReservationActive {
		res.Status = *patch.Status
	}
	if patch.VehicleID != nil {
		res.VehicleID = *patch.VehicleID
	}
	res.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `UPDATE reservations SET status=$1, vehicle_id=$2, updated_at=$3 WHERE id=$4`,
		res.Status, res.VehicleID, res.UpdatedAt, reservationID)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, tx.Commit(ctx)
}

const selectReservation = `SELECT id, user_id, vehicle_id, garage_id, slot_id, start_time, end_time,
	price_per_hour, total_charge, status, created_at, updated_at FROM reservations`

const selectReservationView = `SELECT r.id, r.user_id, r.vehicle_id, r.garage_id, r.slot_id,
	r.start_time, r.end_time, r.price_per_hour, r.total_charge, r.status, r.created_at, r.updated_at,
	COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(v.vehicle_type, '')
	FROM reservations r
	LEFT JOIN users u ON u.id = r.user_id
	LEFT JOIN vehicles v ON v.id = r.vehicle_id`

func (r *Repository) Get(ctx context.Context, reservationID string) (domain.ReservationView, error) {
	const op = "parking.postgres.Get"

	view, err := scanReservationView(r.pool.QueryRow(ctx, selectReservationView+` WHERE r.id=$1`, reservationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReservationView{}, fmt.Errorf("%s: %w", op, domain.ErrReservationNotFound)
		}
		return domain.ReservationView{}, fmt.Errorf("%s: %w", op, err)
	}
	return view, nil
}

func (r *Repository) List(ctx context.Context, filter application.ReservationFilter) ([]domain.ReservationView, error) {
	const op = "parking.postgres.List"

	query := selectReservationView + ` WHERE ($1 = '' OR r.user_id = $1) AND ($2 = '' OR r.status = $2)
		ORDER BY r.created_at DESC`
	rows, err := r.pool.Query(ctx, query, filter.UserID, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var views []domain.ReservationView
	for rows.Next() {
		view, err := scanReservationView(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

func (r *Repository) AvailableSlots(ctx context.Context, garageID, slotType string) ([]domain.AvailableSlot, error) {
	const op = "parking.postgres.AvailableSlots"

	query := `SELECT s.id, s.garage_id, s.slot_number, s.slot_type, s.status, s.created_at, s.updated_at,
		g.name, g.location, g.price_per_hour
		FROM slots s
		JOIN garages g ON g.id = s.garage_id
		WHERE s.status = $1
		AND ($2 = '' OR s.garage_id = $2)
		AND ($3 = '' OR s.slot_type = $3)
		ORDER BY g.name, s.slot_number`
	rows, err := r.pool.Query(ctx, query, domain.SlotStatusAvailable, garageID, slotType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var slots []domain.AvailableSlot
	for rows.Next() {
		var s domain.AvailableSlot
		if err := rows.Scan(&s.ID, &s.GarageID, &s.SlotNumber, &s.SlotType, &s.Status,
			&s.CreatedAt, &s.UpdatedAt, &s.GarageName, &s.Location, &s.PricePerHour); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *Repository) Garages(ctx context.Context, garageID string) ([]domain.Garage, error) {
	const op = "parking.postgres.Garages"

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, location, slot_types, price_per_hour FROM garages WHERE ($1 = '' OR id = $1)`,
		garageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var garages []domain.Garage
	for rows.Next() {
		var g domain.Garage
		if err := rows.Scan(&g.ID, &g.Name, &g.Location, &g.SlotTypes, &g.PricePerHour); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		garages = append(garages, g)
	}
	return garages, rows.Err()
}

func (r *Repository) UpsertUser(ctx context.Context, id, name, email string) error {
	const op = "parking.postgres.UpsertUser"

	_, err := r.pool.Exec(ctx, `INSERT INTO users (id, name, email)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name=$2, email=$3`,
		id, name, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type row interface {
	Scan(dest ...any) error
}

func scanReservation(r row) (domain.Reservation, error) {
	var res domain.Reservation
	err := r.Scan(&res.ID, &res.UserID, &res.VehicleID, &res.GarageID, &res.SlotID,
		&res.StartTime, &res.EndTime, &res.PricePerHour, &res.TotalCharge,
		&res.Status, &res.CreatedAt, &res.UpdatedAt)
	return res, err
}

func scanReservationView(r row) (domain.ReservationView, error) {
	var view domain.ReservationView
	err := r.Scan(&view.ID, &view.UserID, &view.VehicleID, &view.GarageID, &view.SlotID,
		&view.StartTime, &view.EndTime, &view.PricePerHour, &view.TotalCharge,
		&view.Status, &view.CreatedAt, &view.UpdatedAt,
		&view.UserName, &view.UserEmail, &view.VehicleType)
	return view, err
}
