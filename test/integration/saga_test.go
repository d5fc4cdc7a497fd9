//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkflow/parkflow/internal/parking/domain"
	parkingpg "github.com/parkflow/parkflow/internal/parking/infrastructure/postgres"
	"github.com/parkflow/parkflow/pkg/outbox"
)

// TestReservationOutboxReachesKafka drives the first saga leg against real
// postgres and kafka: the slot swap commits with the outbox row, the relay
// picks the row up, and the event lands on slot_reserved keyed by the
// reservation id.
func TestReservationOutboxReachesKafka(t *testing.T) {
	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(context.Background())

	m, err := migrate.New("file://../../migrations/parking", env.PGURL)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `INSERT INTO garages (id, name, location, price_per_hour) VALUES ('garage-1', 'Central', 'Downtown', 80)`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO slots (id, garage_id, slot_number) VALUES ('slot-1', 'garage-1', 1)`)
	require.NoError(t, err)

	conn, err := kafkago.DialContext(ctx, "tcp", env.KAddr[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{
		Topic:             domain.TopicSlotReserved,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
	require.NoError(t, conn.Close())

	log := slog.New(slog.DiscardHandler)
	repo := parkingpg.NewRepository(log, pool)

	res := domain.NewReservation("user-1", "vehicle-1", "garage-1", "slot-1", time.Now().UTC().Add(2*time.Hour), 80)
	payload, err := json.Marshal(domain.SlotReserved{
		SlotID:        res.SlotID,
		UserID:        res.UserID,
		VehicleID:     res.VehicleID,
		GarageID:      res.GarageID,
		Price:         res.TotalCharge,
		ReservationID: res.ID,
		Timestamp:     res.CreatedAt,
	})
	require.NoError(t, err)
	require.NoError(t, repo.ReserveWithOutbox(ctx, res, domain.TopicSlotReserved, payload, nil, ""))

	// the slot is now taken, a second claim loses the swap
	second := domain.NewReservation("user-2", "vehicle-2", "garage-1", "slot-1", time.Now().UTC().Add(2*time.Hour), 80)
	err = repo.ReserveWithOutbox(ctx, second, domain.TopicSlotReserved, payload, nil, "")
	require.ErrorIs(t, err, domain.ErrSlotUnavailable)

	store := parkingpg.NewOutboxStore(log, pool)
	writer := outbox.NewWriter(env.KAddr)
	defer writer.Close()
	relay := outbox.NewRelay(log, store, outbox.NewDispatcher(log, writer), "it-relay")

	relayCtx, cancelRelay := context.WithCancel(ctx)
	defer cancelRelay()
	go func() { _ = relay.Run(relayCtx) }()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: env.KAddr,
		Topic:   domain.TopicSlotReserved,
		GroupID: "it-group",
	})
	defer reader.Close()

	readCtx, cancelRead := context.WithTimeout(ctx, time.Minute)
	defer cancelRead()
	msg, err := reader.FetchMessage(readCtx)
	require.NoError(t, err)
	require.NoError(t, reader.CommitMessages(ctx, msg))

	assert.Equal(t, res.ID, string(msg.Key))
	var got domain.SlotReserved
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, res.ID, got.ReservationID)
	assert.Equal(t, res.TotalCharge, got.Price)

	require.Eventually(t, func() bool {
		var status string
		if err := pool.QueryRow(ctx, `SELECT status FROM outbox WHERE aggregate_id=$1`, res.ID).Scan(&status); err != nil {
			return false
		}
		return status == string(outbox.StatusSent)
	}, 10*time.Second, 200*time.Millisecond)
}
