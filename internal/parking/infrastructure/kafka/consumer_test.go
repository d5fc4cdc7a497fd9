package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/parkflow/parkflow/internal/parking/application"
	"github.com/parkflow/parkflow/internal/parking/domain"
	"github.com/parkflow/parkflow/pkg/idempotency"
)

type stubStore struct {
	mu        sync.Mutex
	cancelled []string
	users     map[string]string
}

func newStubStore() *stubStore {
	return &stubStore{users: map[string]string{}}
}

func (s *stubStore) ReserveWithOutbox(context.Context, domain.Reservation, string, []byte, map[string]string, string) error {
	return nil
}

func (s *stubStore) Cancel(_ context.Context, reservationID string) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, reservationID)
	return domain.Reservation{ID: reservationID, Status: domain.ReservationCancelled}, nil
}

func (s *stubStore) Update(context.Context, string, application.ReservationPatch) (domain.Reservation, error) {
	return domain.Reservation{}, nil
}

func (s *stubStore) Get(context.Context, string) (domain.ReservationView, error) {
	return domain.ReservationView{}, domain.ErrReservationNotFound
}

func (s *stubStore) List(context.Context, application.ReservationFilter) ([]domain.ReservationView, error) {
	return nil, nil
}

func (s *stubStore) AvailableSlots(context.Context, string, string) ([]domain.AvailableSlot, error) {
	return nil, nil
}

func (s *stubStore) Garages(context.Context, string) ([]domain.Garage, error) {
	return nil, nil
}

func (s *stubStore) UpsertUser(_ context.Context, id, name, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = name
	return nil
}

func newTestConsumer(store *stubStore) *Consumer {
	log := slog.New(slog.DiscardHandler)
	return &Consumer{
		log:    log,
		svc:    application.NewService(log, store, store, store),
		tracer: otel.Tracer("parking-consumer-test"),
	}
}

func message(t *testing.T, topic string, key []byte, payload any) kafkago.Message {
	t.Helper()
	value, err := json.Marshal(payload)
	require.NoError(t, err)
	return kafkago.Message{Topic: topic, Key: key, Value: value}
}

func TestDecodeUserRegisteredDedupesOnPayloadID(t *testing.T) {
	store := newStubStore()
	c := newTestConsumer(store)

	// the user service publishes without a message key; two registrations
	// must still get two distinct dedupe entries
	first := message(t, domain.TopicUserRegistered, nil, domain.UserRegistered{ID: "user-1", Name: "Asha"})
	second := message(t, domain.TopicUserRegistered, nil, domain.UserRegistered{ID: "user-2", Name: "Ravi"})

	inFirst, err := c.decode(first)
	require.NoError(t, err)
	inSecond, err := c.decode(second)
	require.NoError(t, err)

	assert.Equal(t, "user-1", inFirst.aggregateID)
	assert.Equal(t, "user-2", inSecond.aggregateID)

	idem := idempotency.NewStore(nil, 0)
	assert.NotEqual(t,
		idem.Key(domain.TopicUserRegistered, inFirst.aggregateID),
		idem.Key(domain.TopicUserRegistered, inSecond.aggregateID))

	require.NoError(t, inFirst.apply(context.Background()))
	require.NoError(t, inSecond.apply(context.Background()))
	assert.Equal(t, "Asha", store.users["user-1"])
	assert.Equal(t, "Ravi", store.users["user-2"])
}

func TestDecodePaymentOutcomesKeyOnReservation(t *testing.T) {
	store := newStubStore()
	c := newTestConsumer(store)

	failed := message(t, domain.TopicPaymentFailed, []byte("res-1"),
		domain.PaymentFailed{CheckoutSessionID: "cs_1", ReservationID: "res-1"})
	completed := message(t, domain.TopicPaymentCompleted, []byte("res-2"),
		domain.PaymentCompleted{TransactionID: "tx-1", ReservationID: "res-2", UserID: "user-1"})

	inFailed, err := c.decode(failed)
	require.NoError(t, err)
	inCompleted, err := c.decode(completed)
	require.NoError(t, err)

	assert.Equal(t, "res-1", inFailed.aggregateID)
	assert.Equal(t, "res-2", inCompleted.aggregateID)
	assert.NotEqual(t, inFailed.spanName, inCompleted.spanName)

	require.NoError(t, inFailed.apply(context.Background()))
	assert.Equal(t, []string{"res-1"}, store.cancelled)
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	c := newTestConsumer(newStubStore())

	_, err := c.decode(kafkago.Message{Topic: domain.TopicUserRegistered, Value: []byte(`{"id":`)})
	assert.Error(t, err)
}

func TestDecodeRejectsUnexpectedTopic(t *testing.T) {
	c := newTestConsumer(newStubStore())

	_, err := c.decode(kafkago.Message{Topic: "orders_created", Value: []byte(`{}`)})
	assert.Error(t, err)
}
