package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkflow/parkflow/internal/parking/application"
	"github.com/parkflow/parkflow/internal/parking/domain"
)

const testJWTSecret = "jwt_test_secret"

type memStore struct {
	mu    sync.Mutex
	slots map[string]domain.SlotStatus
	res   map[string]domain.Reservation
}

func newMemStore() *memStore {
	return &memStore{
		slots: map[string]domain.SlotStatus{},
		res:   map[string]domain.Reservation{},
	}
}

func (m *memStore) ReserveWithOutbox(_ context.Context, res domain.Reservation, _ string, _ []byte, _ map[string]string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.slots[res.SlotID]
	if !ok {
		return domain.ErrSlotNotFound
	}
	if status != domain.SlotStatusAvailable {
		return domain.ErrSlotUnavailable
	}
	m.slots[res.SlotID] = domain.SlotStatusReserved
	m.res[res.ID] = res
	return nil
}

func (m *memStore) Cancel(_ context.Context, reservationID string) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.res[reservationID]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	if res.Status != domain.ReservationCancelled {
		res.Status = domain.ReservationCancelled
		m.res[reservationID] = res
		m.slots[res.SlotID] = domain.SlotStatusAvailable
	}
	return res, nil
}

func (m *memStore) Update(ctx context.Context, reservationID string, patch application.ReservationPatch) (domain.Reservation, error) {
	if patch.Status != nil && *patch.Status == domain.ReservationCancelled {
		return m.Cancel(ctx, reservationID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.res[reservationID]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	if patch.Status != nil && res.Status == domain.ReservationActive {
		res.Status = *patch.Status
	}
	if patch.VehicleID != nil {
		res.VehicleID = *patch.VehicleID
	}
	m.res[reservationID] = res
	return res, nil
}

func (m *memStore) Get(_ context.Context, reservationID string) (domain.ReservationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.res[reservationID]
	if !ok {
		return domain.ReservationView{}, domain.ErrReservationNotFound
	}
	return domain.ReservationView{Reservation: res}, nil
}

func (m *memStore) List(_ context.Context, filter application.ReservationFilter) ([]domain.ReservationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.ReservationView{}
	for _, res := range m.res {
		if filter.UserID != "" && res.UserID != filter.UserID {
			continue
		}
		out = append(out, domain.ReservationView{Reservation: res})
	}
	return out, nil
}

func (m *memStore) AvailableSlots(context.Context, string, string) ([]domain.AvailableSlot, error) {
	return []domain.AvailableSlot{}, nil
}

func (m *memStore) Garages(_ context.Context, garageID string) ([]domain.Garage, error) {
	if garageID != "" && garageID != "garage-1" {
		return nil, nil
	}
	return []domain.Garage{{ID: "garage-1", Name: "Central", PricePerHour: 60}}, nil
}

func (m *memStore) UpsertUser(context.Context, string, string, string) error { return nil }

func newTestRouter(store *memStore) http.Handler {
	log := slog.New(slog.DiscardHandler)
	svc := application.NewService(log, store, store, store)
	return NewHandler(log, svc, testJWTSecret).Routes()
}

func signToken(t *testing.T, secret, sub string) string {
	t.Helper()
	claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
	if sub != "" {
		claims["sub"] = sub
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func doRequest(handler http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	rec := doRequest(newTestRouter(newMemStore()), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuth(t *testing.T) {
	handler := newTestRouter(newMemStore())

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong secret", signToken(t, "other_secret", "user-1")},
		{"missing subject", signToken(t, testJWTSecret, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(handler, http.MethodGet, "/reservations", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func reserveBody() map[string]any {
	return map[string]any{
		"slotId":       "slot-1",
		"vehicleId":    "vehicle-1",
		"garageId":     "garage-1",
		"pricePerHour": 80,
		"endTime":      time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339),
	}
}

func TestReserve(t *testing.T) {
	store := newMemStore()
	store.slots["slot-1"] = domain.SlotStatusAvailable
	handler := newTestRouter(store)
	token := signToken(t, testJWTSecret, "user-1")

	rec := doRequest(handler, http.MethodPost, "/reserve", token, reserveBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Reservation struct {
			ID          string  `json:"id"`
			UserID      string  `json:"userId"`
			SlotID      string  `json:"slotId"`
			TotalCharge float64 `json:"totalCharge"`
			Status      string  `json:"status"`
		} `json:"reservation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Reservation.ID)
	assert.Equal(t, "user-1", resp.Reservation.UserID, "user id comes from the token, not the body")
	assert.Equal(t, "slot-1", resp.Reservation.SlotID)
	assert.Equal(t, 160.0, resp.Reservation.TotalCharge)
	assert.Equal(t, "active", resp.Reservation.Status)

	// the same slot again is a conflict
	rec = doRequest(handler, http.MethodPost, "/reserve", token, reserveBody())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReserveValidation(t *testing.T) {
	store := newMemStore()
	store.slots["slot-1"] = domain.SlotStatusAvailable
	handler := newTestRouter(store)
	token := signToken(t, testJWTSecret, "user-1")

	body := reserveBody()
	body["endTime"] = time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	rec := doRequest(handler, http.MethodPost, "/reserve", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = reserveBody()
	body["slotId"] = "no-such-slot"
	rec = doRequest(handler, http.MethodPost, "/reserve", token, body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelReservation(t *testing.T) {
	store := newMemStore()
	store.slots["slot-1"] = domain.SlotStatusAvailable
	handler := newTestRouter(store)
	token := signToken(t, testJWTSecret, "user-1")

	rec := doRequest(handler, http.MethodPost, "/reserve", token, reserveBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Reservation struct {
			ID string `json:"id"`
		} `json:"reservation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(handler, http.MethodDelete, "/reservations/"+created.Reservation.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
	assert.Equal(t, domain.SlotStatusAvailable, store.slots["slot-1"])

	rec = doRequest(handler, http.MethodDelete, "/reservations/no-such-id", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateReservationRejectsReactivation(t *testing.T) {
	store := newMemStore()
	store.slots["slot-1"] = domain.SlotStatusAvailable
	handler := newTestRouter(store)
	token := signToken(t, testJWTSecret, "user-1")

	rec := doRequest(handler, http.MethodPost, "/reserve", token, reserveBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Reservation struct {
			ID string `json:"id"`
		} `json:"reservation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Reservation.ID

	rec = doRequest(handler, http.MethodDelete, "/reservations/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(handler, http.MethodPut, "/reservations/"+id, token, map[string]any{"status": "active"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPricing(t *testing.T) {
	handler := newTestRouter(newMemStore())
	token := signToken(t, testJWTSecret, "user-1")

	rec := doRequest(handler, http.MethodGet, "/pricing?garageId=garage-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		PricingDetails []struct {
			PricingDetails struct {
				Standard  float64            `json:"standard"`
				Discounts map[string]float64 `json:"discounts"`
			} `json:"pricingDetails"`
		} `json:"pricingDetails"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.PricingDetails, 1)
	assert.Equal(t, 60.0, resp.PricingDetails[0].PricingDetails.Standard)
	assert.Equal(t, 720.0, resp.PricingDetails[0].PricingDetails.Discounts["daily"])

	rec = doRequest(handler, http.MethodGet, "/pricing?garageId=nowhere", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
