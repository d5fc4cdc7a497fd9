package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/parkflow/parkflow/internal/payment/domain"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()

	t.Run("valid round trip", func(t *testing.T) {
		header := SignPayload(secret, body, now)
		assert.NoError(t, verifySignature(secret, body, header, now))
	})

	t.Run("tampered body", func(t *testing.T) {
		header := SignPayload(secret, body, now)
		tampered := []byte(`{"id":"evt_1","type":"checkout.session.failed"}`)
		assert.ErrorIs(t, verifySignature(secret, tampered, header, now), domain.ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := SignPayload("whsec_other", body, now)
		assert.ErrorIs(t, verifySignature(secret, body, header, now), domain.ErrInvalidSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		header := SignPayload(secret, body, now.Add(-10*time.Minute))
		assert.ErrorIs(t, verifySignature(secret, body, header, now), domain.ErrInvalidSignature)
	})

	t.Run("future timestamp", func(t *testing.T) {
		header := SignPayload(secret, body, now.Add(10*time.Minute))
		assert.ErrorIs(t, verifySignature(secret, body, header, now), domain.ErrInvalidSignature)
	})

	t.Run("within tolerance", func(t *testing.T) {
		header := SignPayload(secret, body, now.Add(-4*time.Minute))
		assert.NoError(t, verifySignature(secret, body, header, now))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, verifySignature(secret, body, "", now), domain.ErrInvalidSignature)
	})

	t.Run("malformed header", func(t *testing.T) {
		assert.ErrorIs(t, verifySignature(secret, body, "v1=deadbeef", now), domain.ErrInvalidSignature)
	})
}
