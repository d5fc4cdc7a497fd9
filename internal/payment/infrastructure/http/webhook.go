package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/parkflow/parkflow/internal/payment/application"
	"github.com/parkflow/parkflow/pkg/logging"
)

const (
	eventSessionCompleted = "checkout.session.completed"
	eventSessionFailed    = "checkout.session.async_payment_failed"
)

// Handler is the webhook reconciler's single entry point. It responds 200
// once the transaction update is locally handled — regardless of the
// outcome-event enqueue — so the processor never enters a redelivery
// storm over a downstream hiccup. Signature failures are the one 400.
type Handler struct {
	log           *slog.Logger
	service       *application.Service
	webhookSecret string
	tracer        trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, webhookSecret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: webhookSecret,
		tracer:        otel.Tracer("payment-webhook"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/webhook", h.webhook)
	return r
}

type processorEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type sessionObject struct {
	ID                string `json:"id"`
	PaymentIntent     string `json:"payment_intent"`
	ClientReferenceID string `json:"client_reference_id"`
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HandleWebhook")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if err := verifySignature(h.webhookSecret, body, r.Header.Get(SignatureHeader), time.Now()); err != nil {
		h.log.Warn("webhook signature rejected", logging.Err(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "signature verification failed"})
		return
	}

	// Past the signature check, everything is acknowledged with 200: a
	// payload the processor signed but this side cannot use would be
	// redelivered forever if it were rejected.
	var event processorEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.log.Error("malformed webhook event", logging.Err(err))
		writeJSON(w, http.StatusOK, map[string]string{"message": "received"})
		return
	}

	headers := map[string]string{"source": "payment-service"}
	traceparent := r.Header.Get("traceparent")

	switch event.Type {
	case eventSessionCompleted:
		var session sessionObject
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			h.log.Error("malformed session object", "event_id", event.ID, logging.Err(err))
			break
		}
		if err := h.service.CompleteBySession(ctx, session.ID, session.PaymentIntent, headers, traceparent); err != nil {
			h.log.Error("error processing successful payment", "session_id", session.ID, logging.Err(err))
		}

	case eventSessionFailed:
		var session sessionObject
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			h.log.Error("malformed session object", "event_id", event.ID, logging.Err(err))
			break
		}
		if err := h.service.FailBySession(ctx, session.ID, event.Data.Object, headers, traceparent); err != nil {
			h.log.Error("error processing failed payment", "session_id", session.ID, logging.Err(err))
		}

	default:
		// Processors emit many kinds this system does not care about.
		h.log.Info("unhandled event type", "type", event.Type)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "received"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
