package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/parkflow/parkflow/internal/parking/application"
	"github.com/parkflow/parkflow/internal/parking/domain"
)

type Handler struct {
	log       *slog.Logger
	service   *application.Service
	jwtSecret string
	tracer    trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, jwtSecret string) *Handler {
	return &Handler{
		log:       log,
		service:   service,
		jwtSecret: jwtSecret,
		tracer:    otel.Tracer("parking-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(h.jwtSecret))
		r.Post("/reserve", h.reserve)
		r.Get("/reservations", h.listReservations)
		r.Get("/reservations/{id}", h.getReservation)
		r.Put("/reservations/{id}", h.updateReservation)
		r.Delete("/reservations/{id}", h.cancelReservation)
		r.Get("/availability", h.availability)
		r.Get("/pricing", h.pricing)
	})
	return r
}

type reserveReq struct {
	SlotID       string    `json:"slotId"`
	VehicleID    string    `json:"vehicleId"`
	GarageID     string    `json:"garageId"`
	PricePerHour float64   `json:"pricePerHour"`
	EndTime      time.Time `json:"endTime"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateReservation")
	defer span.End()

	var req reserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	traceparent := r.Header.Get("traceparent")
	if traceparent == "" {
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		traceparent = carrier["traceparent"]
	}

	res, err := h.service.CreateReservation(ctx, application.CreateReservationInput{
		UserID:       UserID(ctx),
		VehicleID:    req.VehicleID,
		GarageID:     req.GarageID,
		SlotID:       req.SlotID,
		PricePerHour: req.PricePerHour,
		EndTime:      req.EndTime,
	}, map[string]string{"source": "parking-service"}, traceparent)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"reservation": reservationJSON(res)})
}

func (h *Handler) listReservations(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListReservations")
	defer span.End()

	views, err := h.service.ListReservations(ctx, application.ReservationFilter{
		UserID: UserID(ctx),
		Status: domain.ReservationStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(views))
	for _, v := range views {
		out = append(out, reservationViewJSON(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": out})
}

func (h *Handler) getReservation(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetReservation")
	defer span.End()

	view, err := h.service.GetReservation(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservation": reservationViewJSON(view)})
}

type updateReq struct {
	Status    *string `json:"status"`
	VehicleID *string `json:"vehicleId"`
}

func (h *Handler) updateReservation(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateReservation")
	defer span.End()

	var req updateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	patch := application.ReservationPatch{VehicleID: req.VehicleID}
	if req.Status != nil {
		st := domain.ReservationStatus(*req.Status)
		patch.Status = &st
	}

	res, err := h.service.UpdateReservation(ctx, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservation": reservationJSON(res)})
}

func (h *Handler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelReservation")
	defer span.End()

	res, err := h.service.CancelReservation(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservation": reservationJSON(res)})
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Availability")
	defer span.End()

	slots, err := h.service.AvailableSlots(ctx, r.URL.Query().Get("garageId"), r.URL.Query().Get("slotType"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(slots))
	for _, s := range slots {
		out = append(out, map[string]any{
			"slotId":       s.ID,
			"garageId":     s.GarageID,
			"slotNumber":   s.SlotNumber,
			"slotType":     s.SlotType,
			"status":       s.Status,
			"garageName":   s.GarageName,
			"location":     s.Location,
			"pricePerHour": s.PricePerHour,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": out})
}

func (h *Handler) pricing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Pricing")
	defer span.End()

	pricing, err := h.service.Pricing(ctx, r.URL.Query().Get("garageId"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pricingDetails": pricing})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSlotNotFound),
		errors.Is(err, domain.ErrReservationNotFound),
		errors.Is(err, domain.ErrGarageNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func reservationJSON(res domain.Reservation) map[string]any {
	return map[string]any{
		"id":           res.ID,
		"userId":       res.UserID,
		"vehicleId":    res.VehicleID,
		"garageId":     res.GarageID,
		"slotId":       res.SlotID,
		"startTime":    res.StartTime,
		"endTime":      res.EndTime,
		"pricePerHour": res.PricePerHour,
		"totalCharge":  res.TotalCharge,
		"status":       res.Status,
	}
}

func reservationViewJSON(view domain.ReservationView) map[string]any {
	out := reservationJSON(view.Reservation)
	if view.UserName != "" || view.UserEmail != "" {
		out["user"] = map[string]string{"name": view.UserName, "email": view.UserEmail}
	}
	if view.VehicleType != "" {
		out["vehicle"] = map[string]string{"vehicleType": view.VehicleType}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}
