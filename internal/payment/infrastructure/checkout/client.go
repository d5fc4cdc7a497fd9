// Package checkout talks to the Stripe Checkout Sessions API. The call is
// a single form-encoded POST, wrapped in a circuit breaker so a degraded
// processor sheds load fast instead of tying up the consumer.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/parkflow/parkflow/internal/payment/application"
	"github.com/parkflow/parkflow/internal/payment/domain"
)

const sessionsURL = "https://api.stripe.com/v1/checkout/sessions"

type Client struct {
	log       *slog.Logger
	secretKey string
	appURL    string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
}

func NewClient(log *slog.Logger, secretKey, appURL string) *Client {
	return &Client{
		log:       log,
		secretKey: secretKey,
		appURL:    strings.TrimRight(appURL, "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "stripe-checkout",
			Timeout: 30 * time.Second,
		}),
	}
}

type sessionResponse struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) CreateSession(ctx context.Context, in application.CheckoutInput) (application.CheckoutSession, error) {
	form := url.Values{}
	form.Set("payment_method_types[]", "card")
	form.Set("mode", "payment")
	form.Set("success_url", c.appURL+"/payment/success?session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", c.appURL+"/payment/cancel?session_id={CHECKOUT_SESSION_ID}")
	form.Set("client_reference_id", in.ReservationID)
	form.Set("customer_email", in.CustomerEmail)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(in.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(int64(math.Round(in.Amount*100)), 10))
	form.Set("line_items[0][price_data][product_data][name]", fmt.Sprintf("Parking Reservation - Slot %s", in.SlotID))
	form.Set("line_items[0][price_data][product_data][description]",
		fmt.Sprintf("Reservation for Vehicle ID: %s at Garage %s", in.VehicleID, in.GarageID))
	form.Set("metadata[reservationId]", in.ReservationID)
	form.Set("metadata[slotId]", in.SlotID)
	form.Set("metadata[vehicleId]", in.VehicleID)
	form.Set("metadata[garageId]", in.GarageID)
	form.Set("metadata[userId]", in.UserID)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, form)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return application.CheckoutSession{}, fmt.Errorf("%w: %v", domain.ErrExternalPayment, err)
		}
		return application.CheckoutSession{}, err
	}
	return result.(application.CheckoutSession), nil
}

func (c *Client) post(ctx context.Context, form url.Values) (application.CheckoutSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return application.CheckoutSession{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return application.CheckoutSession{}, fmt.Errorf("%w: %v", domain.ErrExternalPayment, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return application.CheckoutSession{}, err
	}

	var sr sessionResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return application.CheckoutSession{}, fmt.Errorf("%w: unreadable response: %v", domain.ErrExternalPayment, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if sr.Error != nil {
			msg = sr.Error.Message
		}
		return application.CheckoutSession{}, fmt.Errorf("%w: %s", domain.ErrExternalPayment, msg)
	}
	return application.CheckoutSession{ID: sr.ID, URL: sr.URL}, nil
}
