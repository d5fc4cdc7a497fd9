package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/parkflow/parkflow/internal/payment/application"
	"github.com/parkflow/parkflow/internal/payment/domain"
	"github.com/parkflow/parkflow/pkg/idempotency"
	"github.com/parkflow/parkflow/pkg/tracing"
)

// Consumer feeds slot_reserved events into the payment intent step.
// Delivery is at least once: the redis dedupe keyed on reservation id is
// the first guard, the repository's conflict-free insert the second.
// Handler failures are logged and the offset committed, so a reservation
// whose checkout could not be opened shows up as a reservation without a
// transaction, not as a crash loop.
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	svc    *application.Service
	idem   *idempotency.Store
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, group string, svc *application.Service, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   domain.TopicSlotReserved,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("payment-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		var ev domain.SlotReserved
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.log.Error("unmarshal failed", "err", err)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		key := c.idem.Key(msg.Topic, ev.ReservationID)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "ConsumeSlotReserved")

		if _, err := c.svc.HandleSlotReserved(msgCtx, ev); err != nil {
			c.log.Error("payment intent failed", "reservation_id", ev.ReservationID, "err", err)
		} else {
			c.log.Info("payment intent processed", "reservation_id", ev.ReservationID)
		}
		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}
