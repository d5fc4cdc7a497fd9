package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/parkflow/parkflow/internal/parking/application"
	"github.com/parkflow/parkflow/internal/parking/domain"
	"github.com/parkflow/parkflow/pkg/idempotency"
	"github.com/parkflow/parkflow/pkg/tracing"
)

// Consumer closes the saga loop: payment outcomes are applied back onto
// the slot/reservation store, and user_registered keeps the read-side
// profile directory current. Handler failures are logged and the offset
// committed anyway (no DLQ), so every handler must be idempotent.
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
		GroupID: group,
		GroupTopics: []string{
			domain.TopicPaymentCompleted,
			domain.TopicPaymentFailed,
			domain.TopicUserRegistered,
		},
	})
	return &Consumer{
		log:    log,
		reader: r,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("parking-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		in, err := c.decode(msg)
		if err != nil {
			c.log.Error("message decode failed", "topic", msg.Topic, "err", err)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if in.aggregateID != "" {
			key := c.idem.Key(msg.Topic, in.aggregateID)
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
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, in.spanName)

		if err := in.apply(msgCtx); err != nil {
			c.log.Error("message handling failed", "topic", msg.Topic, "err", err)
		}
		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

// inbound is a decoded message bound to its handler. The dedupe id comes
// from the payload, not the Kafka message key: the user service publishes
// user_registered without a key, and keying on it would collapse every
// registration onto one dedupe entry.
type inbound struct {
	spanName    string
	aggregateID string
	apply       func(context.Context) error
}

func (c *Consumer) decode(msg kafka.Message) (inbound, error) {
	switch msg.Topic {
	case domain.TopicPaymentFailed:
		var ev domain.PaymentFailed
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return inbound{}, err
		}
		return inbound{
			spanName:    "ConsumePaymentFailed",
			aggregateID: ev.ReservationID,
			apply:       func(ctx context.Context) error { return c.svc.HandlePaymentFailed(ctx, ev) },
		}, nil
	case domain.TopicPaymentCompleted:
		var ev domain.PaymentCompleted
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return inbound{}, err
		}
		return inbound{
			spanName:    "ConsumePaymentCompleted",
			aggregateID: ev.ReservationID,
			apply:       func(ctx context.Context) error { return c.svc.HandlePaymentCompleted(ctx, ev) },
		}, nil
	case domain.TopicUserRegistered:
		var ev domain.UserRegistered
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return inbound{}, err
		}
		return inbound{
			spanName:    "ConsumeUserRegistered",
			aggregateID: ev.ID,
			apply:       func(ctx context.Context) error { return c.svc.HandleUserRegistered(ctx, ev) },
		}, nil
	default:
		return inbound{}, fmt.Errorf("unexpected topic %q", msg.Topic)
	}
}
