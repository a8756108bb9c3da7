package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

var tracer = otel.Tracer("github.com/hackgods/staff-queue-scheduling/internal/events")

type Store interface {
	PublishBatch(ctx context.Context, limit int, publish func(ctx context.Context, batch []Event) error) (int, error)
}

// MessageWriter is the subset of *kafka.Writer the relay needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Relay struct {
	store     Store
	writer    MessageWriter
	batchSize int
	logger    *slog.Logger
}

func NewRelay(store Store, writer MessageWriter, batchSize int, logger *slog.Logger) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{store: store, writer: writer, batchSize: batchSize, logger: logger}
}

// NewWriter builds a writer for topic that hashes on the message key, so all
// events of one owner land on the same partition in order.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Run relays until ctx is cancelled. A full batch is followed immediately by
// another one; otherwise the relay waits for the next tick.
func (r *Relay) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		n, err := r.RelayOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "event relay failed", "err", err)
		}
		if err == nil && n == r.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many events were relayed.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "events.RelayOnce")
	defer span.End()

	n, err := r.store.PublishBatch(ctx, r.batchSize, func(ctx context.Context, batch []Event) error {
		msgs := make([]kafka.Message, len(batch))
		for i, ev := range batch {
			msgs[i] = r.message(ctx, ev)
		}
		if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write %d messages: %w", len(msgs), err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int("events.relayed", n))
	if n > 0 {
		r.logger.InfoContext(ctx, "relayed events", "count", n)
	}
	return n, nil
}

func (r *Relay) message(ctx context.Context, ev Event) kafka.Message {
	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(ev.IDString())},
		{Key: "event_type", Value: []byte(ev.EventType)},
	}
	if ev.AppointmentID != nil {
		headers = append(headers, kafka.Header{Key: "appointment_id", Value: []byte(ev.AppointmentID.String())})
	}

	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return kafka.Message{
		Key:     []byte(ev.OwnerID.String()),
		Value:   ev.Payload,
		Headers: carrier.headers,
		Time:    ev.CreatedAt,
	}
}

// HeaderValue returns the first header named key, or "".
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	return HeaderValue(c.headers, key)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

// ReadyCheck dials the first broker.
func ReadyCheck(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
