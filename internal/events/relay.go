package events

import (
	"context"
	"strings"
	"time"

	"shopfront/internal/repository/outbox"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TopicOrderClosed  = "order.closed"
	TopicOrderCreated = "order.created"

	defaultBatchSize = 100
)

// OrderEvent is the payload recorded in the outbox for order lifecycle changes.
type OrderEvent struct {
	OrderID    int64     `json:"orderId"`
	UserID     int64     `json:"userId"`
	Status     string    `json:"status"`
	TotalPrice string    `json:"totalPrice"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher is the subset of *kafka.Writer the relay needs.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type pendingStore interface {
	FetchPending(ctx context.Context, limit int) ([]outbox.Record, error)
	MarkSent(ctx context.Context, id int64) error
}

// Relay forwards unsent outbox records to Kafka. Delivery is at least once: a record is
// marked sent only after the broker accepted it.
type Relay struct {
	store     pendingStore
	publisher Publisher
	topic     string
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewRelay(store pendingStore, publisher Publisher, topic string, interval time.Duration, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		topic:     topic,
		interval:  interval,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

// NewWriter builds a Kafka writer for a comma separated broker list, or returns nil when
// the list is empty.
func NewWriter(brokersCSV, topic string) *kafka.Writer {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// Run polls until ctx is canceled, then closes the publisher.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started", zap.String("topic", r.topic), zap.Duration("interval", r.interval))
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("outbox relay flush failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			if err := r.publisher.Close(); err != nil {
				r.logger.Warn("close outbox publisher", zap.Error(err))
			}
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch of pending records and returns how many were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range records {
		msg := kafka.Message{
			Key:   []byte(rec.Key),
			Value: rec.Payload,
			Time:  rec.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(rec.EventID)},
				{Key: "event_type", Value: []byte(rec.Topic)},
			},
		}
		if err := r.publisher.WriteMessages(ctx, msg); err != nil {
			return sent, err
		}
		if err := r.store.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		sent++
	}
	if sent > 0 {
		r.logger.Debug("outbox relay published", zap.Int("count", sent))
	}
	return sent, nil
}
