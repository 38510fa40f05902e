// Package publisher relays committed outbox events to Kafka and drives the
// periodic checkout recovery pass.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nana-k-osei/LAGC/storefront-service/internal/repository"
)

type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// Recoverer finishes or expires checkouts nobody is driving any more.
type Recoverer interface {
	Recover(ctx context.Context) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	batch        int
	repo         OutboxStore
	recoverer    Recoverer
	writer       MessageWriter
	logger       *slog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo OutboxStore, recoverer Recoverer, writer MessageWriter, recoveryTick time.Duration, logger *slog.Logger) *OutboxPoller {
	if recoveryTick <= 0 {
		recoveryTick = 30 * time.Second
	}
	return &OutboxPoller{
		eventTick:    time.Second,
		recoveryTick: recoveryTick,
		batch:        100,
		repo:         repo,
		recoverer:    recoverer,
		writer:       writer,
		logger:       logger,
	}
}

// Run polls until ctx is done.
func (p *OutboxPoller) Run(ctx context.Context) error {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverStuckSessions(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batch)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "failed to publish outbox event", "event_id", event.ID, "error", err)
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.logger.ErrorContext(ctx, "failed to mark outbox event as processed", "event_id", event.ID, "error", err)
			continue
		}
		p.logger.DebugContext(ctx, "outbox event published", "event_id", event.ID, "event_type", event.EventType)
	}
}

func (p *OutboxPoller) recoverStuckSessions(ctx context.Context) {
	if p.recoverer == nil {
		return
	}
	if err := p.recoverer.Recover(ctx); err != nil {
		p.logger.ErrorContext(ctx, "checkout recovery pass failed", "error", err)
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
