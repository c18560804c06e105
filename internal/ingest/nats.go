package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"reminders/internal/config"
	"reminders/internal/domain"
	"reminders/internal/gateway"
	"reminders/internal/permanent"
)

// missingSubjectDeliveries caps redelivery of events whose subject entity is absent,
// independent of max_deliver.
const missingSubjectDeliveries = 3

// EventHandler runs point mode for one entity event.
// Params: context and validated event.
// Returns: compiled message, nil when nothing applies, or an error; permanent errors are not redelivered.
type EventHandler interface {
	HandleEvent(ctx context.Context, event domain.EntityEvent) (*domain.CompiledMessage, error)
}

// NATSSubscriber consumes entity events via JetStream queue consumer and forwards them to handler.
// Params: NATS connection, queue subscriptions, and event handler.
// Returns: NATS ingest lifecycle handle.
type NATSSubscriber struct {
	nc        *nats.Conn
	subs      []*nats.Subscription
	handler   EventHandler
	logger    *slog.Logger
	ackWait   time.Duration
	nackDelay time.Duration
}

// NewNATSSubscriber creates JetStream queue consumers for point-mode events.
// Params: ingest NATS config, handler, and optional logger.
// Returns: started subscriber or initialization error.
func NewNATSSubscriber(cfg config.NATSIngestConfig, handler EventHandler, logger *slog.Logger) (*NATSSubscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(strings.Join(cfg.URL, ","), nats.Name("reminders-ingest"))
	if err != nil {
		return nil, fmt.Errorf("connect nats ingest: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for ingest: %w", err)
	}

	subscriber := &NATSSubscriber{
		nc:        nc,
		handler:   handler,
		logger:    logger.With("component", "nats_ingest", "subject", cfg.Subject),
		ackWait:   time.Duration(cfg.AckWaitSec) * time.Second,
		nackDelay: time.Duration(cfg.NackDelayMS) * time.Millisecond,
	}
	subOpts := []nats.SubOpt{
		nats.BindStream(cfg.Stream),
		nats.Durable(cfg.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(subscriber.ackWait),
		nats.MaxDeliver(cfg.MaxDeliver),
		nats.MaxAckPending(cfg.MaxAckPending),
		nats.DeliverAll(),
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		sub, err := js.QueueSubscribe(cfg.Subject, cfg.DeliverGroup, subscriber.handleMessage, subOpts...)
		if err != nil {
			_ = subscriber.Close()
			return nil, fmt.Errorf("queue subscribe %q/%q: %w", cfg.Subject, cfg.DeliverGroup, err)
		}
		subscriber.subs = append(subscriber.subs, sub)
	}
	return subscriber, nil
}

// handleMessage processes one payload; any retryable failure redelivers the whole payload.
func (s *NATSSubscriber) handleMessage(message *nats.Msg) {
	events, err := DecodeEvents(message.Data)
	if err != nil {
		s.logger.Warn("nats ingest decode failed", "error", err.Error())
		s.ackMessage(message, "decode")
		return
	}

	ctx := context.Background()
	if s.ackWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ackWait)
		defer cancel()
	}

	retry := false
	for _, event := range events {
		compiled, err := s.handler.HandleEvent(ctx, event)
		switch {
		case err == nil:
			if compiled != nil {
				s.logger.Info("nats event compiled", "message_id", compiled.ID, "sent", compiled.Sent)
			}
		case permanent.Is(err):
			s.logger.Info("nats event skipped", "kind", string(event.Kind), "subject_id", event.SubjectID, "reason", err.Error())
		case errors.Is(err, context.Canceled):
			retry = true
		case errors.Is(err, gateway.ErrNotFound) && deliveries(message) >= missingSubjectDeliveries:
			s.logger.Warn("nats event dropped, subject not found", "kind", string(event.Kind), "subject_id", event.SubjectID, "deliveries", deliveries(message))
		default:
			s.logger.Error("nats event failed", "kind", string(event.Kind), "subject_id", event.SubjectID, "error", err.Error())
			retry = true
		}
	}
	if retry {
		s.nackMessage(message, s.nackDelay)
		return
	}
	s.ackMessage(message, "processed")
}

// deliveries reports how many times JetStream delivered message; 1 when metadata is unavailable.
func deliveries(message *nats.Msg) uint64 {
	meta, err := message.Metadata()
	if err != nil || meta == nil {
		return 1
	}
	return meta.NumDelivered
}

// ackMessage acknowledges processed/invalid message and logs ack failures.
// Params: JetStream message and short reason.
// Returns: none.
func (s *NATSSubscriber) ackMessage(message *nats.Msg, reason string) {
	if message == nil {
		return
	}
	if err := message.Ack(); err != nil {
		s.logger.Warn("nats ingest ack failed", "reason", reason, "error", err.Error())
	}
}

// nackMessage asks JetStream to redeliver message and logs nack failures.
// Params: JetStream message and optional delay.
// Returns: none.
func (s *NATSSubscriber) nackMessage(message *nats.Msg, delay time.Duration) {
	if message == nil {
		return
	}
	var err error
	if delay > 0 {
		err = message.NakWithDelay(delay)
	} else {
		err = message.Nak()
	}
	if err != nil {
		s.logger.Warn("nats ingest nack failed", "error", err.Error())
	}
}

// Close drains subscriptions and closes connection.
// Params: none.
// Returns: first drain error.
func (s *NATSSubscriber) Close() error {
	var first error
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil && first == nil {
			first = err
		}
	}
	s.nc.Close()
	return first
}
