package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/RaikyD/mp-checkout-service/internal/application"
	"github.com/RaikyD/mp-checkout-service/internal/domain"
	"github.com/RaikyD/mp-checkout-service/internal/logger"
	"github.com/segmentio/kafka-go"
)

type ConsumerConfig struct {
	Brokers string
	Topic   string
	GroupID string
	// Timeout bounds one reconciliation.
	Timeout time.Duration
}

type Reconciler interface {
	Reconcile(ctx context.Context, n domain.Notification) (*application.Outcome, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer is a running notification relay.
type Consumer struct {
	done chan struct{}
}

// Wait blocks until the consumer has stopped and closed its reader.
func (c *Consumer) Wait() {
	<-c.done
}

// StartConsumer reads relayed gateway notifications and feeds them through
// the same reconciliation as the HTTP webhook. It stops when ctx is done.
func StartConsumer(ctx context.Context, rec Reconciler, cfg ConsumerConfig) *Consumer {
	brokers := strings.Split(cfg.Brokers, ",")

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		StartOffset:     kafka.FirstOffset,
		ReadLagInterval: -1,
	})

	logger.Info("kafka consumer starting", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.GroupID)

	c := &Consumer{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		defer r.Close()
		consume(ctx, r, rec, cfg.Timeout, 300*time.Millisecond)
		logger.Info("kafka consumer stopped", "topic", cfg.Topic)
	}()
	return c
}

// consume commits a message only once it is settled. A retryable failure
// is retried on the same message: the group reader never rewinds, so
// fetching on would let a later commit skip past it.
func consume(ctx context.Context, r messageReader, rec Reconciler, timeout, backoff time.Duration) {
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("kafka fetch error", "err", err)
			if !sleep(ctx, backoff) {
				return
			}
			continue
		}
		logger.Debug("notification fetched", "partition", m.Partition, "offset", m.Offset)

		for !handle(ctx, rec, timeout, m) {
			if !sleep(ctx, backoff) {
				return
			}
		}

		if err := r.CommitMessages(ctx, m); err != nil {
			logger.Warn("kafka commit failed", "err", err)
		} else {
			logger.Debug("kafka committed", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// handle reports whether the message is settled and its offset can be committed.
func handle(ctx context.Context, rec Reconciler, timeout time.Duration, m kafka.Message) bool {
	n, err := domain.ParseWebhookBody(m.Value)
	if err != nil {
		logger.Warn("kafka invalid notification, skip and commit", "offset", m.Offset, "err", err)
		return true
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := rec.Reconcile(ctx, n)
	switch {
	case err == nil:
		logger.Info("notification reconciled", "order_id", out.OrderID, "payment_id", out.PaymentID, "duplicate", out.Duplicate)
		return true
	case domain.Retryable(err) || errors.Is(err, context.DeadlineExceeded):
		logger.Warn("notification reconcile failed, will retry", "payment_id", n.PaymentID, "err", err)
		return false
	default:
		logger.Info("notification dropped", "type", n.Type, "payment_id", n.PaymentID, "err", err)
		return true
	}
}
