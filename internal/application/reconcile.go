package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RaikyD/mp-checkout-service/internal/domain"
	"github.com/RaikyD/mp-checkout-service/internal/logger"
	"github.com/RaikyD/mp-checkout-service/internal/repository"
)

const maxResolveAttempts = 3

type PaymentLookup interface {
	GetPayment(ctx context.Context, paymentID string) (*domain.PaymentFacts, error)
}

type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, e domain.OrderCompleted) error
}

type Outcome struct {
	OrderID   string
	PaymentID string
	Duplicate bool
}

type Reconciler struct {
	payments PaymentLookup
	resolver Resolver
	repo     repository.OrderRepo
	events   EventPublisher
	now      func() time.Time
}

// NewReconciler wires webhook reconciliation; events may be nil.
func NewReconciler(payments PaymentLookup, resolver Resolver, repo repository.OrderRepo, events EventPublisher) *Reconciler {
	return &Reconciler{
		payments: payments,
		resolver: resolver,
		repo:     repo,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile runs one notification through the pending -> completed state
// machine. A nil error means the order is durably completed by this payment,
// either now or by an earlier delivery.
func (r *Reconciler) Reconcile(ctx context.Context, n domain.Notification) (*Outcome, error) {
	n.Type = strings.TrimSpace(n.Type)
	n.PaymentID = strings.TrimSpace(n.PaymentID)
	if n.Type == "" || n.PaymentID == "" {
		return nil, fmt.Errorf("%w: type and payment id are required", domain.ErrMalformedWebhook)
	}
	if n.Type != domain.NotificationPayment {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedNotification, n.Type)
	}

	facts, err := r.payments.GetPayment(ctx, n.PaymentID)
	if err != nil {
		if !errors.Is(err, domain.ErrPaymentNotFound) && !errors.Is(err, domain.ErrPaymentLookup) {
			err = fmt.Errorf("%w: %v", domain.ErrPaymentLookup, err)
		}
		return nil, err
	}
	if facts.ID == "" {
		facts.ID = n.PaymentID
	}
	if !facts.Approved() {
		return nil, fmt.Errorf("%w: payment %s is %s", domain.ErrPaymentNotApproved, facts.ID, facts.Status)
	}

	// redelivery of a payment that already settled an order
	settled, err := r.repo.FindByPaymentID(ctx, facts.ID)
	if err == nil {
		logger.Info("duplicate payment notification", "order_id", settled.OrderID, "payment_id", facts.ID)
		r.consume(ctx, settled.OrderID)
		return &Outcome{OrderID: settled.OrderID, PaymentID: facts.ID, Duplicate: true}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		orderID, err := r.resolver.Resolve(ctx, n, *facts)
		if err != nil {
			return nil, err
		}

		done, err := r.repo.Complete(ctx, orderID, r.completionFacts(facts))
		switch {
		case err == nil:
			logger.Info("order completed", "order_id", orderID, "payment_id", facts.ID)
			r.consume(ctx, orderID)
			r.publish(ctx, done)
			return &Outcome{OrderID: orderID, PaymentID: facts.ID}, nil
		case errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("%w: resolved order %s does not exist", domain.ErrOrderNotFound, orderID)
		case !errors.Is(err, domain.ErrInvalidState):
			return nil, err
		}

		// the order left pending before us; find out who completed it
		out, err := r.alreadyHandled(ctx, orderID, facts.ID)
		if err != nil {
			return nil, err
		}
		if out != nil {
			logger.Info("duplicate payment notification", "order_id", out.OrderID, "payment_id", facts.ID)
			r.consume(ctx, out.OrderID)
			return out, nil
		}
		logger.Warn("order settled by another payment, resolving again",
			"order_id", orderID, "payment_id", facts.ID, "attempt", attempt)
	}
	return nil, fmt.Errorf("%w: payment %s", domain.ErrAmbiguousOrderResolution, facts.ID)
}

func (r *Reconciler) alreadyHandled(ctx context.Context, orderID, paymentID string) (*Outcome, error) {
	current, err := r.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.CompletedBy(paymentID) {
		return &Outcome{OrderID: orderID, PaymentID: paymentID, Duplicate: true}, nil
	}

	other, err := r.repo.FindByPaymentID(ctx, paymentID)
	if err == nil {
		return &Outcome{OrderID: other.OrderID, PaymentID: paymentID, Duplicate: true}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

func (r *Reconciler) completionFacts(p *domain.PaymentFacts) domain.CompletionFacts {
	amt := p.TransactionAmount
	return domain.CompletionFacts{
		PaymentID:         p.ID,
		PaidAt:            r.now(),
		TransactionAmount: &amt,
		PayerEmail:        p.PayerEmail,
	}
}

func (r *Reconciler) consume(ctx context.Context, orderID string) {
	c, ok := r.resolver.(Consumer)
	if !ok {
		return
	}
	if err := c.Consume(ctx, orderID); err != nil {
		logger.Warn("correlation cleanup failed", "order_id", orderID, "err", err)
	}
}

func (r *Reconciler) publish(ctx context.Context, o *domain.Order) {
	if r.events == nil || o == nil {
		return
	}
	e := domain.OrderCompleted{
		OrderID:      o.OrderID,
		UserID:       o.UserID,
		PaymentID:    o.PaymentID,
		TotalAmount:  o.TotalAmount,
		CurrencyCode: o.CurrencyCode,
	}
	if o.TransactionAmount != nil {
		e.TransactionAmount = *o.TransactionAmount
	}
	if o.PaymentDate != nil {
		e.PaymentDate = *o.PaymentDate
	}
	// the transition is already durable, a lost event must not fail the webhook
	if err := r.events.PublishOrderCompleted(ctx, e); err != nil {
		logger.Warn("order completed event not published", "order_id", o.OrderID, "err", err)
	}
}
