package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RaikyD/mp-checkout-service/internal/domain"
	"github.com/RaikyD/mp-checkout-service/internal/logger"
	"github.com/RaikyD/mp-checkout-service/internal/repository"
)

// Resolver maps a notification and the payment it names to exactly one order id.
type Resolver interface {
	Resolve(ctx context.Context, n domain.Notification, p domain.PaymentFacts) (string, error)
}

// Consumer is implemented by resolvers whose correlation data must be
// dropped once the order is completed.
type Consumer interface {
	Consume(ctx context.Context, orderID string) error
}

// TokenResolver correlates through the external_reference (user id) that
// the gateway echoes back on the payment. Among that user's pending orders
// the oldest one whose total equals the paid amount wins.
type TokenResolver struct {
	repo repository.OrderRepo
}

func NewTokenResolver(repo repository.OrderRepo) *TokenResolver {
	return &TokenResolver{repo: repo}
}

func (r *TokenResolver) Resolve(ctx context.Context, _ domain.Notification, p domain.PaymentFacts) (string, error) {
	token := strings.TrimSpace(p.ExternalReference)
	if token == "" {
		return "", fmt.Errorf("%w: payment %s has no external reference", domain.ErrOrderNotFound, p.ID)
	}

	pending, err := r.repo.FindPending(ctx, repository.PendingFilter{UserID: token})
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		return "", fmt.Errorf("%w: no pending order for %q", domain.ErrOrderNotFound, token)
	}

	// pending is oldest first
	for _, o := range pending {
		if o.TotalAmount.Equal(p.TransactionAmount) {
			return o.OrderID, nil
		}
	}
	logger.Warn("payment amount matches no pending order",
		"payment_id", p.ID, "user_id", token, "amount", p.TransactionAmount.String(), "pending", len(pending))
	return "", fmt.Errorf("%w: no pending order of %q for amount %s", domain.ErrOrderNotFound, token, p.TransactionAmount)
}

// ScratchResolver is the legacy temp-storage correlation. It reads whatever
// record the scratch area hands back and ignores the payment entirely, so
// with two checkouts in flight it can resolve to the wrong order.
//
// Deprecated: use TokenResolver.
type ScratchResolver struct {
	scratch repository.ScratchRepo
}

func NewScratchResolver(scratch repository.ScratchRepo) *ScratchResolver {
	return &ScratchResolver{scratch: scratch}
}

func (r *ScratchResolver) Resolve(ctx context.Context, _ domain.Notification, _ domain.PaymentFacts) (string, error) {
	rec, err := r.scratch.Any(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("%w: no temp data found", domain.ErrOrderNotFound)
	}
	if err != nil {
		return "", err
	}
	return rec.OrderID, nil
}

func (r *ScratchResolver) Consume(ctx context.Context, orderID string) error {
	return r.scratch.Delete(ctx, orderID)
}
