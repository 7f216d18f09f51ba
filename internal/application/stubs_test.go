package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RaikyD/mp-checkout-service/internal/domain"
	"github.com/RaikyD/mp-checkout-service/internal/repository"
)

type stubGateway struct {
	mu        sync.Mutex
	payments  map[string]domain.PaymentFacts
	lookupErr error
	prefErr   error
	prefs     []domain.PreferenceRequest
	lookups   int
}

func newStubGateway() *stubGateway {
	return &stubGateway{payments: make(map[string]domain.PaymentFacts)}
}

func (g *stubGateway) CreatePreference(ctx context.Context, req domain.PreferenceRequest) (*domain.Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.prefErr != nil {
		return nil, g.prefErr
	}
	g.prefs = append(g.prefs, req)
	id := fmt.Sprintf("pref-%d", len(g.prefs))
	return &domain.Preference{ID: id, InitPoint: "https://mp/init/" + id}, nil
}

func (g *stubGateway) GetPayment(ctx context.Context, paymentID string) (*domain.PaymentFacts, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups++
	if g.lookupErr != nil {
		return nil, g.lookupErr
	}
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, paymentID)
	}
	return &p, nil
}

func (g *stubGateway) setPayment(p domain.PaymentFacts) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.ID] = p
}

func (g *stubGateway) lookupCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lookups
}

type stubEvents struct {
	mu     sync.Mutex
	events []domain.OrderCompleted
	err    error
}

func (e *stubEvents) PublishOrderCompleted(ctx context.Context, ev domain.OrderCompleted) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

func (e *stubEvents) published() []domain.OrderCompleted {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.OrderCompleted(nil), e.events...)
}

// failingRepo lets single methods of the memory store fail.
type failingRepo struct {
	*repository.MemoryOrderRepository
	createErr   error
	completeErr error
	getCalls    int
	mu          sync.Mutex
}

func (f *failingRepo) Create(ctx context.Context, o *domain.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.MemoryOrderRepository.Create(ctx, o)
}

func (f *failingRepo) Complete(ctx context.Context, orderID string, c domain.CompletionFacts) (*domain.Order, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.MemoryOrderRepository.Complete(ctx, orderID, c)
}

func (f *failingRepo) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	return f.MemoryOrderRepository.Get(ctx, orderID)
}

var errDB = errors.New("connection reset")
