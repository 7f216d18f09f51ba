package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/RaikyD/mp-checkout-service/internal/domain"
)

// MemoryOrderRepository is a document store kept in process memory.
// Each method holds the lock for its whole body, so Complete is as
// indivisible as the conditional UPDATE of the postgres store.
type MemoryOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (m *MemoryOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.OrderID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateOrder, o.OrderID)
	}
	c := copyOrder(o)
	c.Status = domain.StatusPending
	c.IsPaid = false
	m.orders[o.OrderID] = c
	return nil
}

func (m *MemoryOrderRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	return copyOrder(o), nil
}

func (m *MemoryOrderRepository) FindPending(ctx context.Context, f PendingFilter) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for _, o := range m.orders {
		if !o.IsPending() {
			continue
		}
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		out = append(out, *copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out, nil
}

func (m *MemoryOrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if paymentID != "" && o.PaymentID == paymentID {
			return copyOrder(o), nil
		}
	}
	return nil, fmt.Errorf("%w: payment %s", domain.ErrNotFound, paymentID)
}

func (m *MemoryOrderRepository) Complete(ctx context.Context, orderID string, f domain.CompletionFacts) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	for _, other := range m.orders {
		if f.PaymentID != "" && other.PaymentID == f.PaymentID {
			return nil, fmt.Errorf("%w: payment %s already applied", domain.ErrInvalidState, f.PaymentID)
		}
	}
	if err := o.ApplyCompletion(f); err != nil {
		return nil, fmt.Errorf("%w: order %s", err, orderID)
	}
	return copyOrder(o), nil
}

func (m *MemoryOrderRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

type MemoryScratchRepository struct {
	mu      sync.Mutex
	records []domain.ScratchRecord
}

func NewMemoryScratchRepository() *MemoryScratchRepository {
	return &MemoryScratchRepository{}
}

func (m *MemoryScratchRepository) Put(ctx context.Context, r domain.ScratchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].OrderID == r.OrderID {
			m.records[i] = r
			return nil
		}
	}
	m.records = append(m.records, r)
	return nil
}

func (m *MemoryScratchRepository) Any(ctx context.Context) (*domain.ScratchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) == 0 {
		return nil, fmt.Errorf("%w: scratch is empty", domain.ErrNotFound)
	}
	r := m.records[0]
	return &r, nil
}

func (m *MemoryScratchRepository) Delete(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].OrderID == orderID {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemoryScratchRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	if o.ContactInfo != nil {
		ci := *o.ContactInfo
		c.ContactInfo = &ci
	}
	if o.PaymentDate != nil {
		t := *o.PaymentDate
		c.PaymentDate = &t
	}
	if o.TransactionAmount != nil {
		a := *o.TransactionAmount
		c.TransactionAmount = &a
	}
	return &c
}

var (
	_ OrderRepo   = (*OrderRepository)(nil)
	_ OrderRepo   = (*MemoryOrderRepository)(nil)
	_ ScratchRepo = (*ScratchRepository)(nil)
	_ ScratchRepo = (*MemoryScratchRepository)(nil)
)
