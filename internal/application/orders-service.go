package application

import (
	"context"
	"sync"

	"github.com/RaikyD/mp-checkout-service/internal/domain"
	"github.com/RaikyD/mp-checkout-service/internal/logger"
	"github.com/RaikyD/mp-checkout-service/internal/repository"
)

// OrdersService serves order reads. Only completed orders are cached:
// they never change again, so the cache cannot disagree with the store.
type OrdersService struct {
	repo repository.OrderRepo
	mu   sync.RWMutex
	byID map[string]*domain.Order
}

func NewOrdersService(r repository.OrderRepo) *OrdersService {
	return &OrdersService{
		repo: r,
		byID: make(map[string]*domain.Order),
	}
}

func (s *OrdersService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	if o, ok := s.byID[orderID]; ok {
		s.mu.RUnlock()
		c := *o
		return &c, nil
	}
	s.mu.RUnlock()

	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		logger.Debug("order lookup failed", "order_id", orderID, "err", err)
		return nil, err
	}

	if o.Status == domain.StatusCompleted {
		c := *o
		s.mu.Lock()
		s.byID[orderID] = &c
		s.mu.Unlock()
	}
	return o, nil
}
