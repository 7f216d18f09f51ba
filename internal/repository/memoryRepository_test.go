package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RaikyD/mp-checkout-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(id, user string, created time.Time) *domain.Order {
	return domain.NewPendingOrder(id, user, "Mesa 4", decimal.NewFromInt(1500), "ARS", "pref-"+id, created)
}

func facts(paymentID string) domain.CompletionFacts {
	amt := decimal.NewFromInt(1500)
	return domain.CompletionFacts{
		PaymentID:         paymentID,
		PaidAt:            time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		TransactionAmount: &amt,
		PayerEmail:        "payer@example.com",
	}
}

func TestMemoryCreateDuplicate(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newOrder("o1", "u1", time.Now())))
	err := repo.Create(ctx, newOrder("o1", "u2", time.Now()))
	assert.ErrorIs(t, err, domain.ErrDuplicateOrder)

	got, err := repo.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.False(t, got.IsPaid)
}

func TestMemoryGetNotFound(t *testing.T) {
	repo := NewMemoryOrderRepository()
	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryComplete(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1", "u1", time.Now())))

	done, err := repo.Complete(ctx, "o1", facts("pay123"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.True(t, done.IsPaid)
	assert.Equal(t, "pay123", done.PaymentID)
	require.NotNil(t, done.PaymentDate)
	require.NotNil(t, done.TransactionAmount)
	assert.True(t, done.TransactionAmount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "payer@example.com", done.PayerEmail)

	t.Run("second completion is invalid state", func(t *testing.T) {
		_, err := repo.Complete(ctx, "o1", facts("pay123"))
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		again, err := repo.Get(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, *done.PaymentDate, *again.PaymentDate)
	})

	t.Run("missing order is not found", func(t *testing.T) {
		_, err := repo.Complete(ctx, "nope", facts("pay999"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("payment cannot settle two orders", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newOrder("o2", "u1", time.Now())))
		_, err := repo.Complete(ctx, "o2", facts("pay123"))
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		o2, err := repo.Get(ctx, "o2")
		require.NoError(t, err)
		assert.True(t, o2.IsPending())
	})
}

func TestMemoryCompleteConcurrentSingleWinner(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1", "u1", time.Now())))

	const workers = 32
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		invalid atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.Complete(ctx, "o1", facts("pay123"))
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, domain.ErrInvalidState):
				invalid.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), invalid.Load())
}

func TestMemoryFindPendingOrdering(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newOrder("b", "u1", base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newOrder("a", "u1", base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newOrder("c", "u1", base)))
	require.NoError(t, repo.Create(ctx, newOrder("d", "u2", base)))
	_, err := repo.Complete(ctx, "c", facts("pay1"))
	require.NoError(t, err)

	pending, err := repo.FindPending(ctx, PendingFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].OrderID)
	assert.Equal(t, "b", pending[1].OrderID)

	all, err := repo.FindPending(ctx, PendingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, o := range all {
		assert.Equal(t, o.Status == domain.StatusCompleted, o.IsPaid)
	}
}

func TestMemoryFindByPaymentID(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1", "u1", time.Now())))

	_, err := repo.FindByPaymentID(ctx, "pay1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.Complete(ctx, "o1", facts("pay1"))
	require.NoError(t, err)

	o, err := repo.FindByPaymentID(ctx, "pay1")
	require.NoError(t, err)
	assert.Equal(t, "o1", o.OrderID)
}

func TestMemoryReturnsCopies(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1", "u1", time.Now())))

	o, err := repo.Get(ctx, "o1")
	require.NoError(t, err)
	o.Status = domain.StatusCompleted

	again, err := repo.Get(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, again.IsPending())
}

func TestMemoryScratch(t *testing.T) {
	s := NewMemoryScratchRepository()
	ctx := context.Background()

	_, err := s.Any(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Put(ctx, domain.ScratchRecord{OrderID: "o1", UserID: "u1"}))
	require.NoError(t, s.Put(ctx, domain.ScratchRecord{OrderID: "o2", UserID: "u2"}))
	assert.Equal(t, 2, s.Len())

	r, err := s.Any(ctx)
	require.NoError(t, err)
	assert.Equal(t, "o1", r.OrderID)

	require.NoError(t, s.Delete(ctx, "o1"))
	require.NoError(t, s.Delete(ctx, "o1"))
	assert.Equal(t, 1, s.Len())
}
