package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/RaikyD/mp-checkout-service/internal/domain"
	"github.com/RaikyD/mp-checkout-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest(user string) CheckoutRequest {
	return CheckoutRequest{
		Description:  "Mesa 4",
		TotalAmount:  decimal.NewFromInt(1500),
		CurrencyCode: "ARS",
		UserID:       user,
	}
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	repo := repository.NewMemoryOrderRepository()
	gw := newStubGateway()
	svc := NewCheckoutService(repo, gw, nil)

	res, err := svc.Checkout(context.Background(), validRequest("u1"))
	require.NoError(t, err)
	assert.Equal(t, "pref-1", res.CheckoutReference)
	assert.Equal(t, "https://mp/init/pref-1", res.InitPoint)
	assert.NotEmpty(t, res.OrderID)

	o, err := repo.Get(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.False(t, o.IsPaid)
	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, "pref-1", o.PreferenceID)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(1500)))
	assert.Nil(t, o.PaymentDate)

	require.Len(t, gw.prefs, 1)
	assert.Equal(t, "u1", gw.prefs[0].ExternalReference)
	assert.Equal(t, "Mesa 4", gw.prefs[0].Title)
	assert.Equal(t, 1, gw.prefs[0].Quantity)
}

func TestCheckoutValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CheckoutRequest)
	}{
		{"empty description", func(r *CheckoutRequest) { r.Description = "   " }},
		{"empty user", func(r *CheckoutRequest) { r.UserID = "" }},
		{"zero amount", func(r *CheckoutRequest) { r.TotalAmount = decimal.Zero }},
		{"negative amount", func(r *CheckoutRequest) { r.TotalAmount = decimal.NewFromInt(-5) }},
		{"bad currency", func(r *CheckoutRequest) { r.CurrencyCode = "PESOS" }},
		{"sub-cent amount", func(r *CheckoutRequest) { r.TotalAmount = decimal.RequireFromString("10.005") }},
		{"amount too large", func(r *CheckoutRequest) { r.TotalAmount = decimal.New(1, 12) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryOrderRepository()
			gw := newStubGateway()
			svc := NewCheckoutService(repo, gw, nil)

			req := validRequest("u1")
			tt.mutate(&req)
			_, err := svc.Checkout(context.Background(), req)

			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Empty(t, gw.prefs, "no preference for invalid input")
		})
	}
}

func TestCheckoutNormalizesInput(t *testing.T) {
	repo := repository.NewMemoryOrderRepository()
	svc := NewCheckoutService(repo, newStubGateway(), nil)

	req := validRequest(" u1 ")
	req.CurrencyCode = "ars"
	req.ContactInfo = &domain.ContactInfo{}
	res, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	o, err := repo.Get(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, "ARS", o.CurrencyCode)
	assert.Nil(t, o.ContactInfo)
}

func TestCheckoutAcceptsStorableAmounts(t *testing.T) {
	for _, amount := range []string{"10.05", "10.000", "0.01", "999999999999.99"} {
		repo := repository.NewMemoryOrderRepository()
		svc := NewCheckoutService(repo, newStubGateway(), nil)

		req := validRequest("u1")
		req.TotalAmount = decimal.RequireFromString(amount)
		res, err := svc.Checkout(context.Background(), req)
		require.NoError(t, err, amount)

		o, err := repo.Get(context.Background(), res.OrderID)
		require.NoError(t, err)
		assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString(amount)), amount)
	}
}

func TestCheckoutPreferenceFailureLeavesNoOrder(t *testing.T) {
	repo := repository.NewMemoryOrderRepository()
	gw := newStubGateway()
	gw.prefErr = errors.New("mercadopago: 500")
	scratch := repository.NewMemoryScratchRepository()
	svc := NewCheckoutService(repo, gw, scratch)

	_, err := svc.Checkout(context.Background(), validRequest("u1"))
	assert.ErrorIs(t, err, domain.ErrPreferenceCreation)

	pending, err := repo.FindPending(context.Background(), repository.PendingFilter{})
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, 0, scratch.Len())
}

func TestCheckoutStoreFailure(t *testing.T) {
	repo := &failingRepo{
		MemoryOrderRepository: repository.NewMemoryOrderRepository(),
		createErr:             fmt.Errorf("%w: %v", domain.ErrStore, errDB),
	}
	svc := NewCheckoutService(repo, newStubGateway(), nil)

	_, err := svc.Checkout(context.Background(), validRequest("u1"))
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestCheckoutRetriesOrderIDCollision(t *testing.T) {
	repo := repository.NewMemoryOrderRepository()
	svc := NewCheckoutService(repo, newStubGateway(), nil)

	first, err := svc.Checkout(context.Background(), validRequest("u1"))
	require.NoError(t, err)

	ids := []string{first.OrderID, first.OrderID, "fresh-id"}
	svc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	res, err := svc.Checkout(context.Background(), validRequest("u2"))
	require.NoError(t, err)
	assert.Equal(t, "fresh-id", res.OrderID)

	orig, err := repo.Get(context.Background(), first.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "u1", orig.UserID)
}

func TestCheckoutGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := repository.NewMemoryOrderRepository()
	svc := NewCheckoutService(repo, newStubGateway(), nil)
	svc.newID = func() string { return "same" }

	_, err := svc.Checkout(context.Background(), validRequest("u1"))
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), validRequest("u2"))
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestCheckoutWritesScratchOnlyWhenEnabled(t *testing.T) {
	scratch := repository.NewMemoryScratchRepository()
	svc := NewCheckoutService(repository.NewMemoryOrderRepository(), newStubGateway(), scratch)

	res, err := svc.Checkout(context.Background(), validRequest("u1"))
	require.NoError(t, err)

	rec, err := scratch.Any(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, rec.OrderID)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "pref-1", rec.PreferenceID)
}
