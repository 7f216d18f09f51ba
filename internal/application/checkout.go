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
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxIDAttempts = 3

// amounts are stored as NUMERIC(14, 2)
const amountScale = 2

var maxAmount = decimal.New(1, 12)

type PreferenceCreator interface {
	CreatePreference(ctx context.Context, req domain.PreferenceRequest) (*domain.Preference, error)
}

type CheckoutRequest struct {
	Description  string
	TotalAmount  decimal.Decimal
	CurrencyCode string
	UserID       string
	ContactInfo  *domain.ContactInfo
}

type CheckoutResult struct {
	CheckoutReference string `json:"checkoutReference"`
	InitPoint         string `json:"initPoint,omitempty"`
	OrderID           string `json:"orderId"`
}

type CheckoutService struct {
	repo    repository.OrderRepo
	prefs   PreferenceCreator
	scratch repository.ScratchRepo
	newID   func() string
	now     func() time.Time
}

// NewCheckoutService wires checkout initiation. scratch is only non-nil when
// the deprecated temp-storage correlation is enabled.
func NewCheckoutService(repo repository.OrderRepo, prefs PreferenceCreator, scratch repository.ScratchRepo) *CheckoutService {
	return &CheckoutService{
		repo:    repo,
		prefs:   prefs,
		scratch: scratch,
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	req, err := normalize(req)
	if err != nil {
		return nil, err
	}

	pref, err := s.prefs.CreatePreference(ctx, domain.PreferenceRequest{
		Title:             req.Description,
		UnitPrice:         req.TotalAmount,
		Quantity:          1,
		CurrencyCode:      req.CurrencyCode,
		ExternalReference: req.UserID,
		Payer:             req.ContactInfo,
	})
	if err != nil {
		logger.Warn("preference creation failed", "user_id", req.UserID, "err", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrPreferenceCreation, err)
	}

	var order *domain.Order
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		o := domain.NewPendingOrder(s.newID(), req.UserID, req.Description, req.TotalAmount, req.CurrencyCode, pref.ID, s.now())
		o.ContactInfo = req.ContactInfo

		err = s.repo.Create(ctx, o)
		if err == nil {
			order = o
			break
		}
		if !errors.Is(err, domain.ErrDuplicateOrder) {
			logger.Warn("order create failed", "preference_id", pref.ID, "err", err)
			return nil, err
		}
		logger.Warn("order id collision, allocating another", "order_id", o.OrderID)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: could not allocate a unique order id", domain.ErrStore)
	}

	if s.scratch != nil {
		rec := domain.ScratchRecord{
			OrderID:      order.OrderID,
			UserID:       order.UserID,
			PreferenceID: order.PreferenceID,
			TotalAmount:  order.TotalAmount,
			CreatedAt:    order.CreatedAt,
		}
		if err := s.scratch.Put(ctx, rec); err != nil {
			logger.Error("scratch correlation write failed", "order_id", order.OrderID, "err", err)
		}
	}

	logger.Info("order created", "order_id", order.OrderID, "user_id", order.UserID, "preference_id", pref.ID)
	return &CheckoutResult{
		CheckoutReference: pref.ID,
		InitPoint:         pref.InitPoint,
		OrderID:           order.OrderID,
	}, nil
}

func normalize(req CheckoutRequest) (CheckoutRequest, error) {
	req.Description = strings.TrimSpace(req.Description)
	req.UserID = strings.TrimSpace(req.UserID)
	req.CurrencyCode = strings.ToUpper(strings.TrimSpace(req.CurrencyCode))

	switch {
	case req.Description == "":
		return req, fmt.Errorf("%w: description is required", domain.ErrValidation)
	case req.UserID == "":
		return req, fmt.Errorf("%w: userId is required", domain.ErrValidation)
	case !req.TotalAmount.IsPositive():
		return req, fmt.Errorf("%w: totalAmount must be positive", domain.ErrValidation)
	case !req.TotalAmount.Equal(req.TotalAmount.Truncate(amountScale)):
		return req, fmt.Errorf("%w: totalAmount has more than %d decimal places", domain.ErrValidation, amountScale)
	case req.TotalAmount.GreaterThanOrEqual(maxAmount):
		return req, fmt.Errorf("%w: totalAmount must be below %s", domain.ErrValidation, maxAmount)
	case len(req.CurrencyCode) != 3:
		return req, fmt.Errorf("%w: currencyCode must be a 3-letter code", domain.ErrValidation)
	}

	if c := req.ContactInfo; c != nil && *c == (domain.ContactInfo{}) {
		req.ContactInfo = nil
	}
	return req, nil
}
