package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
)

type ContactInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Order struct {
	OrderID           string           `json:"orderId"`
	UserID            string           `json:"userId"`
	Description       string           `json:"description"`
	TotalAmount       decimal.Decimal  `json:"totalAmount"`
	CurrencyCode      string           `json:"currencyCode"`
	ContactInfo       *ContactInfo     `json:"contactInfo,omitempty"`
	PreferenceID      string           `json:"preferenceId"`
	Status            OrderStatus      `json:"status"`
	IsPaid            bool             `json:"isPaid"`
	PaymentID         string           `json:"paymentId,omitempty"`
	PaymentDate       *time.Time       `json:"paymentDate,omitempty"`
	TransactionAmount *decimal.Decimal `json:"transactionAmount,omitempty"`
	PayerEmail        string           `json:"payerEmail,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// NewPendingOrder returns an order in its only legal initial state.
func NewPendingOrder(orderID, userID, description string, total decimal.Decimal, currency, preferenceID string, now time.Time) *Order {
	return &Order{
		OrderID:      orderID,
		UserID:       userID,
		Description:  description,
		TotalAmount:  total,
		CurrencyCode: currency,
		PreferenceID: preferenceID,
		Status:       StatusPending,
		IsPaid:       false,
		CreatedAt:    now,
	}
}

func (o *Order) IsPending() bool {
	return o.Status == StatusPending
}

// CompletedBy reports whether the order was settled by the given provider payment.
func (o *Order) CompletedBy(paymentID string) bool {
	return o.Status == StatusCompleted && paymentID != "" && o.PaymentID == paymentID
}

// ApplyCompletion performs the pending -> completed transition in memory.
// Stores call it inside their own atomic section.
func (o *Order) ApplyCompletion(f CompletionFacts) error {
	if o.Status != StatusPending {
		return ErrInvalidState
	}
	paidAt := f.PaidAt
	o.Status = StatusCompleted
	o.IsPaid = true
	o.PaymentID = f.PaymentID
	o.PaymentDate = &paidAt
	if f.TransactionAmount != nil {
		amt := *f.TransactionAmount
		o.TransactionAmount = &amt
	}
	o.PayerEmail = f.PayerEmail
	return nil
}

// CompletionFacts is what a store writes on the pending -> completed transition.
type CompletionFacts struct {
	PaymentID         string
	PaidAt            time.Time
	TransactionAmount *decimal.Decimal
	PayerEmail        string
}

// ScratchRecord is the legacy side correlation record kept in correlation_scratch.
type ScratchRecord struct {
	OrderID      string          `json:"orderId"`
	UserID       string          `json:"userId"`
	PreferenceID string          `json:"preferenceId"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	CreatedAt    time.Time       `json:"createdAt"`
}
