package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	NotificationPayment = "payment"

	PaymentApproved   = "approved"
	PaymentPending    = "pending"
	PaymentInProcess  = "in_process"
	PaymentRejected   = "rejected"
	PaymentCancelled  = "cancelled"
	PaymentRefunded   = "refunded"
	PaymentChargeback = "charged_back"
)

// Notification is a webhook delivery reduced to the two fields the core needs.
type Notification struct {
	Type      string
	PaymentID string
}

// PaymentFacts is the gateway's view of a payment, fetched by id.
type PaymentFacts struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	TransactionAmount decimal.Decimal
	CurrencyCode      string
	PayerEmail        string
	ApprovedAt        *time.Time
}

func (p PaymentFacts) Approved() bool {
	return p.Status == PaymentApproved
}

type PreferenceRequest struct {
	Title             string
	UnitPrice         decimal.Decimal
	Quantity          int
	CurrencyCode      string
	ExternalReference string
	Payer             *ContactInfo
}

type Preference struct {
	ID               string
	InitPoint        string
	SandboxInitPoint string
}

// OrderCompleted is published once per winning pending -> completed transition.
type OrderCompleted struct {
	OrderID           string          `json:"orderId"`
	UserID            string          `json:"userId"`
	PaymentID         string          `json:"paymentId"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	TransactionAmount decimal.Decimal `json:"transactionAmount"`
	CurrencyCode      string          `json:"currencyCode"`
	PaymentDate       time.Time       `json:"paymentDate"`
}
