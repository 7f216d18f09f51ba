package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RaikyD/mp-checkout-service/internal/domain"
	"github.com/shopspring/decimal"
)

type BackURLs struct {
	Success string
	Failure string
}

// MercadoPagoClient talks to the Mercado Pago REST API. Every call is bounded
// by the http.Client timeout and by the caller's context.
type MercadoPagoClient struct {
	Client          *http.Client
	BaseURL         string
	AccessToken     string
	BackURLs        BackURLs
	NotificationURL string
}

func NewMercadoPagoClient(baseURL, token string, timeout time.Duration, back BackURLs, notificationURL string) *MercadoPagoClient {
	return &MercadoPagoClient{
		Client:          &http.Client{Timeout: timeout},
		BaseURL:         strings.TrimRight(baseURL, "/"),
		AccessToken:     token,
		BackURLs:        back,
		NotificationURL: notificationURL,
	}
}

type preferenceItem struct {
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
	CurrencyID string      `json:"currency_id"`
}

type preferencePayer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type preferenceBody struct {
	Items             []preferenceItem  `json:"items"`
	BackURLs          map[string]string `json:"back_urls"`
	AutoReturn        string            `json:"auto_return"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	ExternalReference string            `json:"external_reference"`
	Payer             *preferencePayer  `json:"payer,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

func (c *MercadoPagoClient) CreatePreference(ctx context.Context, req domain.PreferenceRequest) (*domain.Preference, error) {
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}
	body := preferenceBody{
		Items: []preferenceItem{{
			Title:      req.Title,
			Quantity:   qty,
			UnitPrice:  json.Number(req.UnitPrice.String()),
			CurrencyID: req.CurrencyCode,
		}},
		BackURLs: map[string]string{
			"success": c.BackURLs.Success,
			"failure": c.BackURLs.Failure,
		},
		AutoReturn:        "approved",
		NotificationURL:   c.NotificationURL,
		ExternalReference: req.ExternalReference,
	}
	if p := req.Payer; p != nil && (p.Name != "" || p.Email != "") {
		body.Payer = &preferencePayer{Name: p.Name, Email: p.Email}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode preference: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/checkout/preferences", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create preference: unexpected status %d: %s", resp.StatusCode, snippet(resp.Body))
	}

	var pr preferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode preference: %w", err)
	}
	if pr.ID == "" {
		return nil, fmt.Errorf("create preference: empty preference id")
	}
	return &domain.Preference{ID: pr.ID, InitPoint: pr.InitPoint, SandboxInitPoint: pr.SandboxInitPoint}, nil
}

type paymentResponse struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	DateApproved      *time.Time      `json:"date_approved"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

// GetPayment maps transport failures to ErrPaymentLookup and a 404 to ErrPaymentNotFound.
func (c *MercadoPagoClient) GetPayment(ctx context.Context, paymentID string) (*domain.PaymentFacts, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentLookup, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, paymentID)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d for payment %s", domain.ErrPaymentLookup, resp.StatusCode, paymentID)
	}

	var pr paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("%w: decode payment: %v", domain.ErrPaymentLookup, err)
	}

	id := pr.ID.String()
	if id == "" {
		id = paymentID
	}
	return &domain.PaymentFacts{
		ID:                id,
		Status:            pr.Status,
		StatusDetail:      pr.StatusDetail,
		ExternalReference: pr.ExternalReference,
		TransactionAmount: pr.TransactionAmount,
		CurrencyCode:      pr.CurrencyID,
		PayerEmail:        pr.Payer.Email,
		ApprovedAt:        pr.DateApproved,
	}, nil
}

func (c *MercadoPagoClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
