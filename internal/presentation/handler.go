package presentation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RaikyD/mp-checkout-service/internal/application"
	"github.com/RaikyD/mp-checkout-service/internal/domain"
	"github.com/RaikyD/mp-checkout-service/internal/logger"
	"github.com/RaikyD/mp-checkout-service/internal/presentation/helpers"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxWebhookBody = 1 << 20

type Checkouter interface {
	Checkout(ctx context.Context, req application.CheckoutRequest) (*application.CheckoutResult, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, n domain.Notification) (*application.Outcome, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type OrdersHandler struct {
	checkout         Checkouter
	rec              Reconciler
	orders           OrderReader
	store            Pinger
	webhookSecret    string
	reconcileTimeout time.Duration
}

func NewOrdersHandler(checkout Checkouter, rec Reconciler, orders OrderReader, store Pinger, webhookSecret string, reconcileTimeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		checkout:         checkout,
		rec:              rec,
		orders:           orders,
		store:            store,
		webhookSecret:    webhookSecret,
		reconcileTimeout: reconcileTimeout,
	}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/create_preference", h.CreatePreference)
	r.With(SignatureHandler(h.webhookSecret)).Post("/payment_success", h.PaymentSuccess)
	r.Get("/orders/{orderId}", h.GetOrder)
	r.Get("/healthz", h.Health)
}

type createPreferenceRequest struct {
	Description  string              `json:"description"`
	TotalAmount  decimal.Decimal     `json:"totalAmount"`
	CurrencyCode string              `json:"currencyCode"`
	UserID       string              `json:"userId"`
	ContactInfo  *domain.ContactInfo `json:"contactInfo,omitempty"`
}

func (h *OrdersHandler) CreatePreference(w http.ResponseWriter, r *http.Request) {
	var req createPreferenceRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := h.checkout.Checkout(r.Context(), application.CheckoutRequest{
		Description:  req.Description,
		TotalAmount:  req.TotalAmount,
		CurrencyCode: req.CurrencyCode,
		UserID:       req.UserID,
		ContactInfo:  req.ContactInfo,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			helpers.HttpError(w, status, err.Error())
			return
		}
		logger.Error("checkout failed", "user_id", req.UserID, "err", err)
		helpers.HttpError(w, status, "failed to create payment preference, please try again")
		return
	}

	helpers.WriteJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	n, err := readNotification(r)
	if err != nil {
		logger.Warn("webhook rejected", "err", err)
		helpers.HttpError(w, http.StatusBadRequest, err.Error())
		return
	}

	// a dropped gateway connection must not abort a transition half way
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.reconcileTimeout)
	defer cancel()

	out, err := h.rec.Reconcile(ctx, n)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Error("webhook reconcile failed", "type", n.Type, "payment_id", n.PaymentID, "err", err)
		} else {
			logger.Info("webhook not applied", "type", n.Type, "payment_id", n.PaymentID, "err", err)
		}
		helpers.HttpError(w, status, err.Error())
		return
	}

	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "Payment processed successfully",
		"orderId":   out.OrderID,
		"duplicate": out.Duplicate,
	})
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if id == "" {
		helpers.HttpError(w, http.StatusBadRequest, "orderId is empty")
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		helpers.HttpError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		helpers.HttpError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		logger.Warn("health check failed", "err", err)
		helpers.HttpError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readNotification takes the JSON body first and falls back to the query
// string used by legacy senders (?id=&topic= or ?data.id=&type=).
func readNotification(r *http.Request) (domain.Notification, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return domain.Notification{}, err
	}

	var n domain.Notification
	if len(strings.TrimSpace(string(raw))) > 0 {
		if n, err = domain.ParseWebhookBody(raw); err != nil {
			return domain.Notification{}, err
		}
	}

	q := r.URL.Query()
	if n.Type == "" {
		n.Type = firstNonEmpty(q.Get("type"), q.Get("topic"))
	}
	if n.PaymentID == "" {
		n.PaymentID = firstNonEmpty(q.Get("data.id"), q.Get("id"))
	}
	return n, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func statusFor(err error) int {
	switch {
	case err == nil, errors.Is(err, domain.ErrInvalidState):
		return http.StatusOK
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrMalformedWebhook),
		errors.Is(err, domain.ErrUnsupportedNotification),
		errors.Is(err, domain.ErrPaymentNotApproved):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
