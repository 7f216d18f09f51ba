package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/RaikyD/mp-checkout-service/internal/domain"
	"github.com/RaikyD/mp-checkout-service/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

type PendingFilter struct {
	UserID string
}

type OrderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	FindPending(ctx context.Context, f PendingFilter) ([]domain.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error)
	Complete(ctx context.Context, orderID string, f domain.CompletionFacts) (*domain.Order, error)
}

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(p *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: p}
}

const orderColumns = `order_id, user_id, description, total_amount::text, currency_code,
	contact_name, contact_email, contact_phone, preference_id, status, is_paid,
	payment_id, payment_date, transaction_amount::text, payer_email, created_at`

func (p *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	var name, email, phone *string
	if c := o.ContactInfo; c != nil {
		name, email, phone = nullable(c.Name), nullable(c.Email), nullable(c.Phone)
	}

	// is_paid is a generated column, status alone decides it
	_, err := p.pool.Exec(ctx,
		`INSERT INTO orders
			(order_id, user_id, description, total_amount, currency_code,
			 contact_name, contact_email, contact_phone, preference_id, status, created_at)
		 VALUES
			($1, $2, $3, $4::numeric, $5,
			 $6, $7, $8, $9, $10, $11)`,
		o.OrderID,
		o.UserID,
		o.Description,
		o.TotalAmount.String(),
		o.CurrencyCode,
		name,
		email,
		phone,
		o.PreferenceID,
		string(domain.StatusPending),
		o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateOrder, o.OrderID)
		}
		logger.Warn("insert order failed", "order_id", o.OrderID, "err", err)
		return fmt.Errorf("%w: insert order: %v", domain.ErrStore, err)
	}
	return nil
}

func (p *OrderRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get order: %v", domain.ErrStore, err)
	}
	return o, nil
}

func (p *OrderRepository) FindPending(ctx context.Context, f PendingFilter) ([]domain.Order, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = 'pending' AND ($1 = '' OR user_id = $1)
		 ORDER BY created_at, order_id`,
		f.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: find pending: %v", domain.ErrStore, err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan pending: %v", domain.ErrStore, err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: find pending: %v", domain.ErrStore, err)
	}
	return out, nil
}

func (p *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_id = $1`, paymentID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment %s", domain.ErrNotFound, paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find by payment: %v", domain.ErrStore, err)
	}
	return o, nil
}

// Complete is a single conditional UPDATE; the follow-up SELECT only tells
// "missing" apart from "not pending" after the update matched nothing.
func (p *OrderRepository) Complete(ctx context.Context, orderID string, f domain.CompletionFacts) (*domain.Order, error) {
	var amount *string
	if f.TransactionAmount != nil {
		s := f.TransactionAmount.String()
		amount = &s
	}

	row := p.pool.QueryRow(ctx,
		`UPDATE orders
		    SET status = 'completed',
		        payment_id = $2,
		        payment_date = $3,
		        transaction_amount = $4::numeric,
		        payer_email = $5
		  WHERE order_id = $1 AND status = 'pending'
		  RETURNING `+orderColumns,
		orderID,
		f.PaymentID,
		f.PaidAt,
		amount,
		nullable(f.PayerEmail),
	)
	o, err := scanOrder(row)
	if err == nil {
		return o, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		// payment_id already settled another order
		return nil, fmt.Errorf("%w: payment %s already applied", domain.ErrInvalidState, f.PaymentID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: complete order: %v", domain.ErrStore, err)
	}

	var exists bool
	if err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)`, orderID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%w: complete order: %v", domain.ErrStore, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	return nil, fmt.Errorf("%w: order %s", domain.ErrInvalidState, orderID)
}

func (p *OrderRepository) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                          domain.Order
		total, status              string
		name, email, phone         *string
		paymentID, txAmount, payer *string
	)
	err := row.Scan(
		&o.OrderID,
		&o.UserID,
		&o.Description,
		&total,
		&o.CurrencyCode,
		&name,
		&email,
		&phone,
		&o.PreferenceID,
		&status,
		&o.IsPaid,
		&paymentID,
		&o.PaymentDate,
		&txAmount,
		&payer,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = domain.OrderStatus(status)
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	if txAmount != nil {
		amt, err := decimal.NewFromString(*txAmount)
		if err != nil {
			return nil, err
		}
		o.TransactionAmount = &amt
	}
	if name != nil || email != nil || phone != nil {
		o.ContactInfo = &domain.ContactInfo{Name: deref(name), Email: deref(email), Phone: deref(phone)}
	}
	o.PaymentID = deref(paymentID)
	o.PayerEmail = deref(payer)
	return &o, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
