package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/RaikyD/mp-checkout-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ScratchRepo backs the deprecated "temp storage" correlation strategy.
type ScratchRepo interface {
	Put(ctx context.Context, r domain.ScratchRecord) error
	// Any returns one record without any filter, exactly like the legacy read.
	Any(ctx context.Context) (*domain.ScratchRecord, error)
	Delete(ctx context.Context, orderID string) error
}

type ScratchRepository struct {
	pool *pgxpool.Pool
}

func NewScratchRepository(p *pgxpool.Pool) *ScratchRepository {
	return &ScratchRepository{pool: p}
}

func (s *ScratchRepository) Put(ctx context.Context, r domain.ScratchRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO correlation_scratch (order_id, user_id, preference_id, total_amount, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5)
		 ON CONFLICT (order_id) DO UPDATE
		    SET user_id = EXCLUDED.user_id,
		        preference_id = EXCLUDED.preference_id,
		        total_amount = EXCLUDED.total_amount`,
		r.OrderID, r.UserID, r.PreferenceID, r.TotalAmount.String(), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: put scratch: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *ScratchRepository) Any(ctx context.Context) (*domain.ScratchRecord, error) {
	var (
		r     domain.ScratchRecord
		total string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT order_id, user_id, preference_id, total_amount::text, created_at
		   FROM correlation_scratch LIMIT 1`,
	).Scan(&r.OrderID, &r.UserID, &r.PreferenceID, &total, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: scratch is empty", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read scratch: %v", domain.ErrStore, err)
	}
	if r.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("%w: read scratch: %v", domain.ErrStore, err)
	}
	return &r, nil
}

func (s *ScratchRepository) Delete(ctx context.Context, orderID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM correlation_scratch WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("%w: delete scratch: %v", domain.ErrStore, err)
	}
	return nil
}
