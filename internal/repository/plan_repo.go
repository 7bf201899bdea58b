package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
)

type PlanRepository struct {
	pool *pgxpool.Pool
}

func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

// GetAvailable retrieves plans offered on the storefront
func (r *PlanRepository) GetAvailable(ctx context.Context) ([]*models.Plan, error) {
	query := `
		SELECT id, name, price, currency, hestia_package, available, created_at, updated_at
		FROM shop.plans
		WHERE available = true
		ORDER BY price
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		p := &models.Plan{}
		err := rows.Scan(
			&p.ID, &p.Name, &p.Price, &p.Currency,
			&p.HestiaPackage, &p.Available, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetByID retrieves a plan by id
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	query := `
		SELECT id, name, price, currency, hestia_package, available, created_at, updated_at
		FROM shop.plans
		WHERE id = $1
	`
	p := &models.Plan{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Price, &p.Currency,
		&p.HestiaPackage, &p.Available, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get plan by id: %w", err)
	}
	return p, nil
}

// Upsert creates or updates a plan
func (r *PlanRepository) Upsert(ctx context.Context, p *models.Plan) error {
	query := `
		INSERT INTO shop.plans (id, name, price, currency, hestia_package, available)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			hestia_package = EXCLUDED.hestia_package,
			available = EXCLUDED.available,
			updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, p.ID, p.Name, p.Price, p.Currency, p.HestiaPackage, p.Available)
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}
