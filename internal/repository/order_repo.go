package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
)

var ErrNotFound = errors.New("not found")

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `
	id, user_id, access_ref, plan_id, plan_name, price, currency,
	email, full_name, phone, billing_line, city, zip, country,
	status, payment_status, payment_intent_id, gateway_state, domain,
	created_at, updated_at
`

func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO shop.orders (
			id, user_id, access_ref, plan_id, plan_name, price, currency,
			email, full_name, phone, billing_line, city, zip, country,
			status, payment_status, payment_intent_id, gateway_state, domain
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19
		)
	`
	_, err := r.pool.Exec(ctx, query,
		o.ID, o.UserID, o.AccessRef, o.PlanID, o.PlanName, o.Price, o.Currency,
		o.Email, o.FullName, o.Phone, o.BillingLine, o.City, o.Zip, o.Country,
		o.Status, o.PaymentStatus, o.PaymentIntentID, o.GatewayState, o.Domain,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM shop.orders WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *OrderRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM shop.orders WHERE payment_intent_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, intentID))
}

func (r *OrderRepository) GetByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM shop.orders WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *OrderRepository) Update(ctx context.Context, o *models.Order) error {
	query := `
		UPDATE shop.orders SET
			status = $1,
			payment_status = $2,
			payment_intent_id = $3,
			gateway_state = $4,
			domain = $5,
			updated_at = NOW()
		WHERE id = $6
	`
	_, err := r.pool.Exec(ctx, query,
		o.Status, o.PaymentStatus, o.PaymentIntentID, o.GatewayState, o.Domain, o.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// SetPaymentIntent persists the gateway reference right after intent creation
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, id, intentID, gatewayState string) error {
	query := `UPDATE shop.orders SET payment_intent_id = $1, gateway_state = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, intentID, gatewayState, id)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}
	return nil
}

// UpdatePaymentOutcome records an authoritative gateway status read
func (r *OrderRepository) UpdatePaymentOutcome(ctx context.Context, id, status, paymentStatus, gatewayState string) error {
	query := `
		UPDATE shop.orders SET
			status = $1,
			payment_status = $2,
			gateway_state = $3,
			updated_at = NOW()
		WHERE id = $4
	`
	_, err := r.pool.Exec(ctx, query, status, paymentStatus, gatewayState, id)
	if err != nil {
		return fmt.Errorf("update payment outcome: %w", err)
	}
	return nil
}

func (r *OrderRepository) scanOne(row pgx.Row) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(
		&o.ID, &o.UserID, &o.AccessRef, &o.PlanID, &o.PlanName, &o.Price, &o.Currency,
		&o.Email, &o.FullName, &o.Phone, &o.BillingLine, &o.City, &o.Zip, &o.Country,
		&o.Status, &o.PaymentStatus, &o.PaymentIntentID, &o.GatewayState, &o.Domain,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) scanMany(rows pgx.Rows) ([]*models.Order, error) {
	var results []*models.Order
	for rows.Next() {
		o := &models.Order{}
		err := rows.Scan(
			&o.ID, &o.UserID, &o.AccessRef, &o.PlanID, &o.PlanName, &o.Price, &o.Currency,
			&o.Email, &o.FullName, &o.Phone, &o.BillingLine, &o.City, &o.Zip, &o.Country,
			&o.Status, &o.PaymentStatus, &o.PaymentIntentID, &o.GatewayState, &o.Domain,
			&o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		results = append(results, o)
	}
	return results, rows.Err()
}
