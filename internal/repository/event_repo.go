package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Create creates a new order event entry
func (r *EventRepository) Create(ctx context.Context, e *models.OrderEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	query := `
		INSERT INTO shop.order_events (id, order_id, action, status, message)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, e.ID, e.OrderID, e.Action, e.Status, e.Message)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}

// GetByOrderID retrieves events for an order
func (r *EventRepository) GetByOrderID(ctx context.Context, orderID string, limit int) ([]*models.OrderEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, order_id, action, status, message, created_at
		FROM shop.order_events
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("query order events: %w", err)
	}
	defer rows.Close()

	var events []*models.OrderEvent
	for rows.Next() {
		e := &models.OrderEvent{}
		err := rows.Scan(&e.ID, &e.OrderID, &e.Action, &e.Status, &e.Message, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LogAction is a helper to log an action for an order
func (r *EventRepository) LogAction(ctx context.Context, orderID, action, status, message string) error {
	return r.Create(ctx, &models.OrderEvent{
		OrderID: orderID,
		Action:  action,
		Status:  status,
		Message: message,
	})
}
