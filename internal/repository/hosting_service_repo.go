package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
)

type HostingServiceRepository struct {
	pool *pgxpool.Pool
}

func NewHostingServiceRepository(pool *pgxpool.Pool) *HostingServiceRepository {
	return &HostingServiceRepository{pool: pool}
}

const hostingServiceColumns = `
	id, order_id, hestia_username, hestia_domain, package_name,
	hestia_created, hestia_error, ssl_warning, saga_state, status,
	panel_url, credentials_enc, activated_at, expires_at,
	created_at, updated_at
`

// Create inserts the record behind an order. order_id carries a unique
// constraint and the insert is a no-op on conflict, so two concurrent
// first provisioning triggers can both call this and exactly one row
// survives; callers re-read by order id afterwards.
func (r *HostingServiceRepository) Create(ctx context.Context, hs *models.HostingService) error {
	query := `
		INSERT INTO shop.hosting_services (
			id, order_id, hestia_username, hestia_domain, package_name,
			hestia_created, hestia_error, ssl_warning, saga_state, status,
			panel_url, credentials_enc, activated_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14
		)
		ON CONFLICT (order_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		hs.ID, hs.OrderID, hs.HestiaUsername, hs.HestiaDomain, hs.PackageName,
		hs.HestiaCreated, hs.HestiaError, hs.SSLWarning, hs.SagaState, hs.Status,
		hs.PanelURL, hs.CredentialsEnc, hs.ActivatedAt, hs.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert hosting_service: %w", err)
	}
	return nil
}

func (r *HostingServiceRepository) GetByID(ctx context.Context, id string) (*models.HostingService, error) {
	query := `SELECT ` + hostingServiceColumns + ` FROM shop.hosting_services WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *HostingServiceRepository) GetByOrderID(ctx context.Context, orderID string) (*models.HostingService, error) {
	query := `SELECT ` + hostingServiceColumns + ` FROM shop.hosting_services WHERE order_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, orderID))
}

func (r *HostingServiceRepository) Update(ctx context.Context, hs *models.HostingService) error {
	query := `
		UPDATE shop.hosting_services SET
			hestia_username = $1,
			hestia_domain = $2,
			package_name = $3,
			hestia_created = $4,
			hestia_error = $5,
			ssl_warning = $6,
			saga_state = $7,
			status = $8,
			panel_url = $9,
			credentials_enc = $10,
			activated_at = $11,
			expires_at = $12,
			updated_at = NOW()
		WHERE id = $13
	`
	_, err := r.pool.Exec(ctx, query,
		hs.HestiaUsername, hs.HestiaDomain, hs.PackageName,
		hs.HestiaCreated, hs.HestiaError, hs.SSLWarning, hs.SagaState, hs.Status,
		hs.PanelURL, hs.CredentialsEnc, hs.ActivatedAt, hs.ExpiresAt, hs.ID,
	)
	if err != nil {
		return fmt.Errorf("update hosting_service: %w", err)
	}
	return nil
}

// CasSagaState performs the conditional state transition that guards the
// saga: the row moves from -> to only if it is still at from. The caller
// that sees false lost the race and must not perform side effects.
func (r *HostingServiceRepository) CasSagaState(ctx context.Context, id, from, to string) (bool, error) {
	query := `
		UPDATE shop.hosting_services
		SET saga_state = $1, updated_at = NOW()
		WHERE id = $2 AND saga_state = $3
	`
	tag, err := r.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("cas saga_state: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListFailed returns services whose last provisioning attempt failed,
// for operator follow-up
func (r *HostingServiceRepository) ListFailed(ctx context.Context, limit int) ([]*models.HostingService, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + hostingServiceColumns + `
		FROM shop.hosting_services
		WHERE saga_state IN ($1, $2) OR hestia_error IS NOT NULL
		ORDER BY updated_at DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, models.SagaUserCreateFailed, models.SagaRolledBack, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed hosting_services: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *HostingServiceRepository) scanOne(row pgx.Row) (*models.HostingService, error) {
	hs := &models.HostingService{}
	err := row.Scan(
		&hs.ID, &hs.OrderID, &hs.HestiaUsername, &hs.HestiaDomain, &hs.PackageName,
		&hs.HestiaCreated, &hs.HestiaError, &hs.SSLWarning, &hs.SagaState, &hs.Status,
		&hs.PanelURL, &hs.CredentialsEnc, &hs.ActivatedAt, &hs.ExpiresAt,
		&hs.CreatedAt, &hs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan hosting_service: %w", err)
	}
	return hs, nil
}

func (r *HostingServiceRepository) scanMany(rows pgx.Rows) ([]*models.HostingService, error) {
	var results []*models.HostingService
	for rows.Next() {
		hs := &models.HostingService{}
		err := rows.Scan(
			&hs.ID, &hs.OrderID, &hs.HestiaUsername, &hs.HestiaDomain, &hs.PackageName,
			&hs.HestiaCreated, &hs.HestiaError, &hs.SSLWarning, &hs.SagaState, &hs.Status,
			&hs.PanelURL, &hs.CredentialsEnc, &hs.ActivatedAt, &hs.ExpiresAt,
			&hs.CreatedAt, &hs.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan hosting_service row: %w", err)
		}
		results = append(results, hs)
	}
	return results, rows.Err()
}
