package pushtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fittrack/server/internal/common"
	"github.com/fittrack/server/internal/dbx"
	"github.com/fittrack/server/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, token *models.PushToken) (*models.PushToken, error) {
	query := `
		INSERT INTO push_tokens (user_id, token, platform, device_id, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (token) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    platform = EXCLUDED.platform,
		    device_id = EXCLUDED.device_id,
		    is_active = TRUE,
		    updated_at = now()
		RETURNING id, is_active, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		token.UserID, token.Token, token.Platform, token.DeviceID,
	).Scan(&token.ID, &token.IsActive, &token.CreatedAt, &token.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, token, userID string) error {
	query := `
		UPDATE push_tokens SET is_active = FALSE, updated_at = now()
		WHERE token = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, token, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeactivateByToken(ctx context.Context, token string) error {
	query := `UPDATE push_tokens SET is_active = FALSE, updated_at = now() WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.PushToken, error) {
	query := `
		SELECT id, user_id, token, platform, device_id, is_active, created_at, updated_at, last_used_at
		FROM push_tokens
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var tokens []*models.PushToken
	for rows.Next() {
		pt := &models.PushToken{}
		err := rows.Scan(&pt.ID, &pt.UserID, &pt.Token, &pt.Platform, &pt.DeviceID,
			&pt.IsActive, &pt.CreatedAt, &pt.UpdatedAt, &pt.LastUsedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		tokens = append(tokens, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tokens, nil
}

func (r *PostgresRepository) TouchLastUsed(ctx context.Context, token string, at time.Time) error {
	query := `UPDATE push_tokens SET last_used_at = $2 WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, token, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
