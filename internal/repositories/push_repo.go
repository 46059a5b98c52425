package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oldrefery/summit-backend-sub001/internal/database"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

// PushTokenRepository stores registered device tokens
type PushTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPushTokenRepository(db *database.DB) *PushTokenRepository {
	return &PushTokenRepository{pool: db.Pool}
}

// Upsert registers a token or refreshes its last_seen_at
func (r *PushTokenRepository) Upsert(ctx context.Context, token, platform string) (*models.PushToken, error) {
	query := `
		INSERT INTO push_tokens (token, platform, created_at, last_seen_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (token) DO UPDATE SET platform = EXCLUDED.platform, last_seen_at = NOW()
		RETURNING token, platform, created_at, last_seen_at
	`

	var t models.PushToken
	err := r.pool.QueryRow(ctx, query, token, platform).Scan(&t.Token, &t.Platform, &t.CreatedAt, &t.LastSeenAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &t, nil
}

func (r *PushTokenRepository) Delete(ctx context.Context, token string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM push_tokens WHERE token = $1`, token)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListTokens returns every registered token string
func (r *PushTokenRepository) ListTokens(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT token FROM push_tokens ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query push tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// NotificationRepository stores the send history
type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{pool: db.Pool}
}

func (r *NotificationRepository) Create(ctx context.Context, rec *models.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.FailedTokens == nil {
		rec.FailedTokens = []string{}
	}

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}
	if rec.Data == nil {
		data = []byte(`{}`)
	}
	failed, err := json.Marshal(rec.FailedTokens)
	if err != nil {
		return fmt.Errorf("failed to encode failed tokens: %w", err)
	}

	query := `
		INSERT INTO notification_history (id, title, body, data, sent_at, success_count, failure_count, failed_tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.Title, rec.Body, data, rec.SentAt, rec.SuccessCount, rec.FailureCount, failed,
	)
	return database.MapPostgresError(err)
}

// List returns the most recent notifications first
func (r *NotificationRepository) List(ctx context.Context, limit int) ([]*models.NotificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, title, body, data, sent_at, success_count, failure_count, failed_tokens
		FROM notification_history
		ORDER BY sent_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	records := make([]*models.NotificationRecord, 0)
	for rows.Next() {
		var rec models.NotificationRecord
		var data, failed []byte
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Body, &data, &rec.SentAt,
			&rec.SuccessCount, &rec.FailureCount, &failed); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to decode notification data: %w", err)
		}
		if err := json.Unmarshal(failed, &rec.FailedTokens); err != nil {
			return nil, fmt.Errorf("failed to decode failed tokens: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
