package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"push-relay/internal/domain"
)

// PostgresNotificationLog archives notification records in Postgres.
// It only stores the dispatch history; the device registry stays in memory.
type PostgresNotificationLog struct {
	pool *pgxpool.Pool
}

func NewPostgresNotificationLog(pool *pgxpool.Pool) *PostgresNotificationLog {
	return &PostgresNotificationLog{pool: pool}
}

func (l *PostgresNotificationLog) Name() string { return "postgres-log" }

func (l *PostgresNotificationLog) Deliver(ctx context.Context, records []domain.Notification) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range records {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("encode data for %s: %w", n.ID, err)
		}
		batch.Queue(`
			insert into notification_log(id, user_id, device_id, title, body, data, type, platform, created_at)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			on conflict (id) do nothing
		`, n.ID, n.UserID, n.DeviceID, n.Title, n.Body, data, n.Type, n.Platform, n.Timestamp)
	}

	if err := l.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}
	return nil
}

func (l *PostgresNotificationLog) Recent(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.pool.Query(ctx, `
		select id, user_id, device_id, title, body, data, type, platform, created_at
		from notification_log
		where ($1 = '' or user_id = $1)
		order by created_at desc
		limit $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notification log: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n       domain.Notification
			rawData []byte
			created time.Time
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.DeviceID, &n.Title, &n.Body, &rawData, &n.Type, &n.Platform, &created); err != nil {
			return nil, fmt.Errorf("scan notification log: %w", err)
		}
		if len(rawData) > 0 {
			_ = json.Unmarshal(rawData, &n.Data)
		}
		n.Timestamp = created
		result = append(result, n)
	}
	return result, rows.Err()
}
