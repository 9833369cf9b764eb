package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the notification log table.
// There is no migration tool; statements are idempotent and run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`create table if not exists notification_log (
			id text primary key,
			user_id text not null,
			device_id text not null,
			title text not null,
			body text not null,
			data jsonb not null default '{}'::jsonb,
			type text not null default 'general',
			platform text not null default '',
			created_at timestamptz not null default now()
		);`,
		`create index if not exists notification_log_user_created_idx on notification_log(user_id, created_at desc);`,
	}

	for i, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
