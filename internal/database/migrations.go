package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS calculations (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			initial_amount NUMERIC NOT NULL,
			final_amount NUMERIC NOT NULL,
			currency_code TEXT NOT NULL DEFAULT 'BRL',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS calculation_steps (
			calculation_id UUID NOT NULL REFERENCES calculations(id) ON DELETE CASCADE,
			step_number INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			calculation_details TEXT NOT NULL DEFAULT '',
			result_intermediate NUMERIC NOT NULL,
			result_running_total NUMERIC NOT NULL,
			explanation TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (calculation_id, step_number)
		)`,

		`ALTER TABLE calculations
			ALTER COLUMN initial_amount TYPE NUMERIC,
			ALTER COLUMN final_amount TYPE NUMERIC`,

		`CREATE INDEX IF NOT EXISTS idx_calculations_user_created
			ON calculations(user_id, created_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
