package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const workoutsSchema = `
CREATE TABLE IF NOT EXISTS workout (
	id         SERIAL PRIMARY KEY,
	draft_id   UUID NOT NULL UNIQUE,
	date       TIMESTAMPTZ NOT NULL,
	duration   INTEGER NOT NULL DEFAULT 0,
	exercises  JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS workout_date_idx ON workout (date DESC);
`

// EnsureSchema creates the tables used by the service if they are missing.
func EnsureSchema(ctx context.Context, db execer) error {
	if _, err := db.Exec(ctx, workoutsSchema); err != nil {
		return fmt.Errorf("ensure workout schema: %w", err)
	}
	return nil
}
