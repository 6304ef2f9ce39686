package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chris/dayplan/internal/telemetry"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS assistant_logs (
    id              BIGSERIAL PRIMARY KEY,
    level           TEXT NOT NULL,
    message         TEXT NOT NULL,
    user_id         TEXT,
    conversation_id TEXT,
    context         JSONB,
    created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS assistant_logs_user_idx ON assistant_logs (user_id, created_at);`

// Postgres writes entries to a shared Postgres database, for deployments
// where several instances log to one place.
type Postgres struct {
	conn *sql.DB
}

// OpenPostgres connects using the pgx driver and creates the table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening log store: %w", err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to log store: %w", err)
	}
	if _, err := conn.ExecContext(ctx, postgresSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating log table: %w", err)
	}
	return &Postgres{conn: conn}, nil
}

func (p *Postgres) Insert(ctx context.Context, e telemetry.Entry) error {
	rec, err := record(e)
	if err != nil {
		return err
	}
	var contextJSON any
	if rec.Context != "" {
		contextJSON = rec.Context
	}
	_, err = p.conn.ExecContext(ctx,
		`INSERT INTO assistant_logs (level, message, user_id, conversation_id, context, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5::jsonb, $6)`,
		rec.Level, rec.Message, rec.UserID, rec.ConversationID, contextJSON, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting log: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.conn.Close()
}
