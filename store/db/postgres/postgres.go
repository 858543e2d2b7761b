package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/usememos/supportbot/internal/profile"
	"github.com/usememos/supportbot/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// Open the PostgreSQL connection
	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		slog.Error("failed to open database", slog.String("error", err.Error()))
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	var driver store.Driver = &DB{
		db:      db,
		profile: profile,
	}

	// Return the DB struct
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS customer (
			id             SERIAL PRIMARY KEY,
			name           TEXT    NOT NULL,
			email          TEXT    NOT NULL UNIQUE,
			plan           TEXT    NOT NULL DEFAULT 'FREE',
			company_name   TEXT    NOT NULL DEFAULT '',
			created_ts     BIGINT  NOT NULL,
			last_active_ts BIGINT  NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ticket (
			id          SERIAL PRIMARY KEY,
			uid         TEXT    NOT NULL UNIQUE,
			customer_id INTEGER NOT NULL,
			subject     TEXT    NOT NULL,
			description TEXT    NOT NULL DEFAULT '',
			status      TEXT    NOT NULL DEFAULT 'OPEN',
			priority    TEXT    NOT NULL DEFAULT 'MEDIUM',
			category    TEXT    NOT NULL DEFAULT '',
			escalated   BOOLEAN NOT NULL DEFAULT FALSE,
			created_ts  BIGINT  NOT NULL,
			updated_ts  BIGINT  NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_customer ON ticket(customer_id)`,
		`CREATE TABLE IF NOT EXISTS conversation_message (
			id              SERIAL PRIMARY KEY,
			conversation_id TEXT    NOT NULL,
			role            TEXT    NOT NULL,
			content         TEXT    NOT NULL,
			created_ts      BIGINT  NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_message_conversation ON conversation_message(conversation_id, id)`,
		`CREATE TABLE IF NOT EXISTS conversation_session (
			id              SERIAL PRIMARY KEY,
			conversation_id TEXT    NOT NULL UNIQUE,
			customer_id     INTEGER NOT NULL DEFAULT 0,
			last_sentiment  TEXT    NOT NULL DEFAULT '',
			message_count   INTEGER NOT NULL DEFAULT 0,
			ticket_uid      TEXT    NOT NULL DEFAULT '',
			ended           BOOLEAN NOT NULL DEFAULT FALSE,
			created_ts      BIGINT  NOT NULL,
			updated_ts      BIGINT  NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return errors.Wrap(err, "failed to migrate")
		}
	}
	return nil
}
