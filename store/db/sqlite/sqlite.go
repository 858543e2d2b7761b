package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/usememos/supportbot/internal/profile"
	"github.com/usememos/supportbot/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database specified by its database driver name and a
// driver-specific data source name, usually consisting of at least a
// database name and connection information.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Connect to the database with some sane settings:
	// - No shared-cache: it's obsolete; WAL journal mode is a better solution.
	// - No foreign key constraints: tickets and sessions reference customers by id only.
	// - Journal mode set to WAL: it's the recommended journal mode for most applications
	//   as it prevents locking issues.
	// - busy_timeout lets concurrent writers wait instead of failing with SQLITE_BUSY.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_loc=auto&_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	driver := DB{db: sqliteDB, profile: profile}
	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS customer (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			name           TEXT    NOT NULL,
			email          TEXT    NOT NULL UNIQUE,
			plan           TEXT    NOT NULL DEFAULT 'FREE',
			company_name   TEXT    NOT NULL DEFAULT '',
			created_ts     BIGINT  NOT NULL,
			last_active_ts BIGINT  NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ticket (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			uid         TEXT    NOT NULL UNIQUE,
			customer_id INTEGER NOT NULL,
			subject     TEXT    NOT NULL,
			description TEXT    NOT NULL DEFAULT '',
			status      TEXT    NOT NULL DEFAULT 'OPEN',
			priority    TEXT    NOT NULL DEFAULT 'MEDIUM',
			category    TEXT    NOT NULL DEFAULT '',
			escalated   INTEGER NOT NULL DEFAULT 0,
			created_ts  BIGINT  NOT NULL,
			updated_ts  BIGINT  NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_customer ON ticket(customer_id)`,
		`CREATE TABLE IF NOT EXISTS conversation_message (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT    NOT NULL,
			role            TEXT    NOT NULL,
			content         TEXT    NOT NULL,
			created_ts      BIGINT  NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_message_conversation ON conversation_message(conversation_id, id)`,
		`CREATE TABLE IF NOT EXISTS conversation_session (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT    NOT NULL UNIQUE,
			customer_id     INTEGER NOT NULL DEFAULT 0,
			last_sentiment  TEXT    NOT NULL DEFAULT '',
			message_count   INTEGER NOT NULL DEFAULT 0,
			ticket_uid      TEXT    NOT NULL DEFAULT '',
			ended           INTEGER NOT NULL DEFAULT 0,
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
