package mysql

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/usememos/supportbot/internal/profile"
	"github.com/usememos/supportbot/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
	config  *mysql.Config
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Open MySQL connection with parameter.
	// multiStatements=true is required for migration.
	// See more in: https://github.com/go-sql-driver/mysql#multistatements
	dsn, err := mergeDSN(profile.DSN)
	if err != nil {
		return nil, err
	}

	driver := DB{profile: profile}
	driver.config, err = mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse DSN")
	}

	driver.db, err = sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db: %s", profile.DSN)
	}
	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func mergeDSN(baseDSN string) (string, error) {
	config, err := mysql.ParseDSN(baseDSN)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse DSN: %s", baseDSN)
	}

	config.MultiStatements = true
	return config.FormatDSN(), nil
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS `customer` (" +
			"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`name` VARCHAR(256) NOT NULL," +
			"`email` VARCHAR(256) NOT NULL UNIQUE," +
			"`plan` VARCHAR(32) NOT NULL DEFAULT 'FREE'," +
			"`company_name` VARCHAR(256) NOT NULL DEFAULT ''," +
			"`created_ts` BIGINT NOT NULL," +
			"`last_active_ts` BIGINT NOT NULL DEFAULT 0" +
			")",
		"CREATE TABLE IF NOT EXISTS `ticket` (" +
			"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`uid` VARCHAR(256) NOT NULL UNIQUE," +
			"`customer_id` INT NOT NULL," +
			"`subject` TEXT NOT NULL," +
			"`description` TEXT NOT NULL," +
			"`status` VARCHAR(32) NOT NULL DEFAULT 'OPEN'," +
			"`priority` VARCHAR(32) NOT NULL DEFAULT 'MEDIUM'," +
			"`category` VARCHAR(64) NOT NULL DEFAULT ''," +
			"`escalated` BOOLEAN NOT NULL DEFAULT FALSE," +
			"`created_ts` BIGINT NOT NULL," +
			"`updated_ts` BIGINT NOT NULL," +
			"INDEX `idx_ticket_customer` (`customer_id`)" +
			")",
		"CREATE TABLE IF NOT EXISTS `conversation_message` (" +
			"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`conversation_id` VARCHAR(256) NOT NULL," +
			"`role` VARCHAR(32) NOT NULL," +
			"`content` TEXT NOT NULL," +
			"`created_ts` BIGINT NOT NULL," +
			"INDEX `idx_conversation_message_conversation` (`conversation_id`, `id`)" +
			")",
		"CREATE TABLE IF NOT EXISTS `conversation_session` (" +
			"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`conversation_id` VARCHAR(256) NOT NULL UNIQUE," +
			"`customer_id` INT NOT NULL DEFAULT 0," +
			"`last_sentiment` VARCHAR(32) NOT NULL DEFAULT ''," +
			"`message_count` INT NOT NULL DEFAULT 0," +
			"`ticket_uid` VARCHAR(256) NOT NULL DEFAULT ''," +
			"`ended` BOOLEAN NOT NULL DEFAULT FALSE," +
			"`created_ts` BIGINT NOT NULL," +
			"`updated_ts` BIGINT NOT NULL" +
			")",
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return errors.Wrap(err, "failed to migrate")
		}
	}
	return nil
}
