package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// busyTimeoutMS is how long a writer waits for another connection's write lock.
const busyTimeoutMS = 5000

// dsn builds the connection string for path. Transactions begin IMMEDIATE so a writer
// takes the file's write lock up front and waits on busy_timeout instead of failing on
// a read-to-write upgrade.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open opens the rating database at path and brings its schema up to date.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s (storage.sqlite.path): %w", path, err)
	}
	// A single connection per handle; other handles on the same file queue on the lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	enableWAL(db)
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// enableWAL switches the file to write-ahead logging so readers do not block the writer.
// Some filesystems refuse it; the store still works in rollback-journal mode.
func enableWAL(db *sql.DB) {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL;").Scan(&mode); err != nil {
		log.Warn().Err(err).Msg("sqlite: WAL mode not enabled")
		return
	}
	if mode != "wal" {
		log.Warn().Str("journal_mode", mode).Msg("sqlite: WAL mode not enabled")
	}
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations. `cleanrate migrate` runs it explicitly;
// Open runs it on every start.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("sqlite: goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("sqlite: migrate schema (see `cleanrate migrate`): %w", err)
	}
	return nil
}
