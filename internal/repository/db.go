package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lewtec/marcador/internal/region"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens (creating it if needed) the sqlite database at filename and
// brings its schema up to date. ":memory:" opens a private in-memory database.
func Open(filename string) (*sql.DB, error) {
	dsn := "file:" + filename + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("while opening database '%s': %w", filename, err)
	}
	// sqlite allows a single writer; in-memory databases are per connection
	db.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("while loading migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("while preparing migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("while preparing migrations: %w", err)
	}
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("while migrating database: %w", err)
	}
	version, _, _ := m.Version()
	log.Printf("repository: database at schema version %d", version)
	return nil
}

// querier is what repositories need from *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, or directly when q already is one.
func withTx(ctx context.Context, q querier, fn func(q querier) error) error {
	db, ok := q.(*sql.DB)
	if !ok {
		return fn(q)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("while starting transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func encodeResult(results []region.Result) (string, error) {
	if results == nil {
		results = []region.Result{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("while encoding result: %w", err)
	}
	return string(data), nil
}

func decodeResult(data string) ([]region.Result, error) {
	var results []region.Result
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		return nil, fmt.Errorf("while decoding result: %w", err)
	}
	return results, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
