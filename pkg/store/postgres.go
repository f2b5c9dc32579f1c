package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"

	"github.com/holo-host/hpos-core/pkg/hostcoreerr"
	"github.com/holo-host/hpos-core/pkg/log"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DB wraps a sqlx connection with a circuit breaker around query
// execution, so repeated transient database failures (§7's Database
// error taxonomy entry) open the breaker instead of piling up retries
// against a database that is already down.
type DB struct {
	sqlx    *sqlx.DB
	breaker *gobreaker.CircuitBreaker
}

// Open connects to dsn, verifies reachability, and wraps the connection
// in a circuit breaker.
func Open(dsn string) (*DB, error) {
	conn, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, hostcoreerr.New(hostcoreerr.Database, fmt.Errorf("store: opening database: %w", err))
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, hostcoreerr.New(hostcoreerr.Database, fmt.Errorf("store: pinging database: %w", err))
	}

	settings := gobreaker.Settings{
		Name:        "store.postgres",
		MaxRequests: 3,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(fmt.Sprintf("circuit breaker %s state changed: %s -> %s", name, from.String(), to.String()))
		},
	}

	return &DB{sqlx: conn, breaker: gobreaker.NewCircuitBreaker(settings)}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.sqlx.Close()
}

// Migrate applies every pending embedded migration.
func (d *DB) Migrate() error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: loading embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(d.sqlx.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("store: building migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("store: building migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: applying migrations: %w", err)
	}
	return nil
}

// withBreaker runs fn through the circuit breaker and classifies
// whatever it returns as a Database error (§7's taxonomy entry for this
// package), unless fn already returned one of its own.
func (d *DB) withBreaker(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if err == nil {
		return nil
	}
	if _, ok := hostcoreerr.As(err); ok {
		return err
	}
	return hostcoreerr.New(hostcoreerr.Database, err)
}

var errNotFound = errors.New("store: not found")

// ErrNotFound is returned by lookups that find no matching row.
func ErrNotFound() error { return errNotFound }

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
