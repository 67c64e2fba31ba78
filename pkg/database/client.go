// Package database provides the PostgreSQL connection and migration
// utilities the agent runtime's store is built on. No generated Ent
// client package travelled with this module, so Client here wraps a
// plain *sql.DB (pgx stdlib driver) and pkg/store talks to it directly
// via pgx/v5; entgo.io/ent is still exercised, but only as the
// schema-builder documentation under ent/schema, not as a generated
// runtime client.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds database connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN renders cfg as a libpq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Client wraps the pooled *sql.DB connection migrations run against.
// pkg/store opens its own pgxpool.Pool against the same DSN for query
// execution; Client's job is connect-and-migrate, not querying.
type Client struct {
	db *sql.DB
}

// DB returns the underlying connection for health checks.
func (c *Client) DB() *sql.DB { return c.db }

// Close closes the underlying connection pool.
func (c *Client) Close() error { return c.db.Close() }

// NewClient opens a connection pool, applies pending migrations, and
// returns a ready Client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Client{db: db}, nil
}

func runMigrations(db *sql.DB, databaseName string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found, binary built incorrectly")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Do not call m.Close(): it would close db via the shared postgres
	// driver, and db is owned by Client for the rest of its lifetime.
	return sourceDriver.Close()
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read embedded migrations: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && len(e.Name()) > 4 && e.Name()[len(e.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
