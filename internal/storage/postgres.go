package storage

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
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresStore keeps entries in a shared postgres database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("storage: postgres DSN must be provided")
	}

	db, err := connectDB(ctx, dsn, maxOpenConns, maxIdleConns, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("storage: connect postgres: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func connectDB(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int, maxIdleTime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	db.SetConnMaxIdleTime(maxIdleTime)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM kv_entries
		WHERE name = $1`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrNotFound
		default:
			return nil, err
		}
	}

	return value, nil
}

func (s *PostgresStore) Put(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO kv_entries (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()`

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, query, e.Key, e.Value); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	query := `
		DELETE FROM kv_entries
		WHERE name = ANY($1)`

	_, err := s.db.ExecContext(ctx, query, pq.Array(keys))
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
