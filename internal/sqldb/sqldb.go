// Package sqldb is a thin query helper over a Postgres pool.
// Queries are written with "?" placeholders and rebound for the driver.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const driver = "postgres"

type DB struct {
	db *sqlx.DB
}

// Open connects to dsn and verifies the connection
func Open(ctx context.Context, dsn string) (*DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Debug("Database connection established")
	return New(db), nil
}

// New wraps an already opened pool
func New(db *sqlx.DB) *DB {
	return &DB{db: db}
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Execute runs a statement in its own transaction and returns the affected row count.
// The transaction is rolled back on failure.
func (d *DB) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logrus.Warnf("Rollback failed: %v", rbErr)
		}
		return 0, fmt.Errorf("execute: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return res.RowsAffected()
}

// ExecuteNamed is Execute with :name parameters bound from a struct or map
func (d *DB) ExecuteNamed(ctx context.Context, query string, arg any) (int64, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return 0, err
	}
	return d.Execute(ctx, q, args...)
}

// Select streams rows to fn as column maps. Returning an error from fn stops the iteration.
func (d *DB) Select(ctx context.Context, query string, args []any, fn func(map[string]any) error) error {
	rows, err := d.db.QueryxContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// One scans the first row into a T. It reports false when there is none.
func One[T any](ctx context.Context, d *DB, query string, args ...any) (T, bool, error) {
	var dest T
	err := d.db.GetContext(ctx, &dest, d.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return dest, false, nil
	}
	if err != nil {
		return dest, false, err
	}
	return dest, true, nil
}

// All scans every row into a []T
func All[T any](ctx context.Context, d *DB, query string, args ...any) ([]T, error) {
	var dest []T
	if err := d.db.SelectContext(ctx, &dest, d.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return dest, nil
}

// Count returns the number of rows query would produce
func (d *DB) Count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := d.db.GetContext(ctx, &n, d.db.Rebind(countQuery(query)), args...); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func countQuery(query string) string {
	q := strings.TrimRight(strings.TrimSpace(query), ";")
	return "SELECT COUNT(*) FROM (" + q + ") AS sub"
}
