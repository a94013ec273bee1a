package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found in database")

type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Connect opens and pings a database. SQLite is pinned to a single
// connection so an in-memory database survives between queries.
func Connect(ctx context.Context, driverName, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if driverName == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return db, nil
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	return db, nil
}

var schemas = map[string]string{
	"postgres": `CREATE TABLE IF NOT EXISTS tasks (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('TODO', 'IN_PROGRESS', 'DONE'))
)`,
	"sqlite3": `CREATE TABLE IF NOT EXISTS tasks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  description TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('TODO', 'IN_PROGRESS', 'DONE'))
)`,
}

// Migrate creates the tasks table for the given driver if it is missing.
func Migrate(ctx context.Context, db *sql.DB, driverName string) error {
	ddl, ok := schemas[driverName]
	if !ok {
		return fmt.Errorf("no schema for driver %q", driverName)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}
	return nil
}
