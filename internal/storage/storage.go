// Package storage persists clients, technicians and orders through sqlx.
// Queries use "?" placeholders and are rebound for the connected driver.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/internal/domain"
)

// assignLockKey is the advisory lock held while an order is assigned on PostgreSQL.
const assignLockKey = 0x70657374

const codeAttempts = 5

// Store is the SQL-backed technician directory and order store.
type Store struct {
	db     *sqlx.DB
	driver string

	// assignMu serializes load read and order insert inside this process.
	assignMu sync.Mutex

	now     func() time.Time
	newCode func() string
}

// New wraps db. driver must match the name db was opened with.
func New(db *sqlx.DB, driver string) *Store {
	return &Store{
		db:      db,
		driver:  driver,
		now:     func() time.Time { return time.Now().UTC() },
		newCode: newOrderCode,
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

func newOrderCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// insertID runs an INSERT ... RETURNING id statement.
func insertID(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// uniqueViolation reports the violated column for unique constraint errors of
// either driver.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return liteErr.Error(), true
	}
	return "", false
}

func (s *Store) isPostgres() bool { return s.driver == coreconfig.DriverPostgres }
