package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/workbook-assignment/internal/database"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// Store owns the database handle and runs transactions with a bounded
// duration.  Repositories are created from it so they share the dialect.
type Store struct {
	db      *sql.DB
	dialect database.Dialect
	timeout time.Duration
}

// NewStore wraps db.  A non-positive timeout disables the per-transaction
// deadline.
func NewStore(db *sql.DB, dialect database.Dialect, timeout time.Duration) *Store {
	return &Store{db: db, dialect: dialect, timeout: timeout}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Templates returns a TemplateRepo bound to this store.
func (s *Store) Templates() *TemplateRepo { return NewTemplateRepo(s.db) }

// Users returns a UserRepo bound to this store.
func (s *Store) Users() *UserRepo { return NewUserRepo(s.db, s.dialect) }

// Instances returns an InstanceRepo bound to this store.
func (s *Store) Instances() *InstanceRepo { return NewInstanceRepo(s.db, s.dialect) }

// WithTimeout bounds a call made on the pool outside WithTx by the same
// per-transaction deadline.
func (s *Store) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// WithTx runs fn inside a transaction.  The transaction is committed when
// fn returns nil and rolled back otherwise, including when the deadline
// expires before commit.  fn must use tx (never the pool) for every
// statement.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// forUpdate returns the row-lock suffix for SELECTs inside a transaction.
// SQLite has no row locks; its BEGIN IMMEDIATE transactions already
// serialise writers.
func forUpdate(d database.Dialect) string {
	if d == database.MySQL {
		return " FOR UPDATE"
	}
	return ""
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
