package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
)

type txContextKey struct{}

// DB wraps sql.DB and implements TransactionManager
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     sqlDB,
		logger: logger,
	}
}

// WithTransaction runs fn inside a transaction carried by the returned context.
// Nested calls join the outer transaction.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := extractTx(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txContextKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func extractTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// Executor returns the transaction bound to ctx, or db when there is none
func Executor(ctx context.Context, db *sql.DB) Execer {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return db
}

// Execer covers both *sql.DB and *sql.Tx
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure.
// When target is non-empty the constraint message must mention it, e.g. a
// column name such as "invoices.invoice_number".
func IsUniqueViolation(err error, target string) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique && sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return false
	}
	return target == "" || strings.Contains(sqliteErr.Error(), target)
}

var _ port.TransactionManager = (*DB)(nil)
