package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"csx-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Open opens a GORM DB from DSN (Supabase/Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when using connection poolers (e.g. PgBouncer, Supabase, Render).
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
}

// Models lists every table owned by the service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Company{},
		&domain.Account{},
		&domain.Listing{},
		&domain.ListingEvent{},
		&domain.Transaction{},
		&domain.CompanyDataRecord{},
		&domain.CarbonScore{},
		&domain.Certificate{},
		&domain.Tender{},
		&domain.TenderApplication{},
	}
}

// AutoMigrate creates or updates all tables, including the partial unique index on active certificates.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func isPostgres(tx *gorm.DB) bool {
	return tx.Dialector != nil && tx.Dialector.Name() == "postgres"
}

// ForUpdate adds SELECT ... FOR UPDATE on dialects with row locks. SQLite serializes writers itself.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if isPostgres(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// SetLockTimeout bounds row-lock waits for the rest of the current transaction (Postgres only).
func SetLockTimeout(tx *gorm.DB, d time.Duration) error {
	if !isPostgres(tx) || d <= 0 {
		return nil
	}
	return tx.Exec(lockTimeoutSQL(d)).Error
}

func lockTimeoutSQL(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}

// InTx runs fn in a transaction with a bounded row-lock wait and contention-aware error translation.
func InTx(ctx context.Context, db *gorm.DB, lockTimeout time.Duration, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := SetLockTimeout(tx, lockTimeout); err != nil {
			return err
		}
		return fn(tx)
	})
	return TranslateError(err)
}

// Postgres SQLSTATEs that mean "try again".
const (
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"
)

// TranslateError maps lock waits and deadlocks to domain.ErrContention; other errors pass through.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return fmt.Errorf("%w: %s", domain.ErrContention, pgErr.Message)
		}
	}
	if strings.Contains(err.Error(), "database is locked") {
		return fmt.Errorf("%w: %s", domain.ErrContention, err.Error())
	}
	return err
}

// IsUniqueViolation reports a duplicate-key failure from any supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
