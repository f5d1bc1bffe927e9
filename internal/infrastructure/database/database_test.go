package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"csx-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))
	return db
}

// dryRunPostgres builds statements against the postgres dialector without a server.
func dryRunPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 port=1 user=csx dbname=csx sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestTranslateError_PostgresCodes(t *testing.T) {
	cases := map[string]struct {
		code       string
		contention bool
	}{
		"lock not available":    {pgLockNotAvailable, true},
		"deadlock detected":     {pgDeadlockDetected, true},
		"serialization failure": {pgSerializationFailure, true},
		"unique violation":      {pgUniqueViolation, false},
		"check violation":       {"23514", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tc.code, Message: name}
			for _, in := range []error{pgErr, fmt.Errorf("commit: %w", pgErr)} {
				out := TranslateError(in)
				if tc.contention {
					assert.ErrorIs(t, out, domain.ErrContention)
					assert.True(t, domain.IsRetryable(out))
					assert.Contains(t, out.Error(), name)
				} else {
					assert.Same(t, in, out)
					assert.False(t, domain.IsRetryable(out))
				}
			}
		})
	}
}

func TestTranslateError_Passthrough(t *testing.T) {
	assert.NoError(t, TranslateError(nil))

	plain := errors.New("connection reset")
	assert.Same(t, plain, TranslateError(plain))

	locked := TranslateError(errors.New("database is locked (5) (SQLITE_BUSY)"))
	assert.ErrorIs(t, locked, domain.ErrContention)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: pgLockNotAvailable}))

	db := openSQLite(t)
	u := domain.User{FullName: "A", Email: "dup@example.test", Role: "individual"}
	require.NoError(t, db.Create(&u).Error)
	err := db.Create(&domain.User{FullName: "B", Email: "dup@example.test", Role: "individual"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestForUpdate_OnlyOnPostgres(t *testing.T) {
	pg := dryRunPostgres(t)
	stmt := ForUpdate(pg.Model(&domain.Account{})).Where("owner_id = ?", "x").Find(&[]domain.Account{}).Statement
	assert.Contains(t, stmt.SQL.String(), "FOR UPDATE")

	lite := openSQLite(t).Session(&gorm.Session{DryRun: true})
	stmt = ForUpdate(lite.Model(&domain.Account{})).Find(&[]domain.Account{}).Statement
	assert.NotContains(t, stmt.SQL.String(), "FOR UPDATE")
}

func TestSetLockTimeout(t *testing.T) {
	assert.Equal(t, "SET LOCAL lock_timeout = '5000ms'", lockTimeoutSQL(5*time.Second))
	assert.Equal(t, "SET LOCAL lock_timeout = '1ms'", lockTimeoutSQL(200*time.Microsecond))

	pg := dryRunPostgres(t)
	assert.NoError(t, SetLockTimeout(pg, 250*time.Millisecond))
	assert.NoError(t, SetLockTimeout(openSQLite(t), time.Second), "no-op on sqlite")
}

func TestInTx_RollsBackAndTranslates(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	err := InTx(ctx, db, time.Second, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&domain.User{FullName: "Gone", Email: "gone@example.test", Role: "individual"}).Error)
		return &pgconn.PgError{Code: pgDeadlockDetected, Message: "deadlock"}
	})
	assert.ErrorIs(t, err, domain.ErrContention)
	var n int64
	require.NoError(t, db.Model(&domain.User{}).Count(&n).Error)
	assert.Zero(t, n)

	require.NoError(t, InTx(ctx, db, time.Second, func(tx *gorm.DB) error {
		return tx.Create(&domain.User{FullName: "Kept", Email: "kept@example.test", Role: "individual"}).Error
	}))
	require.NoError(t, db.Model(&domain.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
