// Package testdb opens migrated in-memory SQLite databases for package tests.
package testdb

import (
	"testing"

	"csx-backend/internal/domain"
	"csx-backend/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh migrated database. A single connection keeps ":memory:" shared
// across goroutines and serializes writers the way row locks would.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// User inserts a user with the given role.
func User(t *testing.T, db *gorm.DB, name, role string) domain.User {
	t.Helper()
	u := domain.User{FullName: name, Email: uuid.NewString() + "@example.test", Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// Fund sets the owner's balance, creating the account if needed.
func Fund(t *testing.T, db *gorm.DB, owner uuid.UUID, balance int64) {
	t.Helper()
	acct := domain.Account{OwnerID: owner, Balance: decimal.NewFromInt(balance)}
	require.NoError(t, db.Save(&acct).Error)
}

// Balance reads the stored balance, zero when the account does not exist.
func Balance(t *testing.T, db *gorm.DB, owner uuid.UUID) decimal.Decimal {
	t.Helper()
	var acct domain.Account
	err := db.Where("owner_id = ?", owner).Take(&acct).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero
	}
	require.NoError(t, err)
	return acct.Balance
}

// Company inserts a company owned by owner.
func Company(t *testing.T, db *gorm.DB, owner uuid.UUID, name string) domain.Company {
	t.Helper()
	c := domain.Company{OwnerUserID: owner, CompanyName: name, RegistrationNumber: "REG-" + uuid.NewString()[:8], Industry: "Manufacturing"}
	require.NoError(t, db.Create(&c).Error)
	return c
}

// Count returns the number of rows in model's table.
func Count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
