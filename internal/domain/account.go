package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the credit balance of one owner. Rows are created lazily on first credit and never deleted.
type Account struct {
	OwnerID   uuid.UUID       `gorm:"column:owner_id;type:uuid;primaryKey" json:"owner_id"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(20,4);not null;default:0;check:chk_accounts_balance,balance >= 0" json:"balance"`
	CreatedAt time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Account) TableName() string {
	return "Accounts"
}
