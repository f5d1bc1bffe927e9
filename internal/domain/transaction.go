package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TxTransfer  = "transfer"
	TxPurchase  = "purchase"
	TxIncentive = "incentive"
)

// Transaction is one completed credit movement. Rows are never updated or deleted.
// FromAccountID is nil for incentive grants.
type Transaction struct {
	TxID             uuid.UUID       `gorm:"column:tx_id;type:uuid;primaryKey" json:"tx_id"`
	Type             string          `gorm:"column:type;type:varchar(20);not null" json:"type"`
	FromAccountID    *uuid.UUID      `gorm:"column:from_account_id;type:uuid;index" json:"from_account_id"`
	ToAccountID      uuid.UUID       `gorm:"column:to_account_id;type:uuid;not null;index" json:"to_account_id"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(20,4);not null" json:"amount"`
	Description      string          `gorm:"column:description" json:"description"`
	RelatedListingID *uuid.UUID      `gorm:"column:related_listing_id;type:uuid" json:"related_listing_id"`
	CreatedAt        time.Time       `gorm:"column:createdAt;index" json:"createdAt"`
}

func (Transaction) TableName() string {
	return "Transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.TxID == uuid.Nil {
		t.TxID = uuid.New()
	}
	return nil
}
