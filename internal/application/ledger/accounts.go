package ledger

import (
	"errors"
	"sort"

	"csx-backend/internal/domain"
	"csx-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LockAccounts reads the given accounts FOR UPDATE in ascending id order. Missing accounts
// are absent from the result. Must run inside a transaction.
func LockAccounts(tx *gorm.DB, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	ordered := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })

	out := make(map[uuid.UUID]*domain.Account, len(ordered))
	for _, id := range ordered {
		var acct domain.Account
		err := database.ForUpdate(tx).Where("owner_id = ?", id).Take(&acct).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = &acct
	}
	return out, nil
}

// Debit lowers a locked account's balance. The caller has already checked funds.
func Debit(tx *gorm.DB, acct *domain.Account, amount decimal.Decimal) error {
	acct.Balance = acct.Balance.Sub(amount)
	return tx.Model(acct).Update("balance", acct.Balance).Error
}

// Credit raises the balance of owner, creating the account when acct is nil.
func Credit(tx *gorm.DB, owner uuid.UUID, acct *domain.Account, amount decimal.Decimal) error {
	if acct == nil {
		return tx.Create(&domain.Account{OwnerID: owner, Balance: amount}).Error
	}
	acct.Balance = acct.Balance.Add(amount)
	return tx.Model(acct).Update("balance", acct.Balance).Error
}

func balanceOf(acct *domain.Account) decimal.Decimal {
	if acct == nil {
		return decimal.Zero
	}
	return acct.Balance
}
