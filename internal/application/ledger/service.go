package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"csx-backend/internal/domain"
	"csx-backend/internal/infrastructure/database"
	"csx-backend/internal/infrastructure/locks"
	"csx-backend/internal/infrastructure/metrics"
	"csx-backend/internal/infrastructure/notify"
	"csx-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultTransferDescription = "Credit transfer"
	defaultGrantDescription    = "Government incentive"
	historyLimit               = 100
)

type Service struct {
	DB          *gorm.DB
	Locks       *locks.KeyedLocker
	Notifier    notify.Publisher
	LockTimeout time.Duration
}

// GetBalance returns the owner's balance, zero if the account was never credited.
func (s *Service) GetBalance(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	var acct domain.Account
	err := s.DB.WithContext(ctx).Where("owner_id = ?", owner).Take(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Balance, nil
}

// Transfer moves amount from one account to another and records one transfer Transaction.
func (s *Service) Transfer(ctx context.Context, from, to uuid.UUID, amount decimal.Decimal, description string) (*domain.Transaction, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if from == uuid.Nil || to == uuid.Nil {
		return nil, fmt.Errorf("%w: sender and recipient are required", domain.ErrInvalidArgument)
	}
	if from == to {
		return nil, fmt.Errorf("%w: cannot transfer to the same account", domain.ErrInvalidArgument)
	}
	if description == "" {
		description = defaultTransferDescription
	}

	var record domain.Transaction
	err := s.Locks.Do(ctx, []string{locks.AccountKey(from), locks.AccountKey(to)}, func() error {
		return database.InTx(ctx, s.DB, s.LockTimeout, func(tx *gorm.DB) error {
			if err := requireUser(tx, to); err != nil {
				return err
			}
			accts, err := LockAccounts(tx, from, to)
			if err != nil {
				return err
			}
			sender := accts[from]
			if balanceOf(sender).LessThan(amount) {
				return fmt.Errorf("%w: available %s, requested %s", domain.ErrInsufficientBalance, balanceOf(sender).String(), amount.String())
			}
			if err := Debit(tx, sender, amount); err != nil {
				return err
			}
			if err := Credit(tx, to, accts[to], amount); err != nil {
				return err
			}
			record = domain.Transaction{
				Type:          domain.TxTransfer,
				FromAccountID: &from,
				ToAccountID:   to,
				Amount:        amount,
				Description:   description,
			}
			return tx.Create(&record).Error
		})
	})
	metrics.ObserveLedger("transfer", err)
	if err != nil {
		return nil, err
	}
	metrics.CreditsMoved.WithLabelValues(domain.TxTransfer).Add(amount.InexactFloat64())
	log.Info().Str("tx_id", record.TxID.String()).Str("from", from.String()).Str("to", to.String()).Str("amount", amount.String()).Msg("credits transferred")
	s.publish(ctx, notify.Event{Type: notify.EventCreditsTransferred, Data: record})
	return &record, nil
}

// Grant credits an account from outside the ledger (government incentive). The Transaction has no sender.
func (s *Service) Grant(ctx context.Context, to uuid.UUID, amount decimal.Decimal, description string) (*domain.Transaction, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if to == uuid.Nil {
		return nil, fmt.Errorf("%w: recipient is required", domain.ErrInvalidArgument)
	}
	if description == "" {
		description = defaultGrantDescription
	}

	var record domain.Transaction
	err := s.Locks.Do(ctx, []string{locks.AccountKey(to)}, func() error {
		return database.InTx(ctx, s.DB, s.LockTimeout, func(tx *gorm.DB) error {
			if err := requireUser(tx, to); err != nil {
				return err
			}
			accts, err := LockAccounts(tx, to)
			if err != nil {
				return err
			}
			if err := Credit(tx, to, accts[to], amount); err != nil {
				return err
			}
			record = domain.Transaction{
				Type:        domain.TxIncentive,
				ToAccountID: to,
				Amount:      amount,
				Description: description,
			}
			return tx.Create(&record).Error
		})
	})
	metrics.ObserveLedger("incentive", err)
	if err != nil {
		return nil, err
	}
	metrics.CreditsMoved.WithLabelValues(domain.TxIncentive).Add(amount.InexactFloat64())
	s.publish(ctx, notify.Event{Type: notify.EventCreditsGranted, Data: record})
	return &record, nil
}

// requireUser rejects credits to ids with no user behind them; such accounts could never be spent.
func requireUser(tx *gorm.DB, id uuid.UUID) error {
	var n int64
	if err := tx.Model(&domain.User{}).Where("user_id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: recipient %s", domain.ErrNotFound, id)
	}
	return nil
}

// HistoryEntry is a Transaction with the display names of both parties.
type HistoryEntry struct {
	domain.Transaction
	FromName  *string `json:"from_name"`
	ToName    string  `json:"to_name"`
	Direction string  `json:"direction"`
}

// History returns the newest transactions touching owner, newest first.
func (s *Service) History(ctx context.Context, owner uuid.UUID, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	var txs []domain.Transaction
	if err := s.DB.WithContext(ctx).
		Where("from_account_id = ? OR to_account_id = ?", owner, owner).
		Order(`"createdAt" DESC`).
		Limit(limit).
		Find(&txs).Error; err != nil {
		return nil, err
	}

	names, err := UserNames(ctx, s.DB, participants(txs)...)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(txs))
	for _, t := range txs {
		e := HistoryEntry{Transaction: t, ToName: names[t.ToAccountID], Direction: "in"}
		if t.FromAccountID != nil {
			n := names[*t.FromAccountID]
			e.FromName = &n
			if *t.FromAccountID == owner {
				e.Direction = "out"
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Seller is an individual holding credits that can be offered for sale.
type Seller struct {
	SellerID    uuid.UUID       `json:"seller_id"`
	SellerName  string          `json:"seller_name"`
	Amount      decimal.Decimal `json:"amount"`
	MemberSince time.Time       `json:"member_since"`
}

// Marketplace lists individuals with a positive balance, largest holding first.
func (s *Service) Marketplace(ctx context.Context) ([]Seller, error) {
	out := []Seller{}
	err := s.DB.WithContext(ctx).
		Table(`"Accounts" AS a`).
		Select(`a.owner_id AS seller_id, u.full_name AS seller_name, a.balance AS amount, u."createdAt" AS member_since`).
		Joins(`JOIN "Users" AS u ON u.user_id = a.owner_id`).
		Where("u.user_type = ? AND a.balance > 0", constants.Individual).
		Order("a.balance DESC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UserNames resolves user ids to full names. Unknown ids are omitted.
func UserNames(ctx context.Context, db *gorm.DB, ids ...uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []domain.User
	if err := db.WithContext(ctx).Select("user_id", "full_name").Where("user_id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.UserID] = u.FullName
	}
	return out, nil
}

func participants(txs []domain.Transaction) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, t := range txs {
		add(t.ToAccountID)
		if t.FromAccountID != nil {
			add(*t.FromAccountID)
		}
	}
	return ids
}

func (s *Service) publish(ctx context.Context, ev notify.Event) {
	if s.Notifier != nil {
		s.Notifier.Publish(ctx, ev)
	}
}
