package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"csx-backend/internal/application/ledger"
	"csx-backend/internal/application/listings"
	"csx-backend/internal/domain"
	"csx-backend/internal/infrastructure/database"
	"csx-backend/internal/infrastructure/locks"
	"csx-backend/internal/infrastructure/metrics"
	"csx-backend/internal/infrastructure/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	DB          *gorm.DB
	Locks       *locks.KeyedLocker
	Notifier    notify.Publisher
	LockTimeout time.Duration
}

// PurchaseResult is returned to the buyer after a completed purchase.
type PurchaseResult struct {
	TransactionID uuid.UUID       `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	SellerName    string          `json:"sellerName"`
	ListingID     uuid.UUID       `json:"listingId"`
	Remaining     decimal.Decimal `json:"remaining"`
	ListingStatus string          `json:"listingStatus"`
}

// Purchase buys amount credits from an active listing. The listing, the seller account and
// the buyer account are all locked before any check, and every write happens in one
// transaction: on any failure nothing changes.
func (s *Service) Purchase(ctx context.Context, buyerID, listingID uuid.UUID, amount decimal.Decimal) (*PurchaseResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	// Seller is immutable on a listing, so an unlocked read is enough to choose the lock keys.
	var target domain.Listing
	if err := s.DB.WithContext(ctx).Select("listing_id", "seller_id").Where("listing_id = ?", listingID).Take(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: listing %s", domain.ErrNotFound, listingID)
		}
		return nil, err
	}
	if target.SellerID == buyerID {
		return nil, fmt.Errorf("%w: cannot buy from your own listing", domain.ErrInvalidArgument)
	}

	keys := []string{locks.ListingKey(listingID), locks.AccountKey(target.SellerID), locks.AccountKey(buyerID)}
	var result PurchaseResult
	err := s.Locks.Do(ctx, keys, func() error {
		return database.InTx(ctx, s.DB, s.LockTimeout, func(tx *gorm.DB) error {
			return s.buyInTx(tx, buyerID, listingID, amount, &result)
		})
	})
	metrics.ObserveLedger("purchase", err)
	if err != nil {
		return nil, err
	}

	metrics.CreditsMoved.WithLabelValues(domain.TxPurchase).Add(amount.InexactFloat64())
	log.Info().Str("tx_id", result.TransactionID.String()).Str("listing_id", listingID.String()).Str("buyer", buyerID.String()).Str("amount", amount.String()).Msg("credits purchased")
	if s.Notifier != nil {
		s.Notifier.Publish(ctx, notify.Event{Type: notify.EventCreditsPurchased, Data: result})
	}
	return &result, nil
}

func (s *Service) buyInTx(tx *gorm.DB, buyerID, listingID uuid.UUID, amount decimal.Decimal, out *PurchaseResult) error {
	var listing domain.Listing
	if err := database.ForUpdate(tx).Where("listing_id = ?", listingID).Take(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: listing %s", domain.ErrNotFound, listingID)
		}
		return err
	}
	accts, err := ledger.LockAccounts(tx, listing.SellerID, buyerID)
	if err != nil {
		return err
	}

	if listing.Status != domain.ListingActive {
		return fmt.Errorf("%w: listing %s is not active", domain.ErrNotFound, listingID)
	}

	if amount.GreaterThan(listing.Amount) {
		return fmt.Errorf("%w: requested %s, listed %s", domain.ErrAmountExceedsListing, amount.String(), listing.Amount.String())
	}
	seller := accts[listing.SellerID]
	if seller == nil || seller.Balance.LessThan(amount) {
		return fmt.Errorf("%w: seller cannot cover %s", domain.ErrInsufficientSellerBalance, amount.String())
	}

	var sellerUser domain.User
	sellerName := ""
	if err := tx.Select("user_id", "full_name").Where("user_id = ?", listing.SellerID).Take(&sellerUser).Error; err == nil {
		sellerName = sellerUser.FullName
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := ledger.Debit(tx, seller, amount); err != nil {
		return err
	}
	if err := ledger.Credit(tx, buyerID, accts[buyerID], amount); err != nil {
		return err
	}

	remaining := listing.Amount.Sub(amount)
	status := domain.ListingActive
	if !remaining.IsPositive() {
		remaining = decimal.Zero
		status = domain.ListingSold
	}
	if err := tx.Model(&listing).Updates(map[string]interface{}{"amount": remaining, "status": status}).Error; err != nil {
		return err
	}

	record := domain.Transaction{
		Type:             domain.TxPurchase,
		FromAccountID:    &listing.SellerID,
		ToAccountID:      buyerID,
		Amount:           amount,
		Description:      "Credit purchase from " + sellerName,
		RelatedListingID: &listing.ListingID,
	}
	if err := tx.Create(&record).Error; err != nil {
		return err
	}

	eventType := domain.ListingEventPurchased
	if status == domain.ListingSold {
		eventType = domain.ListingEventSold
	}
	if err := listings.RecordEvent(tx, listing.ListingID, eventType, buyerID, map[string]interface{}{
		"amount":    amount,
		"remaining": remaining,
		"tx_id":     record.TxID,
	}); err != nil {
		return err
	}

	*out = PurchaseResult{
		TransactionID: record.TxID,
		Amount:        amount,
		SellerName:    sellerName,
		ListingID:     listing.ListingID,
		Remaining:     remaining,
		ListingStatus: status,
	}
	return nil
}
