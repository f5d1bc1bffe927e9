package listings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"csx-backend/internal/application/ledger"
	"csx-backend/internal/domain"
	"csx-backend/internal/infrastructure/database"
	"csx-backend/internal/infrastructure/locks"
	"csx-backend/internal/infrastructure/metrics"
	"csx-backend/internal/infrastructure/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultPricePerUnit applies when a listing is created without a price.
var DefaultPricePerUnit = decimal.NewFromInt(1)

type Service struct {
	DB          *gorm.DB
	Locks       *locks.KeyedLocker
	Notifier    notify.Publisher
	LockTimeout time.Duration
}

// ListingView is a listing with the seller's display name.
type ListingView struct {
	domain.Listing
	SellerName string `json:"seller_name"`
}

// CreateListing offers amount credits for sale. The seller's balance minus credits already
// listed must cover amount. No hold is placed; purchases re-check the seller's balance.
func (s *Service) CreateListing(ctx context.Context, sellerID uuid.UUID, amount decimal.Decimal, pricePerUnit *decimal.Decimal) (*domain.Listing, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	price := DefaultPricePerUnit
	if pricePerUnit != nil {
		price = *pricePerUnit
	}
	if err := domain.ValidatePrice(price); err != nil {
		return nil, err
	}

	listing := &domain.Listing{SellerID: sellerID, Amount: amount, PricePerUnit: price, Status: domain.ListingActive}
	// The seller lock keeps two concurrent creations from both passing the availability check.
	err := s.Locks.Do(ctx, []string{locks.AccountKey(sellerID)}, func() error {
		return database.InTx(ctx, s.DB, s.LockTimeout, func(tx *gorm.DB) error {
			accts, err := ledger.LockAccounts(tx, sellerID)
			if err != nil {
				return err
			}
			balance := decimal.Zero
			if a := accts[sellerID]; a != nil {
				balance = a.Balance
			}
			listed, err := activeTotal(tx, sellerID)
			if err != nil {
				return err
			}
			available := balance.Sub(listed)
			if available.LessThan(amount) {
				return fmt.Errorf("%w: available %s, requested %s", domain.ErrInsufficientAvailableBalance, available.String(), amount.String())
			}
			if err := tx.Create(listing).Error; err != nil {
				return err
			}
			return RecordEvent(tx, listing.ListingID, domain.ListingEventCreated, sellerID, map[string]interface{}{
				"amount":         listing.Amount,
				"price_per_unit": listing.PricePerUnit,
			})
		})
	})
	metrics.ObserveLedger("listing_create", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.Event{Type: notify.EventListingCreated, Data: listing})
	return listing, nil
}

// activeTotal sums the seller's active listings. Summed in Go to keep exact decimal arithmetic.
func activeTotal(tx *gorm.DB, sellerID uuid.UUID) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := tx.Model(&domain.Listing{}).
		Where("seller_id = ? AND status = ?", sellerID, domain.ListingActive).
		Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total, nil
}

// ListActive returns purchasable listings, newest first.
func (s *Service) ListActive(ctx context.Context) ([]ListingView, error) {
	var rows []domain.Listing
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND amount > 0", domain.ListingActive).
		Order(`"createdAt" DESC`).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return s.withSellerNames(ctx, rows)
}

// ListBySeller returns every listing of seller in any status, newest first.
func (s *Service) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]ListingView, error) {
	var rows []domain.Listing
	if err := s.DB.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order(`"createdAt" DESC`).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return s.withSellerNames(ctx, rows)
}

// GetListingResult is one listing plus its audit trail.
type GetListingResult struct {
	Listing ListingView           `json:"listing"`
	Events  []domain.ListingEvent `json:"events"`
}

func (s *Service) GetListing(ctx context.Context, listingID uuid.UUID) (*GetListingResult, error) {
	var l domain.Listing
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).Take(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: listing %s", domain.ErrNotFound, listingID)
		}
		return nil, err
	}
	views, err := s.withSellerNames(ctx, []domain.Listing{l})
	if err != nil {
		return nil, err
	}
	var events []domain.ListingEvent
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).Order(`"createdAt" ASC`).Find(&events).Error; err != nil {
		return nil, err
	}
	return &GetListingResult{Listing: views[0], Events: events}, nil
}

// Cancel withdraws an active listing. Only its seller may cancel it.
func (s *Service) Cancel(ctx context.Context, listingID, requesterID uuid.UUID) (*domain.Listing, error) {
	var listing domain.Listing
	err := s.Locks.Do(ctx, []string{locks.ListingKey(listingID)}, func() error {
		return s.cancelInTx(ctx, listingID, requesterID, &listing)
	})
	metrics.ObserveLedger("listing_cancel", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.Event{Type: notify.EventListingCancelled, Data: listing})
	return &listing, nil
}

func (s *Service) cancelInTx(ctx context.Context, listingID, requesterID uuid.UUID, out *domain.Listing) error {
	return database.InTx(ctx, s.DB, s.LockTimeout, func(tx *gorm.DB) error {
		listing := out
		if err := database.ForUpdate(tx).Where("listing_id = ?", listingID).Take(listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: listing %s", domain.ErrNotFound, listingID)
			}
			return err
		}
		if listing.SellerID != requesterID {
			return fmt.Errorf("%w: only the seller can cancel this listing", domain.ErrForbidden)
		}
		if listing.Status != domain.ListingActive {
			return fmt.Errorf("%w: listing is %s", domain.ErrInvalidState, listing.Status)
		}
		listing.Status = domain.ListingCancelled
		if err := tx.Model(listing).Update("status", domain.ListingCancelled).Error; err != nil {
			return err
		}
		return RecordEvent(tx, listing.ListingID, domain.ListingEventCancelled, requesterID, map[string]interface{}{
			"remaining_amount": listing.Amount,
		})
	})
}

// RecordEvent appends a ListingEvent in the caller's transaction.
func RecordEvent(tx *gorm.DB, listingID uuid.UUID, eventType string, actor uuid.UUID, data map[string]interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return tx.Create(&domain.ListingEvent{
		ListingID: listingID,
		EventType: eventType,
		ActorID:   actor,
		EventData: datatypes.JSON(b),
	}).Error
}

func (s *Service) withSellerNames(ctx context.Context, rows []domain.Listing) ([]ListingView, error) {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, l := range rows {
		ids = append(ids, l.SellerID)
	}
	names, err := ledger.UserNames(ctx, s.DB, ids...)
	if err != nil {
		return nil, err
	}
	out := make([]ListingView, 0, len(rows))
	for _, l := range rows {
		out = append(out, ListingView{Listing: l, SellerName: names[l.SellerID]})
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, ev notify.Event) {
	if s.Notifier != nil {
		s.Notifier.Publish(ctx, ev)
	}
}
