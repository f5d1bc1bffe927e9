package trading

import (
	"context"
	"sync"
	"testing"
	"time"

	"csx-backend/internal/application/listings"
	"csx-backend/internal/domain"
	"csx-backend/internal/infrastructure/locks"
	"csx-backend/internal/infrastructure/notify"
	"csx-backend/internal/pkg/constants"
	"csx-backend/internal/pkg/testdb"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	trading  *Service
	listings *listings.Service
	seller   domain.User
	buyer    domain.User
}

func setupTrading(t *testing.T, sellerBalance int64) *fixture {
	db := testdb.Open(t)
	l := locks.NewKeyedLocker(5 * time.Second)
	f := &fixture{
		db:       db,
		trading:  &Service{DB: db, Locks: l, Notifier: notify.Nop{}},
		listings: &listings.Service{DB: db, Locks: l},
		seller:   testdb.User(t, db, "Priya Sharma", constants.Individual),
		buyer:    testdb.User(t, db, "GreenSteel Ltd", constants.Company),
	}
	testdb.Fund(t, db, f.seller.UserID, sellerBalance)
	return f
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) listing(t *testing.T, id uuid.UUID) domain.Listing {
	var l domain.Listing
	require.NoError(t, f.db.Where("listing_id = ?", id).Take(&l).Error)
	return l
}

func TestPurchase_PartialFillThenSellOut(t *testing.T) {
	f := setupTrading(t, 100)
	ctx := context.Background()

	l, err := f.listings.CreateListing(ctx, f.seller.UserID, d("60"), nil)
	require.NoError(t, err)

	res, err := f.trading.Purchase(ctx, f.buyer.UserID, l.ListingID, d("25"))
	require.NoError(t, err)
	assert.Equal(t, "Priya Sharma", res.SellerName)
	assert.True(t, d("25").Equal(res.Amount))
	assert.True(t, d("35").Equal(f.listing(t, l.ListingID).Amount))
	assert.Equal(t, domain.ListingActive, f.listing(t, l.ListingID).Status)
	assert.True(t, d("75").Equal(testdb.Balance(t, f.db, f.seller.UserID)))
	assert.True(t, d("25").Equal(testdb.Balance(t, f.db, f.buyer.UserID)))

	var tx domain.Transaction
	require.NoError(t, f.db.Where("tx_id = ?", res.TransactionID).Take(&tx).Error)
	assert.Equal(t, domain.TxPurchase, tx.Type)
	assert.Equal(t, "Credit purchase from Priya Sharma", tx.Description)
	require.NotNil(t, tx.RelatedListingID)
	assert.Equal(t, l.ListingID, *tx.RelatedListingID)

	res, err = f.trading.Purchase(ctx, f.buyer.UserID, l.ListingID, d("35"))
	require.NoError(t, err)
	assert.Equal(t, domain.ListingSold, res.ListingStatus)
	stored := f.listing(t, l.ListingID)
	assert.True(t, stored.Amount.IsZero())
	assert.Equal(t, domain.ListingSold, stored.Status)
	assert.True(t, d("40").Equal(testdb.Balance(t, f.db, f.seller.UserID)))
	assert.True(t, d("60").Equal(testdb.Balance(t, f.db, f.buyer.UserID)))
	assert.Equal(t, int64(2), testdb.Count(t, f.db, &domain.Transaction{}))

	_, err = f.trading.Purchase(ctx, f.buyer.UserID, l.ListingID, d("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func snapshot(t *testing.T, f *fixture) map[string]int64 {
	return map[string]int64{
		"accounts":     testdb.Count(t, f.db, &domain.Account{}),
		"listings":     testdb.Count(t, f.db, &domain.Listing{}),
		"transactions": testdb.Count(t, f.db, &domain.Transaction{}),
		"events":       testdb.Count(t, f.db, &domain.ListingEvent{}),
	}
}

func TestPurchase_RejectionsChangeNothing(t *testing.T) {
	f := setupTrading(t, 100)
	ctx := context.Background()
	l, err := f.listings.CreateListing(ctx, f.seller.UserID, d("60"), nil)
	require.NoError(t, err)
	before := snapshot(t, f)

	_, err = f.trading.Purchase(ctx, f.buyer.UserID, l.ListingID, d("60.0001"))
	assert.ErrorIs(t, err, domain.ErrAmountExceedsListing)

	_, err = f.trading.Purchase(ctx, f.buyer.UserID, l.ListingID, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.trading.Purchase(ctx, f.buyer.UserID, uuid.New(), d("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.trading.Purchase(ctx, f.seller.UserID, l.ListingID, d("1"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	// seller moved credits away after listing: listing stays, balance no longer covers it
	testdb.Fund(t, f.db, f.seller.UserID, 10)
	_, err = f.trading.Purchase(ctx, f.buyer.UserID, l.ListingID, d("20"))
	assert.ErrorIs(t, err, domain.ErrInsufficientSellerBalance)

	assert.Equal(t, before, snapshot(t, f))
	assert.True(t, d("60").Equal(f.listing(t, l.ListingID).Amount))
	assert.True(t, d("10").Equal(testdb.Balance(t, f.db, f.seller.UserID)))
	assert.True(t, testdb.Balance(t, f.db, f.buyer.UserID).IsZero())
}

func TestPurchase_CancelledListingIsNotFound(t *testing.T) {
	f := setupTrading(t, 10)
	ctx := context.Background()
	l, err := f.listings.CreateListing(ctx, f.seller.UserID, d("10"), nil)
	require.NoError(t, err)
	_, err = f.listings.Cancel(ctx, l.ListingID, f.seller.UserID)
	require.NoError(t, err)

	_, err = f.trading.Purchase(ctx, f.buyer.UserID, l.ListingID, d("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPurchase_ConcurrentBuyersNeverOversell(t *testing.T) {
	f := setupTrading(t, 100)
	ctx := context.Background()
	l, err := f.listings.CreateListing(ctx, f.seller.UserID, d("50"), nil)
	require.NoError(t, err)

	buyers := make([]uuid.UUID, 8)
	for i := range buyers {
		buyers[i] = testdb.User(t, f.db, "Buyer", constants.Company).UserID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	bought := decimal.Zero
	for _, b := range buyers {
		wg.Add(1)
		go func(b uuid.UUID) {
			defer wg.Done()
			res, err := f.trading.Purchase(ctx, b, l.ListingID, d("15"))
			if err == nil {
				mu.Lock()
				bought = bought.Add(res.Amount)
				mu.Unlock()
			}
		}(b)
	}
	wg.Wait()

	assert.True(t, d("45").Equal(bought))
	assert.True(t, d("5").Equal(f.listing(t, l.ListingID).Amount))
	assert.True(t, d("55").Equal(testdb.Balance(t, f.db, f.seller.UserID)))

	total := testdb.Balance(t, f.db, f.seller.UserID)
	for _, b := range buyers {
		total = total.Add(testdb.Balance(t, f.db, b))
	}
	assert.True(t, d("100").Equal(total))
}
