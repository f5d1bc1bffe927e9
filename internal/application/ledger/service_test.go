package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

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

func setupLedger(t *testing.T) (*Service, *gorm.DB) {
	db := testdb.Open(t)
	return &Service{DB: db, Locks: locks.NewKeyedLocker(5 * time.Second), Notifier: notify.Nop{}}, db
}

func TestGetBalance_UnknownAccountIsZero(t *testing.T) {
	svc, _ := setupLedger(t)
	bal, err := svc.GetBalance(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

// pair seeds two individuals and returns their ids.
func pair(t *testing.T, db *gorm.DB) (uuid.UUID, uuid.UUID) {
	t.Helper()
	return testdb.User(t, db, "Asha", constants.Individual).UserID, testdb.User(t, db, "Ben", constants.Individual).UserID
}

func TestTransfer_MovesCreditsAndCreatesRecipient(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	from, to := pair(t, db)
	testdb.Fund(t, db, from, 100)

	rec, err := svc.Transfer(ctx, from, to, decimal.RequireFromString("40.25"), "")
	require.NoError(t, err)
	assert.Equal(t, domain.TxTransfer, rec.Type)
	assert.Equal(t, "Credit transfer", rec.Description)
	require.NotNil(t, rec.FromAccountID)
	assert.Equal(t, from, *rec.FromAccountID)

	assert.True(t, decimal.RequireFromString("59.75").Equal(testdb.Balance(t, db, from)))
	assert.True(t, decimal.RequireFromString("40.25").Equal(testdb.Balance(t, db, to)))
	assert.Equal(t, int64(1), testdb.Count(t, db, &domain.Transaction{}))
}

func TestTransfer_InsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	svc, db := setupLedger(t)
	from, to := pair(t, db)
	testdb.Fund(t, db, from, 10)

	_, err := svc.Transfer(context.Background(), from, to, decimal.NewFromInt(11), "")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, decimal.NewFromInt(10).Equal(testdb.Balance(t, db, from)))
	assert.Equal(t, int64(1), testdb.Count(t, db, &domain.Account{}))
	assert.Equal(t, int64(0), testdb.Count(t, db, &domain.Transaction{}))
}

func TestTransfer_InvalidArguments(t *testing.T) {
	svc, db := setupLedger(t)
	a := uuid.New()
	testdb.Fund(t, db, a, 10)

	cases := map[string]struct {
		to     uuid.UUID
		amount decimal.Decimal
	}{
		"zero":         {uuid.New(), decimal.Zero},
		"negative":     {uuid.New(), decimal.NewFromInt(-1)},
		"too precise":  {uuid.New(), decimal.RequireFromString("0.00001")},
		"self":         {a, decimal.NewFromInt(1)},
		"no recipient": {uuid.Nil, decimal.NewFromInt(1)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Transfer(context.Background(), a, tc.to, tc.amount, "")
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
		})
	}
}

func TestTransfer_ConcurrentNeverOverdraws(t *testing.T) {
	svc, db := setupLedger(t)
	a, b := pair(t, db)
	testdb.Fund(t, db, a, 50)
	testdb.Fund(t, db, b, 50)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := a, b
			if i%2 == 1 {
				from, to = b, a
			}
			_, _ = svc.Transfer(context.Background(), from, to, decimal.NewFromInt(7), "")
		}(i)
	}
	wg.Wait()

	balA, balB := testdb.Balance(t, db, a), testdb.Balance(t, db, b)
	assert.False(t, balA.IsNegative())
	assert.False(t, balB.IsNegative())
	assert.True(t, decimal.NewFromInt(100).Equal(balA.Add(balB)), "total must be conserved")
}

func TestTransfer_ContentionWhenAccountLocked(t *testing.T) {
	svc, db := setupLedger(t)
	svc.Locks = locks.NewKeyedLocker(30 * time.Millisecond)
	a, b := pair(t, db)
	testdb.Fund(t, db, a, 10)

	release, err := svc.Locks.Acquire(context.Background(), locks.AccountKey(a))
	require.NoError(t, err)
	defer release()

	_, err = svc.Transfer(context.Background(), a, b, decimal.NewFromInt(1), "")
	require.ErrorIs(t, err, domain.ErrContention)
	assert.True(t, decimal.NewFromInt(10).Equal(testdb.Balance(t, db, a)))
}

func TestTransfer_UnknownRecipientIsNotFound(t *testing.T) {
	svc, db := setupLedger(t)
	from, _ := pair(t, db)
	testdb.Fund(t, db, from, 10)
	stranger := uuid.New()

	_, err := svc.Transfer(context.Background(), from, stranger, decimal.NewFromInt(4), "")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.True(t, decimal.NewFromInt(10).Equal(testdb.Balance(t, db, from)))
	assert.Equal(t, int64(1), testdb.Count(t, db, &domain.Account{}), "no orphan account for the stranger")
	assert.Equal(t, int64(0), testdb.Count(t, db, &domain.Transaction{}))
}

func TestGrant_IncentiveHasNoSender(t *testing.T) {
	svc, db := setupLedger(t)
	u := testdb.User(t, db, "Asha Rao", constants.Individual)

	rec, err := svc.Grant(context.Background(), u.UserID, decimal.NewFromInt(100), "")
	require.NoError(t, err)
	assert.Nil(t, rec.FromAccountID)
	assert.Equal(t, domain.TxIncentive, rec.Type)
	assert.True(t, decimal.NewFromInt(100).Equal(testdb.Balance(t, db, u.UserID)))

	_, err = svc.Grant(context.Background(), uuid.New(), decimal.NewFromInt(1), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistory_NamesAndDirection(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	alice := testdb.User(t, db, "Alice", constants.Individual)
	acme := testdb.User(t, db, "Acme Corp", constants.Company)
	testdb.Fund(t, db, alice.UserID, 20)

	_, err := svc.Transfer(ctx, alice.UserID, acme.UserID, decimal.NewFromInt(5), "gift")
	require.NoError(t, err)

	hist, err := svc.History(ctx, alice.UserID, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "out", hist[0].Direction)
	assert.Equal(t, "Acme Corp", hist[0].ToName)
	require.NotNil(t, hist[0].FromName)
	assert.Equal(t, "Alice", *hist[0].FromName)

	hist, err = svc.History(ctx, acme.UserID, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "in", hist[0].Direction)
}

func TestMarketplace_IndividualsWithCredits(t *testing.T) {
	svc, db := setupLedger(t)
	asha, ben := pair(t, db)
	idle := testdb.User(t, db, "Cai", constants.Individual).UserID
	corp := testdb.User(t, db, "Corp", constants.Company).UserID
	testdb.Fund(t, db, asha, 30)
	testdb.Fund(t, db, ben, 75)
	testdb.Fund(t, db, idle, 0)
	testdb.Fund(t, db, corp, 500)

	sellers, err := svc.Marketplace(context.Background())
	require.NoError(t, err)
	require.Len(t, sellers, 2)
	assert.Equal(t, ben, sellers[0].SellerID)
	assert.Equal(t, "Ben", sellers[0].SellerName)
	assert.True(t, decimal.NewFromInt(75).Equal(sellers[0].Amount))
	assert.Equal(t, asha, sellers[1].SellerID)
	assert.False(t, sellers[1].MemberSince.IsZero())
}
