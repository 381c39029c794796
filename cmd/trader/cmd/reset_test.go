package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"paper-trade-bot-go/internal/config"
	"paper-trade-bot-go/internal/database"
	"paper-trade-bot-go/internal/execution"
	"paper-trade-bot-go/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockResetter is a mock implementation of accountResetter.
type MockResetter struct {
	mock.Mock
}

func (m *MockResetter) Reset(ctx context.Context, startingBalance decimal.Decimal) error {
	args := m.Called(ctx, startingBalance)
	return args.Error(0)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestResetAccount_ResetsStoreAndLedger(t *testing.T) {
	// Arrange
	ctx := context.Background()
	db, err := database.NewDatabase(config.Database{DSN: filepath.Join(t.TempDir(), "reset.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	store := database.NewStore(db)
	_, err = store.EnsureAccount(ctx, d("10000"))
	require.NoError(t, err)

	l := ledger.New(d("10000"))
	require.NoError(t, l.ApplyBuy("BTC/USDT", d("0.02"), d("50000"), d("1")))
	pos, _ := l.Position("BTC/USDT")
	_, err = store.CommitTrade(ctx, execution.Commit{
		Trade: execution.TradeRecord{Symbol: "BTC/USDT", Side: execution.SideBuy, Amount: d("0.02"),
			Price: d("50000"), Fee: d("1"), GrossValue: d("1000"), NetValue: d("1001")},
		Position:        pos,
		CashBalance:     l.CashBalance(),
		StartingBalance: l.StartingBalance(),
	})
	require.NoError(t, err)

	// Act
	err = resetAccount(ctx, store, l, d("5000"))

	// Assert
	require.NoError(t, err)
	assertLedger := func(snap ledger.Snapshot) {
		assert.True(t, d("5000").Equal(snap.CashBalance), "cash %s", snap.CashBalance)
		assert.True(t, d("5000").Equal(snap.StartingBalance))
		assert.Empty(t, snap.Positions)
	}
	assertLedger(l.Snapshot())

	durable, err := store.LoadLedger(ctx)
	require.NoError(t, err)
	assertLedger(durable)

	trades, err := store.Trades(ctx, database.TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestResetAccount_StoreFailureKeepsLedger(t *testing.T) {
	ctx := context.Background()
	store := new(MockResetter)
	store.On("Reset", ctx, mock.Anything).Return(errors.New("database is locked"))

	l := ledger.New(d("10000"))
	require.NoError(t, l.ApplyBuy("BTC/USDT", d("0.02"), d("50000"), d("1")))
	before := l.Snapshot()

	err := resetAccount(ctx, store, l, d("5000"))

	assert.ErrorContains(t, err, "database is locked")
	assert.Equal(t, before, l.Snapshot())
	store.AssertExpectations(t)
}
