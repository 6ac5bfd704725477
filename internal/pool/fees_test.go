package pool

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curvelaunch/curved/internal/domain"
)

func TestFeeSplitValidate(t *testing.T) {
	tests := []struct {
		name  string
		split FeeSplit
		ok    bool
	}{
		{"empty", FeeSplit{}, true},
		{"full allocation", FeeSplit{PlatformBps: 5000, CreatorBps: 3000, BurnBps: 1000, LiquidityBps: 1000}, true},
		{"partial allocation", FeeSplit{PlatformBps: 4000, CreatorBps: 2000}, true},
		{"over 10000", FeeSplit{PlatformBps: 6000, CreatorBps: 5000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.split.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))
			}
		})
	}
}

func TestSplitFeeRouting(t *testing.T) {
	split := &FeeSplit{PlatformBps: 5000, CreatorBps: 2500, BurnBps: 1500, LiquidityBps: 1000}
	f := newFixture(t, 100, split)
	f.seed(t)

	amountIn := big.NewInt(200_000_000)
	evt, err := f.pool.Buy(addrBuyer, amountIn, big.NewInt(1), time.Time{})
	require.NoError(t, err)
	fee := evt.Data.(*domain.TradeData).FeeCharged
	assert.Equal(t, big.NewInt(2_000_000), fee) // 1% of input

	platform := f.base.BalanceOf(addrTreasury)
	creator := f.base.BalanceOf(addrCreator)
	burned := f.base.BalanceOf(BurnAddress)
	lp := f.base.BalanceOf(addrLP)

	assert.Equal(t, big.NewInt(1_000_000), platform)
	assert.Equal(t, big.NewInt(500_000), creator)
	assert.Equal(t, big.NewInt(300_000), burned)
	assert.Equal(t, big.NewInt(200_000), lp)

	// Fixed-order allocation never loses dust: shares sum to the fee.
	total := new(big.Int).Add(platform, creator)
	total.Add(total, burned)
	total.Add(total, lp)
	assert.Equal(t, fee, total)
}

func TestNoSplitRoutesAllToTreasury(t *testing.T) {
	f := newFixture(t, 100, nil)
	f.seed(t)

	evt, err := f.pool.Buy(addrBuyer, big.NewInt(200_000_000), big.NewInt(1), time.Time{})
	require.NoError(t, err)
	fee := evt.Data.(*domain.TradeData).FeeCharged
	assert.Equal(t, fee, f.base.BalanceOf(addrTreasury))
	assert.Zero(t, f.base.BalanceOf(addrCreator).Sign())
}

func TestSetFeeSplitEmitsConfigEvent(t *testing.T) {
	f := newFixture(t, 100, nil)
	f.seed(t)

	_, err := f.pool.SetFeeSplit(addrBuyer, &FeeSplit{PlatformBps: 1000})
	require.Error(t, err)
	assert.True(t, domain.IsAuthorization(err))

	_, err = f.pool.SetFeeSplit(addrOwner, &FeeSplit{PlatformBps: 9000, CreatorBps: 2000})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	evt, err := f.pool.SetFeeSplit(addrOwner, &FeeSplit{PlatformBps: 7000, CreatorBps: 2000, BurnBps: 500, LiquidityBps: 500})
	require.NoError(t, err)
	data := evt.Data.(*domain.FeeConfigUpdatedData)
	assert.Equal(t, uint64(7000), data.PlatformBps)
	assert.Equal(t, uint64(2000), data.CreatorBps)
	assert.Equal(t, uint64(500), data.BurnBps)
	assert.Equal(t, uint64(500), data.LiquidityBps)
}

func TestFeeSpreadHolds(t *testing.T) {
	// With a non-zero fee, buying and immediately selling the same amount
	// always costs more than it returns.
	f := newFixture(t, 50, nil)
	f.seed(t)

	amountIn := big.NewInt(150_000_000)
	buyEvt, err := f.pool.Buy(addrBuyer, amountIn, big.NewInt(1), time.Time{})
	require.NoError(t, err)
	tokens := buyEvt.Data.(*domain.TradeData).AmountOut

	require.NoError(t, f.tok.Approve(addrBuyer, addrPool, tokens))
	sellEvt, err := f.pool.Sell(addrBuyer, tokens, big.NewInt(1), time.Time{})
	require.NoError(t, err)
	returned := sellEvt.Data.(*domain.TradeData).AmountOut

	assert.True(t, returned.Cmp(amountIn) < 0)
}
