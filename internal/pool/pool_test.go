package pool

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/curve"
	"github.com/curvelaunch/curved/internal/domain"
	"github.com/curvelaunch/curved/internal/events"
	"github.com/curvelaunch/curved/internal/token"
)

var (
	addrPool     = common.HexToAddress("0x0000000000000000000000000000000000000010")
	addrTokenRef = common.HexToAddress("0x0000000000000000000000000000000000000011")
	addrBaseRef  = common.HexToAddress("0x0000000000000000000000000000000000000012")
	addrOwner    = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	addrTreasury = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	addrCreator  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	addrLP       = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	addrBuyer    = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	addrMint     = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	pool  *Pool
	base  *token.Ledger
	tok   *token.Ledger
	log   *events.Log
	clock *fakeClock
}

func testConfig() Config {
	return Config{
		MinSeedReserve:   big.NewInt(1_000_000),
		MaxFeeBps:        1_000,
		TimelockDuration: time.Hour,
	}
}

func newFixture(t *testing.T, feeBps uint64, split *FeeSplit) *fixture {
	t.Helper()

	crv, err := curve.NewLinear(big.NewInt(100_000), big.NewInt(100), big.NewInt(10_000_000))
	require.NoError(t, err)
	return newFixtureWithCurve(t, crv, feeBps, split)
}

func newFixtureWithCurve(t *testing.T, crv *curve.Curve, feeBps uint64, split *FeeSplit) *fixture {
	t.Helper()

	base := token.NewLedger(addrBaseRef, "Wrapped Base", "WBASE", 9, addrMint)
	tok := token.NewLedger(addrTokenRef, "Moon Token", "MOON", 6, addrPool)
	log := events.NewLog(zap.NewNop())
	clock := newFakeClock()

	p, err := New(Params{
		Address:     addrPool,
		Owner:       addrOwner,
		Treasury:    addrTreasury,
		Creator:     addrCreator,
		LPRecipient: addrLP,
		Curve:       crv,
		Token:       tok,
		Base:        base,
		FeeBps:      feeBps,
		FeeSplit:    split,
		Config:      testConfig(),
		Log:         log,
		Logger:      zap.NewNop(),
		Now:         clock.Now,
	})
	require.NoError(t, err)

	// Fund and approve the owner and a buyer.
	for _, addr := range []common.Address{addrOwner, addrBuyer} {
		require.NoError(t, base.Mint(addrMint, addr, big.NewInt(1_000_000_000_000)))
		require.NoError(t, base.Approve(addr, addrPool, big.NewInt(1_000_000_000_000)))
	}

	return &fixture{pool: p, base: base, tok: tok, log: log, clock: clock}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	_, err := f.pool.Seed(addrOwner, big.NewInt(100_000_000))
	require.NoError(t, err)
}

func (f *fixture) snapshot() CurveInfo { return f.pool.CurveInfo() }

func TestSeedLifecycle(t *testing.T) {
	f := newFixture(t, 50, nil)

	_, err := f.pool.Seed(addrBuyer, big.NewInt(100_000_000))
	require.Error(t, err)
	assert.True(t, domain.IsAuthorization(err))

	_, err = f.pool.Seed(addrOwner, big.NewInt(10))
	require.Error(t, err)
	assert.True(t, domain.IsCapacity(err), "reserve below minimum")

	evt, err := f.pool.Seed(addrOwner, big.NewInt(100_000_000))
	require.NoError(t, err)
	assert.Equal(t, domain.EventPoolSeeded, evt.Type)
	assert.Equal(t, big.NewInt(100_000_000), f.base.BalanceOf(addrPool))

	_, err = f.pool.Seed(addrOwner, big.NewInt(100_000_000))
	require.Error(t, err)
	assert.True(t, domain.IsState(err), "repeated seed")
}

func TestBuyBeforeSeedFails(t *testing.T) {
	f := newFixture(t, 50, nil)

	_, err := f.pool.Buy(addrBuyer, big.NewInt(1_000_000), nil, time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsState(err))
}

func TestBuyHappyPath(t *testing.T) {
	f := newFixture(t, 50, nil)
	f.seed(t)

	amountIn := big.NewInt(150_000_000)
	buyerBefore := f.base.BalanceOf(addrBuyer)

	evt, err := f.pool.Buy(addrBuyer, amountIn, big.NewInt(1), time.Time{})
	require.NoError(t, err)

	trade, ok := evt.Data.(*domain.TradeData)
	require.True(t, ok)
	assert.Equal(t, domain.SideBuy, trade.Side)
	assert.Equal(t, addrBuyer, trade.Actor)
	assert.Equal(t, amountIn, trade.AmountIn)

	// Fee is truncated off the input: 150e6 * 50 / 10000.
	wantFee := big.NewInt(750_000)
	assert.Equal(t, wantFee, trade.FeeCharged)
	net := new(big.Int).Sub(amountIn, wantFee)

	// The fill is the largest amount the net budget covers.
	tokensOut := trade.AmountOut
	cost, err := f.pool.CostToBuy(big.NewInt(0), tokensOut)
	require.NoError(t, err)
	assert.True(t, cost.Cmp(net) <= 0)
	next, err := f.pool.CostToBuy(big.NewInt(0), new(big.Int).Add(tokensOut, big.NewInt(1)))
	require.NoError(t, err)
	assert.True(t, next.Cmp(net) > 0)

	// Counters, balances and fee routing all agree.
	info := f.snapshot()
	assert.Equal(t, tokensOut, info.TokensSold)
	assert.Equal(t, new(big.Int).Add(big.NewInt(100_000_000), net), info.Liquidity)
	assert.Equal(t, tokensOut, f.tok.BalanceOf(addrBuyer))
	assert.Equal(t, wantFee, f.base.BalanceOf(addrTreasury))
	assert.Equal(t, new(big.Int).Sub(buyerBefore, amountIn), f.base.BalanceOf(addrBuyer))
	assert.Equal(t, trade.SoldSupply, info.TokensSold)
}

func TestBuyValidationFailuresLeaveStateUntouched(t *testing.T) {
	f := newFixture(t, 50, nil)
	f.seed(t)
	before := f.snapshot()

	tests := []struct {
		name  string
		run   func() error
		check func(error) bool
	}{
		{"zero amount", func() error {
			_, err := f.pool.Buy(addrBuyer, big.NewInt(0), nil, time.Time{})
			return err
		}, domain.IsValidation},
		{"expired deadline", func() error {
			_, err := f.pool.Buy(addrBuyer, big.NewInt(1_000_000), nil, f.clock.Now().Add(-time.Second))
			return err
		}, domain.IsDeadline},
		{"slippage", func() error {
			_, err := f.pool.Buy(addrBuyer, big.NewInt(150_000_000), big.NewInt(10_000_000), time.Time{})
			return err
		}, domain.IsSlippage},
		{"below current price", func() error {
			_, err := f.pool.Buy(addrBuyer, big.NewInt(10), nil, time.Time{})
			return err
		}, domain.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)

			after := f.snapshot()
			assert.Equal(t, before.TokensSold, after.TokensSold)
			assert.Equal(t, before.Liquidity, after.Liquidity)
		})
	}
}

func TestBuyPastCapacityFails(t *testing.T) {
	crv, err := curve.NewLinear(big.NewInt(100), big.NewInt(0), big.NewInt(10))
	require.NoError(t, err)
	f := newFixtureWithCurve(t, crv, 0, nil)
	f.seed(t)
	before := f.snapshot()

	// Flat price 100, cap 10: 1100 base units would buy 11 tokens.
	_, err = f.pool.Buy(addrBuyer, big.NewInt(1_100), nil, time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsCapacity(err))

	after := f.snapshot()
	assert.Equal(t, before.TokensSold, after.TokensSold)
	assert.Equal(t, before.Liquidity, after.Liquidity)
}

func TestBuySellRoundTripRestoresState(t *testing.T) {
	// Zero fee isolates the curve math: a round trip must restore the
	// counters exactly.
	f := newFixture(t, 0, nil)
	f.seed(t)
	before := f.snapshot()
	buyerBase := f.base.BalanceOf(addrBuyer)

	cost, err := f.pool.CostToBuy(big.NewInt(0), big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(149_950_000), cost)

	_, err = f.pool.Buy(addrBuyer, cost, big.NewInt(1000), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), f.tok.BalanceOf(addrBuyer))

	require.NoError(t, f.tok.Approve(addrBuyer, addrPool, big.NewInt(1000)))
	evt, err := f.pool.Sell(addrBuyer, big.NewInt(1000), big.NewInt(1), time.Time{})
	require.NoError(t, err)

	trade := evt.Data.(*domain.TradeData)
	assert.Equal(t, domain.SideSell, trade.Side)
	assert.Equal(t, cost, trade.AmountOut)

	after := f.snapshot()
	assert.Equal(t, before.TokensSold, after.TokensSold)
	assert.Equal(t, before.Liquidity, after.Liquidity)
	assert.Equal(t, buyerBase, f.base.BalanceOf(addrBuyer))
	assert.Zero(t, f.tok.BalanceOf(addrBuyer).Sign())
}

func TestSellSlippageLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, 50, nil)
	f.seed(t)

	_, err := f.pool.Buy(addrBuyer, big.NewInt(150_000_000), big.NewInt(1), time.Time{})
	require.NoError(t, err)
	require.NoError(t, f.tok.Approve(addrBuyer, addrPool, big.NewInt(1_000_000)))
	before := f.snapshot()

	held := f.tok.BalanceOf(addrBuyer)
	_, err = f.pool.Sell(addrBuyer, held, big.NewInt(1_000_000_000_000), time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsSlippage(err))

	after := f.snapshot()
	assert.Equal(t, before.TokensSold, after.TokensSold)
	assert.Equal(t, before.Liquidity, after.Liquidity)
	assert.Equal(t, held, f.tok.BalanceOf(addrBuyer))
}

func TestSellRequiresBalanceAndAllowance(t *testing.T) {
	f := newFixture(t, 50, nil)
	f.seed(t)

	_, err := f.pool.Buy(addrBuyer, big.NewInt(150_000_000), big.NewInt(1), time.Time{})
	require.NoError(t, err)

	// No token approval yet.
	_, err = f.pool.Sell(addrBuyer, big.NewInt(10), big.NewInt(1), time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsCapacity(err))

	// More than held.
	held := f.tok.BalanceOf(addrBuyer)
	over := new(big.Int).Add(held, big.NewInt(1))
	require.NoError(t, f.tok.Approve(addrBuyer, addrPool, over))
	_, err = f.pool.Sell(addrBuyer, over, big.NewInt(1), time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsCapacity(err))
}

func TestCloseCurveIsTerminal(t *testing.T) {
	f := newFixture(t, 50, nil)
	f.seed(t)

	_, err := f.pool.CloseCurve(addrBuyer)
	require.Error(t, err)
	assert.True(t, domain.IsAuthorization(err))

	evt, err := f.pool.CloseCurve(addrOwner)
	require.NoError(t, err)
	snap := evt.Data.(*domain.CurveClosedData)
	assert.Equal(t, big.NewInt(100_000_000), snap.FinalReserve)
	assert.Zero(t, snap.FinalSupply.Sign())

	_, err = f.pool.CloseCurve(addrOwner)
	require.Error(t, err)
	assert.True(t, domain.IsState(err))

	_, err = f.pool.Buy(addrBuyer, big.NewInt(1_000_000), nil, time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsState(err))

	_, err = f.pool.Sell(addrBuyer, big.NewInt(1), nil, time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsState(err))

	info := f.snapshot()
	assert.False(t, info.Active)
	assert.Equal(t, StateClosed, info.State)
}

func TestCurveInfoIdempotent(t *testing.T) {
	f := newFixture(t, 50, nil)
	f.seed(t)

	_, err := f.pool.Buy(addrBuyer, big.NewInt(150_000_000), big.NewInt(1), time.Time{})
	require.NoError(t, err)

	a := f.snapshot()
	b := f.snapshot()
	assert.Equal(t, a, b)
	assert.Equal(t, new(big.Int).Mul(a.Price, a.TokensSold), a.MarketCap)
}

func TestSerializedTradesKeepInvariants(t *testing.T) {
	f := newFixture(t, 50, nil)
	f.seed(t)

	// Hammer the pool from several goroutines; serialization means every
	// trade sees a consistent read-modify-write of soldSupply.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = f.pool.Buy(addrBuyer, big.NewInt(1_000_000), nil, time.Time{})
			}
		}()
	}
	wg.Wait()

	info := f.snapshot()
	assert.Equal(t, info.TokensSold, f.tok.BalanceOf(addrBuyer))
	assert.Equal(t, info.TokensSold, f.tok.TotalSupply())
	assert.True(t, info.Liquidity.Sign() > 0)
	assert.Equal(t, info.Liquidity, f.base.BalanceOf(addrPool))
}
