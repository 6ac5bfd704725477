package factory

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/curve"
	"github.com/curvelaunch/curved/internal/domain"
	"github.com/curvelaunch/curved/internal/events"
	"github.com/curvelaunch/curved/internal/pool"
	"github.com/curvelaunch/curved/internal/token"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func newFactory(t *testing.T) (*Factory, *events.Log) {
	t.Helper()
	base := token.NewLedger(common.HexToAddress("0x01"), "Wrapped Base", "WBASE", 9, owner)
	log := events.NewLog(zap.NewNop())
	return New(base, pool.DefaultConfig(), log, zap.NewNop()), log
}

func linearParams(symbol string) CreateParams {
	return CreateParams{
		Name:           symbol + " Token",
		Symbol:         symbol,
		Decimals:       6,
		MaxSupply:      big.NewInt(1_000_000),
		CurveKind:      curve.KindLinear,
		BasePrice:      big.NewInt(100_000),
		PriceIncrement: big.NewInt(100),
		FeeBps:         50,
		Owner:          owner,
		Treasury:       treasury,
	}
}

func TestCreatePoolRegisters(t *testing.T) {
	f, log := newFactory(t)

	tok, pl, err := f.CreatePool(linearParams("moon"))
	require.NoError(t, err)
	assert.Equal(t, "MOON", tok.Symbol())
	assert.NotEqual(t, common.Address{}, tok.Address())
	assert.NotEqual(t, tok.Address(), pl.Address())

	got, ok := f.Get(tok.Address())
	require.True(t, ok)
	assert.Same(t, pl, got)

	got, ok = f.GetBySymbol("moon")
	require.True(t, ok)
	assert.Same(t, pl, got)

	batch, _ := log.From(0)
	require.Len(t, batch, 1)
	assert.Equal(t, domain.EventPoolCreated, batch[0].Type)

	// A fresh pool starts in Seeding with no liquidity.
	info := pl.CurveInfo()
	assert.False(t, info.Active)
	assert.Zero(t, info.TokensSold.Sign())
}

func TestCreatePoolDeterministicAddresses(t *testing.T) {
	f1, _ := newFactory(t)
	f2, _ := newFactory(t)

	tok1, pl1, err := f1.CreatePool(linearParams("MOON"))
	require.NoError(t, err)
	tok2, pl2, err := f2.CreatePool(linearParams("MOON"))
	require.NoError(t, err)

	assert.Equal(t, tok1.Address(), tok2.Address())
	assert.Equal(t, pl1.Address(), pl2.Address())
}

func TestCreatePoolValidation(t *testing.T) {
	f, _ := newFactory(t)

	p := linearParams("MOON")
	p.Symbol = ""
	_, _, err := f.CreatePool(p)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	p = linearParams("MOON")
	p.CurveKind = curve.Kind("parabolic")
	_, _, err = f.CreatePool(p)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	p = linearParams("MOON")
	p.BasePrice = big.NewInt(0)
	_, _, err = f.CreatePool(p)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestDuplicateSymbolRejected(t *testing.T) {
	f, _ := newFactory(t)

	_, _, err := f.CreatePool(linearParams("MOON"))
	require.NoError(t, err)

	_, _, err = f.CreatePool(linearParams("moon"))
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	assert.Len(t, f.List(), 1)
}

func TestCreateExponentialPool(t *testing.T) {
	f, _ := newFactory(t)

	p := CreateParams{
		Name:          "Spike",
		Symbol:        "SPK",
		Decimals:      6,
		MaxSupply:     big.NewInt(100_000),
		CurveKind:     curve.KindExponential,
		BasePrice:     big.NewInt(1_000),
		GrowthRateBps: 100,
		FeeBps:        50,
		Owner:         owner,
		Treasury:      treasury,
	}
	_, pl, err := f.CreatePool(p)
	require.NoError(t, err)
	assert.Equal(t, curve.KindExponential, pl.Curve().Kind())
}
