package task

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/client"
	"github.com/curvelaunch/curved/internal/curve"
	"github.com/curvelaunch/curved/internal/domain"
	"github.com/curvelaunch/curved/internal/events"
	"github.com/curvelaunch/curved/internal/factory"
	"github.com/curvelaunch/curved/internal/pool"
	"github.com/curvelaunch/curved/internal/token"
	"github.com/curvelaunch/curved/internal/wallet"
)

type runnerFixture struct {
	runner  *Runner
	token   string
	tok     token.Token
	wallets map[string]*wallet.Wallet
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	mintAddr := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	owner := common.HexToAddress("0x00000000000000000000000000000000000000a0")
	base := token.NewLedger(common.HexToAddress("0x0000000000000000000000000000000000000012"),
		"Wrapped Base", "WBASE", 9, mintAddr)
	log := events.NewLog(zap.NewNop())
	f := factory.New(base, pool.Config{
		MinSeedReserve:   big.NewInt(1_000_000),
		MaxFeeBps:        1_000,
		TimelockDuration: time.Hour,
	}, log, zap.NewNop())

	tok, pl, err := f.CreatePool(factory.CreateParams{
		Name: "Curve Token", Symbol: "CRV", Decimals: 9,
		MaxSupply: big.NewInt(10_000_000), CurveKind: curve.KindLinear,
		BasePrice: big.NewInt(100_000), PriceIncrement: big.NewInt(100),
		FeeBps: 50, Owner: owner, Treasury: owner, Creator: owner, LPRecipient: owner,
	})
	require.NoError(t, err)

	require.NoError(t, base.Mint(mintAddr, owner, big.NewInt(10_000_000)))
	require.NoError(t, base.Approve(owner, pl.Address(), big.NewInt(10_000_000)))
	_, err = pl.Seed(owner, big.NewInt(1_000_000))
	require.NoError(t, err)

	wallets := make(map[string]*wallet.Wallet)
	for _, name := range []string{"alpha", "beta"} {
		w, err := wallet.Generate()
		require.NoError(t, err)
		funding := big.NewInt(10_000_000_000)
		require.NoError(t, base.Mint(mintAddr, w.Address, funding))
		require.NoError(t, base.Approve(w.Address, pl.Address(), funding))
		wallets[name] = w
	}

	runner := NewRunner(
		client.NewFactoryProvider(f),
		client.NewEngineBroadcaster(f, zap.NewNop()),
		log,
		wallets,
		client.Config{ConfirmTimeout: 5 * time.Second, QuoteTimeout: time.Second},
		2,
		zap.NewNop(),
	)
	return &runnerFixture{runner: runner, token: tok.Address().Hex(), tok: tok, wallets: wallets}
}

func TestRunnerExecutesTasks(t *testing.T) {
	fx := newRunnerFixture(t)

	tasks := []*Task{
		NewTask("alpha buys", "alpha", OperationBuy, fx.token, "150000000", 50),
		NewTask("beta buys", "beta", OperationBuy, fx.token, "150000000", 200),
	}
	for i, tk := range tasks {
		tk.ID = i
		require.NoError(t, tk.Validate())
	}

	results, err := fx.runner.Run(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i, res := range results {
		require.NoError(t, res.Err, "task %d", i)
		require.NotNil(t, res.AmountOut)
		assert.True(t, res.AmountOut.Sign() > 0)

		got := fx.tok.BalanceOf(fx.wallets[res.Task.WalletName].Address)
		assert.Equal(t, res.AmountOut, got)
	}
}

func TestRunnerReportsPerTaskFailures(t *testing.T) {
	fx := newRunnerFixture(t)

	tasks := []*Task{
		NewTask("ghost wallet", "ghost", OperationBuy, fx.token, "150000000", 50),
		NewTask("alpha buys", "alpha", OperationBuy, fx.token, "150000000", 50),
	}

	results, err := fx.runner.Run(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Error(t, results[0].Err)
	assert.True(t, domain.IsValidation(results[0].Err))
	require.NoError(t, results[1].Err)
}
