// =============================
// File: internal/factory/factory.go
// =============================
package factory

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/curve"
	"github.com/curvelaunch/curved/internal/domain"
	"github.com/curvelaunch/curved/internal/events"
	"github.com/curvelaunch/curved/internal/pool"
	"github.com/curvelaunch/curved/internal/token"
)

// Factory creates (token, pool) pairs and keeps the registry of live pools.
// Pools are fully independent once created; the registry map is the only
// shared structure and is guarded by its own lock.
type Factory struct {
	mu       sync.RWMutex
	pools    map[common.Address]*pool.Pool // keyed by token address
	bySymbol map[string]common.Address

	base   token.Token
	cfg    pool.Config
	log    *events.Log
	logger *zap.Logger
	now    func() time.Time
}

// New builds a factory bound to one base asset and one event log.
func New(base token.Token, cfg pool.Config, log *events.Log, logger *zap.Logger) *Factory {
	return &Factory{
		pools:    make(map[common.Address]*pool.Pool),
		bySymbol: make(map[string]common.Address),
		base:     base,
		cfg:      cfg,
		log:      log,
		logger:   logger.Named("factory"),
		now:      time.Now,
	}
}

// WithClock overrides the time source for every pool the factory creates.
func (f *Factory) WithClock(now func() time.Time) *Factory {
	f.now = now
	return f
}

// CreateParams describes the token and curve to launch.
type CreateParams struct {
	Name     string
	Symbol   string
	Decimals uint8

	MaxSupply      *big.Int
	CurveKind      curve.Kind
	BasePrice      *big.Int
	PriceIncrement *big.Int // linear only
	GrowthRateBps  uint64   // exponential only

	FeeBps   uint64
	FeeSplit *pool.FeeSplit

	Owner       common.Address
	Treasury    common.Address
	Creator     common.Address
	LPRecipient common.Address
}

// CreatePool mints a fresh token ledger, builds its curve, and registers a
// pool in the Seeding state. Symbols are unique across the factory.
func (f *Factory) CreatePool(p CreateParams) (token.Token, *pool.Pool, error) {
	const op = "factory.CreatePool"
	symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if p.Name == "" || symbol == "" {
		return nil, nil, domain.E(domain.KindValidation, op, "token name and symbol are required")
	}

	crv, err := f.buildCurve(p)
	if err != nil {
		return nil, nil, err
	}

	tokenAddr := deriveAddress("token", []byte(symbol))
	poolAddr := deriveAddress("pool", tokenAddr.Bytes())
	tok := token.NewLedger(tokenAddr, p.Name, symbol, p.Decimals, poolAddr)

	pl, err := pool.New(pool.Params{
		Address:     poolAddr,
		Owner:       p.Owner,
		Treasury:    p.Treasury,
		Creator:     p.Creator,
		LPRecipient: p.LPRecipient,
		Curve:       crv,
		Token:       tok,
		Base:        f.base,
		FeeBps:      p.FeeBps,
		FeeSplit:    p.FeeSplit,
		Config:      f.cfg,
		Log:         f.log,
		Logger:      f.logger,
		Now:         f.now,
	})
	if err != nil {
		return nil, nil, err
	}

	f.mu.Lock()
	if _, exists := f.bySymbol[symbol]; exists {
		f.mu.Unlock()
		return nil, nil, domain.E(domain.KindValidation, op, "symbol %s already registered", symbol)
	}
	f.pools[tokenAddr] = pl
	f.bySymbol[symbol] = tokenAddr
	f.mu.Unlock()

	f.log.Append(domain.NewEvent(domain.EventPoolCreated, poolAddr, &domain.PoolCreatedData{
		Token:     tokenAddr,
		Name:      p.Name,
		Symbol:    symbol,
		MaxSupply: new(big.Int).Set(p.MaxSupply),
		CurveKind: string(p.CurveKind),
	}))
	f.logger.Info("pool created",
		zap.String("symbol", symbol),
		zap.String("token", tokenAddr.Hex()),
		zap.String("pool", poolAddr.Hex()),
		zap.String("curve", string(p.CurveKind)))

	return tok, pl, nil
}

func (f *Factory) buildCurve(p CreateParams) (*curve.Curve, error) {
	switch p.CurveKind {
	case curve.KindLinear:
		return curve.NewLinear(p.BasePrice, p.PriceIncrement, p.MaxSupply)
	case curve.KindExponential:
		return curve.NewExponential(p.BasePrice, p.GrowthRateBps, p.MaxSupply)
	default:
		return nil, domain.E(domain.KindValidation, "factory.CreatePool",
			"unknown curve kind %q", p.CurveKind)
	}
}

// Get returns the pool for a token address.
func (f *Factory) Get(tokenAddr common.Address) (*pool.Pool, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.pools[tokenAddr]
	return p, ok
}

// GetBySymbol returns the pool for a token symbol.
func (f *Factory) GetBySymbol(symbol string) (*pool.Pool, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	addr, ok := f.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return nil, false
	}
	return f.pools[addr], true
}

// List returns every registered pool, in no particular order.
func (f *Factory) List() []*pool.Pool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*pool.Pool, 0, len(f.pools))
	for _, p := range f.pools {
		out = append(out, p)
	}
	return out
}

// deriveAddress builds a deterministic account address from a namespace and
// seed, so the same symbol always maps to the same token and pool.
func deriveAddress(namespace string, seed []byte) common.Address {
	h := crypto.Keccak256([]byte(namespace), seed)
	return common.BytesToAddress(h[12:])
}
