// =============================
// File: internal/pool/pool.go
// =============================
package pool

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/curve"
	"github.com/curvelaunch/curved/internal/domain"
	"github.com/curvelaunch/curved/internal/events"
	"github.com/curvelaunch/curved/internal/token"
)

// State is the pool lifecycle phase.
type State int

const (
	StateSeeding State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSeeding:
		return "seeding"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// BurnAddress receives the burn share of trading fees. Nothing ever spends
// from it.
var BurnAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// Config carries the platform-wide pool parameters.
type Config struct {
	MinSeedReserve   *big.Int
	MaxFeeBps        uint64
	TimelockDuration time.Duration
}

// DefaultConfig returns the platform defaults: 0.1 base units (9 decimals)
// minimum seed, 10% fee ceiling, 24h fee-change timelock.
func DefaultConfig() Config {
	return Config{
		MinSeedReserve:   big.NewInt(100_000_000),
		MaxFeeBps:        1_000,
		TimelockDuration: 24 * time.Hour,
	}
}

// Params assembles everything a pool needs at construction.
type Params struct {
	Address     common.Address
	Owner       common.Address
	Treasury    common.Address
	Creator     common.Address
	LPRecipient common.Address
	Curve       *curve.Curve
	Token       token.Minter // curve token; the pool must be its supply authority
	Base        token.Token  // reserve asset
	FeeBps      uint64
	FeeSplit    *FeeSplit // nil routes the whole fee to Treasury
	Config      Config
	Log         *events.Log
	Logger      *zap.Logger
	Now         func() time.Time // nil means time.Now
}

// Pool is the per-token bonding-curve state machine. All mutating operations
// on one pool are strictly serialized by its mutex: a trade's full effect
// (counters, transfers, fee payout, event) completes before the next trade is
// evaluated. Pools share nothing mutable with each other.
type Pool struct {
	mu sync.Mutex

	address     common.Address
	owner       common.Address
	treasury    common.Address
	creator     common.Address
	lpRecipient common.Address

	crv  *curve.Curve
	tok  token.Minter
	base token.Token

	baseReserve *big.Int
	soldSupply  *big.Int
	feeBps      uint64
	feeSplit    *FeeSplit
	pending     *feeChange
	state       State

	cfg    Config
	log    *events.Log
	logger *zap.Logger
	now    func() time.Time
}

// New validates params and returns a pool in the Seeding state.
func New(p Params) (*Pool, error) {
	const op = "pool.New"
	if p.Curve == nil || p.Token == nil || p.Base == nil || p.Log == nil {
		return nil, domain.E(domain.KindValidation, op, "curve, token, base asset and event log are required")
	}
	if p.Owner == (common.Address{}) || p.Treasury == (common.Address{}) {
		return nil, domain.E(domain.KindValidation, op, "owner and treasury addresses are required")
	}
	if p.FeeBps > p.Config.MaxFeeBps {
		return nil, domain.E(domain.KindValidation, op,
			"fee %d bps above maximum %d bps", p.FeeBps, p.Config.MaxFeeBps)
	}
	if p.FeeSplit != nil {
		if err := p.FeeSplit.Validate(); err != nil {
			return nil, err
		}
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	lp := p.LPRecipient
	if lp == (common.Address{}) {
		lp = p.Treasury
	}
	return &Pool{
		address:     p.Address,
		owner:       p.Owner,
		treasury:    p.Treasury,
		creator:     p.Creator,
		lpRecipient: lp,
		crv:         p.Curve,
		tok:         p.Token,
		base:        p.Base,
		baseReserve: new(big.Int),
		soldSupply:  new(big.Int),
		feeBps:      p.FeeBps,
		feeSplit:    p.FeeSplit,
		state:       StateSeeding,
		cfg:         p.Config,
		log:         p.Log,
		logger:      p.Logger.Named("pool").With(zap.String("pool", p.Address.Hex())),
		now:         p.Now,
	}, nil
}

// Address returns the pool's own account address.
func (p *Pool) Address() common.Address { return p.address }

// Token returns the curve token.
func (p *Pool) Token() token.Token { return p.tok }

// Seed funds the initial reserve and activates trading. Owner-only, one
// time; the reserve is pulled from the owner's approved base balance.
func (p *Pool) Seed(owner common.Address, reserveIn *big.Int) (domain.Event, error) {
	const op = "pool.Seed"
	p.mu.Lock()
	defer p.mu.Unlock()

	if owner != p.owner {
		return domain.Event{}, domain.E(domain.KindAuthorization, op, "caller %s is not the pool owner", owner.Hex())
	}
	switch p.state {
	case StateActive:
		return domain.Event{}, domain.E(domain.KindState, op, "pool already seeded")
	case StateClosed:
		return domain.Event{}, domain.E(domain.KindState, op, "curve inactive")
	}
	if reserveIn == nil || reserveIn.Cmp(p.cfg.MinSeedReserve) < 0 {
		return domain.Event{}, domain.E(domain.KindCapacity, op,
			"initial reserve below minimum %s", p.cfg.MinSeedReserve)
	}
	if err := p.checkFunds(op, owner, reserveIn); err != nil {
		return domain.Event{}, err
	}

	if err := p.base.TransferFrom(p.address, owner, p.address, reserveIn); err != nil {
		return domain.Event{}, domain.Wrap(domain.KindOf(err), op, err, "seed transfer failed")
	}
	p.baseReserve.Set(reserveIn)
	p.state = StateActive

	evt := domain.NewEvent(domain.EventPoolSeeded, p.address, &domain.PoolSeededData{
		Owner:          owner,
		InitialReserve: new(big.Int).Set(reserveIn),
	})
	p.log.Append(evt)
	p.logger.Info("pool seeded",
		zap.String("owner", owner.Hex()),
		zap.String("initial_reserve", reserveIn.String()))
	return evt, nil
}

// Buy converts baseAmountIn into curve tokens. The fee is taken from the
// input first; the remainder is converted at the curve price. All state
// mutations are applied before any asset moves, and every failure path
// leaves the counters byte-for-byte unchanged.
func (p *Pool) Buy(buyer common.Address, baseAmountIn, minTokensOut *big.Int, deadline time.Time) (domain.Event, error) {
	const op = "pool.Buy"
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkTradable(op, deadline); err != nil {
		return domain.Event{}, err
	}
	if baseAmountIn == nil || baseAmountIn.Sign() <= 0 {
		return domain.Event{}, domain.E(domain.KindValidation, op, "zero base amount")
	}

	fee := FeePortion(baseAmountIn, p.feeBps)
	net := new(big.Int).Sub(baseAmountIn, fee)

	tokensOut, err := p.crv.TokensOutForBase(p.soldSupply, net)
	if err != nil {
		return domain.Event{}, err
	}
	if tokensOut.Sign() == 0 {
		return domain.Event{}, domain.E(domain.KindValidation, op,
			"net amount %s below the current token price", net)
	}
	if minTokensOut != nil && tokensOut.Cmp(minTokensOut) < 0 {
		return domain.Event{}, domain.E(domain.KindSlippage, op,
			"would receive %s tokens, below minimum %s", tokensOut, minTokensOut)
	}
	if err := p.checkFunds(op, buyer, baseAmountIn); err != nil {
		return domain.Event{}, err
	}

	// Bookkeeping first, transfers second: the pool is never observable
	// half-updated from a re-entered call.
	prevSupply := new(big.Int).Set(p.soldSupply)
	prevReserve := new(big.Int).Set(p.baseReserve)
	p.soldSupply.Add(p.soldSupply, tokensOut)
	p.baseReserve.Add(p.baseReserve, net)

	if err := p.settleBuy(buyer, baseAmountIn, tokensOut, fee); err != nil {
		p.soldSupply.Set(prevSupply)
		p.baseReserve.Set(prevReserve)
		return domain.Event{}, domain.Wrap(domain.KindOf(err), op, err, "trade settlement failed")
	}

	evt := p.emitTrade(domain.SideBuy, domain.EventBought, buyer, baseAmountIn, tokensOut, fee)
	return evt, nil
}

// Sell converts curve tokens back into the base asset. The fee comes out of
// the gross proceeds; the seller's tokens must already be approved to the
// pool.
func (p *Pool) Sell(seller common.Address, tokenAmountIn, minBaseOut *big.Int, deadline time.Time) (domain.Event, error) {
	const op = "pool.Sell"
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkTradable(op, deadline); err != nil {
		return domain.Event{}, err
	}
	if tokenAmountIn == nil || tokenAmountIn.Sign() <= 0 {
		return domain.Event{}, domain.E(domain.KindValidation, op, "zero token amount")
	}

	proceeds, err := p.crv.ProceedsToSell(p.soldSupply, tokenAmountIn)
	if err != nil {
		return domain.Event{}, err
	}
	if p.baseReserve.Cmp(proceeds) < 0 {
		return domain.Event{}, domain.E(domain.KindCapacity, op,
			"reserve %s below proceeds %s", p.baseReserve, proceeds)
	}
	fee := FeePortion(proceeds, p.feeBps)
	netOut := new(big.Int).Sub(proceeds, fee)
	if minBaseOut != nil && netOut.Cmp(minBaseOut) < 0 {
		return domain.Event{}, domain.E(domain.KindSlippage, op,
			"would receive %s base units, below minimum %s", netOut, minBaseOut)
	}
	if bal := p.tok.BalanceOf(seller); bal.Cmp(tokenAmountIn) < 0 {
		return domain.Event{}, domain.E(domain.KindCapacity, op,
			"token balance %s below sell amount %s", bal, tokenAmountIn)
	}
	if allowed := p.tok.Allowance(seller, p.address); allowed.Cmp(tokenAmountIn) < 0 {
		return domain.Event{}, domain.E(domain.KindCapacity, op,
			"token allowance %s below sell amount %s", allowed, tokenAmountIn)
	}

	prevSupply := new(big.Int).Set(p.soldSupply)
	prevReserve := new(big.Int).Set(p.baseReserve)
	p.soldSupply.Sub(p.soldSupply, tokenAmountIn)
	p.baseReserve.Sub(p.baseReserve, proceeds)

	if err := p.settleSell(seller, tokenAmountIn, netOut, fee); err != nil {
		p.soldSupply.Set(prevSupply)
		p.baseReserve.Set(prevReserve)
		return domain.Event{}, domain.Wrap(domain.KindOf(err), op, err, "trade settlement failed")
	}

	evt := p.emitTrade(domain.SideSell, domain.EventSold, seller, tokenAmountIn, netOut, fee)
	return evt, nil
}

// CloseCurve is the terminal Active -> Closed transition. It snapshots the
// final reserve and supply for audit and forever disables trading.
func (p *Pool) CloseCurve(owner common.Address) (domain.Event, error) {
	const op = "pool.CloseCurve"
	p.mu.Lock()
	defer p.mu.Unlock()

	if owner != p.owner {
		return domain.Event{}, domain.E(domain.KindAuthorization, op, "caller %s is not the pool owner", owner.Hex())
	}
	if p.state != StateActive {
		return domain.Event{}, domain.E(domain.KindState, op, "pool is %s, not active", p.state)
	}
	p.state = StateClosed

	evt := domain.NewEvent(domain.EventCurveClosed, p.address, &domain.CurveClosedData{
		Owner:        owner,
		FinalReserve: new(big.Int).Set(p.baseReserve),
		FinalSupply:  new(big.Int).Set(p.soldSupply),
	})
	p.log.Append(evt)
	p.logger.Info("curve closed",
		zap.String("final_reserve", p.baseReserve.String()),
		zap.String("final_supply", p.soldSupply.String()))
	return evt, nil
}

// CurveInfo is a point-in-time snapshot of pool state for quoting and
// display. It never mutates and never fails; a closed pool simply reports
// Active=false.
type CurveInfo struct {
	Price      *big.Int
	Liquidity  *big.Int
	MarketCap  *big.Int
	Active     bool
	TokensSold *big.Int
	MaxTokens  *big.Int
	FeeBps     uint64
	State      State
}

// CurveInfo returns the current snapshot. Two calls with no intervening
// trade return identical values.
func (p *Pool) CurveInfo() CurveInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	price := p.crv.SpotPrice(p.soldSupply)
	return CurveInfo{
		Price:      price,
		Liquidity:  new(big.Int).Set(p.baseReserve),
		MarketCap:  new(big.Int).Mul(price, p.soldSupply),
		Active:     p.state == StateActive,
		TokensSold: new(big.Int).Set(p.soldSupply),
		MaxTokens:  p.crv.MaxSupply(),
		FeeBps:     p.feeBps,
		State:      p.state,
	}
}

// CostToBuy exposes the pricing function at current parameters.
func (p *Pool) CostToBuy(soldSupply, amount *big.Int) (*big.Int, error) {
	return p.crv.CostToBuy(soldSupply, amount)
}

// ProceedsToSell exposes the mirror computation.
func (p *Pool) ProceedsToSell(soldSupply, amount *big.Int) (*big.Int, error) {
	return p.crv.ProceedsToSell(soldSupply, amount)
}

// Curve returns the pool's pricing function.
func (p *Pool) Curve() *curve.Curve { return p.crv }

// checkTradable assumes p.mu is held.
func (p *Pool) checkTradable(op string, deadline time.Time) error {
	switch p.state {
	case StateSeeding:
		return domain.E(domain.KindState, op, "pool not yet seeded")
	case StateClosed:
		return domain.E(domain.KindState, op, "curve inactive")
	}
	if !deadline.IsZero() && p.now().After(deadline) {
		return domain.E(domain.KindDeadline, op, "deadline %s already passed", deadline.Format(time.RFC3339))
	}
	return nil
}

// checkFunds verifies balance and allowance before any mutation, so that a
// settlement transfer cannot fail after counters moved.
func (p *Pool) checkFunds(op string, payer common.Address, amount *big.Int) error {
	if bal := p.base.BalanceOf(payer); bal.Cmp(amount) < 0 {
		return domain.E(domain.KindCapacity, op, "base balance %s below %s", bal, amount)
	}
	if allowed := p.base.Allowance(payer, p.address); allowed.Cmp(amount) < 0 {
		return domain.E(domain.KindCapacity, op, "base allowance %s below %s", allowed, amount)
	}
	return nil
}

// settleBuy moves assets for an already-validated buy. Assumes p.mu held.
func (p *Pool) settleBuy(buyer common.Address, amountIn, tokensOut, fee *big.Int) error {
	if err := p.base.TransferFrom(p.address, buyer, p.address, amountIn); err != nil {
		return err
	}
	if err := p.tok.Mint(p.address, buyer, tokensOut); err != nil {
		return err
	}
	return p.distributeFee(fee)
}

// settleSell moves assets for an already-validated sell. Assumes p.mu held.
func (p *Pool) settleSell(seller common.Address, tokenAmountIn, netOut, fee *big.Int) error {
	if err := p.tok.TransferFrom(p.address, seller, p.address, tokenAmountIn); err != nil {
		return err
	}
	if err := p.tok.Burn(p.address, p.address, tokenAmountIn); err != nil {
		return err
	}
	if err := p.base.Transfer(p.address, seller, netOut); err != nil {
		return err
	}
	return p.distributeFee(fee)
}

// emitTrade appends and returns the immutable trade record. Assumes p.mu held.
func (p *Pool) emitTrade(side domain.TradeSide, typ domain.EventType, actor common.Address, amountIn, amountOut, fee *big.Int) domain.Event {
	evt := domain.NewEvent(typ, p.address, &domain.TradeData{
		Side:       side,
		Actor:      actor,
		AmountIn:   new(big.Int).Set(amountIn),
		AmountOut:  new(big.Int).Set(amountOut),
		FeeCharged: new(big.Int).Set(fee),
		Price:      p.crv.SpotPrice(p.soldSupply),
		SoldSupply: new(big.Int).Set(p.soldSupply),
	})
	p.log.Append(evt)
	p.logger.Info("trade executed",
		zap.String("side", string(side)),
		zap.String("actor", actor.Hex()),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", amountOut.String()),
		zap.String("fee", fee.String()),
		zap.String("sold_supply", p.soldSupply.String()))
	return evt
}

// FeePortion truncates amount*feeBps/10000. Truncation rounds in the
// payer's favor on both sides; callers that need exact-amount compatibility
// with existing integrations rely on this direction, so do not change it.
func FeePortion(amount *big.Int, feeBps uint64) *big.Int {
	if feeBps == 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(feeBps))
	return fee.Div(fee, big.NewInt(curve.BpsDenominator))
}
