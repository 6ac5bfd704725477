// =============================
// File: internal/client/client.go
// =============================
// Package client is the off-chain surface of the engine: quote reads that
// mirror pool pricing bit-for-bit, and signed trade submission with bounded
// confirmation waits.
package client

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/curve"
	"github.com/curvelaunch/curved/internal/domain"
	"github.com/curvelaunch/curved/internal/events"
	"github.com/curvelaunch/curved/internal/pool"
	"github.com/curvelaunch/curved/internal/wallet"
)

// PoolView is the read surface a quote needs. *pool.Pool satisfies it.
type PoolView interface {
	CurveInfo() pool.CurveInfo
	Curve() *curve.Curve
}

// Provider serves read-only pool state for quoting. Lookups may cross a
// network boundary, so provider failures are retried; an unknown token is
// permanent.
type Provider interface {
	Pool(ctx context.Context, token common.Address) (PoolView, error)
}

// Config holds the client knobs. Zero values are replaced by the defaults
// from DefaultConfig.
type Config struct {
	// Slippage derives MinAmountOut when the caller passes none.
	Slippage SlippageConfig
	// ConfirmTimeout bounds the wait for a trade confirmation.
	ConfirmTimeout time.Duration
	// QuoteTimeout bounds the total retry window for provider reads.
	QuoteTimeout time.Duration
	// TradeDeadline is how far in the future a submitted trade stays valid.
	TradeDeadline time.Duration
}

// DefaultConfig returns the stock client configuration.
func DefaultConfig() Config {
	return Config{
		Slippage:       DefaultSlippage(),
		ConfirmTimeout: 30 * time.Second,
		QuoteTimeout:   10 * time.Second,
		TradeDeadline:  2 * time.Minute,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Slippage.Mode == "" {
		c.Slippage = def.Slippage
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = def.ConfirmTimeout
	}
	if c.QuoteTimeout <= 0 {
		c.QuoteTimeout = def.QuoteTimeout
	}
	if c.TradeDeadline <= 0 {
		c.TradeDeadline = def.TradeDeadline
	}
}

// BuyQuote reports what a buy of AmountIn base units would execute at right
// now. TokensOut mirrors pool execution exactly.
type BuyQuote struct {
	Token         common.Address
	AmountIn      *big.Int
	Fee           *big.Int
	NetIn         *big.Int
	TokensOut     *big.Int
	PricePerToken *big.Int
	FeeBps        uint64
}

// SellQuote reports what a sell of TokensIn token units would return.
type SellQuote struct {
	Token         common.Address
	TokensIn      *big.Int
	GrossOut      *big.Int
	Fee           *big.Int
	NetOut        *big.Int
	PricePerToken *big.Int
	FeeBps        uint64
}

// TradeResult is the confirmed outcome of one submitted trade. Amounts come
// from the engine's trade record; when that record cannot be parsed the
// client falls back to the request's own bounds and says so in Estimated.
type TradeResult struct {
	TxID      uuid.UUID
	Side      domain.TradeSide
	AmountIn  *big.Int
	AmountOut *big.Int
	Fee       *big.Int
	Price     *big.Int
	Confirmed time.Time
	Estimated bool
}

// Client quotes and executes bonding-curve trades on behalf of one wallet.
type Client struct {
	provider    Provider
	broadcaster Broadcaster
	log         *events.Log
	cfg         Config
	w           *wallet.Wallet
	logger      *zap.Logger
	now         func() time.Time
}

// New builds a client. The wallet is attached later via Authenticate;
// quoting works without one.
func New(provider Provider, broadcaster Broadcaster, log *events.Log, cfg Config, logger *zap.Logger) (*Client, error) {
	const op = "client.New"
	if provider == nil {
		return nil, domain.E(domain.KindValidation, op, "provider is required")
	}
	if broadcaster == nil {
		return nil, domain.E(domain.KindValidation, op, "broadcaster is required")
	}
	if log == nil {
		return nil, domain.E(domain.KindValidation, op, "event log is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Client{
		provider:    provider,
		broadcaster: broadcaster,
		log:         log,
		cfg:         cfg,
		logger:      logger.Named("client"),
		now:         time.Now,
	}, nil
}

// WithClock overrides the time source. Tests use it to pin deadlines.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Authenticate attaches the signing wallet. Until it is called, BuyTokens
// and SellTokens fail with an authorization error.
func (c *Client) Authenticate(w *wallet.Wallet) {
	c.w = w
	if w != nil {
		c.logger.Info("wallet attached", zap.String("address", strings.ToLower(w.Address.Hex())))
	}
}

// ParseAddress validates a hex address string and returns its canonical
// lowercase-normalized form.
func ParseAddress(s string) (common.Address, error) {
	const op = "client.ParseAddress"
	t := strings.ToLower(strings.TrimSpace(s))
	if !common.IsHexAddress(t) {
		return common.Address{}, domain.E(domain.KindValidation, op, "%q is not a hex address", s)
	}
	return common.HexToAddress(t), nil
}

// GetBuyQuote prices a buy of baseAmountIn base units against the pool's
// current curve position. Pure read, no state change.
func (c *Client) GetBuyQuote(ctx context.Context, token string, baseAmountIn *big.Int) (*BuyQuote, error) {
	const op = "client.GetBuyQuote"

	addr, err := ParseAddress(token)
	if err != nil {
		return nil, err
	}
	if baseAmountIn == nil || baseAmountIn.Sign() <= 0 {
		return nil, domain.E(domain.KindValidation, op, "baseAmountIn must be positive")
	}

	pv, err := c.fetchPool(ctx, addr)
	if err != nil {
		return nil, err
	}
	info := pv.CurveInfo()
	if !info.Active {
		return nil, domain.E(domain.KindState, op, "curve for %s is not active", strings.ToLower(addr.Hex()))
	}

	fee := pool.FeePortion(baseAmountIn, info.FeeBps)
	net := new(big.Int).Sub(baseAmountIn, fee)
	tokensOut, err := pv.Curve().TokensOutForBase(info.TokensSold, net)
	if err != nil {
		return nil, err
	}
	if tokensOut.Sign() == 0 {
		return nil, domain.E(domain.KindValidation, op,
			"%s base units buys zero tokens at the current price", net.String())
	}

	return &BuyQuote{
		Token:         addr,
		AmountIn:      new(big.Int).Set(baseAmountIn),
		Fee:           fee,
		NetIn:         net,
		TokensOut:     tokensOut,
		PricePerToken: new(big.Int).Quo(net, tokensOut),
		FeeBps:        info.FeeBps,
	}, nil
}

// GetSellQuote prices a sell of tokenAmountIn token units. The fee comes off
// the gross proceeds, matching execution.
func (c *Client) GetSellQuote(ctx context.Context, token string, tokenAmountIn *big.Int) (*SellQuote, error) {
	const op = "client.GetSellQuote"

	addr, err := ParseAddress(token)
	if err != nil {
		return nil, err
	}
	if tokenAmountIn == nil || tokenAmountIn.Sign() <= 0 {
		return nil, domain.E(domain.KindValidation, op, "tokenAmountIn must be positive")
	}

	pv, err := c.fetchPool(ctx, addr)
	if err != nil {
		return nil, err
	}
	info := pv.CurveInfo()
	if !info.Active {
		return nil, domain.E(domain.KindState, op, "curve for %s is not active", strings.ToLower(addr.Hex()))
	}
	if tokenAmountIn.Cmp(info.TokensSold) > 0 {
		return nil, domain.E(domain.KindCapacity, op,
			"cannot sell %s tokens, only %s in circulation", tokenAmountIn.String(), info.TokensSold.String())
	}

	gross, err := pv.Curve().ProceedsToSell(info.TokensSold, tokenAmountIn)
	if err != nil {
		return nil, err
	}
	if gross.Cmp(info.Liquidity) > 0 {
		return nil, domain.E(domain.KindCapacity, op,
			"pool reserve %s cannot cover proceeds %s", info.Liquidity.String(), gross.String())
	}
	fee := pool.FeePortion(gross, info.FeeBps)
	net := new(big.Int).Sub(gross, fee)

	return &SellQuote{
		Token:         addr,
		TokensIn:      new(big.Int).Set(tokenAmountIn),
		GrossOut:      gross,
		Fee:           fee,
		NetOut:        net,
		PricePerToken: new(big.Int).Quo(gross, tokenAmountIn),
		FeeBps:        info.FeeBps,
	}, nil
}

// BuyTokens signs and submits one buy. When minTokensOut is nil the minimum
// is derived from a fresh quote via the configured slippage policy. The
// trade is submitted exactly once; the confirmation wait is bounded by
// ConfirmTimeout and a miss is reported, never retried.
func (c *Client) BuyTokens(ctx context.Context, token string, baseAmountIn, minTokensOut *big.Int) (*TradeResult, error) {
	const op = "client.BuyTokens"

	if c.w == nil {
		return nil, domain.E(domain.KindAuthorization, op, "no wallet attached, call Authenticate first")
	}
	addr, err := ParseAddress(token)
	if err != nil {
		return nil, err
	}
	if baseAmountIn == nil || baseAmountIn.Sign() <= 0 {
		return nil, domain.E(domain.KindValidation, op, "baseAmountIn must be positive")
	}
	if minTokensOut == nil {
		quote, err := c.GetBuyQuote(ctx, token, baseAmountIn)
		if err != nil {
			return nil, err
		}
		minTokensOut = MinAmountOut(quote.TokensOut, c.cfg.Slippage)
	}

	req := TradeRequest{
		Token:        addr,
		Side:         domain.SideBuy,
		Actor:        c.w.Address,
		AmountIn:     new(big.Int).Set(baseAmountIn),
		MinAmountOut: new(big.Int).Set(minTokensOut),
		Deadline:     c.now().Add(c.cfg.TradeDeadline),
		Nonce:        uuid.New(),
	}
	return c.execute(ctx, op, req)
}

// SellTokens is the sell-side mirror of BuyTokens.
func (c *Client) SellTokens(ctx context.Context, token string, tokenAmountIn, minBaseOut *big.Int) (*TradeResult, error) {
	const op = "client.SellTokens"

	if c.w == nil {
		return nil, domain.E(domain.KindAuthorization, op, "no wallet attached, call Authenticate first")
	}
	addr, err := ParseAddress(token)
	if err != nil {
		return nil, err
	}
	if tokenAmountIn == nil || tokenAmountIn.Sign() <= 0 {
		return nil, domain.E(domain.KindValidation, op, "tokenAmountIn must be positive")
	}
	if minBaseOut == nil {
		quote, err := c.GetSellQuote(ctx, token, tokenAmountIn)
		if err != nil {
			return nil, err
		}
		minBaseOut = MinAmountOut(quote.NetOut, c.cfg.Slippage)
	}

	req := TradeRequest{
		Token:        addr,
		Side:         domain.SideSell,
		Actor:        c.w.Address,
		AmountIn:     new(big.Int).Set(tokenAmountIn),
		MinAmountOut: new(big.Int).Set(minBaseOut),
		Deadline:     c.now().Add(c.cfg.TradeDeadline),
		Nonce:        uuid.New(),
	}
	return c.execute(ctx, op, req)
}

// execute signs, submits once and waits for the confirming event.
func (c *Client) execute(ctx context.Context, op string, req TradeRequest) (*TradeResult, error) {
	sig, err := c.w.SignDigest(req.Digest())
	if err != nil {
		return nil, domain.Wrap(domain.KindAuthorization, op, err, "signing trade")
	}

	id, err := c.broadcaster.Submit(ctx, &SignedTrade{Request: req, Signature: sig})
	if err != nil {
		c.logger.Warn("trade rejected",
			zap.String("side", string(req.Side)),
			zap.String("token", strings.ToLower(req.Token.Hex())),
			zap.Error(err))
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()
	evt, err := c.log.WaitFor(waitCtx, id)
	if err != nil {
		return nil, domain.Wrap(domain.KindTimeout, op, err,
			"trade %s submitted but not confirmed within %s", id, c.cfg.ConfirmTimeout)
	}

	res := c.resultFromEvent(evt, req)
	c.logger.Info("trade confirmed",
		zap.String("event_id", id.String()),
		zap.String("side", string(res.Side)),
		zap.String("amount_in", res.AmountIn.String()),
		zap.String("amount_out", res.AmountOut.String()))
	return res, nil
}

// resultFromEvent extracts executed amounts from the trade record. A record
// the client cannot parse degrades to the request's own bounds; it never
// turns a confirmed trade into a failure or the other way around.
func (c *Client) resultFromEvent(evt domain.Event, req TradeRequest) *TradeResult {
	res := &TradeResult{
		TxID:      evt.ID,
		Side:      req.Side,
		AmountIn:  new(big.Int).Set(req.AmountIn),
		AmountOut: new(big.Int).Set(req.MinAmountOut),
		Confirmed: evt.Timestamp,
		Estimated: true,
	}
	td, ok := evt.Data.(*domain.TradeData)
	if !ok || td == nil {
		c.logger.Warn("trade record unparsable, reporting request bounds",
			zap.String("event_id", evt.ID.String()))
		return res
	}
	res.AmountIn = new(big.Int).Set(td.AmountIn)
	res.AmountOut = new(big.Int).Set(td.AmountOut)
	res.Fee = new(big.Int).Set(td.FeeCharged)
	res.Price = new(big.Int).Set(td.Price)
	res.Estimated = false
	return res
}

// fetchPool retries transient provider failures with exponential backoff.
// Domain errors other than provider failures are permanent.
func (c *Client) fetchPool(ctx context.Context, token common.Address) (PoolView, error) {
	operation := func() (PoolView, error) {
		pv, err := c.provider.Pool(ctx, token)
		if err != nil {
			var de *domain.Error
			if errors.As(err, &de) && de.Kind != domain.KindProvider {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return pv, nil
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.cfg.QuoteTimeout))
}
