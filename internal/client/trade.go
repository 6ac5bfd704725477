// =============================
// File: internal/client/trade.go
// =============================
package client

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/domain"
	"github.com/curvelaunch/curved/internal/pool"
	"github.com/curvelaunch/curved/internal/wallet"
)

// TradeRequest is the payload a wallet signs and a Broadcaster delivers.
// Token identifies the pool by its token address. The Nonce makes every
// digest unique so a captured signature cannot be replayed.
type TradeRequest struct {
	Token        common.Address
	Side         domain.TradeSide
	Actor        common.Address
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Deadline     time.Time
	Nonce        uuid.UUID
}

// Digest computes the keccak256 hash the wallet signs. Field order is fixed
// and the amounts are left-padded to 32 bytes so the encoding is unambiguous.
func (r *TradeRequest) Digest() []byte {
	buf := make([]byte, 0, 160)
	buf = append(buf, r.Token.Bytes()...)
	buf = append(buf, []byte(r.Side)...)
	buf = append(buf, r.Actor.Bytes()...)
	buf = append(buf, common.LeftPadBytes(r.AmountIn.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(r.MinAmountOut.Bytes(), 32)...)
	deadline := new(big.Int).SetInt64(r.Deadline.Unix())
	buf = append(buf, common.LeftPadBytes(deadline.Bytes(), 32)...)
	buf = append(buf, r.Nonce[:]...)
	return crypto.Keccak256(buf)
}

// SignedTrade pairs a request with the 65-byte secp256k1 signature over its
// digest.
type SignedTrade struct {
	Request   TradeRequest
	Signature []byte
}

// Signer recovers the address that produced the signature.
func (s *SignedTrade) Signer() (common.Address, error) {
	return wallet.RecoverSigner(s.Request.Digest(), s.Signature)
}

// Broadcaster delivers a signed trade to the engine and returns the id of
// the event recording its execution. Submit is called exactly once per
// trade; a failed submission is reported to the caller, never retried.
type Broadcaster interface {
	Submit(ctx context.Context, trade *SignedTrade) (uuid.UUID, error)
}

// PoolResolver looks up a live pool by its token address. *factory.Factory
// satisfies it.
type PoolResolver interface {
	Get(tokenAddr common.Address) (*pool.Pool, bool)
}

// EngineBroadcaster executes signed trades directly against in-process
// pools. It verifies the signature before touching any pool state.
type EngineBroadcaster struct {
	pools  PoolResolver
	logger *zap.Logger
}

// NewEngineBroadcaster wires a broadcaster to a pool registry.
func NewEngineBroadcaster(pools PoolResolver, logger *zap.Logger) *EngineBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineBroadcaster{pools: pools, logger: logger.Named("broadcaster")}
}

// Submit verifies the trade signature, resolves the pool and executes the
// trade. The pool's own error is returned untouched so the caller sees the
// real failure kind.
func (b *EngineBroadcaster) Submit(ctx context.Context, trade *SignedTrade) (uuid.UUID, error) {
	const op = "client.Submit"

	if err := ctx.Err(); err != nil {
		return uuid.Nil, domain.Wrap(domain.KindTimeout, op, err, "context finished before submission")
	}
	signer, err := trade.Signer()
	if err != nil {
		return uuid.Nil, domain.Wrap(domain.KindAuthorization, op, err, "invalid trade signature")
	}
	if signer != trade.Request.Actor {
		return uuid.Nil, domain.E(domain.KindAuthorization, op,
			"signature recovered %s but trade actor is %s",
			strings.ToLower(signer.Hex()), strings.ToLower(trade.Request.Actor.Hex()))
	}

	p, ok := b.pools.Get(trade.Request.Token)
	if !ok {
		return uuid.Nil, domain.E(domain.KindValidation, op,
			"no pool for token %s", strings.ToLower(trade.Request.Token.Hex()))
	}

	var evt domain.Event
	switch trade.Request.Side {
	case domain.SideBuy:
		evt, err = p.Buy(trade.Request.Actor, trade.Request.AmountIn, trade.Request.MinAmountOut, trade.Request.Deadline)
	case domain.SideSell:
		evt, err = p.Sell(trade.Request.Actor, trade.Request.AmountIn, trade.Request.MinAmountOut, trade.Request.Deadline)
	default:
		return uuid.Nil, domain.E(domain.KindValidation, op, "unknown trade side %q", trade.Request.Side)
	}
	if err != nil {
		return uuid.Nil, err
	}

	b.logger.Debug("trade executed",
		zap.String("event_id", evt.ID.String()),
		zap.String("side", string(trade.Request.Side)),
		zap.String("actor", strings.ToLower(trade.Request.Actor.Hex())))
	return evt.ID, nil
}
