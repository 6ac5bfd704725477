// =============================
// File: internal/pool/fees.go
// =============================
package pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/curve"
	"github.com/curvelaunch/curved/internal/domain"
)

// FeeSplit divides a trade's fee between the platform treasury, the token
// creator, a burn, and the liquidity recipient. Components are basis points
// and may sum to less than 10000; the remainder goes to liquidity.
type FeeSplit struct {
	PlatformBps  uint64
	CreatorBps   uint64
	BurnBps      uint64
	LiquidityBps uint64
}

// Validate rejects splits summing above 10000 bps. Called at configuration
// time, never per trade.
func (s FeeSplit) Validate() error {
	total := s.PlatformBps + s.CreatorBps + s.BurnBps + s.LiquidityBps
	if total > curve.BpsDenominator {
		return domain.E(domain.KindValidation, "pool.FeeSplit",
			"fee split components sum to %d bps, above %d", total, curve.BpsDenominator)
	}
	return nil
}

// SetFeeSplit reconfigures fee routing. Owner-only; a nil split restores
// treasury-only routing.
func (p *Pool) SetFeeSplit(owner common.Address, split *FeeSplit) (domain.Event, error) {
	const op = "pool.SetFeeSplit"
	p.mu.Lock()
	defer p.mu.Unlock()

	if owner != p.owner {
		return domain.Event{}, domain.E(domain.KindAuthorization, op, "caller %s is not the pool owner", owner.Hex())
	}
	if p.state == StateClosed {
		return domain.Event{}, domain.E(domain.KindState, op, "curve inactive")
	}
	var data domain.FeeConfigUpdatedData
	if split != nil {
		if err := split.Validate(); err != nil {
			return domain.Event{}, err
		}
		cp := *split
		p.feeSplit = &cp
		data = domain.FeeConfigUpdatedData{
			PlatformBps:  cp.PlatformBps,
			CreatorBps:   cp.CreatorBps,
			BurnBps:      cp.BurnBps,
			LiquidityBps: cp.LiquidityBps,
		}
	} else {
		p.feeSplit = nil
		data = domain.FeeConfigUpdatedData{PlatformBps: curve.BpsDenominator}
	}

	evt := domain.NewEvent(domain.EventFeeConfigUpdated, p.address, &data)
	p.log.Append(evt)
	p.logger.Info("fee split updated",
		zap.Uint64("platform_bps", data.PlatformBps),
		zap.Uint64("creator_bps", data.CreatorBps),
		zap.Uint64("burn_bps", data.BurnBps),
		zap.Uint64("liquidity_bps", data.LiquidityBps))
	return evt, nil
}

// distributeFee routes a collected fee out of the pool's base balance in
// fixed order: platform, creator, burn, remainder to liquidity. Pools
// without a split send everything to the treasury. Assumes p.mu is held.
func (p *Pool) distributeFee(fee *big.Int) error {
	if fee == nil || fee.Sign() == 0 {
		return nil
	}
	if p.feeSplit == nil {
		return p.payFee(p.treasury, fee)
	}

	remainder := new(big.Int).Set(fee)
	platform := FeePortion(fee, p.feeSplit.PlatformBps)
	creator := FeePortion(fee, p.feeSplit.CreatorBps)
	burn := FeePortion(fee, p.feeSplit.BurnBps)
	remainder.Sub(remainder, platform)
	remainder.Sub(remainder, creator)
	remainder.Sub(remainder, burn)

	if err := p.payFee(p.treasury, platform); err != nil {
		return err
	}
	if err := p.payFee(p.creator, creator); err != nil {
		return err
	}
	if err := p.payFee(BurnAddress, burn); err != nil {
		return err
	}
	return p.payFee(p.lpRecipient, remainder)
}

func (p *Pool) payFee(to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 || to == (common.Address{}) {
		return nil
	}
	return p.base.Transfer(p.address, to, amount)
}
