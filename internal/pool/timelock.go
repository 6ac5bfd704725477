// =============================
// File: internal/pool/timelock.go
// =============================
package pool

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/domain"
)

// feeChange is the at-most-one pending fee-rate change per pool.
type feeChange struct {
	newFeeBps   uint64
	scheduledAt time.Time
	readyAt     time.Time
}

// ScheduleFeeChange stages a new fee rate behind the timelock. A fee change
// moves the economics of every open position, so it only takes effect after
// the mandatory delay; scheduling again overwrites any unexecuted request.
// Owner-only.
func (p *Pool) ScheduleFeeChange(owner common.Address, newFeeBps uint64) error {
	const op = "pool.ScheduleFeeChange"
	p.mu.Lock()
	defer p.mu.Unlock()

	if owner != p.owner {
		return domain.E(domain.KindAuthorization, op, "caller %s is not the pool owner", owner.Hex())
	}
	if p.state == StateClosed {
		return domain.E(domain.KindState, op, "curve inactive")
	}
	if newFeeBps > p.cfg.MaxFeeBps {
		return domain.E(domain.KindValidation, op,
			"fee %d bps above maximum %d bps", newFeeBps, p.cfg.MaxFeeBps)
	}

	now := p.now()
	p.pending = &feeChange{
		newFeeBps:   newFeeBps,
		scheduledAt: now,
		readyAt:     now.Add(p.cfg.TimelockDuration),
	}
	p.logger.Info("fee change scheduled",
		zap.Uint64("new_fee_bps", newFeeBps),
		zap.Time("ready_at", p.pending.readyAt))
	return nil
}

// ExecuteFeeChange applies the pending fee change once the delay has
// elapsed. Readiness is evaluated lazily at call time; there is no
// background scheduler.
func (p *Pool) ExecuteFeeChange(owner common.Address) (domain.Event, error) {
	const op = "pool.ExecuteFeeChange"
	p.mu.Lock()
	defer p.mu.Unlock()

	if owner != p.owner {
		return domain.Event{}, domain.E(domain.KindAuthorization, op, "caller %s is not the pool owner", owner.Hex())
	}
	if p.state == StateClosed {
		return domain.Event{}, domain.E(domain.KindState, op, "curve inactive")
	}
	if p.pending == nil {
		return domain.Event{}, domain.E(domain.KindState, op, "no fee change scheduled")
	}
	if now := p.now(); now.Before(p.pending.readyAt) {
		return domain.Event{}, domain.E(domain.KindTimelock, op,
			"fee change not ready until %s", p.pending.readyAt.Format(time.RFC3339))
	}

	old := p.feeBps
	p.feeBps = p.pending.newFeeBps
	p.pending = nil

	evt := domain.NewEvent(domain.EventFeeUpdated, p.address, &domain.FeeUpdatedData{
		OldFeeBps: old,
		NewFeeBps: p.feeBps,
	})
	p.log.Append(evt)
	p.logger.Info("fee updated",
		zap.Uint64("old_fee_bps", old),
		zap.Uint64("new_fee_bps", p.feeBps))
	return evt, nil
}

// PendingFeeChange reports the staged change, if any.
func (p *Pool) PendingFeeChange() (newFeeBps uint64, readyAt time.Time, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return 0, time.Time{}, false
	}
	return p.pending.newFeeBps, p.pending.readyAt, true
}
