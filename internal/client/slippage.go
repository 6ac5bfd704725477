// =============================
// File: internal/client/slippage.go
// =============================
package client

import (
	"math/big"

	"github.com/curvelaunch/curved/internal/curve"
)

// SlippageMode selects how the minimum acceptable output of a trade is
// derived when the caller does not pass one explicitly.
type SlippageMode string

const (
	// SlippageFixed uses the exact value from Fixed as the minimum output.
	SlippageFixed SlippageMode = "fixed"
	// SlippagePercent tolerates a shortfall of Bps basis points below the
	// quoted output.
	SlippagePercent SlippageMode = "percent"
	// SlippageNone accepts any positive output.
	SlippageNone SlippageMode = "none"
)

// DefaultSlippageBps is the tolerance applied when the caller configures
// nothing, 50 basis points (0.5%).
const DefaultSlippageBps uint64 = 50

// SlippageConfig configures the slippage policy for a client.
type SlippageConfig struct {
	Mode SlippageMode `json:"mode"`
	// Bps is the tolerated shortfall in basis points for SlippagePercent.
	Bps uint64 `json:"bps"`
	// Fixed is the exact minimum output for SlippageFixed.
	Fixed *big.Int `json:"fixed,omitempty"`
}

// DefaultSlippage returns the percent policy with DefaultSlippageBps.
func DefaultSlippage() SlippageConfig {
	return SlippageConfig{Mode: SlippagePercent, Bps: DefaultSlippageBps}
}

// MinAmountOut derives the minimum acceptable output from the quoted one.
// The percent computation floors, so the bound is never stricter than the
// configured tolerance.
func MinAmountOut(expected *big.Int, cfg SlippageConfig) *big.Int {
	switch cfg.Mode {
	case SlippageFixed:
		if cfg.Fixed != nil && cfg.Fixed.Sign() > 0 {
			return new(big.Int).Set(cfg.Fixed)
		}
		return big.NewInt(1)
	case SlippagePercent:
		if cfg.Bps >= curve.BpsDenominator {
			return big.NewInt(1)
		}
		keep := new(big.Int).SetUint64(curve.BpsDenominator - cfg.Bps)
		min := new(big.Int).Mul(expected, keep)
		min.Quo(min, new(big.Int).SetUint64(curve.BpsDenominator))
		if min.Sign() <= 0 {
			return big.NewInt(1)
		}
		return min
	default:
		// SlippageNone and anything unrecognized: the loosest bound that
		// still rejects a zero fill.
		return big.NewInt(1)
	}
}
