// =============================
// File: internal/curve/curve.go
// =============================
package curve

import (
	"math/big"

	"github.com/curvelaunch/curved/internal/domain"
)

// Kind selects the price curve shape.
type Kind string

const (
	KindLinear      Kind = "linear"
	KindExponential Kind = "exponential"
)

const (
	// BpsDenominator is the basis-point scale used across the engine.
	BpsDenominator = 10_000

	// MaxGrowthRateBps caps exponential growth at 100% per token unit.
	MaxGrowthRateBps = 10_000

	// maxExponentialSupply bounds the exponent size for exponential curves.
	// The geometric closed form raises (1+g/10000) to the supply, so the
	// numbers grow with the cap; beyond this the curve is not representable.
	maxExponentialSupply = 1 << 20
)

// Curve is a deterministic pricing function over cumulative supply. All
// amounts are non-negative integers in smallest units. A Curve is immutable
// after construction and safe for concurrent use.
type Curve struct {
	kind          Kind
	basePrice     *big.Int // base units per token unit at soldSupply = 0
	increment     *big.Int // linear: base units added per token unit already sold
	growthRateBps uint64   // exponential: per-unit growth in bps
	maxSupply     *big.Int
}

// NewLinear builds a linear curve: price(s) = basePrice + increment*s.
func NewLinear(basePrice, increment, maxSupply *big.Int) (*Curve, error) {
	if err := validateCommon(basePrice, maxSupply); err != nil {
		return nil, err
	}
	if increment == nil || increment.Sign() < 0 {
		return nil, domain.E(domain.KindValidation, "curve.NewLinear", "price increment must be non-negative")
	}
	return &Curve{
		kind:      KindLinear,
		basePrice: new(big.Int).Set(basePrice),
		increment: new(big.Int).Set(increment),
		maxSupply: new(big.Int).Set(maxSupply),
	}, nil
}

// NewExponential builds an exponential curve:
// price(s) = basePrice * (1 + growthRateBps/10000)^s.
func NewExponential(basePrice *big.Int, growthRateBps uint64, maxSupply *big.Int) (*Curve, error) {
	if err := validateCommon(basePrice, maxSupply); err != nil {
		return nil, err
	}
	if growthRateBps == 0 || growthRateBps > MaxGrowthRateBps {
		return nil, domain.E(domain.KindValidation, "curve.NewExponential",
			"growth rate must be in (0, %d] bps, got %d", MaxGrowthRateBps, growthRateBps)
	}
	if maxSupply.Cmp(big.NewInt(maxExponentialSupply)) > 0 {
		return nil, domain.E(domain.KindValidation, "curve.NewExponential",
			"max supply %s exceeds exponential curve limit %d", maxSupply, int64(maxExponentialSupply))
	}
	return &Curve{
		kind:          KindExponential,
		basePrice:     new(big.Int).Set(basePrice),
		growthRateBps: growthRateBps,
		maxSupply:     new(big.Int).Set(maxSupply),
	}, nil
}

func validateCommon(basePrice, maxSupply *big.Int) error {
	if basePrice == nil || basePrice.Sign() <= 0 {
		return domain.E(domain.KindValidation, "curve.New", "base price must be positive")
	}
	if maxSupply == nil || maxSupply.Sign() <= 0 {
		return domain.E(domain.KindValidation, "curve.New", "max supply must be positive")
	}
	return nil
}

// Kind returns the curve shape.
func (c *Curve) Kind() Kind { return c.kind }

// MaxSupply returns a copy of the supply cap.
func (c *Curve) MaxSupply() *big.Int { return new(big.Int).Set(c.maxSupply) }

// CostToBuy returns the base-asset cost of moving supply from soldSupply to
// soldSupply+amount, rounded up to the smallest base unit. amount = 0 costs
// zero. Intervals leaving [0, maxSupply] fail with a capacity error.
func (c *Curve) CostToBuy(soldSupply, amount *big.Int) (*big.Int, error) {
	if err := c.checkInterval("curve.CostToBuy", soldSupply, amount, true); err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return new(big.Int), nil
	}
	return c.rangeCost(soldSupply, amount, true), nil
}

// ProceedsToSell returns the base-asset proceeds of moving supply from
// soldSupply down to soldSupply-amount, rounded down. The asymmetry against
// CostToBuy is intentional: repeated round trips must never mint value out of
// rounding.
func (c *Curve) ProceedsToSell(soldSupply, amount *big.Int) (*big.Int, error) {
	if err := c.checkInterval("curve.ProceedsToSell", soldSupply, amount, false); err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return new(big.Int), nil
	}
	start := new(big.Int).Sub(soldSupply, amount)
	return c.rangeCost(start, amount, false), nil
}

// SpotPrice returns the marginal price at soldSupply: the cost of the next
// single token unit, rounded up.
func (c *Curve) SpotPrice(soldSupply *big.Int) *big.Int {
	return c.rangeCost(soldSupply, big.NewInt(1), true)
}

// TokensOutForBase returns the largest amount n such that
// CostToBuy(soldSupply, n) <= baseBudget. When the budget would carry the
// supply past maxSupply the call fails with a capacity error instead of
// silently truncating the fill.
func (c *Curve) TokensOutForBase(soldSupply, baseBudget *big.Int) (*big.Int, error) {
	const op = "curve.TokensOutForBase"
	if soldSupply.Sign() < 0 || soldSupply.Cmp(c.maxSupply) > 0 {
		return nil, domain.E(domain.KindValidation, op, "sold supply %s out of range", soldSupply)
	}
	if baseBudget.Sign() <= 0 {
		return new(big.Int), nil
	}
	remaining := new(big.Int).Sub(c.maxSupply, soldSupply)
	if remaining.Sign() > 0 {
		// Would the budget buy past the cap? Probe one unit beyond it.
		over := new(big.Int).Add(remaining, big.NewInt(1))
		if baseBudget.Cmp(c.rangeCost(soldSupply, over, true)) >= 0 {
			return nil, domain.E(domain.KindCapacity, op,
				"budget %s buys past max supply %s", baseBudget, c.maxSupply)
		}
	} else if remaining.Sign() == 0 {
		return nil, domain.E(domain.KindCapacity, op, "curve is sold out at max supply %s", c.maxSupply)
	}

	// Binary search over [0, remaining]; rangeCost is monotonic in amount.
	lo, hi := new(big.Int), new(big.Int).Set(remaining)
	one := big.NewInt(1)
	for lo.Cmp(hi) < 0 {
		mid := new(big.Int).Add(lo, hi)
		mid.Add(mid, one).Rsh(mid, 1)
		if c.rangeCost(soldSupply, mid, true).Cmp(baseBudget) <= 0 {
			lo.Set(mid)
		} else {
			hi.Sub(mid, one)
		}
	}
	return lo, nil
}

func (c *Curve) checkInterval(op string, soldSupply, amount *big.Int, buy bool) error {
	if soldSupply == nil || amount == nil {
		return domain.E(domain.KindValidation, op, "nil argument")
	}
	if amount.Sign() < 0 {
		return domain.E(domain.KindValidation, op, "amount must be non-negative")
	}
	if soldSupply.Sign() < 0 || soldSupply.Cmp(c.maxSupply) > 0 {
		return domain.E(domain.KindValidation, op, "sold supply %s out of range", soldSupply)
	}
	if buy {
		end := new(big.Int).Add(soldSupply, amount)
		if end.Cmp(c.maxSupply) > 0 {
			return domain.E(domain.KindCapacity, op,
				"buying %s at supply %s exceeds max supply %s", amount, soldSupply, c.maxSupply)
		}
		return nil
	}
	if soldSupply.Cmp(amount) < 0 {
		return domain.E(domain.KindCapacity, op,
			"selling %s at supply %s would push supply below zero", amount, soldSupply)
	}
	return nil
}

// rangeCost integrates the curve over [start, start+n) without interval
// checks. roundUp selects the buy rounding; sells round down.
func (c *Curve) rangeCost(start, n *big.Int, roundUp bool) *big.Int {
	if n.Sign() <= 0 {
		return new(big.Int)
	}
	if c.kind == KindLinear {
		return c.linearRangeCost(start, n)
	}
	return c.exponentialRangeCost(start, n, roundUp)
}

// linearRangeCost evaluates the arithmetic series in closed form:
// n*basePrice + increment*(n*start + n*(n-1)/2). The sum is exact in
// integers, so buy and sell rounding coincide.
func (c *Curve) linearRangeCost(start, n *big.Int) *big.Int {
	cost := new(big.Int).Mul(n, c.basePrice)

	// increment * (n*start + n*(n-1)/2)
	tri := new(big.Int).Sub(n, big.NewInt(1))
	tri.Mul(tri, n)
	tri.Rsh(tri, 1) // n*(n-1) is always even
	steps := new(big.Int).Mul(n, start)
	steps.Add(steps, tri)
	steps.Mul(steps, c.increment)

	return cost.Add(cost, steps)
}

// exponentialRangeCost evaluates the geometric series in closed form over
// exact rationals: basePrice * r^start * (r^n - 1)/(r - 1) with
// r = (10000+g)/10000, then rounds the total once in the caller's favor
// direction (up for buys, down for sells).
func (c *Curve) exponentialRangeCost(start, n *big.Int, roundUp bool) *big.Int {
	num := big.NewInt(int64(BpsDenominator + c.growthRateBps))
	den := big.NewInt(BpsDenominator)

	rStart := ratPow(num, den, start)
	rN := ratPow(num, den, n)

	sum := new(big.Rat).Sub(rN, new(big.Rat).SetInt64(1))
	rMinusOne := new(big.Rat).Sub(new(big.Rat).SetFrac(num, den), new(big.Rat).SetInt64(1))
	sum.Quo(sum, rMinusOne)
	sum.Mul(sum, rStart)
	sum.Mul(sum, new(big.Rat).SetInt(c.basePrice))

	if roundUp {
		return ratCeil(sum)
	}
	return ratFloor(sum)
}

// ratPow computes (num/den)^exp for non-negative exp.
func ratPow(num, den, exp *big.Int) *big.Rat {
	return new(big.Rat).SetFrac(
		new(big.Int).Exp(num, exp, nil),
		new(big.Int).Exp(den, exp, nil),
	)
}

func ratFloor(r *big.Rat) *big.Int {
	out := new(big.Int)
	out.Div(r.Num(), r.Denom())
	return out
}

func ratCeil(r *big.Rat) *big.Int {
	out, rem := new(big.Int), new(big.Int)
	out.DivMod(r.Num(), r.Denom(), rem)
	if rem.Sign() != 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}
