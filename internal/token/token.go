// =============================
// File: internal/token/token.go
// =============================
package token

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/curvelaunch/curved/internal/domain"
)

// Token is the fungible-asset surface the pool depends on. Callers are
// explicit (there is no ambient transaction sender): Transfer moves the
// caller's own funds, TransferFrom spends a previously approved allowance.
type Token interface {
	Address() common.Address
	Name() string
	Symbol() string
	Decimals() uint8
	TotalSupply() *big.Int
	BalanceOf(addr common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
	Approve(owner, spender common.Address, amount *big.Int) error
	Allowance(owner, spender common.Address) *big.Int
}

// Minter extends Token with supply mutation, restricted to one authority
// (the pool for curve tokens, the seeder for the base asset in tests).
type Minter interface {
	Token
	Mint(caller, to common.Address, amount *big.Int) error
	Burn(caller, from common.Address, amount *big.Int) error
}

// Ledger is an in-memory, concurrent-safe Token implementation.
type Ledger struct {
	address  common.Address
	name     string
	symbol   string
	decimals uint8

	mu          sync.RWMutex
	authority   common.Address
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
}

// NewLedger creates an empty ledger. authority is the only address allowed
// to mint and burn; pass the zero address to freeze supply at zero.
func NewLedger(address common.Address, name, symbol string, decimals uint8, authority common.Address) *Ledger {
	return &Ledger{
		address:     address,
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		authority:   authority,
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (l *Ledger) Address() common.Address { return l.address }
func (l *Ledger) Name() string            { return l.name }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) Decimals() uint8         { return l.decimals }

func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.totalSupply)
}

func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if err := checkAmount("token.Transfer", amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	const op = "token.TransferFrom"
	if err := checkAmount(op, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowanceLocked(from, spender)
	if allowed.Cmp(amount) < 0 {
		return domain.E(domain.KindCapacity, op,
			"allowance %s of %s for spender %s below %s", allowed, l.symbol, spender.Hex(), amount)
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	allowed.Sub(allowed, amount)
	return nil
}

func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.E(domain.KindValidation, "token.Approve", "allowance must be non-negative")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	inner, ok := l.allowances[owner]
	if !ok {
		inner = make(map[common.Address]*big.Int)
		l.allowances[owner] = inner
	}
	inner[spender] = new(big.Int).Set(amount)
	return nil
}

func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.allowanceLocked(owner, spender))
}

func (l *Ledger) Mint(caller, to common.Address, amount *big.Int) error {
	const op = "token.Mint"
	if err := checkAmount(op, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.authority {
		return domain.E(domain.KindAuthorization, op, "%s is not the supply authority of %s", caller.Hex(), l.symbol)
	}
	l.credit(to, amount)
	l.totalSupply.Add(l.totalSupply, amount)
	return nil
}

func (l *Ledger) Burn(caller, from common.Address, amount *big.Int) error {
	const op = "token.Burn"
	if err := checkAmount(op, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.authority {
		return domain.E(domain.KindAuthorization, op, "%s is not the supply authority of %s", caller.Hex(), l.symbol)
	}
	bal, ok := l.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return domain.E(domain.KindCapacity, op, "balance of %s below burn amount %s", from.Hex(), amount)
	}
	bal.Sub(bal, amount)
	l.totalSupply.Sub(l.totalSupply, amount)
	return nil
}

// move assumes l.mu is held.
func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	bal, ok := l.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		have := new(big.Int)
		if ok {
			have = bal
		}
		return domain.E(domain.KindCapacity, "token.transfer",
			"balance %s of %s for %s below %s", have, l.symbol, from.Hex(), amount)
	}
	bal.Sub(bal, amount)
	l.credit(to, amount)
	return nil
}

// credit assumes l.mu is held.
func (l *Ledger) credit(to common.Address, amount *big.Int) {
	if b, ok := l.balances[to]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[to] = new(big.Int).Set(amount)
}

// allowanceLocked assumes l.mu is held (read or write).
func (l *Ledger) allowanceLocked(owner, spender common.Address) *big.Int {
	if inner, ok := l.allowances[owner]; ok {
		if a, ok := inner[spender]; ok {
			return a
		}
	}
	return new(big.Int)
}

func checkAmount(op string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.E(domain.KindValidation, op, "amount must be positive")
	}
	return nil
}
