package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType represents the type of engine event
type EventType int

const (
	EventPoolCreated EventType = iota
	EventPoolSeeded
	EventBought
	EventSold
	EventCurveClosed
	EventFeeUpdated
	EventFeeConfigUpdated
)

func (t EventType) String() string {
	switch t {
	case EventPoolCreated:
		return "pool_created"
	case EventPoolSeeded:
		return "pool_seeded"
	case EventBought:
		return "bought"
	case EventSold:
		return "sold"
	case EventCurveClosed:
		return "curve_closed"
	case EventFeeUpdated:
		return "fee_updated"
	case EventFeeConfigUpdated:
		return "fee_config_updated"
	default:
		return "unknown"
	}
}

// TradeSide distinguishes buys from sells in trade records.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Event is one append-only log record. Data holds the typed payload below.
// Records are immutable after creation; consumers must not modify them.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      EventType      `json:"type"`
	Pool      common.Address `json:"pool"`
	Timestamp time.Time      `json:"timestamp"`
	Data      interface{}    `json:"data"`
}

// NewEvent creates a new engine event with a fresh identifier.
func NewEvent(eventType EventType, pool common.Address, data interface{}) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Pool:      pool,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Event data structures

// PoolCreatedData describes a freshly created (token, pool) pair.
type PoolCreatedData struct {
	Token     common.Address `json:"token"`
	Name      string         `json:"name"`
	Symbol    string         `json:"symbol"`
	MaxSupply *big.Int       `json:"max_supply"`
	CurveKind string         `json:"curve_kind"`
}

// PoolSeededData records the one-time Seeding -> Active transition.
type PoolSeededData struct {
	Owner          common.Address `json:"owner"`
	InitialReserve *big.Int       `json:"initial_reserve"`
}

// TradeData is the immutable record of one executed trade. AmountIn and
// AmountOut are in smallest units of the respective asset; Price is the
// post-trade spot price in base units per token unit.
type TradeData struct {
	Side       TradeSide      `json:"side"`
	Actor      common.Address `json:"actor"`
	AmountIn   *big.Int       `json:"amount_in"`
	AmountOut  *big.Int       `json:"amount_out"`
	FeeCharged *big.Int       `json:"fee_charged"`
	Price      *big.Int       `json:"price"`
	SoldSupply *big.Int       `json:"sold_supply"`
}

// CurveClosedData snapshots the final pool state for audit.
type CurveClosedData struct {
	Owner        common.Address `json:"owner"`
	FinalReserve *big.Int       `json:"final_reserve"`
	FinalSupply  *big.Int       `json:"final_supply"`
}

// FeeUpdatedData records an executed timelocked fee change.
type FeeUpdatedData struct {
	OldFeeBps uint64 `json:"old_fee_bps"`
	NewFeeBps uint64 `json:"new_fee_bps"`
}

// FeeConfigUpdatedData records a fee split reconfiguration.
type FeeConfigUpdatedData struct {
	PlatformBps  uint64 `json:"platform_bps"`
	CreatorBps   uint64 `json:"creator_bps"`
	BurnBps      uint64 `json:"burn_bps"`
	LiquidityBps uint64 `json:"liquidity_bps"`
}
