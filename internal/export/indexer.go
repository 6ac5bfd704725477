package export

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/domain"
	"github.com/curvelaunch/curved/internal/events"
)

// Indexer tails the event log and materializes executed trades into export
// records. It sees every trade exactly once because the log replays from
// the subscription cursor.
type Indexer struct {
	mu     sync.RWMutex
	trades []TradeRecord
	logger *zap.Logger
}

// NewIndexer creates an empty indexer.
func NewIndexer(logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{logger: logger.Named("indexer")}
}

// Run consumes the log until ctx ends. Non-trade events are skipped.
func (ix *Indexer) Run(ctx context.Context, log *events.Log) error {
	for evt := range log.Subscribe(ctx, 0) {
		if evt.Type != domain.EventBought && evt.Type != domain.EventSold {
			continue
		}
		td, ok := evt.Data.(*domain.TradeData)
		if !ok {
			ix.logger.Warn("trade event without trade data", zap.String("event_id", evt.ID.String()))
			continue
		}

		rec := TradeRecord{
			ID:         evt.ID.String(),
			Pool:       strings.ToLower(evt.Pool.Hex()),
			Action:     string(td.Side),
			Actor:      strings.ToLower(td.Actor.Hex()),
			AmountIn:   td.AmountIn.String(),
			AmountOut:  td.AmountOut.String(),
			Fee:        td.FeeCharged.String(),
			Price:      td.Price.String(),
			SoldSupply: td.SoldSupply.String(),
			Timestamp:  evt.Timestamp,
		}

		ix.mu.Lock()
		ix.trades = append(ix.trades, rec)
		ix.mu.Unlock()

		ix.logger.Debug("trade indexed",
			zap.String("event_id", rec.ID),
			zap.String("action", rec.Action),
			zap.String("amount_out", rec.AmountOut))
	}
	return nil
}

// Trades returns a snapshot of everything indexed so far.
func (ix *Indexer) Trades() []TradeRecord {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]TradeRecord, len(ix.trades))
	copy(out, ix.trades)
	return out
}

// Count reports how many trades have been indexed.
func (ix *Indexer) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.trades)
}
