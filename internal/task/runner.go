package task

import (
	"context"
	"math/big"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/curvelaunch/curved/internal/client"
	"github.com/curvelaunch/curved/internal/domain"
	"github.com/curvelaunch/curved/internal/events"
	"github.com/curvelaunch/curved/internal/metrics"
	"github.com/curvelaunch/curved/internal/wallet"
)

// Result is the outcome of one executed task. Err is nil on success.
type Result struct {
	Task      *Task
	TxID      uuid.UUID
	AmountOut *big.Int
	Err       error
}

// Runner executes loaded tasks against the engine with a bounded worker
// pool. Each distinct wallet gets its own client so concurrent tasks never
// share a signer.
type Runner struct {
	provider    client.Provider
	broadcaster client.Broadcaster
	log         *events.Log
	wallets     map[string]*wallet.Wallet
	cfg         client.Config
	workers     int
	logger      *zap.Logger
}

// NewRunner wires a runner. workers <= 0 means unbounded.
func NewRunner(provider client.Provider, broadcaster client.Broadcaster, log *events.Log,
	wallets map[string]*wallet.Wallet, cfg client.Config, workers int, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		provider:    provider,
		broadcaster: broadcaster,
		log:         log,
		wallets:     wallets,
		cfg:         cfg,
		workers:     workers,
		logger:      logger.Named("runner"),
	}
}

// Run executes all tasks and returns one result per task, in task order.
// Individual task failures are recorded, not fatal; the returned error
// covers only context cancellation.
func (r *Runner) Run(ctx context.Context, tasks []*Task) ([]Result, error) {
	results := make([]Result, len(tasks))

	g, gCtx := errgroup.WithContext(ctx)
	if r.workers > 0 {
		g.SetLimit(r.workers)
	}

	for i, t := range tasks {
		g.Go(func() error {
			results[i] = r.execute(gCtx, t)
			return gCtx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (r *Runner) execute(ctx context.Context, t *Task) Result {
	res := Result{Task: t}

	w, ok := r.wallets[t.WalletName]
	if !ok {
		res.Err = domain.E(domain.KindValidation, "task.Run", "unknown wallet %q", t.WalletName)
		r.logger.Warn("task skipped, unknown wallet",
			zap.String("task_name", t.TaskName), zap.String("wallet", t.WalletName))
		return res
	}

	cfg := r.cfg
	cfg.Slippage = client.SlippageConfig{Mode: client.SlippagePercent, Bps: t.SlippageBps}
	c, err := client.New(r.provider, r.broadcaster, r.log, cfg, r.logger)
	if err != nil {
		res.Err = err
		return res
	}
	c.Authenticate(w)

	err = metrics.MeasureTrade(string(t.Operation), func() error {
		var trade *client.TradeResult
		var tradeErr error
		switch t.Operation {
		case OperationBuy:
			trade, tradeErr = c.BuyTokens(ctx, t.Token, t.AmountInt(), nil)
		case OperationSell:
			trade, tradeErr = c.SellTokens(ctx, t.Token, t.AmountInt(), nil)
		}
		if tradeErr != nil {
			return tradeErr
		}
		res.TxID = trade.TxID
		res.AmountOut = trade.AmountOut
		return nil
	})
	if err != nil {
		res.Err = err
		r.logger.Warn("task failed",
			zap.String("task_name", t.TaskName),
			zap.String("operation", string(t.Operation)),
			zap.Error(err))
		return res
	}

	r.logger.Info("task completed",
		zap.String("task_name", t.TaskName),
		zap.String("operation", string(t.Operation)),
		zap.String("amount_out", res.AmountOut.String()))
	return res
}
