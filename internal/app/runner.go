// internal/app/runner.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/curvelaunch/curved/internal/client"
	"github.com/curvelaunch/curved/internal/config"
	"github.com/curvelaunch/curved/internal/curve"
	"github.com/curvelaunch/curved/internal/domain"
	"github.com/curvelaunch/curved/internal/events"
	"github.com/curvelaunch/curved/internal/export"
	"github.com/curvelaunch/curved/internal/factory"
	"github.com/curvelaunch/curved/internal/metrics"
	"github.com/curvelaunch/curved/internal/pool"
	"github.com/curvelaunch/curved/internal/task"
	"github.com/curvelaunch/curved/internal/token"
	"github.com/curvelaunch/curved/internal/wallet"
)

// Engine-internal accounts. The base asset lives on an in-process ledger,
// so these only need to be unique.
var (
	baseAssetAddr = common.HexToAddress("0x0000000000000000000000000000000000000001")
	mintAuthority = common.HexToAddress("0x0000000000000000000000000000000000000002")
	treasuryAddr  = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

// walletFunding is the base-unit balance minted to every loaded wallet at
// startup. The ledger is in-process, so this is seed capital, not money.
const walletFunding = "1000000000000"

// Runner wires the whole engine: config, wallets, pools, clients, task
// execution, metrics and the trade indexer.
type Runner struct {
	logger *zap.Logger

	cfg      *config.Config
	log      *events.Log
	base     *token.Ledger
	factory  *factory.Factory
	wallets  map[string]*wallet.Wallet
	tasks    []*task.Task
	indexer  *export.Indexer
	exporter *export.TradeExporter

	shutdownCh chan os.Signal
}

// NewRunner creates an uninitialized runner.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{
		logger:     logger,
		shutdownCh: make(chan os.Signal, 1),
	}
}

// Initialize loads configuration, wallets and tasks, then boots the engine
// state: base ledger, factory, configured pools seeded and wallets funded.
func (r *Runner) Initialize(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	r.cfg = cfg

	r.wallets, err = wallet.LoadWallets(cfg.WalletsFile)
	if err != nil {
		return fmt.Errorf("load wallets: %w", err)
	}
	r.logger.Info("wallets loaded", zap.Int("count", len(r.wallets)))

	r.log = events.NewLog(r.logger)
	r.base = token.NewLedger(baseAssetAddr, "Wrapped Base", "WBASE", 9, mintAuthority)
	r.factory = factory.New(r.base, pool.Config{
		MinSeedReserve:   cfg.Engine.ReserveFloor(),
		MaxFeeBps:        cfg.Engine.MaxFeeBps,
		TimelockDuration: cfg.Engine.TimelockDuration(),
	}, r.log, r.logger)

	funding := config.Amount(walletFunding)
	for name, w := range r.wallets {
		if err := r.base.Mint(mintAuthority, w.Address, funding); err != nil {
			return fmt.Errorf("fund wallet %s: %w", name, err)
		}
	}

	if err := r.bootstrapPools(); err != nil {
		return err
	}
	pools := r.factory.List()
	metrics.SetPoolCount(len(pools))
	for _, pl := range pools {
		info := pl.CurveInfo()
		r.logger.Info("pool ready",
			zap.String("token", pl.Token().Address().Hex()),
			zap.String("price", info.Price.String()),
			zap.String("liquidity", info.Liquidity.String()))
	}

	if cfg.TasksFile != "" {
		r.tasks, err = task.NewManager(r.logger).LoadTasksYAML(cfg.TasksFile)
		if err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
	}

	r.indexer = export.NewIndexer(r.logger)
	r.exporter = export.NewTradeExporter(r.logger)
	return nil
}

// bootstrapPools creates and seeds every configured pool. The first loaded
// wallet owns and seeds them; every wallet gets a spending approval.
func (r *Runner) bootstrapPools() error {
	if len(r.cfg.Pools) == 0 {
		return nil
	}
	owner := r.anyWallet()

	for _, spec := range r.cfg.Pools {
		kind := curve.KindLinear
		if spec.Curve == "exponential" {
			kind = curve.KindExponential
		}
		_, pl, err := r.factory.CreatePool(factory.CreateParams{
			Name:           spec.Name,
			Symbol:         spec.Symbol,
			Decimals:       spec.Decimals,
			MaxSupply:      config.Amount(spec.MaxSupply),
			CurveKind:      kind,
			BasePrice:      config.Amount(spec.BasePrice),
			PriceIncrement: config.Amount(spec.PriceIncrement),
			GrowthRateBps:  spec.GrowthRateBps,
			FeeBps:         spec.FeeBps,
			Owner:          owner.Address,
			Treasury:       treasuryAddr,
			Creator:        owner.Address,
			LPRecipient:    treasuryAddr,
		})
		if err != nil {
			return fmt.Errorf("create pool %s: %w", spec.Symbol, err)
		}

		for _, w := range r.wallets {
			if err := r.base.Approve(w.Address, pl.Address(), config.Amount(walletFunding)); err != nil {
				return fmt.Errorf("approve pool %s: %w", spec.Symbol, err)
			}
			if err := pl.Token().Approve(w.Address, pl.Address(), config.Amount(spec.MaxSupply)); err != nil {
				return fmt.Errorf("approve token %s: %w", spec.Symbol, err)
			}
		}

		if _, err := pl.Seed(owner.Address, config.Amount(spec.SeedReserve)); err != nil {
			return fmt.Errorf("seed pool %s: %w", spec.Symbol, err)
		}
	}
	return nil
}

func (r *Runner) anyWallet() *wallet.Wallet {
	for _, w := range r.wallets {
		return w
	}
	return nil
}

// Run executes the loaded tasks while the indexer and the optional metrics
// endpoint run alongside, then writes the trade report.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case sig := <-r.shutdownCh:
			r.logger.Info("signal received", zap.String("signal", sig.String()))
			cancel()
		case <-runCtx.Done():
		}
	}()

	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return r.indexer.Run(gCtx, r.log)
	})
	if r.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return r.serveMetrics(gCtx)
		})
	}

	runErr := r.runTasks(runCtx)

	// Let the indexer drain everything the tasks appended, then stop the
	// side goroutines.
	r.waitForIndexer(runCtx, 2*time.Second)
	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}

	r.writeReport()
	return runErr
}

func (r *Runner) runTasks(ctx context.Context) error {
	if len(r.tasks) == 0 {
		r.logger.Info("no tasks configured, nothing to execute")
		return nil
	}

	runner := task.NewRunner(
		client.NewFactoryProvider(r.factory),
		client.NewEngineBroadcaster(r.factory, r.logger),
		r.log,
		r.wallets,
		client.Config{
			Slippage:       client.SlippageConfig{Mode: client.SlippagePercent, Bps: r.cfg.Client.SlippageBps},
			ConfirmTimeout: r.cfg.Client.ConfirmTimeout(),
			QuoteTimeout:   r.cfg.Client.QuoteTimeout(),
			TradeDeadline:  r.cfg.Client.TradeDeadline(),
		},
		r.cfg.Workers,
		r.logger,
	)

	results, err := runner.Run(ctx, r.tasks)
	if err != nil {
		return err
	}

	succeeded := 0
	for _, res := range results {
		if res.Err == nil {
			succeeded++
		}
	}
	r.logger.Info("task execution finished",
		zap.Int("total", len(results)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded))
	return nil
}

// waitForIndexer blocks until the indexer has seen every trade currently in
// the log, or the timeout passes.
func (r *Runner) waitForIndexer(ctx context.Context, timeout time.Duration) {
	want := 0
	batch, _ := r.log.From(0)
	for _, evt := range batch {
		if evt.Type == domain.EventBought || evt.Type == domain.EventSold {
			want++
		}
	}

	deadline := time.After(timeout)
	for r.indexer.Count() < want {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (r *Runner) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: r.cfg.MetricsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	r.logger.Info("metrics endpoint up", zap.String("addr", r.cfg.MetricsAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// writeReport exports everything the indexer saw. No trades is not an
// error at shutdown.
func (r *Runner) writeReport() {
	trades := r.indexer.Trades()
	if len(trades) == 0 {
		return
	}
	path, err := r.exporter.ExportTrades(trades, export.ExportOptions{
		Format:    export.FormatCSV,
		OutputDir: r.cfg.Log.Directory,
	})
	if err != nil {
		r.logger.Warn("trade report export failed", zap.Error(err))
		return
	}
	r.logger.Info("trade report written", zap.String("path", path))
}

// Shutdown flushes the logger.
func (r *Runner) Shutdown() {
	r.logger.Info("engine shutting down")
	if err := r.logger.Sync(); err != nil {
		if !os.IsNotExist(err) &&
			err.Error() != "sync /dev/stdout: invalid argument" &&
			err.Error() != "sync /dev/stderr: inappropriate ioctl for device" {
			fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
		}
	}
}
