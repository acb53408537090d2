package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/estimator"
	"github.com/alanyoungcy/bonddesk/internal/pipeline"
	"github.com/alanyoungcy/bonddesk/internal/server"
	"github.com/alanyoungcy/bonddesk/internal/server/handler"
	"github.com/alanyoungcy/bonddesk/internal/server/ws"
	"github.com/alanyoungcy/bonddesk/internal/service"
	"github.com/alanyoungcy/bonddesk/internal/store/memory"
)

const shutdownTimeout = 10 * time.Second

// services holds the domain services shared by the modes.
type services struct {
	recorder  *service.QuoteRecorder
	bonds     *service.BondService
	orders    *service.OrderService
	portfolio *service.PortfolioService
	watchlist *service.WatchlistService
	reference *service.ReferenceSync
}

func (a *App) buildServices(deps *Dependencies) *services {
	st := deps.Store
	recorder := service.NewQuoteRecorder(st.Market, a.logger).
		WithMirror(deps.QuoteCache, deps.SignalBus)

	return &services{
		recorder: recorder,
		bonds: service.NewBondService(
			st.Bonds, st.Market, deps.Upstream,
			estimator.New(a.policy()), recorder, deps.Metrics, a.logger,
		),
		orders: service.NewOrderService(st.Orders, st.Bonds, deps.Upstream, a.logger).
			WithLimiter(deps.RateLimiter).
			WithEvents(deps.SignalBus, deps.Notifier),
		portfolio: service.NewPortfolioService(st.Holdings, st.Bonds, st.Market, a.logger),
		watchlist: service.NewWatchlistService(st.Watchlist, st.Bonds),
		reference: service.NewReferenceSync(st.Bonds, deps.Upstream, a.cfg.Sync.InstrumentLimit, a.logger),
	}
}

// policy converts the configured spread policy, keeping defaults for unset
// values.
func (a *App) policy() estimator.Policy {
	p := estimator.DefaultPolicy()
	q := a.cfg.Quotes
	if q.HalfSpread > 0 {
		p.HalfSpread = decimal.NewFromFloat(q.HalfSpread)
	}
	if q.BidYieldSkew > 0 {
		p.BidYieldSkew = decimal.NewFromFloat(q.BidYieldSkew)
	}
	if q.AskYieldSkew > 0 {
		p.AskYieldSkew = decimal.NewFromFloat(q.AskYieldSkew)
	}
	if q.PlaceholderSize > 0 {
		p.Size = decimal.NewFromInt(q.PlaceholderSize)
	}
	if q.PlaceholderMinSize > 0 {
		p.MinSize = decimal.NewFromInt(q.PlaceholderMinSize)
	}
	return p
}

// prepareStore loads the bond snapshot file, seeds the sample bonds when
// enabled and warms market data from the redis mirror.
func (a *App) prepareStore(ctx context.Context, deps *Dependencies, svc *services) {
	a.loadSeedFile(ctx, deps)

	if a.cfg.Store.SeedSampleBonds {
		n, err := deps.Store.Seed(ctx, memory.SampleBonds())
		if err != nil {
			a.logger.WarnContext(ctx, "seeding sample bonds failed", slog.String("error", err.Error()))
		} else {
			a.logger.InfoContext(ctx, "sample bonds seeded", slog.Int("inserted", n))
		}
	}

	if deps.QuoteCache == nil {
		return
	}
	bonds, err := deps.Store.Bonds.Search(ctx, domain.BondFilter{})
	if err != nil {
		a.logger.WarnContext(ctx, "warm start: list bonds failed", slog.String("error", err.Error()))
		return
	}
	ids := make([]string, len(bonds))
	for i, b := range bonds {
		ids[i] = b.ID
	}
	if _, err := svc.recorder.Warm(ctx, ids); err != nil {
		a.logger.WarnContext(ctx, "warm start from quote mirror failed", slog.String("error", err.Error()))
	}
}

func (a *App) loadSeedFile(ctx context.Context, deps *Dependencies) {
	path := a.cfg.Store.SeedFile
	if path == "" {
		return
	}
	n, err := deps.Store.LoadBondsFile(ctx, path)
	if err != nil {
		a.logger.WarnContext(ctx, "loading seed file failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.InfoContext(ctx, "seed file loaded", slog.String("path", path), slog.Int("inserted", n))
}

// syncReference runs one reference import. Failures are logged and the
// caller carries on with the bonds it already has.
func (a *App) syncReference(ctx context.Context, svc *services) {
	if _, err := svc.reference.Sync(ctx); err != nil {
		a.logger.WarnContext(ctx, "startup reference sync failed", slog.String("error", err.Error()))
	}
}

func (a *App) newPoller(deps *Dependencies, svc *services) *pipeline.QuotePoller {
	if !a.cfg.Sync.Enabled {
		return nil
	}
	return pipeline.NewQuotePoller(
		deps.Store.Bonds, deps.Upstream, svc.recorder, deps.Notifier, deps.Metrics,
		pipeline.PollerConfig{
			Interval:   a.cfg.Sync.Interval.Duration,
			BatchSize:  a.cfg.Sync.BatchSize,
			BatchDelay: a.cfg.Sync.BatchDelay.Duration,
		},
		a.logger,
	)
}

func (a *App) startPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies, poller *pipeline.QuotePoller) {
	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, a.logger)
	}
	if poller == nil && archiver == nil {
		a.logger.InfoContext(ctx, "no background pipelines enabled")
		return
	}
	orch := pipeline.NewOrchestrator(poller, archiver, a.cfg.S3.ArchiveCron, a.logger)
	g.Go(func() error {
		return orch.Run(ctx)
	})
}

// FullMode runs the API server, the push hub, the quote poller and the
// archiver in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	svc := a.buildServices(deps)
	a.prepareStore(ctx, deps, svc)
	poller := a.newPoller(deps, svc)

	hub := a.newHub(deps, svc, false)
	svc.recorder.WithBroadcaster(hub)

	g, ctx := errgroup.WithContext(ctx)
	a.startPipeline(ctx, g, deps, poller)
	a.startHTTPServer(ctx, g, deps, svc, hub, poller)

	return g.Wait()
}

// ServerMode runs the API server and push hub only. Quotes recorded by a
// separate sync process arrive over the redis bus; the relay stores them
// before pushing them to clients.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	svc := a.buildServices(deps)
	a.prepareStore(ctx, deps, svc)

	hub := a.newHub(deps, svc, true)
	// With a bus, locally recorded quotes come back through the relay.
	if deps.SignalBus == nil {
		svc.recorder.WithBroadcaster(hub)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc, hub, nil)

	return g.Wait()
}

// SyncMode runs the quote poller and archiver without an HTTP listener. It
// imports reference data first so the poller has bonds to poll.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sync mode")

	if !a.cfg.Sync.Enabled {
		a.logger.WarnContext(ctx, "sync.enabled is false, but sync mode always runs the poller")
		a.cfg.Sync.Enabled = true
	}
	if deps.SignalBus == nil {
		a.logger.WarnContext(ctx, "redis is disabled; polled quotes stay local to this process")
	}

	svc := a.buildServices(deps)
	a.prepareStore(ctx, deps, svc)
	a.syncReference(ctx, svc)

	g, ctx := errgroup.WithContext(ctx)
	a.startPipeline(ctx, g, deps, a.newPoller(deps, svc))
	return g.Wait()
}

// ImportMode imports upstream reference data once, writes every known bond
// to the seed file and returns. Later runs in any mode load that file.
func (a *App) ImportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting import mode")

	svc := a.buildServices(deps)
	a.loadSeedFile(ctx, deps)

	res, err := svc.reference.Sync(ctx)
	if err != nil {
		return fmt.Errorf("import mode: %w", err)
	}
	n, err := deps.Store.SaveBondsFile(ctx, a.cfg.Store.SeedFile)
	if err != nil {
		return fmt.Errorf("import mode: %w", err)
	}
	a.logger.InfoContext(ctx, "import finished",
		slog.Int("synced", res.Synced),
		slog.Int("skipped", res.Skipped),
		slog.Int("total", res.Total),
		slog.String("seed_file", a.cfg.Store.SeedFile),
		slog.Int("saved", n),
	)
	return nil
}

// newHub builds the push hub. relay subscribes it to the redis quote
// channel, which is only wanted when the poller runs elsewhere; relayed
// quotes are applied to the local store before they are pushed.
func (a *App) newHub(deps *Dependencies, svc *services, relay bool) *ws.Hub {
	cfg := ws.Config{FilterBySubscription: a.cfg.WS.FilterBySubscription}
	if relay && deps.SignalBus != nil {
		cfg.Relay = deps.SignalBus
		cfg.RelayChannel = service.QuoteChannel
		cfg.RelaySink = svc.recorder
	}
	return ws.NewHub(svc.bonds, deps.Metrics, cfg, a.logger)
}

func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	svc *services,
	hub *ws.Hub,
	poller *pipeline.QuotePoller,
) {
	// A nil *QuotePoller must not become a non-nil interface.
	var trigger handler.QuoteTrigger
	if poller != nil {
		trigger = poller
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.cfg.Mode, handler.StatusSource{
			BreakerState: deps.Upstream.BreakerState,
			Counts:       storeCounts(deps.Store),
			WSClients:    hub.ClientCount,
		}, a.logger),
		Bonds:     handler.NewBondHandler(svc.bonds, a.logger),
		Orders:    handler.NewOrderHandler(svc.orders, a.logger),
		Portfolio: handler.NewPortfolioHandler(svc.portfolio, a.logger),
		Watchlist: handler.NewWatchlistHandler(svc.watchlist, a.logger),
		Sync:      handler.NewSyncHandler(svc.reference, trigger, a.logger),
		Analytics: handler.NewAnalyticsHandler(deps.Upstream, svc.bonds, a.logger),
	}
	if deps.Metrics != nil {
		handlers.Metrics = deps.Metrics.Handler()
	}

	srv := server.NewServer(server.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
		MetricsPath: a.cfg.Metrics.Path,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// storeCounts reports entity counts for the health check.
func storeCounts(st *memory.Store) func(ctx context.Context) (map[string]int, error) {
	return func(ctx context.Context) (map[string]int, error) {
		bonds, err := st.Bonds.Count(ctx)
		if err != nil {
			return nil, err
		}
		orders, err := st.Orders.List(ctx, "")
		if err != nil {
			return nil, err
		}
		market, err := st.Market.List(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int{
			"bonds":       bonds,
			"orders":      len(orders),
			"market_data": len(market),
		}, nil
	}
}

// isShutdown reports whether err only signals a cancelled run.
func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
