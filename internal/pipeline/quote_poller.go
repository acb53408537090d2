package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/metrics"
	"github.com/alanyoungcy/bonddesk/internal/notify"
)

// ErrPollerRunning is returned by Start when the poller is already running.
var ErrPollerRunning = errors.New("pipeline: quote poller already running")

// MarksFetcher retrieves a mark snapshot for a batch of instruments, keyed by
// instrument id.
type MarksFetcher interface {
	GetMarks(ctx context.Context, instrumentIDs []string) (map[string]domain.Quote, error)
}

// QuoteSink applies one quote to the market data store and fans it out.
type QuoteSink interface {
	Record(ctx context.Context, q domain.Quote) (bool, error)
}

// PollerConfig controls the quote poll cycle.
type PollerConfig struct {
	Interval   time.Duration
	BatchSize  int
	BatchDelay time.Duration
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	Batches     int
	Failed      int
	Updated     int
	Unavailable int
}

// QuotePoller periodically fetches marks for every known bond in fixed-size
// batches and records them. A failed batch is logged and skipped; it never
// ends the cycle or the loop.
type QuotePoller struct {
	bonds    domain.BondStore
	fetcher  MarksFetcher
	sink     QuoteSink
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	cfg      PollerConfig
	logger   *slog.Logger
	trigger  chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewQuotePoller creates a QuotePoller. A zero interval falls back to 30s
// and a zero batch size to 10.
func NewQuotePoller(
	bonds domain.BondStore,
	fetcher MarksFetcher,
	sink QuoteSink,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	cfg PollerConfig,
	logger *slog.Logger,
) *QuotePoller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	return &QuotePoller{
		bonds:    bonds,
		fetcher:  fetcher,
		sink:     sink,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "quote_poller")),
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger asks a running loop for an extra cycle. It reports false when a
// trigger is already pending.
func (p *QuotePoller) Trigger() bool {
	select {
	case p.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce executes one poll cycle over all stored bonds.
func (p *QuotePoller) RunOnce(ctx context.Context) (CycleStats, error) {
	bonds, err := p.bonds.Search(ctx, domain.BondFilter{})
	if err != nil {
		return CycleStats{}, fmt.Errorf("listing bonds: %w", err)
	}

	// instrument id -> local bond id
	ids := make([]string, 0, len(bonds))
	local := make(map[string]string, len(bonds))
	for _, b := range bonds {
		inst := b.ISIN
		if inst == "" {
			inst = b.ID
		}
		ids = append(ids, inst)
		local[inst] = b.ID
	}

	var stats CycleStats
	batches := chunk(ids, p.cfg.BatchSize)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("quote poller context cancelled: %w", err)
		}
		if i > 0 && p.cfg.BatchDelay > 0 {
			timer := time.NewTimer(p.cfg.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return stats, fmt.Errorf("quote poller context cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		stats.Batches++
		marks, err := p.fetcher.GetMarks(ctx, batch)
		if err != nil {
			stats.Failed++
			p.batchFailed(ctx, i, len(batches), batch, err)
			continue
		}
		p.metrics.SyncBatch(true)

		for inst, q := range marks {
			bondID, ok := local[inst]
			if !ok {
				continue
			}
			q.BondID = bondID
			if !q.HasPrices() {
				stats.Unavailable++
				p.metrics.Quote(domain.QuoteUnavailable)
				continue
			}
			applied, err := p.sink.Record(ctx, q)
			if err != nil {
				p.logger.WarnContext(ctx, "recording quote failed",
					slog.String("bond_id", bondID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if applied {
				stats.Updated++
				p.metrics.Quote(q.Status)
			}
		}
	}

	p.metrics.SyncCycle()
	p.logger.InfoContext(ctx, "quote poll cycle complete",
		slog.Int("bonds", len(ids)),
		slog.Int("batches", stats.Batches),
		slog.Int("failed", stats.Failed),
		slog.Int("updated", stats.Updated),
	)
	return stats, nil
}

func (p *QuotePoller) batchFailed(ctx context.Context, index, total int, batch []string, err error) {
	p.metrics.SyncBatch(false)
	p.logger.WarnContext(ctx, "quote batch failed",
		slog.Int("batch", index+1),
		slog.Int("of", total),
		slog.Int("size", len(batch)),
		slog.String("error", err.Error()),
	)
	if nerr := p.notifier.Notify(ctx, notify.Event{
		Type:    notify.EventSyncBatchFailed,
		Title:   "Quote sync batch failed",
		Message: err.Error(),
		Fields: map[string]string{
			"batch": strconv.Itoa(index + 1),
			"of":    strconv.Itoa(total),
			"size":  strconv.Itoa(len(batch)),
		},
	}); nerr != nil {
		p.logger.DebugContext(ctx, "batch failure notification failed", slog.String("error", nerr.Error()))
	}
}

// RunLoop polls immediately and then on every interval until ctx is
// cancelled.
func (p *QuotePoller) RunLoop(ctx context.Context) error {
	if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error("quote poll failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("quote poller loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("quote poll failed", slog.String("error", err.Error()))
			}
		case <-p.trigger:
			p.logger.Info("quote poll triggered")
			if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("quote poll failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Start runs the loop in a background goroutine owned by the poller.
func (p *QuotePoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrPollerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		_ = p.RunLoop(ctx)
	}()
	return nil
}

// Stop cancels a started loop and waits for it to exit. Stopping an idle
// poller is a no-op.
func (p *QuotePoller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func chunk(ids []string, size int) [][]string {
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
