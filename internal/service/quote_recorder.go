package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// QuoteChannel is the signal bus channel quote updates are published on.
const QuoteChannel = "quotes"

// QuoteBroadcaster pushes quote updates to connected stream clients.
type QuoteBroadcaster interface {
	BroadcastQuote(q domain.Quote)
}

// QuoteRecorder applies quotes to the market data store and fans the
// applied ones out. The store stays authoritative: the cache and bus are
// written after the store and their failures are only logged.
type QuoteRecorder struct {
	market domain.MarketDataStore
	hub    QuoteBroadcaster
	cache  domain.QuoteCache
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewQuoteRecorder creates a QuoteRecorder over the market data store.
func NewQuoteRecorder(market domain.MarketDataStore, logger *slog.Logger) *QuoteRecorder {
	return &QuoteRecorder{
		market: market,
		logger: logger.With(slog.String("component", "quote_recorder")),
	}
}

// WithBroadcaster attaches the stream hub.
func (r *QuoteRecorder) WithBroadcaster(hub QuoteBroadcaster) *QuoteRecorder {
	r.hub = hub
	return r
}

// WithMirror attaches an external quote cache and event bus. Either may be
// nil.
func (r *QuoteRecorder) WithMirror(cache domain.QuoteCache, bus domain.SignalBus) *QuoteRecorder {
	r.cache = cache
	r.bus = bus
	return r
}

// Record stores q as the bond's market data snapshot and publishes it. Quotes
// without any price are not recorded. It reports whether q was applied; a
// quote older than the stored snapshot is dropped.
func (r *QuoteRecorder) Record(ctx context.Context, q domain.Quote) (bool, error) {
	applied, err := r.Apply(ctx, q)
	if err != nil || !applied {
		return false, err
	}
	r.publish(ctx, q)
	return true, nil
}

// Apply stores q like Record but publishes nothing. It is used for quotes
// that arrive from the bus, which were already published by their producer.
func (r *QuoteRecorder) Apply(ctx context.Context, q domain.Quote) (bool, error) {
	if !q.HasPrices() {
		return false, nil
	}

	applied, err := r.market.Upsert(ctx, domain.MarketDataFromQuote(q))
	if err != nil {
		return false, fmt.Errorf("quote_recorder: upsert %q: %w", q.BondID, err)
	}
	if !applied {
		r.logger.DebugContext(ctx, "stale quote dropped",
			slog.String("bond_id", q.BondID),
			slog.Time("timestamp", q.Timestamp),
		)
	}
	return applied, nil
}

func (r *QuoteRecorder) publish(ctx context.Context, q domain.Quote) {
	if r.hub != nil {
		r.hub.BroadcastQuote(q)
	}
	if r.cache != nil {
		if err := r.cache.SetQuote(ctx, q); err != nil {
			r.logger.WarnContext(ctx, "quote mirror write failed",
				slog.String("bond_id", q.BondID),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.bus != nil {
		payload, _ := json.Marshal(domain.QuoteUpdate{
			Type:   domain.MessageQuoteUpdate,
			BondID: q.BondID,
			Quote:  q,
		})
		if err := r.bus.Publish(ctx, QuoteChannel, payload); err != nil {
			r.logger.WarnContext(ctx, "quote publish failed",
				slog.String("bond_id", q.BondID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Warm loads mirrored quotes for bondIDs into the market data store without
// broadcasting them. It returns how many snapshots were applied.
func (r *QuoteRecorder) Warm(ctx context.Context, bondIDs []string) (int, error) {
	if r.cache == nil || len(bondIDs) == 0 {
		return 0, nil
	}
	quotes, err := r.cache.GetQuotes(ctx, bondIDs)
	if err != nil {
		return 0, fmt.Errorf("quote_recorder: warm: %w", err)
	}

	applied := 0
	for _, q := range quotes {
		if !q.HasPrices() {
			continue
		}
		ok, err := r.market.Upsert(ctx, domain.MarketDataFromQuote(q))
		if err != nil {
			return applied, fmt.Errorf("quote_recorder: warm %q: %w", q.BondID, err)
		}
		if ok {
			applied++
		}
	}
	r.logger.InfoContext(ctx, "market data warmed from mirror", slog.Int("applied", applied))
	return applied, nil
}

// Latest returns the stored snapshots for bondIDs as quotes. Unknown ids are
// skipped.
func (r *QuoteRecorder) Latest(ctx context.Context, bondIDs []string) []domain.Quote {
	out := make([]domain.Quote, 0, len(bondIDs))
	for _, id := range bondIDs {
		md, err := r.market.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, quoteFromMarketData(md))
	}
	return out
}

func quoteFromMarketData(md domain.MarketData) domain.Quote {
	return domain.Quote{
		BondID:    md.BondID,
		BidPrice:  md.BidPrice,
		AskPrice:  md.AskPrice,
		BidSize:   md.BidSize,
		AskSize:   md.AskSize,
		Timestamp: md.Timestamp,
		Status:    domain.QuoteStatus(md.QuoteStatus),
	}
}
