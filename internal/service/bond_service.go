package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/estimator"
	"github.com/alanyoungcy/bonddesk/internal/metrics"
	"github.com/alanyoungcy/bonddesk/internal/normalize"
)

// DefaultFrequency is the price history sampling used when none is given.
const DefaultFrequency = "1day"

// chartWindow is the price-chart range when the caller gives none.
const chartWindow = 30 * 24 * time.Hour

// MarketDataSource is the part of the upstream API the bond service reads.
type MarketDataSource interface {
	GetQuote(ctx context.Context, id string, quantity domain.Num) (domain.Quote, error)
	GetOrderBook(ctx context.Context, id string) (domain.OrderBook, error)
	GetPriceHistory(ctx context.Context, id, start, end, frequency string) (domain.PriceHistory, error)
}

// BondService serves bond reference data and market data. Upstream failures
// never reach callers: quotes fall back to the estimator, order books and
// price series to empty results.
type BondService struct {
	bonds    domain.BondStore
	market   domain.MarketDataStore
	upstream MarketDataSource
	est      *estimator.Estimator
	recorder *QuoteRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewBondService creates a BondService. upstream may be nil, in which case
// every quote is estimated.
func NewBondService(
	bonds domain.BondStore,
	market domain.MarketDataStore,
	upstream MarketDataSource,
	est *estimator.Estimator,
	recorder *QuoteRecorder,
	m *metrics.Metrics,
	logger *slog.Logger,
) *BondService {
	return &BondService{
		bonds:    bonds,
		market:   market,
		upstream: upstream,
		est:      est,
		recorder: recorder,
		metrics:  m,
		logger:   logger.With(slog.String("component", "bond_service")),
		now:      time.Now,
	}
}

// Search returns the bonds matching filter.
func (s *BondService) Search(ctx context.Context, filter domain.BondFilter) ([]domain.Bond, error) {
	bonds, err := s.bonds.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("bond_service: search: %w", err)
	}
	return bonds, nil
}

// Get returns a bond by id or ISIN together with its market data snapshot.
func (s *BondService) Get(ctx context.Context, id string) (domain.BondDetail, error) {
	b, err := lookupBond(ctx, s.bonds, id)
	if err != nil {
		return domain.BondDetail{}, fmt.Errorf("bond_service: get %q: %w", id, err)
	}
	detail := domain.BondDetail{Bond: b}
	if md, err := s.market.Get(ctx, b.ID); err == nil {
		detail.MarketData = &md
	}
	return detail, nil
}

// Quote returns the live quote for id, or an estimate when the upstream
// has none. Unknown bonds yield a no_data_available quote rather than an
// error. Priced quotes for stored bonds update the market data snapshot.
func (s *BondService) Quote(ctx context.Context, id string, quantity domain.Num) (domain.Quote, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Quote{}, fmt.Errorf("bond_service: quote: %w: bond id required", domain.ErrInvalidInput)
	}

	var ref *domain.Bond
	bondID, instrument := id, id
	if b, err := lookupBond(ctx, s.bonds, id); err == nil {
		ref = &b
		bondID, instrument = b.ID, instrumentID(b)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Quote{}, fmt.Errorf("bond_service: quote %q: %w", id, err)
	}

	var live *domain.Quote
	if s.upstream != nil {
		q, err := s.upstream.GetQuote(ctx, instrument, quantity)
		if err != nil {
			s.logger.WarnContext(ctx, "upstream quote failed, estimating",
				slog.String("bond_id", bondID),
				slog.String("error", err.Error()),
			)
		} else {
			live = &q
		}
	}

	q := s.est.Resolve(bondID, live, ref)
	s.metrics.Quote(q.Status)

	// Only known bonds get a market data snapshot.
	if s.recorder != nil && ref != nil {
		if _, err := s.recorder.Record(ctx, q); err != nil {
			s.logger.WarnContext(ctx, "market data update failed",
				slog.String("bond_id", bondID),
				slog.String("error", err.Error()),
			)
		}
	}
	return q, nil
}

// OrderBook returns the upstream book for id. Failures are logged and
// answered with an empty book so callers always get a well-formed result.
func (s *BondService) OrderBook(ctx context.Context, id string) domain.OrderBook {
	bondID, instrument := id, id
	if b, err := lookupBond(ctx, s.bonds, id); err == nil {
		bondID, instrument = b.ID, instrumentID(b)
	}

	if s.upstream == nil {
		return domain.EmptyOrderBook(bondID, s.now().UTC())
	}
	book, err := s.upstream.GetOrderBook(ctx, instrument)
	if err != nil {
		s.logger.WarnContext(ctx, "upstream order book failed, returning empty book",
			slog.String("bond_id", bondID),
			slog.String("error", err.Error()),
		)
		s.metrics.OrderBookFallback()
		return domain.EmptyOrderBook(bondID, s.now().UTC())
	}
	book.BondID = bondID
	return book
}

// PriceHistoryRequest selects a price series.
type PriceHistoryRequest struct {
	BondID    string
	Start     string
	End       string
	Frequency string
}

// PriceHistory returns the price series for req. Start and end are
// required. Upstream failures yield an empty series.
func (s *BondService) PriceHistory(ctx context.Context, req PriceHistoryRequest) (domain.PriceHistory, error) {
	if strings.TrimSpace(req.Start) == "" || strings.TrimSpace(req.End) == "" {
		return domain.PriceHistory{}, fmt.Errorf("bond_service: price history: %w: start and end are required", domain.ErrInvalidInput)
	}
	for _, d := range []string{req.Start, req.End} {
		if _, ok := normalize.ParseTime(d); !ok {
			return domain.PriceHistory{}, fmt.Errorf("bond_service: price history: %w: bad date %q", domain.ErrInvalidInput, d)
		}
	}
	if req.Frequency == "" {
		req.Frequency = DefaultFrequency
	}
	return s.fetchHistory(ctx, req), nil
}

// PriceChart is PriceHistory with the range defaulting to the last 30
// days.
func (s *BondService) PriceChart(ctx context.Context, req PriceHistoryRequest) (domain.PriceHistory, error) {
	now := s.now().UTC()
	if strings.TrimSpace(req.End) == "" {
		req.End = now.Format(time.DateOnly)
	}
	if strings.TrimSpace(req.Start) == "" {
		req.Start = now.Add(-chartWindow).Format(time.DateOnly)
	}
	return s.PriceHistory(ctx, req)
}

func (s *BondService) fetchHistory(ctx context.Context, req PriceHistoryRequest) domain.PriceHistory {
	empty := domain.EmptyPriceHistory(req.Frequency, req.Start, req.End)
	if s.upstream == nil {
		return empty
	}

	instrument := req.BondID
	if b, err := lookupBond(ctx, s.bonds, req.BondID); err == nil {
		instrument = instrumentID(b)
	}
	hist, err := s.upstream.GetPriceHistory(ctx, instrument, req.Start, req.End, req.Frequency)
	if err != nil {
		s.logger.WarnContext(ctx, "upstream price history failed, returning empty series",
			slog.String("bond_id", req.BondID),
			slog.String("error", err.Error()),
		)
		return empty
	}
	return hist
}

// Count returns the number of stored bonds.
func (s *BondService) Count(ctx context.Context) (int, error) {
	n, err := s.bonds.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bond_service: count: %w", err)
	}
	return n, nil
}

// lookupBond resolves id as a bond id, then as an ISIN.
func lookupBond(ctx context.Context, bonds domain.BondStore, id string) (domain.Bond, error) {
	b, err := bonds.GetByID(ctx, id)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Bond{}, err
	}
	return bonds.GetByISIN(ctx, id)
}

// instrumentID is the identifier the upstream API knows a bond by.
func instrumentID(b domain.Bond) string {
	if b.ISIN != "" {
		return b.ISIN
	}
	return b.ID
}

// Latest returns the stored snapshots for bondIDs as quotes.
func (s *BondService) Latest(ctx context.Context, bondIDs []string) []domain.Quote {
	if s.recorder == nil {
		return nil
	}
	return s.recorder.Latest(ctx, bondIDs)
}
