package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	// Payloads above this go through the multipart uploader.
	multipartThreshold = 8 * 1024 * 1024
	archiveLockKey     = "archive"
	archiveLockTTL     = 30 * time.Minute
)

// ArchiveImpl implements domain.Archiver by reading the in-memory stores,
// serialising the records as JSONL and uploading them. Archived records are
// not removed from the stores.
type ArchiveImpl struct {
	writer domain.BlobWriter
	orders domain.OrderStore
	market domain.MarketDataStore
	locks  domain.LockManager
	logger *slog.Logger
}

// NewArchiver creates an ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, orders domain.OrderStore, market domain.MarketDataStore, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		orders: orders,
		market: market,
		logger: logger.With(slog.String("component", "s3_archiver")),
	}
}

// WithLocks makes concurrent archive runs across processes exclusive. Only
// the holder of the lock uploads; the others skip the run.
func (a *ArchiveImpl) WithLocks(locks domain.LockManager) *ArchiveImpl {
	a.locks = locks
	return a
}

// ArchiveOrders uploads every order created before the cutoff to
// archive/orders/YYYY-MM-DD.jsonl and returns how many were written.
func (a *ArchiveImpl) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	unlock, ok, err := a.lock(ctx)
	if err != nil || !ok {
		return 0, err
	}
	defer unlock()

	all, err := a.orders.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	orders := make([]domain.Order, 0, len(all))
	for _, o := range all {
		if o.CreatedAt.Before(before) {
			orders = append(orders, o)
		}
	}
	if len(orders) == 0 {
		return 0, nil
	}

	p := archivePath("orders", before.Format(time.DateOnly))
	if err := upload(ctx, a.writer, p, orders); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders: %w", err)
	}

	a.logger.InfoContext(ctx, "orders archived", slog.String("path", p), slog.Int("count", len(orders)))
	return int64(len(orders)), nil
}

// ArchiveMarketData uploads the current market data snapshot of every bond
// to archive/market_data/YYYY-MM-DDTHHMM.jsonl.
func (a *ArchiveImpl) ArchiveMarketData(ctx context.Context, at time.Time) (int64, error) {
	unlock, ok, err := a.lock(ctx)
	if err != nil || !ok {
		return 0, err
	}
	defer unlock()

	snapshots, err := a.market.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive market data query: %w", err)
	}
	if len(snapshots) == 0 {
		return 0, nil
	}

	p := archivePath("market_data", at.UTC().Format("2006-01-02T1504"))
	if err := upload(ctx, a.writer, p, snapshots); err != nil {
		return 0, fmt.Errorf("s3blob: archive market data: %w", err)
	}

	a.logger.InfoContext(ctx, "market data archived", slog.String("path", p), slog.Int("count", len(snapshots)))
	return int64(len(snapshots)), nil
}

// lock reports ok=false when another process holds the archive lock.
func (a *ArchiveImpl) lock(ctx context.Context) (func(), bool, error) {
	if a.locks == nil {
		return func() {}, true, nil
	}
	unlock, err := a.locks.Acquire(ctx, archiveLockKey, archiveLockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		a.logger.InfoContext(ctx, "archive lock held elsewhere, skipping")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("s3blob: archive lock: %w", err)
	}
	return unlock, true, nil
}

func upload[T any](ctx context.Context, w domain.BlobWriter, p string, records []T) error {
	buf, err := marshalJSONL(records)
	if err != nil {
		return err
	}
	if len(buf) > multipartThreshold {
		return w.PutMultipart(ctx, p, bytes.NewReader(buf), minPartSize)
	}
	return w.Put(ctx, p, bytes.NewReader(buf), jsonlContentType)
}

// archivePath builds the object key for an archive file.
//
//	archive/orders/2026-05-01.jsonl
//	archive/market_data/2026-05-01T0300.jsonl
func archivePath(kind, stamp string) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, stamp)
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
