package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// InstrumentSource lists upstream reference data.
type InstrumentSource interface {
	ListInstruments(ctx context.Context, status string, limit int) ([]domain.Bond, error)
	BulkDownload(ctx context.Context) ([]domain.Bond, error)
}

// SyncResult reports one reference import.
type SyncResult struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// ReferenceSync imports upstream instruments as local bonds.
type ReferenceSync struct {
	bonds  domain.BondStore
	source InstrumentSource
	limit  int
	logger *slog.Logger
}

// NewReferenceSync creates a ReferenceSync. limit caps the list request;
// zero leaves it to the upstream default.
func NewReferenceSync(bonds domain.BondStore, source InstrumentSource, limit int, logger *slog.Logger) *ReferenceSync {
	return &ReferenceSync{
		bonds:  bonds,
		source: source,
		limit:  limit,
		logger: logger.With(slog.String("component", "reference_sync")),
	}
}

// Sync fetches outstanding instruments, falling back to the bulk download
// when the list endpoint fails, and creates every bond not stored yet.
// Existing bonds are never overwritten.
func (s *ReferenceSync) Sync(ctx context.Context) (SyncResult, error) {
	instruments, err := s.source.ListInstruments(ctx, domain.BondStatusOutstanding, s.limit)
	if err != nil {
		s.logger.WarnContext(ctx, "instrument list failed, trying bulk download",
			slog.String("error", err.Error()),
		)
		instruments, err = s.source.BulkDownload(ctx)
		if err != nil {
			return SyncResult{}, fmt.Errorf("reference_sync: fetch instruments: %w", err)
		}
	}

	res := SyncResult{Total: len(instruments)}
	for _, b := range instruments {
		if b.ID == "" {
			res.Skipped++
			continue
		}
		if s.exists(ctx, b) {
			res.Skipped++
			continue
		}
		if _, err := s.bonds.Create(ctx, b); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("reference_sync: create %q: %w", b.ID, err)
		}
		res.Synced++
	}

	s.logger.InfoContext(ctx, "reference sync complete",
		slog.Int("synced", res.Synced),
		slog.Int("skipped", res.Skipped),
		slog.Int("total", res.Total),
	)
	return res, nil
}

func (s *ReferenceSync) exists(ctx context.Context, b domain.Bond) bool {
	if b.ISIN != "" {
		if _, err := s.bonds.GetByISIN(ctx, b.ISIN); err == nil {
			return true
		}
	}
	_, err := s.bonds.GetByID(ctx, b.ID)
	return err == nil
}
