package moment

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/normalize"
)

// ErrNoCSV is returned when the bulk archive holds no CSV entry.
var ErrNoCSV = errors.New("moment: bulk archive has no csv entry")

// bulkColumns lists the accepted header names per field, in priority order.
var bulkColumns = map[string][]string{
	"id":          {"instrument_id", "isin"},
	"isin":        {"isin"},
	"cusip":       {"cusip"},
	"issuer":      {"issuer", "issuer_name"},
	"description": {"description", "bond_description"},
	"bond_type":   {"bond_type", "asset_type"},
	"sector":      {"sector", "industry_sector"},
	"rating":      {"rating", "credit_rating"},
	"coupon":      {"coupon"},
	"maturity":    {"maturity_date", "maturity"},
	"currency":    {"currency"},
	"par_value":   {"par_value"},
	"status":      {"status"},
}

// BulkDownload fetches the reference-data archive and decodes the first CSV
// inside it.
func (c *Client) BulkDownload(ctx context.Context) ([]domain.Bond, error) {
	body, err := c.do(ctx, "bulk_download", http.MethodGet, "/v1/data/instrument/bulk-download/", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("moment: bulk download: %w", err)
	}
	bonds, err := ParseBulkArchive(body)
	if err != nil {
		return nil, fmt.Errorf("moment: bulk download: %w", err)
	}
	return bonds, nil
}

// ParseBulkArchive reads the first .csv entry of a ZIP archive. Rows
// without an instrument id or ISIN are dropped; par value defaults to 1000.
func ParseBulkArchive(data []byte) ([]domain.Bond, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	for _, f := range zr.File {
		if !strings.EqualFold(path.Ext(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return parseBulkCSV(rc)
	}
	return nil, ErrNoCSV
}

func parseBulkCSV(r io.Reader) ([]domain.Bond, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []domain.Bond{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	field := func(row []string, name string) string {
		for _, col := range bulkColumns[name] {
			if i, ok := index[col]; ok && i < len(row) {
				if v := strings.TrimSpace(row[i]); v != "" {
					return v
				}
			}
		}
		return ""
	}

	bonds := make([]domain.Bond, 0)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		id := field(row, "id")
		isin := field(row, "isin")
		if id == "" && isin == "" {
			continue
		}
		par := field(row, "par_value")
		if par == "" {
			par = "1000"
		}
		raw := normalize.RawInstrument{
			ISIN:         normalize.Text(isin),
			InstrumentID: normalize.Text(id),
			CUSIP:        normalize.Text(field(row, "cusip")),
			Issuer:       normalize.Text(field(row, "issuer")),
			Description:  normalize.Text(field(row, "description")),
			BondType:     normalize.Text(field(row, "bond_type")),
			Sector:       normalize.Text(field(row, "sector")),
			Rating:       normalize.Text(field(row, "rating")),
			Coupon:       lenientNumber(field(row, "coupon")),
			MaturityDate: normalize.Text(field(row, "maturity")),
			Currency:     normalize.Text(field(row, "currency")),
			ParValue:     lenientNumber(par),
			Status:       normalize.Text(field(row, "status")),
		}
		bonds = append(bonds, normalize.Bond(raw))
	}
	return bonds, nil
}

func lenientNumber(s string) normalize.Number {
	n, err := domain.ParseNum(s)
	if err != nil {
		return normalize.Number{}
	}
	return normalize.Number(n)
}
