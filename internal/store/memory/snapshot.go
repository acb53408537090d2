package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// WriteBonds encodes every stored bond to w as a JSON array ordered by id.
// It returns how many bonds were written.
func (s *Store) WriteBonds(ctx context.Context, w io.Writer) (int, error) {
	bonds, err := s.Bonds.Search(ctx, domain.BondFilter{})
	if err != nil {
		return 0, fmt.Errorf("memory: write bonds: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bonds); err != nil {
		return 0, fmt.Errorf("memory: write bonds: %w", err)
	}
	return len(bonds), nil
}

// ReadBonds decodes a JSON array of bonds from r and seeds them. Bonds
// already stored are skipped.
func (s *Store) ReadBonds(ctx context.Context, r io.Reader) (int, error) {
	var bonds []domain.Bond
	if err := json.NewDecoder(r).Decode(&bonds); err != nil {
		return 0, fmt.Errorf("memory: read bonds: %w: %v", domain.ErrInvalidInput, err)
	}
	return s.Seed(ctx, bonds)
}

// SaveBondsFile writes the bond snapshot to path. The file is replaced
// atomically so a concurrent reader never sees a partial snapshot.
func (s *Store) SaveBondsFile(ctx context.Context, path string) (int, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("memory: save bonds: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("memory: save bonds: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := s.WriteBonds(ctx, tmp)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("memory: save bonds: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("memory: save bonds: %w", err)
	}
	return n, nil
}

// LoadBondsFile seeds the bonds saved at path. A missing file loads
// nothing.
func (s *Store) LoadBondsFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("memory: load bonds: %w", err)
	}
	defer f.Close()
	return s.ReadBonds(ctx, f)
}
