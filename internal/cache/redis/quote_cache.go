package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultQuoteTTL = 15 * time.Minute

// QuoteCache implements domain.QuoteCache as one JSON string per bond.
//
// Key schema:
//
//	{prefix}quote:{bondID} - JSON-encoded domain.Quote, expiring after ttl
type QuoteCache struct {
	c   *Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache. A zero ttl falls back to 15 minutes.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = defaultQuoteTTL
	}
	return &QuoteCache{c: c, ttl: ttl}
}

func (qc *QuoteCache) quoteKey(bondID string) string {
	return qc.c.key("quote", bondID)
}

// SetQuote mirrors q under its bond id.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s: %w", q.BondID, err)
	}
	if err := qc.c.rdb.Set(ctx, qc.quoteKey(q.BondID), data, qc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.BondID, err)
	}
	return nil
}

// GetQuotes reads the mirrored quotes for bondIDs with a single MGET.
// Missing, expired and undecodable entries are omitted.
func (qc *QuoteCache) GetQuotes(ctx context.Context, bondIDs []string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(bondIDs))
	if len(bondIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(bondIDs))
	for i, id := range bondIDs {
		keys[i] = qc.quoteKey(id)
	}

	vals, err := qc.c.rdb.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get quotes: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var q domain.Quote
		if err := json.Unmarshal([]byte(s), &q); err != nil {
			continue
		}
		if q.BondID == "" {
			q.BondID = bondIDs[i]
		}
		out[q.BondID] = q
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
