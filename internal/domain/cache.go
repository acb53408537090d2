package domain

import (
	"context"
	"time"
)

// QuoteCache mirrors the latest quote per bond outside the process. It is
// never authoritative over the in-memory store.
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuotes(ctx context.Context, bondIDs []string) (map[string]Quote, error)
}

// RateLimiter limits requests per key within a window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus publishes events to external subscribers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager hands out short-lived exclusive locks shared across
// processes.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
