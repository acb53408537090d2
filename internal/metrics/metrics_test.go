package metrics

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SyncBatch(true)
		m.SyncCycle()
		m.Quote(domain.QuoteLive)
		m.SetWSClients(3)
		m.OrderBookFallback()
		m.ObserveUpstream("get_quote", nil, time.Millisecond)
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.SyncBatch(true)
	m.SyncBatch(false)
	m.SyncBatch(false)
	m.Quote(domain.QuoteEstimated)
	m.SetWSClients(2)
	m.ObserveUpstream("get_marks", fmt.Errorf("wrap: %w", domain.ErrUpstreamUnavailable), time.Second)
	m.ObserveUpstream("get_marks", nil, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncBatches.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SyncBatches.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Quotes.WithLabelValues("estimated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WSClients))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("get_marks", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("get_marks", "ok")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SyncCycle()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bonddesk_sync_cycles_total 1")
}
