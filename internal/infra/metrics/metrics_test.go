package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.LedgerOp("earn", "ok")
	m.LedgerOp("earn", "ok")
	m.LedgerOp("spend", "insufficient_funds")
	m.BetPlaced("RACE")
	m.SettlementFailure("BUSTA")

	assert.InDelta(t, 2, counterValue(t, m.ledgerOps.WithLabelValues("earn", "ok")), 0)
	assert.InDelta(t, 1, counterValue(t, m.ledgerOps.WithLabelValues("spend", "insufficient_funds")), 0)
	assert.InDelta(t, 1, counterValue(t, m.betsPlaced.WithLabelValues("RACE")), 0)
	assert.InDelta(t, 1, counterValue(t, m.settleFailures.WithLabelValues("BUSTA")), 0)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var out dto.Metric
	require.NoError(t, c.Write(&out))

	return out.GetCounter().GetValue()
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics

	assert.NotPanics(t, func() {
		m.LedgerOp("earn", "ok")
		m.BetPlaced("RACE")
		m.RoundTransition("RACE", "LOCKED")
		m.SettlementFailure("RACE")
		m.PublishFailure("redis")
		m.ObserveSettle("RACE", 0.1)
	})
}

func TestHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	New(reg).LedgerOp("earn", "ok")

	healthy := true
	h := NewHandler(reg, func(context.Context) error {
		if healthy {
			return nil
		}

		return errors.New("db down")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "pointsarena_ledger_operations_total"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}
