package metrics

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/access"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func TestObserveRead(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveRead(access.Decision{Kind: "Item", Outcome: access.OutcomeIdentityHit})
	m.ObserveRead(access.Decision{Kind: "Item", Outcome: access.OutcomeIdentityMiss})
	m.ObserveRead(access.Decision{Kind: "Item", Outcome: access.OutcomeResolved, Ambiguous: true})
	m.ObserveRead(access.Decision{Kind: "Item", Outcome: access.OutcomeNoCandidates, Backfilled: 3})
	m.ObserveRead(access.Decision{Kind: "Item", Outcome: access.OutcomePassthrough})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("Item", "resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("Item", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("Item", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ambiguous.WithLabelValues("Item")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Backfills.WithLabelValues("Item")))
	assert.Equal(t, 5, testutil.CollectAndCount(m.Resolutions))
}

func TestObserveWrite(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveWrite(access.WriteEvent{Kind: "Item", Operation: access.OpCreate, Indexed: true})
	m.ObserveWrite(access.WriteEvent{Kind: "Item", Operation: access.OpCreate, Error: "duplicate"})
	m.ObserveWrite(access.WriteEvent{Kind: "Item", Operation: access.OpCreate, Gated: true, Rejected: true, Error: "denied"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Writes.WithLabelValues("Item", "create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Writes.WithLabelValues("Item", "create", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Writes.WithLabelValues("Item", "create", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexUpserts.WithLabelValues("Item")))
}

func TestWriteText(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.ObserveRead(access.Decision{Kind: "Item", Outcome: access.OutcomeFallback})

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	assert.Contains(t, buf.String(), `canon_resolutions_total{kind="Item",outcome="fallback"} 1`)
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
