// Package metrics exports resolution, cache, index and gate counters to
// Prometheus.
//
// Metrics implements access.Observer; register it on a Layer with
// access.WithObserver. Every counter is labelled by entity kind.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/canon/internal/access"
)

const namespace = "canon"

// Metrics holds the collectors fed by read decisions and write events.
type Metrics struct {
	// Resolutions counts reads by pipeline outcome.
	// Labels: kind, outcome
	Resolutions *prometheus.CounterVec

	// CacheLookups counts reads that consulted the cache.
	// Labels: kind, result (hit, miss)
	CacheLookups *prometheus.CounterVec

	// Ambiguous counts reads whose top candidates were too close to call.
	// Labels: kind
	Ambiguous *prometheus.CounterVec

	// Backfills counts Index Records created or advanced from raw results.
	// Labels: kind
	Backfills *prometheus.CounterVec

	// Writes counts mutations.
	// Labels: kind, operation, status (ok, error, rejected)
	Writes *prometheus.CounterVec

	// IndexUpserts counts writes that created or advanced an Index Record.
	// Labels: kind
	IndexUpserts *prometheus.CounterVec
}

var _ access.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Reads served by the access layer, by pipeline outcome.",
		}, []string{"kind", "outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Document cache lookups by result.",
		}, []string{"kind", "result"}),
		Ambiguous: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ambiguous_resolutions_total",
			Help:      "Resolutions whose best candidates scored within the ambiguity delta.",
		}, []string{"kind"}),
		Backfills: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_backfills_total",
			Help:      "Index records created or advanced from raw query results.",
		}, []string{"kind"}),
		Writes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Mutations by operation and status.",
		}, []string{"kind", "operation", "status"}),
		IndexUpserts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_upserts_total",
			Help:      "Writes that created or advanced an index record.",
		}, []string{"kind"}),
	}
}

// ObserveRead implements access.Observer.
func (m *Metrics) ObserveRead(d access.Decision) {
	m.Resolutions.WithLabelValues(d.Kind, string(d.Outcome)).Inc()

	switch {
	case d.Outcome.CacheHit():
		m.CacheLookups.WithLabelValues(d.Kind, "hit").Inc()
	case d.Outcome.CacheMiss():
		m.CacheLookups.WithLabelValues(d.Kind, "miss").Inc()
	}
	if d.Ambiguous {
		m.Ambiguous.WithLabelValues(d.Kind).Inc()
	}
	if d.Backfilled > 0 {
		m.Backfills.WithLabelValues(d.Kind).Add(float64(d.Backfilled))
	}
}

// ObserveWrite implements access.Observer.
func (m *Metrics) ObserveWrite(e access.WriteEvent) {
	status := "ok"
	switch {
	case e.Rejected:
		status = "rejected"
	case e.Error != "":
		status = "error"
	}
	m.Writes.WithLabelValues(e.Kind, string(e.Operation), status).Inc()
	if e.Indexed {
		m.IndexUpserts.WithLabelValues(e.Kind).Inc()
	}
}

// WriteText writes everything g gathers in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
