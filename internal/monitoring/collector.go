// Package monitoring collects operational metrics from ingest history and
// raises webhook alerts when thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Ingest metrics (within lookback window).
	IngestTotal    int     `json:"ingest_total"`
	IngestComplete int     `json:"ingest_complete"`
	IngestFailed   int     `json:"ingest_failed"`
	IngestRunning  int     `json:"ingest_running"`
	IngestFailRate float64 `json:"ingest_fail_rate"`

	// Aggregates over completed ingests.
	OrdersParsed    int     `json:"orders_parsed"`
	NoiseRows       int     `json:"noise_rows"`
	IssuesFound     int     `json:"issues_found"`
	IssuesPerOrder  float64 `json:"issues_per_order"`
	InvoiceTotalUSD float64 `json:"invoice_total_usd"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// IngestLister abstracts the store method the collector needs.
type IngestLister interface {
	ListIngests(ctx context.Context, filter store.IngestFilter) ([]model.IngestRun, error)
}

// Collector gathers metrics from the ingest history.
type Collector struct {
	store IngestLister
}

// NewCollector creates a new metrics collector.
func NewCollector(st IngestLister) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of pipeline metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListIngests(ctx, store.IngestFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list ingests")
	}

	snap.IngestTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.IngestStatusComplete:
			snap.IngestComplete++
		case model.IngestStatusFailed:
			snap.IngestFailed++
		case model.IngestStatusRunning:
			snap.IngestRunning++
		}
		if r.Stats != nil {
			snap.OrdersParsed += r.Stats.Orders
			snap.NoiseRows += r.Stats.Skipped
			snap.IssuesFound += r.Stats.Issues
			snap.InvoiceTotalUSD += r.Stats.InvoiceTotal
		}
	}

	finished := snap.IngestComplete + snap.IngestFailed
	if finished > 0 {
		snap.IngestFailRate = float64(snap.IngestFailed) / float64(finished)
	}
	if snap.OrdersParsed > 0 {
		snap.IssuesPerOrder = float64(snap.IssuesFound) / float64(snap.OrdersParsed)
	}

	return snap, nil
}
