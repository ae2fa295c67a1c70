// Package store persists geocode memoization and ingest history. Both backends
// implement the geocode cache interface, so a store doubles as the durable
// cache behind the distance pipeline.
package store

import (
	"context"
	"time"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

// IngestFilter specifies criteria for listing ingest runs.
type IngestFilter struct {
	Status       model.IngestStatus `json:"status,omitempty"`
	CreatedAfter time.Time          `json:"created_after,omitempty"`
	Limit        int                `json:"limit,omitempty"`
	Offset       int                `json:"offset,omitempty"`
}

// Store is the persistence interface for the dispatch pipeline. It embeds the
// geocode cache so a configured store transparently becomes the durable
// memoization backend.
type Store interface {
	geocode.Cache

	// Ingest runs
	CreateIngest(ctx context.Context, sourceFile string) (*model.IngestRun, error)
	CompleteIngest(ctx context.Context, id string, status model.IngestStatus, stats *model.IngestStats) error
	GetIngest(ctx context.Context, id string) (*model.IngestRun, error)
	ListIngests(ctx context.Context, filter IngestFilter) ([]model.IngestRun, error)

	// Orders
	SaveOrders(ctx context.Context, ingestID string, orders []model.DeliveryOrder) error
	GetOrders(ctx context.Context, ingestID string) ([]model.DeliveryOrder, error)

	// Invoices
	SaveInvoice(ctx context.Context, ingestID string, inv *model.Invoice) error
	GetInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
