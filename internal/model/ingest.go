package model

import "time"

// IngestStatus tracks a persisted ingest run.
type IngestStatus string

const (
	IngestStatusRunning  IngestStatus = "running"
	IngestStatusComplete IngestStatus = "complete"
	IngestStatusFailed   IngestStatus = "failed"
)

// IngestStats summarizes one completed ingest pass.
type IngestStats struct {
	Orders       int     `json:"orders"`
	Skipped      int     `json:"skipped"`
	Invalid      int     `json:"invalid"`
	Issues       int     `json:"issues"`
	Routes       int     `json:"routes"`
	InvoiceTotal float64 `json:"invoice_total"`
}

// IngestRun is one recorded pipeline execution over a source file.
type IngestRun struct {
	ID         string       `json:"id"`
	SourceFile string       `json:"source_file"`
	Status     IngestStatus `json:"status"`
	Stats      *IngestStats `json:"stats,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
