package model

import "time"

// RouteType distinguishes single-order routes from multi-stop routes for pricing.
type RouteType string

const (
	RouteTypeSingle    RouteType = "single"
	RouteTypeMultiStop RouteType = "multi-stop"
)

// InvoiceStatus tracks invoice review progress. Transitions are monotonic:
// draft -> reviewed -> finalized, with no reverse transition defined.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusReviewed  InvoiceStatus = "reviewed"
	InvoiceStatusFinalized InvoiceStatus = "finalized"
)

// Next returns the status that follows s, or s itself when already finalized.
func (s InvoiceStatus) Next() InvoiceStatus {
	switch s {
	case InvoiceStatusDraft:
		return InvoiceStatusReviewed
	case InvoiceStatusReviewed:
		return InvoiceStatusFinalized
	default:
		return s
	}
}

// CanAdvanceTo reports whether moving from s to target is a forward transition.
func (s InvoiceStatus) CanAdvanceTo(target InvoiceStatus) bool {
	rank := map[InvoiceStatus]int{
		InvoiceStatusDraft:     0,
		InvoiceStatusReviewed:  1,
		InvoiceStatusFinalized: 2,
	}
	sr, ok1 := rank[s]
	tr, ok2 := rank[target]
	return ok1 && ok2 && tr > sr
}

// InvoiceItem is one billable line, one per route.
type InvoiceItem struct {
	RouteKey  string    `json:"route_key"`
	Driver    string    `json:"driver"`
	OrderIDs  []string  `json:"order_ids"`
	RouteType RouteType `json:"route_type"`
	Distance  float64   `json:"distance"`
	Stops     int       `json:"stops"`
	PumpStops int       `json:"pump_stops,omitempty"`
	BaseCost  float64   `json:"base_cost"`
	AddOns    float64   `json:"add_ons"`
	TotalCost float64   `json:"total_cost"`

	// Recalculated and OriginalDistance track manual overrides. OriginalDistance
	// is set once, on the first recalculation, and never overwritten after.
	Recalculated     bool     `json:"recalculated,omitempty"`
	OriginalDistance *float64 `json:"original_distance,omitempty"`
}

// DriverSummary aggregates invoice items by driver.
type DriverSummary struct {
	Driver        string  `json:"driver"`
	Routes        int     `json:"routes"`
	Stops         int     `json:"stops"`
	TotalDistance float64 `json:"total_distance"`
	TotalCost     float64 `json:"total_cost"`
}

// Invoice aggregates all invoice items for one pipeline pass.
type Invoice struct {
	ID                string          `json:"id"`
	Items             []InvoiceItem   `json:"items"`
	TotalDistance     float64         `json:"total_distance"`
	TotalCost         float64         `json:"total_cost"`
	DriverSummaries   []DriverSummary `json:"driver_summaries"`
	Status            InvoiceStatus   `json:"status"`
	RecalculatedCount int             `json:"recalculated_count,omitempty"`
	GeneratedAt       time.Time       `json:"generated_at"`
}
