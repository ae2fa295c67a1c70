// Package parser turns raw delivery-order CSV exports into typed orders.
// Parsing is best-effort by design: malformed rows degrade or drop, they never
// abort the pass.
package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/validate"
)

// defaultSynonyms maps each semantic field to the header names that count as
// that column, matched case-insensitively after whitespace normalization.
var defaultSynonyms = map[string][]string{
	"pickup": {
		"pickup address 1", "pickup location", "pickup address", "pickup", "origin",
	},
	"dropoff": {
		"delivery address 1", "delivery location", "delivery address", "dropoff",
		"drop off", "destination",
	},
	"tripNumber": {
		"trip number", "trip #", "trip", "route number", "route #", "route id",
	},
	"driver": {
		"driver", "driver name", "assigned driver", "courier",
	},
	"exReadyTime": {
		"ex. ready time", "ex ready time", "ready time", "expected ready time",
	},
	"exDeliveryTime": {
		"ex. delivery time", "ex delivery time", "delivery time", "expected delivery time",
	},
	"actualPickupTime": {
		"actual pickup time", "pickup actual",
	},
	"actualDeliveryTime": {
		"actual delivery time", "delivery actual", "pod time",
	},
	"orderNumber": {
		"order number", "order #", "order id", "reference", "ref #",
	},
	"distance": {
		"distance", "miles", "mileage",
	},
	"notes": {
		"notes", "comments", "special instructions",
	},
	"items": {
		"items", "item description", "description",
	},
	// Sub-fields used to assemble a delivery address when no single-line column exists.
	"deliveryStreet": {"delivery street", "delivery address line", "delivery addr"},
	"deliveryCity":   {"delivery city"},
	"deliveryState":  {"delivery state"},
	"deliveryZip":    {"delivery zip", "delivery zip code", "delivery postal code"},
	"pickupStreet":   {"pickup street", "pickup address line", "pickup addr"},
	"pickupCity":     {"pickup city"},
	"pickupState":    {"pickup state"},
	"pickupZip":      {"pickup zip", "pickup zip code", "pickup postal code"},
}

// keyColumns are the semantic columns that keep a row alive: a row where none
// of these has a value is a noise row and is dropped.
var keyColumns = []string{"pickup", "dropoff", "exReadyTime", "exDeliveryTime", "orderNumber"}

// Options configures a parse pass.
type Options struct {
	// ExtraSynonyms extends the built-in header synonym lists per semantic
	// field, typically loaded from a YAML override file.
	ExtraSynonyms map[string][]string
}

// Result holds the outcome of one parse pass.
type Result struct {
	Orders  []model.DeliveryOrder
	Columns validate.ColumnSet
	Skipped int // noise rows dropped
	Invalid int // rows the csv reader could not parse
}

// normalizeHeader lowercases a header cell and collapses internal whitespace.
func normalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}

// columnIndex resolves each semantic field to the index of the first header
// match from its synonym list.
type columnIndex map[string]int

func buildColumnIndex(header []string, opts Options) columnIndex {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		n := normalizeHeader(h)
		if _, seen := byName[n]; !seen {
			byName[n] = i
		}
	}

	idx := make(columnIndex)
	for field, names := range defaultSynonyms {
		candidates := append([]string{}, names...)
		candidates = append(candidates, opts.ExtraSynonyms[field]...)
		for _, name := range candidates {
			if i, ok := byName[normalizeHeader(name)]; ok {
				idx[field] = i
				break
			}
		}
	}
	return idx
}

// get returns the trimmed cell for a semantic field, or "" when the column is
// absent or the row is short.
func (c columnIndex) get(row []string, field string) string {
	i, ok := c[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (c columnIndex) has(field string) bool {
	_, ok := c[field]
	return ok
}

// ParseOrders parses a delivery-order CSV. Empty input or a header-only file
// yields an empty result, not an error; unparsable rows are counted and
// skipped. IDs are sequenced order-1..order-N over surviving rows only.
func ParseOrders(r io.Reader, opts Options) (*Result, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	res := &Result{Columns: validate.ColumnSet{}}

	header, err := reader.Read()
	if err != nil {
		// Empty or unreadable input: empty result by contract.
		return res, nil
	}

	idx := buildColumnIndex(header, opts)
	res.Columns = promisedColumns(idx)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Invalid++
			zap.L().Debug("parser: skipping unparsable row", zap.Error(err))
			continue
		}

		if isNoiseRow(row, idx) {
			res.Skipped++
			continue
		}

		res.Orders = append(res.Orders, buildOrder(row, idx, res.Columns))
	}

	// Resequence over surviving rows only.
	for i := range res.Orders {
		res.Orders[i].ID = fmt.Sprintf("order-%d", i+1)
	}

	zap.L().Info("parsed orders csv",
		zap.Int("orders", len(res.Orders)),
		zap.Int("noise_rows", res.Skipped),
		zap.Int("invalid_rows", res.Invalid),
	)
	return res, nil
}

// promisedColumns maps resolved header columns to the semantic fields the
// header promised. Only promised fields can ever appear in MissingFields.
func promisedColumns(idx columnIndex) validate.ColumnSet {
	cols := validate.ColumnSet{}
	if idx.has("tripNumber") {
		cols[model.FieldTripNumber] = true
	}
	if idx.has("driver") {
		cols[model.FieldDriver] = true
	}
	if idx.has("pickup") || idx.has("pickupStreet") {
		cols[model.FieldPickup] = true
	}
	if idx.has("dropoff") || idx.has("deliveryStreet") {
		cols[model.FieldDropoff] = true
	}
	if idx.has("exReadyTime") {
		cols[model.FieldReadyTime] = true
	}
	if idx.has("exDeliveryTime") {
		cols[model.FieldDeliveryTime] = true
	}
	return cols
}

// isNoiseRow reports whether none of the key columns has a non-blank value.
func isNoiseRow(row []string, idx columnIndex) bool {
	for _, field := range keyColumns {
		if v := idx.get(row, field); !validate.IsEmptyValue(v) {
			return false
		}
	}
	return true
}

func buildOrder(row []string, idx columnIndex, cols validate.ColumnSet) model.DeliveryOrder {
	o := model.DeliveryOrder{
		OrderNumber:        idx.get(row, "orderNumber"),
		Pickup:             assembleAddress(row, idx, "pickup", "pickupStreet", "pickupCity", "pickupState", "pickupZip"),
		Dropoff:            assembleAddress(row, idx, "dropoff", "deliveryStreet", "deliveryCity", "deliveryState", "deliveryZip"),
		ExReadyTime:        idx.get(row, "exReadyTime"),
		ExDeliveryTime:     idx.get(row, "exDeliveryTime"),
		ActualPickupTime:   idx.get(row, "actualPickupTime"),
		ActualDeliveryTime: idx.get(row, "actualDeliveryTime"),
		Notes:              idx.get(row, "notes"),
		Items:              idx.get(row, "items"),
	}

	// Trip number and driver keep the null/empty/placeholder distinction; it
	// decides error-vs-warning downstream.
	o.TripNumber = classifyOptional(idx.get(row, "tripNumber"), idx.has("tripNumber"))
	o.Driver = classifyOptional(idx.get(row, "driver"), idx.has("driver"))

	if raw := idx.get(row, "distance"); raw != "" {
		if d, err := strconv.ParseFloat(raw, 64); err == nil && d >= 0 {
			o.Distance = &d
		}
	}

	classifyOrderType(&o)
	validate.RecomputeMissingFields(&o, cols)
	return o
}

// classifyOptional normalizes an optional cell: absent column stays missing, a
// blank or placeholder cell under a present column is a placeholder, anything
// else is a value.
func classifyOptional(raw string, colPresent bool) model.OptionalField {
	return validate.Classify(raw, colPresent)
}

// assembleAddress prefers the single-line address column and falls back to
// joining street/city/state/zip sub-fields.
func assembleAddress(row []string, idx columnIndex, line, street, city, state, zip string) string {
	if v := idx.get(row, line); v != "" {
		return v
	}
	parts := make([]string, 0, 4)
	for _, f := range []string{street, city, state, zip} {
		if v := idx.get(row, f); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// classifyOrderType derives the order type from notes/items keywords. Pump
// pickups matter to pricing: those stops are not separately billable.
func classifyOrderType(o *model.DeliveryOrder) {
	text := strings.ToLower(o.Notes + " " + o.Items)
	switch {
	case strings.Contains(text, "pump") && (strings.Contains(text, "pickup") || strings.Contains(text, "pick up") || strings.Contains(text, "return")):
		o.IsPumpPickup = true
		o.OrderType = model.OrderTypePumpPickup
	case strings.Contains(text, "return"):
		o.OrderType = model.OrderTypeReturn
	default:
		o.OrderType = model.OrderTypeDelivery
	}
}
