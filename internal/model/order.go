// Package model defines the domain types shared across the dispatch pipeline.
package model

import (
	"encoding/json"
	"fmt"
)

// UnassignedDriver is the display sentinel for an explicitly unassigned driver.
// It is applied at presentation time only; internally an absent driver stays Missing.
const UnassignedDriver = "Unassigned"

// Field identifies an editable order field.
type Field string

const (
	FieldTripNumber   Field = "tripNumber"
	FieldDriver       Field = "driver"
	FieldPickup       Field = "pickup"
	FieldDropoff      Field = "dropoff"
	FieldReadyTime    Field = "exReadyTime"
	FieldDeliveryTime Field = "exDeliveryTime"
)

// DisplayName returns the human-readable name for a field, used in issue messages.
func (f Field) DisplayName() string {
	switch f {
	case FieldTripNumber:
		return "Trip Number"
	case FieldDriver:
		return "Driver"
	case FieldPickup:
		return "Pickup Address"
	case FieldDropoff:
		return "Delivery Address"
	case FieldReadyTime:
		return "Ready Time"
	case FieldDeliveryTime:
		return "Delivery Time"
	default:
		return string(f)
	}
}

type optionalKind int

const (
	kindMissing optionalKind = iota
	kindPlaceholder
	kindValue
)

// OptionalField is a three-state value for fields where the source distinguishes
// structurally absent (missing), present-but-placeholder ("N/A", "-", blank), and
// a real value. The distinction decides whether a field is an error or a warning,
// so it is kept as a sum type rather than collapsed into one string.
type OptionalField struct {
	kind optionalKind
	raw  string
}

// Missing returns the absent-field variant.
func Missing() OptionalField { return OptionalField{kind: kindMissing} }

// Placeholder returns the placeholder variant, retaining the raw token.
func Placeholder(raw string) OptionalField {
	return OptionalField{kind: kindPlaceholder, raw: raw}
}

// Value returns the real-value variant.
func Value(s string) OptionalField { return OptionalField{kind: kindValue, raw: s} }

// IsMissing reports whether the field was structurally absent.
func (o OptionalField) IsMissing() bool { return o.kind == kindMissing }

// IsPlaceholder reports whether the field held a recognized placeholder token.
func (o OptionalField) IsPlaceholder() bool { return o.kind == kindPlaceholder }

// IsValue reports whether the field holds a real value.
func (o OptionalField) IsValue() bool { return o.kind == kindValue }

// Get returns the value and true when the field holds a real value.
func (o OptionalField) Get() (string, bool) {
	if o.kind == kindValue {
		return o.raw, true
	}
	return "", false
}

// Raw returns the underlying token regardless of variant ("" for missing).
func (o OptionalField) Raw() string { return o.raw }

// String implements fmt.Stringer for logging.
func (o OptionalField) String() string {
	switch o.kind {
	case kindMissing:
		return "<missing>"
	case kindPlaceholder:
		return fmt.Sprintf("<placeholder:%s>", o.raw)
	default:
		return o.raw
	}
}

// MarshalJSON encodes missing as null and everything else as the raw token,
// matching the wire shape consumers expect.
func (o OptionalField) MarshalJSON() ([]byte, error) {
	if o.kind == kindMissing {
		return []byte("null"), nil
	}
	return json.Marshal(o.raw)
}

// UnmarshalJSON decodes null as missing. Placeholder classification is the
// validate package's job and happens on the next reprocess pass.
func (o *OptionalField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Missing()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Value(s)
	return nil
}

// OrderType classifies an order from its notes/items keywords.
type OrderType string

const (
	OrderTypeDelivery   OrderType = "delivery"
	OrderTypePumpPickup OrderType = "pump_pickup"
	OrderTypeReturn     OrderType = "return"
)

// DeliveryOrder is one row of the source CSV after normalization.
type DeliveryOrder struct {
	ID                 string        `json:"id"`
	OrderNumber        string        `json:"order_number,omitempty"`
	TripNumber         OptionalField `json:"trip_number"`
	Driver             OptionalField `json:"driver"`
	Pickup             string        `json:"pickup"`
	Dropoff            string        `json:"dropoff"`
	ExReadyTime        string        `json:"ex_ready_time,omitempty"`
	ExDeliveryTime     string        `json:"ex_delivery_time,omitempty"`
	ActualPickupTime   string        `json:"actual_pickup_time,omitempty"`
	ActualDeliveryTime string        `json:"actual_delivery_time,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	Items              string        `json:"items,omitempty"`

	// Distance is the source-supplied value; EstimatedDistance is computed and
	// is never overwritten by source data outside an explicit recalculation.
	Distance          *float64 `json:"distance,omitempty"`
	EstimatedDistance *float64 `json:"estimated_distance,omitempty"`

	// MissingFields is derived state: membership mirrors the validate predicates
	// and is recomputed on every mutation, never maintained independently.
	MissingFields []Field `json:"missing_fields"`

	IsNoise               bool      `json:"is_noise,omitempty"`
	NeedsTripVerification bool      `json:"needs_trip_verification,omitempty"`
	IsPumpPickup          bool      `json:"is_pump_pickup,omitempty"`
	OrderType             OrderType `json:"order_type"`
}

// DriverDisplay returns the driver name for presentation, substituting the
// Unassigned sentinel for missing or placeholder drivers.
func (o *DeliveryOrder) DriverDisplay() string {
	if v, ok := o.Driver.Get(); ok && v != "" {
		return v
	}
	return UnassignedDriver
}

// HasMissing reports whether the given field is currently flagged missing.
func (o *DeliveryOrder) HasMissing(f Field) bool {
	for _, m := range o.MissingFields {
		if m == f {
			return true
		}
	}
	return false
}

// KnownDistance returns the best available distance for the order: source value
// first, then the computed estimate. ok is false when neither exists.
func (o *DeliveryOrder) KnownDistance() (float64, bool) {
	if o.Distance != nil {
		return *o.Distance, true
	}
	if o.EstimatedDistance != nil {
		return *o.EstimatedDistance, true
	}
	return 0, false
}

// MergeByID replaces orders in base with matching entries from updates, keyed
// by order ID. Last write wins. Orders in updates without a match are ignored.
func MergeByID(base []DeliveryOrder, updates []DeliveryOrder) []DeliveryOrder {
	byID := make(map[string]DeliveryOrder, len(updates))
	for _, u := range updates {
		byID[u.ID] = u
	}
	out := make([]DeliveryOrder, len(base))
	for i, o := range base {
		if u, ok := byID[o.ID]; ok {
			out[i] = u
		} else {
			out[i] = o
		}
	}
	return out
}
