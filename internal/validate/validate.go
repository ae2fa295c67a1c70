// Package validate is the single home for field normalization and validity
// predicates. The parser, the verification session, the issue detector, and the
// pricing pipeline all judge field values through these functions; no caller
// carries its own variant of this logic.
package validate

import (
	"regexp"
	"strings"

	"github.com/sells-group/dispatch-cli/internal/model"
)

// tripNumberPattern accepts 1-3 letters, an optional separator, and 3-8 digits,
// or a bare 3-8 digit number.
var tripNumberPattern = regexp.MustCompile(`^([A-Za-z]{1,3}[-\s]?\d{3,8}|\d{3,8})$`)

var digitsOnly = regexp.MustCompile(`^\d+$`)

// placeholderTokens are values that mean "nothing here" even though the cell
// is not blank.
var placeholderTokens = map[string]struct{}{
	"n/a":  {},
	"na":   {},
	"none": {},
	"-":    {},
}

// IsEmptyValue reports whether v is blank or a recognized placeholder token.
func IsEmptyValue(v string) bool {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return true
	}
	_, ok := placeholderTokens[strings.ToLower(trimmed)]
	return ok
}

// IsUnassignedDriver reports whether the driver field is effectively unassigned:
// missing, placeholder, or the literal final-form sentinel.
func IsUnassignedDriver(driver model.OptionalField) bool {
	v, ok := driver.Get()
	if !ok {
		return true
	}
	return IsEmptyValue(v) || v == model.UnassignedDriver
}

// Classify normalizes a raw cell into the three-state field representation.
// The parser calls this for trip number and driver; colPresent distinguishes a
// blank cell under a real column (placeholder) from a column that was never in
// the header (missing).
func Classify(raw string, colPresent bool) model.OptionalField {
	if !colPresent {
		return model.Missing()
	}
	trimmed := strings.TrimSpace(raw)
	if IsEmptyValue(trimmed) {
		return model.Placeholder(trimmed)
	}
	return model.Value(trimmed)
}

// ClassifyTripNumber inspects a trip number for noise/test patterns. The first
// result means "definitely garbage, exclude from trip verification"; the second
// means "syntactically odd, ask a human".
func ClassifyTripNumber(v string) (isNoise, needsVerification bool) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return false, false
	}
	if strings.Contains(strings.ToUpper(trimmed), "TEST") {
		return true, false
	}
	// Very short bare numbers are test values, not real trip IDs.
	if digitsOnly.MatchString(trimmed) && len(trimmed) < 3 {
		return true, false
	}
	if tripNumberPattern.MatchString(trimmed) {
		return false, false
	}
	return false, true
}

// TripNumberFormatValid reports whether v matches the expected trip ID format.
func TripNumberFormatValid(v string) bool {
	return tripNumberPattern.MatchString(strings.TrimSpace(v))
}

// CheckTripNumber grades a trip number field. Empty, placeholder, and noise
// values are errors; format mismatches are warnings (odd but not necessarily
// wrong); well-formed values are valid.
func CheckTripNumber(f model.OptionalField) (model.ValidationStatus, string) {
	v, ok := f.Get()
	if !ok {
		return model.ValidationError, "trip number is missing"
	}
	if IsEmptyValue(v) {
		return model.ValidationError, "trip number is empty"
	}
	isNoise, needsVerification := ClassifyTripNumber(v)
	if isNoise {
		return model.ValidationError, "trip number looks like a test value"
	}
	if needsVerification {
		return model.ValidationWarning, "trip number does not match the usual format"
	}
	return model.ValidationValid, ""
}

// CheckDriver grades a driver field. A structurally missing driver is an error;
// an explicit Unassigned is a valid-but-flagged state and grades as a warning.
func CheckDriver(f model.OptionalField) (model.ValidationStatus, string) {
	v, ok := f.Get()
	if !ok {
		return model.ValidationError, "driver is missing"
	}
	if IsEmptyValue(v) {
		return model.ValidationError, "driver is empty"
	}
	if v == model.UnassignedDriver {
		return model.ValidationWarning, "driver is explicitly unassigned"
	}
	return model.ValidationValid, ""
}

// CheckRequiredText grades a plain required text field (addresses).
func CheckRequiredText(name, v string) (model.ValidationStatus, string) {
	if IsEmptyValue(v) {
		return model.ValidationError, name + " is required"
	}
	return model.ValidationValid, ""
}

// CheckOptionalText grades an optional text field (timestamps).
func CheckOptionalText(name, v string) (model.ValidationStatus, string) {
	if IsEmptyValue(v) {
		return model.ValidationWarning, name + " is empty"
	}
	return model.ValidationValid, ""
}

// CheckField grades one field of an order. This is the validator the
// verification editor runs on every keystroke.
func CheckField(field model.Field, o *model.DeliveryOrder) (model.ValidationStatus, string) {
	switch field {
	case model.FieldTripNumber:
		return CheckTripNumber(o.TripNumber)
	case model.FieldDriver:
		return CheckDriver(o.Driver)
	case model.FieldPickup:
		return CheckRequiredText("pickup address", o.Pickup)
	case model.FieldDropoff:
		return CheckRequiredText("delivery address", o.Dropoff)
	case model.FieldReadyTime:
		return CheckOptionalText("ready time", o.ExReadyTime)
	case model.FieldDeliveryTime:
		return CheckOptionalText("delivery time", o.ExDeliveryTime)
	default:
		return model.ValidationInfo, "unknown field"
	}
}

// ColumnSet records which semantic columns the CSV header promised. A field can
// only be "missing" when its column exists; a column never promised is simply
// absent.
type ColumnSet map[model.Field]bool

// AllColumns returns a ColumnSet with every semantic column present, for
// callers that operate on fully-populated orders.
func AllColumns() ColumnSet {
	return ColumnSet{
		model.FieldTripNumber:   true,
		model.FieldDriver:       true,
		model.FieldPickup:       true,
		model.FieldDropoff:      true,
		model.FieldReadyTime:    true,
		model.FieldDeliveryTime: true,
	}
}

// canonical recompute order for MissingFields.
var fieldOrder = []model.Field{
	model.FieldTripNumber,
	model.FieldDriver,
	model.FieldPickup,
	model.FieldDropoff,
	model.FieldReadyTime,
	model.FieldDeliveryTime,
}

// fieldMissing is the per-field validity predicate behind the MissingFields
// invariant.
func fieldMissing(field model.Field, o *model.DeliveryOrder) bool {
	switch field {
	case model.FieldTripNumber:
		v, ok := o.TripNumber.Get()
		if !ok {
			return true
		}
		if IsEmptyValue(v) {
			return true
		}
		isNoise, _ := ClassifyTripNumber(v)
		return isNoise
	case model.FieldDriver:
		v, ok := o.Driver.Get()
		if !ok {
			return true
		}
		if IsEmptyValue(v) {
			return true
		}
		// An explicit Unassigned is a valid state, not a missing field.
		return false
	case model.FieldPickup:
		return IsEmptyValue(o.Pickup)
	case model.FieldDropoff:
		return IsEmptyValue(o.Dropoff)
	case model.FieldReadyTime:
		return IsEmptyValue(o.ExReadyTime)
	case model.FieldDeliveryTime:
		return IsEmptyValue(o.ExDeliveryTime)
	default:
		return false
	}
}

// RecomputeMissingFields re-derives the order's MissingFields set and its trip
// noise flags from current field values. Every mutation path must call this;
// the set is never edited directly.
func RecomputeMissingFields(o *model.DeliveryOrder, cols ColumnSet) {
	missing := make([]model.Field, 0, len(fieldOrder))
	for _, f := range fieldOrder {
		if !cols[f] {
			continue
		}
		if fieldMissing(f, o) {
			missing = append(missing, f)
		}
	}
	o.MissingFields = missing

	o.IsNoise = false
	o.NeedsTripVerification = false
	if v, ok := o.TripNumber.Get(); ok && !IsEmptyValue(v) {
		o.IsNoise, o.NeedsTripVerification = ClassifyTripNumber(v)
	}
}

// ReprocessAll re-derives missing-field state for every order in place.
// Called whenever the order list changes wholesale, so stale flags cannot
// survive a mutation.
func ReprocessAll(orders []model.DeliveryOrder, cols ColumnSet) {
	for i := range orders {
		RecomputeMissingFields(&orders[i], cols)
	}
}
