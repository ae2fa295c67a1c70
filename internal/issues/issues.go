// Package issues scans normalized orders for conditions a dispatcher should
// review. Detection is pure and advisory: it never mutates orders and never
// blocks downstream computation.
package issues

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/validate"
)

// Thresholds configures the detector. Zero values fall back to the defaults,
// so a partially populated struct from config is safe to pass.
type Thresholds struct {
	LongRouteMiles  float64 `mapstructure:"long_route_miles" yaml:"long_route_miles"`
	TightWindowMins int     `mapstructure:"tight_window_mins" yaml:"tight_window_mins"`
	DriverLoadMax   int     `mapstructure:"driver_load_max" yaml:"driver_load_max"`
	RouteStopsMax   int     `mapstructure:"route_stops_max" yaml:"route_stops_max"`
}

// DefaultThresholds returns the standard review thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LongRouteMiles:  150,
		TightWindowMins: 30,
		DriverLoadMax:   10,
		RouteStopsMax:   5,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.LongRouteMiles <= 0 {
		t.LongRouteMiles = d.LongRouteMiles
	}
	if t.TightWindowMins <= 0 {
		t.TightWindowMins = d.TightWindowMins
	}
	if t.DriverLoadMax <= 0 {
		t.DriverLoadMax = d.DriverLoadMax
	}
	if t.RouteStopsMax <= 0 {
		t.RouteStopsMax = d.RouteStopsMax
	}
	return t
}

// Detect runs every check over the order list and returns the combined issue
// set. An order can contribute to several issues at once; checks never
// short-circuit each other.
func Detect(orders []model.DeliveryOrder, t Thresholds) []model.Issue {
	t = t.withDefaults()

	var out []model.Issue
	driverLoad := make(map[string]int)
	tripStops := make(map[string]int)
	tripDriver := make(map[string]string)
	var tripOrder []string

	for i := range orders {
		o := &orders[i]

		out = append(out, checkMissingFields(o)...)
		out = append(out, checkLongRoute(o, t.LongRouteMiles)...)
		out = append(out, checkTightWindow(o, t.TightWindowMins)...)

		driver := o.DriverDisplay()
		if driver != model.UnassignedDriver {
			driverLoad[driver]++
		}

		// A noise trip number is not a real trip, so the order stays out of
		// the per-trip stop counting. Every other check above still applies.
		if trip, ok := o.TripNumber.Get(); ok && trip != "" && !o.IsNoise {
			key := driver + "|" + trip
			if _, seen := tripStops[key]; !seen {
				tripOrder = append(tripOrder, key)
				tripDriver[key] = driver
			}
			tripStops[key]++
		}
	}

	out = append(out, checkDriverLoad(driverLoad, t.DriverLoadMax)...)

	for _, key := range tripOrder {
		if tripStops[key] <= t.RouteStopsMax {
			continue
		}
		trip := key[strings.LastIndex(key, "|")+1:]
		out = append(out, model.Issue{
			OrderID:  model.IssueOrderMultiple,
			Driver:   tripDriver[key],
			Message:  "Route has many stops",
			Details:  fmt.Sprintf("trip %s has %d stops (threshold %d)", trip, tripStops[key], t.RouteStopsMax),
			Severity: model.SeverityWarning,
		})
	}

	return out
}

// checkMissingFields emits one incomplete-data issue per order with missing
// fields. A driver explicitly set to Unassigned is not treated as missing; the
// recompute step already encodes that rule, so the derived list is trusted
// as-is.
func checkMissingFields(o *model.DeliveryOrder) []model.Issue {
	names := make([]string, 0, len(o.MissingFields))
	for _, f := range o.MissingFields {
		// A noise trip number gets resolved through trip verification, not
		// reported as missing data.
		if f == model.FieldTripNumber && o.IsNoise {
			continue
		}
		names = append(names, f.DisplayName())
	}
	if len(names) == 0 {
		return nil
	}
	return []model.Issue{{
		OrderID:  o.ID,
		Driver:   o.DriverDisplay(),
		Message:  "Incomplete order data",
		Details:  "missing: " + strings.Join(names, ", "),
		Severity: model.SeverityError,
	}}
}

func checkLongRoute(o *model.DeliveryOrder, maxMiles float64) []model.Issue {
	if o.EstimatedDistance == nil || *o.EstimatedDistance <= maxMiles {
		return nil
	}
	return []model.Issue{{
		OrderID:  o.ID,
		Driver:   o.DriverDisplay(),
		Message:  "Exceptionally long route",
		Details:  fmt.Sprintf("estimated %.1f mi exceeds %.0f mi", *o.EstimatedDistance, maxMiles),
		Severity: model.SeverityWarning,
	}}
}

// checkTightWindow fires only when both timestamps are present and parseable.
// Unparseable times are not an issue here; the missing-fields check owns data
// quality.
func checkTightWindow(o *model.DeliveryOrder, minMinutes int) []model.Issue {
	ready, ok := validate.ParseTimestamp(o.ExReadyTime)
	if !ok {
		return nil
	}
	deliver, ok := validate.ParseTimestamp(o.ExDeliveryTime)
	if !ok {
		return nil
	}
	gap := deliver.Sub(ready).Minutes()
	if gap < 0 || gap >= float64(minMinutes) {
		return nil
	}
	return []model.Issue{{
		OrderID:  o.ID,
		Driver:   o.DriverDisplay(),
		Message:  "Tight delivery window",
		Details:  fmt.Sprintf("%.0f minutes between ready and delivery (threshold %d)", gap, minMinutes),
		Severity: model.SeverityWarning,
	}}
}

func checkDriverLoad(load map[string]int, maxOrders int) []model.Issue {
	drivers := make([]string, 0, len(load))
	for d, n := range load {
		if n > maxOrders {
			drivers = append(drivers, d)
		}
	}
	sort.Strings(drivers)

	out := make([]model.Issue, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, model.Issue{
			OrderID:  model.IssueOrderMultiple,
			Driver:   d,
			Message:  "High driver load",
			Details:  fmt.Sprintf("%d orders assigned (threshold %d)", load[d], maxOrders),
			Severity: model.SeverityWarning,
		})
	}
	return out
}

// ForOrder filters a detected issue set down to one order's issues. Aggregate
// issues (order ID "multiple") are excluded.
func ForOrder(all []model.Issue, orderID string) []model.Issue {
	var out []model.Issue
	for _, is := range all {
		if is.OrderID == orderID {
			out = append(out, is)
		}
	}
	return out
}
