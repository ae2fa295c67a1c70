// Package routes groups flat orders into billable routes and resolves their
// driving distances.
package routes

import (
	"fmt"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/validate"
)

// Organize groups orders into routes. Grouping precedence per order:
//
//  1. trip number present: driver|date|trip:<tripNumber>
//  2. ready time parses:   driver|date|hour:<hour> (coarse time-window bucket)
//  3. otherwise:           driver|order:<id>, a singleton never merged
//
// The result is a partition: every order lands in exactly one route, routes
// appear in first-seen key order, and there is no cross-route merging pass.
func Organize(orders []model.DeliveryOrder) []model.OrderRoute {
	byKey := make(map[string]int, len(orders))
	var out []model.OrderRoute

	for _, o := range orders {
		key := routeKey(&o)
		if i, ok := byKey[key]; ok {
			out[i].Orders = append(out[i].Orders, o)
			continue
		}
		byKey[key] = len(out)
		out = append(out, model.OrderRoute{RouteKey: key, Orders: []model.DeliveryOrder{o}})
	}

	return out
}

func routeKey(o *model.DeliveryOrder) string {
	driver := o.DriverDisplay()

	if trip, ok := o.TripNumber.Get(); ok && !validate.IsEmptyValue(trip) {
		return fmt.Sprintf("%s|%s|trip:%s", driver, readyDate(o), trip)
	}

	if t, ok := validate.ParseTimestamp(o.ExReadyTime); ok {
		return fmt.Sprintf("%s|%s|hour:%d", driver, t.Format("2006-01-02"), t.Hour())
	}

	return fmt.Sprintf("%s|order:%s", driver, o.ID)
}

// readyDate returns the date component of the ready time, or a fixed bucket
// when the timestamp is absent or unparsable.
func readyDate(o *model.DeliveryOrder) string {
	if t, ok := validate.ParseTimestamp(o.ExReadyTime); ok {
		return t.Format("2006-01-02")
	}
	return "no-date"
}
