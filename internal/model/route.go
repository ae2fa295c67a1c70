package model

import "strings"

// OrderRoute is an ephemeral billable grouping of orders. Routes are rebuilt
// from scratch on every organization pass, never incrementally maintained.
type OrderRoute struct {
	RouteKey string          `json:"route_key"`
	Orders   []DeliveryOrder `json:"orders"`
}

// Stops returns the number of stops on the route.
func (r *OrderRoute) Stops() int { return len(r.Orders) }

// Driver returns the display driver for the route (all orders in a route share one).
func (r *OrderRoute) Driver() string {
	if len(r.Orders) == 0 {
		return UnassignedDriver
	}
	return r.Orders[0].DriverDisplay()
}

// PumpPickupCount returns how many stops are pump pickups, which are not
// separately billable extra stops.
func (r *OrderRoute) PumpPickupCount() int {
	var n int
	for _, o := range r.Orders {
		if o.IsPumpPickup {
			n++
		}
	}
	return n
}

// DistanceKey returns the cache key for the route's distance: the joined order
// ID sequence. Order-sensitive on purpose, stop order affects real distance.
func (r *OrderRoute) DistanceKey() string {
	ids := make([]string, len(r.Orders))
	for i, o := range r.Orders {
		ids[i] = o.ID
	}
	return strings.Join(ids, "|")
}
