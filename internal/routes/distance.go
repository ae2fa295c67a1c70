package routes

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

const (
	// largeRouteStops is the stop count past which the calculator sums known
	// per-order distances instead of chaining geocode calls.
	largeRouteStops = 5

	// largeRouteFactor discounts the per-order sum on large routes: a
	// continuous route is shorter than its orders driven independently.
	largeRouteFactor = 0.85

	// estimatedSumFactor discounts the sum of per-order estimates on small
	// multi-stop routes.
	estimatedSumFactor = 0.9
)

// routeKeyPrefix namespaces route-level entries in the shared distance cache,
// away from the client's coordinate-pair legs.
const routeKeyPrefix = "route:"

// DistanceCalculator resolves a route's total distance. It never fails: every
// branch of the decision ladder ends in a usable number, degrading through
// source data, estimates, and finally zero.
type DistanceCalculator struct {
	client geocode.Client
	cache  geocode.Cache
}

// NewDistanceCalculator creates a calculator over the given geocoding client
// and cache. The cache is keyed by the route's order-ID sequence, so the same
// stops in a different order are a different route; stop order affects real
// distance.
func NewDistanceCalculator(client geocode.Client, cache geocode.Cache) *DistanceCalculator {
	if cache == nil {
		cache = geocode.NewMemoryCache()
	}
	return &DistanceCalculator{client: client, cache: cache}
}

// RouteDistance resolves the total distance in miles for a route.
func (d *DistanceCalculator) RouteDistance(ctx context.Context, route model.OrderRoute) float64 {
	key := routeKeyPrefix + route.DistanceKey()
	if miles, ok, err := d.cache.GetDistance(ctx, key); err == nil && ok {
		return miles
	}

	miles := d.resolve(ctx, route)
	_ = d.cache.PutDistance(ctx, key, miles)
	return miles
}

func (d *DistanceCalculator) resolve(ctx context.Context, route model.OrderRoute) float64 {
	if len(route.Orders) == 0 {
		return 0
	}

	if len(route.Orders) == 1 {
		return d.singleOrderDistance(ctx, &route.Orders[0])
	}

	if len(route.Orders) > largeRouteStops {
		return knownSum(route.Orders) * largeRouteFactor
	}

	if allEstimated(route.Orders) {
		var sum float64
		for _, o := range route.Orders {
			sum += *o.EstimatedDistance
		}
		return sum * estimatedSumFactor
	}

	// Full chain: first pickup, then every dropoff in stop order.
	if miles, ok := d.chainDistance(ctx, route); ok {
		return miles
	}

	// API path failed: raw sum of whatever distances the orders carry.
	return knownSum(route.Orders)
}

func (d *DistanceCalculator) singleOrderDistance(ctx context.Context, o *model.DeliveryOrder) float64 {
	if v, ok := o.KnownDistance(); ok {
		return v
	}

	pickup, err1 := d.client.Geocode(ctx, o.Pickup)
	dropoff, err2 := d.client.Geocode(ctx, o.Dropoff)
	if err1 == nil && err2 == nil && pickup.Matched && dropoff.Matched {
		miles, err := d.client.RouteDistance(ctx, []geocode.Coordinates{pickup.Coordinates, dropoff.Coordinates})
		if err == nil && miles > 0 {
			return miles
		}
		if err != nil {
			zap.L().Debug("directions failed for single-order route",
				zap.String("order", o.ID),
				zap.Error(err),
			)
		}
	}

	if o.EstimatedDistance != nil {
		return *o.EstimatedDistance
	}
	return 0
}

// chainDistance geocodes the full stop chain and asks for one route distance.
// ok is false when any address fails to resolve or the directions call fails.
func (d *DistanceCalculator) chainDistance(ctx context.Context, route model.OrderRoute) (float64, bool) {
	coords := make([]geocode.Coordinates, 0, len(route.Orders)+1)

	first, err := d.client.Geocode(ctx, route.Orders[0].Pickup)
	if err != nil || !first.Matched {
		return 0, false
	}
	coords = append(coords, first.Coordinates)

	for i := range route.Orders {
		r, err := d.client.Geocode(ctx, route.Orders[i].Dropoff)
		if err != nil || !r.Matched {
			return 0, false
		}
		coords = append(coords, r.Coordinates)
	}

	miles, err := d.client.RouteDistance(ctx, coords)
	if err != nil {
		zap.L().Debug("directions failed for route chain",
			zap.String("route", route.RouteKey),
			zap.Error(err),
		)
		return 0, false
	}
	return miles, true
}

func knownSum(orders []model.DeliveryOrder) float64 {
	var sum float64
	for _, o := range orders {
		if v, ok := o.KnownDistance(); ok {
			sum += v
		}
	}
	return sum
}

func allEstimated(orders []model.DeliveryOrder) bool {
	for _, o := range orders {
		if o.EstimatedDistance == nil {
			return false
		}
	}
	return true
}
