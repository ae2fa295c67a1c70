// Package pricing applies the tiered route cost formula and assembles invoices.
package pricing

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/model"
)

// Rates holds the pricing formula inputs. Values flow from configuration; the
// defaults match the standard rate card.
type Rates struct {
	SingleFlatCost     float64 // flat cost for short single-order routes
	SingleFlatMaxMiles float64 // distance below which the flat cost applies
	PerMile            float64 // per-mile rate
	PerExtraStop       float64 // surcharge per billable extra stop
}

// DefaultRates returns the standard rate card.
func DefaultRates() Rates {
	return Rates{
		SingleFlatCost:     25,
		SingleFlatMaxMiles: 25,
		PerMile:            1.10,
		PerExtraStop:       12,
	}
}

// Costs is the priced breakdown for one route.
type Costs struct {
	BaseCost  float64 `json:"base_cost"`
	AddOns    float64 `json:"add_ons"`
	TotalCost float64 `json:"total_cost"`
}

// round2 rounds to cents. Rounding happens once, at the end of the formula.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CalculateInvoiceCosts prices one route:
//
//   - single, under the flat threshold: flat base cost, no add-ons
//   - single, at or past the threshold: distance x per-mile
//   - multi-stop: distance x per-mile, plus a surcharge per billable extra
//     stop. Pump-pickup stops are not separately billable, so they reduce the
//     billable stop count before the minus-one.
func (r Rates) CalculateInvoiceCosts(routeType model.RouteType, distance float64, stops int, hasPumpPickups bool, pumpPickupCount int) Costs {
	var base, addOns float64

	switch routeType {
	case model.RouteTypeSingle:
		if distance < r.SingleFlatMaxMiles {
			base = r.SingleFlatCost
		} else {
			base = distance * r.PerMile
		}
	case model.RouteTypeMultiStop:
		base = distance * r.PerMile

		billableStops := stops
		if hasPumpPickups {
			billableStops -= pumpPickupCount
		}
		extraStops := billableStops - 1
		if extraStops < 0 {
			extraStops = 0
		}
		addOns = float64(extraStops) * r.PerExtraStop
	}

	base = round2(base)
	addOns = round2(addOns)
	return Costs{BaseCost: base, AddOns: addOns, TotalCost: round2(base + addOns)}
}

// RouteDistancer resolves a route's total distance; satisfied by
// routes.DistanceCalculator.
type RouteDistancer interface {
	RouteDistance(ctx context.Context, route model.OrderRoute) float64
}

// GenerateInvoice prices every route into one invoice line each and aggregates
// totals and per-driver summaries. The invoice starts in draft.
func GenerateInvoice(ctx context.Context, rts []model.OrderRoute, distancer RouteDistancer, rates Rates) *model.Invoice {
	inv := &model.Invoice{
		ID:          uuid.New().String(),
		Status:      model.InvoiceStatusDraft,
		GeneratedAt: time.Now().UTC(),
	}

	for _, route := range rts {
		if len(route.Orders) == 0 {
			continue
		}

		routeType := model.RouteTypeSingle
		if len(route.Orders) > 1 {
			routeType = model.RouteTypeMultiStop
		}

		distance := distancer.RouteDistance(ctx, route)
		pumpCount := route.PumpPickupCount()
		costs := rates.CalculateInvoiceCosts(routeType, distance, route.Stops(), pumpCount > 0, pumpCount)

		ids := make([]string, len(route.Orders))
		for i, o := range route.Orders {
			ids[i] = o.ID
		}

		inv.Items = append(inv.Items, model.InvoiceItem{
			RouteKey:  route.RouteKey,
			Driver:    route.Driver(),
			OrderIDs:  ids,
			RouteType: routeType,
			Distance:  round2(distance),
			Stops:     route.Stops(),
			PumpStops: pumpCount,
			BaseCost:  costs.BaseCost,
			AddOns:    costs.AddOns,
			TotalCost: costs.TotalCost,
		})
	}

	recomputeTotals(inv)
	zap.L().Info("invoice generated",
		zap.String("invoice_id", inv.ID),
		zap.Int("items", len(inv.Items)),
		zap.Float64("total_cost", inv.TotalCost),
	)
	return inv
}

// RecalculateItem replaces the distance of one invoice item and re-derives its
// costs with the same formula. OriginalDistance records the pre-override value
// once; a second recalculation keeps the first original.
func RecalculateItem(inv *model.Invoice, routeKey string, newDistance float64, rates Rates) error {
	if newDistance < 0 {
		return eris.Errorf("pricing: negative distance %f", newDistance)
	}

	for i := range inv.Items {
		item := &inv.Items[i]
		if item.RouteKey != routeKey {
			continue
		}

		if item.OriginalDistance == nil {
			orig := item.Distance
			item.OriginalDistance = &orig
		}

		// Manual overrides adjust distance only; the stop mix is unchanged.
		costs := rates.CalculateInvoiceCosts(item.RouteType, newDistance, item.Stops, item.PumpStops > 0, item.PumpStops)

		// Adjust running totals by the delta rather than re-summing.
		inv.TotalDistance = round2(inv.TotalDistance - item.Distance + newDistance)
		inv.TotalCost = round2(inv.TotalCost - item.TotalCost + costs.TotalCost)

		item.Distance = round2(newDistance)
		item.BaseCost = costs.BaseCost
		item.AddOns = costs.AddOns
		item.TotalCost = costs.TotalCost
		item.Recalculated = true
		inv.RecalculatedCount++

		recomputeDriverSummaries(inv)
		return nil
	}

	return eris.Errorf("pricing: no invoice item for route %q", routeKey)
}

// AdvanceStatus moves the invoice to the given status. Only forward
// transitions are allowed; draft -> reviewed -> finalized is monotonic.
func AdvanceStatus(inv *model.Invoice, target model.InvoiceStatus) error {
	if !inv.Status.CanAdvanceTo(target) {
		return eris.Errorf("pricing: cannot move invoice from %s to %s", inv.Status, target)
	}
	inv.Status = target
	return nil
}

func recomputeTotals(inv *model.Invoice) {
	var dist, cost float64
	for _, item := range inv.Items {
		dist += item.Distance
		cost += item.TotalCost
	}
	inv.TotalDistance = round2(dist)
	inv.TotalCost = round2(cost)
	recomputeDriverSummaries(inv)
}

func recomputeDriverSummaries(inv *model.Invoice) {
	byDriver := make(map[string]*model.DriverSummary)
	for _, item := range inv.Items {
		s, ok := byDriver[item.Driver]
		if !ok {
			s = &model.DriverSummary{Driver: item.Driver}
			byDriver[item.Driver] = s
		}
		s.Routes++
		s.Stops += item.Stops
		s.TotalDistance = round2(s.TotalDistance + item.Distance)
		s.TotalCost = round2(s.TotalCost + item.TotalCost)
	}

	names := make([]string, 0, len(byDriver))
	for name := range byDriver {
		names = append(names, name)
	}
	sort.Strings(names)

	inv.DriverSummaries = inv.DriverSummaries[:0]
	for _, name := range names {
		inv.DriverSummaries = append(inv.DriverSummaries, *byDriver[name])
	}
}
