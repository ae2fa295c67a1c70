package issues

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/validate"
)

func completeOrder(id, driver string) model.DeliveryOrder {
	o := model.DeliveryOrder{
		ID:             id,
		TripNumber:     model.Value("TR-1001"),
		Driver:         model.Value(driver),
		Pickup:         "100 Main St, Springfield",
		Dropoff:        "200 Oak Ave, Shelbyville",
		ExReadyTime:    "2026-01-05T08:00:00Z",
		ExDeliveryTime: "2026-01-05T12:00:00Z",
		OrderType:      model.OrderTypeDelivery,
	}
	validate.RecomputeMissingFields(&o, validate.AllColumns())
	return o
}

func messages(got []model.Issue) []string {
	out := make([]string, len(got))
	for i, is := range got {
		out[i] = is.Message
	}
	return out
}

func TestDetectCleanOrdersProduceNoIssues(t *testing.T) {
	t.Parallel()

	orders := []model.DeliveryOrder{completeOrder("o1", "Alice"), completeOrder("o2", "Bob")}
	assert.Empty(t, Detect(orders, DefaultThresholds()))
}

func TestDetectMissingFields(t *testing.T) {
	t.Parallel()

	o := completeOrder("o1", "Alice")
	o.Pickup = ""
	o.TripNumber = model.Missing()
	validate.RecomputeMissingFields(&o, validate.AllColumns())

	got := Detect([]model.DeliveryOrder{o}, DefaultThresholds())
	require.Len(t, got, 1)
	assert.Equal(t, "Incomplete order data", got[0].Message)
	assert.Equal(t, "o1", got[0].OrderID)
	assert.Equal(t, model.SeverityError, got[0].Severity)
	assert.Contains(t, got[0].Details, "Trip Number")
	assert.Contains(t, got[0].Details, "Pickup Address")
}

func TestDetectUnassignedDriverIsNotMissing(t *testing.T) {
	t.Parallel()

	o := completeOrder("o1", model.UnassignedDriver)
	validate.RecomputeMissingFields(&o, validate.AllColumns())

	got := Detect([]model.DeliveryOrder{o}, DefaultThresholds())
	assert.NotContains(t, messages(got), "Incomplete order data")
}

func TestDetectLongRoute(t *testing.T) {
	t.Parallel()

	dist := 151.0
	o := completeOrder("o1", "Alice")
	o.EstimatedDistance = &dist

	got := Detect([]model.DeliveryOrder{o}, DefaultThresholds())
	require.Len(t, got, 1)
	assert.Equal(t, "Exceptionally long route", got[0].Message)
	assert.Equal(t, model.SeverityWarning, got[0].Severity)

	// At the threshold is fine; strictly above fires.
	at := 150.0
	o.EstimatedDistance = &at
	assert.Empty(t, Detect([]model.DeliveryOrder{o}, DefaultThresholds()))
}

func TestDetectLongRouteCustomThreshold(t *testing.T) {
	t.Parallel()

	dist := 60.0
	o := completeOrder("o1", "Alice")
	o.EstimatedDistance = &dist

	got := Detect([]model.DeliveryOrder{o}, Thresholds{LongRouteMiles: 50})
	require.Len(t, got, 1)
	assert.Equal(t, "Exceptionally long route", got[0].Message)
}

func TestDetectTightWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ready    string
		deliver  string
		expected bool
	}{
		{"gap under threshold fires", "2026-01-05T08:00:00Z", "2026-01-05T08:20:00Z", true},
		{"gap at threshold is fine", "2026-01-05T08:00:00Z", "2026-01-05T08:30:00Z", false},
		{"wide window is fine", "2026-01-05T08:00:00Z", "2026-01-05T10:00:00Z", false},
		{"delivery before ready is ignored", "2026-01-05T08:00:00Z", "2026-01-05T07:00:00Z", false},
		{"unparseable ready time is ignored", "soonish", "2026-01-05T08:20:00Z", false},
		{"missing delivery time is ignored", "2026-01-05T08:00:00Z", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := completeOrder("o1", "Alice")
			o.ExReadyTime = tt.ready
			o.ExDeliveryTime = tt.deliver

			got := Detect([]model.DeliveryOrder{o}, DefaultThresholds())
			if tt.expected {
				require.Len(t, got, 1)
				assert.Equal(t, "Tight delivery window", got[0].Message)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestDetectDriverLoad(t *testing.T) {
	t.Parallel()

	var orders []model.DeliveryOrder
	for i := 0; i < 11; i++ {
		o := completeOrder(fmt.Sprintf("a%d", i), "Alice")
		o.TripNumber = model.Value(fmt.Sprintf("TR-%d", 2000+i)) // distinct trips, no stop-count issue
		orders = append(orders, o)
	}
	for i := 0; i < 3; i++ {
		orders = append(orders, completeOrder(fmt.Sprintf("b%d", i), "Bob"))
	}

	got := Detect(orders, DefaultThresholds())
	require.Len(t, got, 1)
	assert.Equal(t, "High driver load", got[0].Message)
	assert.Equal(t, model.IssueOrderMultiple, got[0].OrderID)
	assert.Equal(t, "Alice", got[0].Driver)
}

func TestDetectDriverLoadExcludesUnassigned(t *testing.T) {
	t.Parallel()

	var orders []model.DeliveryOrder
	for i := 0; i < 12; i++ {
		o := completeOrder(fmt.Sprintf("u%d", i), model.UnassignedDriver)
		o.TripNumber = model.Value(fmt.Sprintf("TR-%d", 3000+i))
		orders = append(orders, o)
	}

	assert.NotContains(t, messages(Detect(orders, DefaultThresholds())), "High driver load")
}

func TestDetectOversizedTrip(t *testing.T) {
	t.Parallel()

	var orders []model.DeliveryOrder
	for i := 0; i < 6; i++ {
		orders = append(orders, completeOrder(fmt.Sprintf("o%d", i), "Alice"))
	}

	got := Detect(orders, DefaultThresholds())
	require.Len(t, got, 1)
	assert.Equal(t, "Route has many stops", got[0].Message)
	assert.Contains(t, got[0].Details, "TR-1001")
	assert.Contains(t, got[0].Details, "6 stops")
}

func TestDetectNoiseOrderStillChecked(t *testing.T) {
	t.Parallel()

	o := completeOrder("o1", "Alice")
	o.TripNumber = model.Value("TEST")
	o.Driver = model.Placeholder("")
	validate.RecomputeMissingFields(&o, validate.AllColumns())
	require.True(t, o.IsNoise)

	got := Detect([]model.DeliveryOrder{o}, DefaultThresholds())
	require.Len(t, got, 1)
	assert.Equal(t, "Incomplete order data", got[0].Message)
	assert.Contains(t, got[0].Details, "Driver")
	assert.NotContains(t, got[0].Details, "Trip Number")
}

func TestDetectNoiseOrdersCountTowardDriverLoad(t *testing.T) {
	t.Parallel()

	var orders []model.DeliveryOrder
	for i := 0; i < 11; i++ {
		o := completeOrder(fmt.Sprintf("n%d", i), "Alice")
		o.TripNumber = model.Value("TEST")
		validate.RecomputeMissingFields(&o, validate.AllColumns())
		orders = append(orders, o)
	}

	got := Detect(orders, DefaultThresholds())
	require.Len(t, got, 1)
	assert.Equal(t, "High driver load", got[0].Message)
	assert.Equal(t, "Alice", got[0].Driver)
}

func TestDetectNoiseOrdersExcludedFromTripStops(t *testing.T) {
	t.Parallel()

	var orders []model.DeliveryOrder
	for i := 0; i < 6; i++ {
		o := completeOrder(fmt.Sprintf("n%d", i), "Alice")
		o.TripNumber = model.Value("TEST")
		validate.RecomputeMissingFields(&o, validate.AllColumns())
		orders = append(orders, o)
	}

	assert.NotContains(t, messages(Detect(orders, DefaultThresholds())), "Route has many stops")
}

func TestDetectMultipleIssuesPerOrder(t *testing.T) {
	t.Parallel()

	dist := 200.0
	o := completeOrder("o1", "Alice")
	o.Dropoff = ""
	o.EstimatedDistance = &dist
	o.ExReadyTime = "2026-01-05T08:00:00Z"
	o.ExDeliveryTime = "2026-01-05T08:10:00Z"
	validate.RecomputeMissingFields(&o, validate.AllColumns())

	got := Detect([]model.DeliveryOrder{o}, DefaultThresholds())
	msgs := messages(got)
	assert.Contains(t, msgs, "Incomplete order data")
	assert.Contains(t, msgs, "Exceptionally long route")
	assert.Contains(t, msgs, "Tight delivery window")
}

func TestForOrder(t *testing.T) {
	t.Parallel()

	all := []model.Issue{
		{OrderID: "o1", Message: "Incomplete order data"},
		{OrderID: "o2", Message: "Tight delivery window"},
		{OrderID: model.IssueOrderMultiple, Message: "High driver load"},
	}

	got := ForOrder(all, "o1")
	require.Len(t, got, 1)
	assert.Equal(t, "o1", got[0].OrderID)
	assert.Empty(t, ForOrder(all, "o9"))
}
