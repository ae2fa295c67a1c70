package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalFieldVariants(t *testing.T) {
	t.Parallel()

	m := Missing()
	assert.True(t, m.IsMissing())
	assert.False(t, m.IsValue())
	_, ok := m.Get()
	assert.False(t, ok)

	p := Placeholder("N/A")
	assert.True(t, p.IsPlaceholder())
	assert.Equal(t, "N/A", p.Raw())
	_, ok = p.Get()
	assert.False(t, ok)

	v := Value("TR-1001")
	assert.True(t, v.IsValue())
	got, ok := v.Get()
	assert.True(t, ok)
	assert.Equal(t, "TR-1001", got)
}

func TestOptionalFieldJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field OptionalField
		want  string
	}{
		{"missing encodes as null", Missing(), "null"},
		{"placeholder keeps raw token", Placeholder("-"), `"-"`},
		{"value encodes as string", Value("TR-1001"), `"TR-1001"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := json.Marshal(tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}

	var decoded OptionalField
	require.NoError(t, json.Unmarshal([]byte("null"), &decoded))
	assert.True(t, decoded.IsMissing())

	require.NoError(t, json.Unmarshal([]byte(`"TR-5"`), &decoded))
	assert.True(t, decoded.IsValue())
}

func TestDriverDisplay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		driver OptionalField
		want   string
	}{
		{"missing driver", Missing(), UnassignedDriver},
		{"placeholder driver", Placeholder("n/a"), UnassignedDriver},
		{"explicit unassigned", Value(UnassignedDriver), UnassignedDriver},
		{"real driver", Value("Jane Doe"), "Jane Doe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := DeliveryOrder{Driver: tt.driver}
			assert.Equal(t, tt.want, o.DriverDisplay())
		})
	}
}

func TestKnownDistance(t *testing.T) {
	t.Parallel()

	src := 12.5
	est := 9.8

	o := DeliveryOrder{}
	_, ok := o.KnownDistance()
	assert.False(t, ok)

	o.EstimatedDistance = &est
	d, ok := o.KnownDistance()
	assert.True(t, ok)
	assert.InDelta(t, 9.8, d, 0.001)

	// Source distance wins over the estimate.
	o.Distance = &src
	d, _ = o.KnownDistance()
	assert.InDelta(t, 12.5, d, 0.001)
}

func TestMergeByID(t *testing.T) {
	t.Parallel()

	base := []DeliveryOrder{
		{ID: "order-1", Pickup: "A"},
		{ID: "order-2", Pickup: "B"},
	}
	updates := []DeliveryOrder{
		{ID: "order-2", Pickup: "B-corrected"},
		{ID: "order-9", Pickup: "unknown"},
	}

	merged := MergeByID(base, updates)
	require.Len(t, merged, 2)
	assert.Equal(t, "A", merged[0].Pickup)
	assert.Equal(t, "B-corrected", merged[1].Pickup)
}

func TestInvoiceStatusTransitions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, InvoiceStatusReviewed, InvoiceStatusDraft.Next())
	assert.Equal(t, InvoiceStatusFinalized, InvoiceStatusReviewed.Next())
	assert.Equal(t, InvoiceStatusFinalized, InvoiceStatusFinalized.Next())

	assert.True(t, InvoiceStatusDraft.CanAdvanceTo(InvoiceStatusFinalized))
	assert.False(t, InvoiceStatusFinalized.CanAdvanceTo(InvoiceStatusDraft))
	assert.False(t, InvoiceStatusReviewed.CanAdvanceTo(InvoiceStatusReviewed))
}

func TestRouteDistanceKey(t *testing.T) {
	t.Parallel()

	r := OrderRoute{Orders: []DeliveryOrder{{ID: "order-1"}, {ID: "order-2"}}}
	reversed := OrderRoute{Orders: []DeliveryOrder{{ID: "order-2"}, {ID: "order-1"}}}

	assert.Equal(t, "order-1|order-2", r.DistanceKey())
	// Stop order matters: same set, different key.
	assert.NotEqual(t, r.DistanceKey(), reversed.DistanceKey())
}
