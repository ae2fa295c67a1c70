package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dispatch-cli/internal/model"
)

func TestIsEmptyValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"n/a", true},
		{"N/A", true},
		{"NA", true},
		{"None", true},
		{"-", true},
		{"123 Main St", false},
		{"0", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsEmptyValue(tt.in))
		})
	}
}

func TestClassifyTripNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in            string
		wantNoise     bool
		wantNeedsVerif bool
	}{
		{"TEST", true, false},
		{"test-123", true, false},
		{"12", true, false},
		{"123", false, false},
		{"TR-1001", false, false},
		{"ABC 12345678", false, false},
		{"totally wrong", false, true},
		{"ABCD-123", false, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			noise, verif := ClassifyTripNumber(tt.in)
			assert.Equal(t, tt.wantNoise, noise, "isNoise")
			assert.Equal(t, tt.wantNeedsVerif, verif, "needsVerification")
		})
	}
}

func TestCheckTripNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   model.OptionalField
		want model.ValidationStatus
	}{
		{"missing", model.Missing(), model.ValidationError},
		{"placeholder", model.Placeholder("n/a"), model.ValidationError},
		{"empty value", model.Value("  "), model.ValidationError},
		{"noise", model.Value("TEST"), model.ValidationError},
		{"odd format", model.Value("XXXX-99"), model.ValidationWarning},
		{"well formed", model.Value("TR-1001"), model.ValidationValid},
		{"bare digits", model.Value("4401235"), model.ValidationValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, _ := CheckTripNumber(tt.in)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestCheckDriver(t *testing.T) {
	t.Parallel()

	status, _ := CheckDriver(model.Missing())
	assert.Equal(t, model.ValidationError, status)

	// Explicit Unassigned is a warning, not an error.
	status, msg := CheckDriver(model.Value(model.UnassignedDriver))
	assert.Equal(t, model.ValidationWarning, status)
	assert.NotEmpty(t, msg)

	status, _ = CheckDriver(model.Value("Jane Doe"))
	assert.Equal(t, model.ValidationValid, status)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.True(t, Classify("whatever", false).IsMissing())
	assert.True(t, Classify("", true).IsPlaceholder())
	assert.True(t, Classify("N/A", true).IsPlaceholder())
	assert.True(t, Classify("TR-1001", true).IsValue())
}

func TestRecomputeMissingFields(t *testing.T) {
	t.Parallel()

	o := model.DeliveryOrder{
		TripNumber: model.Missing(),
		Driver:     model.Value("Jane Doe"),
		Pickup:     "123 Main St",
		Dropoff:    "",
	}

	cols := ColumnSet{
		model.FieldTripNumber: true,
		model.FieldDriver:     true,
		model.FieldPickup:     true,
		model.FieldDropoff:    true,
	}

	RecomputeMissingFields(&o, cols)
	assert.Equal(t, []model.Field{model.FieldTripNumber, model.FieldDropoff}, o.MissingFields)

	// Fixing the field and recomputing clears the flag, leaving no stale state.
	o.TripNumber = model.Value("TR-1001")
	o.Dropoff = "456 Oak Ave"
	RecomputeMissingFields(&o, cols)
	assert.Empty(t, o.MissingFields)
}

func TestRecomputeMissingFieldsColumnNeverPromised(t *testing.T) {
	t.Parallel()

	o := model.DeliveryOrder{
		TripNumber: model.Missing(),
		Pickup:     "123 Main St",
		Dropoff:    "456 Oak Ave",
	}

	// Trip number column absent from header: the field is absent, not missing.
	cols := ColumnSet{
		model.FieldPickup:  true,
		model.FieldDropoff: true,
	}

	RecomputeMissingFields(&o, cols)
	assert.Empty(t, o.MissingFields)
}

func TestRecomputeSetsNoiseFlags(t *testing.T) {
	t.Parallel()

	o := model.DeliveryOrder{TripNumber: model.Value("TEST"), Pickup: "A", Dropoff: "B"}
	RecomputeMissingFields(&o, AllColumns())
	assert.True(t, o.IsNoise)
	assert.False(t, o.NeedsTripVerification)
	assert.True(t, o.HasMissing(model.FieldTripNumber))

	o.TripNumber = model.Value("oddball")
	RecomputeMissingFields(&o, AllColumns())
	assert.False(t, o.IsNoise)
	assert.True(t, o.NeedsTripVerification)
	assert.False(t, o.HasMissing(model.FieldTripNumber))
}

func TestUnassignedDriverNotMissing(t *testing.T) {
	t.Parallel()

	o := model.DeliveryOrder{
		TripNumber: model.Value("TR-1001"),
		Driver:     model.Value(model.UnassignedDriver),
		Pickup:     "A",
		Dropoff:    "B",
	}
	RecomputeMissingFields(&o, AllColumns())
	assert.False(t, o.HasMissing(model.FieldDriver))

	o.Driver = model.Missing()
	RecomputeMissingFields(&o, AllColumns())
	assert.True(t, o.HasMissing(model.FieldDriver))
}
