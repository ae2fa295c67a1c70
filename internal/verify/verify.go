// Package verify implements the interactive order correction workflow: pick an
// order with issues, edit one field at a time, validate as the value changes,
// and commit. Saving re-derives all downstream state so the issue list shown
// to the operator is never stale.
package verify

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/issues"
	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/validate"
)

// State is the session's position in the correction workflow.
type State string

const (
	StateIdle          State = "idle"
	StateOrderSelected State = "order-selected"
	StateEditingField  State = "editing-field"
	StateSaving        State = "saving"
)

// Callbacks notify the embedding application of session outcomes. Either hook
// may be nil.
type Callbacks struct {
	// OnOrdersUpdated fires after every successful save with the full updated
	// order list.
	OnOrdersUpdated func(orders []model.DeliveryOrder)
	// OnOrdersVerified fires when the operator approves the session,
	// resolved or not.
	OnOrdersVerified func(orders []model.DeliveryOrder)
}

// Session tracks one correction pass over an order list. It is not safe for
// concurrent use; each operator interaction drives it from a single goroutine.
type Session struct {
	orders     []model.DeliveryOrder
	columns    validate.ColumnSet
	thresholds issues.Thresholds
	callbacks  Callbacks

	state      State
	issueSet   []model.Issue
	selectedID string
	editField  model.Field
	editBuffer string

	// corrected tracks orders touched this session, keyed by ID, so ApproveAll
	// can report what changed.
	corrected map[string]model.DeliveryOrder
}

// NewSession builds a session over the given orders. The issue set is derived
// immediately so callers can render it before any interaction.
func NewSession(orders []model.DeliveryOrder, columns validate.ColumnSet, t issues.Thresholds, cb Callbacks) *Session {
	s := &Session{
		orders:     append([]model.DeliveryOrder(nil), orders...),
		columns:    columns,
		thresholds: t,
		callbacks:  cb,
		state:      StateIdle,
		corrected:  make(map[string]model.DeliveryOrder),
	}
	s.issueSet = issues.Detect(s.orders, s.thresholds)
	return s
}

// State returns the current workflow state.
func (s *Session) State() State { return s.state }

// Issues returns the most recently derived issue set.
func (s *Session) Issues() []model.Issue { return s.issueSet }

// Orders returns a copy of the session's current order list.
func (s *Session) Orders() []model.DeliveryOrder {
	return append([]model.DeliveryOrder(nil), s.orders...)
}

// SelectedOrder returns the currently selected order, if any.
func (s *Session) SelectedOrder() (model.DeliveryOrder, bool) {
	if s.selectedID == "" {
		return model.DeliveryOrder{}, false
	}
	o, _, ok := s.find(s.selectedID)
	return o, ok
}

// EditBuffer returns the in-progress edit value.
func (s *Session) EditBuffer() string { return s.editBuffer }

func (s *Session) find(id string) (model.DeliveryOrder, int, bool) {
	for i, o := range s.orders {
		if o.ID == id {
			return o, i, true
		}
	}
	return model.DeliveryOrder{}, -1, false
}

// Select picks the order to correct and resets any in-progress edit.
func (s *Session) Select(orderID string) error {
	if _, _, ok := s.find(orderID); !ok {
		return eris.Errorf("verify: no order with id %q", orderID)
	}
	s.selectedID = orderID
	s.editField = ""
	s.editBuffer = ""
	s.state = StateOrderSelected
	return nil
}

// StartEdit begins editing one field of the selected order, seeding the edit
// buffer with the field's current normalized value.
func (s *Session) StartEdit(field model.Field) error {
	if s.state != StateOrderSelected && s.state != StateEditingField {
		return eris.Errorf("verify: cannot edit in state %s", s.state)
	}
	o, _, ok := s.find(s.selectedID)
	if !ok {
		return eris.Errorf("verify: selected order %q no longer exists", s.selectedID)
	}
	s.editField = field
	s.editBuffer = currentValue(&o, field)
	s.state = StateEditingField
	return nil
}

// Input replaces the edit buffer and re-validates it. The returned status and
// message are advisory; warnings never block a later save.
func (s *Session) Input(value string) (model.ValidationStatus, string) {
	if s.state != StateEditingField {
		return model.ValidationInfo, "no field being edited"
	}
	s.editBuffer = value
	return s.previewCheck(value)
}

// previewCheck validates the buffer against a scratch copy of the selected
// order, so the real order is untouched until save.
func (s *Session) previewCheck(value string) (model.ValidationStatus, string) {
	o, _, ok := s.find(s.selectedID)
	if !ok {
		return model.ValidationError, "selected order no longer exists"
	}
	applyField(&o, s.editField, value)
	return validate.CheckField(s.editField, &o)
}

// Save validates the edit buffer and, if it passes, commits it: the field is
// written, the order's missing-field set is recomputed, the order is merged
// back into the list, and the whole issue set is re-derived. Hard validation
// errors keep the session in editing-field with the rejected value retained.
func (s *Session) Save() (model.ValidationStatus, string, error) {
	if s.state != StateEditingField {
		return model.ValidationInfo, "", eris.Errorf("verify: cannot save in state %s", s.state)
	}
	s.state = StateSaving

	status, msg := s.previewCheck(s.editBuffer)
	if status == model.ValidationError {
		// Value retained so the operator can fix it in place.
		s.state = StateEditingField
		return status, msg, nil
	}

	o, idx, ok := s.find(s.selectedID)
	if !ok {
		s.state = StateIdle
		return model.ValidationError, "", eris.Errorf("verify: selected order %q no longer exists", s.selectedID)
	}

	applyField(&o, s.editField, s.editBuffer)
	validate.RecomputeMissingFields(&o, s.columns)
	s.orders[idx] = o
	s.corrected[o.ID] = o

	s.issueSet = issues.Detect(s.orders, s.thresholds)
	s.advanceSelection()

	if s.callbacks.OnOrdersUpdated != nil {
		s.callbacks.OnOrdersUpdated(s.Orders())
	}
	zap.L().Debug("order field saved",
		zap.String("order_id", o.ID),
		zap.String("field", string(s.editField)),
		zap.Int("open_issues", len(s.issueSet)),
	)

	s.editField = ""
	s.editBuffer = ""
	return status, msg, nil
}

// CancelEdit abandons the in-progress edit and returns to order-selected.
func (s *Session) CancelEdit() {
	if s.state != StateEditingField {
		return
	}
	s.editField = ""
	s.editBuffer = ""
	s.state = StateOrderSelected
}

// advanceSelection keeps the selection on the current order while it still has
// issues, otherwise moves to the next order with issues, or to idle when the
// list is clean.
func (s *Session) advanceSelection() {
	if len(issues.ForOrder(s.issueSet, s.selectedID)) > 0 {
		s.state = StateOrderSelected
		return
	}
	for _, is := range s.issueSet {
		if is.OrderID == model.IssueOrderMultiple {
			continue
		}
		s.selectedID = is.OrderID
		s.state = StateOrderSelected
		return
	}
	s.selectedID = ""
	s.state = StateIdle
}

// MissingTripNumbers reports whether any order still lacks a usable trip
// number. Callers can use it to warn before ApproveAll; it never blocks.
func (s *Session) MissingTripNumbers() bool {
	for i := range s.orders {
		if s.orders[i].HasMissing(model.FieldTripNumber) {
			return true
		}
	}
	return false
}

// ApproveAll merges every corrected order back into the full list, last write
// wins, and hands the result to the consumer. Unresolved issues do not block
// approval; partial correction is a supported outcome.
func (s *Session) ApproveAll() []model.DeliveryOrder {
	updates := make([]model.DeliveryOrder, 0, len(s.corrected))
	for _, o := range s.corrected {
		updates = append(updates, o)
	}
	merged := model.MergeByID(s.orders, updates)

	s.orders = merged
	s.selectedID = ""
	s.editField = ""
	s.editBuffer = ""
	s.state = StateIdle

	if s.callbacks.OnOrdersVerified != nil {
		s.callbacks.OnOrdersVerified(append([]model.DeliveryOrder(nil), merged...))
	}
	zap.L().Info("verification approved",
		zap.Int("orders", len(merged)),
		zap.Int("corrected", len(updates)),
		zap.Int("open_issues", len(s.issueSet)),
	)
	return append([]model.DeliveryOrder(nil), merged...)
}

func currentValue(o *model.DeliveryOrder, field model.Field) string {
	switch field {
	case model.FieldTripNumber:
		return o.TripNumber.Raw()
	case model.FieldDriver:
		return o.Driver.Raw()
	case model.FieldPickup:
		return o.Pickup
	case model.FieldDropoff:
		return o.Dropoff
	case model.FieldReadyTime:
		return o.ExReadyTime
	case model.FieldDeliveryTime:
		return o.ExDeliveryTime
	default:
		return ""
	}
}

func applyField(o *model.DeliveryOrder, field model.Field, value string) {
	switch field {
	case model.FieldTripNumber:
		o.TripNumber = validate.Classify(value, true)
	case model.FieldDriver:
		o.Driver = validate.Classify(value, true)
	case model.FieldPickup:
		o.Pickup = value
	case model.FieldDropoff:
		o.Dropoff = value
	case model.FieldReadyTime:
		o.ExReadyTime = value
	case model.FieldDeliveryTime:
		o.ExDeliveryTime = value
	}
}
