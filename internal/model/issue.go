package model

// Severity grades an issue or validation result.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ValidationStatus is the outcome of checking a single field value.
type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "valid"
	ValidationWarning ValidationStatus = "warning"
	ValidationError   ValidationStatus = "error"
	ValidationInfo    ValidationStatus = "info"
)

// IssueOrderMultiple is the OrderID used for aggregate issues that span orders,
// such as a driver carrying too many deliveries.
const IssueOrderMultiple = "multiple"

// Issue is an advisory record. Issues never block computation; they exist to
// point a dispatcher at orders worth a second look.
type Issue struct {
	OrderID  string   `json:"order_id"`
	Driver   string   `json:"driver"`
	Message  string   `json:"message"`
	Details  string   `json:"details,omitempty"`
	Severity Severity `json:"severity"`
}
