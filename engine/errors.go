package engine

import "fmt"

// ValidationKind classifies a strategy or input validation failure.
type ValidationKind string

const (
	InvalidStopLoss      ValidationKind = "invalid_stop_loss"
	InvalidTargetProfit  ValidationKind = "invalid_target_profit"
	UnknownOperator      ValidationKind = "unknown_operator"
	InvalidVariableName  ValidationKind = "invalid_variable_name"
	UnknownIndicator     ValidationKind = "unknown_indicator"
	EmptyEntryConditions ValidationKind = "empty_entry_conditions"
	EmptyBarStream       ValidationKind = "empty_bar_stream"
)

// ValidationError is fatal to a run and surfaces to the caller before any
// simulation begins. Per-bar irregularities (missing indicator, NaN value)
// are absorbed into the diagnostic trace instead.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func validationErrorf(kind ValidationKind, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError builds a ValidationError for collaborating packages
// that validate strategy input, such as the indicator decorator.
func NewValidationError(kind ValidationKind, message string) *ValidationError {
	return &ValidationError{Kind: kind, Message: message}
}

// IsValidationError reports whether err is a ValidationError, returning it.
func IsValidationError(err error) (*ValidationError, bool) {
	ve, ok := err.(*ValidationError)
	return ve, ok
}
