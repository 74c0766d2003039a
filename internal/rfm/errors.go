package rfm

import "fmt"

// ErrorKind classifies pipeline failures so the triggering layer can map
// them to user-facing responses without string matching.
type ErrorKind string

const (
	// KindNoData means no customers or no orders were available for the
	// requested calc_date. The run aborts before any computation.
	KindNoData ErrorKind = "no_data"

	// KindInvalidParameter means window_days <= 0, k < 1, or k greater
	// than the number of distinct customers.
	KindInvalidParameter ErrorKind = "invalid_parameter"
)

// Error is a structured pipeline failure: a machine-readable kind plus a
// human-readable message. Zero-variance dimensions and empty clusters are
// not errors; they are handled by fallback rules in the scaler and the
// clustering engine.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func noDataErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNoData, Message: fmt.Sprintf(format, args...)}
}

func invalidParamErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidParameter, Message: fmt.Sprintf(format, args...)}
}
