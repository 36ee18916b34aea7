package billing

import "fmt"

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// LineError reports the log line a record failed on.
type LineError struct {
	Line int
	Err  error
}

// Error implements the error interface.
func (e *LineError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *LineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
