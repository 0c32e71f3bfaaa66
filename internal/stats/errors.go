package stats

import (
	"errors"
	"fmt"
)

// ErrCollectorUnavailable is the root of every collector failure: the process
// could not be started, exited non-zero, or printed something unparsable.
var ErrCollectorUnavailable = errors.New("collector unavailable")

// CollectorError records which collector operation failed for which interface.
type CollectorError struct {
	Err       error
	Op        string
	Interface string
}

func (e *CollectorError) Error() string {
	if e.Interface == "" {
		return fmt.Sprintf("%v: %s: %v", ErrCollectorUnavailable, e.Op, e.Err)
	}
	return fmt.Sprintf("%v: %s %s: %v", ErrCollectorUnavailable, e.Op, e.Interface, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *CollectorError) Unwrap() []error {
	return []error{ErrCollectorUnavailable, e.Err}
}

func collectorError(op, iface string, err error) error {
	return &CollectorError{Op: op, Interface: iface, Err: err}
}
