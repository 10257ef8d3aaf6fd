// Package hints labels "soft failures" produced during a mirror pass.
//
// Some per-item outcomes look like errors but are really skips: a file that
// does not fit on the destination volume, or a pass that found nothing to do.
// They must reach the log, but they should not be counted as failures of the
// pass. Producers wrap such errors with Wrap; consumers test them with IsHint
// without importing the producer's sentinel errors.
package hints

import "errors"

type hintErr struct {
	err error
}

func (h *hintErr) Error() string {
	if h == nil || h.err == nil {
		return "unknown hint"
	}
	return h.err.Error()
}
func (h *hintErr) IsHint() bool  { return true }
func (h *hintErr) Unwrap() error { return h.err }

// New creates a hint from a string.
func New(msg string) error {
	return &hintErr{err: errors.New(msg)}
}

// Wrap takes an existing error and "promotes" it to a hint.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &hintErr{err: err}
}

// IsHint checks if any error in the chain behaves like a hint.
func IsHint(err error) bool {
	var h interface{ IsHint() bool }
	return errors.As(err, &h) && h.IsHint()
}

// Is checks if the error is a hint AND matches the target error.
func Is(err, target error) bool {
	return IsHint(err) && errors.Is(err, target)
}

// Split separates hard failures from hints. Nil entries are dropped.
func Split(errs []error) (failures, skipped []error) {
	for _, err := range errs {
		switch {
		case err == nil:
		case IsHint(err):
			skipped = append(skipped, err)
		default:
			failures = append(failures, err)
		}
	}
	return failures, skipped
}
