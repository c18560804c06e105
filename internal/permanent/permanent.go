package permanent

import (
	"errors"
	"fmt"
)

// Error marks a point-event failure that redelivery cannot fix.
// Params: wrapped root cause.
// Returns: typed permanent error marker.
type Error struct {
	Err error
}

func (e Error) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// Permanent reports the marker.
func (Error) Permanent() bool {
	return true
}

// Mark wraps error with permanent marker.
// Params: source error.
// Returns: wrapped error or nil.
func Mark(err error) error {
	if err == nil {
		return nil
	}
	return Error{Err: err}
}

// Errorf formats an error around a sentinel and marks it permanent.
// Params: sentinel kept reachable through errors.Is, detail format and args.
// Returns: permanent error "<sentinel>: <detail>".
func Errorf(sentinel error, format string, args ...any) error {
	return Mark(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

// Is reports whether error has permanent marker.
// Params: candidate error.
// Returns: true when the event should be acknowledged instead of redelivered.
func Is(err error) bool {
	if err == nil {
		return false
	}
	type marker interface {
		Permanent() bool
	}
	var tagged marker
	if !errors.As(err, &tagged) {
		return false
	}
	return tagged.Permanent()
}
