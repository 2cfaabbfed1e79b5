package jolpica

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	// ErrNetwork means the API could not be reached or answered with a
	// server-side failure. Retrying later may help.
	ErrNetwork = errors.New("results API unavailable")

	// ErrNotFound means the API answered but has nothing for the query,
	// for example an unknown driver id or a round that has not run yet.
	ErrNotFound = errors.New("no data for query")

	// ErrParse means the API answered with a shape this client does not
	// understand.
	ErrParse = errors.New("unexpected response from results API")
)

// Error is returned by every Client method.
type Error struct {
	Kind   error
	Op     string
	Status int // HTTP status when one was received
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("jolpica %s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func networkError(op string, status int, err error) error {
	return &Error{Kind: ErrNetwork, Op: op, Status: status, Err: err}
}

func notFound(op string, status int) error {
	return &Error{Kind: ErrNotFound, Op: op, Status: status}
}

func parseError(op string, err error) error {
	return &Error{Kind: ErrParse, Op: op, Err: err}
}

// Kind returns the error kind of err, or nil if err did not come from this
// package.
func Kind(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
