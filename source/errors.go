package source

import (
	"errors"
	"fmt"
)

// ErrUnknownSource is returned for names never registered with a Store.
var ErrUnknownSource = errors.New("unknown source")

// FetchError describes a failed provider call. It is recovered locally: the
// previous snapshot stays in place and the error is only logged.
type FetchError struct {
	Source string
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Source + ": " + e.Op
	if e.Status != 0 {
		msg += fmt.Sprintf(": unexpected status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func fetchErr(source, op string, err error) *FetchError {
	return &FetchError{Source: source, Op: op, Err: err}
}

var errNoCachedBody = errors.New("not modified but nothing cached")
