package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed         = errors.New("malformed unit definition")
	ErrDuplicateID       = errors.New("duplicate unit identifier")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrNoTests           = errors.New("unit declares no tests")
	ErrCyclicDependency  = errors.New("cyclic dependency")
)

// Error is returned for any catalog that cannot be loaded. Kind is one of
// the Err* sentinels and is matched by errors.Is.
type Error struct {
	Kind   error
	UnitID string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.UnitID != "" {
		msg = fmt.Sprintf("unit %s: %s", e.UnitID, msg)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func malformed(path string, err error) *Error {
	return &Error{Kind: ErrMalformed, Path: path, Err: err}
}
