package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownLibrary indicates a lookup of a name that was never defined
	ErrUnknownLibrary = errors.New("unknown library")

	// ErrDuplicateLibrary indicates a second definition of the same name
	ErrDuplicateLibrary = errors.New("library already defined")

	// ErrNoLinkBehavior indicates a library with neither link flags nor static archives
	ErrNoLinkBehavior = errors.New("library has no link flags and no static archives")

	// ErrPackageNotFound indicates the system package provider does not know the package
	ErrPackageNotFound = errors.New("system package not found")
)

// Error wraps a registry error with the operation and library name.
type Error struct {
	Op   string // Operation that failed
	Name string // Library name
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
