// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package factory

import (
	"fmt"
	"io"

	"github.com/facebookgo/stack"
	"github.com/pkg/errors"
)

var (
	// ErrUnitNotFound should be returned (possibly wrapped) by Loader, when
	// there is no unit at requested path.
	ErrUnitNotFound = errors.New("unit not found")
	// ErrNoFactoryBase returned when derivative doesn't know family that owns it.
	ErrNoFactoryBase = errors.New("couldn't find factory base")
	// ErrAbstract returned on attempt to construct derivative without constructor.
	ErrAbstract = errors.New("derivative has no constructor")
)

// IsNotFound returns true, if err means that loader has no unit at path.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnitNotFound)
}

// NotADescendantError returned when passed type handle is not family base
// or one of its registered derivatives.
type NotADescendantError struct {
	Identifier string
	Family     string
}

func (e *NotADescendantError) Error() string {
	return fmt.Sprintf("%s is not a descendant of %s", e.Identifier, e.Family)
}

// NotFoundError returned when no unit has been found at every candidate path.
type NotFoundError struct {
	FactoryType string
	ModuleName  string
	Tried       []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("couldn't find a %s named '%s': tried %q", e.FactoryType, e.ModuleName, e.Tried)
}

// LoadError wraps first error of unit that was found but failed to load.
// Error message is the same as wrapped one.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return e.Err.Error() }
func (e *LoadError) Cause() error  { return e.Err }
func (e *LoadError) Unwrap() error { return e.Err }

// RegistrationMismatchError returned when unit has been loaded, but haven't
// registered derivative under expected key.
type RegistrationMismatchError struct {
	Path        string
	FactoryType string
	Key         string
}

func (e *RegistrationMismatchError) Error() string {
	return fmt.Sprintf("load of '%s' succeeded, but didn't register a %s named '%s'", e.Path, e.FactoryType, e.Key)
}

// ConstructionError returned when derivative constructor fails or panics.
// Cause is original error. Stack points to constructor failure origin, or
// to Create caller, but never to this package internals.
type ConstructionError struct {
	Identifier string
	Err        error
	stack      stack.Stack
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("When creating '%s': %s", e.Identifier, e.Err)
}

func (e *ConstructionError) Cause() error  { return e.Err }
func (e *ConstructionError) Unwrap() error { return e.Err }

// Stack returns failure origin stack.
func (e *ConstructionError) Stack() stack.Stack { return e.stack }

func (e *ConstructionError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = io.WriteString(s, e.Error())
			if len(e.stack) > 0 {
				_, _ = io.WriteString(s, "\n")
				_, _ = io.WriteString(s, e.stack.String())
			}
			return
		}
		fallthrough
	case 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}
