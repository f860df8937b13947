// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fmterr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type (
	// InvalidAxisSpecError is returned when an axis specification refers
	// to an argument or an axis that does not exist.
	InvalidAxisSpecError struct {
		Arg, Axis int
		Reason    string
	}

	// ConflictingAxisBindingError is returned when the same argument axis
	// is declared more than once with different names.
	ConflictingAxisBindingError struct {
		Arg, Axis int
		Names     [2]string
	}

	// UnsupportedDynamicShapeOperationError is returned when the shape
	// computed by an operator cannot be expressed from symbolic operands.
	UnsupportedDynamicShapeOperationError struct {
		Op     string
		Site   string
		Reason string
	}

	// UnboundDimensionVariableError is returned when an expression is evaluated
	// without a binding for one of its variables.
	UnboundDimensionVariableError struct {
		Var string
	}

	// IncompatibleShapeError is returned when a concrete argument does not
	// match the signature of a compiled function.
	IncompatibleShapeError struct {
		Arg    int
		Reason string
	}
)

func axisString(axis int) string {
	if axis < 0 {
		return "value"
	}
	return fmt.Sprintf("axis %d", axis)
}

func (err *InvalidAxisSpecError) Error() string {
	return fmt.Sprintf("invalid axis specification for argument %d %s: %s", err.Arg, axisString(err.Axis), err.Reason)
}

func (err *ConflictingAxisBindingError) Error() string {
	return fmt.Sprintf("argument %d %s declared with conflicting names %q and %q", err.Arg, axisString(err.Axis), err.Names[0], err.Names[1])
}

func (err *UnsupportedDynamicShapeOperationError) Error() string {
	var s strings.Builder
	s.WriteString("operator ")
	s.WriteString(err.Op)
	if err.Site != "" {
		s.WriteString(" at ")
		s.WriteString(err.Site)
	}
	s.WriteString(" does not support symbolic shapes: ")
	s.WriteString(err.Reason)
	return s.String()
}

func (err *UnboundDimensionVariableError) Error() string {
	return fmt.Sprintf("dimension variable %s has no binding", err.Var)
}

func (err *IncompatibleShapeError) Error() string {
	return fmt.Sprintf("argument %d: %s", err.Arg, err.Reason)
}

// Unsupported returns an UnsupportedDynamicShapeOperationError with a stack trace.
func Unsupported(op, site, format string, a ...any) error {
	return errors.WithStack(&UnsupportedDynamicShapeOperationError{
		Op:     op,
		Site:   site,
		Reason: fmt.Sprintf(format, a...),
	})
}

type internalError struct {
	err error
}

// Internal marks an error as an internal error of the engine.
// Internal errors are never caused by user input.
func Internal(err error) error {
	if err == nil || IsInternal(err) {
		return err
	}
	return internalError{err: errors.WithStack(err)}
}

// Internalf returns a new internal error.
func Internalf(format string, a ...any) error {
	return Internal(errors.Errorf(format, a...))
}

// IsInternal returns true if the error, or any error it wraps, is an internal error.
func IsInternal(err error) bool {
	var target internalError
	return errors.As(err, &target)
}

func (err internalError) Error() string {
	return "dynshape internal error. This is a bug. Please report it. Error:\n" + err.err.Error()
}

func (err internalError) Unwrap() error {
	return err.err
}

func (err internalError) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}
