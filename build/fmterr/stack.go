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
	"io"

	"github.com/pkg/errors"
)

// CompileError is returned when a function cannot be compiled.
// When formatted with %+v, it also prints the kind of the failure,
// the call site of the operator that could not be traced, and where
// the error was generated.
type CompileError struct {
	Func string
	Err  error
}

// Compile wraps an error returned while compiling a function.
func Compile(fn string, err error) error {
	if err == nil {
		return nil
	}
	return &CompileError{Func: fn, Err: err}
}

// Kind returns a short description of the cause of an error.
func Kind(err error) string {
	var (
		spec         *InvalidAxisSpecError
		conflict     *ConflictingAxisBindingError
		unsupported  *UnsupportedDynamicShapeOperationError
		incompatible *IncompatibleShapeError
	)
	switch {
	case IsInternal(err):
		return "internal error"
	case errors.As(err, &spec), errors.As(err, &conflict):
		return "invalid axis specification"
	case errors.As(err, &unsupported):
		return "unsupported dynamic shape operation"
	case errors.As(err, &incompatible):
		return "incompatible shape"
	}
	return "error"
}

func (err *CompileError) formatVerbose(s fmt.State) {
	io.WriteString(s, err.Error())
	fmt.Fprintf(s, "\nKind: %s", Kind(err.Err))
	var unsupported *UnsupportedDynamicShapeOperationError
	if errors.As(err.Err, &unsupported) && unsupported.Site != "" {
		fmt.Fprintf(s, "\nOperator %s traced at %s", unsupported.Op, unsupported.Site)
	}
	var withSt interface {
		StackTrace() errors.StackTrace
	}
	if !errors.As(err.Err, &withSt) {
		return
	}
	fmt.Fprintf(s, "\nError generated at:%+v\n", withSt.StackTrace())
}

// Format the error.
func (err *CompileError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'w', 'v':
		if s.Flag('+') {
			err.formatVerbose(s)
			return
		}
		io.WriteString(s, err.Error())
	case 's':
		io.WriteString(s, err.Error())
	case 'q':
		fmt.Fprintf(s, "%q", err.Error())
	}
}

func (err *CompileError) Error() string {
	return fmt.Sprintf("%s compile error:\n%s", err.Func, err.Err.Error())
}

// Unwrap returns the underlying error.
func (err *CompileError) Unwrap() error {
	return err.Err
}
