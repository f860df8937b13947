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

package fmterr_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gx-org/dynshape/build/fmterr"
	"github.com/pkg/errors"
)

func TestInternal(t *testing.T) {
	err := fmterr.Internal(&fmterr.UnboundDimensionVariableError{Var: "n"})
	if !fmterr.IsInternal(err) {
		t.Errorf("%v not reported as internal", err)
	}
	if again := fmterr.Internal(err); again != err {
		t.Errorf("internal error wrapped twice")
	}
	var unbound *fmterr.UnboundDimensionVariableError
	if !errors.As(err, &unbound) {
		t.Fatalf("cannot find %T in %v", unbound, err)
	}
	if fmterr.IsInternal(&fmterr.InvalidAxisSpecError{}) {
		t.Errorf("user error reported as internal")
	}
	if fmterr.Internal(nil) != nil {
		t.Errorf("Internal(nil) returned a non-nil error")
	}
}

func TestAtCall(t *testing.T) {
	err := fmterr.Unsupported("reshape", "main/circuit#2", "target size %s is not an expression", "x")
	err = fmterr.AtCall("main/circuit#2", err)
	err = fmterr.AtCall("main", err)
	var unsupported *fmterr.UnsupportedDynamicShapeOperationError
	if !errors.As(err, &unsupported) {
		t.Fatalf("cannot find %T in %v", unsupported, err)
	}
	if unsupported.Op != "reshape" {
		t.Errorf("got operator %q but want reshape", unsupported.Op)
	}
	msg := err.Error()
	for _, want := range []string{"in call main:", "in call main/circuit#2:", "operator reshape at main/circuit#2"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q does not contain %q", msg, want)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{
			err:  &fmterr.InvalidAxisSpecError{Arg: 0, Axis: 5, Reason: "rank is 2"},
			want: "invalid axis specification for argument 0 axis 5: rank is 2",
		},
		{
			err:  &fmterr.InvalidAxisSpecError{Arg: 1, Axis: -1, Reason: "not a scalar"},
			want: "invalid axis specification for argument 1 value: not a scalar",
		},
		{
			err:  &fmterr.ConflictingAxisBindingError{Arg: 0, Axis: 2, Names: [2]string{"m", "k"}},
			want: `argument 0 axis 2 declared with conflicting names "m" and "k"`,
		},
		{
			err:  &fmterr.IncompatibleShapeError{Arg: 1, Reason: "axis 0 has length 4 but n=3"},
			want: "argument 1: axis 0 has length 4 but n=3",
		},
	}
	for i, test := range tests {
		if got := test.err.Error(); got != test.want {
			t.Errorf("test %d: got %q but want %q", i, got, test.want)
		}
	}
}

func TestCompileError(t *testing.T) {
	unsupported := fmterr.AtCall("main#4/circuit#0", fmterr.Unsupported("iota", "main#4/circuit#0", "length is not a shape expression"))
	err := fmterr.Compile("main", unsupported)
	want := "main compile error:\n" + unsupported.Error()
	if got := fmt.Sprintf("%v", err); got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	verbose := fmt.Sprintf("%+v", err)
	for _, want := range []string{
		"Kind: unsupported dynamic shape operation",
		"Operator iota traced at main#4/circuit#0",
		"Error generated at:",
	} {
		if !strings.Contains(verbose, want) {
			t.Errorf("verbose format %q does not contain %q", verbose, want)
		}
	}
	var target *fmterr.UnsupportedDynamicShapeOperationError
	if !errors.As(err, &target) {
		t.Errorf("%v does not wrap %T", err, target)
	}
	if fmterr.Compile("main", nil) != nil {
		t.Errorf("Compile(nil) returned a non-nil error")
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: fmterr.Internalf("failure"), want: "internal error"},
		{err: &fmterr.InvalidAxisSpecError{}, want: "invalid axis specification"},
		{err: &fmterr.ConflictingAxisBindingError{}, want: "invalid axis specification"},
		{err: fmterr.Unsupported("add", "", "failure"), want: "unsupported dynamic shape operation"},
		{err: &fmterr.IncompatibleShapeError{}, want: "incompatible shape"},
		{err: errors.New("failure"), want: "error"},
	}
	for i, test := range tests {
		if got := fmterr.Kind(test.err); got != test.want {
			t.Errorf("test %d: got %q but want %q", i, got, test.want)
		}
	}
}
