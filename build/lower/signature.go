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

package lower

import (
	"fmt"
	"strings"

	"github.com/gx-org/backend/shape"
	"github.com/gx-org/dynshape/base/stringseq"
	"github.com/gx-org/dynshape/build/axes"
	"github.com/gx-org/dynshape/build/dim"
	"github.com/gx-org/dynshape/build/fmterr"
	"github.com/gx-org/dynshape/interp/aval"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Binding binds a dimension variable to an argument axis.
type Binding struct {
	Var *dim.Var
	axes.Location
}

func (b Binding) String() string {
	return fmt.Sprintf("%s=%s", b.Var.Name, b.Location)
}

// Signature of a lowered top-level function.
type Signature struct {
	Name string
	// Inputs and Outputs are the types of the explicit parameters and results.
	Inputs, Outputs []TypeDesc
	// OutputExprs are the shapes of the outputs as functions of the variables.
	OutputExprs []dim.Shape
	// ImplicitParams are passed to the function before its explicit parameters.
	ImplicitParams []*dim.Var
	// ImplicitResults are returned by the function before its explicit results.
	ImplicitResults []dim.Expr
	// Bindings maps every variable crossing a function boundary
	// to the argument axis where it has been declared first.
	Bindings []Binding
	// Constraints lists every argument axis bound to a variable.
	// All the axes bound to the same variable must have the same length.
	Constraints []Binding

	params []aval.Value
}

// NumDynamic returns the number of dynamic axes in the inputs and the outputs.
func (s *Signature) NumDynamic() int {
	n := 0
	for _, desc := range s.Inputs {
		n += desc.NumDynamic()
	}
	for _, desc := range s.Outputs {
		n += desc.NumDynamic()
	}
	return n
}

// Actual is an argument given when calling a compiled function.
type Actual struct {
	Shape *shape.Shape
	// Value of a rank-0 integer argument.
	// Required when the value of the argument is symbolic.
	Value *int
}

// Array returns the actual argument for an array.
func Array(sh *shape.Shape) Actual {
	return Actual{Shape: sh}
}

// Scalar returns the actual argument for a rank-0 integer.
func Scalar(sh *shape.Shape, value int) Actual {
	return Actual{Shape: sh, Value: &value}
}

func (a Actual) length(axis int) (int, bool) {
	if axis != axes.ValueAxis {
		return a.Shape.AxisLengths[axis], true
	}
	if a.Value == nil {
		return 0, false
	}
	return *a.Value, true
}

func incompatible(arg int, format string, a ...any) error {
	return errors.WithStack(&fmterr.IncompatibleShapeError{
		Arg:    arg,
		Reason: fmt.Sprintf(format, a...),
	})
}

func checkArg(arg int, want aval.Value, got Actual) error {
	if got.Shape == nil {
		return incompatible(arg, "missing shape")
	}
	if got.Shape.DType != want.DType {
		return incompatible(arg, "got data type %s but want %s", got.Shape.DType.String(), want.DType.String())
	}
	if len(got.Shape.AxisLengths) != want.Rank() {
		return incompatible(arg, "got %d axes but want %d", len(got.Shape.AxisLengths), want.Rank())
	}
	var errs error
	for axis, length := range want.Shape {
		c, ok := length.Const()
		if !ok || got.Shape.AxisLengths[axis] == c {
			continue
		}
		errs = multierr.Append(errs, incompatible(arg, "axis %d has length %d but want %d", axis, got.Shape.AxisLengths[axis], c))
	}
	return errs
}

// Resolve the dimension variables from the arguments given to a compiled function.
// It checks the data type and rank of every argument, the length of the
// static axes, and that all the axes bound to the same variable have the same length.
func (s *Signature) Resolve(args []Actual) (dim.Bindings, error) {
	if len(args) != len(s.params) {
		return nil, incompatible(min(len(args), len(s.params)), "got %d argument(s) but %s takes %d", len(args), s.Name, len(s.params))
	}
	var errs error
	for i, param := range s.params {
		errs = multierr.Append(errs, checkArg(i, param, args[i]))
	}
	if errs != nil {
		return nil, errs
	}
	b := make(dim.Bindings)
	from := make(map[*dim.Var]axes.Location)
	for _, c := range s.Constraints {
		length, ok := args[c.Arg].length(c.Axis)
		if !ok {
			errs = multierr.Append(errs, incompatible(c.Arg, "missing value: the value of the argument is bound to %s", c.Var.Name))
			continue
		}
		if length < 0 {
			errs = multierr.Append(errs, incompatible(c.Arg, "%s=%d cannot be used as a length", c.Var.Name, length))
			continue
		}
		prev, ok := b[c.Var]
		if !ok {
			b[c.Var] = length
			from[c.Var] = c.Location
			continue
		}
		if prev != length {
			errs = multierr.Append(errs, incompatible(c.Arg, "%s has length %d but %s has length %d: both are bound to %s", c.Location, length, from[c.Var], prev, c.Var.Name))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return b, nil
}

// OutputShapes returns the concrete shapes of the outputs given
// the bindings returned by Resolve.
func (s *Signature) OutputShapes(b dim.Bindings) ([]*shape.Shape, error) {
	shapes := make([]*shape.Shape, len(s.OutputExprs))
	for i, expr := range s.OutputExprs {
		lengths, err := expr.Eval(b)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot compute the shape of output %d", i)
		}
		shapes[i] = &shape.Shape{DType: s.Outputs[i].DType, AxisLengths: lengths}
	}
	return shapes, nil
}

func descString(descs []TypeDesc) string {
	return "(" + stringseq.JoinStringer(descs, ", ") + ")"
}

// String representation of the signature.
func (s *Signature) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s -> %s\n", s.Name, descString(s.Inputs), descString(s.Outputs))
	for i, expr := range s.OutputExprs {
		fmt.Fprintf(&b, "  out%d: %s\n", i, expr)
	}
	for _, x := range s.ImplicitResults {
		fmt.Fprintf(&b, "  implicit: %s\n", x)
	}
	for _, bd := range s.Bindings {
		fmt.Fprintf(&b, "  %s\n", bd)
	}
	return b.String()
}
