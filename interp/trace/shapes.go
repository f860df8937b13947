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

package trace

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/dynshape/build/axes"
	"github.com/gx-org/dynshape/build/dim"
	"github.com/gx-org/dynshape/build/fmterr"
	"github.com/gx-org/dynshape/interp/aval"
)

// Shape-computing operators.

func (tr *Tracer) customError(name, format string, a ...any) error {
	return fmterr.Unsupported(name, tr.nextSite(), format, a...)
}

// lengthOf returns the expression of a rank-0 integer operand used as
// the length of an axis.
func (tr *Tracer) lengthOf(op Op, x *Value) dim.Expr {
	if x.Rank() != 0 || !axes.IsInteger(x.DType) {
		exceptions.Panicf("%s: %s requires rank-0 integer lengths, got %s", tr.nextSite(), op, x.Value)
	}
	if x.Scalar == nil {
		tr.unsupported(op, "length %s is not a function of the symbolic axes: declare the argument it is computed from as symbolic", x)
	}
	return *x.Scalar
}

func (tr *Tracer) lengthsOf(op Op, xs []*Value) dim.Shape {
	sh := make(dim.Shape, len(xs))
	for i, x := range xs {
		sh[i] = tr.lengthOf(op, x)
	}
	return sh
}

// Full returns an array filled with a value.
// The length of each axis is given by a rank-0 integer value.
func (tr *Tracer) Full(dt dtype.DataType, fill float64, lengths ...*Value) *Value {
	tr.checkOperands(OpFull.String(), lengths)
	sh := tr.lengthsOf(OpFull, lengths)
	attrs := Attrs{DType: dt, Literal: fill}
	return tr.emit(OpFull, attrs, slices.Clone(lengths), aval.New(dt, sh)).Results[0]
}

// Ones returns an array filled with ones.
func (tr *Tracer) Ones(dt dtype.DataType, lengths ...*Value) *Value {
	return tr.Full(dt, 1, lengths...)
}

// Zeros returns an array filled with zeros.
func (tr *Tracer) Zeros(dt dtype.DataType, lengths ...*Value) *Value {
	return tr.Full(dt, 0, lengths...)
}

// Iota returns the array [0, 1, ..., length-1].
func (tr *Tracer) Iota(dt dtype.DataType, length *Value) *Value {
	tr.checkOperands(OpIota.String(), []*Value{length})
	sh := dim.Shape{tr.lengthOf(OpIota, length)}
	return tr.emit(OpIota, Attrs{DType: dt}, []*Value{length}, aval.New(dt, sh)).Results[0]
}

// Reshape x given the length of each axis of the result.
// The number of elements of x and of the result must be provably equal.
func (tr *Tracer) Reshape(x *Value, lengths ...*Value) *Value {
	operands := append([]*Value{x}, lengths...)
	tr.checkOperands(OpReshape.String(), operands)
	sh := tr.lengthsOf(OpReshape, lengths)
	src, dst := x.Shape.Size(), sh.Size()
	if !src.Equal(dst) {
		if src.IsStatic() && dst.IsStatic() {
			exceptions.Panicf("%s: cannot reshape %s into %s", tr.nextSite(), x.Shape, sh)
		}
		tr.unsupported(OpReshape, "cannot prove that %s and %s have the same number of elements (%s and %s)", x.Shape, sh, src, dst)
	}
	return tr.emit(OpReshape, Attrs{}, operands, aval.New(x.DType, sh)).Results[0]
}
