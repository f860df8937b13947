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
	"math"
	"math/bits"
	"slices"
	"strconv"

	"github.com/gomlx/exceptions"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/dynshape/build/axes"
	"github.com/gx-org/dynshape/build/dim"
	"github.com/gx-org/dynshape/interp/aval"
)

// Elementwise operators.

// Add returns x+y.
func (tr *Tracer) Add(x, y *Value) *Value { return tr.elementwise(OpAdd, Attrs{}, x, y) }

// Sub returns x-y.
func (tr *Tracer) Sub(x, y *Value) *Value { return tr.elementwise(OpSub, Attrs{}, x, y) }

// Mul returns x*y.
func (tr *Tracer) Mul(x, y *Value) *Value { return tr.elementwise(OpMul, Attrs{}, x, y) }

// Div returns x/y.
func (tr *Tracer) Div(x, y *Value) *Value { return tr.elementwise(OpDiv, Attrs{}, x, y) }

// Max returns the maximum of x and y.
func (tr *Tracer) Max(x, y *Value) *Value { return tr.elementwise(OpMax, Attrs{}, x, y) }

// Neg returns -x.
func (tr *Tracer) Neg(x *Value) *Value { return tr.elementwise(OpNeg, Attrs{}, x) }

// Exp returns exp(x).
func (tr *Tracer) Exp(x *Value) *Value { return tr.elementwise(OpExp, Attrs{}, x) }

// Sin returns sin(x).
func (tr *Tracer) Sin(x *Value) *Value { return tr.elementwise(OpSin, Attrs{}, x) }

// Cos returns cos(x).
func (tr *Tracer) Cos(x *Value) *Value { return tr.elementwise(OpCos, Attrs{}, x) }

// Sqrt returns the square root of x.
func (tr *Tracer) Sqrt(x *Value) *Value { return tr.elementwise(OpSqrt, Attrs{}, x) }

// Convert x to another data type.
func (tr *Tracer) Convert(x *Value, dt dtype.DataType) *Value {
	return tr.elementwise(OpConvert, Attrs{DType: dt}, x)
}

func (tr *Tracer) elementwise(op Op, attrs Attrs, xs ...*Value) *Value {
	tr.checkOperands(op.String(), xs)
	dt := xs[0].DType
	var sh dim.Shape
	for _, x := range xs {
		if x.DType != dt {
			exceptions.Panicf("%s: %s operands have different data types: %s and %s", tr.nextSite(), op, dt.String(), x.DType.String())
		}
		if x.Rank() == 0 {
			continue
		}
		if sh == nil {
			sh = x.Shape
			continue
		}
		if sh.Equal(x.Shape) {
			continue
		}
		if sh.IsStatic() && x.Shape.IsStatic() {
			exceptions.Panicf("%s: %s operands have incompatible shapes %s and %s", tr.nextSite(), op, sh, x.Shape)
		}
		tr.unsupported(op, "operand shapes %s and %s cannot be proven equal", sh, x.Shape)
	}
	if op == OpConvert {
		dt = attrs.DType
	}
	result := aval.New(dt, sh)
	if result.Rank() == 0 && axes.IsInteger(dt) {
		if scalar, ok := scalarRule(op, xs); ok {
			result = result.WithScalar(scalar)
		}
	}
	return tr.emit(op, attrs, xs, result).Results[0]
}

// scalarRule derives the shape expression of the result of an elementwise
// operator on rank-0 integers. Only sums and products of non-negative
// expressions can be represented: other operators are folded only when
// their operands are constants.
func scalarRule(op Op, xs []*Value) (dim.Expr, bool) {
	exprs := make([]dim.Expr, len(xs))
	consts := make([]int, len(xs))
	allConsts := true
	for i, x := range xs {
		if x.Scalar == nil {
			return dim.Expr{}, false
		}
		exprs[i] = *x.Scalar
		var ok bool
		if consts[i], ok = exprs[i].Const(); !ok {
			allConsts = false
		}
	}
	switch op {
	case OpAdd:
		if allConsts {
			return foldConsts(consts, bits.Add64)
		}
		return dim.Add(exprs...), true
	case OpMul:
		if allConsts {
			return foldConsts(consts, func(x, y, _ uint64) (uint64, uint64) {
				hi, lo := bits.Mul64(x, y)
				return lo, hi
			})
		}
		return dim.Mul(exprs...), true
	case OpConvert:
		return exprs[0], true
	case OpMax:
		if exprs[0].Equal(exprs[1]) {
			return exprs[0], true
		}
		if allConsts {
			return dim.Const(max(consts[0], consts[1])), true
		}
	case OpSub:
		if exprs[1].Equal(dim.Const(0)) {
			return exprs[0], true
		}
		if allConsts && consts[0] >= consts[1] {
			return dim.Const(consts[0] - consts[1]), true
		}
	case OpDiv:
		if exprs[1].Equal(dim.Const(1)) {
			return exprs[0], true
		}
		if allConsts && consts[1] != 0 && consts[0]%consts[1] == 0 {
			return dim.Const(consts[0] / consts[1]), true
		}
	case OpNeg:
		if exprs[0].Equal(dim.Const(0)) {
			return exprs[0], true
		}
	}
	return dim.Expr{}, false
}

// foldConsts combines non-negative constants with op. The result is not
// linked to a shape expression when it does not fit in an int.
func foldConsts(consts []int, op func(x, y, carry uint64) (sum, carryOut uint64)) (dim.Expr, bool) {
	acc := uint64(consts[0])
	for _, c := range consts[1:] {
		var overflow uint64
		acc, overflow = op(acc, uint64(c), 0)
		if overflow != 0 || acc > math.MaxInt {
			return dim.Expr{}, false
		}
	}
	return dim.Const(int(acc)), true
}

// Static-arity operators.

// maxProbsWires is the number of wires from which 1<<wires does not fit in an int.
const maxProbsWires = strconv.IntSize - 1

// integerRange returns the range of values an integer data type can hold.
func integerRange(dt dtype.DataType) (lo, hi float64) {
	switch dt {
	case dtype.Int32:
		return math.MinInt32, math.MaxInt32
	case dtype.Uint32:
		return 0, math.MaxUint32
	case dtype.Uint64:
		return 0, math.MaxUint64
	}
	return math.MinInt64, math.MaxInt64
}

// Const returns a rank-0 constant.
// Integer constants must be integral and fit in their data type.
func (tr *Tracer) Const(dt dtype.DataType, value float64) *Value {
	result := aval.New(dt, nil)
	isInt := axes.IsInteger(dt)
	if isInt {
		if lo, hi := integerRange(dt); value != math.Trunc(value) || value < lo || value >= hi+1 {
			exceptions.Panicf("%s: constant %v cannot be represented as %s", tr.nextSite(), value, dt)
		}
	}
	// Only values fitting in an int can be used as a length.
	if isInt && value >= 0 && value < math.MaxInt {
		result = result.WithScalar(dim.Const(int(value)))
	}
	return tr.emit(OpConst, Attrs{DType: dt, Literal: value}, nil, result).Results[0]
}

// Int returns a rank-0 int64 constant.
func (tr *Tracer) Int(value int) *Value {
	return tr.Const(dtype.Int64, float64(value))
}

// DimSize returns the length of an axis of x as a rank-0 int64 value.
// The value is linked to the shape expression of the axis.
func (tr *Tracer) DimSize(x *Value, axis int) *Value {
	tr.checkOperands(OpDimSize.String(), []*Value{x})
	if axis < 0 || axis >= x.Rank() {
		exceptions.Panicf("%s: cannot read the length of axis %d of a value of rank %d", tr.nextSite(), axis, x.Rank())
	}
	result := aval.New(dtype.Int64, nil).WithScalar(x.Shape[axis])
	return tr.emit(OpDimSize, Attrs{Axes: []int{axis}}, []*Value{x}, result).Results[0]
}

// ReduceSum sums the elements of x along the given axes.
func (tr *Tracer) ReduceSum(x *Value, reduced ...int) *Value {
	tr.checkOperands(OpReduceSum.String(), []*Value{x})
	sh := make(dim.Shape, 0, x.Rank())
	for _, axis := range reduced {
		if axis < 0 || axis >= x.Rank() {
			exceptions.Panicf("%s: cannot reduce axis %d of a value of rank %d", tr.nextSite(), axis, x.Rank())
		}
	}
	for axis, length := range x.Shape {
		if !slices.Contains(reduced, axis) {
			sh = append(sh, length)
		}
	}
	return tr.emit(OpReduceSum, Attrs{Axes: slices.Clone(reduced)}, []*Value{x}, aval.New(x.DType, sh)).Results[0]
}

// Transpose permutes the axes of x.
func (tr *Tracer) Transpose(x *Value, perm ...int) *Value {
	tr.checkOperands(OpTranspose.String(), []*Value{x})
	if len(perm) != x.Rank() {
		exceptions.Panicf("%s: permutation %v does not match the rank %d of the operand", tr.nextSite(), perm, x.Rank())
	}
	seen := make([]bool, len(perm))
	sh := make(dim.Shape, len(perm))
	for i, axis := range perm {
		if axis < 0 || axis >= len(perm) || seen[axis] {
			exceptions.Panicf("%s: %v is not a permutation", tr.nextSite(), perm)
		}
		seen[axis] = true
		sh[i] = x.Shape[axis]
	}
	return tr.emit(OpTranspose, Attrs{Perm: slices.Clone(perm)}, []*Value{x}, aval.New(x.DType, sh)).Results[0]
}

// MatMul multiplies two matrices.
func (tr *Tracer) MatMul(x, y *Value) *Value {
	tr.checkOperands(OpMatMul.String(), []*Value{x, y})
	if x.Rank() != 2 || y.Rank() != 2 {
		exceptions.Panicf("%s: matmul requires two matrices, got ranks %d and %d", tr.nextSite(), x.Rank(), y.Rank())
	}
	if x.DType != y.DType {
		exceptions.Panicf("%s: matmul operands have different data types: %s and %s", tr.nextSite(), x.DType.String(), y.DType.String())
	}
	tr.checkSameLength(OpMatMul, x.Shape[1], y.Shape[0])
	sh := dim.Shape{x.Shape[0], y.Shape[1]}
	return tr.emit(OpMatMul, Attrs{}, []*Value{x, y}, aval.New(x.DType, sh)).Results[0]
}

func (tr *Tracer) checkSameLength(op Op, a, b dim.Expr) {
	if a.Equal(b) {
		return
	}
	if a.IsStatic() && b.IsStatic() {
		exceptions.Panicf("%s: %s axis lengths %s and %s do not match", tr.nextSite(), op, a, b)
	}
	tr.unsupported(op, "axis lengths %s and %s cannot be proven equal", a, b)
}

// Concat concatenates values along an axis.
// The length of the concatenated axis is the sum of the lengths of the operands.
func (tr *Tracer) Concat(axis int, xs ...*Value) *Value {
	tr.checkOperands(OpConcat.String(), xs)
	if len(xs) == 0 {
		exceptions.Panicf("%s: concat requires at least one operand", tr.nextSite())
	}
	first := xs[0]
	if axis < 0 || axis >= first.Rank() {
		exceptions.Panicf("%s: cannot concatenate along axis %d of a value of rank %d", tr.nextSite(), axis, first.Rank())
	}
	lengths := make([]dim.Expr, len(xs))
	for i, x := range xs {
		if x.Rank() != first.Rank() || x.DType != first.DType {
			exceptions.Panicf("%s: cannot concatenate %s with %s", tr.nextSite(), first.Value, x.Value)
		}
		for ax := range x.Shape {
			if ax != axis {
				tr.checkSameLength(OpConcat, first.Shape[ax], x.Shape[ax])
			}
		}
		lengths[i] = x.Shape[axis]
	}
	sh := slices.Clone(first.Shape)
	sh[axis] = dim.Add(lengths...)
	return tr.emit(OpConcat, Attrs{Axes: []int{axis}}, xs, aval.New(first.DType, sh)).Results[0]
}

// Measure applies a quantum measurement. The shape of the result only
// depends on the kind of measurement, the number of wires and the number of shots.
func (tr *Tracer) Measure(kind MeasureKind, wires, shots int) *Value {
	if wires <= 0 || shots < 0 {
		exceptions.Panicf("%s: invalid measurement on %d wire(s) with %d shot(s)", tr.nextSite(), wires, shots)
	}
	if kind == Probs && wires >= maxProbsWires {
		exceptions.Panicf("%s: cannot compute the probabilities of %d wires: the length of the result overflows (maximum %d wires)", tr.nextSite(), wires, maxProbsWires-1)
	}
	var result aval.Value
	switch kind {
	case Expval:
		result = aval.New(dtype.Float64, nil)
	case Probs:
		result = aval.New(dtype.Float64, dim.Static(1<<wires))
	case Sample:
		if shots == 0 {
			exceptions.Panicf("%s: sampling requires a number of shots", tr.nextSite())
		}
		result = aval.New(dtype.Int64, dim.Static(shots, wires))
	default:
		exceptions.Panicf("%s: unknown measurement %s", tr.nextSite(), kind)
	}
	attrs := Attrs{Measure: kind, Wires: wires, Shots: shots}
	return tr.emit(OpMeasure, attrs, nil, result).Results[0]
}

// Custom applies an operator without a shape rule.
// The shapes of its results are given by the caller and can only be used
// when all the operands and results have static shapes.
func (tr *Tracer) Custom(name string, operands []*Value, results ...aval.Value) []*Value {
	tr.checkOperands(name, operands)
	for _, x := range operands {
		if !x.IsStatic() {
			panic(tr.customError(name, "operand %s has a symbolic shape %s", x, x.Shape))
		}
	}
	for i, res := range results {
		if !res.IsStatic() {
			panic(tr.customError(name, "result %d has a symbolic shape %s", i, res.Shape))
		}
	}
	return tr.emit(OpCustom, Attrs{Name: name}, operands, results...).Results
}
