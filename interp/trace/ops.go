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
	"fmt"
	"strings"

	"github.com/gx-org/backend/dtype"
)

// Category groups operators by how their result shapes are computed.
// The set of categories is closed: each category has one shape handler.
type Category int

const (
	// Elementwise operators return a value with the shape of their operands.
	Elementwise Category = iota
	// StaticArity operators compute their result shape from the shapes of
	// their operands and from static attributes.
	StaticArity
	// ShapeComputing operators compute the length of their result axes
	// from the values of rank-0 integer operands.
	ShapeComputing
	// OpaqueCall operators call a nested sub-program traced on its own.
	OpaqueCall
)

func (c Category) String() string {
	switch c {
	case Elementwise:
		return "elementwise"
	case StaticArity:
		return "static-arity"
	case ShapeComputing:
		return "shape-computing"
	case OpaqueCall:
		return "opaque-call"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Op identifies an operator.
type Op int

// Operators accepted by the tracer.
const (
	OpInvalid Op = iota

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMax
	OpNeg
	OpExp
	OpSin
	OpCos
	OpSqrt
	OpConvert

	OpConst
	OpDimSize
	OpReduceSum
	OpTranspose
	OpMatMul
	OpConcat
	OpMeasure
	OpCustom

	OpFull
	OpIota
	OpReshape

	OpCall
)

var opInfos = map[Op]struct {
	name string
	cat  Category
}{
	OpAdd:     {"add", Elementwise},
	OpSub:     {"sub", Elementwise},
	OpMul:     {"mul", Elementwise},
	OpDiv:     {"div", Elementwise},
	OpMax:     {"max", Elementwise},
	OpNeg:     {"neg", Elementwise},
	OpExp:     {"exp", Elementwise},
	OpSin:     {"sin", Elementwise},
	OpCos:     {"cos", Elementwise},
	OpSqrt:    {"sqrt", Elementwise},
	OpConvert: {"convert", Elementwise},

	OpConst:     {"const", StaticArity},
	OpDimSize:   {"dim_size", StaticArity},
	OpReduceSum: {"reduce_sum", StaticArity},
	OpTranspose: {"transpose", StaticArity},
	OpMatMul:    {"matmul", StaticArity},
	OpConcat:    {"concat", StaticArity},
	OpMeasure:   {"measure", StaticArity},
	OpCustom:    {"custom", StaticArity},

	OpFull:    {"full", ShapeComputing},
	OpIota:    {"iota", ShapeComputing},
	OpReshape: {"reshape", ShapeComputing},

	OpCall: {"call", OpaqueCall},
}

// String returns the name of the operator.
func (op Op) String() string {
	info, ok := opInfos[op]
	if !ok {
		return fmt.Sprintf("Op(%d)", int(op))
	}
	return info.name
}

// Category returns the category of the operator.
func (op Op) Category() Category {
	return opInfos[op].cat
}

// MeasureKind is the kind of a quantum measurement.
type MeasureKind int

const (
	// Expval is the expectation value of an observable.
	Expval MeasureKind = iota
	// Probs are the probabilities of each computational basis state.
	Probs
	// Sample are the measured bits for a number of shots.
	Sample
)

func (k MeasureKind) String() string {
	switch k {
	case Expval:
		return "expval"
	case Probs:
		return "probs"
	case Sample:
		return "sample"
	}
	return fmt.Sprintf("MeasureKind(%d)", int(k))
}

// Attrs are the static attributes of a node.
// Which fields are set depends on the operator.
type Attrs struct {
	// Axes reduced by reduce_sum, the axis of a concatenation
	// or the axis read by dim_size.
	Axes []int
	// Perm is the permutation of a transposition.
	Perm []int
	// DType is the target data type of convert, full, iota and const.
	DType dtype.DataType
	// Literal is the value of a constant or the fill value of full.
	Literal float64
	// Name of a custom operator.
	Name string
	// Measure is the kind of a measurement.
	Measure MeasureKind
	// Wires and Shots of a measurement.
	Wires, Shots int
}

// Format returns the attributes used by an operator, or an empty string.
func (a *Attrs) Format(op Op) string {
	var ss []string
	switch op {
	case OpReduceSum, OpConcat, OpDimSize:
		ss = append(ss, fmt.Sprintf("axes=%v", a.Axes))
	case OpTranspose:
		ss = append(ss, fmt.Sprintf("perm=%v", a.Perm))
	case OpConvert, OpIota:
		ss = append(ss, "dtype="+a.DType.String())
	case OpConst:
		ss = append(ss, fmt.Sprintf("value=%v", a.Literal))
	case OpFull:
		ss = append(ss, fmt.Sprintf("fill=%v", a.Literal))
	case OpCustom:
		ss = append(ss, "name="+a.Name)
	case OpMeasure:
		ss = append(ss, "kind="+a.Measure.String(), fmt.Sprintf("wires=%d", a.Wires))
		if a.Measure == Sample {
			ss = append(ss, fmt.Sprintf("shots=%d", a.Shots))
		}
	}
	if len(ss) == 0 {
		return ""
	}
	return "[" + strings.Join(ss, " ") + "]"
}
