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

// Package aval builds the abstract values of the arguments of a function:
// their data type and the length of each axis, concrete or symbolic.
package aval

import (
	"fmt"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/dynshape/build/dim"
)

// Value is the abstract value of an array: its data type and its shape.
// The data type is always known; axis lengths may depend on dimension variables.
type Value struct {
	DType dtype.DataType
	Shape dim.Shape

	// Scalar is set for rank-0 integer values when their value is known
	// as a shape expression, either because the value has been declared
	// symbolic or because it has been computed from such values.
	Scalar *dim.Expr
}

// New returns a new abstract value.
func New(dt dtype.DataType, sh dim.Shape) Value {
	return Value{DType: dt, Shape: sh}
}

// Rank of the value.
func (v Value) Rank() int {
	return len(v.Shape)
}

// IsStatic returns true if the shape of the value does not depend on a variable.
func (v Value) IsStatic() bool {
	return v.Shape.IsStatic()
}

// WithScalar returns a copy of the value with its scalar expression set.
func (v Value) WithScalar(x dim.Expr) Value {
	v.Scalar = &x
	return v
}

// Equal returns true if two abstract values have the same data type
// and structurally equal shapes and scalar expressions.
func (v Value) Equal(o Value) bool {
	if v.DType != o.DType || !v.Shape.Equal(o.Shape) {
		return false
	}
	if (v.Scalar == nil) != (o.Scalar == nil) {
		return false
	}
	return v.Scalar == nil || v.Scalar.Equal(*o.Scalar)
}

// Key returns a string identifying the abstract value.
// Two values with the same key are equal.
func (v Value) Key() string {
	s := v.String()
	if v.Scalar != nil {
		s += "=" + v.Scalar.String()
	}
	return s
}

func (v Value) String() string {
	return fmt.Sprintf("%s%s", v.DType.String(), v.Shape.String())
}
