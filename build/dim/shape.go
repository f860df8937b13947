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

package dim

import (
	"slices"
	"strings"
)

// Shape lists the lengths of the axes of an array.
// The rank of an array is always known: only lengths can be symbolic.
type Shape []Expr

// Static returns a shape where all the axis lengths are known.
func Static(lengths ...int) Shape {
	s := make(Shape, len(lengths))
	for i, l := range lengths {
		s[i] = Const(l)
	}
	return s
}

// Rank of the shape.
func (s Shape) Rank() int {
	return len(s)
}

// Equal returns true if both shapes have the same rank and
// structurally equal axis lengths.
func (s Shape) Equal(o Shape) bool {
	return slices.EqualFunc(s, o, Expr.Equal)
}

// Size returns the number of elements as an expression.
func (s Shape) Size() Expr {
	return Mul(s...)
}

// IsStatic returns true if no axis length depends on a variable.
func (s Shape) IsStatic() bool {
	for _, x := range s {
		if !x.IsStatic() {
			return false
		}
	}
	return true
}

// Vars returns all the variables referenced by the shape in canonical order.
func (s Shape) Vars() []*Var {
	var vars []*Var
	for _, x := range s {
		for _, v := range x.Vars() {
			if !slices.Contains(vars, v) {
				vars = append(vars, v)
			}
		}
	}
	slices.SortFunc(vars, compareVars)
	return vars
}

// Eval returns the concrete axis lengths given variable bindings.
func (s Shape) Eval(b Bindings) ([]int, error) {
	lengths := make([]int, len(s))
	for i, x := range s {
		var err error
		if lengths[i], err = x.Eval(b); err != nil {
			return nil, err
		}
	}
	return lengths, nil
}

// String representation of the shape.
func (s Shape) String() string {
	ss := make([]string, len(s))
	for i, x := range s {
		ss[i] = x.String()
	}
	return "[" + strings.Join(ss, ", ") + "]"
}
