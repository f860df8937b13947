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

// Package dim implements dimension variables and the shape expressions
// computed from them.
//
// A shape expression is kept in a canonical form: a sum of products of
// dimension variables, each product having a non-negative integer
// coefficient. Two expressions computing the same polynomial have the
// same canonical form, so structural equality does not depend on the order
// in which operands were combined.
package dim

import "fmt"

// ValueAxis is the axis index used when a variable is bound to the value
// of a rank-0 integer argument instead of an axis of its shape.
const ValueAxis = -1

// Var is a dimension variable: a size unknown at compile time.
// Variables are compared by identity: two variables with the same name
// declared in different compile requests are different variables.
type Var struct {
	// Name of the variable as declared by the user or synthesised by the engine.
	Name string
	// Arg is the index of the argument where the variable was first declared.
	Arg int
	// Axis is the axis of the argument where the variable was first declared.
	// It is ValueAxis if the variable is the value of a scalar argument.
	Axis int
}

// NewVar returns a new dimension variable declared at a given argument axis.
func NewVar(name string, arg, axis int) *Var {
	return &Var{Name: name, Arg: arg, Axis: axis}
}

// String returns the name of the variable.
func (v *Var) String() string {
	return v.Name
}

// Location returns where the variable has been declared.
func (v *Var) Location() string {
	if v.Axis == ValueAxis {
		return fmt.Sprintf("value of argument %d", v.Arg)
	}
	return fmt.Sprintf("argument %d axis %d", v.Arg, v.Axis)
}

func compareVars(a, b *Var) int {
	switch {
	case a == b:
		return 0
	case a.Arg != b.Arg:
		return a.Arg - b.Arg
	case a.Axis != b.Axis:
		return a.Axis - b.Axis
	case a.Name < b.Name:
		return -1
	case a.Name > b.Name:
		return 1
	}
	return 0
}

// Bindings maps dimension variables to concrete sizes.
type Bindings map[*Var]int
