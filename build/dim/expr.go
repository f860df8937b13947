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
	"strconv"
	"strings"

	"github.com/gx-org/dynshape/build/fmterr"
)

type (
	// term is a product of variables multiplied by a coefficient.
	// A term without variables is a constant.
	term struct {
		coef int
		vars []*Var
	}

	// Expr is a shape expression in canonical form.
	// The zero value is the constant 0.
	Expr struct {
		terms []term
	}
)

// Const returns an expression for a constant size.
func Const(n int) Expr {
	if n == 0 {
		return Expr{}
	}
	return Expr{terms: []term{{coef: n}}}
}

// Of returns an expression referencing a single variable.
func Of(v *Var) Expr {
	return Expr{terms: []term{{coef: 1, vars: []*Var{v}}}}
}

// Add returns the sum of expressions.
func Add(xs ...Expr) Expr {
	var terms []term
	for _, x := range xs {
		terms = append(terms, x.terms...)
	}
	return canonical(terms)
}

// Mul returns the product of expressions.
func Mul(xs ...Expr) Expr {
	r := Const(1)
	for _, x := range xs {
		var terms []term
		for _, rt := range r.terms {
			for _, xt := range x.terms {
				vars := make([]*Var, 0, len(rt.vars)+len(xt.vars))
				vars = append(vars, rt.vars...)
				vars = append(vars, xt.vars...)
				terms = append(terms, term{coef: rt.coef * xt.coef, vars: vars})
			}
		}
		r = canonical(terms)
	}
	return r
}

func compareTerms(a, b term) int {
	// Higher degree terms go first, the constant term last.
	if len(a.vars) != len(b.vars) {
		return len(b.vars) - len(a.vars)
	}
	return slices.CompareFunc(a.vars, b.vars, compareVars)
}

func canonical(terms []term) Expr {
	sorted := make([]term, len(terms))
	for i, t := range terms {
		vars := slices.Clone(t.vars)
		slices.SortFunc(vars, compareVars)
		sorted[i] = term{coef: t.coef, vars: vars}
	}
	slices.SortStableFunc(sorted, compareTerms)
	var merged []term
	for _, t := range sorted {
		last := len(merged) - 1
		if last >= 0 && compareTerms(merged[last], t) == 0 {
			merged[last].coef += t.coef
			continue
		}
		merged = append(merged, t)
	}
	return Expr{terms: slices.DeleteFunc(merged, func(t term) bool {
		return t.coef == 0
	})}
}

// Const returns the size represented by the expression
// if the expression does not depend on any variable.
func (x Expr) Const() (int, bool) {
	switch len(x.terms) {
	case 0:
		return 0, true
	case 1:
		if len(x.terms[0].vars) == 0 {
			return x.terms[0].coef, true
		}
	}
	return 0, false
}

// IsStatic returns true if the expression does not depend on any variable.
func (x Expr) IsStatic() bool {
	_, ok := x.Const()
	return ok
}

// Var returns the variable if the expression is a single variable.
func (x Expr) Var() (*Var, bool) {
	if len(x.terms) != 1 {
		return nil, false
	}
	t := x.terms[0]
	if t.coef != 1 || len(t.vars) != 1 {
		return nil, false
	}
	return t.vars[0], true
}

// Vars returns the variables referenced by the expression, without duplicates,
// in canonical order.
func (x Expr) Vars() []*Var {
	var vars []*Var
	for _, t := range x.terms {
		for _, v := range t.vars {
			if !slices.Contains(vars, v) {
				vars = append(vars, v)
			}
		}
	}
	slices.SortFunc(vars, compareVars)
	return vars
}

// Equal returns true if both expressions have the same canonical form.
func (x Expr) Equal(y Expr) bool {
	return slices.EqualFunc(x.terms, y.terms, func(a, b term) bool {
		return a.coef == b.coef && slices.Equal(a.vars, b.vars)
	})
}

// Eval returns the concrete size given a binding for every variable
// referenced by the expression.
func (x Expr) Eval(b Bindings) (int, error) {
	r := 0
	for _, t := range x.terms {
		p := t.coef
		for _, v := range t.vars {
			val, ok := b[v]
			if !ok {
				return 0, fmterr.Internal(&fmterr.UnboundDimensionVariableError{Var: v.Name})
			}
			p *= val
		}
		r += p
	}
	return r, nil
}

// String representation of the expression.
func (x Expr) String() string {
	if len(x.terms) == 0 {
		return "0"
	}
	ss := make([]string, len(x.terms))
	for i, t := range x.terms {
		var factors []string
		if t.coef != 1 || len(t.vars) == 0 {
			factors = append(factors, strconv.Itoa(t.coef))
		}
		for _, v := range t.vars {
			factors = append(factors, v.Name)
		}
		ss[i] = strings.Join(factors, "*")
	}
	return strings.Join(ss, " + ")
}
