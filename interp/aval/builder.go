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

package aval

import (
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/dynshape/build/axes"
	"github.com/gx-org/dynshape/build/dim"
	"github.com/gx-org/dynshape/build/fmterr"
	"github.com/pkg/errors"
)

// Input is an argument of a compile request: either the shape of
// a concrete argument or a template for ahead-of-time compilation.
type Input struct {
	Shape    *shape.Shape
	Template *axes.Template
}

// Concrete returns the input of a concrete argument.
func Concrete(sh *shape.Shape) Input {
	return Input{Shape: sh}
}

// FromTemplate returns the input of an ahead-of-time argument.
func FromTemplate(tmpl *axes.Template) Input {
	return Input{Template: tmpl}
}

// Decls returns the declarations of inputs to build an axis environment.
func Decls(inputs []Input) ([]axes.Decl, error) {
	decls := make([]axes.Decl, len(inputs))
	for i, in := range inputs {
		switch {
		case in.Template != nil:
			decls[i] = axes.Decl{
				DType:    in.Template.DType,
				Rank:     in.Template.Rank(),
				Template: in.Template,
			}
		case in.Shape != nil:
			decls[i] = axes.Decl{
				DType: in.Shape.DType,
				Rank:  len(in.Shape.AxisLengths),
			}
		default:
			return nil, errors.Errorf("argument %d has neither a shape nor a template", i)
		}
	}
	return decls, nil
}

func axisLength(in Input, axis int) (dim.Expr, bool) {
	if in.Template != nil {
		length, ok := in.Template.Dims[axis].Length()
		return dim.Const(length), ok
	}
	return dim.Const(in.Shape.AxisLengths[axis]), true
}

// Build the abstract value of each input given an axis environment.
// Axes bound to a variable in the environment are symbolic.
// All other axes keep the length of the argument or of the template.
func Build(env *axes.Env, inputs []Input) ([]Value, error) {
	if env.NumArgs() != len(inputs) {
		return nil, fmterr.Internalf("axis environment built for %d argument(s) but got %d input(s)", env.NumArgs(), len(inputs))
	}
	decls, err := Decls(inputs)
	if err != nil {
		return nil, err
	}
	vals := make([]Value, len(inputs))
	for arg, in := range inputs {
		decl := decls[arg]
		sh := make(dim.Shape, decl.Rank)
		for axis := range sh {
			if v, ok := env.Lookup(arg, axis); ok {
				sh[axis] = dim.Of(v)
				continue
			}
			length, ok := axisLength(in, axis)
			if !ok {
				return nil, fmterr.Internalf("argument %d axis %d has no length and no variable", arg, axis)
			}
			sh[axis] = length
		}
		vals[arg] = New(decl.DType, sh)
		if v, ok := env.Lookup(arg, axes.ValueAxis); ok {
			vals[arg] = vals[arg].WithScalar(dim.Of(v))
		}
	}
	return vals, nil
}
