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

// Package axes builds the environment mapping argument axes
// declared symbolic to dimension variables.
package axes

import (
	"fmt"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/dynshape/build/dim"
	"github.com/gx-org/dynshape/build/fmterr"
	"github.com/pkg/errors"
)

// ValueAxis is the axis used in a specification to declare
// the value of a rank-0 integer argument symbolic.
const ValueAxis = dim.ValueAxis

type (
	// Spec maps argument indices to the names of their symbolic axes.
	// For example, {0: {0: "n"}, 1: {0: "n"}} declares that the leading axis
	// of the first two arguments have the same length n.
	Spec map[int]map[int]string

	// Binding declares a single argument axis symbolic.
	Binding struct {
		Arg, Axis int
		Name      string
	}
)

// SpecOf builds a specification from a list of bindings.
// Declaring the same axis twice with different names is an error.
func SpecOf(bindings ...Binding) (Spec, error) {
	spec := Spec{}
	for _, b := range bindings {
		argAxes := spec[b.Arg]
		if argAxes == nil {
			argAxes = make(map[int]string)
			spec[b.Arg] = argAxes
		}
		if prev, ok := argAxes[b.Axis]; ok && prev != b.Name {
			return nil, errors.WithStack(&fmterr.ConflictingAxisBindingError{
				Arg:   b.Arg,
				Axis:  b.Axis,
				Names: [2]string{prev, b.Name},
			})
		}
		argAxes[b.Axis] = b.Name
	}
	return spec, nil
}

// Dim is an axis of a template used for ahead-of-time compilation.
type Dim struct {
	length  int
	name    string
	unknown bool
}

// Known returns a template axis with a known length.
func Known(n int) Dim {
	return Dim{length: n}
}

// Unknown returns a template axis with a length unknown at compile time.
// Each unknown axis is independent from all the other axes.
func Unknown() Dim {
	return Dim{unknown: true}
}

// Named returns a template axis with a length unknown at compile time.
// All axes with the same name have the same length.
func Named(name string) Dim {
	return Dim{name: name}
}

// Length returns the length of the axis if it is known.
func (d Dim) Length() (int, bool) {
	if d.unknown || d.name != "" {
		return 0, false
	}
	return d.length, true
}

// Name returns the name of a named axis, or an empty string.
func (d Dim) Name() string {
	return d.name
}

// IsUnknown returns true if the axis has been declared with Unknown.
func (d Dim) IsUnknown() bool {
	return d.unknown
}

func (d Dim) String() string {
	switch {
	case d.unknown:
		return "?"
	case d.name != "":
		return d.name
	}
	return fmt.Sprint(d.length)
}

// Template is the abstract shape of an argument for ahead-of-time compilation.
type Template struct {
	DType dtype.DataType
	Dims  []Dim
}

// NewTemplate returns a new template given a data type and axes.
func NewTemplate(dt dtype.DataType, dims ...Dim) *Template {
	return &Template{DType: dt, Dims: dims}
}

// Rank of the template.
func (t *Template) Rank() int {
	return len(t.Dims)
}

func (t *Template) String() string {
	ss := make([]string, len(t.Dims))
	for i, d := range t.Dims {
		ss[i] = d.String()
	}
	return fmt.Sprintf("%s[%s]", t.DType.String(), strings.Join(ss, ", "))
}

// Decl declares the type of an argument.
type Decl struct {
	DType dtype.DataType
	Rank  int
	// Template is set for ahead-of-time compilation. Its rank must be Rank.
	Template *Template
}
