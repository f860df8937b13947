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

package axes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/dynshape/base/ordered"
	"github.com/gx-org/dynshape/base/stringseq"
	"github.com/gx-org/dynshape/base/uname"
	"github.com/gx-org/dynshape/build/dim"
	"github.com/gx-org/dynshape/build/fmterr"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/exp/maps"
)

// unknownRoot is the prefix of variables synthesised for unknown template axes.
const unknownRoot = "_d"

// Location of an axis in the arguments of a function.
type Location struct {
	Arg, Axis int
}

func (l Location) String() string {
	if l.Axis == ValueAxis {
		return fmt.Sprintf("arg%d", l.Arg)
	}
	return fmt.Sprintf("arg%d[%d]", l.Arg, l.Axis)
}

// Env maps argument axes to dimension variables.
// An environment is immutable once built and can be shared.
type Env struct {
	numArgs int
	vars    *ordered.Map[string, *dim.Var]
	byLoc   map[Location]*dim.Var
	locs    map[*dim.Var][]Location
}

// IsInteger returns true for the data types a scalar can have
// to be used as the length of an axis.
func IsInteger(dt dtype.DataType) bool {
	switch dt {
	case dtype.Int32, dtype.Int64, dtype.Uint32, dtype.Uint64:
		return true
	}
	return false
}

type builder struct {
	decls  []Decl
	names  map[Location]string
	errs   error
	unames *uname.Unique
}

func (b *builder) invalid(arg, axis int, format string, a ...any) {
	b.errs = multierr.Append(b.errs, errors.WithStack(&fmterr.InvalidAxisSpecError{
		Arg:    arg,
		Axis:   axis,
		Reason: fmt.Sprintf(format, a...),
	}))
}

func (b *builder) checkSpec(spec Spec) {
	args := maps.Keys(spec)
	slices.Sort(args)
	for _, arg := range args {
		if arg < 0 || arg >= len(b.decls) {
			b.invalid(arg, 0, "function has %d argument(s)", len(b.decls))
			continue
		}
		decl := b.decls[arg]
		argAxes := spec[arg]
		argAxisIndices := maps.Keys(argAxes)
		slices.Sort(argAxisIndices)
		for _, axis := range argAxisIndices {
			name := argAxes[axis]
			switch {
			case name == "":
				b.invalid(arg, axis, "empty axis name")
				continue
			case axis == ValueAxis && decl.Rank != 0:
				b.invalid(arg, axis, "only rank-0 arguments can have a symbolic value, argument has rank %d", decl.Rank)
				continue
			case axis == ValueAxis && !IsInteger(decl.DType):
				b.invalid(arg, axis, "only integer arguments can have a symbolic value, argument has type %s", decl.DType.String())
				continue
			case axis != ValueAxis && (axis < 0 || axis >= decl.Rank):
				b.invalid(arg, axis, "axis out of range for an argument of rank %d", decl.Rank)
				continue
			}
			b.names[Location{Arg: arg, Axis: axis}] = name
		}
	}
}

func (b *builder) checkTemplates() {
	for arg, decl := range b.decls {
		tmpl := decl.Template
		if tmpl == nil {
			continue
		}
		if tmpl.Rank() != decl.Rank {
			b.errs = multierr.Append(b.errs, fmterr.Internalf("argument %d declared with rank %d but its template %s has rank %d", arg, decl.Rank, tmpl, tmpl.Rank()))
			continue
		}
		for axis, d := range tmpl.Dims {
			loc := Location{Arg: arg, Axis: axis}
			if d.Name() == "" {
				if length, ok := d.Length(); ok && length < 0 {
					b.invalid(arg, axis, "negative axis length %d", length)
				}
				continue
			}
			if prev, ok := b.names[loc]; ok && prev != d.Name() {
				b.errs = multierr.Append(b.errs, errors.WithStack(&fmterr.ConflictingAxisBindingError{
					Arg:   arg,
					Axis:  axis,
					Names: [2]string{prev, d.Name()},
				}))
				continue
			}
			b.names[loc] = d.Name()
		}
	}
}

// New builds an environment given the declaration of the arguments of a function
// and the specification of which axes are symbolic.
// A nil specification and no template returns an empty environment.
func New(decls []Decl, spec Spec) (*Env, error) {
	b := &builder{
		decls:  decls,
		names:  make(map[Location]string),
		unames: uname.New(),
	}
	b.checkSpec(spec)
	b.checkTemplates()
	if b.errs != nil {
		return nil, b.errs
	}
	for _, name := range b.names {
		b.unames.Register(name)
	}
	env := &Env{
		numArgs: len(decls),
		vars:    ordered.NewMap[string, *dim.Var](),
		byLoc:   make(map[Location]*dim.Var),
		locs:    make(map[*dim.Var][]Location),
	}
	for arg, decl := range decls {
		for axis := ValueAxis; axis < decl.Rank; axis++ {
			loc := Location{Arg: arg, Axis: axis}
			var v *dim.Var
			if name, ok := b.names[loc]; ok {
				v, _ = env.vars.LoadOrStore(name, func() *dim.Var {
					return dim.NewVar(name, arg, axis)
				})
			} else if decl.Template != nil && axis >= 0 && decl.Template.Dims[axis].IsUnknown() {
				name := b.unames.Indexed(unknownRoot)
				v = dim.NewVar(name, arg, axis)
				env.vars.Store(name, v)
			}
			if v == nil {
				continue
			}
			env.byLoc[loc] = v
			env.locs[v] = append(env.locs[v], loc)
		}
	}
	return env, nil
}

// NumArgs returns the number of arguments the environment has been built for.
func (env *Env) NumArgs() int {
	return env.numArgs
}

// Lookup returns the variable bound to an argument axis.
func (env *Env) Lookup(arg, axis int) (*dim.Var, bool) {
	v, ok := env.byLoc[Location{Arg: arg, Axis: axis}]
	return v, ok
}

// Var returns a variable given its name.
func (env *Env) Var(name string) (*dim.Var, bool) {
	return env.vars.Load(name)
}

// Vars returns all the variables in declaration order.
func (env *Env) Vars() []*dim.Var {
	return slices.Collect(env.vars.Values())
}

// Locations returns all the argument axes bound to a variable
// in declaration order.
func (env *Env) Locations(v *dim.Var) []Location {
	return slices.Clone(env.locs[v])
}

// IsStatic returns true if no axis is symbolic.
func (env *Env) IsStatic() bool {
	return env.vars.Size() == 0
}

// String representation of the environment.
func (env *Env) String() string {
	var s strings.Builder
	for name, v := range env.vars.Iter() {
		fmt.Fprintf(&s, "%s: %s\n", name, stringseq.JoinStringer(env.locs[v], " "))
	}
	return s.String()
}
