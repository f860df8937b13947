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

// Package lower lowers trace graphs into functions with dynamic shapes.
//
// Every axis whose length depends on a dimension variable is lowered as a
// dynamic axis. The length of dynamic axes crosses function boundaries as
// implicit index values: a function takes the variables of its parameters
// as leading implicit parameters and returns the lengths it computes as
// leading implicit results.
//
// Lowering the top-level function also returns its signature: the type of
// its inputs and outputs and the table binding each dimension variable to
// the argument axis it is read from when the function is called.
package lower

import (
	"slices"

	"github.com/gx-org/dynshape/base/uname"
	"github.com/gx-org/dynshape/build/axes"
	"github.com/gx-org/dynshape/build/dim"
	"github.com/gx-org/dynshape/build/fmterr"
	"github.com/gx-org/dynshape/interp/aval"
	"github.com/gx-org/dynshape/interp/trace"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

type lowerer struct {
	root   *trace.Graph
	env    *axes.Env
	target Target
	names  *uname.Unique
	decls  map[*trace.Graph]*FuncDecl
	// boundary are the variables crossing a function boundary.
	boundary map[*dim.Var]bool
}

// Lower a trace graph and the graphs of its nested calls into a target.
// Callees are lowered before their callers and the top-level function is
// lowered last.
func Lower(g *trace.Graph, env *axes.Env, target Target) (*Signature, error) {
	l := &lowerer{
		root:     g,
		env:      env,
		target:   target,
		names:    uname.New(),
		decls:    make(map[*trace.Graph]*FuncDecl),
		boundary: make(map[*dim.Var]bool),
	}
	l.names.Register(g.Name)
	if err := g.Walk(l.lowerGraph); err != nil {
		return nil, err
	}
	return l.signature()
}

func valueOf(v *trace.Value) Value {
	return Value{ID: v.ID, Type: DescOf(v.Value)}
}

func valuesOf(vals []*trace.Value) []Value {
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = valueOf(v)
	}
	return out
}

func varsOf(vals []*trace.Value) []*dim.Var {
	var sh dim.Shape
	for _, v := range vals {
		sh = append(sh, v.Shape...)
		if v.Scalar != nil {
			sh = append(sh, *v.Scalar)
		}
	}
	return sh.Vars()
}

func (l *lowerer) markBoundary(vals []*trace.Value) {
	for _, v := range varsOf(vals) {
		l.boundary[v] = true
	}
}

func (l *lowerer) declare(g *trace.Graph) *FuncDecl {
	name := g.Name
	if g != l.root {
		name = l.names.Name(g.Name)
	}
	decl := &FuncDecl{
		Name:    name,
		Params:  valuesOf(g.Params),
		Results: valuesOf(g.Outputs),
	}
	// Variables read from the value of a scalar parameter are not passed twice.
	available := make(map[*dim.Var]bool)
	var paramShapes dim.Shape
	for _, p := range g.Params {
		paramShapes = append(paramShapes, p.Shape...)
		if p.Scalar == nil {
			continue
		}
		if v, ok := p.Scalar.Var(); ok {
			available[v] = true
		}
	}
	for _, v := range paramShapes.Vars() {
		if available[v] {
			continue
		}
		available[v] = true
		decl.ImplicitParams = append(decl.ImplicitParams, v)
	}
	for _, out := range g.Outputs {
		for _, length := range out.Shape {
			if length.IsStatic() {
				continue
			}
			if v, ok := length.Var(); ok && available[v] {
				continue
			}
			if slices.ContainsFunc(decl.ImplicitResults, length.Equal) {
				continue
			}
			decl.ImplicitResults = append(decl.ImplicitResults, length)
		}
	}
	return decl
}

func (l *lowerer) instruction(node *trace.Node) *Instruction {
	instr := &Instruction{
		Op:       node.Op.String(),
		Attrs:    node.Attrs.Format(node.Op),
		Operands: valuesOf(node.Operands),
		Results:  valuesOf(node.Results),
	}
	if node.Callee == nil {
		return instr
	}
	callee := l.decls[node.Callee]
	instr.Callee = callee.Name
	instr.DimOperands = callee.ImplicitParams
	instr.DimResults = callee.ImplicitResults
	l.markBoundary(node.Operands)
	l.markBoundary(node.Results)
	return instr
}

func (l *lowerer) lowerGraph(g *trace.Graph) error {
	decl := l.declare(g)
	l.decls[g] = decl
	if err := l.target.BeginFunc(decl); err != nil {
		return errors.Wrapf(err, "cannot lower function %s", decl.Name)
	}
	for _, node := range g.Nodes {
		if err := l.target.Emit(l.instruction(node)); err != nil {
			return errors.Wrapf(err, "cannot lower %s in function %s", node.Site, decl.Name)
		}
	}
	if err := l.target.EndFunc(); err != nil {
		return errors.Wrapf(err, "cannot lower function %s", decl.Name)
	}
	klog.V(2).Infof("lowered %s: %d instruction(s), %d implicit parameter(s), %d implicit result(s)",
		decl.Name, len(g.Nodes), len(decl.ImplicitParams), len(decl.ImplicitResults))
	return nil
}

func (l *lowerer) signature() (*Signature, error) {
	g := l.root
	decl := l.decls[g]
	for _, v := range decl.ImplicitParams {
		l.boundary[v] = true
	}
	l.markBoundary(g.Outputs)
	sig := &Signature{
		Name:            decl.Name,
		ImplicitParams:  decl.ImplicitParams,
		ImplicitResults: decl.ImplicitResults,
		params:          make([]aval.Value, len(g.Params)),
	}
	for i, p := range g.Params {
		sig.params[i] = p.Value
		sig.Inputs = append(sig.Inputs, DescOf(p.Value))
	}
	for _, out := range g.Outputs {
		sig.Outputs = append(sig.Outputs, DescOf(out.Value))
		sig.OutputExprs = append(sig.OutputExprs, slices.Clone(out.Shape))
	}
	retained := make(dim.Shape, 0, len(l.boundary))
	for v := range l.boundary {
		retained = append(retained, dim.Of(v))
	}
	for _, v := range retained.Vars() {
		locs := l.env.Locations(v)
		if len(locs) == 0 {
			return nil, fmterr.Internal(errors.Wrapf(&fmterr.UnboundDimensionVariableError{Var: v.Name}, "variable declared at %s is not in the axis environment", v.Location()))
		}
		sig.Bindings = append(sig.Bindings, Binding{Var: v, Location: locs[0]})
	}
	for _, v := range l.env.Vars() {
		for _, loc := range l.env.Locations(v) {
			sig.Constraints = append(sig.Constraints, Binding{Var: v, Location: loc})
		}
	}
	return sig, nil
}
