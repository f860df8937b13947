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

// Package trace abstractly interprets functions over abstract values.
//
// The body of a function calls the operators of a Tracer. Each operator
// computes the abstract values of its results from the abstract values of
// its operands, following the rule of its category, and records a node in
// the trace graph. Calls to nested sub-programs are traced recursively
// with the same abstract values, so dimension variables keep their identity
// at any nesting depth.
//
// Operators report errors by panicking. Trace recovers the panic and returns
// the error: a failed trace never returns a graph.
package trace

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gx-org/dynshape/build/dim"
	"github.com/gx-org/dynshape/build/fmterr"
	"github.com/gx-org/dynshape/interp/aval"
	"k8s.io/klog/v2"
)

// Func is a function that can be traced: either the top-level function
// of a compile request or a nested sub-program.
// Tracing must be deterministic: calling Body twice with the same
// abstract values must apply the same operators in the same order.
type Func struct {
	Name string
	Body func(tr *Tracer, args []*Value) []*Value
}

// Tracer records the operators applied by the body of a function.
type Tracer struct {
	graph  *Graph
	site   string
	parent *Tracer
	// scope are the dimension variables visible in the function.
	scope map[*dim.Var]bool
}

// Trace a function given the abstract values of its arguments.
func Trace(fn Func, args []aval.Value) (*Graph, error) {
	var g *Graph
	err := exceptions.TryCatch[error](func() {
		g = traceFunc(nil, fn, args, fn.Name)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func scopeOf(args []aval.Value) map[*dim.Var]bool {
	scope := make(map[*dim.Var]bool)
	for _, arg := range args {
		for _, v := range arg.Shape.Vars() {
			scope[v] = true
		}
		if arg.Scalar != nil {
			for _, v := range arg.Scalar.Vars() {
				scope[v] = true
			}
		}
	}
	return scope
}

func traceFunc(parent *Tracer, fn Func, args []aval.Value, site string) *Graph {
	if fn.Body == nil {
		exceptions.Panicf("function %s has no body", fn.Name)
	}
	tr := &Tracer{
		graph:  &Graph{Name: fn.Name},
		site:   site,
		parent: parent,
		scope:  scopeOf(args),
	}
	klog.V(2).Infof("tracing %s with %d argument(s)", site, len(args))
	for _, arg := range args {
		tr.graph.Params = append(tr.graph.Params, tr.graph.newValue(arg))
	}
	outs := fn.Body(tr, slices.Clone(tr.graph.Params))
	tr.checkOperands("return", outs)
	for _, out := range outs {
		tr.checkScope(out.Value)
	}
	tr.graph.Outputs = outs
	return tr.graph
}

// Site returns the call-site path of the function being traced.
func (tr *Tracer) Site() string {
	return tr.site
}

// Depth returns the number of nested calls between the function
// being traced and the top-level function.
func (tr *Tracer) Depth() int {
	depth := 0
	for p := tr.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

func (tr *Tracer) nextSite() string {
	return fmt.Sprintf("%s#%d", tr.site, len(tr.graph.Nodes))
}

func (tr *Tracer) unsupported(op Op, format string, a ...any) {
	panic(fmterr.Unsupported(op.String(), tr.nextSite(), format, a...))
}

func (tr *Tracer) checkOperands(what string, xs []*Value) {
	for i, x := range xs {
		if x == nil {
			exceptions.Panicf("%s: %s operand %d is nil", tr.nextSite(), what, i)
		}
		if x.owner != tr.graph {
			exceptions.Panicf("%s: %s operand %s has been defined outside of function %s: pass it as an argument instead", tr.nextSite(), what, x, tr.graph.Name)
		}
	}
}

// checkScope makes sure that all the variables of a value are in the scope
// of the function. Values computed from operands cannot refer to other
// variables: failing the check is a bug.
func (tr *Tracer) checkScope(v aval.Value) {
	vars := v.Shape.Vars()
	if v.Scalar != nil {
		vars = append(vars, v.Scalar.Vars()...)
	}
	for _, x := range vars {
		if !tr.scope[x] {
			panic(fmterr.Internalf("%s: dimension variable %s declared at %s is not in the scope of %s", tr.nextSite(), x, x.Location(), tr.graph.Name))
		}
	}
}

func (tr *Tracer) emit(op Op, attrs Attrs, operands []*Value, results ...aval.Value) *Node {
	node := &Node{
		ID:       len(tr.graph.Nodes),
		Op:       op,
		Attrs:    attrs,
		Operands: operands,
		Site:     tr.nextSite(),
	}
	for _, res := range results {
		tr.checkScope(res)
		node.Results = append(node.Results, tr.graph.newValue(res))
	}
	tr.graph.Nodes = append(tr.graph.Nodes, node)
	if klog.V(3).Enabled() {
		klog.Infof("%s: %s", node.Site, node.String())
	}
	return node
}

// Call a nested sub-program. The sub-program is traced with the abstract
// values of the arguments and its outputs become the results of the call.
func (tr *Tracer) Call(fn Func, args ...*Value) []*Value {
	tr.checkOperands(OpCall.String()+" "+fn.Name, args)
	site := tr.nextSite() + "/" + fn.Name
	ins := make([]aval.Value, len(args))
	for i, arg := range args {
		ins[i] = arg.Value
	}
	var callee *Graph
	if err := exceptions.TryCatch[error](func() {
		callee = traceFunc(tr, fn, ins, site)
	}); err != nil {
		panic(fmterr.AtCall(site, err))
	}
	outs := make([]aval.Value, len(callee.Outputs))
	for i, out := range callee.Outputs {
		outs[i] = out.Value
	}
	node := tr.emit(OpCall, Attrs{}, args, outs...)
	node.Callee = callee
	return node.Results
}
