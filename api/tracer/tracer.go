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

// Package tracer compiles functions with symbolic axes.
//
// A compile request declares which axes of the arguments are symbolic.
// The function is traced once over abstract values and lowered into a
// module whose signature has a dynamic axis for each symbolic axis.
// The compiled artifact can then be called with any argument shapes
// matching the signature without tracing the function again.
package tracer

import (
	"strings"

	"github.com/gx-org/backend/shape"
	"github.com/gx-org/dynshape/api/options"
	"github.com/gx-org/dynshape/build/axes"
	"github.com/gx-org/dynshape/build/dim"
	"github.com/gx-org/dynshape/build/fmterr"
	"github.com/gx-org/dynshape/build/lower"
	"github.com/gx-org/dynshape/interp/aval"
	"github.com/gx-org/dynshape/interp/trace"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Request is a compile request for which the abstract values
// of the arguments have been built.
type Request struct {
	fn      trace.Func
	env     *axes.Env
	args    []aval.Value
	targets []lower.Target
}

func (r *Request) processOptions(opts []options.CompileOption) error {
	for _, opt := range opts {
		switch optT := opt.(type) {
		case options.FuncName:
			if optT.Name == "" {
				return errors.Errorf("empty function name")
			}
			r.fn.Name = optT.Name
		case options.EmitTo:
			r.targets = append(r.targets, optT.Target)
		default:
			return errors.Errorf("option of type %T not supported", optT)
		}
	}
	return nil
}

func wrapError(name string, err error) error {
	return fmterr.Compile(name, err)
}

// NewRequest builds the axis environment and the abstract values of a compile request.
// A nil specification declares no symbolic axis.
func NewRequest(fn trace.Func, inputs []aval.Input, spec axes.Spec, opts ...options.CompileOption) (_ *Request, err error) {
	r := &Request{fn: fn}
	defer func() {
		err = wrapError(r.fn.Name, err)
	}()
	if err := r.processOptions(opts); err != nil {
		return nil, err
	}
	decls, err := aval.Decls(inputs)
	if err != nil {
		return nil, err
	}
	if r.env, err = axes.New(decls, spec); err != nil {
		return nil, err
	}
	if r.args, err = aval.Build(r.env, inputs); err != nil {
		return nil, err
	}
	return r, nil
}

// Name of the function being compiled.
func (r *Request) Name() string {
	return r.fn.Name
}

// Env returns the axis environment of the request.
func (r *Request) Env() *axes.Env {
	return r.env
}

// Args returns the abstract values of the arguments.
func (r *Request) Args() []aval.Value {
	return r.args
}

// Key identifies the request given the function name and the abstract
// values of its arguments. Requests with the same key compile to the same artifact.
func (r *Request) Key() string {
	keys := make([]string, len(r.args))
	for i, arg := range r.args {
		keys[i] = arg.Key()
	}
	return r.fn.Name + "(" + strings.Join(keys, ", ") + ")"
}

// Compile traces and lowers the function.
func (r *Request) Compile() (_ *Artifact, err error) {
	defer func() {
		err = wrapError(r.fn.Name, err)
	}()
	klog.V(1).Infof("compiling %s", r.Key())
	g, err := trace.Trace(r.fn, r.args)
	if err != nil {
		return nil, err
	}
	rec := lower.NewRecorder()
	target := lower.Target(rec)
	if len(r.targets) > 0 {
		target = lower.Tee(append([]lower.Target{rec}, r.targets...)...)
	}
	sig, err := lower.Lower(g, r.env, target)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("compiled %s: %d dynamic axes, %d binding(s)", r.fn.Name, sig.NumDynamic(), len(sig.Bindings))
	return &Artifact{
		Key:       r.Key(),
		Graph:     g,
		Env:       r.env,
		Signature: sig,
		Module:    rec.Module(),
	}, nil
}

// Reuse sends an artifact compiled by an identical request to the
// targets of the request instead of compiling the function again.
func (r *Request) Reuse(art *Artifact) (*Artifact, error) {
	if art.Key != r.Key() {
		return nil, fmterr.Internalf("cannot reuse artifact %s for request %s", art.Key, r.Key())
	}
	for _, target := range r.targets {
		if err := art.Module.Replay(target); err != nil {
			return nil, wrapError(r.fn.Name, err)
		}
	}
	return art, nil
}

func concrete(args []*shape.Shape) []aval.Input {
	inputs := make([]aval.Input, len(args))
	for i, arg := range args {
		inputs[i] = aval.Concrete(arg)
	}
	return inputs
}

func templates(tmpls []*axes.Template) []aval.Input {
	inputs := make([]aval.Input, len(tmpls))
	for i, tmpl := range tmpls {
		inputs[i] = aval.FromTemplate(tmpl)
	}
	return inputs
}

// Compile a function given the shapes of the arguments of a call.
// Only the data type and the rank of the arguments are fixed for the axes
// declared symbolic in the specification.
func Compile(fn trace.Func, args []*shape.Shape, spec axes.Spec, opts ...options.CompileOption) (*Artifact, error) {
	req, err := NewRequest(fn, concrete(args), spec, opts...)
	if err != nil {
		return nil, err
	}
	return req.Compile()
}

// CompileAOT compiles a function ahead of time given a template for each argument.
func CompileAOT(fn trace.Func, tmpls []*axes.Template, spec axes.Spec, opts ...options.CompileOption) (*Artifact, error) {
	req, err := NewRequest(fn, templates(tmpls), spec, opts...)
	if err != nil {
		return nil, err
	}
	return req.Compile()
}

// Artifact is a compiled function.
type Artifact struct {
	// Key of the request that compiled the artifact.
	Key string
	// Graph is the trace of the function.
	Graph     *trace.Graph
	Env       *axes.Env
	Signature *lower.Signature
	Module    *lower.Module
}

// Invocation is what the runtime needs to call the lowered entry
// function with a given set of arguments.
type Invocation struct {
	Bindings dim.Bindings
	// ImplicitArgs are the values of the implicit parameters of the entry function.
	ImplicitArgs []int
	// ImplicitResults are the values of the implicit results.
	ImplicitResults []int
	// Outputs are the shapes of the explicit results.
	Outputs []*shape.Shape
}

// Prepare checks the arguments of a call and computes the concrete lengths
// of all the dynamic axes.
func (a *Artifact) Prepare(args []lower.Actual) (*Invocation, error) {
	sig := a.Signature
	b, err := sig.Resolve(args)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot call %s", sig.Name)
	}
	inv := &Invocation{Bindings: b}
	for _, v := range sig.ImplicitParams {
		length, err := dim.Of(v).Eval(b)
		if err != nil {
			return nil, err
		}
		inv.ImplicitArgs = append(inv.ImplicitArgs, length)
	}
	for _, x := range sig.ImplicitResults {
		length, err := x.Eval(b)
		if err != nil {
			return nil, err
		}
		inv.ImplicitResults = append(inv.ImplicitResults, length)
	}
	if inv.Outputs, err = sig.OutputShapes(b); err != nil {
		return nil, err
	}
	return inv, nil
}
