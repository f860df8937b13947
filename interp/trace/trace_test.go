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

package trace_test

import (
	"math"
	"strings"
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/dynshape/build/dim"
	"github.com/gx-org/dynshape/build/fmterr"
	"github.com/gx-org/dynshape/interp/aval"
	"github.com/gx-org/dynshape/interp/trace"
	"github.com/pkg/errors"
)

func mustTrace(t *testing.T, fn trace.Func, args ...aval.Value) *trace.Graph {
	t.Helper()
	g, err := trace.Trace(fn, args)
	if err != nil {
		t.Fatalf("cannot trace %s: %+v", fn.Name, err)
	}
	return g
}

func scalarArg(name string) (*dim.Var, aval.Value) {
	n := dim.NewVar(name, 0, dim.ValueAxis)
	return n, aval.New(dtype.Int64, nil).WithScalar(dim.Of(n))
}

var successor = trace.Func{
	Name: "successor",
	Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
		return []*trace.Value{tr.Ones(dtype.Float64, tr.Add(args[0], tr.Int(1)))}
	},
}

func TestStatic(t *testing.T) {
	fn := trace.Func{
		Name: "static",
		Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
			x := tr.Exp(args[0])
			return []*trace.Value{tr.ReduceSum(tr.Mul(x, x), 1)}
		},
	}
	g := mustTrace(t, fn, aval.New(dtype.Float32, dim.Static(2, 3)))
	out := g.Outputs[0]
	if !out.Shape.Equal(dim.Static(2)) {
		t.Errorf("got output shape %s but want [2]", out.Shape)
	}
	if len(g.Nodes) != 3 {
		t.Errorf("got %d nodes but want 3:\n%s", len(g.Nodes), g)
	}
}

func TestSuccessor(t *testing.T) {
	n, arg := scalarArg("n")
	g := mustTrace(t, successor, arg)
	out := g.Outputs[0]
	want := dim.Add(dim.Of(n), dim.Const(1))
	if out.Rank() != 1 || !out.Shape[0].Equal(want) {
		t.Fatalf("got output shape %s but want [%s]", out.Shape, want)
	}
	for _, k := range []int{0, 1, 3, 100} {
		got, err := out.Shape[0].Eval(dim.Bindings{n: k})
		if err != nil {
			t.Fatal(err)
		}
		if got != k+1 {
			t.Errorf("n=%d: got length %d but want %d", k, got, k+1)
		}
	}
}

func TestNestedCall(t *testing.T) {
	identity := trace.Func{
		Name: "circuit",
		Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
			return args
		},
	}
	tests := []struct {
		callee trace.Func
		want   func(n *dim.Var) dim.Expr
	}{
		{
			callee: identity,
			want:   func(n *dim.Var) dim.Expr { return dim.Of(n) },
		},
		{
			callee: successor,
			want:   func(n *dim.Var) dim.Expr { return dim.Add(dim.Of(n), dim.Const(1)) },
		},
	}
	for i, test := range tests {
		n, arg := scalarArg("n")
		outer := trace.Func{
			Name: "main",
			Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
				x := tr.Ones(dtype.Float64, args[0])
				in := x
				if test.callee.Name == successor.Name {
					in = args[0]
				}
				return tr.Call(test.callee, in)
			},
		}
		g := mustTrace(t, outer, arg)
		out := g.Outputs[0]
		want := test.want(n)
		if out.Rank() != 1 || !out.Shape[0].Equal(want) {
			t.Errorf("test %d: got output shape %s but want [%s]", i, out.Shape, want)
		}
		call := g.Nodes[len(g.Nodes)-1]
		if call.Op != trace.OpCall || call.Callee == nil {
			t.Fatalf("test %d: last node %s is not a call", i, call)
		}
		if call.Op.Category() != trace.OpaqueCall {
			t.Errorf("test %d: call has category %s", i, call.Op.Category())
		}
		// Variables keep their identity across the call boundary.
		inner := call.Callee.Params[0]
		vars := inner.Shape.Vars()
		if inner.Scalar != nil {
			vars = append(vars, inner.Scalar.Vars()...)
		}
		if len(vars) != 1 || vars[0] != n {
			t.Errorf("test %d: callee parameter %s does not refer to the variable of the caller", i, inner.Value)
		}
	}
}

func TestDeterminism(t *testing.T) {
	fn := trace.Func{
		Name: "main",
		Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
			y := tr.Call(successor, args[0])[0]
			z := tr.Concat(0, y, y)
			return []*trace.Value{z, tr.DimSize(z, 0)}
		},
	}
	_, arg := scalarArg("n")
	first := mustTrace(t, fn, arg)
	second := mustTrace(t, fn, arg)
	if first.String() != second.String() {
		t.Errorf("traces differ:\n%s\n%s", first, second)
	}
	if got, want := first.Outputs[1].Scalar.String(), "2*n + 2"; got != want {
		t.Errorf("got dim_size %s but want %s", got, want)
	}
}

func TestShapeRules(t *testing.T) {
	n := dim.NewVar("n", 0, 0)
	m := dim.NewVar("m", 1, 1)
	x := aval.New(dtype.Float32, dim.Shape{dim.Of(n), dim.Const(3)})
	y := aval.New(dtype.Float32, dim.Shape{dim.Const(3), dim.Of(m)})
	tests := []struct {
		name string
		body func(tr *trace.Tracer, x, y *trace.Value) *trace.Value
		want string
	}{
		{
			name: "matmul",
			body: func(tr *trace.Tracer, x, y *trace.Value) *trace.Value { return tr.MatMul(x, y) },
			want: "[n, m]",
		},
		{
			name: "transpose",
			body: func(tr *trace.Tracer, x, y *trace.Value) *trace.Value { return tr.Transpose(x, 1, 0) },
			want: "[3, n]",
		},
		{
			name: "reduce",
			body: func(tr *trace.Tracer, x, y *trace.Value) *trace.Value { return tr.ReduceSum(x, 0) },
			want: "[3]",
		},
		{
			name: "concat",
			body: func(tr *trace.Tracer, x, y *trace.Value) *trace.Value {
				return tr.Concat(0, x, tr.Transpose(y, 1, 0), x)
			},
			want: "[2*n + m, 3]",
		},
		{
			name: "scalar broadcast",
			body: func(tr *trace.Tracer, x, y *trace.Value) *trace.Value {
				return tr.Mul(x, tr.Const(dtype.Float32, 2))
			},
			want: "[n, 3]",
		},
		{
			name: "iota",
			body: func(tr *trace.Tracer, x, y *trace.Value) *trace.Value {
				return tr.Iota(dtype.Int32, tr.Mul(tr.DimSize(x, 0), tr.DimSize(y, 1)))
			},
			want: "[n*m]",
		},
		{
			name: "reshape",
			body: func(tr *trace.Tracer, x, y *trace.Value) *trace.Value {
				return tr.Reshape(x, tr.Int(3), tr.DimSize(x, 0))
			},
			want: "[3, n]",
		},
		{
			name: "probs",
			body: func(tr *trace.Tracer, x, y *trace.Value) *trace.Value { return tr.Measure(trace.Probs, 2, 0) },
			want: "[4]",
		},
		{
			name: "sample",
			body: func(tr *trace.Tracer, x, y *trace.Value) *trace.Value { return tr.Measure(trace.Sample, 2, 100) },
			want: "[100, 2]",
		},
	}
	for _, test := range tests {
		fn := trace.Func{
			Name: test.name,
			Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
				return []*trace.Value{test.body(tr, args[0], args[1])}
			},
		}
		g := mustTrace(t, fn, x, y)
		if got := g.Outputs[0].Shape.String(); got != test.want {
			t.Errorf("%s: got shape %s but want %s\n%s", test.name, got, test.want, g)
		}
	}
}

func TestUnsupported(t *testing.T) {
	n := dim.NewVar("n", 0, 0)
	m := dim.NewVar("m", 1, 0)
	vec := func(v *dim.Var) aval.Value { return aval.New(dtype.Float32, dim.Shape{dim.Of(v)}) }
	untracked := aval.New(dtype.Int64, nil)
	tests := []struct {
		name string
		args []aval.Value
		body func(tr *trace.Tracer, args []*trace.Value) *trace.Value
		op   string
	}{
		{
			name: "different variables",
			args: []aval.Value{vec(n), vec(m)},
			body: func(tr *trace.Tracer, args []*trace.Value) *trace.Value { return tr.Add(args[0], args[1]) },
			op:   "add",
		},
		{
			name: "data-dependent reshape",
			args: []aval.Value{vec(n), untracked},
			body: func(tr *trace.Tracer, args []*trace.Value) *trace.Value { return tr.Reshape(args[0], args[1]) },
			op:   "reshape",
		},
		{
			name: "unprovable reshape",
			args: []aval.Value{vec(n), vec(m)},
			body: func(tr *trace.Tracer, args []*trace.Value) *trace.Value {
				return tr.Reshape(args[0], tr.DimSize(args[1], 0))
			},
			op: "reshape",
		},
		{
			name: "subtraction",
			args: []aval.Value{vec(n)},
			body: func(tr *trace.Tracer, args []*trace.Value) *trace.Value {
				return tr.Ones(dtype.Float32, tr.Sub(tr.DimSize(args[0], 0), tr.Int(1)))
			},
			op: "full",
		},
		{
			name: "overflowing product",
			args: []aval.Value{vec(n)},
			body: func(tr *trace.Tracer, args []*trace.Value) *trace.Value {
				return tr.Ones(dtype.Float32, tr.Mul(tr.Int(1<<40), tr.Int(1<<40)))
			},
			op: "full",
		},
		{
			name: "custom",
			args: []aval.Value{vec(n)},
			body: func(tr *trace.Tracer, args []*trace.Value) *trace.Value {
				return tr.Custom("nonzero", args, aval.New(dtype.Int64, dim.Static(1)))[0]
			},
			op: "nonzero",
		},
	}
	for _, test := range tests {
		fn := trace.Func{
			Name: "main",
			Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
				return []*trace.Value{test.body(tr, args)}
			},
		}
		g, err := trace.Trace(fn, test.args)
		if g != nil {
			t.Errorf("%s: got a graph with an error", test.name)
		}
		var unsupported *fmterr.UnsupportedDynamicShapeOperationError
		if !errors.As(err, &unsupported) {
			t.Errorf("%s: got error %v but want %T", test.name, err, unsupported)
			continue
		}
		if unsupported.Op != test.op {
			t.Errorf("%s: got operator %s but want %s", test.name, unsupported.Op, test.op)
		}
		if !strings.HasPrefix(unsupported.Site, "main#") {
			t.Errorf("%s: got site %q", test.name, unsupported.Site)
		}
	}
}

func TestNestedError(t *testing.T) {
	bad := trace.Func{
		Name: "circuit",
		Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
			return []*trace.Value{tr.Iota(dtype.Int64, args[0])}
		},
	}
	fn := trace.Func{
		Name: "main",
		Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
			x := tr.Exp(tr.Const(dtype.Float64, 1))
			return tr.Call(bad, tr.Add(args[0], tr.Int(2)), x)
		},
	}
	_, err := trace.Trace(fn, []aval.Value{aval.New(dtype.Int64, nil)})
	var unsupported *fmterr.UnsupportedDynamicShapeOperationError
	if !errors.As(err, &unsupported) {
		t.Fatalf("got error %v but want %T", err, unsupported)
	}
	if want := "main#4/circuit#0"; unsupported.Site != want {
		t.Errorf("got site %q but want %q", unsupported.Site, want)
	}
	if !strings.Contains(err.Error(), "in call main#4/circuit") {
		t.Errorf("error %q is not annotated with the call site", err.Error())
	}
}

func TestCapturedValue(t *testing.T) {
	fn := trace.Func{
		Name: "main",
		Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
			outer := args[0]
			capture := trace.Func{
				Name: "capture",
				Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
					return []*trace.Value{tr.Exp(outer)}
				},
			}
			return tr.Call(capture)
		},
	}
	_, err := trace.Trace(fn, []aval.Value{aval.New(dtype.Float32, dim.Static(2))})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "defined outside of function capture") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStaticMismatch(t *testing.T) {
	fn := trace.Func{
		Name: "main",
		Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
			return []*trace.Value{tr.Add(args[0], args[1])}
		},
	}
	_, err := trace.Trace(fn, []aval.Value{
		aval.New(dtype.Float32, dim.Static(2)),
		aval.New(dtype.Float32, dim.Static(3)),
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	var unsupported *fmterr.UnsupportedDynamicShapeOperationError
	if errors.As(err, &unsupported) {
		t.Errorf("static shape mismatch reported as %T", unsupported)
	}
}

func TestOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		body func(tr *trace.Tracer) *trace.Value
		want string
	}{
		{
			name: "probs on 63 wires",
			body: func(tr *trace.Tracer) *trace.Value { return tr.Measure(trace.Probs, 63, 0) },
			want: "overflows",
		},
		{
			name: "probs on 64 wires",
			body: func(tr *trace.Tracer) *trace.Value { return tr.Measure(trace.Probs, 64, 0) },
			want: "overflows",
		},
		{
			name: "int64 overflow",
			body: func(tr *trace.Tracer) *trace.Value {
				return tr.Ones(dtype.Float64, tr.Const(dtype.Int64, 1e19))
			},
			want: "cannot be represented",
		},
		{
			name: "int32 overflow",
			body: func(tr *trace.Tracer) *trace.Value { return tr.Const(dtype.Int32, 3e9) },
			want: "cannot be represented",
		},
		{
			name: "negative unsigned",
			body: func(tr *trace.Tracer) *trace.Value { return tr.Const(dtype.Uint32, -1) },
			want: "cannot be represented",
		},
		{
			name: "fractional integer",
			body: func(tr *trace.Tracer) *trace.Value { return tr.Const(dtype.Int64, 1.5) },
			want: "cannot be represented",
		},
	}
	for _, test := range tests {
		fn := trace.Func{
			Name: "main",
			Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
				return []*trace.Value{test.body(tr)}
			},
		}
		g, err := trace.Trace(fn, nil)
		if err == nil {
			t.Errorf("%s: got shape %s but want an error", test.name, g.Outputs[0].Shape)
			continue
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: got error %q but want %q", test.name, err.Error(), test.want)
		}
	}
}

func TestLargestLengths(t *testing.T) {
	fn := trace.Func{
		Name: "main",
		Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
			return []*trace.Value{
				tr.Measure(trace.Probs, 62, 0),
				tr.Ones(dtype.Float64, tr.Const(dtype.Int32, math.MaxInt32)),
			}
		},
	}
	g, err := trace.Trace(fn, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := g.Outputs[0].Shape.String(), "[4611686018427387904]"; got != want {
		t.Errorf("probs: got shape %s but want %s", got, want)
	}
	if got, want := g.Outputs[1].Shape.String(), "[2147483647]"; got != want {
		t.Errorf("ones: got shape %s but want %s", got, want)
	}
}
