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

package cache_test

import (
	"strings"
	gosync "sync"
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/dynshape/api/cache"
	"github.com/gx-org/dynshape/api/options"
	"github.com/gx-org/dynshape/api/tracer"
	"github.com/gx-org/dynshape/build/axes"
	"github.com/gx-org/dynshape/build/lower"
	"github.com/gx-org/dynshape/interp/aval"
	"github.com/gx-org/dynshape/interp/trace"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

func exp(name string) trace.Func {
	return trace.Func{
		Name: name,
		Body: func(tr *trace.Tracer, args []*trace.Value) []*trace.Value {
			return []*trace.Value{tr.Exp(args[0])}
		},
	}
}

func request(t *testing.T, fn trace.Func, spec axes.Spec, lengths []int, opts ...options.CompileOption) *tracer.Request {
	t.Helper()
	in := aval.Concrete(&shape.Shape{DType: dtype.Float32, AxisLengths: lengths})
	return must.M1(tracer.NewRequest(fn, []aval.Input{in}, spec, opts...))
}

func TestCompile(t *testing.T) {
	c := cache.New()
	spec := axes.Spec{0: {0: "n"}}
	first := must.M1(c.Compile(request(t, exp("f"), spec, []int{2, 3})))
	second := must.M1(c.Compile(request(t, exp("f"), spec, []int{50, 3})))
	require.Same(t, first, second)
	require.Equal(t, 1, c.Size())

	other := must.M1(c.Compile(request(t, exp("f"), spec, []int{2, 4})))
	require.NotSame(t, first, other)
	static := must.M1(c.Compile(request(t, exp("f"), nil, []int{2, 3})))
	require.NotSame(t, first, static)
	require.Equal(t, 3, c.Size())

	g := must.M1(c.Compile(request(t, exp("g"), spec, []int{2, 3})))
	require.NotSame(t, first, g)
	require.Equal(t, 4, c.Size())

	require.Equal(t, 3, c.Invalidate("f"))
	require.Equal(t, 1, c.Size())
	_, ok := c.Lookup(request(t, exp("f"), spec, []int{2, 3}))
	require.False(t, ok)
	art, ok := c.Lookup(request(t, exp("g"), spec, []int{7, 3}))
	require.True(t, ok)
	require.Same(t, g, art)
}

func TestReplayOnHit(t *testing.T) {
	c := cache.New()
	spec := axes.Spec{0: {0: "n"}}
	art := must.M1(c.Compile(request(t, exp("f"), spec, []int{2, 3})))
	var text strings.Builder
	hit := must.M1(c.Compile(request(t, exp("f"), spec, []int{8, 3}, options.EmitTo{Target: lower.NewText(&text)})))
	require.Same(t, art, hit)
	require.Equal(t, art.Module.String(), text.String())
}

func TestConcurrent(t *testing.T) {
	c := cache.New()
	spec := axes.Spec{0: {0: "n"}}
	const numRequests = 16
	arts := make([]*tracer.Artifact, numRequests)
	var wg gosync.WaitGroup
	for i := range numRequests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := must.M1(tracer.NewRequest(exp("f"), []aval.Input{
				aval.Concrete(&shape.Shape{DType: dtype.Float32, AxisLengths: []int{i + 1, 3}}),
			}, spec))
			arts[i] = must.M1(c.Compile(req))
		}()
	}
	wg.Wait()
	require.Equal(t, 1, c.Size())
	stored, ok := c.Lookup(request(t, exp("f"), spec, []int{1, 3}))
	require.True(t, ok)
	for _, art := range arts {
		require.Same(t, stored, art)
	}
}
