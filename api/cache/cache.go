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

// Package cache keeps compiled artifacts across compile requests.
//
// Artifacts are keyed by the name of the function and the abstract values
// of its arguments: two calls with different lengths for a symbolic axis
// share the same artifact. Redefining a function requires invalidating
// its artifacts.
package cache

import (
	"github.com/gx-org/dynshape/api/tracer"
	"github.com/gx-org/dynshape/base/sync"
	"k8s.io/klog/v2"
)

type entry struct {
	name string
	art  *tracer.Artifact
}

// Cache of compiled artifacts. It is safe for concurrent use.
type Cache struct {
	entries sync.Map[string, entry]
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Compile returns the artifact of a request, compiling it only if no
// artifact has been compiled for the same key.
func (c *Cache) Compile(req *tracer.Request) (*tracer.Artifact, error) {
	key := req.Key()
	if e, ok := c.entries.Load(key); ok {
		klog.V(1).Infof("cache hit for %s", key)
		return req.Reuse(e.art)
	}
	art, err := req.Compile()
	if err != nil {
		return nil, err
	}
	// Another request may have compiled the same key concurrently.
	e, _ := c.entries.LoadOrStore(key, entry{name: req.Name(), art: art})
	return e.art, nil
}

// Lookup returns the artifact compiled for a request, if any.
func (c *Cache) Lookup(req *tracer.Request) (*tracer.Artifact, bool) {
	e, ok := c.entries.Load(req.Key())
	return e.art, ok
}

// Invalidate removes all the artifacts of a function.
// It returns the number of artifacts removed.
func (c *Cache) Invalidate(name string) int {
	n := 0
	for key, e := range c.entries.Iter() {
		if e.name != name {
			continue
		}
		c.entries.Delete(key)
		n++
	}
	klog.V(1).Infof("invalidated %d artifact(s) of %s", n, name)
	return n
}

// Size returns the number of artifacts in the cache.
func (c *Cache) Size() int {
	return c.entries.Size()
}
