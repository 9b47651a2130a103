// Copyright (C) 2024 The Firtree Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package specialize

import (
	"sync"

	"github.com/dbhardwaj1904/firtree/codegen"
	"github.com/dbhardwaj1904/firtree/sampler"
)

// entry is one cached specialisation: the JITed executor, the
// capability bits Specialize reported, and the root's generation at
// the time this entry was built (the invalidation key, spec.md §4.F
// "cache invalidation").
type entry struct {
	executor   *codegen.Executor
	generation uint64
	caps       Capability
}

// Cache memoises a specialise-and-JIT pass per sampler root, so a
// render that repeats frame after frame against an unchanged graph
// never re-specialises or re-JITs. Entries are invalidated by
// comparing sampler.Graph.Generation(root) against the generation
// recorded when the entry was built — any mutation reachable from a
// root (a rebind, a recompile, a transform change anywhere in its
// subgraph) bumps that root's generation (package sampler's parent-
// propagation in signal.go), so a stale cache entry is always
// detected before it is handed to a caller.
type Cache struct {
	mu      sync.Mutex
	entries map[sampler.ID]*entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: map[sampler.ID]*entry{}}
}

// Get returns the JITed executor for root, specialising (and
// optimising and JIT-compiling) fresh only if no entry exists yet or
// the existing one's generation is stale. The returned Executor must
// not be Dispose()d by the caller — the Cache owns its lifetime and
// disposes it itself once superseded or Close is called.
func (c *Cache) Get(g *sampler.Graph, root sampler.ID) (*codegen.Executor, Capability, error) {
	gen := g.Generation(root)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[root]; ok && e.generation == gen {
		return e.executor, e.caps, nil
	}

	mod, caps, err := Specialize(g, root)
	if err != nil {
		return nil, 0, err
	}
	exec, err := mod.NewExecutor(true)
	if err != nil {
		return nil, 0, err
	}

	if old, ok := c.entries[root]; ok {
		old.executor.Dispose()
	}
	c.entries[root] = &entry{executor: exec, generation: gen, caps: caps}
	return exec, caps, nil
}

// Invalidate drops (and disposes) any cached entry for root without
// rebuilding it, for a caller that knows root's graph has changed and
// wants the next Get to pay the specialise cost eagerly rather than
// discovering staleness lazily.
func (c *Cache) Invalidate(root sampler.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[root]; ok {
		e.executor.Dispose()
		delete(c.entries, root)
	}
}

// Close disposes every cached executor. The Cache must not be used
// afterward.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		e.executor.Dispose()
		delete(c.entries, id)
	}
}
