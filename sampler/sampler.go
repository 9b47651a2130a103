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

// Package sampler implements the sampler graph (spec.md §4.E): the
// arena of kernel, texture, and null samplers a render is built from,
// addressed by the small 32-bit sampler.ID rather than ref-counted
// objects (spec.md §9, Design Notes). Every mutation that can change
// what a render of the graph produces raises a change signal that
// propagates up through parent pointers, so the graph specialiser's
// cache (package specialize) knows exactly which compiled modules it
// can still reuse.
package sampler

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/dbhardwaj1904/firtree/codegen"
	"github.com/dbhardwaj1904/firtree/kernel"
	"github.com/dbhardwaj1904/firtree/quark"
	"github.com/dbhardwaj1904/firtree/types"
)

// ID is a 32-bit arena index into a Graph. The zero ID, NullID, is
// never allocated to a real node and is used as "no sampler bound".
type ID uint32

// NullID is the sentinel empty sampler.
const NullID ID = 0

// Kind distinguishes the three sampler variants spec.md §4.E names.
type Kind int

const (
	KindNull Kind = iota
	KindKernel
	KindTexture
)

func (k Kind) String() string {
	switch k {
	case KindKernel:
		return "kernel"
	case KindTexture:
		return "texture"
	default:
		return "null"
	}
}

// Binding is one bound argument value on a kernel sampler node: either
// a child sampler (by ID) or an inlined static literal.
type Binding struct {
	IsChild bool
	Child   ID
	Literal Literal
}

// Literal is a constant value bound to a static kernel argument,
// inlined directly into IR at specialise time (spec.md §4.F step 7).
type Literal struct {
	Type   types.Type
	Lanes  [4]float64 // scalar value lives in Lanes[0]
}

// Node is one sampler graph vertex. Texture-kind and null-kind nodes
// carry no kernel object or bound arguments; kernel-kind nodes carry
// both.
type Node struct {
	Kind Kind

	// Kernel-kind fields.
	Object     *kernel.Object
	KernelName string
	Args       map[quark.Quark]Binding

	// Every kind carries a placement transform (codegen.Identity until
	// SetTransform changes it); texture samplers additionally have a
	// fixed intrinsic extent that never changes underneath the graph.
	// Kernel-sampler extents are computed on demand by Graph.Extent.
	Transform     codegen.Affine
	CropRect      *Extent
	intrinsic     Extent // fixed for texture samplers, unused for other kinds
	generation    uint64
	parents       map[ID]struct{}
}

// Graph is an arena of Nodes plus the mutex discipline spec.md §4.E
// requires: Lock/Unlock (and RLock/RUnlock for concurrent renders)
// bracket every specialise-and-render pass so that a concurrent
// mutation can never be observed mid-render.
type Graph struct {
	mu     sync.RWMutex
	nodes  []*Node // nodes[0] is unused; NullID addresses it
	quarks *quark.Table
}

// NewGraph returns an empty graph whose argument names intern into
// quarks.
func NewGraph(quarks *quark.Table) *Graph {
	return &Graph{nodes: []*Node{nil}, quarks: quarks}
}

// Lock/Unlock/RLock/RUnlock expose the graph's mutual exclusion to
// callers that specialise or render against it (package specialize,
// package render): a specialise pass takes RLock (many renders can
// specialise different roots of the same graph concurrently so long
// as nothing is mutating it), and every mutating method below takes
// the write Lock internally.
func (g *Graph) Lock()    { g.mu.Lock() }
func (g *Graph) Unlock()  { g.mu.Unlock() }
func (g *Graph) RLock()   { g.mu.RLock() }
func (g *Graph) RUnlock() { g.mu.RUnlock() }

func (g *Graph) alloc(n *Node) ID {
	n.parents = map[ID]struct{}{}
	n.Transform = codegen.Identity
	g.nodes = append(g.nodes, n)
	return ID(len(g.nodes) - 1)
}

// node returns the node for id, panicking on an invalid ID: every
// caller of this package is expected to have validated the ID against
// a Graph it obtained the ID from.
func (g *Graph) node(id ID) *Node {
	if id == NullID || int(id) >= len(g.nodes) || g.nodes[id] == nil {
		panic(fmt.Sprintf("sampler: invalid id %d", id))
	}
	return g.nodes[id]
}

// Node returns the node for id without panicking, for callers that
// only have an untrusted ID (e.g. read from a Binding).
func (g *Graph) Node(id ID) (*Node, bool) {
	if id == NullID || int(id) >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[id], g.nodes[id] != nil
}

// NewKernelSampler creates a kernel-kind node bound to the named
// kernel of obj, with every argument initially unbound.
func (g *Graph) NewKernelSampler(obj *kernel.Object, kernelName string) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := obj.ByName(kernelName); !ok {
		return NullID, errors.Errorf("sampler: kernel object has no kernel named %q", kernelName)
	}
	id := g.alloc(&Node{Kind: KindKernel, Object: obj, KernelName: kernelName, Args: map[quark.Quark]Binding{}})
	return id, nil
}

// NewTextureSampler creates a texture-kind node with a fixed extent
// and no IR to compile — the specialiser treats it as an opaque leaf
// whose pixels come from outside the kernel language entirely.
func (g *Graph) NewTextureSampler(extent Extent) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alloc(&Node{Kind: KindTexture, intrinsic: extent})
}

// NewNullSampler creates a null-kind node: sample() against it always
// yields the transparent pixel (spec.md §8, "Extent conservatism").
func (g *Graph) NewNullSampler() ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alloc(&Node{Kind: KindNull})
}

// BindChild binds argName on the kernel sampler parent to another
// sampler in the same graph, raising signalContentsChanged on parent
// and registering parent as an observer of child so future changes to
// child's module, contents, or extent/transform invalidate parent's
// cached specialisations transitively (spec.md §4.E, §4.F cache
// invalidation). Rebinding argName to the child it is already bound to
// is a no-op: no signal is raised and the generation does not advance
// (spec.md §8's "setting an argument to its current value emits no
// signals").
func (g *Graph) BindChild(parent ID, argName string, child ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.node(parent)
	if p.Kind != KindKernel {
		return errors.Errorf("sampler: cannot bind an argument on a %v sampler", p.Kind)
	}
	c := g.node(child)
	q := g.quarks.Intern(argName)
	next := Binding{IsChild: true, Child: child}
	if cur, bound := p.Args[q]; bound && cur == next {
		return nil
	}
	p.Args[q] = next
	c.parents[parent] = struct{}{}
	g.propagateLocked(parent, signalContentsChanged)
	return nil
}

// BindStatic binds argName on a kernel sampler to an inlined literal
// value. Because a static argument is inlined directly into the
// specialised IR rather than read at render time (spec.md §4.F step
// 7), rebinding one invalidates every cached specialisation of
// parent's module, not just its contents — this raises
// signalModuleChanged rather than signalContentsChanged, looking up
// argName's ArgSpec.IsStatic on the bound kernel record to tell static
// arguments from child-sampler ones. As with BindChild, rebinding to
// the same value emits no signal.
func (g *Graph) BindStatic(parent ID, argName string, lit Literal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.node(parent)
	if p.Kind != KindKernel {
		return errors.Errorf("sampler: cannot bind an argument on a %v sampler", p.Kind)
	}
	q := g.quarks.Intern(argName)
	next := Binding{Literal: lit}
	if cur, bound := p.Args[q]; bound && cur == next {
		return nil
	}
	p.Args[q] = next

	sig := signalContentsChanged
	if rec, ok := p.Object.ByName(p.KernelName); ok {
		for _, a := range rec.Args {
			if a.Quark == q && a.IsStatic {
				sig = signalModuleChanged
				break
			}
		}
	}
	g.propagateLocked(parent, sig)
	return nil
}

// SetTransform updates id's placement transform, raising
// signalExtentsTransformChanged on id (and therefore on every
// ancestor that samples through it).
func (g *Graph) SetTransform(id ID, affine codegen.Affine) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.node(id)
	n.Transform = affine
	g.propagateLocked(id, signalExtentsTransformChanged)
}

// SetCropRect sets (or clears, with nil) a kernel sampler's crop
// rectangle: the declared extent is intersected with this rectangle
// in addition to every child's transformed extent (spec.md's
// supplemented "crop rectangle intersection" feature, see
// SPEC_FULL.md §4.E).
func (g *Graph) SetCropRect(id ID, rect *Extent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.node(id)
	if n.Kind != KindKernel {
		return errors.Errorf("sampler: cannot set a crop rectangle on a %v sampler", n.Kind)
	}
	n.CropRect = rect
	g.propagateLocked(id, signalExtentsTransformChanged)
	return nil
}

// Recompile replaces a kernel sampler's Object with obj, which the
// caller has already compiled, and raises signalModuleChanged. Used when
// a kernel's source text is edited and the caller wants every sampler
// built from it to recompile on next specialise without rebuilding
// the graph.
func (g *Graph) Recompile(id ID, obj *kernel.Object) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.node(id)
	if n.Kind != KindKernel {
		return errors.Errorf("sampler: cannot recompile a %v sampler", n.Kind)
	}
	if _, ok := obj.ByName(n.KernelName); !ok {
		return errors.Errorf("sampler: replacement object has no kernel named %q", n.KernelName)
	}
	n.Object = obj
	g.propagateLocked(id, signalModuleChanged)
	return nil
}

// Generation returns id's current change generation: the specialiser
// cache's invalidation key (package specialize).
func (g *Graph) Generation(id ID) uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.node(id).generation
}

// Quarks returns the argument-name interning table shared by every
// node in this graph.
func (g *Graph) Quarks() *quark.Table { return g.quarks }
