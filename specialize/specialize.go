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

// Package specialize implements the graph specialiser (spec.md §4.F):
// given a sampler graph and a root, it produces one flattened,
// optimisable IR module with every sample()/samplerTransform()/
// samplerExtent() call resolved to a direct dispatch and every static
// argument inlined as a constant, ready for codegen.Module.NewExecutor
// to JIT. It never runs the optimiser or the JIT itself — that split
// mirrors package codegen's own separation between building a module
// and executing one, and lets package specialize's Cache (cache.go)
// decide when re-running either is actually necessary.
package specialize

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"tinygo.org/x/go-llvm"

	"github.com/dbhardwaj1904/firtree/codegen"
	"github.com/dbhardwaj1904/firtree/kernel"
	"github.com/dbhardwaj1904/firtree/quark"
	"github.com/dbhardwaj1904/firtree/sampler"
	"github.com/dbhardwaj1904/firtree/types"
)

// Capability records which optional IR shapes a specialised module's
// entry point relies on, so a caller (package render) can decide
// whether a faster, capability-free path is available.
type Capability uint32

const (
	// CapAffineTransform is set when sample_root or some reachable
	// node applies a non-identity placement transform, meaning the
	// pixel function's coordinate arithmetic is not a pure identity
	// mapping from device pixels (spec.md §9 Open Questions).
	CapAffineTransform Capability = 1 << iota
)

const (
	fnSample           = "sample"
	fnSamplerTransform = "samplerTransform"
	fnSamplerExtent    = "samplerExtent"
	fnSampleRoot       = "sample_root"
)

// reservedNames never get an object-disambiguation prefix when a
// kernel object's cloned module is merged into the root module: the
// three sampler intrinsics must stay coalescable across every linked
// object, and the libm externs must keep the exact names MCJIT
// resolves against the host process (renaming "sqrtf" would silently
// break every sqrt() call post-link).
var reservedNames = map[string]bool{
	fnSample: true, fnSamplerTransform: true, fnSamplerExtent: true,
	"sqrtf": true, "sinf": true, "cosf": true, "floorf": true, "powf": true,
	"tanf": true, "asinf": true, "acosf": true, "atanf": true, "atan2f": true,
	"expf": true, "logf": true, "ceilf": true,
}

// Specialize walks every sampler reachable from root, links each
// distinct reachable kernel object's IR into one module, resolves the
// sampler intrinsics into direct dispatch, inlines static arguments,
// and synthesises the void sample_root(float, float, vec4*) entry
// point (spec.md §4.F steps 1-8), internalising everything else (step 9's
// internalize half — running the optimiser itself is left to the
// caller via codegen.Module.NewExecutor, per package codegen's own
// build/execute split). Specialize re-validates g itself rather than
// trusting a prior caller's Validate: a graph mutation elsewhere can
// invalidate root between that check and this one.
func Specialize(g *sampler.Graph, root sampler.ID) (*codegen.Module, Capability, error) {
	g.RLock()
	defer g.RUnlock()

	if err := g.Validate(root); err != nil {
		return nil, 0, errors.Wrap(err, "specialize: graph failed validation")
	}

	order := collectNodes(g, root)

	mod := codegen.NewModule("specialized")
	entryNames, err := linkKernels(mod, g, order)
	if err != nil {
		return nil, 0, err
	}

	if err := buildNodeEntries(mod, g, order, entryNames); err != nil {
		return nil, 0, err
	}
	buildDispatchers(mod, g, order)

	capability := buildSampleRoot(mod, g, root)
	for _, id := range order {
		if n, _ := g.Node(id); !n.Transform.IsIdentity() {
			capability |= CapAffineTransform
		}
	}

	mod.Internalize(map[string]bool{fnSampleRoot: true})
	return mod, capability, nil
}

// sortedArgs returns n's bound arguments in a fixed order (by quark),
// so every IR-building pass that walks a kernel node's bindings visits
// them identically regardless of Go's unordered map iteration.
func sortedArgs(n *sampler.Node) []quark.Quark {
	qs := make([]quark.Quark, 0, len(n.Args))
	for q := range n.Args {
		qs = append(qs, q)
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i] < qs[j] })
	return qs
}

// collectNodes returns every sampler reachable from root (root first),
// each exactly once, found by a depth-first walk over bound child
// arguments. Validate has already rejected cycles and missing
// bindings, so this walk cannot diverge or dereference an invalid ID.
func collectNodes(g *sampler.Graph, root sampler.ID) []sampler.ID {
	var order []sampler.ID
	seen := map[sampler.ID]bool{}
	var visit func(id sampler.ID)
	visit = func(id sampler.ID) {
		if seen[id] {
			return
		}
		seen[id] = true
		order = append(order, id)
		n, ok := g.Node(id)
		if !ok || n.Kind != sampler.KindKernel {
			return
		}
		for _, q := range sortedArgs(n) {
			if b := n.Args[q]; b.IsChild {
				visit(b.Child)
			}
		}
	}
	visit(root)
	return order
}

// linkKernels clones and links every distinct kernel object reachable
// in order into mod (spec.md §4.F steps 2-3: the root's own object is
// just the first one linked, not special-cased), returning the final,
// post-link, post-rename entry function name for every kernel-kind
// node in order.
func linkKernels(mod *codegen.Module, g *sampler.Graph, order []sampler.ID) (map[sampler.ID]string, error) {
	entryNames := map[sampler.ID]string{}
	prefixOf := map[*kernel.Object]string{}
	next := 0

	for _, id := range order {
		n, _ := g.Node(id)
		if n.Kind != sampler.KindKernel {
			continue
		}
		rec, ok := n.Object.ByName(n.KernelName)
		if !ok {
			return nil, errors.Errorf("specialize: sampler %d: kernel object no longer defines %q", id, n.KernelName)
		}

		prefix, ok := prefixOf[n.Object]
		if !ok {
			prefix = fmt.Sprintf("k%d_", next)
			next++
			prefixOf[n.Object] = prefix

			clone, err := n.Object.Module.Clone(prefix + "mod")
			if err != nil {
				return nil, errors.Wrapf(err, "specialize: cloning kernel object for sampler %d", id)
			}
			clone.RenameAll(prefix, reservedNames)
			if err := mod.Link(clone); err != nil {
				return nil, errors.Wrapf(err, "specialize: linking kernel object for sampler %d", id)
			}
		}
		entryNames[id] = prefix + rec.Entry.Name
	}
	return entryNames, nil
}

// nodeEntryName returns the name of the node_entry_<id> wrapper
// synthesised for id: every reachable node, regardless of kind, gets
// one, so sample()'s dispatcher can call through a single uniform
// shape (vec4 entry(vec4 coord)) no matter whether id is a kernel,
// texture, or null sampler.
func nodeEntryName(id sampler.ID) string { return fmt.Sprintf("node_entry_%d", uint32(id)) }

// buildNodeEntries synthesises, for every reachable node, a
// vec4 node_entry_<id>(vec4 coord) wrapper: for a kernel node it binds
// every declared argument (a child sampler_id constant or an inlined
// static literal — spec.md §4.F step 7) and calls through to the
// node's linked entry function with coord appended as the hidden
// trailing coordinate argument (see package lower's own predeclare);
// for a texture or null node, which carries no compiled IR at all,
// it trivially returns the transparent pixel — real pixel-fetch
// plumbing for texture samplers is an explicit Non-goal (spec.md §1).
func buildNodeEntries(mod *codegen.Module, g *sampler.Graph, order []sampler.ID, entryNames map[sampler.ID]string) error {
	for _, id := range order {
		n, _ := g.Node(id)
		fn := mod.InternalFunction(nodeEntryName(id), mod.Types.Vec4, mod.Types.Vec4)

		if n.Kind != sampler.KindKernel {
			fn.Build(func(b *codegen.Builder) { b.Ret(mod.TransparentPixel()) })
			continue
		}

		target, ok := mod.Func(entryNames[id])
		if !ok {
			return errors.Errorf("specialize: sampler %d: linked entry %q not found", id, entryNames[id])
		}
		rec, _ := n.Object.ByName(n.KernelName)

		fn.Build(func(b *codegen.Builder) {
			coord := fn.Param(0)
			args := make([]*codegen.Value, 0, len(rec.Args)+1)
			for _, spec := range rec.Args {
				binding := n.Args[spec.Quark]
				if binding.IsChild {
					args = append(args, mod.ConstSampler(uint32(binding.Child)))
				} else {
					args = append(args, literalValue(mod, binding.Literal))
				}
			}
			args = append(args, coord)
			b.Ret(b.Call(target, args, ""))
		})
	}
	return nil
}

// literalValue builds the constant IR value for a static kernel
// argument's bound literal (spec.md §4.F step 7: "inline static args
// as IR constants").
func literalValue(mod *codegen.Module, lit sampler.Literal) *codegen.Value {
	switch lit.Type.Specifier {
	case types.Int:
		return mod.ConstInt(int64(lit.Lanes[0]))
	case types.Bool:
		return mod.ConstBool(lit.Lanes[0] != 0)
	case types.Vec2, types.Vec3, types.Vec4, types.Color:
		return mod.ConstVec4(lit.Lanes[0], lit.Lanes[1], lit.Lanes[2], lit.Lanes[3])
	default:
		return mod.ConstFloat(lit.Lanes[0])
	}
}

// buildDispatchers gives real bodies to the three sampler intrinsics
// (spec.md §4.F steps 4-6), each a Builder.Switch over every reachable
// node's ID calling that node's node_entry_<id>. A node_entry call for
// sample()/samplerTransform() carries the coordinate unchanged except
// where the target node's own placement Transform is non-identity, in
// which case it is first mapped into the node's local space via the
// inverse of that Transform (codegen.Affine.Invert) — the matrix-
// multiply path spec.md §9's Open Questions resolves in favour of
// supporting non-identity child transforms rather than refusing them.
func buildDispatchers(mod *codegen.Module, g *sampler.Graph, order []sampler.ID) {
	sampleFn := getOrDeclare(mod, fnSample, mod.Types.Vec4, mod.Types.Sampler, mod.Types.Vec4)
	transformFn := getOrDeclare(mod, fnSamplerTransform, mod.Types.Vec4, mod.Types.Sampler, mod.Types.Vec4)
	extentFn := getOrDeclare(mod, fnSamplerExtent, mod.Types.Vec4, mod.Types.Sampler)

	sampleFn.Build(func(b *codegen.Builder) {
		sid := sampleFn.Param(0)
		coord := sampleFn.Param(1)
		def := b.NewBlock("sample_default")
		cases := map[int64]codegen.Block{}
		blocks := map[int64]codegen.Block{}
		for _, id := range order {
			blk := b.NewBlock(fmt.Sprintf("sample_case_%d", uint32(id)))
			cases[int64(id)] = blk
			blocks[int64(id)] = blk
		}
		merge := b.NewBlock("sample_merge")
		result := b.Alloca(mod.Types.Vec4, "result")
		b.Switch(sid, def, cases)

		b.SetInsertPoint(def)
		b.Store(mod.TransparentPixel(), result)
		b.Br(merge)

		for _, id := range order {
			entry, _ := mod.Func(nodeEntryName(id))
			b.SetInsertPoint(blocks[int64(id)])
			localCoord := localCoordFor(b, mod, g, id, coord)
			b.Store(b.Call(entry, []*codegen.Value{localCoord}, ""), result)
			b.Br(merge)
		}

		b.SetInsertPoint(merge)
		b.Ret(b.Load(result, mod.Types.Vec4, ""))
	})

	transformFn.Build(func(b *codegen.Builder) {
		sid := transformFn.Param(0)
		coord := transformFn.Param(1)
		def := b.NewBlock("transform_default")
		cases := map[int64]codegen.Block{}
		blocks := map[int64]codegen.Block{}
		for _, id := range order {
			blk := b.NewBlock(fmt.Sprintf("transform_case_%d", uint32(id)))
			cases[int64(id)] = blk
			blocks[int64(id)] = blk
		}
		merge := b.NewBlock("transform_merge")
		result := b.Alloca(mod.Types.Vec4, "result")
		b.Switch(sid, def, cases)

		b.SetInsertPoint(def)
		b.Store(coord, result)
		b.Br(merge)

		for _, id := range order {
			b.SetInsertPoint(blocks[int64(id)])
			b.Store(localCoordFor(b, mod, g, id, coord), result)
			b.Br(merge)
		}

		b.SetInsertPoint(merge)
		b.Ret(b.Load(result, mod.Types.Vec4, ""))
	})

	extentFn.Build(func(b *codegen.Builder) {
		sid := extentFn.Param(0)
		def := b.NewBlock("extent_default")
		cases := map[int64]codegen.Block{}
		blocks := map[int64]codegen.Block{}
		for _, id := range order {
			blk := b.NewBlock(fmt.Sprintf("extent_case_%d", uint32(id)))
			cases[int64(id)] = blk
			blocks[int64(id)] = blk
		}
		merge := b.NewBlock("extent_merge")
		result := b.Alloca(mod.Types.Vec4, "result")
		b.Switch(sid, def, cases)

		b.SetInsertPoint(def)
		b.Store(mod.TransparentPixel(), result)
		b.Br(merge)

		for _, id := range order {
			e := g.Extent(id)
			b.SetInsertPoint(blocks[int64(id)])
			b.Store(mod.ConstVec4(e.X, e.Y, e.Width, e.Height), result)
			b.Br(merge)
		}

		b.SetInsertPoint(merge)
		b.Ret(b.Load(result, mod.Types.Vec4, ""))
	})
}

// localCoordFor emits, inline into the dispatcher's switch arm for id,
// the coordinate mapping used both by sample()'s call into
// node_entry_<id> and by samplerTransform()'s own result for id: coord
// unchanged when id's placement Transform is identity, otherwise coord
// passed through the inverse of that Transform.
func localCoordFor(b *codegen.Builder, mod *codegen.Module, g *sampler.Graph, id sampler.ID, coord *codegen.Value) *codegen.Value {
	n, _ := g.Node(id)
	if n.Transform.IsIdentity() {
		return coord
	}
	return b.AffineTransform(coord, n.Transform.Invert())
}

// getOrDeclare returns the existing externally-linked declaration for
// name if package lower already emitted one into some linked kernel
// object's module (the common case — almost every non-trivial kernel
// calls sample() at least once), or declares a fresh one if no
// reachable kernel ever referenced it (e.g. a root kernel with no
// sampler parameters at all), so buildDispatchers can always give it a
// body unconditionally rather than leaving a bodyless external
// declaration behind for Internalize to choke on.
func getOrDeclare(mod *codegen.Module, name string, retTy llvm.Type, paramTys ...llvm.Type) *codegen.Function {
	if fn, ok := mod.Func(name); ok {
		return fn
	}
	return mod.Function(name, retTy, paramTys...)
}

// buildSampleRoot synthesises the void sample_root(float x, float y,
// vec4* out) entry point render.Engine calls for every pixel (spec.md
// §4.F step 8): it packs x/y into a coordinate vec4, applies root's
// own placement transform if non-identity (setting
// CapAffineTransform), calls through to root's node_entry, and writes
// the resulting vec4 through out.
//
// The out-pointer, rather than a vec4 return, exists because this is
// the one function in the module ever crossing the Go/JIT boundary
// directly (codegen.Executor.RunPixelFunc): MCJIT's RunFunction cannot
// marshal a vector return value, so the result is written to caller-
// owned memory and read back through a cgo shim (package codegen/call)
// instead. Every call between IR functions inside the module — every
// node_entry, every sample()/samplerTransform() case — still passes
// vec4 by value as a normal LLVM return; only this one outward-facing
// entry point pays the out-pointer cost.
func buildSampleRoot(mod *codegen.Module, g *sampler.Graph, root sampler.ID) Capability {
	outTy := llvm.PointerType(mod.Types.Vec4, 0)
	fn := mod.Function(fnSampleRoot, mod.Types.Void, mod.Types.Float32, mod.Types.Float32, outTy)
	n, _ := g.Node(root)
	var caps Capability

	fn.Build(func(b *codegen.Builder) {
		zero := mod.ConstFloat(0)
		coord := b.BuildVec4(fn.Param(0), fn.Param(1), zero, zero)
		if !n.Transform.IsIdentity() {
			coord = b.AffineTransform(coord, n.Transform.Invert())
			caps |= CapAffineTransform
		}
		entry, _ := mod.Func(nodeEntryName(root))
		result := b.Call(entry, []*codegen.Value{coord}, "")
		b.Store(result, fn.Param(2))
		b.Ret(nil)
	})
	return caps
}
