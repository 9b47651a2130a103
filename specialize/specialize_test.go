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

package specialize_test

import (
	"strings"
	"testing"

	"github.com/dbhardwaj1904/firtree/kernel"
	"github.com/dbhardwaj1904/firtree/quark"
	"github.com/dbhardwaj1904/firtree/sampler"
	"github.com/dbhardwaj1904/firtree/specialize"
	"github.com/dbhardwaj1904/firtree/types"
)

func mustCompile(t *testing.T, quarks *quark.Table, src string) *kernel.Object {
	t.Helper()
	obj, log, ok := kernel.Compile(quarks, src)
	if !ok {
		t.Fatalf("compile failed: %s", log)
	}
	return obj
}

// TestIdentityPassThrough is spec.md §8 scenario S1: a single-child
// identity kernel's specialised module must resolve sample() entirely
// and expose a sample_root entry point.
func TestIdentityPassThrough(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `
kernel vec4 id(sampler src) {
    return sample(src, samplerCoord(src));
}
`)
	g := sampler.NewGraph(quarks)
	src := g.NewTextureSampler(sampler.Extent{X: 0, Y: 0, Width: 64, Height: 64})
	root, err := g.NewKernelSampler(obj, "id")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}
	if err := g.BindChild(root, "src", src); err != nil {
		t.Fatalf("BindChild: %v", err)
	}

	mod, _, err := specialize.Specialize(g, root)
	if err != nil {
		t.Fatalf("Specialize: %v", err)
	}
	assertNoUnresolvedIntrinsicCalls(t, mod)

	if _, ok := mod.Func("sample_root"); !ok {
		t.Fatalf("expected sample_root entry point in specialised module")
	}
}

// TestTwoChildComposition builds on sampler.TestTwoChildComposition:
// the full specialise path over a two-child graph must still resolve
// cleanly and produce a sample_root entry point (spec.md §8 scenario
// S3).
func TestTwoChildComposition(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `
kernel vec4 over(sampler top, sampler bottom) {
    vec4 t = sample(top, samplerCoord(top));
    vec4 b = sample(bottom, samplerCoord(bottom));
    return t + b * (1.0 - t.a);
}
`)
	g := sampler.NewGraph(quarks)
	top := g.NewTextureSampler(sampler.Extent{X: 0, Y: 0, Width: 100, Height: 100})
	bottom := g.NewTextureSampler(sampler.Extent{X: 0, Y: 0, Width: 200, Height: 200})
	root, err := g.NewKernelSampler(obj, "over")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}
	if err := g.BindChild(root, "top", top); err != nil {
		t.Fatalf("BindChild(top): %v", err)
	}
	if err := g.BindChild(root, "bottom", bottom); err != nil {
		t.Fatalf("BindChild(bottom): %v", err)
	}

	mod, caps, err := specialize.Specialize(g, root)
	if err != nil {
		t.Fatalf("Specialize: %v", err)
	}
	if caps&specialize.CapAffineTransform != 0 {
		t.Fatalf("expected no affine capability with identity transforms, got %v", caps)
	}
	assertNoUnresolvedIntrinsicCalls(t, mod)
}

// TestStaticArgumentInlinedAsConstant is spec.md §8 scenario S2's
// static half: a static argument's bound literal must appear inlined
// as a constant in the specialised IR rather than as a runtime call
// argument.
func TestStaticArgumentInlinedAsConstant(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `
kernel vec4 tint(sampler src, static vec4 colour) {
    return sample(src, samplerCoord(src)) * colour;
}
`)
	g := sampler.NewGraph(quarks)
	src := g.NewTextureSampler(sampler.Extent{X: 0, Y: 0, Width: 32, Height: 32})
	root, err := g.NewKernelSampler(obj, "tint")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}
	if err := g.BindChild(root, "src", src); err != nil {
		t.Fatalf("BindChild(src): %v", err)
	}
	if err := g.BindStatic(root, "colour", sampler.Literal{Type: types.Vec4T, Lanes: [4]float64{1, 0, 0, 1}}); err != nil {
		t.Fatalf("BindStatic(colour): %v", err)
	}

	mod, _, err := specialize.Specialize(g, root)
	if err != nil {
		t.Fatalf("Specialize: %v", err)
	}
	ir := mod.String()
	if !strings.Contains(ir, "1.000000e+00") {
		t.Fatalf("expected the static colour's lanes to appear as IR constants, got:\n%s", ir)
	}
}

// TestSpecializeRejectsUnboundArgument ensures an invalid graph is
// rejected before any IR is built, rather than specialising partially
// and failing later during JIT or verification.
func TestSpecializeRejectsUnboundArgument(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `
kernel vec4 needsSrc(sampler src) { return sample(src, samplerCoord(src)); }
`)
	g := sampler.NewGraph(quarks)
	root, err := g.NewKernelSampler(obj, "needsSrc")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}
	if _, _, err := specialize.Specialize(g, root); err == nil {
		t.Fatalf("expected Specialize to reject an unbound sampler argument")
	}
}

// TestCacheInvalidatesOnRecompile is spec.md §8 scenario S2's dynamic
// half: rebinding a kernel sampler's underlying module must change the
// cached entry the next time it is fetched.
func TestCacheInvalidatesOnRecompile(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `kernel vec4 k() { return vec4(0, 0, 0, 1); }`)
	g := sampler.NewGraph(quarks)
	root, err := g.NewKernelSampler(obj, "k")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}

	cache := specialize.NewCache()
	defer cache.Close()

	exec1, _, err := cache.Get(g, root)
	if err != nil {
		t.Fatalf("Get (first): %v", err)
	}
	exec1Again, _, err := cache.Get(g, root)
	if err != nil {
		t.Fatalf("Get (repeat): %v", err)
	}
	if exec1 != exec1Again {
		t.Fatalf("expected repeat Get against an unchanged graph to return the cached executor")
	}

	obj2 := mustCompile(t, quarks, `kernel vec4 k() { return vec4(1, 1, 1, 1); }`)
	if err := g.Recompile(root, obj2); err != nil {
		t.Fatalf("Recompile: %v", err)
	}

	exec2, _, err := cache.Get(g, root)
	if err != nil {
		t.Fatalf("Get (after recompile): %v", err)
	}
	if exec2 == exec1 {
		t.Fatalf("expected Get after Recompile to return a freshly specialised executor")
	}
}

// assertNoUnresolvedIntrinsicCalls verifies the specialisation-closure
// property spec.md §8 requires: once Specialize has run, every call to
// the sample()/samplerTransform()/samplerExtent() intrinsics must reach
// a defined function. Specialize resolves them by giving each one a
// switch-dispatch body over node_entry_<id> calls, so the kernels'
// calls to them stay in place, but no bodyless "declare" of any of the
// three may remain in the module.
func assertNoUnresolvedIntrinsicCalls(t *testing.T, mod interface{ String() string }) {
	t.Helper()
	ir := mod.String()
	for _, line := range strings.Split(ir, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "declare") && (strings.Contains(trimmed, "@sample(") ||
			strings.Contains(trimmed, "@samplerTransform(") || strings.Contains(trimmed, "@samplerExtent(")) {
			t.Fatalf("unresolved intrinsic call left in specialised IR: %q", trimmed)
		}
	}
}
