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

package sampler_test

import (
	"testing"

	"github.com/dbhardwaj1904/firtree/kernel"
	"github.com/dbhardwaj1904/firtree/quark"
	"github.com/dbhardwaj1904/firtree/sampler"
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
	if err := g.Validate(root); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	e := g.Extent(root)
	if e.Width != 200 || e.Height != 200 {
		t.Fatalf("expected extent unioned to 200x200, got %+v", e)
	}
}

func TestValidateRejectsUnboundArgument(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `
kernel vec4 needsSrc(sampler src) { return sample(src, samplerCoord(src)); }
`)
	g := sampler.NewGraph(quarks)
	root, err := g.NewKernelSampler(obj, "needsSrc")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}
	if err := g.Validate(root); err == nil {
		t.Fatalf("expected Validate to reject an unbound sampler argument")
	}
}

func TestValidateRejectsCycle(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `
kernel vec4 loop(sampler src) { return sample(src, samplerCoord(src)); }
`)
	g := sampler.NewGraph(quarks)
	root, err := g.NewKernelSampler(obj, "loop")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}
	if err := g.BindChild(root, "src", root); err != nil {
		t.Fatalf("BindChild: %v", err)
	}
	if err := g.Validate(root); err == nil {
		t.Fatalf("expected Validate to reject a self-referential cycle")
	}
}

func TestCropRectIntersectsExtent(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `
kernel vec4 identity(sampler src) { return sample(src, samplerCoord(src)); }
`)
	g := sampler.NewGraph(quarks)
	src := g.NewTextureSampler(sampler.Extent{X: 0, Y: 0, Width: 100, Height: 100})
	root, _ := g.NewKernelSampler(obj, "identity")
	_ = g.BindChild(root, "src", src)
	if err := g.SetCropRect(root, &sampler.Extent{X: 10, Y: 10, Width: 20, Height: 20}); err != nil {
		t.Fatalf("SetCropRect: %v", err)
	}
	e := g.Extent(root)
	if e.Width != 20 || e.Height != 20 {
		t.Fatalf("expected crop rect to shrink extent to 20x20, got %+v", e)
	}
}

func TestBindChildNoOpOnUnchangedValue(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `
kernel vec4 identity(sampler src) { return sample(src, samplerCoord(src)); }
`)
	g := sampler.NewGraph(quarks)
	src := g.NewTextureSampler(sampler.Extent{X: 0, Y: 0, Width: 10, Height: 10})
	root, _ := g.NewKernelSampler(obj, "identity")
	if err := g.BindChild(root, "src", src); err != nil {
		t.Fatalf("BindChild: %v", err)
	}
	g0 := g.Generation(root)

	if err := g.BindChild(root, "src", src); err != nil {
		t.Fatalf("BindChild (rebind same child): %v", err)
	}
	if g.Generation(root) != g0 {
		t.Fatalf("expected rebinding the same child to leave the generation unchanged")
	}
}

func TestBindStaticNoOpOnUnchangedValue(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `
kernel vec4 tint(static vec4 colour) { return colour; }
`)
	g := sampler.NewGraph(quarks)
	root, _ := g.NewKernelSampler(obj, "tint")
	lit := sampler.Literal{Type: types.Vec4T, Lanes: [4]float64{1, 0, 0, 1}}
	if err := g.BindStatic(root, "colour", lit); err != nil {
		t.Fatalf("BindStatic: %v", err)
	}
	g0 := g.Generation(root)

	if err := g.BindStatic(root, "colour", lit); err != nil {
		t.Fatalf("BindStatic (rebind same literal): %v", err)
	}
	if g.Generation(root) != g0 {
		t.Fatalf("expected rebinding the same static literal to leave the generation unchanged")
	}

	other := sampler.Literal{Type: types.Vec4T, Lanes: [4]float64{0, 1, 0, 1}}
	if err := g.BindStatic(root, "colour", other); err != nil {
		t.Fatalf("BindStatic (rebind different literal): %v", err)
	}
	if g.Generation(root) == g0 {
		t.Fatalf("expected rebinding a different static literal to advance the generation")
	}
}

func TestGenerationBumpsOnRecompile(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `kernel vec4 k() { return vec4(0, 0, 0, 1); }`)
	g := sampler.NewGraph(quarks)
	root, _ := g.NewKernelSampler(obj, "k")
	g0 := g.Generation(root)

	obj2 := mustCompile(t, quarks, `kernel vec4 k() { return vec4(1, 1, 1, 1); }`)
	if err := g.Recompile(root, obj2); err != nil {
		t.Fatalf("Recompile: %v", err)
	}
	if g.Generation(root) == g0 {
		t.Fatalf("expected generation to change after Recompile")
	}
}
