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

package render_test

import (
	"bytes"
	"testing"

	"github.com/dbhardwaj1904/firtree/kernel"
	"github.com/dbhardwaj1904/firtree/quark"
	"github.com/dbhardwaj1904/firtree/render"
	"github.com/dbhardwaj1904/firtree/sampler"
)

func mustCompile(t *testing.T, quarks *quark.Table, src string) *kernel.Object {
	t.Helper()
	obj, log, ok := kernel.Compile(quarks, src)
	if !ok {
		t.Fatalf("compile failed: %s", log)
	}
	return obj
}

// TestTileParity is spec.md §8 scenario S6: a gradient kernel rendered
// with strip heights 1 and 100 over a 100x100 extent must produce
// byte-identical buffers.
func TestTileParity(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `
kernel vec4 g() {
    return vec4(destCoord().x / 100.0, destCoord().y / 100.0, 0, 1);
}
`)
	g := sampler.NewGraph(quarks)
	root, err := g.NewKernelSampler(obj, "g")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}

	extent := render.Rect{X: 0, Y: 0, Width: 100, Height: 100}
	const w, h, stride = 100, 100, 100 * 4

	render1 := make([]byte, stride*h)
	e1 := render.NewEngine(g)
	defer e1.Close()
	e1.Options.StripRows = 1
	if err := e1.RenderIntoBuffer(root, extent, render1, w, h, stride, render.RGBA32); err != nil {
		t.Fatalf("RenderIntoBuffer (strip=1): %v", err)
	}

	render100 := make([]byte, stride*h)
	e2 := render.NewEngine(g)
	defer e2.Close()
	e2.Options.StripRows = 100
	if err := e2.RenderIntoBuffer(root, extent, render100, w, h, stride, render.RGBA32); err != nil {
		t.Fatalf("RenderIntoBuffer (strip=100): %v", err)
	}

	if !bytes.Equal(render1, render100) {
		t.Fatalf("tile parity violated: strip height 1 and 100 produced different buffers")
	}
}

// TestPremultipliedIdentity is spec.md §8's "premultiplied identity"
// property: for an opaque pixel, premultiplied and non-premultiplied
// renders of the same channel order must be equal.
func TestPremultipliedIdentity(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `kernel vec4 k() { return vec4(0.25, 0.5, 0.75, 1.0); }`)
	g := sampler.NewGraph(quarks)
	root, err := g.NewKernelSampler(obj, "k")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}

	extent := render.Rect{X: 0, Y: 0, Width: 1, Height: 1}
	e := render.NewEngine(g)
	defer e.Close()

	plain := make([]byte, 4)
	if err := e.RenderIntoBuffer(root, extent, plain, 1, 1, 4, render.ARGB32); err != nil {
		t.Fatalf("RenderIntoBuffer (ARGB32): %v", err)
	}
	premul := make([]byte, 4)
	if err := e.RenderIntoBuffer(root, extent, premul, 1, 1, 4, render.ARGB32Premultiplied); err != nil {
		t.Fatalf("RenderIntoBuffer (ARGB32-premultiplied): %v", err)
	}

	if !bytes.Equal(plain, premul) {
		t.Fatalf("premultiplied identity violated for opaque pixel: %v vs %v", plain, premul)
	}
}

// TestFormatEquivalence is spec.md §8's "format equivalence" property:
// two non-premultiplied formats differing only in channel order must
// produce the same bytes once permuted back into a common order.
func TestFormatEquivalence(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `kernel vec4 k() { return vec4(0.1, 0.2, 0.3, 0.4); }`)
	g := sampler.NewGraph(quarks)
	root, err := g.NewKernelSampler(obj, "k")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}

	extent := render.Rect{X: 0, Y: 0, Width: 1, Height: 1}
	e := render.NewEngine(g)
	defer e.Close()

	rgba := make([]byte, 4)
	if err := e.RenderIntoBuffer(root, extent, rgba, 1, 1, 4, render.RGBA32); err != nil {
		t.Fatalf("RenderIntoBuffer (RGBA32): %v", err)
	}
	bgra := make([]byte, 4)
	if err := e.RenderIntoBuffer(root, extent, bgra, 1, 1, 4, render.BGRA32); err != nil {
		t.Fatalf("RenderIntoBuffer (BGRA32): %v", err)
	}

	// RGBA32 = R,G,B,A ; BGRA32 = B,G,R,A. Permute BGRA32 back to RGBA order.
	permuted := []byte{bgra[2], bgra[1], bgra[0], bgra[3]}
	if !bytes.Equal(rgba, permuted) {
		t.Fatalf("format equivalence violated: RGBA32=%v BGRA32(permuted)=%v", rgba, permuted)
	}
}

// TestUnsupportedFormatRejected ensures an input-only format is
// refused as a render target with a distinct error kind.
func TestUnsupportedFormatRejected(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `kernel vec4 k() { return vec4(0, 0, 0, 1); }`)
	g := sampler.NewGraph(quarks)
	root, err := g.NewKernelSampler(obj, "k")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}

	e := render.NewEngine(g)
	defer e.Close()
	buf := make([]byte, 4)
	err = e.RenderIntoBuffer(root, render.Rect{Width: 1, Height: 1}, buf, 1, 1, 4, render.L8)
	if err == nil {
		t.Fatalf("expected L8 to be rejected as a render target")
	}
	var rerr *render.Error
	if !asRenderError(err, &rerr) {
		t.Fatalf("expected a *render.Error, got %T", err)
	}
	if rerr.Kind != render.ErrUnsupportedFormat {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", rerr.Kind)
	}
}

// TestBufferTooSmallRejected ensures a too-small destination buffer is
// refused before any worker is dispatched.
func TestBufferTooSmallRejected(t *testing.T) {
	quarks := quark.NewTable()
	obj := mustCompile(t, quarks, `kernel vec4 k() { return vec4(0, 0, 0, 1); }`)
	g := sampler.NewGraph(quarks)
	root, err := g.NewKernelSampler(obj, "k")
	if err != nil {
		t.Fatalf("NewKernelSampler: %v", err)
	}

	e := render.NewEngine(g)
	defer e.Close()
	buf := make([]byte, 2) // needs 4
	err = e.RenderIntoBuffer(root, render.Rect{Width: 1, Height: 1}, buf, 1, 1, 4, render.RGBA32)
	if err == nil {
		t.Fatalf("expected a too-small buffer to be rejected")
	}
	var rerr *render.Error
	if !asRenderError(err, &rerr) {
		t.Fatalf("expected a *render.Error, got %T", err)
	}
	if rerr.Kind != render.ErrBufferTooSmall {
		t.Fatalf("expected ErrBufferTooSmall, got %v", rerr.Kind)
	}
}

func asRenderError(err error, target **render.Error) bool {
	if e, ok := err.(*render.Error); ok {
		*target = e
		return true
	}
	return false
}
