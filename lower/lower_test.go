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

package lower_test

import (
	"testing"

	"github.com/dbhardwaj1904/firtree/lower"
	"github.com/dbhardwaj1904/firtree/quark"
)

func TestCompileConstantKernel(t *testing.T) {
	src := `
kernel vec4 red() {
    return vec4(1, 0, 0, 1);
}
`
	_, records, log, ok := lower.Compile(quark.NewTable(), src)
	if !ok {
		t.Fatalf("compile failed: %s", log)
	}
	if len(records) != 1 || records[0].Name != "red" {
		t.Fatalf("expected one kernel record named red, got %+v", records)
	}
}

func TestCompileSampleChain(t *testing.T) {
	src := `
kernel vec4 passthrough(sampler src) {
    return sample(src, samplerCoord(src));
}
`
	_, records, log, ok := lower.Compile(quark.NewTable(), src)
	if !ok {
		t.Fatalf("compile failed: %s", log)
	}
	if len(records) != 1 {
		t.Fatalf("expected one kernel record, got %d", len(records))
	}
	r := records[0]
	if len(r.Args) != 1 || r.Args[0].Type.Specifier.String() != "sampler" {
		t.Fatalf("unexpected kernel args: %+v", r.Args)
	}
}

func TestCompileStaticArgument(t *testing.T) {
	src := `
kernel vec4 tint(sampler src, static vec4 colour) {
    return sample(src, samplerCoord(src)) * colour;
}
`
	_, records, log, ok := lower.Compile(quark.NewTable(), src)
	if !ok {
		t.Fatalf("compile failed: %s", log)
	}
	r := records[0]
	if !r.Args[1].IsStatic {
		t.Fatalf("expected second argument to be static, got %+v", r.Args[1])
	}
}

func TestCompileUndefinedSymbolRecovers(t *testing.T) {
	src := `
kernel vec4 good() {
    return vec4(0, 0, 0, 1);
}

kernel vec4 bad() {
    return vec4(missing, 0, 0, 1);
}
`
	_, records, log, ok := lower.Compile(quark.NewTable(), src)
	if ok {
		t.Fatalf("expected compile to fail due to undefined symbol")
	}
	if !log.HasErrors() {
		t.Fatalf("expected diagnostics for undefined symbol")
	}
	found := false
	for _, r := range records {
		if r.Name == "good" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the kernel that did compile to still be enumerable, got %+v", records)
	}
}

// TestCompileFullMathLibrary exercises every reserved math-library
// builtin spec.md §6/§4.C names, not only the subset that happens to
// map onto a single LLVM instruction — atan2/smoothstep/cross/distance
// and friends must resolve as ordinary overloaded calls and compile
// cleanly.
func TestCompileFullMathLibrary(t *testing.T) {
	src := `
kernel vec4 useMath() {
    float s = sin(1.0) + cos(1.0) + tan(1.0);
    float inv = asin(0.5) + acos(0.5) + atan(0.5) + atan2(1.0, 2.0);
    float e = exp(1.0) + log(1.0);
    float r = ceil(1.2) + floor(1.2) + abs(-1.0) + sqrt(4.0);
    float edge = step(0.5, s) + smoothstep(0.0, 1.0, s);
    vec3 a = vec3(1, 0, 0);
    vec3 b = vec3(0, 1, 0);
    vec3 c = cross(a, b);
    vec3 n = normalize(a);
    float d = distance(a, b) + dot(a, b) + length(n) + c.x;
    return vec4(s + inv + e + r + edge + d, 0, 0, 1);
}
`
	_, _, log, ok := lower.Compile(quark.NewTable(), src)
	if !ok {
		t.Fatalf("compile failed: %s", log)
	}
}

func TestCompileOverloadResolution(t *testing.T) {
	src := `
function float pick(float x) { return x; }
function float pick(vec2 v) { return v.x; }

kernel vec4 use() {
    float a = pick(1.0);
    return vec4(a, 0, 0, 1);
}
`
	_, _, log, ok := lower.Compile(quark.NewTable(), src)
	if !ok {
		t.Fatalf("compile failed: %s", log)
	}
}

func TestCompileControlFlowFallsOffEnd(t *testing.T) {
	src := `
function float maybe(bool flag) {
    if (flag) {
        return 1.0;
    }
}
kernel vec4 k() { return vec4(0,0,0,1); }
`
	_, _, log, ok := lower.Compile(quark.NewTable(), src)
	if ok {
		t.Fatalf("expected failure: function falls off the end on the false branch")
	}
	if !log.HasErrors() {
		t.Fatalf("expected a control-flow diagnostic")
	}
}
