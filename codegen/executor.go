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

package codegen

import (
	"unsafe"

	"github.com/pkg/errors"
	"tinygo.org/x/go-llvm"

	"github.com/dbhardwaj1904/firtree/codegen/call"
)

// Executor owns a JITed module's MCJIT execution engine. One Executor
// is created per specialised module; specialize.Cache (used by
// render.Engine) caches it keyed by sampler root and disposes it once a
// newer specialisation supersedes it.
type Executor struct {
	engine llvm.ExecutionEngine
	mod    *Module
}

// NewExecutor verifies mod and JIT-compiles it, running the optimizer
// pass pipeline first if requested. Firtree always compiles with
// optimisation once specialisation is done (spec.md §4.F step 9), but
// tests may want the unoptimised form to keep generated IR readable.
func (m *Module) NewExecutor(optimize bool) (*Executor, error) {
	if optimize {
		RunOptimizationPipeline(m)
	}
	if err := m.Verify(); err != nil {
		return nil, err
	}

	opts := llvm.NewMCJITCompilerOptions()
	opts.SetMCJITOptimizationLevel(2)
	engine, err := llvm.NewMCJITCompiler(m.llvm, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create MCJIT compiler")
	}
	return &Executor{engine: engine, mod: m}, nil
}

// Dispose releases the execution engine's native resources. Callers
// must not use the Executor or call functions obtained from it after
// Dispose returns.
func (e *Executor) Dispose() { e.engine.Dispose() }

// RunPixelFunc invokes a compiled `void name(float x, float y, vec4*
// out)` function — the shape of package specialize's sample_root, the
// one entry point render.Engine calls (it packs the returned lanes into
// the requested PixelFormat in Go) — and returns the four lanes it wrote.
//
// MCJIT's ExecutionEngine.RunFunction cannot marshal a <4 x float>
// return value (it only understands int/float/double/pointer/void),
// and tinygo.org/x/go-llvm's GenericValue has no vector accessor to
// begin with. package specialize therefore gives every pixel-function
// entry point an out-pointer parameter instead of a vec4 return; this
// resolves to a raw function pointer via PointerToGlobal and is
// invoked through package call's cgo shim, which knows how to cast
// that pointer to the matching C function type and call it directly.
func (e *Executor) RunPixelFunc(name string, x, y float32) (r, g, b, a float32, err error) {
	fn, ok := e.mod.Func(name)
	if !ok {
		return 0, 0, 0, 0, errors.Errorf("codegen: no such function %q in module", name)
	}
	ptr := e.engine.PointerToGlobal(fn.llvm)

	var out [4]float32
	call.VFFP(ptr, x, y, unsafe.Pointer(&out[0]))
	return out[0], out[1], out[2], out[3], nil
}
