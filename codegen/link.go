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
	"github.com/pkg/errors"
	"tinygo.org/x/go-llvm"
)

// Clone returns a deep, independent copy of m under a new name. The
// graph specialiser clones the root kernel's IR module into a fresh
// linking module (spec.md §4.F step 2) and then clones and links in
// every reachable child sampler's module (step 3) — each clone must
// be independent because the same compiled kernel object can be
// linked into many different specialised modules concurrently (one
// per root that uses it).
//
// The implementation round-trips through LLVM's textual IR rather
// than a deep structural copy: LLVM modules have no cheap built-in
// clone, and re-parsing text into a new context is the approach the
// teacher's own build tooling uses when it needs an independent
// module (see core/codegen's reliance on llvm.ParseIRInContext-style
// helpers for the embedded support-module blob).
func (m *Module) Clone(newName string) (*Module, error) {
	ctx := llvm.NewContext()
	buf := llvm.NewMemoryBufferFromString(m.String())
	mod, err := ctx.ParseIR(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "cloning module %q", m.name)
	}
	mod.SetModuleIdentifier(newName)

	clone := &Module{llvm: mod, ctx: ctx, name: newName, funcs: map[string]*Function{}}
	clone.Types = Types{
		Void:    ctx.VoidType(),
		Bool:    ctx.Int1Type(),
		Int32:   ctx.Int32Type(),
		Float32: ctx.FloatType(),
		Vec4:    llvm.VectorType(ctx.FloatType(), 4),
	}
	clone.Types.Sampler = clone.Types.Int32
	for f := mod.FirstFunction(); !f.IsNil(); f = llvm.NextFunction(f) {
		clone.adopt(f)
	}
	return clone, nil
}

// adopt registers an llvm.Value function already present in m.llvm
// (from parsing, cloning, or linking) as a *Function handle, deriving
// its return and parameter types from its LLVM function type so that
// both Call (needs retTy) and Build (needs paramTys, for Param) work
// on a handle this package never itself declared.
func (m *Module) adopt(f llvm.Value) *Function {
	name := f.Name()
	fnTy := f.GlobalValueType()
	handle := &Function{Name: name, llvm: f, fnType: fnTy, retTy: fnTy.ReturnType(), paramTys: fnTy.ParamTypes(), m: m}
	m.funcs[name] = handle
	return handle
}

// RenameAll prefixes the name of every function in m except those
// named in skip. The graph specialiser links a separate clone of each
// distinct reachable kernel object's module into one root module
// (spec.md §4.F step 3); without renaming first, two unrelated kernel
// objects that happen to define a function with the same mangled name
// (most commonly two kernels both named, say, "blend") would collide
// when linked together. skip always carries the three sampler
// intrinsics and the libm externs, so those keep coalescing into a
// single shared declaration across every linked object rather than
// being split into unreachable per-object copies.
func (m *Module) RenameAll(prefix string, skip map[string]bool) {
	renamed := make(map[string]*Function, len(m.funcs))
	for name, f := range m.funcs {
		if skip[name] {
			renamed[name] = f
			continue
		}
		newName := prefix + name
		f.llvm.SetName(newName)
		f.Name = newName
		renamed[newName] = f
	}
	m.funcs = renamed
}

// Link merges other into m, taking ownership of other's contents.
// other must not be used after Link returns. Used by the specialiser
// to merge each child's cloned module into the root's linking module
// (spec.md §4.F step 3).
//
// Function handles are rebuilt by walking m's own function list after
// the merge rather than reusing other.funcs's pre-link handles:
// LLVM's linker is free to coalesce two modules' matching external
// declarations (exactly what happens to the shared sample /
// samplerTransform / samplerExtent declarations every specialised
// kernel object carries) into a single destination-module global, so
// a handle captured before linking cannot be trusted afterward.
func (m *Module) Link(other *Module) error {
	if err := llvm.LinkModules(m.llvm, other.llvm); err != nil {
		return errors.Wrapf(err, "linking module %q into %q", other.name, m.name)
	}
	for f := m.llvm.FirstFunction(); !f.IsNil(); f = llvm.NextFunction(f) {
		m.adopt(f)
	}
	return nil
}
