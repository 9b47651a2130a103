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

// Package codegen is a small Go wrapper around LLVM IR construction
// and JIT execution (tinygo.org/x/go-llvm), modelled closely on the
// teacher repo's core/codegen package: a Module owns a context and a
// set of canonical Types; Functions are built with a Builder; an
// Executor JIT-compiles a finished Module. Every kernel-language type
// in spec.md §3 maps onto exactly one LLVM type here: float/int/bool
// are scalar, vec2/vec3/vec4/color are all the same <4 x float>
// (logical size 2/3 lanes beyond the real one are simply unused), and
// sampler is a 32-bit integer (the bound child sampler's graph node ID,
// not its argument-name quark).
package codegen

import (
	"fmt"

	"github.com/pkg/errors"
	"tinygo.org/x/go-llvm"
)

func init() {
	llvm.InitializeNativeTarget()
	llvm.InitializeNativeAsmPrinter()
}

// Types holds the fixed set of LLVM types every Firtree module uses.
// There is no user-defined type declaration in the kernel language, so
// this set never grows.
type Types struct {
	Void    llvm.Type
	Bool    llvm.Type
	Int32   llvm.Type
	Float32 llvm.Type
	Vec4    llvm.Type // <4 x float>, used for vec2/vec3/vec4/color
	Sampler llvm.Type // alias of Int32: a bound child sampler's graph node ID
}

// Module is a single LLVM module under construction or already
// verified, together with the canonical Types used to build it.
type Module struct {
	Types Types
	llvm  llvm.Module
	ctx   llvm.Context
	name  string
	funcs map[string]*Function
}

// NewModule returns a fresh, empty module with the given name.
func NewModule(name string) *Module {
	ctx := llvm.NewContext()
	mod := ctx.NewModule(name)
	m := &Module{
		llvm:  mod,
		ctx:   ctx,
		name:  name,
		funcs: map[string]*Function{},
	}
	m.Types = Types{
		Void:    ctx.VoidType(),
		Bool:    ctx.Int1Type(),
		Int32:   ctx.Int32Type(),
		Float32: ctx.FloatType(),
		Vec4:    llvm.VectorType(ctx.FloatType(), 4),
	}
	m.Types.Sampler = m.Types.Int32
	return m
}

// Name returns the module's name, used by the specialiser as the
// clone-target name prefix for disambiguating symbols from different
// sampler-graph nodes linked into one module.
func (m *Module) Name() string { return m.name }

// Verify runs LLVM's module verifier.
func (m *Module) Verify() error {
	if err := llvm.VerifyModule(m.llvm, llvm.ReturnStatusAction); err != nil {
		return errors.Wrap(err, "module verification failed")
	}
	return nil
}

// String returns the module's textual LLVM IR, useful for diagnostics
// and golden-output tests.
func (m *Module) String() string { return m.llvm.String() }

// Func looks up a function previously created with Function or Declare
// by name.
func (m *Module) Func(name string) (*Function, bool) {
	f, ok := m.funcs[name]
	return f, ok
}

// Function declares (and returns a handle for) a new function with
// external linkage — used for kernel entry points, which spec.md
// §4.C requires to keep external linkage so the render engine and the
// specialiser's linking step can find them by name.
func (m *Module) Function(name string, retTy llvm.Type, paramTys ...llvm.Type) *Function {
	return m.declare(name, retTy, llvm.ExternalLinkage, paramTys...)
}

// InternalFunction declares a function with internal linkage, as
// spec.md §4.C requires for every non-kernel function so that the
// specialiser's global-DCE pass can discard it once nothing calls it.
func (m *Module) InternalFunction(name string, retTy llvm.Type, paramTys ...llvm.Type) *Function {
	return m.declare(name, retTy, llvm.InternalLinkage, paramTys...)
}

func (m *Module) declare(name string, retTy llvm.Type, linkage llvm.Linkage, paramTys ...llvm.Type) *Function {
	if _, exists := m.funcs[name]; exists {
		panic(fmt.Sprintf("codegen: duplicate function %q in module %q", name, m.name))
	}
	fnTy := llvm.FunctionType(retTy, paramTys, false)
	fn := llvm.AddFunction(m.llvm, name, fnTy)
	fn.SetLinkage(linkage)
	f := &Function{Name: name, llvm: fn, fnType: fnTy, retTy: retTy, paramTys: paramTys, m: m}
	m.funcs[name] = f
	return f
}

// Internalize sets every defined function in the module to internal
// linkage except those named in keep — step 9 of the graph specialiser
// algorithm (spec.md §4.F): the specialiser keeps only sample_root
// externally visible, and everything else it defines becomes eligible
// for global DCE. Bodyless declarations (the libm externs MCJIT
// resolves against the host process) keep external linkage.
func (m *Module) Internalize(keep map[string]bool) {
	for name, f := range m.funcs {
		if keep[name] || f.llvm.IsDeclaration() {
			f.llvm.SetLinkage(llvm.ExternalLinkage)
		} else {
			f.llvm.SetLinkage(llvm.InternalLinkage)
		}
	}
}
