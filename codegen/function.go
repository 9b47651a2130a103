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

import "tinygo.org/x/go-llvm"

// Function is a declared (and possibly defined) LLVM function.
type Function struct {
	Name     string
	llvm     llvm.Value
	fnType   llvm.Type
	retTy    llvm.Type
	paramTys []llvm.Type
	m        *Module
}

// Param returns the nth parameter as a Value, for use inside Build's
// callback.
func (f *Function) Param(i int) *Value {
	return &Value{ty: f.paramTys[i], llvm: f.llvm.Param(i)}
}

// NumParams returns the function's declared arity.
func (f *Function) NumParams() int { return len(f.paramTys) }

// Build opens an entry basic block and invokes cb with a Builder
// positioned at its start; cb is responsible for terminating every
// control-flow path it opens (spec.md §7, "non-void function falls
// off the end" is a control-flow error precisely when it doesn't).
func (f *Function) Build(cb func(b *Builder)) {
	entry := f.m.ctx.AddBasicBlock(f.llvm, "entry")
	b := &Builder{llvm: f.m.ctx.NewBuilder(), m: f.m, fn: f}
	b.llvm.SetInsertPointAtEnd(entry)
	cb(b)
}

// block adds a new basic block to this function, named for
// readability in dumped IR (e.g. "if_then", "loop_cond").
func (f *Function) block(name string) llvm.BasicBlock {
	return f.m.ctx.AddBasicBlock(f.llvm, name)
}
