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

// Builder emits instructions into one function, tracking the current
// insertion point the way core/codegen's Builder does.
type Builder struct {
	llvm llvm.Builder
	m    *Module
	fn   *Function
}

// Module returns the module this Builder is emitting into, for
// callers (package lower's intrinsic builtins) that need a constant
// constructor without threading the Module through separately.
func (b *Builder) Module() *Module { return b.m }

// Ret terminates the current block with a return of v, or a bare
// return if v is nil (void functions).
func (b *Builder) Ret(v *Value) {
	if v == nil {
		b.llvm.CreateRetVoid()
		return
	}
	b.llvm.CreateRet(v.llvm)
}

// Alloca reserves stack storage for a mutable local of type ty,
// returning a pointer Value used by Load/Store. Every kernel-language
// local variable and out/inout parameter alias is backed by one of
// these, matching the teacher's alloca-in-entry-block convention
// (mem2reg then promotes them to registers in the specialiser's
// optimisation pipeline — spec.md §4.F step 9).
func (b *Builder) Alloca(ty llvm.Type, name string) *Value {
	return &Value{ty: llvm.PointerType(ty, 0), llvm: b.llvm.CreateAlloca(ty, name)}
}

// Load reads through a pointer Value produced by Alloca.
func (b *Builder) Load(ptr *Value, ty llvm.Type, name string) *Value {
	return &Value{ty: ty, llvm: b.llvm.CreateLoad(ty, ptr.llvm, name)}
}

// Store writes v through a pointer Value produced by Alloca.
func (b *Builder) Store(v *Value, ptr *Value) {
	b.llvm.CreateStore(v.llvm, ptr.llvm)
}

// Call invokes fn with the given arguments.
func (b *Builder) Call(fn *Function, args []*Value, name string) *Value {
	llvmArgs := make([]llvm.Value, len(args))
	for i, a := range args {
		llvmArgs[i] = a.llvm
	}
	v := b.llvm.CreateCall(fn.fnType, fn.llvm, llvmArgs, name)
	return &Value{ty: fn.retTy, llvm: v}
}

// Block is an opaque handle to a basic block, returned by NewBlock and
// consumed by Br/CondBr/SetInsertPoint.
type Block struct{ llvm llvm.BasicBlock }

// NewBlock adds a new, unpositioned basic block to the current
// function.
func (b *Builder) NewBlock(name string) Block { return Block{llvm: b.fn.block(name)} }

// SetInsertPoint repositions the builder to the end of blk.
func (b *Builder) SetInsertPoint(blk Block) { b.llvm.SetInsertPointAtEnd(blk.llvm) }

// Br emits an unconditional branch.
func (b *Builder) Br(to Block) { b.llvm.CreateBr(to.llvm) }

// CondBr emits a conditional branch on a bool Value.
func (b *Builder) CondBr(cond *Value, then, els Block) {
	b.llvm.CreateCondBr(cond.llvm, then.llvm, els.llvm)
}

// Switch emits an integer switch over v with the given (caseValue,
// block) arms and a mandatory default block — used by the specialiser
// to synthesise sample()/samplerTransform()/samplerExtent() dispatch
// over sampler_id (spec.md §4.F steps 4–6).
func (b *Builder) Switch(v *Value, def Block, cases map[int64]Block) {
	sw := b.llvm.CreateSwitch(v.llvm, def.llvm, len(cases))
	for cv, blk := range cases {
		sw.AddCase(llvm.ConstInt(v.ty, uint64(cv), true), blk.llvm)
	}
}

// --- Arithmetic -------------------------------------------------------

func (b *Builder) isFloaty(ty llvm.Type) bool {
	return ty.TypeKind() == llvm.FloatTypeKind || ty == b.m.Types.Vec4
}

// FAdd/FSub/FMul/FDiv operate on float32 or <4 x float> values
// (vec2/vec3/vec4/color all share the latter representation).
func (b *Builder) FAdd(x, y *Value) *Value { return &Value{ty: x.ty, llvm: b.llvm.CreateFAdd(x.llvm, y.llvm, "")} }
func (b *Builder) FSub(x, y *Value) *Value { return &Value{ty: x.ty, llvm: b.llvm.CreateFSub(x.llvm, y.llvm, "")} }
func (b *Builder) FMul(x, y *Value) *Value { return &Value{ty: x.ty, llvm: b.llvm.CreateFMul(x.llvm, y.llvm, "")} }
func (b *Builder) FDiv(x, y *Value) *Value { return &Value{ty: x.ty, llvm: b.llvm.CreateFDiv(x.llvm, y.llvm, "")} }

func (b *Builder) Add(x, y *Value) *Value { return &Value{ty: x.ty, llvm: b.llvm.CreateAdd(x.llvm, y.llvm, "")} }
func (b *Builder) Sub(x, y *Value) *Value { return &Value{ty: x.ty, llvm: b.llvm.CreateSub(x.llvm, y.llvm, "")} }
func (b *Builder) Mul(x, y *Value) *Value { return &Value{ty: x.ty, llvm: b.llvm.CreateMul(x.llvm, y.llvm, "")} }
func (b *Builder) SDiv(x, y *Value) *Value { return &Value{ty: x.ty, llvm: b.llvm.CreateSDiv(x.llvm, y.llvm, "")} }
func (b *Builder) SRem(x, y *Value) *Value { return &Value{ty: x.ty, llvm: b.llvm.CreateSRem(x.llvm, y.llvm, "")} }

// FNeg/Neg implement unary minus (spec.md §4.C: "x * (-1 of x's
// element type, splatted if vector)" — Neg is built by the lowering
// pass as FMul/Mul against a -1 constant, so it lives in package
// lower, not here; Builder only exposes the primitive ops it composes
// from).

// FCmp/ICmp produce a Bool-typed Value for relational/equality
// operators. Predicate values mirror llvm.FloatPredicate /
// llvm.IntPredicate.
func (b *Builder) FCmp(pred llvm.FloatPredicate, x, y *Value) *Value {
	return &Value{ty: b.cmpResultType(x.ty), llvm: b.llvm.CreateFCmp(pred, x.llvm, y.llvm, "")}
}
func (b *Builder) ICmp(pred llvm.IntPredicate, x, y *Value) *Value {
	return &Value{ty: b.cmpResultType(x.ty), llvm: b.llvm.CreateICmp(pred, x.llvm, y.llvm, "")}
}

// cmpResultType is i1 for a scalar comparison, <4 x i1> for a
// vec2/vec3/vec4/color comparison — the mask type Select expects when
// implementing elementwise min/max/clamp/abs over a vector (package
// lower's intrinsic builtins).
func (b *Builder) cmpResultType(operand llvm.Type) llvm.Type {
	if operand == b.m.Types.Vec4 {
		return llvm.VectorType(b.m.Types.Bool, 4)
	}
	return b.m.Types.Bool
}

// Select implements the ternary `cond ? x : y`, including the
// elementwise vector form used by min/max/clamp/abs on vec2/vec3/
// vec4/color (cond is a <4 x i1> in that case, built lane-wise by the
// caller from an FCmp over the same <4 x float> operands).
func (b *Builder) Select(cond, x, y *Value) *Value {
	return &Value{ty: x.ty, llvm: b.llvm.CreateSelect(cond.llvm, x.llvm, y.llvm, "")}
}

func (b *Builder) And(x, y *Value) *Value { return &Value{ty: b.m.Types.Bool, llvm: b.llvm.CreateAnd(x.llvm, y.llvm, "")} }
func (b *Builder) Or(x, y *Value) *Value  { return &Value{ty: b.m.Types.Bool, llvm: b.llvm.CreateOr(x.llvm, y.llvm, "")} }
func (b *Builder) Not(x *Value) *Value {
	return &Value{ty: b.m.Types.Bool, llvm: b.llvm.CreateNot(x.llvm, "")}
}

// --- Casts --------------------------------------------------------

// BoolToInt/IntToFloat/BoolToFloat implement the bool->int->float
// implicit widening chain (spec.md §4.C).
func (b *Builder) BoolToInt(v *Value) *Value {
	return &Value{ty: b.m.Types.Int32, llvm: b.llvm.CreateZExt(v.llvm, b.m.Types.Int32, "")}
}
func (b *Builder) IntToFloat(v *Value) *Value {
	return &Value{ty: b.m.Types.Float32, llvm: b.llvm.CreateSIToFP(v.llvm, b.m.Types.Float32, "")}
}
func (b *Builder) BoolToFloat(v *Value) *Value { return b.IntToFloat(b.BoolToInt(v)) }

// Splat broadcasts a float32 scalar into all four lanes of a <4 x
// float>, the implicit scalar->vector cast (spec.md §4.C).
func (b *Builder) Splat(v *Value) *Value {
	undef := llvm.Undef(b.m.Types.Vec4)
	zero := llvm.ConstInt(b.m.Types.Int32, 0, false)
	inserted := b.llvm.CreateInsertElement(undef, v.llvm, zero, "")
	mask := llvm.ConstNull(llvm.VectorType(b.m.Types.Int32, 4))
	shuffled := b.llvm.CreateShuffleVector(inserted, undef, mask, "")
	return &Value{ty: b.m.Types.Vec4, llvm: shuffled}
}

// ExtractLane reads a single lane (0=x/r, 1=y/g, 2=z/b, 3=w/a) out of
// a <4 x float>, used for swizzle member access (.x, .xyz, ...).
func (b *Builder) ExtractLane(v *Value, lane int) *Value {
	idx := llvm.ConstInt(b.m.Types.Int32, uint64(lane), false)
	return &Value{ty: b.m.Types.Float32, llvm: b.llvm.CreateExtractElement(v.llvm, idx, "")}
}

// InsertLane returns a copy of v with the given lane replaced by
// scalar, used when lowering swizzle-assignment targets.
func (b *Builder) InsertLane(v *Value, lane int, scalar *Value) *Value {
	idx := llvm.ConstInt(b.m.Types.Int32, uint64(lane), false)
	return &Value{ty: v.ty, llvm: b.llvm.CreateInsertElement(v.llvm, scalar.llvm, idx, "")}
}

// BuildVec4 constructs a <4 x float> from four float32 lanes.
func (b *Builder) BuildVec4(x, y, z, w *Value) *Value {
	v := llvm.Undef(b.m.Types.Vec4)
	lanes := []*Value{x, y, z, w}
	for i, lane := range lanes {
		idx := llvm.ConstInt(b.m.Types.Int32, uint64(i), false)
		v = b.llvm.CreateInsertElement(v, lane.llvm, idx, "")
	}
	return &Value{ty: b.m.Types.Vec4, llvm: v}
}
