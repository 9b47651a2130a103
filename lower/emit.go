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

package lower

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"github.com/dbhardwaj1904/firtree/ast"
	"github.com/dbhardwaj1904/firtree/codegen"
	"github.com/dbhardwaj1904/firtree/quark"
	"github.com/dbhardwaj1904/firtree/scope"
	"github.com/dbhardwaj1904/firtree/token"
	"github.com/dbhardwaj1904/firtree/types"
)

// emitter owns the state shared by every function body lowered into
// one module: the prototype table built by the declaration pass, the
// intrinsic builder, and the map from a resolved prototype to its
// already-declared codegen.Function (populated by a predeclare pass
// so that forward and mutually recursive calls within one
// translation unit always find their callee already declared).
type emitter struct {
	log    *Log
	quarks *quark.Table
	mod    *codegen.Module
	protos *types.Set
	intr   *intrinsicBuilder
	funcs  map[*types.Prototype]*codegen.Function
}

// evalue is an expression's value together with its logical type;
// codegen.Value alone only carries the LLVM type, which cannot
// distinguish e.g. vec2 from vec4.
type evalue struct {
	Type types.Type
	V    *codegen.Value
}

func llvmType(mod *codegen.Module, t types.Type) llvm.Type {
	switch t.Specifier {
	case types.Float:
		return mod.Types.Float32
	case types.Int:
		return mod.Types.Int32
	case types.Bool:
		return mod.Types.Bool
	case types.Vec2, types.Vec3, types.Vec4, types.Color:
		return mod.Types.Vec4
	case types.Sampler:
		return mod.Types.Sampler
	default:
		return mod.Types.Void
	}
}

// mangle produces a unique LLVM symbol name for an overload: the
// source name plus each parameter's specifier, so `f(float)` and
// `f(vec2)` never collide in the IR even though they share a kernel-
// language name.
func mangle(p *types.Prototype) string {
	s := p.Name
	for _, prm := range p.Params {
		s += "$" + prm.Type.Specifier.String()
	}
	return s
}

// Every function (kernel or plain) carries one hidden trailing vec4
// parameter beyond its declared, user-visible signature: the current
// pixel coordinate destCoord() reads. It is never part of
// types.Prototype.Params (the kernel-language grammar has no syntax
// for it and the sampler graph's bindable "kernel argument spec"
// never includes it), and it is threaded automatically by emitCall at
// every call site — the kernel-language equivalent of the teacher's
// own convention of threading an implicit context argument through
// every generated call.
func (e *emitter) predeclare(d definition) {
	paramTys := make([]llvm.Type, len(d.proto.Params)+1)
	for i, p := range d.proto.Params {
		pt := llvmType(e.mod, p.Type)
		if p.Direction != types.In {
			pt = llvm.PointerType(pt, 0)
		}
		paramTys[i] = pt
	}
	paramTys[len(d.proto.Params)] = e.mod.Types.Vec4
	retTy := llvmType(e.mod, d.proto.Return)
	name := mangle(d.proto)
	var fn *codegen.Function
	if d.proto.Qualifier == types.Kernel {
		fn = e.mod.Function(name, retTy, paramTys...)
	} else {
		fn = e.mod.InternalFunction(name, retTy, paramTys...)
	}
	e.funcs[d.proto] = fn
}

// emitFunction lowers one already-predeclared definition's body,
// returning a Record when it is a kernel. Plain ("function"-qualified)
// definitions are still fully lowered — the kernel relies on their IR
// being present to call — but produce no Record of their own.
func (e *emitter) emitFunction(d definition) (Record, bool) {
	fn := e.funcs[d.proto]
	ok := true

	fn.Build(func(b *codegen.Builder) {
		sc := scope.New()
		sc.Push()
		for i, p := range d.proto.Params {
			var storage *codegen.Value
			initialised := true
			if p.Direction == types.In {
				storage = b.Alloca(llvmType(e.mod, p.Type), p.Name)
				b.Store(fn.Param(i), storage)
			} else {
				storage = fn.Param(i) // already a pointer into the caller's storage
				initialised = p.Direction == types.Inout
			}
			_ = sc.Declare(&scope.Symbol{Name: p.Name, Type: p.Type, Storage: storage, Initialised: initialised})
		}

		fc := &funcCtx{e: e, b: b, sc: sc, ret: d.proto.Return, coord: fn.Param(len(d.proto.Params))}
		terminated := fc.emitBlock(d.decl.Body)
		if !terminated {
			if d.proto.Return == types.VoidT {
				b.Ret(nil)
			} else {
				e.log.Errorf(KindControlFlow, d.decl.Pos(), "function %q falls off the end without returning a value", d.proto.Name)
				ok = false
				b.Ret(fc.zeroValue(d.proto.Return))
			}
		}

		for _, p := range d.proto.Params {
			if p.Direction == types.In {
				continue
			}
			if !definitelyAssigns(d.decl.Body.Stmts, p.Name) {
				e.log.Errorf(KindControlFlow, d.decl.Pos(), "%s parameter %q is not assigned on every path", p.Direction, p.Name)
				ok = false
			}
		}
	})

	if !ok || d.proto.Qualifier != types.Kernel {
		return Record{}, false
	}

	args := make([]Arg, len(d.proto.Params))
	for i, p := range d.proto.Params {
		args[i] = Arg{Name: p.Name, Quark: e.quarks.Intern(p.Name), Type: p.Type, IsStatic: p.Type.Qualifier == types.Static}
	}
	return Record{Name: d.proto.Name, Return: d.proto.Return, Args: args, Entry: fn}, true
}

// funcCtx is the per-function emission state: the scope stack, the
// active builder/return type, and the hidden current-coordinate value
// destCoord() reads (see predeclare).
type funcCtx struct {
	e     *emitter
	b     *codegen.Builder
	sc    *scope.Table
	ret   types.Type
	coord *codegen.Value
}

func (fc *funcCtx) zeroValue(t types.Type) *codegen.Value {
	switch t.Specifier {
	case types.Bool:
		return fc.e.mod.ConstBool(false)
	case types.Int:
		return fc.e.mod.ConstInt(0)
	case types.Float:
		return fc.e.mod.ConstFloat(0)
	default:
		return fc.e.mod.TransparentPixel()
	}
}

// emitBlock opens a new scope frame, emits every statement in order,
// and reports whether the block is guaranteed to have returned on
// every path out of it.
func (fc *funcCtx) emitBlock(blk *ast.Block) bool {
	fc.sc.Push()
	defer fc.sc.Pop()
	return fc.emitStmts(blk.Stmts)
}

func (fc *funcCtx) emitStmts(stmts []ast.Node) bool {
	for _, s := range stmts {
		if fc.emitStmt(s) {
			return true
		}
	}
	return false
}

func (fc *funcCtx) emitStmt(n ast.Node) bool {
	switch s := n.(type) {
	case *ast.DeclStmt:
		fc.emitDecl(s)
		return false

	case *ast.ExprStmt:
		fc.emitExpr(s.Expr)
		return false

	case *ast.ReturnStmt:
		if s.Value == nil {
			fc.b.Ret(nil)
			return true
		}
		v := fc.emitExpr(s.Value)
		v = fc.cast(v, fc.ret, s.Pos())
		fc.b.Ret(v.V)
		return true

	case *ast.IfStmt:
		return fc.emitIf(s)

	case *ast.WhileStmt:
		fc.emitWhile(s)
		return false

	case *ast.ForStmt:
		fc.emitFor(s)
		return false

	case *ast.Block:
		return fc.emitBlock(s)

	default:
		return false
	}
}

func (fc *funcCtx) emitDecl(s *ast.DeclStmt) {
	ty, err := convertTypeExpr(s.Type)
	if err != nil {
		fc.e.log.Errorf(KindTypeMismatch, s.Pos(), "%s", err)
		return
	}
	storage := fc.b.Alloca(llvmType(fc.e.mod, ty), s.Name)
	initialised := false
	if s.Init != nil {
		v := fc.emitExpr(s.Init)
		v = fc.cast(v, ty, s.Pos())
		fc.b.Store(v.V, storage)
		initialised = true
	}
	if err := fc.sc.Declare(&scope.Symbol{Name: s.Name, Type: ty, Storage: storage, Initialised: initialised}); err != nil {
		fc.e.log.Errorf(KindDecl, s.Pos(), "%s", err)
	}
}

func (fc *funcCtx) emitIf(s *ast.IfStmt) bool {
	cond := fc.emitExpr(s.Cond)
	if cond.Type.Unqualified() != types.BoolT {
		fc.e.log.Errorf(KindTypeMismatch, s.Cond.Pos(), "if condition must be bool, got %s", cond.Type)
	}

	thenBlk := fc.b.NewBlock("if_then")
	mergeBlk := fc.b.NewBlock("if_merge")
	elseBlk := mergeBlk
	hasElse := s.Else != nil
	if hasElse {
		elseBlk = fc.b.NewBlock("if_else")
	}
	fc.b.CondBr(cond.V, thenBlk, elseBlk)

	fc.b.SetInsertPoint(thenBlk)
	thenTerm := fc.emitBlock(s.Then)
	if !thenTerm {
		fc.b.Br(mergeBlk)
	}

	elseTerm := false
	if hasElse {
		fc.b.SetInsertPoint(elseBlk)
		elseTerm = fc.emitBlock(s.Else)
		if !elseTerm {
			fc.b.Br(mergeBlk)
		}
	}

	fc.b.SetInsertPoint(mergeBlk)
	return thenTerm && elseTerm
}

func (fc *funcCtx) emitWhile(s *ast.WhileStmt) {
	condBlk := fc.b.NewBlock("while_cond")
	bodyBlk := fc.b.NewBlock("while_body")
	afterBlk := fc.b.NewBlock("while_after")

	fc.b.Br(condBlk)
	fc.b.SetInsertPoint(condBlk)
	cond := fc.emitExpr(s.Cond)
	if cond.Type.Unqualified() != types.BoolT {
		fc.e.log.Errorf(KindTypeMismatch, s.Cond.Pos(), "while condition must be bool, got %s", cond.Type)
	}
	fc.b.CondBr(cond.V, bodyBlk, afterBlk)

	fc.b.SetInsertPoint(bodyBlk)
	if !fc.emitBlock(s.Body) {
		fc.b.Br(condBlk)
	}

	fc.b.SetInsertPoint(afterBlk)
}

func (fc *funcCtx) emitFor(s *ast.ForStmt) {
	fc.sc.Push()
	defer fc.sc.Pop()

	if s.Init != nil {
		fc.emitStmt(s.Init)
	}

	condBlk := fc.b.NewBlock("for_cond")
	bodyBlk := fc.b.NewBlock("for_body")
	postBlk := fc.b.NewBlock("for_post")
	afterBlk := fc.b.NewBlock("for_after")

	fc.b.Br(condBlk)
	fc.b.SetInsertPoint(condBlk)
	if s.Cond != nil {
		cond := fc.emitExpr(s.Cond)
		if cond.Type.Unqualified() != types.BoolT {
			fc.e.log.Errorf(KindTypeMismatch, s.Cond.Pos(), "for condition must be bool, got %s", cond.Type)
		}
		fc.b.CondBr(cond.V, bodyBlk, afterBlk)
	} else {
		fc.b.Br(bodyBlk)
	}

	fc.b.SetInsertPoint(bodyBlk)
	if !fc.emitBlock(s.Body) {
		fc.b.Br(postBlk)
	}

	fc.b.SetInsertPoint(postBlk)
	if s.Post != nil {
		fc.emitExpr(s.Post)
	}
	fc.b.Br(condBlk)

	fc.b.SetInsertPoint(afterBlk)
}

// --- Expressions -------------------------------------------------

func (fc *funcCtx) emitExpr(n ast.Node) evalue {
	switch e := n.(type) {
	case *ast.IntLit:
		return evalue{Type: types.IntT, V: fc.e.mod.ConstInt(e.Value)}
	case *ast.FloatLit:
		return evalue{Type: types.FloatT, V: fc.e.mod.ConstFloat(e.Value)}
	case *ast.BoolLit:
		return evalue{Type: types.BoolT, V: fc.e.mod.ConstBool(e.Value)}
	case *ast.Ident:
		sym, ok := fc.sc.Lookup(e.Name)
		if !ok {
			fc.e.log.Errorf(KindUndefined, e.Pos(), "undefined symbol %q", e.Name)
			return evalue{Type: types.FloatT, V: fc.e.mod.ConstFloat(0)}
		}
		ty := sym.Type.(types.Type)
		ptr := sym.Storage.(*codegen.Value)
		// A loaded value has its unqualified type: const and static
		// qualify the variable's storage, not the value read from it.
		return evalue{Type: ty.Unqualified(), V: fc.b.Load(ptr, llvmType(fc.e.mod, ty), e.Name)}
	case *ast.UnaryOp:
		return fc.emitUnary(e)
	case *ast.BinaryOp:
		return fc.emitBinary(e)
	case *ast.CallExpr:
		return fc.emitCall(e)
	case *ast.MemberExpr:
		return fc.emitSwizzleRead(e.Target, e.Member, e.Pos())
	case *ast.IndexExpr:
		return fc.emitIndexRead(e)
	default:
		fc.e.log.Errorf(KindTypeMismatch, n.Pos(), "unsupported expression")
		return evalue{Type: types.FloatT, V: fc.e.mod.ConstFloat(0)}
	}
}

var laneNames = map[byte]int{'x': 0, 'y': 1, 'z': 2, 'w': 3, 'r': 0, 'g': 1, 'b': 2, 'a': 3}

func (fc *funcCtx) emitSwizzleRead(target ast.Node, member string, pos token.Pos) evalue {
	v := fc.emitExpr(target)
	if !v.Type.IsVector() {
		fc.e.log.Errorf(KindTypeMismatch, pos, "%q is not a vector type, has no member %q", v.Type, member)
		return evalue{Type: types.FloatT, V: fc.e.mod.ConstFloat(0)}
	}
	if len(member) == 1 {
		lane, ok := laneNames[member[0]]
		if !ok || lane >= v.Type.Arity() {
			fc.e.log.Errorf(KindTypeMismatch, pos, "invalid swizzle component %q on %s", member, v.Type)
			return evalue{Type: types.FloatT, V: fc.e.mod.ConstFloat(0)}
		}
		return evalue{Type: types.FloatT, V: fc.b.ExtractLane(v.V, lane)}
	}

	lanes := make([]*codegen.Value, 4)
	for i := 0; i < 4; i++ {
		lanes[i] = fc.e.mod.ConstFloat(0)
	}
	for i := 0; i < len(member) && i < 4; i++ {
		lane, ok := laneNames[member[i]]
		if !ok || lane >= v.Type.Arity() {
			fc.e.log.Errorf(KindTypeMismatch, pos, "invalid swizzle component %q on %s", member, v.Type)
			return evalue{Type: types.FloatT, V: fc.e.mod.ConstFloat(0)}
		}
		lanes[i] = fc.b.ExtractLane(v.V, lane)
	}
	resultTy := arityType(len(member))
	return evalue{Type: resultTy, V: fc.b.BuildVec4(lanes[0], lanes[1], lanes[2], lanes[3])}
}

func arityType(n int) types.Type {
	switch n {
	case 2:
		return types.Vec2T
	case 3:
		return types.Vec3T
	default:
		return types.Vec4T
	}
}

func (fc *funcCtx) emitIndexRead(e *ast.IndexExpr) evalue {
	v := fc.emitExpr(e.Target)
	idx, ok := e.Index.(*ast.IntLit)
	if !ok || !v.Type.IsVector() || idx.Value < 0 || int(idx.Value) >= v.Type.Arity() {
		fc.e.log.Errorf(KindTypeMismatch, e.Pos(), "invalid index into %s", v.Type)
		return evalue{Type: types.FloatT, V: fc.e.mod.ConstFloat(0)}
	}
	return evalue{Type: types.FloatT, V: fc.b.ExtractLane(v.V, int(idx.Value))}
}

func (fc *funcCtx) emitUnary(e *ast.UnaryOp) evalue {
	switch e.Op {
	case "-":
		v := fc.emitExpr(e.Operand)
		minusOne := fc.minusOneLike(v.Type)
		if v.Type.Specifier == types.Int {
			return evalue{Type: v.Type.Unqualified(), V: fc.b.Mul(v.V, minusOne)}
		}
		return evalue{Type: v.Type.Unqualified(), V: fc.b.FMul(v.V, minusOne)}
	case "!":
		v := fc.emitExpr(e.Operand)
		if v.Type.Unqualified() != types.BoolT {
			fc.e.log.Errorf(KindTypeMismatch, e.Pos(), "operator ! requires bool, got %s", v.Type)
		}
		return evalue{Type: types.BoolT, V: fc.b.Not(v.V)}
	case "++", "--":
		base := "+"
		if e.Op == "--" {
			base = "-"
		}
		one := &ast.IntLit{Base: ast.New(e.Pos()), Value: 1}
		return fc.emitAssign(e.Operand, one, base, e.Pos())
	default:
		fc.e.log.Errorf(KindTypeMismatch, e.Pos(), "unsupported unary operator %q", e.Op)
		return fc.emitExpr(e.Operand)
	}
}

func (fc *funcCtx) minusOneLike(t types.Type) *codegen.Value {
	if t.Specifier == types.Int {
		return fc.e.mod.ConstInt(-1)
	}
	m := fc.e.mod.ConstFloat(-1)
	if t.IsVector() {
		return fc.b.Splat(m)
	}
	return m
}

var compoundBase = map[string]string{"+=": "+", "-=": "-", "*=": "*", "/=": "/"}

func (fc *funcCtx) emitBinary(e *ast.BinaryOp) evalue {
	switch {
	case e.Op == "=":
		return fc.emitAssign(e.LHS, e.RHS, "", e.Pos())
	case compoundBase[e.Op] != "":
		return fc.emitAssign(e.LHS, e.RHS, compoundBase[e.Op], e.Pos())
	case e.Op == "&&" || e.Op == "||":
		l, r := fc.emitExpr(e.LHS), fc.emitExpr(e.RHS)
		if l.Type.Unqualified() != types.BoolT || r.Type.Unqualified() != types.BoolT {
			fc.e.log.Errorf(KindTypeMismatch, e.Pos(), "operator %q requires bool operands", e.Op)
		}
		if e.Op == "&&" {
			return evalue{Type: types.BoolT, V: fc.b.And(l.V, r.V)}
		}
		return evalue{Type: types.BoolT, V: fc.b.Or(l.V, r.V)}
	case e.Op == "==" || e.Op == "!=" || e.Op == "<" || e.Op == "<=" || e.Op == ">" || e.Op == ">=":
		return fc.emitCompare(e)
	default:
		l, r := fc.emitExpr(e.LHS), fc.emitExpr(e.RHS)
		return fc.emitArith(e.Op, l, r, e.Pos())
	}
}

// emitAssign lowers «lhs = rhs» and its compound-assignment forms.
// Only a plain variable or a single-lane swizzle of one (spec.md
// §4.B: `p.x = ...`) is an assignable l-value.
func (fc *funcCtx) emitAssign(lhs, rhs ast.Node, compoundOp string, pos token.Pos) evalue {
	switch lv := lhs.(type) {
	case *ast.Ident:
		ptr, ty, err := fc.emitLValue(lv)
		if err != nil {
			fc.e.log.Errorf(KindMutability, pos, "%s", err)
			return fc.emitExpr(rhs)
		}
		rv := fc.emitExpr(rhs)
		var newVal evalue
		if compoundOp == "" {
			newVal = fc.cast(rv, ty, pos)
		} else {
			cur := evalue{Type: ty, V: fc.b.Load(ptr, llvmType(fc.e.mod, ty), "")}
			newVal = fc.cast(fc.emitArith(compoundOp, cur, rv, pos), ty, pos)
		}
		fc.b.Store(newVal.V, ptr)
		if sym, ok := fc.sc.Lookup(lv.Name); ok {
			sym.Initialised = true
		}
		return newVal

	case *ast.MemberExpr:
		if len(lv.Member) != 1 {
			fc.e.log.Errorf(KindMutability, pos, "cannot assign to multi-component swizzle %q", lv.Member)
			return fc.emitExpr(rhs)
		}
		basePtr, baseTy, err := fc.emitLValue(lv.Target)
		if err != nil {
			fc.e.log.Errorf(KindMutability, pos, "%s", err)
			return fc.emitExpr(rhs)
		}
		lane, ok := laneNames[lv.Member[0]]
		if !ok || lane >= baseTy.Arity() {
			fc.e.log.Errorf(KindMutability, pos, "invalid swizzle component %q", lv.Member)
			return fc.emitExpr(rhs)
		}
		cur := fc.b.Load(basePtr, llvmType(fc.e.mod, baseTy), "")
		rv := fc.emitExpr(rhs)
		var newLane evalue
		if compoundOp == "" {
			newLane = fc.cast(rv, types.FloatT, pos)
		} else {
			curLane := evalue{Type: types.FloatT, V: fc.b.ExtractLane(cur, lane)}
			newLane = fc.cast(fc.emitArith(compoundOp, curLane, rv, pos), types.FloatT, pos)
		}
		updated := fc.b.InsertLane(cur, lane, newLane.V)
		fc.b.Store(updated, basePtr)
		return newLane

	default:
		fc.e.log.Errorf(KindMutability, pos, "expression is not assignable")
		return fc.emitExpr(rhs)
	}
}

// emitLValue resolves a plain variable reference to its mutable
// storage pointer: the only l-value form shared by simple assignment
// and out/inout call-argument passing (spec.md §4.B).
func (fc *funcCtx) emitLValue(n ast.Node) (*codegen.Value, types.Type, error) {
	id, ok := n.(*ast.Ident)
	if !ok {
		return nil, types.Type{}, fmt.Errorf("expression is not assignable")
	}
	sym, ok := fc.sc.Lookup(id.Name)
	if !ok {
		return nil, types.Type{}, fmt.Errorf("undefined symbol %q", id.Name)
	}
	ty := sym.Type.(types.Type)
	if ty.Qualifier == types.Const {
		return nil, types.Type{}, fmt.Errorf("cannot assign to const variable %q", id.Name)
	}
	return sym.Storage.(*codegen.Value), ty, nil
}

func (fc *funcCtx) emitCompare(e *ast.BinaryOp) evalue {
	l, r := fc.emitExpr(e.LHS), fc.emitExpr(e.RHS)
	if l.Type.IsVector() || r.Type.IsVector() {
		fc.e.log.Errorf(KindTypeMismatch, e.Pos(), "operator %q requires scalar operands", e.Op)
	}
	common, err := unifyBinaryTypes(l.Type, r.Type)
	if err != nil {
		fc.e.log.Errorf(KindTypeMismatch, e.Pos(), "%s", err)
		return evalue{Type: types.BoolT, V: fc.e.mod.ConstBool(false)}
	}
	lc, rc := fc.cast(l, common, e.Pos()), fc.cast(r, common, e.Pos())

	if common.Specifier == types.Int || common.Specifier == types.Bool {
		pred, ok := intPredicates[e.Op]
		if !ok {
			fc.e.log.Errorf(KindTypeMismatch, e.Pos(), "operator %q not valid on %s", e.Op, common)
			return evalue{Type: types.BoolT, V: fc.e.mod.ConstBool(false)}
		}
		return evalue{Type: types.BoolT, V: fc.b.ICmp(pred, lc.V, rc.V)}
	}
	pred := floatPredicates[e.Op]
	return evalue{Type: types.BoolT, V: fc.b.FCmp(pred, lc.V, rc.V)}
}

var intPredicates = map[string]llvm.IntPredicate{
	"==": llvm.IntEQ, "!=": llvm.IntNE,
	"<": llvm.IntSLT, "<=": llvm.IntSLE,
	">": llvm.IntSGT, ">=": llvm.IntSGE,
}

var floatPredicates = map[string]llvm.FloatPredicate{
	"==": llvm.FloatOEQ, "!=": llvm.FloatONE,
	"<": llvm.FloatOLT, "<=": llvm.FloatOLE,
	">": llvm.FloatOGT, ">=": llvm.FloatOGE,
}

func (fc *funcCtx) emitArith(op string, l, r evalue, pos token.Pos) evalue {
	common, err := unifyBinaryTypes(l.Type, r.Type)
	if err != nil {
		fc.e.log.Errorf(KindTypeMismatch, pos, "%s", err)
		return l
	}
	lc, rc := fc.cast(l, common, pos), fc.cast(r, common, pos)

	if common.Specifier == types.Int {
		switch op {
		case "+":
			return evalue{Type: common, V: fc.b.Add(lc.V, rc.V)}
		case "-":
			return evalue{Type: common, V: fc.b.Sub(lc.V, rc.V)}
		case "*":
			return evalue{Type: common, V: fc.b.Mul(lc.V, rc.V)}
		case "/":
			return evalue{Type: common, V: fc.b.SDiv(lc.V, rc.V)}
		case "%":
			return evalue{Type: common, V: fc.b.SRem(lc.V, rc.V)}
		}
	}
	switch op {
	case "+":
		return evalue{Type: common, V: fc.b.FAdd(lc.V, rc.V)}
	case "-":
		return evalue{Type: common, V: fc.b.FSub(lc.V, rc.V)}
	case "*":
		return evalue{Type: common, V: fc.b.FMul(lc.V, rc.V)}
	case "/":
		return evalue{Type: common, V: fc.b.FDiv(lc.V, rc.V)}
	}
	fc.e.log.Errorf(KindTypeMismatch, pos, "operator %q not valid on %s", op, common)
	return lc
}

// cast implements the implicit-cast rules of spec.md §4.C, logging a
// type-mismatch diagnostic when none applies.
func (fc *funcCtx) cast(v evalue, to types.Type, pos token.Pos) evalue {
	kind, ok := types.ImplicitCast(v.Type, to)
	if !ok {
		fc.e.log.Errorf(KindTypeMismatch, pos, "cannot convert %s to %s", v.Type, to)
		return evalue{Type: to, V: v.V}
	}
	switch kind {
	case types.CastNone, types.CastConstDrop:
		return evalue{Type: to, V: v.V}
	case types.CastWiden:
		return evalue{Type: to, V: fc.widenScalar(v.V, v.Type.Unqualified().Specifier, to.Unqualified().Specifier)}
	case types.CastSplat:
		return evalue{Type: to, V: fc.b.Splat(v.V)}
	case types.CastWidenSplat:
		widened := fc.widenScalar(v.V, v.Type.Unqualified().Specifier, types.Float)
		return evalue{Type: to, V: fc.b.Splat(widened)}
	default:
		return evalue{Type: to, V: v.V}
	}
}

func (fc *funcCtx) widenScalar(v *codegen.Value, from, to types.Specifier) *codegen.Value {
	switch {
	case from == types.Bool && to == types.Int:
		return fc.b.BoolToInt(v)
	case from == types.Bool && to == types.Float:
		return fc.b.BoolToFloat(v)
	case from == types.Int && to == types.Float:
		return fc.b.IntToFloat(v)
	default:
		return v
	}
}

func unifyBinaryTypes(l, r types.Type) (types.Type, error) {
	lu, ru := l.Unqualified(), r.Unqualified()
	if lu == ru {
		return lu, nil
	}
	if _, ok := types.ImplicitCast(l, ru); ok {
		return ru, nil
	}
	if _, ok := types.ImplicitCast(r, lu); ok {
		return lu, nil
	}
	return types.Type{}, fmt.Errorf("no common type between %s and %s", l, r)
}

// --- Calls ---------------------------------------------------------

var ctorTypes = map[string]types.Type{"vec2": types.Vec2T, "vec3": types.Vec3T, "vec4": types.Vec4T, "color": types.ColorT}

func (fc *funcCtx) emitCall(e *ast.CallExpr) evalue {
	if target, ok := ctorTypes[e.Callee]; ok {
		return fc.emitConstructor(target, e)
	}

	// destCoord()/samplerCoord(sampler) are sugar over the hidden
	// per-function coordinate (see predeclare) and the samplerTransform
	// intrinsic; they are resolved here directly rather than through
	// the prototype table because they need fc's per-function state,
	// not just the module-level intrinsic builder.
	switch e.Callee {
	case "destCoord":
		if len(e.Args) != 0 {
			fc.e.log.Errorf(KindOverload, e.Pos(), "destCoord takes no arguments")
		}
		return evalue{Type: types.Vec2T, V: fc.coord}
	case "samplerCoord":
		if len(e.Args) != 1 {
			fc.e.log.Errorf(KindOverload, e.Pos(), "samplerCoord takes exactly one argument")
			return evalue{Type: types.Vec2T, V: fc.e.mod.TransparentPixel()}
		}
		arg := fc.cast(fc.emitExpr(e.Args[0]), types.SamplerT, e.Pos())
		v := fc.e.intr.emitSamplerCall(fc.b, nameSamplerTransform, []*codegen.Value{arg.V, fc.coord})
		return evalue{Type: types.Vec2T, V: v}
	}

	argEvals := make([]evalue, len(e.Args))
	for i, a := range e.Args {
		argEvals[i] = fc.emitExpr(a)
	}
	argTypes := make([]types.Type, len(argEvals))
	for i := range argEvals {
		argTypes[i] = argEvals[i].Type
	}

	proto, err := fc.e.protos.Resolve(e.Callee, argTypes)
	if err != nil {
		fc.e.log.Errorf(KindOverload, e.Pos(), "%s", err)
		return evalue{Type: types.FloatT, V: fc.e.mod.ConstFloat(0)}
	}

	callArgs := make([]*codegen.Value, len(proto.Params))
	for i, prm := range proto.Params {
		if prm.Direction != types.In {
			ptr, _, err := fc.emitLValue(e.Args[i])
			if err != nil {
				fc.e.log.Errorf(KindMutability, e.Args[i].Pos(), "%s", err)
				ptr = fc.b.Alloca(llvmType(fc.e.mod, prm.Type), "")
			}
			callArgs[i] = ptr
		} else {
			callArgs[i] = fc.cast(argEvals[i], prm.Type, e.Pos()).V
		}
	}

	if proto.Qualifier == types.Intrinsic {
		if IsSamplerIntrinsic(proto.Name) {
			return evalue{Type: proto.Return, V: fc.e.intr.emitSamplerCall(fc.b, proto.Name, callArgs)}
		}
		return evalue{Type: proto.Return, V: fc.e.intr.emitMath(fc.b, proto.Name, proto.Params[0].Type, callArgs)}
	}

	if !proto.HasBody {
		fc.e.log.Errorf(KindUndefined, e.Pos(), "%q is declared but never defined", e.Callee)
		return evalue{Type: proto.Return, V: fc.zeroValue(proto.Return)}
	}
	fn, ok := fc.e.funcs[proto]
	if !ok {
		fc.e.log.Errorf(KindUndefined, e.Pos(), "%q is declared but never defined", e.Callee)
		return evalue{Type: proto.Return, V: fc.zeroValue(proto.Return)}
	}
	callArgs = append(callArgs, fc.coord) // hidden current-coordinate argument, see predeclare
	return evalue{Type: proto.Return, V: fc.b.Call(fn, callArgs, "")}
}

func (fc *funcCtx) emitConstructor(target types.Type, e *ast.CallExpr) evalue {
	arity := target.Arity()
	if len(e.Args) == 1 {
		v := fc.emitExpr(e.Args[0])
		v = fc.cast(v, types.FloatT, e.Pos())
		return evalue{Type: target, V: fc.b.Splat(v.V)}
	}
	if len(e.Args) != arity {
		fc.e.log.Errorf(KindOverload, e.Pos(), "%s constructor takes 1 or %d arguments, got %d", target, arity, len(e.Args))
		return evalue{Type: target, V: fc.e.mod.TransparentPixel()}
	}
	lanes := make([]*codegen.Value, 4)
	for i := range lanes {
		lanes[i] = fc.e.mod.ConstFloat(0)
	}
	for i, a := range e.Args {
		v := fc.emitExpr(a)
		v = fc.cast(v, types.FloatT, e.Pos())
		lanes[i] = v.V
	}
	return evalue{Type: target, V: fc.b.BuildVec4(lanes[0], lanes[1], lanes[2], lanes[3])}
}

// --- Definite assignment -------------------------------------------

// definitelyAssigns conservatively reports whether every control path
// through stmts assigns to the variable name before falling off the
// end or returning (spec.md §7, the out/inout-parameter control-flow
// error). Loop bodies never count, since they may run zero times.
func definitelyAssigns(stmts []ast.Node, name string) bool {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.ExprStmt:
			if assignsTo(st.Expr, name) {
				return true
			}
		case *ast.IfStmt:
			if st.Else != nil && definitelyAssigns(st.Then.Stmts, name) && definitelyAssigns(st.Else.Stmts, name) {
				return true
			}
		case *ast.Block:
			if definitelyAssigns(st.Stmts, name) {
				return true
			}
		case *ast.ReturnStmt:
			return false // unreachable beyond this point; never assigned on this path
		}
	}
	return false
}

func assignsTo(n ast.Node, name string) bool {
	b, ok := n.(*ast.BinaryOp)
	if !ok {
		return false
	}
	if b.Op != "=" && compoundBase[b.Op] == "" {
		return false
	}
	id, ok := b.LHS.(*ast.Ident)
	return ok && id.Name == name
}
