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

// Package lower implements the front-end's two-pass lowering from a
// parsed translation unit to an LLVM IR module (spec.md §4.C): a
// declaration pass that registers every prototype (so forward and
// mutually-recursive calls resolve regardless of source order), and a
// per-function emitter pass that walks each body statement by
// statement. This mirrors the teacher's own two-pass resolver/emitter
// split (gapil's resolver.go followed by its codegen backend).
package lower

import (
	"github.com/dbhardwaj1904/firtree/ast"
	"github.com/dbhardwaj1904/firtree/codegen"
	"github.com/dbhardwaj1904/firtree/parser"
	"github.com/dbhardwaj1904/firtree/quark"
	"github.com/dbhardwaj1904/firtree/types"
)

// Arg is one kernel function's externally visible parameter: name,
// interned quark (used by the sampler graph to key bound argument
// values), logical type, and whether it carries the static qualifier
// (spec.md §3: a static kernel argument's value is inlined as an IR
// constant at specialise time rather than passed at call time).
type Arg struct {
	Name     string
	Quark    quark.Quark
	Type     types.Type
	IsStatic bool
}

// Record is one compiled kernel's signature plus its IR entry point,
// the unit package kernel re-exports as kernel.Record. Plain
// ("function"-qualified) definitions produce no Record.
type Record struct {
	Name   string
	Return types.Type
	Args   []Arg
	Entry  *codegen.Function
}

// Compile parses src and lowers every kernel and function declaration
// it contains into mod. It always returns every Record it managed to
// fully emit, even when later declarations fail, so that callers can
// still enumerate and use the kernels that did compile (spec.md
// scenario S5, "undefined symbol recovery").
func Compile(quarks *quark.Table, src string) (*codegen.Module, []Record, *Log, bool) {
	log := &Log{}

	unit, perrs := parser.Parse(src)
	for _, e := range perrs {
		log.Errorf(KindSyntax, e.Pos, "%s", e.Message)
	}
	if unit == nil {
		return nil, nil, log, false
	}

	mod := codegen.NewModule("kernel")
	protos := types.NewSet()
	ib := newIntrinsicBuilder(mod, quarks)
	ib.registerAll(protos)

	defs := declarePass(unit, protos, log)

	e := &emitter{
		log:    log,
		quarks: quarks,
		mod:    mod,
		protos: protos,
		intr:   ib,
		funcs:  map[*types.Prototype]*codegen.Function{},
	}
	for _, d := range defs {
		e.predeclare(d)
	}
	var records []Record
	for _, d := range defs {
		if r, ok := e.emitFunction(d); ok {
			records = append(records, r)
		}
	}

	return mod, records, log, !log.HasErrors()
}

// definition pairs a parsed function body with the prototype it was
// attached to during the declaration pass.
type definition struct {
	decl  *ast.FunctionDecl
	proto *types.Prototype
}

// declarePass registers every external declaration's prototype,
// attaching bodies to any earlier forward declaration of the same
// signature, and returns the definitions (decls with bodies) in
// source order for the emitter pass.
func declarePass(unit *ast.TranslationUnit, protos *types.Set, log *Log) []definition {
	var defs []definition
	for _, node := range unit.Decls {
		switch d := node.(type) {
		case *ast.Prototype:
			proto, err := convertPrototype(d.Qualifier, d.ReturnType, d.Name, d.Params, false)
			if err != nil {
				log.Errorf(KindTypeMismatch, d.Pos(), "%s", err)
				continue
			}
			if _, err := declareOrAttach(protos, proto); err != nil {
				log.Errorf(KindDecl, d.Pos(), "%s", err)
			}

		case *ast.FunctionDecl:
			proto, err := convertPrototype(d.Qualifier, d.ReturnType, d.Name, d.Params, true)
			if err != nil {
				log.Errorf(KindTypeMismatch, d.Pos(), "%s", err)
				continue
			}
			attached, err := declareOrAttach(protos, proto)
			if err != nil {
				log.Errorf(KindDecl, d.Pos(), "%s", err)
				continue
			}
			defs = append(defs, definition{decl: d, proto: attached})
		}
	}
	return defs
}

// declareOrAttach registers proto in protos, unless an existing
// conflicting (same name/arity/param-types) prototype is found, in
// which case it is treated as this declaration's forward declaration:
// bodies attach to it rather than producing a duplicate-declaration
// error. Two bodies for the same signature is still an error.
func declareOrAttach(protos *types.Set, proto *types.Prototype) (*types.Prototype, error) {
	for _, existing := range protos.Candidates(proto.Name) {
		if existing.Conflicts(proto) {
			if existing.HasBody && proto.HasBody {
				return nil, &types.DeclError{Message: "duplicate definition of " + proto.String()}
			}
			if proto.HasBody {
				existing.HasBody = true
			}
			return existing, nil
		}
	}
	if err := protos.Declare(proto); err != nil {
		return nil, err
	}
	return proto, nil
}

func convertPrototype(q ast.FuncQualifier, ret *ast.TypeExpr, name string, params []*ast.Param, hasBody bool) (*types.Prototype, error) {
	retTy, err := convertTypeExpr(ret)
	if err != nil {
		return nil, err
	}
	fq := types.Function
	if q == ast.QualKernel {
		fq = types.Kernel
	}
	ps := make([]types.Parameter, len(params))
	for i, p := range params {
		pty, err := convertTypeExpr(p.Type)
		if err != nil {
			return nil, err
		}
		ps[i] = types.Parameter{Type: pty, Name: p.Name, Direction: convertDirection(p.Direction)}
	}
	return &types.Prototype{Name: name, Qualifier: fq, Return: retTy, Params: ps, HasBody: hasBody}, nil
}

func convertDirection(d ast.ParamDirection) types.Direction {
	switch d {
	case ast.DirOut:
		return types.Out
	case ast.DirInout:
		return types.Inout
	default:
		return types.In
	}
}

var specifierNames = map[string]types.Specifier{
	"float":   types.Float,
	"int":     types.Int,
	"bool":    types.Bool,
	"vec2":    types.Vec2,
	"vec3":    types.Vec3,
	"vec4":    types.Vec4,
	"color":   types.Color,
	"sampler": types.Sampler,
	"void":    types.Void,
}

func convertTypeExpr(te *ast.TypeExpr) (types.Type, error) {
	spec, ok := specifierNames[te.Specifier]
	if !ok {
		return types.Type{}, &types.DeclError{Message: "unknown type " + te.Specifier}
	}
	q := types.None
	switch te.Qualifier {
	case ast.QualConst:
		q = types.Const
	case ast.QualStatic:
		q = types.Static
	}
	return types.Type{Qualifier: q, Specifier: spec}, nil
}
