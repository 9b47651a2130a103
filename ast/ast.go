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

// Package ast defines the concrete parse tree produced by package
// parser. Nodes carry only syntax: no types are resolved and no
// symbols are bound here, that is package lower's job.
package ast

import "github.com/dbhardwaj1904/firtree/token"

// Node is implemented by every parse-tree node.
type Node interface {
	isNode()
	Pos() token.Pos
}

// Base is embedded by every concrete node type to supply Pos() and
// satisfy the private half of the Node interface.
type Base struct{ At token.Pos }

func (Base) isNode()          {}
func (n Base) Pos() token.Pos { return n.At }

// New constructs the embeddable Base for a given position; parser
// code writes e.g. &Ident{Base: New(pos), Name: "x"}.
func New(pos token.Pos) Base { return Base{At: pos} }

// TranslationUnit is the root of a parsed source file: an ordered
// sequence of external declarations.
type TranslationUnit struct {
	Base
	Decls []Node // *Prototype or *FunctionDecl
}

// TypeQualifier is the "const"/"static" prefix on a type.
type TypeQualifier int

const (
	QualNone TypeQualifier = iota
	QualConst
	QualStatic
)

// TypeExpr names a type as written in source: an optional qualifier
// plus a specifier identifier ("float", "vec4", "sampler", ...).
type TypeExpr struct {
	Base
	Qualifier TypeQualifier
	Specifier string
}

// ParamDirection is the in/out/inout qualifier on a parameter.
type ParamDirection int

const (
	DirIn ParamDirection = iota
	DirOut
	DirInout
)

// FuncQualifier distinguishes "kernel" from "function" declarations.
type FuncQualifier int

const (
	QualFunction FuncQualifier = iota
	QualKernel
)

// Param is a single function parameter declaration.
type Param struct {
	Base
	Direction ParamDirection
	Type      *TypeExpr
	Name      string
}

// Prototype is a function declaration with no body: «kernel|function
// ReturnType name(params);».
type Prototype struct {
	Base
	Qualifier  FuncQualifier
	ReturnType *TypeExpr
	Name       string
	Params     []*Param
}

// FunctionDecl is a function definition with a body.
type FunctionDecl struct {
	Base
	Qualifier  FuncQualifier
	ReturnType *TypeExpr
	Name       string
	Params     []*Param
	Body       *Block
}

// Block is a brace-delimited sequence of statements.
type Block struct {
	Base
	Stmts []Node
}

// DeclStmt declares a local variable, with an optional initialiser.
type DeclStmt struct {
	Base
	Type  *TypeExpr
	Name  string
	Init  Node // nil if uninitialised
}

// ExprStmt wraps an expression used as a statement (calls, assignments).
type ExprStmt struct {
	Base
	Expr Node
}

// ReturnStmt is «return [expr];».
type ReturnStmt struct {
	Base
	Value Node // nil for a bare "return;" in a void function
}

// IfStmt is «if (cond) then [else else_]».
type IfStmt struct {
	Base
	Cond Node
	Then *Block
	Else *Block // nil if there is no else arm
}

// WhileStmt is «while (cond) body».
type WhileStmt struct {
	Base
	Cond Node
	Body *Block
}

// ForStmt is «for (init; cond; post) body»; any of the three clauses
// may be nil.
type ForStmt struct {
	Base
	Init Node
	Cond Node
	Post Node
	Body *Block
}

// Ident is a bare name reference.
type Ident struct {
	Base
	Name string
}

// IntLit is an integer literal.
type IntLit struct {
	Base
	Value int64
}

// FloatLit is a floating point literal.
type FloatLit struct {
	Base
	Value float64
}

// BoolLit is a true/false literal.
type BoolLit struct {
	Base
	Value bool
}

// BinaryOp is a binary expression «lhs op rhs», including assignment
// and compound-assignment operators.
type BinaryOp struct {
	Base
	Op  string
	LHS Node
	RHS Node
}

// UnaryOp is a prefix unary expression «op operand».
type UnaryOp struct {
	Base
	Op      string
	Operand Node
}

// CallExpr is «callee(args...)», used for both user function calls
// and built-in/intrinsic invocations and type-constructor calls like
// vec4(...).
type CallExpr struct {
	Base
	Callee string
	Args   []Node
}

// IndexExpr is «target[index]», used for vector swizzle-by-index and
// future array support.
type IndexExpr struct {
	Base
	Target Node
	Index  Node
}

// MemberExpr is «target.member», used for vector swizzles such as .xyz.
type MemberExpr struct {
	Base
	Target Node
	Member string
}
