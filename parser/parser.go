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

// Package parser implements a recursive-descent parser turning kernel
// language source text into the concrete parse tree defined by
// package ast. A malformed external declaration is skipped up to the
// next one, so a single bad function never hides errors in the rest
// of the file (spec.md §4.A).
package parser

import (
	"fmt"
	"strconv"

	"github.com/dbhardwaj1904/firtree/ast"
	"github.com/dbhardwaj1904/firtree/lexer"
	"github.com/dbhardwaj1904/firtree/token"
)

// SyntaxError is a single lex/parse diagnostic with its source
// position (spec.md §7, error kind 1).
type SyntaxError struct {
	Pos     token.Pos
	Message string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("%v: %s", e.Pos, e.Message) }

// ErrorList accumulates every SyntaxError found while parsing a
// translation unit.
type ErrorList []*SyntaxError

func (l ErrorList) Error() string {
	if len(l) == 0 {
		return "no errors"
	}
	s := l[0].Error()
	if len(l) > 1 {
		s += fmt.Sprintf(" (and %d more)", len(l)-1)
	}
	return s
}

// Parser holds the token lookahead and accumulated errors for a
// single translation unit.
type Parser struct {
	lex  *lexer.Lexer
	tok  token.Token
	errs ErrorList
}

// Parse lexes and parses src, returning the translation unit parsed so
// far (which may be partial) and the list of syntax errors found, if
// any.
func Parse(src string) (*ast.TranslationUnit, ErrorList) {
	p := &Parser{lex: lexer.New(src)}
	p.next()
	tu := p.parseTranslationUnit()
	return tu, p.errs
}

func (p *Parser) next() { p.tok = p.lex.Next() }

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errs = append(p.errs, &SyntaxError{Pos: p.tok.Pos, Message: fmt.Sprintf(format, args...)})
}

func (p *Parser) expect(k token.Kind, what string) token.Token {
	if p.tok.Kind != k {
		p.errorf("expected %s, got %q", what, p.tok.Text)
		return p.tok
	}
	t := p.tok
	p.next()
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.tok.Kind == k }

// recoverToNextDecl discards tokens until it finds a position that
// plausibly starts the next external declaration, so one malformed
// function does not swallow the rest of the file.
func (p *Parser) recoverToNextDecl() {
	for {
		switch p.tok.Kind {
		case token.EOF, token.KwKernel, token.KwFunction:
			return
		case token.RBrace:
			p.next()
			return
		default:
			p.next()
		}
	}
}

func (p *Parser) parseTranslationUnit() *ast.TranslationUnit {
	tu := &ast.TranslationUnit{}
	for p.tok.Kind != token.EOF {
		before := p.tok
		decl := p.parseExternalDecl()
		if decl != nil {
			tu.Decls = append(tu.Decls, decl)
		}
		if p.tok == before {
			// Parsing a declaration made no progress at all; force
			// one forward so we can't loop forever on garbage input.
			p.next()
		}
	}
	return tu
}

func (p *Parser) parseExternalDecl() ast.Node {
	pos := p.tok.Pos
	qual := ast.QualFunction
	switch p.tok.Kind {
	case token.KwKernel:
		qual = ast.QualKernel
		p.next()
	case token.KwFunction:
		qual = ast.QualFunction
		p.next()
	default:
		p.errorf("expected 'kernel' or 'function', got %q", p.tok.Text)
		p.recoverToNextDecl()
		return nil
	}

	retType := p.parseTypeExpr()
	nameTok := p.expect(token.Ident, "function name")
	p.expect(token.LParen, "'('")
	params := p.parseParamList()
	p.expect(token.RParen, "')'")

	if p.at(token.Semi) {
		p.next()
		return &ast.Prototype{Base: ast.New(pos), Qualifier: qual, ReturnType: retType, Name: nameTok.Text, Params: params}
	}
	if !p.at(token.LBrace) {
		p.errorf("expected '{' or ';' after parameter list, got %q", p.tok.Text)
		p.recoverToNextDecl()
		return nil
	}
	body := p.parseBlock()
	return &ast.FunctionDecl{Base: ast.New(pos), Qualifier: qual, ReturnType: retType, Name: nameTok.Text, Params: params, Body: body}
}

func (p *Parser) parseParamList() []*ast.Param {
	var params []*ast.Param
	for !p.at(token.RParen) && !p.at(token.EOF) {
		if len(params) > 0 {
			p.expect(token.Comma, "','")
		}
		pos := p.tok.Pos
		dir := ast.DirIn
		switch p.tok.Kind {
		case token.KwIn:
			p.next()
		case token.KwOut:
			dir = ast.DirOut
			p.next()
		case token.KwInout:
			dir = ast.DirInout
			p.next()
		}
		ty := p.parseTypeExpr()
		nameTok := p.expect(token.Ident, "parameter name")
		params = append(params, &ast.Param{Base: ast.New(pos), Direction: dir, Type: ty, Name: nameTok.Text})
	}
	return params
}

func (p *Parser) parseTypeExpr() *ast.TypeExpr {
	pos := p.tok.Pos
	qual := ast.QualNone
	switch p.tok.Kind {
	case token.KwConst:
		qual = ast.QualConst
		p.next()
	case token.KwStatic:
		qual = ast.QualStatic
		p.next()
	}
	if p.tok.Kind == token.KwVoid {
		p.next()
		return &ast.TypeExpr{Base: ast.New(pos), Qualifier: qual, Specifier: "void"}
	}
	nameTok := p.expect(token.Ident, "type name")
	return &ast.TypeExpr{Base: ast.New(pos), Qualifier: qual, Specifier: nameTok.Text}
}

func (p *Parser) parseBlock() *ast.Block {
	pos := p.tok.Pos
	p.expect(token.LBrace, "'{'")
	blk := &ast.Block{Base: ast.New(pos)}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		before := p.tok
		stmt := p.parseStatement()
		if stmt != nil {
			blk.Stmts = append(blk.Stmts, stmt)
		}
		if p.tok == before {
			p.next()
		}
	}
	p.expect(token.RBrace, "'}'")
	return blk
}

func (p *Parser) parseStatement() ast.Node {
	switch p.tok.Kind {
	case token.LBrace:
		return p.parseBlock()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwFor:
		return p.parseFor()
	case token.KwReturn:
		return p.parseReturn()
	default:
		if p.looksLikeDecl() {
			return p.parseDecl()
		}
		return p.parseExprStatement()
	}
}

// looksLikeDecl heuristically distinguishes "T x = ..." declarations
// from expression statements: a declaration starts with const/static,
// or with an identifier that is immediately followed by another
// identifier (the type, then the variable name).
func (p *Parser) looksLikeDecl() bool {
	if p.tok.Kind == token.KwConst || p.tok.Kind == token.KwStatic {
		return true
	}
	if p.tok.Kind != token.Ident {
		return false
	}
	// Peek one token ahead without consuming.
	save := *p.lex
	saveTok := p.tok
	p.next()
	isDecl := p.tok.Kind == token.Ident
	*p.lex = save
	p.tok = saveTok
	return isDecl
}

func (p *Parser) parseDecl() ast.Node {
	pos := p.tok.Pos
	ty := p.parseTypeExpr()
	nameTok := p.expect(token.Ident, "variable name")
	var init ast.Node
	if p.at(token.Assign) {
		p.next()
		init = p.parseExpr()
	}
	p.expect(token.Semi, "';'")
	return &ast.DeclStmt{Base: ast.New(pos), Type: ty, Name: nameTok.Text, Init: init}
}

func (p *Parser) parseExprStatement() ast.Node {
	pos := p.tok.Pos
	e := p.parseExpr()
	p.expect(token.Semi, "';'")
	return &ast.ExprStmt{Base: ast.New(pos), Expr: e}
}

func (p *Parser) parseReturn() ast.Node {
	pos := p.tok.Pos
	p.next()
	var val ast.Node
	if !p.at(token.Semi) {
		val = p.parseExpr()
	}
	p.expect(token.Semi, "';'")
	return &ast.ReturnStmt{Base: ast.New(pos), Value: val}
}

func (p *Parser) parseIf() ast.Node {
	pos := p.tok.Pos
	p.next()
	p.expect(token.LParen, "'('")
	cond := p.parseExpr()
	p.expect(token.RParen, "')'")
	then := p.parseBlock()
	var els *ast.Block
	if p.at(token.KwElse) {
		p.next()
		if p.at(token.KwIf) {
			inner := p.parseIf()
			els = &ast.Block{Base: ast.New(p.tok.Pos), Stmts: []ast.Node{inner}}
		} else {
			els = p.parseBlock()
		}
	}
	return &ast.IfStmt{Base: ast.New(pos), Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Node {
	pos := p.tok.Pos
	p.next()
	p.expect(token.LParen, "'('")
	cond := p.parseExpr()
	p.expect(token.RParen, "')'")
	body := p.parseBlock()
	return &ast.WhileStmt{Base: ast.New(pos), Cond: cond, Body: body}
}

func (p *Parser) parseFor() ast.Node {
	pos := p.tok.Pos
	p.next()
	p.expect(token.LParen, "'('")
	var initS, post ast.Node
	var cond ast.Node
	if !p.at(token.Semi) {
		if p.looksLikeDecl() {
			initS = p.parseDeclNoSemi()
		} else {
			initS = &ast.ExprStmt{Base: ast.New(p.tok.Pos), Expr: p.parseExpr()}
		}
	}
	p.expect(token.Semi, "';'")
	if !p.at(token.Semi) {
		cond = p.parseExpr()
	}
	p.expect(token.Semi, "';'")
	if !p.at(token.RParen) {
		post = p.parseExpr()
	}
	p.expect(token.RParen, "')'")
	body := p.parseBlock()
	return &ast.ForStmt{Base: ast.New(pos), Init: initS, Cond: cond, Post: post, Body: body}
}

func (p *Parser) parseDeclNoSemi() ast.Node {
	pos := p.tok.Pos
	ty := p.parseTypeExpr()
	nameTok := p.expect(token.Ident, "variable name")
	var init ast.Node
	if p.at(token.Assign) {
		p.next()
		init = p.parseExpr()
	}
	return &ast.DeclStmt{Base: ast.New(pos), Type: ty, Name: nameTok.Text, Init: init}
}

// Expression grammar, lowest to highest precedence:
//   assignment > logical-or > logical-and > equality > relational
//   > additive > multiplicative > unary > postfix > primary
// Compound assignment (+=, -=, *=, /=) is parsed at the same level as
// plain assignment; lower does the x = x op y desugaring.

func (p *Parser) parseExpr() ast.Node { return p.parseAssignment() }

func (p *Parser) parseAssignment() ast.Node {
	lhs := p.parseLogicalOr()
	switch p.tok.Kind {
	case token.Assign, token.PlusAssign, token.MinusAssign, token.StarAssign, token.SlashAssign:
		op := p.tok.Text
		pos := p.tok.Pos
		p.next()
		rhs := p.parseAssignment()
		return &ast.BinaryOp{Base: ast.New(pos), Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs
}

func (p *Parser) binaryLevel(next func() ast.Node, ops map[token.Kind]string) ast.Node {
	lhs := next()
	for {
		op, ok := ops[p.tok.Kind]
		if !ok {
			return lhs
		}
		pos := p.tok.Pos
		p.next()
		rhs := next()
		lhs = &ast.BinaryOp{Base: ast.New(pos), Op: op, LHS: lhs, RHS: rhs}
	}
}

func (p *Parser) parseLogicalOr() ast.Node {
	return p.binaryLevel(p.parseLogicalAnd, map[token.Kind]string{token.OrOr: "||"})
}
func (p *Parser) parseLogicalAnd() ast.Node {
	return p.binaryLevel(p.parseEquality, map[token.Kind]string{token.AndAnd: "&&"})
}
func (p *Parser) parseEquality() ast.Node {
	return p.binaryLevel(p.parseRelational, map[token.Kind]string{token.Eq: "==", token.Ne: "!="})
}
func (p *Parser) parseRelational() ast.Node {
	return p.binaryLevel(p.parseAdditive, map[token.Kind]string{
		token.Lt: "<", token.Le: "<=", token.Gt: ">", token.Ge: ">=",
	})
}
func (p *Parser) parseAdditive() ast.Node {
	return p.binaryLevel(p.parseMultiplicative, map[token.Kind]string{token.Plus: "+", token.Minus: "-"})
}
func (p *Parser) parseMultiplicative() ast.Node {
	return p.binaryLevel(p.parseUnary, map[token.Kind]string{
		token.Star: "*", token.Slash: "/", token.Percent: "%",
	})
}

func (p *Parser) parseUnary() ast.Node {
	switch p.tok.Kind {
	case token.Minus, token.Not:
		op := p.tok.Text
		pos := p.tok.Pos
		p.next()
		operand := p.parseUnary()
		return &ast.UnaryOp{Base: ast.New(pos), Op: op, Operand: operand}
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() ast.Node {
	e := p.parsePrimary()
	for {
		switch p.tok.Kind {
		case token.Dot:
			pos := p.tok.Pos
			p.next()
			member := p.expect(token.Ident, "member name")
			e = &ast.MemberExpr{Base: ast.New(pos), Target: e, Member: member.Text}
		case token.LBracket:
			pos := p.tok.Pos
			p.next()
			idx := p.parseExpr()
			p.expect(token.RBracket, "']'")
			e = &ast.IndexExpr{Base: ast.New(pos), Target: e, Index: idx}
		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() ast.Node {
	pos := p.tok.Pos
	switch p.tok.Kind {
	case token.IntLiteral:
		text := p.tok.Text
		p.next()
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			p.errorf("invalid integer literal %q", text)
		}
		return &ast.IntLit{Base: ast.New(pos), Value: v}
	case token.FloatLiteral:
		text := p.tok.Text
		p.next()
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			p.errorf("invalid float literal %q", text)
		}
		return &ast.FloatLit{Base: ast.New(pos), Value: v}
	case token.KwTrue:
		p.next()
		return &ast.BoolLit{Base: ast.New(pos), Value: true}
	case token.KwFalse:
		p.next()
		return &ast.BoolLit{Base: ast.New(pos), Value: false}
	case token.Ident:
		name := p.tok.Text
		p.next()
		if p.at(token.LParen) {
			p.next()
			var args []ast.Node
			for !p.at(token.RParen) && !p.at(token.EOF) {
				if len(args) > 0 {
					p.expect(token.Comma, "','")
				}
				args = append(args, p.parseExpr())
			}
			p.expect(token.RParen, "')'")
			return &ast.CallExpr{Base: ast.New(pos), Callee: name, Args: args}
		}
		return &ast.Ident{Base: ast.New(pos), Name: name}
	case token.LParen:
		p.next()
		e := p.parseExpr()
		p.expect(token.RParen, "')'")
		return e
	default:
		p.errorf("unexpected token %q", p.tok.Text)
		tok := p.tok
		p.next()
		return &ast.Ident{Base: ast.New(pos), Name: tok.Text}
	}
}
