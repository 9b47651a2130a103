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

// Package lexer tokenizes kernel-language source text.
package lexer

import (
	"strings"
	"unicode/utf8"

	"github.com/dbhardwaj1904/firtree/token"
)

// Lexer scans a source string into a stream of tokens, skipping
// whitespace and "//" / "/* */" comments.
type Lexer struct {
	src     string
	offset  int
	line    int
	col     int
	errored []error
}

// New returns a Lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

func (l *Lexer) peekByte() byte {
	if l.offset >= len(l.src) {
		return 0
	}
	return l.src[l.offset]
}

func (l *Lexer) peekByteAt(n int) byte {
	if l.offset+n >= len(l.src) {
		return 0
	}
	return l.src[l.offset+n]
}

func (l *Lexer) advance() byte {
	b := l.src[l.offset]
	l.offset++
	if b == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

func (l *Lexer) pos() token.Pos { return token.Pos{Line: l.line, Col: l.col} }

func (l *Lexer) skipWhitespaceAndComments() {
	for l.offset < len(l.src) {
		switch {
		case isSpace(l.peekByte()):
			l.advance()
		case l.peekByte() == '/' && l.peekByteAt(1) == '/':
			for l.offset < len(l.src) && l.peekByte() != '\n' {
				l.advance()
			}
		case l.peekByte() == '/' && l.peekByteAt(1) == '*':
			l.advance()
			l.advance()
			for l.offset < len(l.src) && !(l.peekByte() == '*' && l.peekByteAt(1) == '/') {
				l.advance()
			}
			if l.offset < len(l.src) {
				l.advance()
				l.advance()
			}
		default:
			return
		}
	}
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isIdentCont(b byte) bool { return isIdentStart(b) || isDigit(b) }

// Next returns the next token in the stream. After the last real
// token it returns an endless sequence of token.EOF tokens, so
// callers never need a separate end-of-input check before peeking.
func (l *Lexer) Next() token.Token {
	l.skipWhitespaceAndComments()
	start := l.pos()
	if l.offset >= len(l.src) {
		return token.Token{Kind: token.EOF, Pos: start}
	}

	b := l.peekByte()
	switch {
	case isIdentStart(b):
		begin := l.offset
		for l.offset < len(l.src) && isIdentCont(l.peekByte()) {
			l.advance()
		}
		text := l.src[begin:l.offset]
		return token.Token{Kind: token.Lookup(text), Text: text, Pos: start}

	case isDigit(b) || (b == '.' && isDigit(l.peekByteAt(1))):
		return l.scanNumber(start)

	default:
		return l.scanPunct(start)
	}
}

func (l *Lexer) scanNumber(start token.Pos) token.Token {
	begin := l.offset
	isFloat := false
	for l.offset < len(l.src) && isDigit(l.peekByte()) {
		l.advance()
	}
	if l.peekByte() == '.' && isDigit(l.peekByteAt(1)) {
		isFloat = true
		l.advance()
		for l.offset < len(l.src) && isDigit(l.peekByte()) {
			l.advance()
		}
	}
	if l.peekByte() == 'e' || l.peekByte() == 'E' {
		isFloat = true
		l.advance()
		if l.peekByte() == '+' || l.peekByte() == '-' {
			l.advance()
		}
		for l.offset < len(l.src) && isDigit(l.peekByte()) {
			l.advance()
		}
	}
	if l.peekByte() == 'f' || l.peekByte() == 'F' {
		isFloat = true
		l.advance()
	}
	text := l.src[begin:l.offset]
	kind := token.IntLiteral
	if isFloat {
		kind = token.FloatLiteral
		text = strings.TrimSuffix(strings.TrimSuffix(text, "f"), "F")
	}
	return token.Token{Kind: kind, Text: text, Pos: start}
}

type punct struct {
	text string
	kind token.Kind
}

// Longest-match-first: two-byte operators must precede their
// single-byte prefixes.
var puncts = []punct{
	{"+=", token.PlusAssign}, {"-=", token.MinusAssign},
	{"*=", token.StarAssign}, {"/=", token.SlashAssign},
	{"==", token.Eq}, {"!=", token.Ne},
	{"<=", token.Le}, {">=", token.Ge},
	{"&&", token.AndAnd}, {"||", token.OrOr},
	{"++", token.Increment}, {"--", token.Decrement},
	{"(", token.LParen}, {")", token.RParen},
	{"{", token.LBrace}, {"}", token.RBrace},
	{"[", token.LBracket}, {"]", token.RBracket},
	{",", token.Comma}, {";", token.Semi}, {".", token.Dot},
	{"=", token.Assign},
	{"+", token.Plus}, {"-", token.Minus}, {"*", token.Star},
	{"/", token.Slash}, {"%", token.Percent},
	{"<", token.Lt}, {">", token.Gt}, {"!", token.Not},
}

func (l *Lexer) scanPunct(start token.Pos) token.Token {
	rest := l.src[l.offset:]
	for _, p := range puncts {
		if strings.HasPrefix(rest, p.text) {
			for range p.text {
				l.advance()
			}
			return token.Token{Kind: p.kind, Text: p.text, Pos: start}
		}
	}
	// Unrecognised byte: consume one rune so the caller's error
	// recovery can resynchronise, rather than looping forever.
	r, size := utf8.DecodeRuneInString(rest)
	for i := 0; i < size; i++ {
		l.advance()
	}
	return token.Token{Kind: token.Invalid, Text: string(r), Pos: start}
}
