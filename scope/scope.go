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

// Package scope implements the front-end's symbol table: a stack of
// frames pushed per block, if/else arm, loop body, and function
// (spec.md §4.B). The table is never cloned for branches — both arms
// of an if share the same underlying stack discipline, pushing and
// popping their own frame in turn.
package scope

import "fmt"

// Symbol is a declared variable: its type, an opaque storage handle
// owned by the lowering pass (typically a codegen.Value pointer), and
// whether it has been given a value yet.
type Symbol struct {
	Name        string
	Type        interface{} // types.Type; kept as interface{} to avoid an import cycle with package lower's callers
	Storage     interface{} // lowering-pass-owned handle, e.g. *codegen.Value
	Initialised bool
}

// Table is a stack of frames. The zero Table is not usable; use New.
type Table struct {
	frames []frame
}

type frame struct {
	symbols map[string]*Symbol
}

// New returns an empty Table with no open frames.
func New() *Table { return &Table{} }

// Push opens a new innermost frame.
func (t *Table) Push() { t.frames = append(t.frames, frame{symbols: map[string]*Symbol{}}) }

// Pop closes the innermost frame.
func (t *Table) Pop() {
	if len(t.frames) == 0 {
		panic("scope: Pop called with no open frame")
	}
	t.frames = t.frames[:len(t.frames)-1]
}

// Depth returns the number of currently open frames.
func (t *Table) Depth() int { return len(t.frames) }

// Declare adds a new symbol to the innermost frame. It fails if a
// symbol with the same name is already declared in that frame —
// shadowing an outer frame's symbol is allowed, re-declaring in the
// same frame is not (spec.md §4.B).
func (t *Table) Declare(sym *Symbol) error {
	if len(t.frames) == 0 {
		panic("scope: Declare called with no open frame")
	}
	innermost := &t.frames[len(t.frames)-1]
	if _, exists := innermost.symbols[sym.Name]; exists {
		return fmt.Errorf("%q is already declared in this scope", sym.Name)
	}
	innermost.symbols[sym.Name] = sym
	return nil
}

// Lookup walks frames from innermost to outermost, returning the
// first symbol found with the given name. The innermost declaration
// always wins.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	for i := len(t.frames) - 1; i >= 0; i-- {
		if sym, ok := t.frames[i].symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}
