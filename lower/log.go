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

	"github.com/dbhardwaj1904/firtree/token"
)

// Kind classifies a diagnostic by the error taxonomy of spec.md §7.
type Kind int

const (
	// KindSyntax covers lex/parse errors surfaced through this log
	// (parser.ErrorList entries are folded in under this kind so
	// callers see one unified diagnostic stream).
	KindSyntax Kind = iota
	KindUndefined      // undefined symbol reference
	KindTypeMismatch   // no implicit cast exists between two types
	KindDecl           // conflicting/duplicate declaration
	KindOverload       // ambiguous or unresolved overload
	KindControlFlow    // non-void falls off end; out/inout unassigned
	KindMutability     // assignment to a non-mutable l-value
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindUndefined:
		return "undefined"
	case KindTypeMismatch:
		return "type"
	case KindDecl:
		return "declaration"
	case KindOverload:
		return "overload"
	case KindControlFlow:
		return "control-flow"
	case KindMutability:
		return "mutability"
	default:
		return "error"
	}
}

// Diagnostic is one reported problem, with enough detail to print a
// single-line message pointing at the offending token.
type Diagnostic struct {
	Kind    Kind
	Pos     token.Pos
	Message string
}

func (d Diagnostic) String() string { return fmt.Sprintf("%v: %s: %s", d.Pos, d.Kind, d.Message) }

// Log accumulates diagnostics for one Compile call. A non-empty Log
// means the compile did not succeed (spec.md §7's totality property:
// either a valid Object is produced or the Log is non-empty, never
// neither, never silently both).
type Log struct {
	diags []Diagnostic
}

// Errorf appends one diagnostic.
func (l *Log) Errorf(kind Kind, pos token.Pos, format string, args ...interface{}) {
	l.diags = append(l.diags, Diagnostic{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any diagnostic has been recorded.
func (l *Log) HasErrors() bool { return len(l.diags) > 0 }

// Diagnostics returns every recorded diagnostic, in report order.
func (l *Log) Diagnostics() []Diagnostic { return l.diags }

func (l *Log) String() string {
	s := ""
	for i, d := range l.diags {
		if i > 0 {
			s += "\n"
		}
		s += d.String()
	}
	return s
}
