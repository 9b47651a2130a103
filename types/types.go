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

// Package types implements the kernel language's small type system:
// qualifiers, specifiers, arity, implicit casts, and function
// prototype / overload bookkeeping (spec.md §3, §4.B).
package types

import "fmt"

// Qualifier is the const/static prefix of a Type.
type Qualifier int

const (
	None Qualifier = iota
	Const
	Static
)

func (q Qualifier) String() string {
	switch q {
	case Const:
		return "const"
	case Static:
		return "static"
	default:
		return ""
	}
}

// Specifier is the base type of a Type, independent of qualifier.
type Specifier int

const (
	Invalid Specifier = iota
	Float
	Int
	Bool
	Vec2
	Vec3
	Vec4
	Color // vec4 with a distinct intent bit for host bindings.
	Sampler
	Void
)

func (s Specifier) String() string {
	switch s {
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Vec2:
		return "vec2"
	case Vec3:
		return "vec3"
	case Vec4:
		return "vec4"
	case Color:
		return "color"
	case Sampler:
		return "sampler"
	case Void:
		return "void"
	default:
		return "<invalid>"
	}
}

// Type is a (qualifier, specifier) pair, the only type representation
// in the kernel language (spec.md §3).
type Type struct {
	Qualifier Qualifier
	Specifier Specifier
}

func (t Type) String() string {
	if t.Qualifier == None {
		return t.Specifier.String()
	}
	return fmt.Sprintf("%s %s", t.Qualifier, t.Specifier)
}

// Common unqualified types, used throughout the front-end.
var (
	FloatT   = Type{Specifier: Float}
	IntT     = Type{Specifier: Int}
	BoolT    = Type{Specifier: Bool}
	Vec2T    = Type{Specifier: Vec2}
	Vec3T    = Type{Specifier: Vec3}
	Vec4T    = Type{Specifier: Vec4}
	ColorT   = Type{Specifier: Color}
	SamplerT = Type{Specifier: Sampler}
	VoidT    = Type{Specifier: Void}
)

// Arity returns the vector width of a Type: 1 for scalars, 2/3/4 for
// vec_n and color, 0 for sampler and void. It drives the implicit
// splat-cast rule.
func (t Type) Arity() int {
	switch t.Specifier {
	case Float, Int, Bool:
		return 1
	case Vec2:
		return 2
	case Vec3:
		return 3
	case Vec4, Color:
		return 4
	default:
		return 0
	}
}

// IsNumeric reports whether t's specifier is a scalar or vector
// numeric type (not sampler/void/bool is numeric for widening purposes
// too, since bool participates in bool->int->float widening).
func (t Type) IsNumeric() bool {
	switch t.Specifier {
	case Float, Int, Bool, Vec2, Vec3, Vec4, Color:
		return true
	default:
		return false
	}
}

// IsScalar reports whether t has arity 1.
func (t Type) IsScalar() bool {
	switch t.Specifier {
	case Float, Int, Bool:
		return true
	default:
		return false
	}
}

// IsVector reports whether t is vec2/vec3/vec4/color.
func (t Type) IsVector() bool {
	switch t.Specifier {
	case Vec2, Vec3, Vec4, Color:
		return true
	default:
		return false
	}
}

// ElementType returns the scalar type that widening/splatting produces
// lanes of: always float for vectors, the type itself for scalars.
func (t Type) ElementType() Type {
	if t.IsVector() {
		return FloatT
	}
	return t
}

// DropConst returns t with any const qualifier removed. This is the
// "const-cast": the only qualifier-changing implicit cast.
func (t Type) DropConst() Type {
	if t.Qualifier == Const {
		return Type{Qualifier: None, Specifier: t.Specifier}
	}
	return t
}

// Unqualified returns t with its qualifier stripped entirely
// (including static), used when comparing types structurally for
// overload purposes.
func (t Type) Unqualified() Type {
	return Type{Specifier: t.Specifier}
}

// scalarRank orders the bool->int->float widening chain; -1 means "not
// on the chain".
func scalarRank(s Specifier) int {
	switch s {
	case Bool:
		return 0
	case Int:
		return 1
	case Float:
		return 2
	default:
		return -1
	}
}

// CastKind classifies how (or whether) a value of type `from` can be
// implicitly coerced to type `to`.
type CastKind int

const (
	// CastNone means no implicit cast exists; the types must match
	// exactly (after dropping const).
	CastNone CastKind = iota
	CastConstDrop
	CastWiden  // bool->int->float
	CastSplat  // scalar->vec_n
	CastWidenSplat
)

// ImplicitCast reports whether a value of type `from` may be
// implicitly coerced to type `to`, and how. Only the coercions listed
// in spec.md §4.C are legal; everything else is CastNone (an error).
func ImplicitCast(from, to Type) (CastKind, bool) {
	fromU, toU := from.Unqualified(), to.Unqualified()
	if fromU == toU {
		if from.Qualifier == Const && to.Qualifier != Const {
			return CastConstDrop, true
		}
		if from.Qualifier == to.Qualifier {
			return CastNone, true // identical, still a legal "cast" (no-op)
		}
		return CastNone, false
	}

	fromScalar, toScalar := from.IsScalar(), to.IsScalar()
	toVector := to.IsVector()

	switch {
	case fromScalar && toScalar:
		if scalarRank(fromU.Specifier) < scalarRank(toU.Specifier) {
			return CastWiden, true
		}
		return CastNone, false

	case fromScalar && toVector:
		if from.Arity() != 1 {
			return CastNone, false
		}
		if fromU.Specifier == toU.Specifier.elementSpecifier() {
			return CastSplat, true
		}
		if scalarRank(fromU.Specifier) >= 0 {
			return CastWidenSplat, true
		}
		return CastNone, false

	default:
		return CastNone, false
	}
}

// elementSpecifier is the scalar specifier a vector specifier splats
// from (always float: kernel-language vectors are float-lane only).
func (s Specifier) elementSpecifier() Specifier {
	switch s {
	case Vec2, Vec3, Vec4, Color:
		return Float
	default:
		return s
	}
}

// CanImplicitlyCast is the boolean-only form of ImplicitCast.
func CanImplicitlyCast(from, to Type) bool {
	_, ok := ImplicitCast(from, to)
	return ok
}
