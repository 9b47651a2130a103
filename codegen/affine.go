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

// Affine is a 2D affine transform, stored as two row vectors the way
// spec.md §4.F step 5 describes: "stored as two row-vectors embedded
// as constants in IR". (x', y') = (a*x + c*y + tx, b*x + d*y + ty).
type Affine struct {
	A, B, C, D, TX, TY float64
}

// Identity is the identity affine transform.
var Identity = Affine{A: 1, D: 1}

// IsIdentity reports whether m is exactly the identity transform —
// the fast path the specialiser used to assume unconditionally before
// the non-identity IR path below was added (SPEC_FULL.md §4.F Open
// Question resolution).
func (m Affine) IsIdentity() bool {
	return m == Identity
}

// Invert returns the affine transform that undoes m, used by the
// graph specialiser to map a coordinate from a node's own space back
// into a child's local space (spec.md §4.F step 5): a child's stored
// Transform places it within its parent, so reading the child at a
// parent-space coordinate requires the inverse. A singular (zero
// determinant) transform has no inverse; Invert falls back to Identity
// rather than dividing by zero, an explicit known limitation rather
// than a panic.
func (m Affine) Invert() Affine {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity
	}
	return Affine{
		A: m.D / det, B: -m.B / det, C: -m.C / det, D: m.A / det,
		TX: (m.C*m.TY - m.D*m.TX) / det,
		TY: (m.B*m.TX - m.A*m.TY) / det,
	}
}

// AffineTransform emits the IR for applying an affine transform to a
// 2D coordinate packed in the x/y lanes of a <4 x float>, returning a
// new <4 x float> with the transformed x/y in lanes 0/1 and the
// original z/w lanes preserved. This is the matrix-multiply path the
// graph specialiser generates for a non-identity child transform
// instead of refusing (spec.md §9 Open Questions).
func (b *Builder) AffineTransform(coord *Value, m Affine) *Value {
	x := b.ExtractLane(coord, 0)
	y := b.ExtractLane(coord, 1)

	a := b.m.ConstFloat(m.A)
	c := b.m.ConstFloat(m.C)
	tx := b.m.ConstFloat(m.TX)
	bb := b.m.ConstFloat(m.B)
	d := b.m.ConstFloat(m.D)
	ty := b.m.ConstFloat(m.TY)

	nx := b.FAdd(b.FAdd(b.FMul(a, x), b.FMul(c, y)), tx)
	ny := b.FAdd(b.FAdd(b.FMul(bb, x), b.FMul(d, y)), ty)

	z := b.ExtractLane(coord, 2)
	w := b.ExtractLane(coord, 3)
	return b.BuildVec4(nx, ny, z, w)
}
