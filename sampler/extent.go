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

package sampler

import (
	"math"

	"github.com/dbhardwaj1904/firtree/codegen"
)

// Extent is an axis-aligned rectangle in the sampler's own coordinate
// space: the region outside of which sample() is guaranteed to return
// the transparent pixel (spec.md §8, "Extent conservatism").
type Extent struct {
	X, Y, Width, Height float64
}

// Infinite is the extent of a sampler with no declared bound (the
// extent of a kernel sampler with no bound child samplers and no crop
// rectangle).
var Infinite = Extent{X: math.Inf(-1), Y: math.Inf(-1), Width: math.Inf(1), Height: math.Inf(1)}

// Empty is the extent of a sampler guaranteed to contribute nothing —
// the result of intersecting two disjoint extents.
var Empty = Extent{}

// IsEmpty reports whether e has zero or negative area.
func (e Extent) IsEmpty() bool { return e.Width <= 0 || e.Height <= 0 }

// MaxX/MaxY are the far corner of the rectangle.
func (e Extent) MaxX() float64 { return e.X + e.Width }
func (e Extent) MaxY() float64 { return e.Y + e.Height }

// Intersect returns the largest rectangle contained in both e and o,
// or Empty if they are disjoint.
func (e Extent) Intersect(o Extent) Extent {
	x0 := math.Max(e.X, o.X)
	y0 := math.Max(e.Y, o.Y)
	x1 := math.Min(e.MaxX(), o.MaxX())
	y1 := math.Min(e.MaxY(), o.MaxY())
	if x1 <= x0 || y1 <= y0 {
		return Empty
	}
	return Extent{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Union returns the smallest rectangle containing both e and o.
func (e Extent) Union(o Extent) Extent {
	if e.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return e
	}
	x0 := math.Min(e.X, o.X)
	y0 := math.Min(e.Y, o.Y)
	x1 := math.Max(e.MaxX(), o.MaxX())
	y1 := math.Max(e.MaxY(), o.MaxY())
	return Extent{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Transform returns the axis-aligned bounding box of e's four corners
// after applying m — a conservative over-approximation for rotated or
// sheared transforms, matching the "never under-report extent" half
// of spec.md §8's conservatism invariant.
func (e Extent) Transform(m codegen.Affine) Extent {
	if math.IsInf(e.Width, 1) || math.IsInf(e.Height, 1) {
		return Infinite
	}
	corners := [4][2]float64{
		{e.X, e.Y}, {e.MaxX(), e.Y}, {e.X, e.MaxY()}, {e.MaxX(), e.MaxY()},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		x := m.A*c[0] + m.C*c[1] + m.TX
		y := m.B*c[0] + m.D*c[1] + m.TY
		minX, minY = math.Min(minX, x), math.Min(minY, y)
		maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
	}
	return Extent{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
