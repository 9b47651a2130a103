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

package render

import "math"

// PixelFormat enumerates every buffer layout the render engine knows
// how to write, and the three input-only layouts it recognises by
// name but refuses to render into (spec.md §6). The per-format byte
// layout and premultiplication flag live in formatInfo, a
// compile-time table rather than a family of stringly-named entry
// functions (SPEC_FULL.md §9/REDESIGN FLAGS "macro-generated per-format
// entry names").
type PixelFormat int

const (
	ARGB32 PixelFormat = iota
	ARGB32Premultiplied
	XRGB32
	RGBA32
	RGBA32Premultiplied
	BGRA32
	BGRA32Premultiplied
	ABGR32
	ABGR32Premultiplied
	XBGR32
	RGBX32
	BGRX32
	RGB24
	BGR24

	// Input-only: valid PixelFormat values, never valid render targets.
	L8
	I420
	YV12
)

// channel tags the 0..3 byte lanes of an output pixel layout.
type channel int

const (
	chR channel = iota
	chG
	chB
	chA
	chX // unused byte; written as 0
)

type formatInfo struct {
	name          string
	bytesPerPixel int
	layout        []channel // len == bytesPerPixel
	premultiplied bool
	writable      bool
}

var formats = map[PixelFormat]formatInfo{
	ARGB32:               {"ARGB32", 4, []channel{chA, chR, chG, chB}, false, true},
	ARGB32Premultiplied:  {"ARGB32-premultiplied", 4, []channel{chA, chR, chG, chB}, true, true},
	XRGB32:               {"XRGB32", 4, []channel{chX, chR, chG, chB}, false, true},
	RGBA32:               {"RGBA32", 4, []channel{chR, chG, chB, chA}, false, true},
	RGBA32Premultiplied:  {"RGBA32-premultiplied", 4, []channel{chR, chG, chB, chA}, true, true},
	BGRA32:               {"BGRA32", 4, []channel{chB, chG, chR, chA}, false, true},
	BGRA32Premultiplied:  {"BGRA32-premultiplied", 4, []channel{chB, chG, chR, chA}, true, true},
	ABGR32:               {"ABGR32", 4, []channel{chA, chB, chG, chR}, false, true},
	ABGR32Premultiplied:  {"ABGR32-premultiplied", 4, []channel{chA, chB, chG, chR}, true, true},
	XBGR32:               {"XBGR32", 4, []channel{chX, chB, chG, chR}, false, true},
	RGBX32:               {"RGBX32", 4, []channel{chR, chG, chB, chX}, false, true},
	BGRX32:               {"BGRX32", 4, []channel{chB, chG, chR, chX}, false, true},
	RGB24:                {"RGB24", 3, []channel{chR, chG, chB}, false, true},
	BGR24:                {"BGR24", 3, []channel{chB, chG, chR}, false, true},
	L8:                   {"L8", 1, nil, false, false},
	I420:                 {"I420", 0, nil, false, false},
	YV12:                 {"YV12", 0, nil, false, false},
}

// String returns the format's name as used in spec.md's own prose,
// for diagnostics.
func (f PixelFormat) String() string {
	if info, ok := formats[f]; ok {
		return info.name
	}
	return "unknown pixel format"
}

// Writable reports whether f may be used as a render target. L8,
// I420 and YV12 are recognised names but input-only (spec.md §6).
func (f PixelFormat) Writable() bool {
	info, ok := formats[f]
	return ok && info.writable
}

// BytesPerPixel returns the on-the-wire size of one pixel in this
// format, or 0 for a format with no fixed per-pixel byte size (the
// planar input-only formats).
func (f PixelFormat) BytesPerPixel() int {
	return formats[f].bytesPerPixel
}

// roundChannel converts a [0,1] float channel value to a byte using
// round-to-nearest-even, ties-to-even — the rounding convention
// SPEC_FULL.md fixes for premultiplication and channel packing alike,
// resolving the Open Question spec.md §9 leaves unspecified.
func roundChannel(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	scaled := float64(v) * 255
	floor := math.Floor(scaled)
	frac := scaled - floor
	switch {
	case frac < 0.5:
		return byte(floor)
	case frac > 0.5:
		return byte(floor) + 1
	default:
		// Exactly on the boundary: round to the even neighbour.
		if int64(floor)%2 == 0 {
			return byte(floor)
		}
		return byte(floor) + 1
	}
}

// pack writes one pixel's bytes (r, g, b, a each in [0,1]) to dst,
// which must be at least BytesPerPixel() long, applying f's channel
// order and premultiplication.
func (f PixelFormat) pack(dst []byte, r, g, b, a float32) {
	info := formats[f]
	if info.premultiplied {
		r, g, b = r*a, g*a, b*a
	}
	for i, ch := range info.layout {
		switch ch {
		case chR:
			dst[i] = roundChannel(r)
		case chG:
			dst[i] = roundChannel(g)
		case chB:
			dst[i] = roundChannel(b)
		case chA:
			dst[i] = roundChannel(a)
		case chX:
			dst[i] = 0
		}
	}
}
