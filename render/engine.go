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

// Package render implements the Firtree render engine (spec.md §4.G):
// it resolves a sampler root to a JITed per-pixel function through
// package specialize, tiles the destination rectangle into horizontal
// strips, and dispatches the strips to a worker pool, writing pixels
// in one of the PixelFormat layouts.
package render

import (
	"github.com/dbhardwaj1904/firtree/sampler"
	"github.com/dbhardwaj1904/firtree/specialize"
)

const defaultStripRows = 8

// Rect is a world-space rectangle: the region of the sampler graph's
// own coordinate space mapped onto the destination buffer.
type Rect struct {
	X, Y, Width, Height float64
}

// Options tunes an Engine's tiling and parallelism. The zero value
// selects spec.md's documented defaults.
type Options struct {
	// StripRows is the number of output rows per worker tile. Zero
	// selects the default of 8 (spec.md §4.G step 3). Scenario S6
	// requires byte-identical output for any StripRows in
	// {1, 2, 8, 64, rows}; runTiles' disjoint-strip dispatch gives
	// this for free since no tile's pixels depend on another's.
	StripRows int
	// Workers is the worker pool size. Zero selects runtime.NumCPU().
	Workers int
}

// Engine renders a sampler graph's roots into pixel buffers. One
// Engine owns one specialisation cache, whose lookups are serialised by
// the cache's own mutex; the graph's read lock is held only inside that
// lookup, not while tiles are rendered.
type Engine struct {
	graph   *sampler.Graph
	cache   *specialize.Cache
	Options Options
}

// NewEngine returns an Engine rendering samplers from g.
func NewEngine(g *sampler.Graph) *Engine {
	return &Engine{graph: g, cache: specialize.NewCache()}
}

// Close disposes every cached JITed executor. The Engine must not be
// used afterward.
func (e *Engine) Close() { e.cache.Close() }

// RenderIntoBuffer renders root over extent into buf, a width×height
// pixel grid laid out with the given byte stride per row, in format.
// It implements spec.md §6's render_into_buffer.
func (e *Engine) RenderIntoBuffer(root sampler.ID, extent Rect, buf []byte, width, height, rowStride int, format PixelFormat) error {
	if !format.Writable() {
		return newError(ErrUnsupportedFormat, nil)
	}
	if rowStride*height > len(buf) {
		return newError(ErrBufferTooSmall, nil)
	}
	if width <= 0 || height <= 0 {
		return nil
	}

	// e.cache.Get takes e.graph's RLock itself (once for Generation,
	// again for Specialize on a cache miss) — it must not be held here
	// too, or a writer arriving between those two internal RLocks would
	// deadlock against this outer one.
	exec, _, err := e.cache.Get(e.graph, root)
	if err != nil {
		return newError(ErrSpecialize, err)
	}

	bytesPerPixel := format.BytesPerPixel()
	jobs := tileJobs(height, e.stripRows())

	return runTiles(jobs, e.workers(), func(j tileJob) error {
		for row := 0; row < j.rows; row++ {
			py := j.y0 + row
			wy := extent.Y + (float64(py)+0.5)*extent.Height/float64(height)
			rowOff := py * rowStride
			for px := 0; px < width; px++ {
				wx := extent.X + (float64(px)+0.5)*extent.Width/float64(width)
				r, g, b, a, err := exec.RunPixelFunc("sample_root", float32(wx), float32(wy))
				if err != nil {
					return newError(ErrJIT, err)
				}
				off := rowOff + px*bytesPerPixel
				format.pack(buf[off:off+bytesPerPixel], r, g, b, a)
			}
		}
		return nil
	})
}

// RendererFunc evaluates a specialised sampler root at a world-space
// coordinate, returning the pixel bytes packed in the format it was
// resolved for. Like RenderIntoBuffer's tile pass, a RendererFunc
// holds no graph lock while it runs. The Executor behind it is owned by
// the Engine's cache, which disposes it when a later lookup
// re-specialises root or when the Engine is closed (spec.md §6 "for
// callers that want to invoke the JIT directly").
type RendererFunc func(x, y float64) ([]byte, error)

// GetRendererFunction resolves root's specialised JIT function for
// format and returns it as a directly callable RendererFunc, or an
// error if root fails to specialise or format is not a valid render
// target. Implements spec.md §6's get_renderer_function.
func (e *Engine) GetRendererFunction(root sampler.ID, format PixelFormat) (RendererFunc, error) {
	if !format.Writable() {
		return nil, newError(ErrUnsupportedFormat, nil)
	}

	exec, _, err := e.cache.Get(e.graph, root)
	if err != nil {
		return nil, newError(ErrSpecialize, err)
	}

	bytesPerPixel := format.BytesPerPixel()
	return func(x, y float64) ([]byte, error) {
		r, g, b, a, err := exec.RunPixelFunc("sample_root", float32(x), float32(y))
		if err != nil {
			return nil, newError(ErrJIT, err)
		}
		out := make([]byte, bytesPerPixel)
		format.pack(out, r, g, b, a)
		return out, nil
	}, nil
}

func (e *Engine) stripRows() int {
	if e.Options.StripRows > 0 {
		return e.Options.StripRows
	}
	return defaultStripRows
}

func (e *Engine) workers() int {
	if e.Options.Workers > 0 {
		return e.Options.Workers
	}
	return defaultWorkers()
}

// tileJobs splits height rows into jobs of at most stripRows rows
// each, the last possibly shorter.
func tileJobs(height, stripRows int) []tileJob {
	var jobs []tileJob
	for y0 := 0; y0 < height; y0 += stripRows {
		rows := stripRows
		if y0+rows > height {
			rows = height - y0
		}
		jobs = append(jobs, tileJob{y0: y0, rows: rows})
	}
	return jobs
}
