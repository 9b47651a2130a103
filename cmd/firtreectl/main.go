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

// firtreectl compiles a kernel source file and renders one of its
// generative (argument-free) kernels to a raw pixel dump. It exists
// to exercise the full pipeline — lex/parse/lower, specialise, JIT,
// tile, pack — from the command line without a host application.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dbhardwaj1904/firtree/kernel"
	"github.com/dbhardwaj1904/firtree/quark"
	"github.com/dbhardwaj1904/firtree/render"
	"github.com/dbhardwaj1904/firtree/sampler"
	"github.com/dbhardwaj1904/firtree/xlog"
)

var (
	srcPath    = flag.String("src", "", "path to a kernel source file")
	kernelName = flag.String("kernel", "", "name of the kernel to render (must take no sampler/static arguments)")
	outPath    = flag.String("out", "-", "output file, '-' for stdout")
	formatName = flag.String("format", "RGBA32", "output pixel format")
	width      = flag.Int("width", 256, "output width in pixels")
	height     = flag.Int("height", 256, "output height in pixels")
	rectW      = flag.Float64("rect-width", 0, "world-space rectangle width (0 selects width)")
	rectH      = flag.Float64("rect-height", 0, "world-space rectangle height (0 selects height)")
)

var formatsByName = map[string]render.PixelFormat{
	"ARGB32":                render.ARGB32,
	"ARGB32-premultiplied":  render.ARGB32Premultiplied,
	"XRGB32":                render.XRGB32,
	"RGBA32":                render.RGBA32,
	"RGBA32-premultiplied":  render.RGBA32Premultiplied,
	"BGRA32":                render.BGRA32,
	"BGRA32-premultiplied":  render.BGRA32Premultiplied,
	"ABGR32":                render.ABGR32,
	"ABGR32-premultiplied":  render.ABGR32Premultiplied,
	"XBGR32":                render.XBGR32,
	"RGBX32":                render.RGBX32,
	"BGRX32":                render.BGRX32,
	"RGB24":                 render.RGB24,
	"BGR24":                 render.BGR24,
}

func main() {
	flag.Parse()
	ctx := context.Background()
	if err := run(ctx); err != nil {
		xlog.Errorf(ctx, err, "firtreectl failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if *srcPath == "" {
		return fmt.Errorf("firtreectl: -src is required")
	}
	format, ok := formatsByName[*formatName]
	if !ok {
		return fmt.Errorf("firtreectl: unknown -format %q", *formatName)
	}

	src, err := os.ReadFile(*srcPath)
	if err != nil {
		return fmt.Errorf("firtreectl: reading %s: %w", *srcPath, err)
	}

	quarks := quark.NewTable()
	obj, log, ok := kernel.Compile(quarks, string(src))
	if !ok {
		return fmt.Errorf("firtreectl: compile failed:\n%s", log)
	}

	name := *kernelName
	if name == "" {
		if len(obj.Kernels) == 0 {
			return fmt.Errorf("firtreectl: %s declares no kernels", *srcPath)
		}
		name = obj.Kernels[0].Name
	}
	xlog.Infof(ctx, "rendering kernel %q from %s", name, *srcPath)

	g := sampler.NewGraph(quarks)
	root, err := g.NewKernelSampler(obj, name)
	if err != nil {
		return fmt.Errorf("firtreectl: %w", err)
	}

	rw, rh := *rectW, *rectH
	if rw == 0 {
		rw = float64(*width)
	}
	if rh == 0 {
		rh = float64(*height)
	}
	rect := render.Rect{X: 0, Y: 0, Width: rw, Height: rh}

	stride := *width * format.BytesPerPixel()
	buf := make([]byte, stride*(*height))

	engine := render.NewEngine(g)
	defer engine.Close()
	if err := engine.RenderIntoBuffer(root, rect, buf, *width, *height, stride, format); err != nil {
		return fmt.Errorf("firtreectl: render: %w", err)
	}

	out := os.Stdout
	if *outPath != "-" {
		f, err := os.Create(*outPath)
		if err != nil {
			return fmt.Errorf("firtreectl: creating %s: %w", *outPath, err)
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "FIRTREE1 %s %d %d\n", *formatName, *width, *height)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("firtreectl: writing output: %w", err)
	}
	return w.Flush()
}
