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

// Package kernel implements the compiled-kernel object (spec.md
// §4.D): it owns one IR module plus the list of kernel functions
// discovered in it, and is the unit the sampler graph (package
// sampler) wraps to build a kernel sampler node.
package kernel

import (
	"github.com/dbhardwaj1904/firtree/codegen"
	"github.com/dbhardwaj1904/firtree/lower"
	"github.com/dbhardwaj1904/firtree/quark"
	"github.com/dbhardwaj1904/firtree/types"
)

// TargetKind classifies a kernel function by its return type:
// TargetRender (vec4 return) is the only target the render engine can
// execute; TargetReduce (void return) only has its signature modelled
// here — execution is an explicit Non-goal (spec.md §9).
type TargetKind int

const (
	TargetRender TargetKind = iota
	TargetReduce
)

// ArgSpec is the externally visible parameter set of a kernel
// function: spec.md §3's "Kernel argument spec".
type ArgSpec struct {
	Name     string
	Quark    quark.Quark
	Type     types.Type
	IsStatic bool
}

// Record describes one kernel function found in a compiled Object.
type Record struct {
	Name   string
	Return types.Type
	Target TargetKind
	Args   []ArgSpec
	Entry  *codegen.Function
}

// Object wraps one successfully compiled IR module plus its kernel
// function records (spec.md §4.D). An Object is either valid (the
// last Compile succeeded) or invalid (never compiled, or the last
// compile failed) — spec.md §3 Invariants.
type Object struct {
	Module  *codegen.Module
	Kernels []Record
	valid   bool
}

// Valid reports whether this Object's module is the result of the
// most recent successful compile.
func (o *Object) Valid() bool { return o != nil && o.valid }

// Invalidate marks the Object invalid without discarding the last
// good module — callers (package sampler) still need the old module
// available until a new compile either replaces or definitively fails
// to replace it, but must stop treating it as usable for new renders.
func (o *Object) Invalidate() { o.valid = false }

// Compile parses and lowers src, producing a new Object on success.
// On failure it returns a non-nil Object (so kernels that did compile
// are still enumerable per spec.md scenario S5) together with the
// diagnostic log, and Valid() reports false.
func Compile(quarks *quark.Table, src string) (*Object, *lower.Log, bool) {
	mod, records, log, ok := lower.Compile(quarks, src)
	obj := &Object{Module: mod, valid: ok}
	for _, r := range records {
		target := TargetRender
		if r.Return == types.VoidT {
			target = TargetReduce
		}
		args := make([]ArgSpec, len(r.Args))
		for i, a := range r.Args {
			args[i] = ArgSpec{Name: a.Name, Quark: a.Quark, Type: a.Type, IsStatic: a.IsStatic}
		}
		obj.Kernels = append(obj.Kernels, Record{
			Name:   r.Name,
			Return: r.Return,
			Target: target,
			Args:   args,
			Entry:  r.Entry,
		})
	}
	return obj, log, ok
}

// ByName returns the kernel record with the given name, if any.
func (o *Object) ByName(name string) (Record, bool) {
	for _, r := range o.Kernels {
		if r.Name == name {
			return r, true
		}
	}
	return Record{}, false
}
