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

import "tinygo.org/x/go-llvm"

// Value is an SSA value together with its LLVM type. Package lower
// additionally tags every codegen.Value it produces with a
// types.Type (spec.md §4.C: "returns a value carrying both IR handle
// and logical type") in its own emitted-value wrapper; codegen itself
// only needs the LLVM type to build further instructions.
type Value struct {
	ty   llvm.Type
	llvm llvm.Value
}

// Type returns the LLVM type of the value.
func (v *Value) Type() llvm.Type { return v.ty }

// ConstFloat returns a float32 constant.
func (m *Module) ConstFloat(v float64) *Value {
	return &Value{ty: m.Types.Float32, llvm: llvm.ConstFloat(m.Types.Float32, v)}
}

// ConstInt returns a 32-bit integer constant.
func (m *Module) ConstInt(v int64) *Value {
	return &Value{ty: m.Types.Int32, llvm: llvm.ConstInt(m.Types.Int32, uint64(v), true)}
}

// ConstBool returns a boolean constant.
func (m *Module) ConstBool(v bool) *Value {
	i := uint64(0)
	if v {
		i = 1
	}
	return &Value{ty: m.Types.Bool, llvm: llvm.ConstInt(m.Types.Bool, i, false)}
}

// ConstVec4 returns a constant <4 x float> with the given lanes. Used
// for vec2/vec3/vec4/color literals and for inlining a static kernel
// argument's bound vector value at specialise time (spec.md §4.F
// step 7).
func (m *Module) ConstVec4(x, y, z, w float64) *Value {
	lane := func(f float64) llvm.Value { return llvm.ConstFloat(m.Types.Float32, f) }
	v := llvm.ConstVector([]llvm.Value{lane(x), lane(y), lane(z), lane(w)})
	return &Value{ty: m.Types.Vec4, llvm: v}
}

// ConstSampler returns a constant sampler_id value: the graph node
// index of a bound sampler argument, the key the specialiser's
// sample()/samplerTransform()/samplerExtent() switches dispatch on.
func (m *Module) ConstSampler(id uint32) *Value {
	return &Value{ty: m.Types.Sampler, llvm: llvm.ConstInt(m.Types.Int32, uint64(id), false)}
}

// TransparentPixel is the vec4(0,0,0,0) value the specialiser returns
// from the default case of its sample() and samplerExtent() switches
// (spec.md §4.F step 4, §8 "Extent conservatism"); the default case of
// samplerTransform() returns the coordinate unchanged instead.
func (m *Module) TransparentPixel() *Value { return m.ConstVec4(0, 0, 0, 0) }
