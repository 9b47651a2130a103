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
	"tinygo.org/x/go-llvm"

	"github.com/dbhardwaj1904/firtree/codegen"
	"github.com/dbhardwaj1904/firtree/quark"
	"github.com/dbhardwaj1904/firtree/types"
)

// The three sampler intrinsics are never given a body here: they are
// left as external declarations for the graph specialiser to resolve
// into a per-sampler-id switch (spec.md §4.F steps 4-6). Everything
// else — the math library — is a true compiler intrinsic, inlined
// directly into the caller's IR by this package, exactly the way the
// teacher's own gapil front end treats its builtin functions as
// ordinary declared prototypes resolved through the same overload
// machinery as user code.
const (
	nameSample           = "sample"
	nameSamplerTransform = "samplerTransform"
	nameSamplerExtent    = "samplerExtent"
)

// mathOverloadTypes is every type the elementwise math builtins are
// overloaded across: float for the scalar overload plus every vector
// specifier. vectorOnlyTypes drops float, for the vector-only builtins.
var mathOverloadTypes = []types.Type{types.FloatT, types.Vec2T, types.Vec3T, types.Vec4T, types.ColorT}
var vectorOnlyTypes = []types.Type{types.Vec2T, types.Vec3T, types.Vec4T, types.ColorT}

type intrinsicBuilder struct {
	mod     *codegen.Module
	quarks  *quark.Table
	externs map[string]*codegen.Function
}

func newIntrinsicBuilder(mod *codegen.Module, quarks *quark.Table) *intrinsicBuilder {
	return &intrinsicBuilder{mod: mod, quarks: quarks, externs: map[string]*codegen.Function{}}
}

func (ib *intrinsicBuilder) declare(protos *types.Set, name string, ret types.Type, params ...types.Type) {
	ps := make([]types.Parameter, len(params))
	for i, t := range params {
		ps[i] = types.Parameter{Type: t, Name: "_"}
	}
	_ = protos.Declare(&types.Prototype{Name: name, Qualifier: types.Intrinsic, Return: ret, Params: ps, HasBody: true})
}

// registerAll declares every intrinsic prototype. Declaration
// conflicts cannot occur here (the set is empty when this runs), so
// errors are ignored; a later user redeclaration of the same name
// reports as an ordinary conflicting-declaration error from the
// declaration pass.
func (ib *intrinsicBuilder) registerAll(protos *types.Set) {
	ib.declare(protos, nameSample, types.Vec4T, types.SamplerT, types.Vec2T)
	ib.declare(protos, nameSamplerTransform, types.Vec2T, types.SamplerT, types.Vec2T)
	ib.declare(protos, nameSamplerExtent, types.Vec4T, types.SamplerT)

	for _, t := range mathOverloadTypes {
		ib.declare(protos, "abs", t, t)
		ib.declare(protos, "sqrt", t, t)
		ib.declare(protos, "sin", t, t)
		ib.declare(protos, "cos", t, t)
		ib.declare(protos, "tan", t, t)
		ib.declare(protos, "asin", t, t)
		ib.declare(protos, "acos", t, t)
		ib.declare(protos, "atan", t, t)
		ib.declare(protos, "atan2", t, t, t)
		ib.declare(protos, "exp", t, t)
		ib.declare(protos, "log", t, t)
		ib.declare(protos, "floor", t, t)
		ib.declare(protos, "ceil", t, t)
		ib.declare(protos, "min", t, t, t)
		ib.declare(protos, "max", t, t, t)
		ib.declare(protos, "mod", t, t, t)
		ib.declare(protos, "pow", t, t, t)
		ib.declare(protos, "clamp", t, t, t, t)
		ib.declare(protos, "mix", t, t, t, t)
		ib.declare(protos, "step", t, t, t)
		ib.declare(protos, "smoothstep", t, t, t, t)
	}
	for _, t := range vectorOnlyTypes {
		ib.declare(protos, "dot", types.FloatT, t, t)
		ib.declare(protos, "length", types.FloatT, t)
		ib.declare(protos, "distance", types.FloatT, t, t)
		ib.declare(protos, "normalize", t, t)
		ib.declare(protos, "cross", t, t, t)
	}
}

// IsSamplerIntrinsic reports whether name is one of the three opaque
// sampler-graph intrinsics the specialiser resolves.
func IsSamplerIntrinsic(name string) bool {
	return name == nameSample || name == nameSamplerTransform || name == nameSamplerExtent
}

// emitSamplerCall lowers a call to sample/samplerTransform/samplerExtent
// to a call against an external function of the same name; the
// function is declared once per module and left unresolved for the
// specialiser. Every one of the three takes the sampler_id as its
// first, 32-bit argument — never a <4 x float> — since that is the
// value the specialiser's switch dispatch (spec.md §4.F steps 4-6)
// actually branches on.
func (ib *intrinsicBuilder) emitSamplerCall(b *codegen.Builder, name string, args []*codegen.Value) *codegen.Value {
	fn, ok := ib.mod.Func(name)
	if !ok {
		paramTys := []llvm.Type{ib.mod.Types.Sampler}
		retTy := ib.mod.Types.Vec4
		switch name {
		case nameSample:
			paramTys = append(paramTys, ib.mod.Types.Vec4)
		case nameSamplerTransform:
			paramTys = append(paramTys, ib.mod.Types.Vec4)
		case nameSamplerExtent:
			// sampler_id only.
		}
		fn = ib.mod.Function(name, retTy, paramTys...)
	}
	return b.Call(fn, args, "")
}

// libmExtern lazily declares (once per module) an external two-argument
// scalar libm function such as "atan2f" or "powf"; libmExtern1 is the
// one-argument form ("sqrtf", "sinf", ...). Both serve the math
// builtins that have no direct LLVM instruction.
func (ib *intrinsicBuilder) libmExtern(cname string) *codegen.Function {
	if fn, ok := ib.externs[cname]; ok {
		return fn
	}
	fn := ib.mod.Function(cname, ib.mod.Types.Float32, ib.mod.Types.Float32, ib.mod.Types.Float32)
	ib.externs[cname] = fn
	return fn
}

func (ib *intrinsicBuilder) libmExtern1(cname string) *codegen.Function {
	if fn, ok := ib.externs[cname]; ok {
		return fn
	}
	fn := ib.mod.Function(cname, ib.mod.Types.Float32, ib.mod.Types.Float32)
	ib.externs[cname] = fn
	return fn
}

// emitMath lowers one math-library builtin call. t is the resolved
// overload's type (the first parameter's type, which for every
// builtin here is also every other parameter's type and, except for
// dot/length/distance, the return type).
func (ib *intrinsicBuilder) emitMath(b *codegen.Builder, name string, t types.Type, args []*codegen.Value) *codegen.Value {
	isVec := t.IsVector()
	scalarCall := func(cname string, a *codegen.Value) *codegen.Value {
		fn := ib.libmExtern1(cname)
		return b.Call(fn, []*codegen.Value{a}, "")
	}
	elementwiseScalarFn := func(cname string, a *codegen.Value) *codegen.Value {
		if !isVec {
			return scalarCall(cname, a)
		}
		fn := ib.libmExtern1(cname)
		out := a
		for lane := 0; lane < t.Arity(); lane++ {
			v := b.Call(fn, []*codegen.Value{b.ExtractLane(a, lane)}, "")
			out = b.InsertLane(out, lane, v)
		}
		return out
	}

	elementwiseFn2 := func(cname string, a, c *codegen.Value) *codegen.Value {
		fn := ib.libmExtern(cname)
		if !isVec {
			return b.Call(fn, []*codegen.Value{a, c}, "")
		}
		out := a
		for lane := 0; lane < t.Arity(); lane++ {
			v := b.Call(fn, []*codegen.Value{b.ExtractLane(a, lane), b.ExtractLane(c, lane)}, "")
			out = b.InsertLane(out, lane, v)
		}
		return out
	}

	switch name {
	case "abs":
		zero := zeroOf(b, t)
		neg := b.FSub(zero, args[0])
		cond := b.FCmp(llvm.FloatOLT, args[0], zero)
		return b.Select(cond, neg, args[0])
	case "sqrt":
		return elementwiseScalarFn("sqrtf", args[0])
	case "sin":
		return elementwiseScalarFn("sinf", args[0])
	case "cos":
		return elementwiseScalarFn("cosf", args[0])
	case "tan":
		return elementwiseScalarFn("tanf", args[0])
	case "asin":
		return elementwiseScalarFn("asinf", args[0])
	case "acos":
		return elementwiseScalarFn("acosf", args[0])
	case "atan":
		return elementwiseScalarFn("atanf", args[0])
	case "atan2":
		return elementwiseFn2("atan2f", args[0], args[1])
	case "exp":
		return elementwiseScalarFn("expf", args[0])
	case "log":
		return elementwiseScalarFn("logf", args[0])
	case "floor":
		return elementwiseScalarFn("floorf", args[0])
	case "ceil":
		return elementwiseScalarFn("ceilf", args[0])
	case "step":
		// 0 where x < edge, 1 otherwise (args[0] = edge, args[1] = x).
		cond := b.FCmp(llvm.FloatOLT, args[1], args[0])
		return b.Select(cond, zeroOf(b, t), oneOf(b, t))
	case "smoothstep":
		edge0, edge1, x := args[0], args[1], args[2]
		frac := b.FDiv(b.FSub(x, edge0), b.FSub(edge1, edge0))
		lo := b.Select(b.FCmp(llvm.FloatOLT, frac, zeroOf(b, t)), zeroOf(b, t), frac)
		tt := b.Select(b.FCmp(llvm.FloatOGT, lo, oneOf(b, t)), oneOf(b, t), lo)
		three := constOf(b, t, 3)
		two := constOf(b, t, 2)
		poly := b.FSub(three, b.FMul(two, tt))
		return b.FMul(b.FMul(tt, tt), poly)
	case "distance":
		diff := b.FSub(args[0], args[1])
		sum := b.FMul(b.ExtractLane(diff, 0), b.ExtractLane(diff, 0))
		for lane := 1; lane < t.Arity(); lane++ {
			sum = b.FAdd(sum, b.FMul(b.ExtractLane(diff, lane), b.ExtractLane(diff, lane)))
		}
		return scalarCall("sqrtf", sum)
	case "cross":
		ax, ay, az := b.ExtractLane(args[0], 0), b.ExtractLane(args[0], 1), laneOrZero(b, args[0], 2, t)
		bx, by, bz := b.ExtractLane(args[1], 0), b.ExtractLane(args[1], 1), laneOrZero(b, args[1], 2, t)
		cx := b.FSub(b.FMul(ay, bz), b.FMul(az, by))
		cy := b.FSub(b.FMul(az, bx), b.FMul(ax, bz))
		cz := b.FSub(b.FMul(ax, by), b.FMul(ay, bx))
		out := b.InsertLane(args[0], 0, cx)
		out = b.InsertLane(out, 1, cy)
		if t.Arity() >= 3 {
			out = b.InsertLane(out, 2, cz)
		}
		return out
	case "min":
		cond := b.FCmp(llvm.FloatOLT, args[0], args[1])
		return b.Select(cond, args[0], args[1])
	case "max":
		cond := b.FCmp(llvm.FloatOGT, args[0], args[1])
		return b.Select(cond, args[0], args[1])
	case "clamp":
		lo := b.Select(b.FCmp(llvm.FloatOLT, args[0], args[1]), args[1], args[0])
		return b.Select(b.FCmp(llvm.FloatOGT, lo, args[2]), args[2], lo)
	case "mix":
		// a*(1-t) + b*t
		one := oneOf(b, t)
		invT := b.FSub(one, args[2])
		return b.FAdd(b.FMul(args[0], invT), b.FMul(args[1], args[2]))
	case "mod":
		// x - y*floor(x/y)
		div := b.FDiv(args[0], args[1])
		fl := elementwiseScalarFn("floorf", div)
		return b.FSub(args[0], b.FMul(args[1], fl))
	case "pow":
		if !isVec {
			fn := ib.libmExtern("powf")
			return b.Call(fn, args, "")
		}
		fn := ib.libmExtern("powf")
		out := args[0]
		for lane := 0; lane < t.Arity(); lane++ {
			v := b.Call(fn, []*codegen.Value{b.ExtractLane(args[0], lane), b.ExtractLane(args[1], lane)}, "")
			out = b.InsertLane(out, lane, v)
		}
		return out
	case "dot":
		sum := b.FMul(b.ExtractLane(args[0], 0), b.ExtractLane(args[1], 0))
		for lane := 1; lane < t.Arity(); lane++ {
			sum = b.FAdd(sum, b.FMul(b.ExtractLane(args[0], lane), b.ExtractLane(args[1], lane)))
		}
		return sum
	case "length":
		sum := b.FMul(b.ExtractLane(args[0], 0), b.ExtractLane(args[0], 0))
		for lane := 1; lane < t.Arity(); lane++ {
			sum = b.FAdd(sum, b.FMul(b.ExtractLane(args[0], lane), b.ExtractLane(args[0], lane)))
		}
		return scalarCall("sqrtf", sum)
	case "normalize":
		sum := b.FMul(b.ExtractLane(args[0], 0), b.ExtractLane(args[0], 0))
		for lane := 1; lane < t.Arity(); lane++ {
			sum = b.FAdd(sum, b.FMul(b.ExtractLane(args[0], lane), b.ExtractLane(args[0], lane)))
		}
		invLen := b.FDiv(oneOfScalar(b), scalarCall("sqrtf", sum))
		return b.FMul(args[0], b.Splat(invLen))
	default:
		panic("lower: unhandled math intrinsic " + name)
	}
}

func zeroOf(b *codegen.Builder, t types.Type) *codegen.Value {
	z := b.Module().ConstFloat(0)
	if t.IsVector() {
		return b.Splat(z)
	}
	return z
}

func oneOf(b *codegen.Builder, t types.Type) *codegen.Value {
	o := b.Module().ConstFloat(1)
	if t.IsVector() {
		return b.Splat(o)
	}
	return o
}

func oneOfScalar(b *codegen.Builder) *codegen.Value { return b.Module().ConstFloat(1) }

// constOf builds the scalar or (splatted) vector constant v, matching t.
func constOf(b *codegen.Builder, t types.Type, v float64) *codegen.Value {
	c := b.Module().ConstFloat(v)
	if t.IsVector() {
		return b.Splat(c)
	}
	return c
}

// laneOrZero extracts lane from v if t is wide enough to have it,
// otherwise returns a zero scalar — used by cross to treat a
// lower-arity vector (e.g. vec2) as embedded in the xy-plane.
func laneOrZero(b *codegen.Builder, v *codegen.Value, lane int, t types.Type) *codegen.Value {
	if lane < t.Arity() {
		return b.ExtractLane(v, lane)
	}
	return b.Module().ConstFloat(0)
}
