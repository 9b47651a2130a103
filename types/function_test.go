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

package types_test

import (
	"testing"

	"github.com/dbhardwaj1904/firtree/types"
)

// S4: float f(float); float f(vec2); f(1) picks the float overload via
// an int->float widen, f(vec2(1,2)) picks the vec2 overload, f(1, 2)
// fails with an arity mismatch.
func TestOverloadResolutionScenarioS4(t *testing.T) {
	set := types.NewSet()
	fFloat := &types.Prototype{Name: "f", Qualifier: types.Function, Return: types.FloatT,
		Params: []types.Parameter{{Type: types.FloatT, Name: "x"}}}
	fVec2 := &types.Prototype{Name: "f", Qualifier: types.Function, Return: types.FloatT,
		Params: []types.Parameter{{Type: types.Vec2T, Name: "x"}}}
	if err := set.Declare(fFloat); err != nil {
		t.Fatalf("declare f(float): %v", err)
	}
	if err := set.Declare(fVec2); err != nil {
		t.Fatalf("declare f(vec2): %v", err)
	}

	got, err := set.Resolve("f", []types.Type{types.IntT})
	if err != nil {
		t.Fatalf("f(1): unexpected error: %v", err)
	}
	if got != fFloat {
		t.Errorf("f(1): got %v, want the float overload", got)
	}

	got, err = set.Resolve("f", []types.Type{types.Vec2T})
	if err != nil {
		t.Fatalf("f(vec2): unexpected error: %v", err)
	}
	if got != fVec2 {
		t.Errorf("f(vec2): got %v, want the vec2 overload", got)
	}

	if _, err := set.Resolve("f", []types.Type{types.IntT, types.IntT}); err == nil {
		t.Errorf("f(1, 2): expected an arity mismatch error, got none")
	}
}

// Overload resolution totality (spec.md §8): for any call, exactly one
// candidate is selected or a type error is reported, never both.
func TestOverloadResolutionTotality(t *testing.T) {
	set := types.NewSet()
	a := &types.Prototype{Name: "g", Params: []types.Parameter{{Type: types.FloatT}}}
	b := &types.Prototype{Name: "g", Params: []types.Parameter{{Type: types.IntT}}}
	if err := set.Declare(a); err != nil {
		t.Fatal(err)
	}
	if err := set.Declare(b); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		args []types.Type
	}{
		{"ambiguous: bool widens equally well to both", []types.Type{types.BoolT}},
		{"no match", []types.Type{types.Vec4T}},
		{"unknown name", nil},
	}
	for _, c := range cases {
		name := "g"
		if c.name == "unknown name" {
			name = "nosuchfunc"
		}
		proto, err := set.Resolve(name, c.args)
		if (proto != nil) == (err != nil) {
			t.Errorf("%s: got proto=%v err=%v, want exactly one set", c.name, proto, err)
		}
	}
}

func TestConflicts(t *testing.T) {
	a := &types.Prototype{Name: "h", Params: []types.Parameter{{Type: types.FloatT}}}
	b := &types.Prototype{Name: "h", Params: []types.Parameter{{Type: types.FloatT}}}
	if !a.Conflicts(b) {
		t.Errorf("identical signatures should conflict")
	}
	c := &types.Prototype{Name: "h", Params: []types.Parameter{{Type: types.IntT}}}
	if a.Conflicts(c) {
		t.Errorf("different parameter types should not conflict")
	}
}
