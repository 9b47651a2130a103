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

package codegen_test

import (
	"testing"

	"github.com/dbhardwaj1904/firtree/codegen"
)

func TestBuildConstantPixelFunc(t *testing.T) {
	m := codegen.NewModule("test")
	f := m.Function("const_red", m.Types.Vec4, m.Types.Float32, m.Types.Float32)
	f.Build(func(b *codegen.Builder) {
		b.Ret(m.ConstVec4(1, 0, 0, 1))
	})
	if err := m.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestAffineIdentity(t *testing.T) {
	if !codegen.Identity.IsIdentity() {
		t.Errorf("codegen.Identity.IsIdentity() = false, want true")
	}
	other := codegen.Affine{A: 2, D: 1}
	if other.IsIdentity() {
		t.Errorf("non-identity affine reported as identity")
	}
}

func TestInternalize(t *testing.T) {
	m := codegen.NewModule("test")
	kept := m.Function("sample_root", m.Types.Vec4, m.Types.Float32, m.Types.Float32)
	kept.Build(func(b *codegen.Builder) { b.Ret(m.TransparentPixel()) })
	helper := m.InternalFunction("helper", m.Types.Float32)
	helper.Build(func(b *codegen.Builder) { b.Ret(m.ConstFloat(0)) })

	m.Internalize(map[string]bool{"sample_root": true})
	if err := m.Verify(); err != nil {
		t.Fatalf("Verify after Internalize: %v", err)
	}
}
