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

package kernel_test

import (
	"testing"

	"github.com/dbhardwaj1904/firtree/kernel"
	"github.com/dbhardwaj1904/firtree/quark"
)

func TestCompileAndByName(t *testing.T) {
	quarks := quark.NewTable()
	obj, log, ok := kernel.Compile(quarks, `
kernel vec4 solid() {
    return vec4(0, 1, 0, 1);
}
`)
	if !ok {
		t.Fatalf("compile failed: %s", log)
	}
	if !obj.Valid() {
		t.Fatalf("expected object to be valid")
	}
	r, ok := obj.ByName("solid")
	if !ok {
		t.Fatalf("expected kernel record %q", "solid")
	}
	if r.Target != kernel.TargetRender {
		t.Fatalf("expected TargetRender, got %v", r.Target)
	}
}

func TestCompileFailureInvalidatesObject(t *testing.T) {
	quarks := quark.NewTable()
	obj, log, ok := kernel.Compile(quarks, `kernel vec4 broken() { return undefinedThing; }`)
	if ok {
		t.Fatalf("expected compile failure")
	}
	if obj.Valid() {
		t.Fatalf("expected invalid object after failed compile")
	}
	if !log.HasErrors() {
		t.Fatalf("expected diagnostics")
	}
}
