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

// Package call invokes raw JITed function pointers. Go cannot call an
// unsafe.Pointer as a function directly, and MCJIT's own
// ExecutionEngine.RunFunction only marshals int/float/pointer scalar
// returns, not the <4 x float> vector every specialised pixel function
// would otherwise return — so each callable shape gets a tiny C
// function pointer cast here instead, grounded on the teacher repo's
// own core/codegen/call package.
package call

import "unsafe"

// void VFFP(void* f, float a, float b, void* p) { ((void (*)(float, float, float*))(f))(a, b, (float*)p); }
import "C"

// VFFP invokes f, a function of signature void(float, float, float*).
// Firtree's pixel-function entry point, package specialize's
// sample_root, has exactly this shape: two input coordinates and an
// out-pointer to four packed result lanes, the out-pointer return
// existing because MCJIT's RunFunction cannot marshal a vector return
// value.
func VFFP(f unsafe.Pointer, a, b float32, p unsafe.Pointer) {
	C.VFFP(f, C.float(a), C.float(b), p)
}
