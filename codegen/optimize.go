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

// RunOptimizationPipeline runs the fixed sequence of LLVM passes
// required by spec.md §4.F step 9. The order is contractual: inlining
// must precede DCE, and instcombine must follow inlining so that the
// now-constant sampler_id switches collapse to direct calls before
// anything tries to discard them.
func RunOptimizationPipeline(m *Module) {
	pass := llvm.NewPassManager()
	defer pass.Dispose()

	pass.AddPromoteMemoryToRegisterPass()
	pass.AddSCCPPass()                // SCCP
	pass.AddFunctionInliningPass()    // high threshold: collapse child sample_fn calls
	pass.AddGlobalDCEPass()
	pass.AddInstructionCombiningPass() // collapses the now-constant sampler_id switches
	pass.AddCFGSimplificationPass()
	pass.AddReassociatePass()
	pass.AddLICMPass()
	pass.AddLoopDeletionPass()
	pass.AddInstructionCombiningPass()
	pass.AddAggressiveDCEPass()

	pass.Run(m.llvm)
}
