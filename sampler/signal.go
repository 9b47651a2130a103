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

package sampler

// changeSignal classifies why a node's generation was bumped, mostly
// for documentation at call sites — every signal has the same effect
// today (bump the generation and propagate to parents), but keeping
// them distinct leaves room for the specialiser to one day react
// differently to, say, a pure extents/transform change versus a full
// module recompile.
type changeSignal int

const (
	signalModuleChanged changeSignal = iota
	signalContentsChanged
	signalExtentsTransformChanged
)

// propagateLocked bumps the generation of id and of every node that
// reaches id through registered parent links, each exactly once, so a
// cycle terminates here too. Callers must already hold g.mu for
// writing. BindChild performs no cycle check — see Validate for where
// that check actually happens, at specialise/render time rather than
// at bind time, matching spec.md's "validate, don't refuse early"
// design for this error class.
func (g *Graph) propagateLocked(id ID, sig changeSignal) {
	seen := map[ID]bool{}
	stack := []ID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		n := g.nodes[cur]
		n.generation++
		for parent := range n.parents {
			stack = append(stack, parent)
		}
	}
}
