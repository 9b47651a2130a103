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

import (
	"github.com/pkg/errors"

	"github.com/dbhardwaj1904/firtree/types"
)

// Validate walks every sampler reachable from root and reports the
// first problem found: a reference cycle, a kernel sampler whose
// Object failed to compile, a bound argument whose type does not
// match the kernel's declared parameter, or a missing binding for any
// declared parameter, static or not. Unlike a one-time graph-construction check,
// Validate is meant to be called again before every specialise/render
// pass (SPEC_FULL.md §4.E's supplemented re-validation feature): a
// sampler bound earlier as valid can be invalidated later by an
// unrelated Recompile on some other node in the graph.
func (g *Graph) Validate(root ID) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.validate(root, map[ID]bool{})
}

func (g *Graph) validate(id ID, onPath map[ID]bool) error {
	if onPath[id] {
		return errors.Errorf("sampler: cycle detected at sampler %d", id)
	}
	n, ok := g.Node(id)
	if !ok {
		return errors.Errorf("sampler: reference to unknown sampler %d", id)
	}
	if n.Kind != KindKernel {
		return nil
	}
	onPath[id] = true
	defer delete(onPath, id)

	if !n.Object.Valid() {
		return errors.Errorf("sampler %d: kernel object failed to compile", id)
	}
	rec, ok := n.Object.ByName(n.KernelName)
	if !ok {
		return errors.Errorf("sampler %d: kernel object no longer defines %q", id, n.KernelName)
	}

	for _, arg := range rec.Args {
		b, bound := n.Args[arg.Quark]
		if !bound {
			return errors.Errorf("sampler %d: argument %q is not bound", id, arg.Name)
		}
		if b.IsChild {
			if arg.Type.Specifier != types.Sampler {
				return errors.Errorf("sampler %d: argument %q is not a sampler parameter", id, arg.Name)
			}
			if err := g.validate(b.Child, onPath); err != nil {
				return err
			}
		} else {
			if !arg.IsStatic {
				return errors.Errorf("sampler %d: argument %q must be bound to a sampler, not a literal", id, arg.Name)
			}
			if b.Literal.Type.Unqualified() != arg.Type.Unqualified() {
				return errors.Errorf("sampler %d: argument %q bound to %s, kernel declares %s", id, arg.Name, b.Literal.Type, arg.Type)
			}
		}
	}
	return nil
}
