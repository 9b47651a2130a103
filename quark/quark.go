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

// Package quark interns kernel argument names into small, comparable
// 32-bit identifiers. Quarks are the map key for a kernel sampler's
// bound arguments; the graph specialiser's sample()/samplerTransform()/
// samplerExtent() switches are keyed by sampler graph ID, not by quark.
package quark

import "sync"

// Quark is an interned identifier. The zero Quark is never issued by
// a Table and may be used as a sentinel for "no argument".
type Quark uint32

// Table interns strings into Quarks. A Table grows monotonically: once
// a string has been interned, its Quark never changes and is never
// reused, for the lifetime of the Table. The zero Table is not usable;
// construct one with NewTable.
type Table struct {
	mu     sync.RWMutex
	byName map[string]Quark
	names  []string // names[q-1] is the string for Quark q
}

// NewTable returns an empty, ready-to-use Table.
func NewTable() *Table {
	return &Table{byName: map[string]Quark{}}
}

// Intern returns the Quark for name, allocating a new one if name has
// not been seen before by this Table.
func (t *Table) Intern(name string) Quark {
	t.mu.RLock()
	if q, ok := t.byName[name]; ok {
		t.mu.RUnlock()
		return q
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.byName[name]; ok {
		return q
	}
	t.names = append(t.names, name)
	q := Quark(len(t.names))
	t.byName[name] = q
	return q
}

// String returns the interned string for q, or "" if q was not issued
// by this Table.
func (t *Table) String(q Quark) string {
	if q == 0 {
		return ""
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx := int(q) - 1
	if idx < 0 || idx >= len(t.names) {
		return ""
	}
	return t.names[idx]
}

// Lookup returns the Quark already interned for name, and whether it
// was found. Unlike Intern, it never allocates a new Quark.
func (t *Table) Lookup(name string) (Quark, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	q, ok := t.byName[name]
	return q, ok
}
