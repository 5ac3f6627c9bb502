// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package btree

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Entry represents a single key/value pair in the tree.  Entries are ordered
// by Key only; two entries with equal keys are the same entry as far as the
// tree is concerned, whatever their values.
type Entry[K constraints.Ordered, V any] struct {
	Key   K
	Value V
}

// entries stores entries in a node.
type entries[K constraints.Ordered, V any] []Entry[K, V]

// insertAt inserts a value into the given index, pushing all subsequent values
// forward.
func (s *entries[K, V]) insertAt(index int, entry Entry[K, V]) {
	var zero Entry[K, V]
	*s = append(*s, zero)
	if index < len(*s) {
		copy((*s)[index+1:], (*s)[index:])
	}
	(*s)[index] = entry
}

// removeAt removes a value at a given index, pulling all subsequent values
// back.
func (s *entries[K, V]) removeAt(index int) Entry[K, V] {
	entry := (*s)[index]
	copy((*s)[index:], (*s)[index+1:])
	var zero Entry[K, V]
	(*s)[len(*s)-1] = zero
	*s = (*s)[:len(*s)-1]
	return entry
}

// pop removes and returns the last element in the list.
func (s *entries[K, V]) pop() (out Entry[K, V]) {
	index := len(*s) - 1
	out = (*s)[index]
	var zero Entry[K, V]
	(*s)[index] = zero
	*s = (*s)[:index]
	return
}

// truncate truncates this instance at index so that it contains only the
// first index entries. index must be less than or equal to length.
func (s *entries[K, V]) truncate(index int) {
	var toClear entries[K, V]
	*s, toClear = (*s)[:index], (*s)[index:]
	var zero Entry[K, V]
	for i := 0; i < len(toClear); i++ {
		toClear[i] = zero
	}
}

// find returns the number of entries whose key is less than the given key,
// which is also the index where an entry with that key belongs.  'found' is
// true if an entry with the key already exists at that index.
func (s entries[K, V]) find(key K) (index int, found bool) {
	i := sort.Search(len(s), func(i int) bool {
		return !(s[i].Key < key)
	})
	return i, i < len(s) && s[i].Key == key
}

// children stores child nodes in a node.
type children[K constraints.Ordered, V any] []*node[K, V]

// insertAt inserts a value into the given index, pushing all subsequent values
// forward.
func (c *children[K, V]) insertAt(index int, n *node[K, V]) {
	*c = append(*c, nil)
	if index < len(*c) {
		copy((*c)[index+1:], (*c)[index:])
	}
	(*c)[index] = n
}

// removeAt removes a value at a given index, pulling all subsequent values
// back.
func (c *children[K, V]) removeAt(index int) *node[K, V] {
	n := (*c)[index]
	copy((*c)[index:], (*c)[index+1:])
	(*c)[len(*c)-1] = nil
	*c = (*c)[:len(*c)-1]
	return n
}

// pop removes and returns the last element in the list.
func (c *children[K, V]) pop() (out *node[K, V]) {
	index := len(*c) - 1
	out = (*c)[index]
	(*c)[index] = nil
	*c = (*c)[:index]
	return
}

// truncate truncates this instance at index so that it contains only the
// first index children. index must be less than or equal to length.
func (c *children[K, V]) truncate(index int) {
	var toClear children[K, V]
	*c, toClear = (*c)[:index], (*c)[index:]
	for i := 0; i < len(toClear); i++ {
		toClear[i] = nil
	}
}
