// Copyright 2014 Google Inc.
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

//go:build go1.18
// +build go1.18

// Package btree implements in-memory ordered key-value B-trees of arbitrary
// degree.
//
// It is not meant for persistent storage solutions; the tree is rebuilt in
// memory from scratch on process start.
//
// Within this tree, each node contains a sorted slice of entries and a
// (possibly nil) slice of children.  A node is a leaf iff it has no children,
// and an internal node always has exactly one more child than it has entries.
// Every node other than the root holds between degree-1 and 2*degree-1
// entries, and all leaves are at the same depth.  The empty tree is a root
// leaf without entries.
//
// Both insertion and deletion work top-down in a single pass: a full child is
// split before insertion descends into it, and a minimal child is grown (by
// rotating an entry from a sibling or merging with one) before deletion
// descends into it.  Hence no operation ever has to walk back up the tree.
//
// Keys must be totally ordered by the < operator.  Floating point keys must
// not be NaN; the tree does not detect this.
package btree

import "golang.org/x/exp/constraints"

// DefaultDegree is the minimum degree of a tree when none is configured.
// New(DefaultDegree) creates a 2-3-4 tree.
const DefaultDegree = 2

// Iterator allows callers of {A/De}scend* to iterate in-order over portions of
// the tree.  When this function returns false, iteration will stop and the
// associated {A/De}scend* function will immediately return.
type Iterator[K constraints.Ordered, V any] func(key K, value V) bool

// node is an internal node in a tree.
//
// It must at all times maintain the invariant that either
//   - len(children) == 0, len(entries) unconstrained
//   - len(children) == len(entries) + 1
type node[K constraints.Ordered, V any] struct {
	entries  entries[K, V]
	children children[K, V]
}

// leaf reports whether the node is terminal.
func (n *node[K, V]) leaf() bool {
	return len(n.children) == 0
}

// split splits the given node at the given index.  The current node shrinks,
// and this function returns the entry that existed at that index and a new
// node containing all entries/children after it.
func (n *node[K, V]) split(i int) (Entry[K, V], *node[K, V]) {
	entry := n.entries[i]
	next := new(node[K, V])
	next.entries = append(next.entries, n.entries[i+1:]...)
	n.entries.truncate(i)
	if !n.leaf() {
		next.children = append(next.children, n.children[i+1:]...)
		n.children.truncate(i + 1)
	}
	return entry, next
}

// maybeSplitChild checks if a child should be split, and if so splits it.
// Returns whether or not a split occurred.
func (n *node[K, V]) maybeSplitChild(i, maxEntries int) bool {
	if len(n.children[i].entries) < maxEntries {
		return false
	}
	entry, second := n.children[i].split(maxEntries / 2)
	n.entries.insertAt(i, entry)
	n.children.insertAt(i+1, second)
	return true
}

// insert inserts an entry into the subtree rooted at this node, making sure
// no nodes in the subtree exceed maxEntries entries.  Should an entry with an
// equal key be found along the way, its value is overwritten and the old value
// is returned.
func (n *node[K, V]) insert(key K, value V, maxEntries int) (_ V, _ bool) {
	i, found := n.entries.find(key)
	if found {
		out := n.entries[i].Value
		n.entries[i].Value = value
		return out, true
	}
	if n.leaf() {
		n.entries.insertAt(i, Entry[K, V]{Key: key, Value: value})
		return
	}
	if n.maybeSplitChild(i, maxEntries) {
		inTree := n.entries[i].Key
		switch {
		case key < inTree:
			// no change, we want first split node
		case inTree < key:
			i++ // we want second split node
		default:
			out := n.entries[i].Value
			n.entries[i].Value = value
			return out, true
		}
	}
	return n.children[i].insert(key, value, maxEntries)
}

// get finds the entry with the given key in the subtree and returns it.
// The returned entry is owned by the tree.
func (n *node[K, V]) get(key K) *Entry[K, V] {
	i, found := n.entries.find(key)
	if found {
		return &n.entries[i]
	} else if !n.leaf() {
		return n.children[i].get(key)
	}
	return nil
}

// min returns the first entry in the subtree.
func min[K constraints.Ordered, V any](n *node[K, V]) (_ Entry[K, V], found bool) {
	for !n.leaf() {
		n = n.children[0]
	}
	if len(n.entries) == 0 {
		return
	}
	return n.entries[0], true
}

// max returns the last entry in the subtree.
func max[K constraints.Ordered, V any](n *node[K, V]) (_ Entry[K, V], found bool) {
	for !n.leaf() {
		n = n.children[len(n.children)-1]
	}
	if len(n.entries) == 0 {
		return
	}
	return n.entries[len(n.entries)-1], true
}

// toRemove details what entry to remove in a node.remove call.
type toRemove int

const (
	removeKey toRemove = iota // removes the entry with the given key
	removeMin                 // removes smallest entry in the subtree
	removeMax                 // removes largest entry in the subtree
)

// remove removes an entry from the subtree rooted at this node.  Every child
// it descends into is first grown to hold more than minEntries entries, so the
// removal never leaves a non-root node under-full.
func (n *node[K, V]) remove(key K, minEntries int, typ toRemove) (_ Entry[K, V], _ bool) {
	var (
		i     int
		found bool
	)
	switch typ {
	case removeMax:
		if n.leaf() {
			return n.entries.pop(), true
		}
		i = len(n.entries)
	case removeMin:
		if n.leaf() {
			return n.entries.removeAt(0), true
		}
		i = 0
	case removeKey:
		i, found = n.entries.find(key)
		if n.leaf() {
			if found {
				return n.entries.removeAt(i), true
			}
			return
		}
	default:
		panic("invalid type")
	}
	// If we get to here, we have children.
	if found {
		return n.removeSeparator(i, minEntries)
	}
	if len(n.children[i].entries) <= minEntries {
		i = n.growChild(i, minEntries)
	}
	return n.children[i].remove(key, minEntries, typ)
}

// removeSeparator removes entry 'i' of an internal node.  The entry is
// replaced with its in-order predecessor if the left child can spare one,
// otherwise with its in-order successor if the right child can spare one.
// If neither can, both children are merged around the entry and the removal
// continues in the merged child.
func (n *node[K, V]) removeSeparator(i, minEntries int) (Entry[K, V], bool) {
	out := n.entries[i]
	var zero K
	switch {
	case minEntries < len(n.children[i].entries):
		n.entries[i], _ = n.children[i].remove(zero, minEntries, removeMax)
	case minEntries < len(n.children[i+1].entries):
		n.entries[i], _ = n.children[i+1].remove(zero, minEntries, removeMin)
	default:
		n.merge(i)
		return n.children[i].remove(out.Key, minEntries, removeKey)
	}
	return out, true
}

// growChild grows child 'i' to make sure it's possible to remove an entry from
// it while keeping it at minEntries, and returns the index of the child that
// now covers the key range child 'i' used to cover.
//
// To do so, we check:
//
//	a) left sibling has an entry to spare: rotate it through the parent
//	b) right sibling has an entry to spare: rotate it through the parent
//	c) we must merge with a sibling (the right one if any)
func (n *node[K, V]) growChild(i, minEntries int) int {
	if 0 < i && minEntries < len(n.children[i-1].entries) {
		// Steal from left child
		child, stealFrom := n.children[i], n.children[i-1]
		stolen := stealFrom.entries.pop()
		child.entries.insertAt(0, n.entries[i-1])
		n.entries[i-1] = stolen
		if !stealFrom.leaf() {
			child.children.insertAt(0, stealFrom.children.pop())
		}
		return i
	}
	if i < len(n.entries) && minEntries < len(n.children[i+1].entries) {
		// steal from right child
		child, stealFrom := n.children[i], n.children[i+1]
		stolen := stealFrom.entries.removeAt(0)
		child.entries = append(child.entries, n.entries[i])
		n.entries[i] = stolen
		if !stealFrom.leaf() {
			child.children = append(child.children, stealFrom.children.removeAt(0))
		}
		return i
	}
	if len(n.entries) <= i {
		i--
	}
	n.merge(i)
	return i
}

// merge merges child 'i+1' and the entry separating it from child 'i' into
// child 'i'.  The parent loses one entry and one child.
func (n *node[K, V]) merge(i int) {
	child := n.children[i]
	mergeEntry := n.entries.removeAt(i)
	mergeChild := n.children.removeAt(i + 1)
	child.entries = append(child.entries, mergeEntry)
	child.entries = append(child.entries, mergeChild.entries...)
	child.children = append(child.children, mergeChild.children...)
}

// optionalKey is a key that may be left unset to mean an unbounded end.
type optionalKey[K constraints.Ordered] struct {
	key   K
	valid bool
}

func optional[K constraints.Ordered](key K) optionalKey[K] {
	return optionalKey[K]{key: key, valid: true}
}

func unbounded[K constraints.Ordered]() optionalKey[K] {
	return optionalKey[K]{}
}

// ascend calls the iterator for every entry in the subtree within the range
// [start, stop) in ascending order.  It returns false once the iterator asks
// to stop or the range is exhausted.
func (n *node[K, V]) ascend(start, stop optionalKey[K], iter Iterator[K, V]) bool {
	var i int
	if start.valid {
		i, _ = n.entries.find(start.key)
	}
	for ; i < len(n.entries); i++ {
		if !n.leaf() && !n.children[i].ascend(start, stop, iter) {
			return false
		}
		entry := n.entries[i]
		if stop.valid && !(entry.Key < stop.key) {
			return false
		}
		if !iter(entry.Key, entry.Value) {
			return false
		}
	}
	if !n.leaf() {
		return n.children[len(n.children)-1].ascend(start, stop, iter)
	}
	return true
}

// descend calls the iterator for every entry in the subtree within the range
// [start, stop) in descending order, i.e., start is an inclusive upper bound
// and stop an exclusive lower bound.
func (n *node[K, V]) descend(start, stop optionalKey[K], iter Iterator[K, V]) bool {
	i, found := len(n.entries), false
	if start.valid {
		i, found = n.entries.find(start.key)
	}
	if found {
		// entries[i] equals start; everything to its right is greater.
		i++
	} else if !n.leaf() {
		if !n.children[i].descend(start, stop, iter) {
			return false
		}
	}
	for i--; 0 <= i; i-- {
		entry := n.entries[i]
		if stop.valid && !(stop.key < entry.Key) {
			return false
		}
		if !iter(entry.Key, entry.Value) {
			return false
		}
		if !n.leaf() && !n.children[i].descend(start, stop, iter) {
			return false
		}
	}
	return true
}

// BTree is a generic implementation of an ordered key-value B-tree.
//
// BTree stores entries in an ordered structure, allowing easy insertion,
// lookup, removal, and iteration.  The tree exclusively owns all of its nodes.
//
// BTree is not safe for concurrent use; callers that share a tree between
// goroutines must serialize access themselves.
type BTree[K constraints.Ordered, V any] struct {
	degree int
	length int
	root   *node[K, V]
}

// New creates a new B-tree with the given minimum degree.
//
// New(2), for example, will create a 2-3-4 tree (each node contains 1-3
// entries and 2-4 children).  New panics if degree is less than 2.
func New[K constraints.Ordered, V any](degree int) *BTree[K, V] {
	if degree <= 1 {
		panic("bad degree")
	}
	return &BTree[K, V]{
		degree: degree,
		root:   new(node[K, V]),
	}
}

// maxEntries returns the max number of entries to allow per node.
func (t *BTree[K, V]) maxEntries() int {
	return t.degree*2 - 1
}

// minEntries returns the min number of entries to allow per node
// (ignored for the root node).
func (t *BTree[K, V]) minEntries() int {
	return t.degree - 1
}

// Degree returns the minimum degree of the tree.
func (t *BTree[K, V]) Degree() int {
	return t.degree
}

// ReplaceOrInsert adds the given key/value pair to the tree.  If the key is
// already in the tree, its value is overwritten in place without restructuring
// the tree, and the old value is returned with true.  Otherwise, (zeroValue,
// false).
func (t *BTree[K, V]) ReplaceOrInsert(key K, value V) (_ V, _ bool) {
	if entry := t.root.get(key); entry != nil {
		out := entry.Value
		entry.Value = value
		return out, true
	}
	if t.maxEntries() <= len(t.root.entries) {
		entry, second := t.root.split(t.maxEntries() / 2)
		oldroot := t.root
		t.root = new(node[K, V])
		t.root.entries = append(t.root.entries, entry)
		t.root.children = append(t.root.children, oldroot, second)
	}
	out, outb := t.root.insert(key, value, t.maxEntries())
	if !outb {
		t.length++
	}
	return out, outb
}

// Delete removes the entry with the given key from the tree, returning its
// value.  If no such entry exists, returns (zeroValue, false) and leaves the
// tree untouched.
func (t *BTree[K, V]) Delete(key K) (V, bool) {
	if t.root.get(key) == nil {
		var zero V
		return zero, false
	}
	entry, ok := t.delete(key, removeKey)
	return entry.Value, ok
}

// DeleteMin removes the smallest entry in the tree and returns it.
// If no such entry exists, returns (zeroValue, false).
func (t *BTree[K, V]) DeleteMin() (Entry[K, V], bool) {
	var zero K
	return t.delete(zero, removeMin)
}

// DeleteMax removes the largest entry in the tree and returns it.
// If no such entry exists, returns (zeroValue, false).
func (t *BTree[K, V]) DeleteMax() (Entry[K, V], bool) {
	var zero K
	return t.delete(zero, removeMax)
}

func (t *BTree[K, V]) delete(key K, typ toRemove) (_ Entry[K, V], _ bool) {
	if len(t.root.entries) == 0 {
		return
	}
	out, outb := t.root.remove(key, t.minEntries(), typ)
	if len(t.root.entries) == 0 && !t.root.leaf() {
		t.root = t.root.children[0]
	}
	if outb {
		t.length--
	}
	return out, outb
}

// AscendRange calls the iterator for every value in the tree within the range
// [greaterOrEqual, lessThan), until iterator returns false.
func (t *BTree[K, V]) AscendRange(greaterOrEqual, lessThan K, iterator Iterator[K, V]) {
	t.root.ascend(optional(greaterOrEqual), optional(lessThan), iterator)
}

// AscendLessThan calls the iterator for every value in the tree within the range
// [first, pivot), until iterator returns false.
func (t *BTree[K, V]) AscendLessThan(pivot K, iterator Iterator[K, V]) {
	t.root.ascend(unbounded[K](), optional(pivot), iterator)
}

// AscendGreaterOrEqual calls the iterator for every value in the tree within
// the range [pivot, last], until iterator returns false.
func (t *BTree[K, V]) AscendGreaterOrEqual(pivot K, iterator Iterator[K, V]) {
	t.root.ascend(optional(pivot), unbounded[K](), iterator)
}

// Ascend calls the iterator for every value in the tree within the range
// [first, last], until iterator returns false.
func (t *BTree[K, V]) Ascend(iterator Iterator[K, V]) {
	t.root.ascend(unbounded[K](), unbounded[K](), iterator)
}

// DescendRange calls the iterator for every value in the tree within the range
// [lessOrEqual, greaterThan), until iterator returns false.
func (t *BTree[K, V]) DescendRange(lessOrEqual, greaterThan K, iterator Iterator[K, V]) {
	t.root.descend(optional(lessOrEqual), optional(greaterThan), iterator)
}

// DescendLessOrEqual calls the iterator for every value in the tree within the range
// [pivot, first], until iterator returns false.
func (t *BTree[K, V]) DescendLessOrEqual(pivot K, iterator Iterator[K, V]) {
	t.root.descend(optional(pivot), unbounded[K](), iterator)
}

// DescendGreaterThan calls the iterator for every value in the tree within
// the range [last, pivot), until iterator returns false.
func (t *BTree[K, V]) DescendGreaterThan(pivot K, iterator Iterator[K, V]) {
	t.root.descend(unbounded[K](), optional(pivot), iterator)
}

// Descend calls the iterator for every value in the tree within the range
// [last, first], until iterator returns false.
func (t *BTree[K, V]) Descend(iterator Iterator[K, V]) {
	t.root.descend(unbounded[K](), unbounded[K](), iterator)
}

// Get looks for the given key in the tree, returning its value.  It returns
// (zeroValue, false) if unable to find that key.
func (t *BTree[K, V]) Get(key K) (_ V, _ bool) {
	if entry := t.root.get(key); entry != nil {
		return entry.Value, true
	}
	return
}

// Min returns the smallest entry in the tree, or (zeroValue, false) if the tree is empty.
func (t *BTree[K, V]) Min() (Entry[K, V], bool) {
	return min(t.root)
}

// Max returns the largest entry in the tree, or (zeroValue, false) if the tree is empty.
func (t *BTree[K, V]) Max() (Entry[K, V], bool) {
	return max(t.root)
}

// Has returns true if the given key is in the tree.
func (t *BTree[K, V]) Has(key K) bool {
	return t.root.get(key) != nil
}

// Len returns the number of entries currently in the tree.
func (t *BTree[K, V]) Len() int {
	return t.length
}

// IsEmpty reports whether the tree holds no entries.
func (t *BTree[K, V]) IsEmpty() bool {
	return t.length == 0
}

// Height returns the number of node levels in the tree.  The empty tree has
// height 0 and a tree whose root is a non-empty leaf has height 1.
func (t *BTree[K, V]) Height() (height int) {
	if len(t.root.entries) == 0 {
		return
	}
	for n := t.root; ; n = n.children[0] {
		height++
		if n.leaf() {
			return
		}
	}
}

// Clear removes all entries from the tree.  The old nodes are simply
// dereferenced and left to Go's normal GC processes, which is much faster
// than calling Delete on all elements.
func (t *BTree[K, V]) Clear() {
	t.root, t.length = new(node[K, V]), 0
}
