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

// Package index provides in-memory key-value indexes that are safe for
// concurrent use.  In addition to the traditional single-tree index, it
// supports a partitioned index where the keys are hashed across multiple
// independently locked trees to reduce lock contention.
package index

import (
	"errors"
	"sort"
	"sync"

	"github.com/9rum/ordtree/internal/btree"
	"github.com/spaolacci/murmur3"
)

// Iterator is called for every entry visited by Ascend.  When it returns
// false, iteration stops.
type Iterator func(key string, value []byte) bool

// Index represents an ordered key-value index.
// All implementations must embed IndexBase for forward compatibility.
type Index interface {
	// Insert stores the value under the given key, overwriting any previous
	// value.  The previous value is returned along with true if there was one.
	Insert(key string, value []byte) (old []byte, replaced bool)

	// Get retrieves the value stored under the given key.
	Get(key string) (value []byte, found bool)

	// Remove deletes the given key and returns its value.
	Remove(key string) (value []byte, found bool)

	// Len returns the number of keys currently in the index.
	Len() int

	// Ascend visits every entry in ascending key order.
	Ascend(iterator Iterator)

	// Clear removes all keys from the index.
	Clear()
}

// IndexBase must be embedded to have forward compatible implementations.
type IndexBase struct {
}

func (IndexBase) Insert(key string, value []byte) (old []byte, replaced bool) {
	return
}
func (IndexBase) Get(key string) (value []byte, found bool) {
	return
}
func (IndexBase) Remove(key string) (value []byte, found bool) {
	return
}
func (IndexBase) Len() int {
	return 0
}
func (IndexBase) Ascend(iterator Iterator) {}
func (IndexBase) Clear()                   {}

// New creates a new index with the given arguments.  A single partition yields
// a LockedIndex, otherwise a PartitionedIndex with the given number of
// partitions is created.
func New(degree, partitions int) (Index, error) {
	if degree < 2 {
		return nil, errors.New("degree must be at least 2")
	}
	switch {
	case partitions < 1:
		return nil, errors.New("partitions must be positive")
	case partitions == 1:
		return NewLockedIndex(degree), nil
	default:
		return NewPartitionedIndex(degree, partitions), nil
	}
}

// clone returns a copy of the given value, so that callers never share
// the slices owned by the tree.
func clone(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}

// LockedIndex represents an index backed by a single B-tree that is guarded
// by a read-write mutex; lookups may proceed in parallel while mutations are
// serialized.
type LockedIndex struct {
	IndexBase
	mu    sync.RWMutex
	items *btree.BTree[string, []byte]
}

// NewLockedIndex creates a new locked index whose tree has the given degree.
func NewLockedIndex(degree int) *LockedIndex {
	return &LockedIndex{
		items: btree.New[string, []byte](degree),
	}
}

// Insert stores a copy of the value under the given key.
func (l *LockedIndex) Insert(key string, value []byte) ([]byte, bool) {
	value = clone(value)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.ReplaceOrInsert(key, value)
}

// Get returns a copy of the value stored under the given key.
func (l *LockedIndex) Get(key string) ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	value, ok := l.items.Get(key)
	return clone(value), ok
}

// Remove deletes the given key and returns its value.
func (l *LockedIndex) Remove(key string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.Delete(key)
}

// Len returns the number of keys currently in the index.
func (l *LockedIndex) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items.Len()
}

// Ascend visits every entry in ascending key order.  The read lock is held
// for the whole iteration, so the iterator must not modify the index.
func (l *LockedIndex) Ascend(iterator Iterator) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.items.Ascend(func(key string, value []byte) bool {
		return iterator(key, clone(value))
	})
}

// Clear removes all keys from the index.
func (l *LockedIndex) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items.Clear()
}

// PartitionedIndex represents an index whose keys are spread over multiple
// locked partitions by hash.  Operations on keys in different partitions do
// not contend with each other.
type PartitionedIndex struct {
	IndexBase
	partitions []*LockedIndex
}

// NewPartitionedIndex creates a new partitioned index with the given arguments.
func NewPartitionedIndex(degree, partitions int) *PartitionedIndex {
	index := &PartitionedIndex{
		partitions: make([]*LockedIndex, 0, partitions),
	}
	for len(index.partitions) < cap(index.partitions) {
		index.partitions = append(index.partitions, NewLockedIndex(degree))
	}
	return index
}

// partition returns the partition responsible for the given key.
func (p *PartitionedIndex) partition(key string) *LockedIndex {
	return p.partitions[murmur3.Sum32([]byte(key))%uint32(len(p.partitions))]
}

func (p *PartitionedIndex) Insert(key string, value []byte) ([]byte, bool) {
	return p.partition(key).Insert(key, value)
}

func (p *PartitionedIndex) Get(key string) ([]byte, bool) {
	return p.partition(key).Get(key)
}

func (p *PartitionedIndex) Remove(key string) ([]byte, bool) {
	return p.partition(key).Remove(key)
}

// Len returns the sum of the partition sizes.  Concurrent mutations may make
// the result stale by the time it is returned.
func (p *PartitionedIndex) Len() (length int) {
	for _, partition := range p.partitions {
		length += partition.Len()
	}
	return
}

// Ascend visits every entry in ascending key order.  It works on a snapshot
// taken partition by partition, so the iterator may modify the index.
func (p *PartitionedIndex) Ascend(iterator Iterator) {
	var snapshot []btree.Entry[string, []byte]
	for _, partition := range p.partitions {
		partition.Ascend(func(key string, value []byte) bool {
			snapshot = append(snapshot, btree.Entry[string, []byte]{Key: key, Value: value})
			return true
		})
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Key < snapshot[j].Key
	})
	for _, entry := range snapshot {
		if !iterator(entry.Key, entry.Value) {
			return
		}
	}
}

// Clear removes all keys from every partition.
func (p *PartitionedIndex) Clear() {
	for _, partition := range p.partitions {
		partition.Clear()
	}
}
