// Adapted from https://github.com/google/btree/blob/v1.1.2/btree_test.go
// Copyright 2022 Sogang University
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

package btree

import (
	"flag"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

// perm returns a random permutation of n keys in the range [0, n).
func perm(n int) []int {
	return rand.Perm(n)
}

// rang returns an ordered list of keys in the range [0, n).
func rang(n int) (out []int) {
	for i := 0; i < n; i++ {
		out = append(out, i)
	}
	return
}

// rangrev returns a reversed ordered list of keys in the range [0, n).
func rangrev(n int) (out []int) {
	for i := n - 1; 0 <= i; i-- {
		out = append(out, i)
	}
	return
}

// all extracts all keys from a tree in order as a slice.
func all[V any](t *BTree[int, V]) (out []int) {
	t.Ascend(func(key int, _ V) bool {
		out = append(out, key)
		return true
	})
	return
}

// allrev extracts all keys from a tree in reverse order as a slice.
func allrev[V any](t *BTree[int, V]) (out []int) {
	t.Descend(func(key int, _ V) bool {
		out = append(out, key)
		return true
	})
	return
}

// verify checks every structural invariant of the tree and fails the test on
// the first violation.
func verify[K int | string, V any](tb testing.TB, t *BTree[K, V]) {
	tb.Helper()
	leafDepth := -1
	count := 0
	var walk func(n *node[K, V], depth int, lo, hi *K)
	walk = func(n *node[K, V], depth int, lo, hi *K) {
		if n != t.root && (len(n.entries) < t.minEntries() || t.maxEntries() < len(n.entries)) {
			tb.Fatalf("node at depth %d has %d entries, want [%d, %d]", depth, len(n.entries), t.minEntries(), t.maxEntries())
		}
		if t.maxEntries() < len(n.entries) {
			tb.Fatalf("root has %d entries, want at most %d", len(n.entries), t.maxEntries())
		}
		for i, entry := range n.entries {
			if 0 < i && !(n.entries[i-1].Key < entry.Key) {
				tb.Fatalf("entries out of order at depth %d: %v then %v", depth, n.entries[i-1].Key, entry.Key)
			}
			if lo != nil && !(*lo < entry.Key) {
				tb.Fatalf("key %v at depth %d not greater than separator %v", entry.Key, depth, *lo)
			}
			if hi != nil && !(entry.Key < *hi) {
				tb.Fatalf("key %v at depth %d not less than separator %v", entry.Key, depth, *hi)
			}
		}
		count += len(n.entries)
		if n.leaf() {
			if leafDepth < 0 {
				leafDepth = depth
			} else if leafDepth != depth {
				tb.Fatalf("leaves at depths %d and %d", leafDepth, depth)
			}
			return
		}
		if len(n.children) != len(n.entries)+1 {
			tb.Fatalf("node at depth %d has %d entries and %d children", depth, len(n.entries), len(n.children))
		}
		for i, child := range n.children {
			clo, chi := lo, hi
			if 0 < i {
				clo = &n.entries[i-1].Key
			}
			if i < len(n.entries) {
				chi = &n.entries[i].Key
			}
			walk(child, depth+1, clo, chi)
		}
	}
	walk(t.root, 0, nil, nil)
	if count != t.Len() {
		tb.Fatalf("tree holds %d entries, Len() = %d", count, t.Len())
	}
	if t.IsEmpty() != (count == 0) {
		tb.Fatalf("IsEmpty() = %v with %d entries", t.IsEmpty(), count)
	}
}

var btreeDegree = flag.Int("degree", 32, "B-tree degree")

func TestBTree(t *testing.T) {
	tr := New[int, int](*btreeDegree)
	const treeSize = 10000
	for i := 0; i < 10; i++ {
		if min, ok := tr.Min(); ok || min.Key != 0 {
			t.Fatalf("empty min, got %+v", min)
		}
		if max, ok := tr.Max(); ok || max.Key != 0 {
			t.Fatalf("empty max, got %+v", max)
		}
		for _, key := range perm(treeSize) {
			if x, ok := tr.ReplaceOrInsert(key, key); ok || x != 0 {
				t.Fatal("insert found key", key)
			}
		}
		for _, key := range perm(treeSize) {
			if !tr.Has(key) {
				t.Fatal("has did not find key", key)
			}
		}
		for _, key := range perm(treeSize) {
			if x, ok := tr.ReplaceOrInsert(key, -key); !ok || x != key {
				t.Fatal("insert didn't find key", key)
			}
		}
		if min, ok := tr.Min(); !ok || min.Key != 0 {
			t.Fatalf("min: ok %v want 0, got %+v", ok, min)
		}
		if max, ok := tr.Max(); !ok || max.Key != treeSize-1 {
			t.Fatalf("max: ok %v want %d, got %+v", ok, treeSize-1, max)
		}
		got := all(tr)
		wantRange := rang(treeSize)
		if !reflect.DeepEqual(got, wantRange) {
			t.Fatalf("mismatch:\n got: %v\nwant: %v", got, wantRange)
		}

		gotrev := allrev(tr)
		wantrev := rangrev(treeSize)
		if !reflect.DeepEqual(gotrev, wantrev) {
			t.Fatalf("mismatch:\n got: %v\nwant: %v", gotrev, wantrev)
		}

		for _, key := range perm(treeSize) {
			if x, ok := tr.Delete(key); !ok || x != -key {
				t.Fatalf("didn't find %v", key)
			}
		}
		if got = all(tr); 0 < len(got) {
			t.Fatalf("some left!: %v", got)
		}
		if got = allrev(tr); 0 < len(got) {
			t.Fatalf("some left!: %v", got)
		}
	}
}

func ExampleBTree() {
	tr := New[int, string](DefaultDegree)
	for i := 0; i < 10; i++ {
		tr.ReplaceOrInsert(i, fmt.Sprint("v", i))
	}
	fmt.Println("len:       ", tr.Len())
	v, ok := tr.Get(3)
	fmt.Println("get3:      ", v, ok)
	v, ok = tr.Get(100)
	fmt.Println("get100:    ", v, ok)
	v, ok = tr.Delete(4)
	fmt.Println("del4:      ", v, ok)
	v, ok = tr.Delete(100)
	fmt.Println("del100:    ", v, ok)
	v, ok = tr.ReplaceOrInsert(5, "five")
	fmt.Println("replace5:  ", v, ok)
	v, ok = tr.ReplaceOrInsert(100, "v100")
	fmt.Println("replace100:", v, ok)
	e, ok := tr.Min()
	fmt.Println("min:       ", e, ok)
	e, ok = tr.DeleteMin()
	fmt.Println("delmin:    ", e, ok)
	e, ok = tr.Max()
	fmt.Println("max:       ", e, ok)
	e, ok = tr.DeleteMax()
	fmt.Println("delmax:    ", e, ok)
	fmt.Println("len:       ", tr.Len())
	// Output:
	// len:        10
	// get3:       v3 true
	// get100:      false
	// del4:       v4 true
	// del100:      false
	// replace5:   v5 true
	// replace100:  false
	// min:        {0 v0} true
	// delmin:     {0 v0} true
	// max:        {100 v100} true
	// delmax:     {100 v100} true
	// len:        8
}

func TestInvariants(t *testing.T) {
	for _, degree := range []int{2, 3, 4, 7} {
		t.Run(fmt.Sprintf("degree=%d", degree), func(t *testing.T) {
			tr := New[int, int](degree)
			verify(t, tr)
			for _, key := range perm(1000) {
				tr.ReplaceOrInsert(key, key)
				verify(t, tr)
			}
			for step := 0; step < 5000; step++ {
				key := rand.Intn(1500)
				if rand.Intn(2) == 0 {
					tr.ReplaceOrInsert(key, key)
				} else {
					tr.Delete(key)
				}
				verify(t, tr)
			}
			for _, key := range perm(1500) {
				tr.Delete(key)
				verify(t, tr)
			}
			if !tr.IsEmpty() || tr.Height() != 0 {
				t.Fatalf("want empty tree, got len %d height %d", tr.Len(), tr.Height())
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	tr := New[int, int](3)
	want := make(map[int]int)
	for step := 0; step < 5000; step++ {
		key, value := rand.Intn(2000), rand.Int()
		tr.ReplaceOrInsert(key, value)
		want[key] = value
	}
	if tr.Len() != len(want) {
		t.Fatalf("len: got %d want %d", tr.Len(), len(want))
	}
	for key := 0; key < 3000; key++ {
		value, ok := tr.Get(key)
		if wantValue, wantOK := want[key]; ok != wantOK || value != wantValue {
			t.Fatalf("get %d: got (%d, %v) want (%d, %v)", key, value, ok, wantValue, wantOK)
		}
	}
}

func TestReplaceOrInsertOverwrites(t *testing.T) {
	tr := New[string, int](DefaultDegree)
	for i, key := range []string{"c", "a", "e", "b", "d", "f", "g"} {
		tr.ReplaceOrInsert(key, i)
	}
	height, length := tr.Height(), tr.Len()
	if old, ok := tr.ReplaceOrInsert("d", 100); !ok || old != 4 {
		t.Fatalf("replace: got (%d, %v) want (4, true)", old, ok)
	}
	if old, ok := tr.ReplaceOrInsert("d", 200); !ok || old != 100 {
		t.Fatalf("replace: got (%d, %v) want (100, true)", old, ok)
	}
	if tr.Len() != length || tr.Height() != height {
		t.Fatalf("replace changed the tree: len %d -> %d height %d -> %d", length, tr.Len(), height, tr.Height())
	}
	if value, ok := tr.Get("d"); !ok || value != 200 {
		t.Fatalf("get: got (%d, %v) want (200, true)", value, ok)
	}
	verify(t, tr)
}

func TestDeleteAbsent(t *testing.T) {
	tr := New[int, int](DefaultDegree)
	if _, ok := tr.Delete(1); ok {
		t.Fatal("delete from empty tree found key")
	}
	for _, key := range perm(100) {
		tr.ReplaceOrInsert(key*2, key)
	}
	for key := -1; key < 200; key += 2 {
		if _, ok := tr.Delete(key); ok {
			t.Fatalf("delete found absent key %d", key)
		}
		if tr.Len() != 100 {
			t.Fatalf("len changed to %d", tr.Len())
		}
	}
	verify(t, tr)
}

func TestDeleteCompleteness(t *testing.T) {
	tr := New[int, int](4)
	for _, key := range perm(500) {
		tr.ReplaceOrInsert(key, key)
	}
	for _, key := range perm(500) {
		length := tr.Len()
		if value, ok := tr.Delete(key); !ok || value != key {
			t.Fatalf("delete %d: got (%d, %v)", key, value, ok)
		}
		if tr.Has(key) {
			t.Fatalf("%d still present after delete", key)
		}
		if tr.Len() != length-1 {
			t.Fatalf("len: got %d want %d", tr.Len(), length-1)
		}
	}
}

// TestMinimumDegree walks through a 2-3-4 tree holding keys 1 to 10.
func TestMinimumDegree(t *testing.T) {
	tr := New[int, string](2)
	for key := 1; key <= 10; key++ {
		tr.ReplaceOrInsert(key, fmt.Sprint("v", key))
		if key == 4 && tr.Height() != 2 {
			t.Fatalf("root did not split by the 4th insert, height %d", tr.Height())
		}
	}
	verify(t, tr)
	if tr.Height() <= 1 {
		t.Fatalf("height: got %d want > 1", tr.Height())
	}
	if value, ok := tr.Get(5); !ok || value != "v5" {
		t.Fatalf("get 5: got (%q, %v)", value, ok)
	}
	if value, ok := tr.Delete(10); !ok || value != "v10" {
		t.Fatalf("delete 10: got (%q, %v)", value, ok)
	}
	if _, ok := tr.Get(10); ok {
		t.Fatal("10 still present after delete")
	}
	if value, ok := tr.Get(9); !ok || value != "v9" {
		t.Fatalf("get 9: got (%q, %v)", value, ok)
	}
	verify(t, tr)

	for _, order := range [][]int{rang(11), rangrev(11), perm(11)} {
		tr := New[int, string](2)
		for key := 1; key <= 10; key++ {
			tr.ReplaceOrInsert(key, fmt.Sprint("v", key))
		}
		for _, key := range order {
			tr.Delete(key)
			verify(t, tr)
		}
		if tr.Len() != 0 {
			t.Fatalf("len: got %d want 0", tr.Len())
		}
		if len(tr.root.entries) != 0 || !tr.root.leaf() {
			t.Fatalf("root is not an empty leaf: %d entries %d children", len(tr.root.entries), len(tr.root.children))
		}
	}
}

func TestNewPanicsOnBadDegree(t *testing.T) {
	for _, degree := range []int{-1, 0, 1} {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Fatalf("New(%d) did not panic", degree)
				}
			}()
			New[int, int](degree)
		}()
	}
}

func TestDeleteMin(t *testing.T) {
	tr := New[int, int](3)
	for _, v := range perm(100) {
		tr.ReplaceOrInsert(v, v)
	}
	var got []int
	for e, ok := tr.DeleteMin(); ok; e, ok = tr.DeleteMin() {
		got = append(got, e.Key)
		verify(t, tr)
	}
	if want := rang(100); !reflect.DeepEqual(got, want) {
		t.Fatalf("ascendrange:\n got: %v\nwant: %v", got, want)
	}
}

func TestDeleteMax(t *testing.T) {
	tr := New[int, int](3)
	for _, v := range perm(100) {
		tr.ReplaceOrInsert(v, v)
	}
	var got []int
	for e, ok := tr.DeleteMax(); ok; e, ok = tr.DeleteMax() {
		got = append(got, e.Key)
		verify(t, tr)
	}
	if want := rangrev(100); !reflect.DeepEqual(got, want) {
		t.Fatalf("ascendrange:\n got: %v\nwant: %v", got, want)
	}
}

func TestClear(t *testing.T) {
	tr := New[int, int](DefaultDegree)
	for _, v := range perm(100) {
		tr.ReplaceOrInsert(v, v)
	}
	tr.Clear()
	verify(t, tr)
	if tr.Len() != 0 || tr.Height() != 0 {
		t.Fatalf("clear left len %d height %d", tr.Len(), tr.Height())
	}
	tr.ReplaceOrInsert(1, 1)
	if value, ok := tr.Get(1); !ok || value != 1 {
		t.Fatalf("get after clear: got (%d, %v)", value, ok)
	}
}

func TestAscendRange(t *testing.T) {
	tr := New[int, int](2)
	for _, v := range perm(100) {
		tr.ReplaceOrInsert(v, v)
	}
	var got []int
	tr.AscendRange(40, 60, func(key, _ int) bool {
		got = append(got, key)
		return true
	})
	if want := rang(100)[40:60]; !reflect.DeepEqual(got, want) {
		t.Fatalf("ascendrange:\n got: %v\nwant: %v", got, want)
	}
	got = got[:0]
	tr.AscendRange(40, 60, func(key, _ int) bool {
		if 50 < key {
			return false
		}
		got = append(got, key)
		return true
	})
	if want := rang(100)[40:51]; !reflect.DeepEqual(got, want) {
		t.Fatalf("ascendrange:\n got: %v\nwant: %v", got, want)
	}
}

func TestDescendRange(t *testing.T) {
	tr := New[int, int](2)
	for _, v := range perm(100) {
		tr.ReplaceOrInsert(v, v)
	}
	var got []int
	tr.DescendRange(60, 40, func(key, _ int) bool {
		got = append(got, key)
		return true
	})
	if want := rangrev(100)[39:59]; !reflect.DeepEqual(got, want) {
		t.Fatalf("descendrange:\n got: %v\nwant: %v", got, want)
	}
	got = got[:0]
	tr.DescendRange(60, 40, func(key, _ int) bool {
		if key < 50 {
			return false
		}
		got = append(got, key)
		return true
	})
	if want := rangrev(100)[39:50]; !reflect.DeepEqual(got, want) {
		t.Fatalf("descendrange:\n got: %v\nwant: %v", got, want)
	}
}

func TestAscendLessThan(t *testing.T) {
	tr := New[int, int](*btreeDegree)
	for _, v := range perm(100) {
		tr.ReplaceOrInsert(v, v)
	}
	var got []int
	tr.AscendLessThan(60, func(key, _ int) bool {
		got = append(got, key)
		return true
	})
	if want := rang(100)[:60]; !reflect.DeepEqual(got, want) {
		t.Fatalf("ascendrange:\n got: %v\nwant: %v", got, want)
	}
	got = got[:0]
	tr.AscendLessThan(60, func(key, _ int) bool {
		if 50 < key {
			return false
		}
		got = append(got, key)
		return true
	})
	if want := rang(100)[:51]; !reflect.DeepEqual(got, want) {
		t.Fatalf("ascendrange:\n got: %v\nwant: %v", got, want)
	}
}

func TestDescendLessOrEqual(t *testing.T) {
	tr := New[int, int](*btreeDegree)
	for _, v := range perm(100) {
		tr.ReplaceOrInsert(v, v)
	}
	var got []int
	tr.DescendLessOrEqual(40, func(key, _ int) bool {
		got = append(got, key)
		return true
	})
	if want := rangrev(100)[59:]; !reflect.DeepEqual(got, want) {
		t.Fatalf("descendlessorequal:\n got: %v\nwant: %v", got, want)
	}
	got = got[:0]
	tr.DescendLessOrEqual(60, func(key, _ int) bool {
		if key < 50 {
			return false
		}
		got = append(got, key)
		return true
	})
	if want := rangrev(100)[39:50]; !reflect.DeepEqual(got, want) {
		t.Fatalf("descendlessorequal:\n got: %v\nwant: %v", got, want)
	}
}

func TestAscendGreaterOrEqual(t *testing.T) {
	tr := New[int, int](*btreeDegree)
	for _, v := range perm(100) {
		tr.ReplaceOrInsert(v, v)
	}
	var got []int
	tr.AscendGreaterOrEqual(40, func(key, _ int) bool {
		got = append(got, key)
		return true
	})
	if want := rang(100)[40:]; !reflect.DeepEqual(got, want) {
		t.Fatalf("ascendrange:\n got: %v\nwant: %v", got, want)
	}
	got = got[:0]
	tr.AscendGreaterOrEqual(40, func(key, _ int) bool {
		if 50 < key {
			return false
		}
		got = append(got, key)
		return true
	})
	if want := rang(100)[40:51]; !reflect.DeepEqual(got, want) {
		t.Fatalf("ascendrange:\n got: %v\nwant: %v", got, want)
	}
}

func TestDescendGreaterThan(t *testing.T) {
	tr := New[int, int](*btreeDegree)
	for _, v := range perm(100) {
		tr.ReplaceOrInsert(v, v)
	}
	var got []int
	tr.DescendGreaterThan(40, func(key, _ int) bool {
		got = append(got, key)
		return true
	})
	if want := rangrev(100)[:59]; !reflect.DeepEqual(got, want) {
		t.Fatalf("descendgreaterthan:\n got: %v\nwant: %v", got, want)
	}
	got = got[:0]
	tr.DescendGreaterThan(40, func(key, _ int) bool {
		if key < 50 {
			return false
		}
		got = append(got, key)
		return true
	})
	if want := rangrev(100)[:50]; !reflect.DeepEqual(got, want) {
		t.Fatalf("descendgreaterthan:\n got: %v\nwant: %v", got, want)
	}
}

const benchmarkTreeSize = 10000

func BenchmarkInsert(b *testing.B) {
	b.StopTimer()
	insertP := perm(benchmarkTreeSize)
	b.StartTimer()
	i := 0
	for i < b.N {
		tr := New[int, int](*btreeDegree)
		for _, key := range insertP {
			tr.ReplaceOrInsert(key, key)
			i++
			if b.N <= i {
				return
			}
		}
	}
}

func BenchmarkDeleteInsert(b *testing.B) {
	b.StopTimer()
	insertP := perm(benchmarkTreeSize)
	tr := New[int, int](*btreeDegree)
	for _, key := range insertP {
		tr.ReplaceOrInsert(key, key)
	}
	b.StartTimer()
	for i := 0; i < b.N; i++ {
		key := insertP[i%benchmarkTreeSize]
		tr.Delete(key)
		tr.ReplaceOrInsert(key, key)
	}
}

func BenchmarkGet(b *testing.B) {
	b.StopTimer()
	insertP := perm(benchmarkTreeSize)
	removeP := perm(benchmarkTreeSize)
	b.StartTimer()
	i := 0
	for i < b.N {
		b.StopTimer()
		tr := New[int, int](*btreeDegree)
		for _, key := range insertP {
			tr.ReplaceOrInsert(key, key)
		}
		b.StartTimer()
		for _, key := range removeP {
			tr.Get(key)
			i++
			if b.N <= i {
				return
			}
		}
	}
}
