/*
Copyright 2026 The FlintDB Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package lru

import (
	"reflect"
	"testing"
)

func TestCacheEntryCountMode(t *testing.T) {
	c := New[string, string](2, nil)

	expectMiss := func(k string) {
		v, ok := c.Get(k)
		if ok {
			t.Fatalf("expected cache miss on key %q but hit value %v", k, v)
		}
	}
	expectHit := func(k string, ev string) {
		v, ok := c.Get(k)
		if !ok {
			t.Fatalf("expected cache(%q)=%v; but missed", k, ev)
		}
		if !reflect.DeepEqual(v, ev) {
			t.Fatalf("expected cache(%q)=%v; but got %v", k, ev, v)
		}
	}

	expectMiss("1")
	c.Add("1", "one")
	expectHit("1", "one")

	c.Add("2", "two")
	expectHit("1", "one")
	expectHit("2", "two")

	c.Add("3", "three")
	expectHit("3", "three")
	expectHit("2", "two")
	expectMiss("1")
}

func TestCacheRemoveOldest(t *testing.T) {
	c := New[int64, string](1<<62, nil)
	c.Add(int64(1), "one")
	c.Add(int64(2), "two")
	if got, want := c.Len(), 2; got != want {
		t.Fatalf("Len() = %d; want %d", got, want)
	}
	c.RemoveOldest()
	if _, ok := c.Get(int64(1)); ok {
		t.Fatalf("key 1 should have been evicted")
	}
	if _, ok := c.Get(int64(2)); !ok {
		t.Fatalf("key 2 should still be present")
	}
}

func TestCacheByteBudget(t *testing.T) {
	sizeOf := func(v []byte) int { return len(v) }
	c := New[int64, []byte](10, sizeOf)

	c.Add(int64(1), make([]byte, 4))
	c.Add(int64(2), make([]byte, 4))
	if got, want := c.Bytes(), 8; got != want {
		t.Fatalf("Bytes() = %d; want %d", got, want)
	}

	// Adding a third entry pushes total past the 10-byte budget, evicting
	// key 1 (least recently used) until it fits.
	c.Add(int64(3), make([]byte, 4))
	if _, ok := c.Get(int64(1)); ok {
		t.Fatalf("key 1 should have been evicted to respect the byte budget")
	}
	if got, want := c.Bytes(), 8; got != want {
		t.Fatalf("Bytes() after eviction = %d; want %d", got, want)
	}
}

func TestCacheRemove(t *testing.T) {
	c := New[string, int](100, func(int) int { return 1 })
	c.Add("a", 1)
	if !c.Remove("a") {
		t.Fatalf("Remove(a) = false; want true")
	}
	if c.Remove("a") {
		t.Fatalf("second Remove(a) = true; want false")
	}
}

func TestCacheOnEvict(t *testing.T) {
	var evicted []string
	c := New[string, int](2, func(int) int { return 1 })
	c.OnEvict(func(k string, v int) { evicted = append(evicted, k) })

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3) // evicts "a"

	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("evicted = %v; want [a]", evicted)
	}
}

func TestCacheClearRunsOnEvictForAll(t *testing.T) {
	n := 0
	c := New[int, int](100, func(int) int { return 1 })
	c.OnEvict(func(int, int) { n++ })
	c.Add(1, 1)
	c.Add(2, 2)
	c.Add(3, 3)
	c.Clear()
	if n != 3 {
		t.Fatalf("OnEvict ran %d times; want 3", n)
	}
	if c.Len() != 0 {
		t.Fatalf("Len() after Clear = %d; want 0", c.Len())
	}
}

func TestCacheStats(t *testing.T) {
	c := New[string, int](100, func(int) int { return 1 })
	c.Add("a", 1)
	c.Get("a")
	c.Get("missing")

	st := c.Stats()
	if st.Hits != 1 {
		t.Fatalf("Hits = %d; want 1", st.Hits)
	}
	if st.Misses != 1 {
		t.Fatalf("Misses = %d; want 1", st.Misses)
	}
	if st.Entries != 1 {
		t.Fatalf("Entries = %d; want 1", st.Entries)
	}
}
