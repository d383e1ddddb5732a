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

package bplustree

import (
	"path/filepath"
	"testing"

	"github.com/fillmemory/flintdb-sub001/pkg/blockstore"
)

// S6 from spec §8: with a WAL refresh hook installed, a refresh
// between two gets on a key whose path crosses the refreshed node
// must force the second get to re-read that node from storage rather
// than reuse the cached copy.
func TestScenarioS6RefreshHookForcesReread(t *testing.T) {
	var refresh RefreshFunc
	path := filepath.Join(t.TempDir(), "s6.flint")

	tr, err := Open(path, Options{
		Backend:        blockstore.Mmap,
		BlockDataBytes: 4080,
		NoCache:        true,
		InstallRefreshHook: func(f RefreshFunc) {
			refresh = f
		},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()

	if refresh == nil {
		t.Fatalf("InstallRefreshHook was not invoked")
	}
	if err := tr.Put(42); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, found, err := tr.Get(42); err != nil || !found {
		t.Fatalf("Get(42) #1 = found=%v, err=%v", found, err)
	}
	statsBefore := tr.CacheStats()
	if _, found, err := tr.Get(42); err != nil || !found {
		t.Fatalf("Get(42) #2 = found=%v, err=%v", found, err)
	}
	statsAfterHit := tr.CacheStats()
	if statsAfterHit.Hits <= statsBefore.Hits {
		t.Fatalf("Get #2 did not register a cache hit: before=%+v after=%+v", statsBefore, statsAfterHit)
	}

	refresh(tr.root)

	statsBeforeRefreshedGet := tr.CacheStats()
	if _, found, err := tr.Get(42); err != nil || !found {
		t.Fatalf("Get(42) #3 (post-refresh) = found=%v, err=%v", found, err)
	}
	statsAfter := tr.CacheStats()
	if statsAfter.Misses <= statsBeforeRefreshedGet.Misses {
		t.Fatalf("Get after refresh did not re-read the node: before=%+v after=%+v",
			statsBeforeRefreshedGet, statsAfter)
	}
}

func TestRefreshEvictsOnlyTargetNode(t *testing.T) {
	tr := openTestTree(t)
	defer tr.Close()

	for k := int64(1); k <= 1000; k++ {
		if err := tr.Put(k); err != nil {
			t.Fatalf("Put(%d): %v", k, err)
		}
	}
	before := tr.cache.c.Len()
	tr.Refresh(tr.root)
	after := tr.cache.c.Len()
	if after != before-1 {
		t.Fatalf("cache length after single-node Refresh = %d; want %d", after, before-1)
	}
}
