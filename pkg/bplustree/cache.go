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

import "github.com/fillmemory/flintdb-sub001/pkg/lru"

// Cache budget floor and default, spec §4.2 "Node I/O and cache":
// "configured values below a floor (256 KiB) are raised; the default
// is 1 MiB."
const (
	minCacheBytes     = 256 << 10
	defaultCacheBytes = 1 << 20
)

func clampCacheBytes(n int) int {
	if n < minCacheBytes {
		return minCacheBytes
	}
	return n
}

// nodeCache is the bounded LRU keyed by block offset that backs every
// node read in the tree (spec §4.2 "Node I/O and cache"). Every entry
// is charged the same nominal cost (one block's payload), since a
// decoded node's in-memory footprint tracks its block's data capacity
// regardless of how full it is.
type nodeCache struct {
	c         *lru.Cache[int64, node]
	nodeBytes int
}

func newNodeCache(cacheBytes, blockDataBytes int) *nodeCache {
	nc := &nodeCache{nodeBytes: blockDataBytes}
	nc.c = lru.New[int64, node](clampCacheBytes(cacheBytes), func(node) int { return nc.nodeBytes })
	return nc
}

func (nc *nodeCache) get(offset int64) (node, bool) { return nc.c.Get(offset) }
func (nc *nodeCache) put(offset int64, n node)      { nc.c.Add(offset, n) }
func (nc *nodeCache) evict(offset int64)            { nc.c.Remove(offset) }
func (nc *nodeCache) stats() lru.Stats              { return nc.c.Stats() }
