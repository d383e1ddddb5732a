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

// Package bplustree implements the disk-resident B+Tree index (spec
// §4.2): a map from positive int64 keys to themselves, ordered and
// range-scannable, with nodes stored one-per-block in a
// pkg/blockstore.Backend underneath.
package bplustree

import (
	"github.com/fillmemory/flintdb-sub001/pkg/bbuf"
	"github.com/fillmemory/flintdb-sub001/pkg/blockstore"
	"github.com/fillmemory/flintdb-sub001/pkg/ferr"
	"github.com/fillmemory/flintdb-sub001/pkg/lru"
	"github.com/fillmemory/flintdb-sub001/pkg/syncutil"
)

// KeyOrder compares two keys, returning <0, 0, >0 as a < b, a == b,
// a > b respectively. Pluggable per spec §4.2 "open", "permits
// descending orders and foreign key ordering".
type KeyOrder func(a, b int64) int

// NaturalOrder is the default KeyOrder: plain ascending int64 order.
func NaturalOrder(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Order selects a Find scan's direction.
type Order int

const (
	Asc Order = iota
	Desc
)

// RangeComparator is the 1-sided comparator Find uses: it reports, in
// key order, whether key lies after the range (<0), inside it (0,
// yield), or before it (>0). An Asc scan skips keys before the range
// and stops at the first key after it; a Desc scan skips keys after
// the range and stops at the first key before it. ctx carries
// whatever range-describing value the caller needs.
type RangeComparator func(ctx any, key int64) int

// KeyCompareFunc is the 2-sided comparator CompareGet uses to navigate
// by a caller-defined ordering over ctx, rather than by a literal key
// (spec §4.2 "for hash/equality lookups over foreign key
// representations").
type KeyCompareFunc func(ctx any, key int64) int

// RefreshFunc evicts offset from the tree's node cache (spec §4.2's
// WAL refresh hook).
type RefreshFunc func(offset int64)

// Options configures Open. The block-store fields are forwarded
// verbatim to blockstore.Open.
type Options struct {
	Mode           blockstore.Mode
	Backend        blockstore.Kind
	BlockDataBytes int
	IncrementBytes int
	NoCache        bool
	TrackLocks     bool

	// CacheBytes is the node cache's byte budget; values below 256 KiB
	// are raised to it, and 0 takes the 1 MiB default (spec §4.2).
	CacheBytes int

	// Order compares keys throughout Put/Get/Delete navigation.
	// Defaults to NaturalOrder.
	Order KeyOrder

	// InstallRefreshHook, if set, is called once during Open with the
	// tree's own Refresh method, so an external WAL can invoke it
	// whenever it invalidates a block behind the tree's back.
	InstallRefreshHook func(RefreshFunc)
}

func (o Options) withDefaults() Options {
	if o.Order == nil {
		o.Order = NaturalOrder
	}
	if o.CacheBytes <= 0 {
		o.CacheBytes = defaultCacheBytes
	}
	return o
}

// Extra-header layout this package owns (spec §6.1): a 4-byte magic,
// an 8-byte count, an 8-byte root offset (-1 if empty).
const (
	magic                = "B+T1"
	extraHeaderUsedBytes = 20
)

// Tree is the disk-resident B+Tree index described by spec §4.2.
type Tree struct {
	store blockstore.Backend
	mu    syncutil.RWMutexTracker

	order KeyOrder
	cache *nodeCache

	blockDataBytes  int
	leafKeysMax     int
	internalKeysMax int

	root  int64 // -1 if empty
	count int64
}

// Open opens or initializes a tree at path, per spec §4.2 "open".
func Open(path string, opts Options) (*Tree, error) {
	opts = opts.withDefaults()
	store, err := blockstore.Open(path, blockstore.Options{
		Mode:           opts.Mode,
		Backend:        opts.Backend,
		BlockDataBytes: opts.BlockDataBytes,
		IncrementBytes: opts.IncrementBytes,
		TrackLocks:     opts.TrackLocks,
		NoCache:        opts.NoCache,
	})
	if err != nil {
		return nil, err
	}

	t := &Tree{store: store, order: opts.Order}
	if opts.TrackLocks {
		t.mu.EnableLogging()
	}
	t.blockDataBytes = store.BlockDataBytes()
	t.leafKeysMax = leafKeysMax(t.blockDataBytes)
	t.internalKeysMax = internalKeysMax(t.blockDataBytes)
	t.cache = newNodeCache(opts.CacheBytes, t.blockDataBytes)

	hdr, err := store.Head(0, extraHeaderUsedBytes)
	if err != nil {
		store.Close()
		return nil, err
	}
	if string(hdr[0:4]) == magic {
		t.count = bbuf.PeekI64At(hdr, 4)
		t.root = bbuf.PeekI64At(hdr, 12)
	} else {
		// Block index 0 is reserved (spec §3.1) as the "no block / root
		// slot" sentinel, but the block store's own free list hands
		// index 0 to the very first write (see pkg/blockstore's
		// S2 scenario). Burn it with a one-byte placeholder record,
		// never freed or referenced again, so every real node offset
		// is >= 1 and 0 never names a node. An empty root is recorded
		// as noOffset (-1), not 0.
		idx, err := store.Write([]byte{0})
		if err != nil {
			store.Close()
			return nil, err
		}
		if idx != 0 {
			store.Close()
			return nil, ferr.New(ferr.Corrupt, "bplustree.Open", nil)
		}
		t.root = noOffset
		t.count = 0
		if err := t.writeHeader(); err != nil {
			store.Close()
			return nil, err
		}
	}

	if opts.InstallRefreshHook != nil {
		opts.InstallRefreshHook(t.Refresh)
	}
	return t, nil
}

func (t *Tree) writeHeader() error {
	buf := make([]byte, extraHeaderUsedBytes)
	copy(buf[0:4], magic)
	bbuf.PutI64At(buf, 4, t.count)
	bbuf.PutI64At(buf, 12, t.root)
	return t.store.WriteHead(0, buf)
}

// Close flushes the root/count header and closes the underlying store.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writeHeader(); err != nil {
		t.store.Close()
		return err
	}
	return t.store.Close()
}

// Count returns the number of keys currently in the tree.
func (t *Tree) Count() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Bytes returns the underlying store's file size in bytes.
func (t *Tree) Bytes() int64 { return t.store.Bytes() }

// CacheStats reports the node cache's hit/miss/eviction counters.
func (t *Tree) CacheStats() lru.Stats { return t.cache.stats() }

// Refresh evicts offset from the node cache; installed as the WAL
// refresh hook (spec §4.2).
func (t *Tree) Refresh(offset int64) { t.cache.evict(offset) }

func (t *Tree) readNode(offset int64) (node, error) {
	if n, ok := t.cache.get(offset); ok {
		return n, nil
	}
	buf, err := t.store.Read(blockstore.BlockIndex(offset))
	if err != nil {
		return nil, err
	}
	n, err := decodeNode(offset, buf, t.blockDataBytes)
	if err != nil {
		return nil, err
	}
	t.cache.put(offset, n)
	return n, nil
}

func (t *Tree) writeNode(n node) error {
	buf := encodeNode(n, t.blockDataBytes)
	if err := t.store.WriteAt(blockstore.BlockIndex(n.blockOffset()), buf); err != nil {
		return err
	}
	t.cache.put(n.blockOffset(), n)
	return nil
}

func (t *Tree) allocNode(n node) (int64, error) {
	buf := encodeNode(n, t.blockDataBytes)
	idx, err := t.store.Write(buf)
	if err != nil {
		return 0, err
	}
	n.setBlockOffset(int64(idx))
	t.cache.put(int64(idx), n)
	return int64(idx), nil
}

func (t *Tree) freeNode(n node) error {
	if _, err := t.store.Delete(blockstore.BlockIndex(n.blockOffset())); err != nil {
		return err
	}
	t.cache.evict(n.blockOffset())
	return nil
}

// separatorMinKey dereferences a separator's leaf to read its current
// minimum key. Because separators are stored as block offsets and
// always dereferenced live rather than cached, a leaf's minimum
// changing after a delete is observed automatically on the next
// access — no explicit "separator refresh" write is needed, unlike an
// implementation that caches the separator's key value inline.
func (t *Tree) separatorMinKey(sepOffset int64) (int64, error) {
	n, err := t.readNode(sepOffset)
	if err != nil {
		return 0, err
	}
	leaf, ok := n.(*leafNode)
	if !ok || len(leaf.keys) == 0 {
		return 0, ferr.New(ferr.Corrupt, "bplustree.separatorMinKey", nil)
	}
	return leaf.keys[0], nil
}

// childSlot finds which child of n the given comparator descends into.
// want(k) must return <0 if the target sorts before k, >0 if after, as
// if comparing the target against k via t.order. It returns -1 for
// n.leftmost, or an index into n.refs.
func (t *Tree) childSlot(n *internalNode, want func(k int64) int) (int, int64, error) {
	lo, hi := 0, len(n.refs)
	for lo < hi {
		mid := (lo + hi) / 2
		minKey, err := t.separatorMinKey(n.refs[mid].sep)
		if err != nil {
			return 0, 0, err
		}
		if want(minKey) < 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == 0 {
		return -1, n.leftmost, nil
	}
	return lo - 1, n.refs[lo-1].right, nil
}

func (t *Tree) childFor(n *internalNode, key int64) (int64, error) {
	_, off, err := t.childSlot(n, func(k int64) int { return t.order(key, k) })
	return off, err
}

func (t *Tree) findLeaf(key int64) (*leafNode, error) {
	offset := t.root
	for {
		n, err := t.readNode(offset)
		if err != nil {
			return nil, err
		}
		switch v := n.(type) {
		case *leafNode:
			return v, nil
		case *internalNode:
			next, err := t.childFor(v, key)
			if err != nil {
				return nil, err
			}
			offset = next
		default:
			return nil, ferr.New(ferr.Corrupt, "bplustree.findLeaf", nil)
		}
	}
}

// searchLeaf binary searches leaf.keys under order, returning the
// index of key if present, or the slot it would occupy otherwise.
func searchLeaf(leaf *leafNode, key int64, order KeyOrder) (idx int, found bool) {
	lo, hi := 0, len(leaf.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		c := order(leaf.keys[mid], key)
		if c == 0 {
			return mid, true
		} else if c < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, false
}

// Get implements spec §4.2 "get": purely navigational, returns the key
// itself (not a payload) if present.
func (t *Tree) Get(key int64) (int64, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if key <= 0 {
		return 0, false, ferr.New(ferr.BadArgument, "bplustree.Get", nil)
	}
	if t.root == noOffset {
		return 0, false, nil
	}
	leaf, err := t.findLeaf(key)
	if err != nil {
		return 0, false, err
	}
	idx, found := searchLeaf(leaf, key, t.order)
	if !found {
		return 0, false, nil
	}
	return leaf.keys[idx], true, nil
}

// CompareGet implements spec §4.2 "compare_get": navigates using a
// caller-supplied 2-sided comparator over ctx instead of a literal key.
func (t *Tree) CompareGet(ctx any, cmp KeyCompareFunc) (int64, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.root == noOffset {
		return 0, false, nil
	}
	offset := t.root
	for {
		n, err := t.readNode(offset)
		if err != nil {
			return 0, false, err
		}
		switch v := n.(type) {
		case *leafNode:
			idx, found := searchLeafCtx(v, ctx, cmp)
			if !found {
				return 0, false, nil
			}
			return v.keys[idx], true, nil
		case *internalNode:
			_, next, err := t.childSlot(v, func(k int64) int { return cmp(ctx, k) })
			if err != nil {
				return 0, false, err
			}
			offset = next
		default:
			return 0, false, ferr.New(ferr.Corrupt, "bplustree.CompareGet", nil)
		}
	}
}

func searchLeafCtx(leaf *leafNode, ctx any, cmp KeyCompareFunc) (idx int, found bool) {
	lo, hi := 0, len(leaf.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		c := cmp(ctx, leaf.keys[mid])
		if c == 0 {
			return mid, true
		} else if c > 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, false
}
