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
	"github.com/fillmemory/flintdb-sub001/pkg/ferr"
	"github.com/fillmemory/flintdb-sub001/pkg/sorted"
)

// Cursor is pinned to pkg/sorted's Iterator contract at compile time,
// so a caller can treat a tree scan the same way this project's other
// ordered structures are scanned (spec §4.2 "find"/SPEC_FULL.md §F.3).
var _ sorted.Iterator = (*Cursor)(nil)

// Cursor is a leaf-to-leaf scan over a Tree, satisfying pkg/sorted's
// Iterator contract (Next/Err/Close) plus a Key accessor.
type Cursor struct {
	t     *Tree
	order Order
	ctx   any
	cmp   RangeComparator

	leaf   *leafNode
	idx    int // position of the next key to examine, before bounds-checking
	cur    int64
	err    error
	done   bool
	closed bool
}

// Find implements spec §4.2 "find": a directional range scan driven by
// a 1-sided comparator over ctx. The tree is read-locked for the
// cursor's lifetime; callers must Close it.
func (t *Tree) Find(order Order, ctx any, cmp RangeComparator) (*Cursor, error) {
	t.mu.RLock()

	c := &Cursor{t: t, order: order, ctx: ctx, cmp: cmp}
	if t.root == noOffset {
		c.done = true
		c.closed = true
		t.mu.RUnlock()
		return c, nil
	}

	leaf, err := t.firstLeaf(order)
	if err != nil {
		t.mu.RUnlock()
		return nil, err
	}
	c.leaf = leaf
	if order == Asc {
		c.idx = -1
	} else {
		c.idx = len(leaf.keys)
	}
	return c, nil
}

// firstLeaf descends to the leftmost leaf (Asc) or rightmost leaf
// (Desc) of the tree.
func (t *Tree) firstLeaf(order Order) (*leafNode, error) {
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
			if order == Asc {
				offset = v.leftmost
			} else if len(v.refs) > 0 {
				offset = v.refs[len(v.refs)-1].right
			} else {
				offset = v.leftmost
			}
		default:
			return nil, ferr.New(ferr.Corrupt, "bplustree.firstLeaf", nil)
		}
	}
}

// Next advances the cursor, skipping keys that precede the range in
// scan order, and stopping at the first key past the range or at the
// end of the tree. It reports whether a key was yielded.
func (c *Cursor) Next() bool {
	if c.done || c.err != nil {
		return false
	}
	for {
		if c.order == Asc {
			c.idx++
		} else {
			c.idx--
		}

		if c.idx < 0 || c.idx >= len(c.leaf.keys) {
			var next int64
			if c.order == Asc {
				next = c.leaf.right
			} else {
				next = c.leaf.left
			}
			if next == noOffset {
				c.done = true
				return false
			}
			n, err := c.t.readNode(next)
			if err != nil {
				c.err = err
				return false
			}
			ln, ok := n.(*leafNode)
			if !ok {
				c.err = ferr.New(ferr.Corrupt, "bplustree.Cursor.Next", nil)
				return false
			}
			c.leaf = ln
			if c.order == Asc {
				c.idx = 0
			} else {
				c.idx = len(ln.keys) - 1
			}
			if len(ln.keys) == 0 {
				continue
			}
		}

		key := c.leaf.keys[c.idx]
		switch {
		case c.cmp == nil:
			c.cur = key
			return true
		default:
			s := sign(c.cmp(c.ctx, key))
			if c.order == Desc {
				// A descending scan meets keys after the range first.
				s = -s
			}
			switch s {
			case 0:
				c.cur = key
				return true
			case -1:
				c.done = true
				return false
			default: // range not reached yet in scan order, keep scanning
			}
		}
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

// Key returns the key the cursor last yielded.
func (c *Cursor) Key() int64 { return c.cur }

// Err reports any error encountered during the scan.
func (c *Cursor) Err() error { return c.err }

// Close releases the tree's read lock. It is always safe to call,
// including after Next has already returned false; calls after the
// first are no-ops.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.done = true
	c.t.mu.RUnlock()
	return nil
}
