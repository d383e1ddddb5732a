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
	"github.com/fillmemory/flintdb-sub001/pkg/bbuf"
	"github.com/fillmemory/flintdb-sub001/pkg/ferr"
)

// internalSentinel, stored as the first i64 of a node's payload, marks
// that node as internal rather than a leaf (spec §6.3).
const internalSentinel = -2

// noOffset terminates a sibling chain or a chain of next-pointers.
const noOffset = -1

// node is implemented by leafNode and internalNode. Navigation never
// needs dynamic dispatch beyond telling the two apart; all real work is
// done via type switches in tree.go, insert.go, delete.go.
type node interface {
	blockOffset() int64
	setBlockOffset(int64)
}

// leafNode mirrors spec §3.2's leaf layout:
// [left_sibling][right_sibling][key_0]...[key_n], -1 padded.
type leafNode struct {
	offset      int64
	left, right int64
	keys        []int64
}

func (n *leafNode) blockOffset() int64     { return n.offset }
func (n *leafNode) setBlockOffset(o int64) { n.offset = o }

// keyref is the in-memory form of an internal node's separator triple
// (spec GLOSSARY "Keyref"): sep is the block offset of the leaf whose
// minimum key is the routing separator; right is the child subtree for
// keys >= that minimum.
type keyref struct {
	sep   int64
	right int64
}

// internalNode mirrors spec §3.2's internal layout:
// [sentinel=-2][leftmost_child][(sep,right)]×n.
type internalNode struct {
	offset   int64
	leftmost int64
	refs     []keyref
}

func (n *internalNode) blockOffset() int64     { return n.offset }
func (n *internalNode) setBlockOffset(o int64) { n.offset = o }

// leafKeysMax and internalKeysMax implement spec §3.2's capacity
// formulas for a store whose block_data_bytes is B.
func leafKeysMax(blockDataBytes int) int {
	return (blockDataBytes - 16) / 8
}

func internalKeysMax(blockDataBytes int) int {
	return leafKeysMax(blockDataBytes) / 2
}

// encodeNode serializes n into a blockDataBytes-sized payload, padding
// unused key/keyref slots with -1 sentinels.
func encodeNode(n node, blockDataBytes int) []byte {
	buf := make([]byte, blockDataBytes)
	w := bbuf.Wrap(buf)
	switch v := n.(type) {
	case *leafNode:
		w.WriteI64(v.left)
		w.WriteI64(v.right)
		max := leafKeysMax(blockDataBytes)
		for i := 0; i < max; i++ {
			if i < len(v.keys) {
				w.WriteI64(v.keys[i])
			} else {
				w.WriteI64(noOffset)
			}
		}
	case *internalNode:
		w.WriteI64(internalSentinel)
		w.WriteI64(v.leftmost)
		max := internalKeysMax(blockDataBytes)
		for i := 0; i < max; i++ {
			if i < len(v.refs) {
				w.WriteI64(v.refs[i].sep)
				w.WriteI64(v.refs[i].right)
			} else {
				w.WriteI64(noOffset)
				w.WriteI64(noOffset)
			}
		}
	}
	return buf
}

// decodeNode sniffs the sentinel word (spec §6.3) to tell a leaf from
// an internal node, then decodes the rest of the payload.
func decodeNode(offset int64, buf []byte, blockDataBytes int) (node, error) {
	if len(buf) < 16 {
		return nil, ferr.New(ferr.Corrupt, "bplustree.decodeNode", nil)
	}
	first := bbuf.PeekI64At(buf, 0)
	r := bbuf.Wrap(buf)
	if first == internalSentinel {
		r.ReadI64() // sentinel
		leftmost := r.ReadI64()
		max := internalKeysMax(blockDataBytes)
		refs := make([]keyref, 0, max)
		for i := 0; i < max; i++ {
			sep := r.ReadI64()
			right := r.ReadI64()
			if sep == noOffset {
				break
			}
			refs = append(refs, keyref{sep: sep, right: right})
		}
		return &internalNode{offset: offset, leftmost: leftmost, refs: refs}, nil
	}

	left := first
	r.ReadI64()
	right := r.ReadI64()
	max := leafKeysMax(blockDataBytes)
	keys := make([]int64, 0, max)
	for i := 0; i < max; i++ {
		k := r.ReadI64()
		if k == noOffset {
			break
		}
		keys = append(keys, k)
	}
	return &leafNode{offset: offset, left: left, right: right, keys: keys}, nil
}
