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

import "github.com/fillmemory/flintdb-sub001/pkg/ferr"

// delOutcome reports a subtree delete's result: found is whether key
// was present, underflow is whether the node at that offset is now
// degenerate (a leaf with zero keys, or an internal node with zero
// keyrefs) and must be merged away by its parent.
type delOutcome struct {
	found     bool
	underflow bool
}

// Delete implements spec §4.2 "delete". It returns 1 if key was
// present and removed, 0 otherwise (keys are unique, so this is never
// more than 1).
func (t *Tree) Delete(key int64) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if key <= 0 {
		return 0, ferr.New(ferr.BadArgument, "bplustree.Delete", nil)
	}
	if t.root == noOffset {
		return 0, nil
	}

	outcome, err := t.delete(t.root, key)
	if err != nil {
		return 0, err
	}
	if !outcome.found {
		return 0, nil
	}
	t.count--

	if outcome.underflow {
		n, err := t.readNode(t.root)
		if err != nil {
			return 0, err
		}
		switch v := n.(type) {
		case *leafNode:
			if err := t.freeNode(v); err != nil {
				return 0, err
			}
			t.root = noOffset
		case *internalNode:
			// Root collapse: an internal root left with zero keyrefs is
			// a pure pass-through to its one remaining child, so the
			// tree shrinks by a level. This is the only place a
			// degenerate internal node is resolved by collapsing
			// rather than merging with a sibling, since the root has
			// no sibling to merge with.
			newRoot := v.leftmost
			if err := t.freeNode(v); err != nil {
				return 0, err
			}
			t.root = newRoot
		default:
			return 0, ferr.New(ferr.Corrupt, "bplustree.Delete", nil)
		}
	}

	if err := t.writeHeader(); err != nil {
		return 0, err
	}
	return 1, nil
}

func (t *Tree) delete(offset int64, key int64) (delOutcome, error) {
	n, err := t.readNode(offset)
	if err != nil {
		return delOutcome{}, err
	}
	switch v := n.(type) {
	case *leafNode:
		return t.deleteLeaf(v, key)
	case *internalNode:
		return t.deleteInternal(v, key)
	default:
		return delOutcome{}, ferr.New(ferr.Corrupt, "bplustree.delete", nil)
	}
}

func (t *Tree) deleteLeaf(leaf *leafNode, key int64) (delOutcome, error) {
	idx, found := searchLeaf(leaf, key, t.order)
	if !found {
		return delOutcome{found: false}, nil
	}
	leaf.keys = append(leaf.keys[:idx], leaf.keys[idx+1:]...)
	if len(leaf.keys) == 0 {
		// Underflow trigger is a leaf becoming fully empty (not a
		// half-capacity threshold), so there is nothing left to write
		// back here; the parent's rebalance step splices this leaf out
		// of the sibling chain and frees its block.
		return delOutcome{found: true, underflow: true}, nil
	}
	if err := t.writeNode(leaf); err != nil {
		return delOutcome{}, err
	}
	return delOutcome{found: true}, nil
}

func (t *Tree) deleteInternal(n *internalNode, key int64) (delOutcome, error) {
	slot, childOff, err := t.childSlot(n, func(k int64) int { return t.order(key, k) })
	if err != nil {
		return delOutcome{}, err
	}

	outcome, err := t.delete(childOff, key)
	if err != nil || !outcome.found || !outcome.underflow {
		return outcome, err
	}

	selfUnderflow, err := t.rebalanceChild(n, slot)
	if err != nil {
		return delOutcome{}, err
	}
	if selfUnderflow {
		return delOutcome{found: true, underflow: true}, nil
	}
	if err := t.writeNode(n); err != nil {
		return delOutcome{}, err
	}
	return delOutcome{found: true}, nil
}

func childAt(n *internalNode, slot int) int64 {
	if slot == -1 {
		return n.leftmost
	}
	return n.refs[slot].right
}

// rebalanceChild merges the now-degenerate child at slot away, and
// reports whether n itself is left with zero keyrefs as a result (its
// own underflow, to be resolved by n's parent or, if n is the root, by
// Delete's root-collapse case).
func (t *Tree) rebalanceChild(n *internalNode, slot int) (bool, error) {
	childOff := childAt(n, slot)
	child, err := t.readNode(childOff)
	if err != nil {
		return false, err
	}
	switch v := child.(type) {
	case *leafNode:
		return t.rebalanceLeafChild(n, slot, v)
	case *internalNode:
		return t.rebalanceInternalChild(n, slot, v)
	default:
		return false, ferr.New(ferr.Corrupt, "bplustree.rebalanceChild", nil)
	}
}

// rebalanceLeafChild splices an emptied leaf out of its sibling chain,
// frees its block, and removes the corresponding keyref (or promotes
// refs[0] to leftmost, if the emptied leaf was the leftmost child).
func (t *Tree) rebalanceLeafChild(n *internalNode, slot int, leaf *leafNode) (bool, error) {
	if leaf.left != noOffset {
		left, err := t.readNode(leaf.left)
		if err != nil {
			return false, err
		}
		ln, ok := left.(*leafNode)
		if !ok {
			return false, ferr.New(ferr.Corrupt, "bplustree.rebalanceLeafChild", nil)
		}
		ln.right = leaf.right
		if err := t.writeNode(ln); err != nil {
			return false, err
		}
	}
	if leaf.right != noOffset {
		right, err := t.readNode(leaf.right)
		if err != nil {
			return false, err
		}
		rn, ok := right.(*leafNode)
		if !ok {
			return false, ferr.New(ferr.Corrupt, "bplustree.rebalanceLeafChild", nil)
		}
		rn.left = leaf.left
		if err := t.writeNode(rn); err != nil {
			return false, err
		}
	}
	if err := t.freeNode(leaf); err != nil {
		return false, err
	}

	if slot == -1 {
		if len(n.refs) == 0 {
			return true, nil
		}
		n.leftmost = n.refs[0].right
		n.refs = n.refs[1:]
	} else {
		n.refs = append(n.refs[:slot], n.refs[slot+1:]...)
	}
	return len(n.refs) == 0, nil
}

// rebalanceInternalChild merges a degenerate internal child (zero
// keyrefs, a single leftmost pointer) into an adjacent sibling at the
// same level, preserving the tree's uniform leaf depth: the two
// children's keyrefs are concatenated around the separator that used
// to divide them, written into the surviving sibling's block, and the
// keyref that pointed at the now-absorbed child is removed from n.
//
// It prefers merging with the left sibling (always available for
// slot >= 0); the leftmost child, having no left sibling, merges with
// its right neighbor instead.
//
// The sibling being merged into may already be filled to
// internalKeysMax — a normal, stable state, not just a transient
// pre-split one — so the concatenated keyrefs can overflow by exactly
// one entry (the degenerate child contributes only its leftmost,
// i.e. one extra slot). writeMergedInternal re-splits in that case
// instead of silently truncating the overflowing entry on write.
func (t *Tree) rebalanceInternalChild(n *internalNode, slot int, child *internalNode) (bool, error) {
	if slot == -1 {
		if len(n.refs) == 0 {
			return true, nil
		}
		sibOff := n.refs[0].right
		sib, err := t.readInternal(sibOff)
		if err != nil {
			return false, err
		}
		split, err := t.writeMergedInternal(sibOff, child.leftmost,
			append([]keyref{{sep: n.refs[0].sep, right: sib.leftmost}}, sib.refs...))
		if err != nil {
			return false, err
		}
		if err := t.freeNode(child); err != nil {
			return false, err
		}
		n.leftmost = sibOff
		if split != nil {
			n.refs[0] = keyref{sep: split.sepOffset, right: split.rightOffset}
			return false, nil
		}
		n.refs = n.refs[1:]
		return len(n.refs) == 0, nil
	}

	leftOff := childAt(n, slot-1)
	left, err := t.readInternal(leftOff)
	if err != nil {
		return false, err
	}
	split, err := t.writeMergedInternal(leftOff, left.leftmost,
		append(append([]keyref(nil), left.refs...), keyref{sep: n.refs[slot].sep, right: child.leftmost}))
	if err != nil {
		return false, err
	}
	if err := t.freeNode(child); err != nil {
		return false, err
	}
	if split != nil {
		n.refs[slot] = keyref{sep: split.sepOffset, right: split.rightOffset}
		return false, nil
	}
	n.refs = append(n.refs[:slot], n.refs[slot+1:]...)
	return len(n.refs) == 0, nil
}

// writeMergedInternal writes a merged internal node's content
// (leftmost, refs) to targetOffset, reusing that block for the node's
// left portion. If refs fits within internalKeysMax it is written
// whole and writeMergedInternal returns a nil splitInfo. Otherwise it
// splits at the midpoint exactly as insertInternal does, writes the
// left half to targetOffset, allocates a new block for the right
// half, and returns the promoted separator/right-offset pair so the
// caller can link the right half in as a sibling keyref instead of
// simply removing one.
func (t *Tree) writeMergedInternal(targetOffset int64, leftmost int64, refs []keyref) (*splitInfo, error) {
	if len(refs) <= t.internalKeysMax {
		return nil, t.writeNode(&internalNode{offset: targetOffset, leftmost: leftmost, refs: refs})
	}

	mid := len(refs) / 2
	promoted := refs[mid]
	left := &internalNode{offset: targetOffset, leftmost: leftmost, refs: refs[:mid]}
	right := &internalNode{leftmost: promoted.right, refs: append([]keyref(nil), refs[mid+1:]...)}

	rightOff, err := t.allocNode(right)
	if err != nil {
		return nil, err
	}
	if err := t.writeNode(left); err != nil {
		return nil, err
	}
	return &splitInfo{sepOffset: promoted.sep, rightOffset: rightOff}, nil
}

func (t *Tree) readInternal(offset int64) (*internalNode, error) {
	n, err := t.readNode(offset)
	if err != nil {
		return nil, err
	}
	v, ok := n.(*internalNode)
	if !ok {
		return nil, ferr.New(ferr.Corrupt, "bplustree.readInternal", nil)
	}
	return v, nil
}
