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

package blockstore

import (
	"github.com/fillmemory/flintdb-sub001/pkg/ferr"
	"github.com/fillmemory/flintdb-sub001/pkg/pools"
	"github.com/fillmemory/flintdb-sub001/pkg/syncutil"
)

// pager is the physical-I/O abstraction the engine is generic over.
// Each of the three backends supplies its own pager; everything above
// this point (header/trailer layout, block header layout, free list,
// overflow chaining, growth bookkeeping) is shared.
type pager interface {
	size() int64
	ensureSize(n int64) error
	readAt(off int64, buf []byte) error
	writeAt(off int64, buf []byte) error
	close() error
}

type statsPager interface {
	stats() Stats
}

// flushingPager is implemented by pagers that buffer writes (the
// direct-I/O backend's page cache) and need an explicit flush before
// the header trailer or a delete's freed blocks are considered
// durable. The mmap and in-memory pagers don't implement it: mmap
// writes land in the mapping directly, and the in-memory backend
// provides no durability at all.
type flushingPager interface {
	flush() error
}

func (e *Engine) flushPager() error {
	if fp, ok := e.p.(flushingPager); ok {
		if err := fp.flush(); err != nil {
			return ferr.New(ferr.Io, "blockstore.flush", err)
		}
	}
	return nil
}

// Engine implements Backend over an abstract pager. It owns the file
// header/trailer, the free list, and overflow-chain read/write/delete;
// the pager owns only raw byte access and growth.
type Engine struct {
	p pager
	mu syncutil.RWMutexTracker

	mode           Mode
	blockDataBytes int
	blockBytes     int
	incrementBytes int
	chunkBytes     int64

	freeListHead BlockIndex
	count        int64
	dirty        int
}

const flushEveryNWrites = 64

// openEngine opens or initializes an Engine on top of p. pageSize is
// the alignment unit used to round the growth increment, matching
// each backend's physical page granularity. fresh tells the engine
// whether p held no prior data when the caller opened it; the caller
// decides this (rather than the engine inferring it from p.size())
// because some pagers must grow the file and finish their own setup
// — e.g. mapping the header region — before the engine can safely
// read or write through off 0.
func openEngine(p pager, opts Options, pageSize int, fresh bool) (*Engine, error) {
	opts = opts.withDefaults()
	e := &Engine{p: p, mode: opts.Mode}
	if opts.TrackLocks {
		e.mu.EnableLogging()
	}

	if fresh {
		if p.size() < HeaderBytes {
			if err := p.ensureSize(HeaderBytes); err != nil {
				return nil, ferr.New(ferr.Io, "blockstore.Open", err)
			}
		}
		e.blockDataBytes = opts.BlockDataBytes
		e.incrementBytes = opts.IncrementBytes
		e.freeListHead = -1
		e.count = 0
		e.blockBytes = BlockHeaderBytes + e.blockDataBytes
		e.chunkBytes = computeChunkBytes(e.blockBytes, e.incrementBytes, pageSize)
		if err := e.commitHeader(); err != nil {
			return nil, err
		}
		return e, nil
	}

	hdr := make([]byte, commonTrailerBytes)
	if err := p.readAt(trailerOffset, hdr); err != nil {
		return nil, ferr.New(ferr.Io, "blockstore.Open", err)
	}
	t := decodeTrailer(hdr)
	if t.version != fileVersion {
		return nil, ferr.New(ferr.BadArgument, "blockstore.Open", nil)
	}
	if opts.BlockDataBytes != 0 && int16(opts.BlockDataBytes) != t.blockDataBytes {
		return nil, ferr.New(ferr.BadArgument, "blockstore.Open", nil)
	}
	e.blockDataBytes = int(t.blockDataBytes)
	e.incrementBytes = int(t.incrementBytes)
	e.blockBytes = BlockHeaderBytes + e.blockDataBytes
	e.chunkBytes = computeChunkBytes(e.blockBytes, e.incrementBytes, pageSize)
	e.freeListHead = BlockIndex(t.freeListHead)
	e.count = t.count
	return e, nil
}

// computeChunkBytes rounds unit up to a size divisible by both
// blockBytes and pageSize, per spec §4.1 "Growth and allocation".
func computeChunkBytes(blockBytes, unit, pageSize int) int64 {
	lcm := lcmInt(blockBytes, pageSize)
	n := (int64(unit) + int64(lcm) - 1) / int64(lcm)
	if n < 1 {
		n = 1
	}
	return n * int64(lcm)
}

func lcmInt(a, b int) int {
	return a / gcdInt(a, b) * b
}

func gcdInt(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func ceilDivInt(a, b int) int {
	if a <= 0 {
		return 1
	}
	return (a + b - 1) / b
}

func (e *Engine) blockOffset(idx BlockIndex) int64 {
	return int64(HeaderBytes) + int64(idx)*int64(e.blockBytes)
}

func (e *Engine) markDirty() error {
	e.dirty++
	if e.dirty >= flushEveryNWrites {
		return e.commitHeader()
	}
	return nil
}

func (e *Engine) commitHeader() error {
	if err := e.flushPager(); err != nil {
		return err
	}
	t := commonTrailer{
		freeListHead:   int64(e.freeListHead),
		version:        fileVersion,
		incrementBytes: int32(e.incrementBytes),
		blockDataBytes: int16(e.blockDataBytes),
		count:          e.count,
	}
	b := make([]byte, commonTrailerBytes)
	t.encode(b)
	if err := e.p.writeAt(trailerOffset, b); err != nil {
		return ferr.New(ferr.Io, "blockstore.commitHeader", err)
	}
	e.dirty = 0
	return nil
}

// ensureBlock grows the backing file, one chunk at a time, until it
// covers idx, stamping each newly covered chunk's blocks with a linear
// free-list chain per spec §4.1. The new chain's tail links into
// whatever was already the free-list head, so earlier free blocks
// remain reachable.
func (e *Engine) ensureBlock(idx BlockIndex) error {
	needed := e.blockOffset(idx) + int64(e.blockBytes)
	for e.p.size() < needed {
		curSize := e.p.size()
		newSize := curSize + e.chunkBytes
		if err := e.p.ensureSize(newSize); err != nil {
			return ferr.New(ferr.Io, "blockstore.ensureBlock", err)
		}
		startIdx := BlockIndex((curSize - HeaderBytes) / int64(e.blockBytes))
		endIdx := BlockIndex((newSize - HeaderBytes) / int64(e.blockBytes))

		prevHead := e.freeListHead
		blockBuf := make([]byte, e.blockBytes)
		for i := endIdx - 1; i >= startIdx; i-- {
			next := int64(i) + 1
			if i == endIdx-1 {
				next = int64(prevHead)
			}
			h := blockHeader{status: statusFree, mark: markUnused, next: next}
			h.encode(blockBuf[:BlockHeaderBytes])
			if err := e.p.writeAt(e.blockOffset(i), blockBuf[:BlockHeaderBytes]); err != nil {
				return ferr.New(ferr.Io, "blockstore.ensureBlock", err)
			}
		}
		e.freeListHead = startIdx
	}
	return nil
}

// allocateBlock pops the free-list head, inflating the file first if
// the list is empty, and returns its index.
func (e *Engine) allocateBlock() (BlockIndex, error) {
	if e.freeListHead == -1 {
		nextVirgin := BlockIndex((e.p.size() - HeaderBytes) / int64(e.blockBytes))
		if err := e.ensureBlock(nextVirgin); err != nil {
			return 0, err
		}
	}
	idx := e.freeListHead
	hdr, err := e.readBlockHeader(idx)
	if err != nil {
		return 0, err
	}
	if !hdr.isFree() {
		return 0, ferr.New(ferr.BadChain, "blockstore.allocateBlock", nil)
	}
	e.freeListHead = BlockIndex(hdr.next)
	return idx, nil
}

func (e *Engine) readBlockHeader(idx BlockIndex) (blockHeader, error) {
	b := make([]byte, BlockHeaderBytes)
	if err := e.p.readAt(e.blockOffset(idx), b); err != nil {
		return blockHeader{}, ferr.New(ferr.Io, "blockstore.readBlockHeader", err)
	}
	return decodeBlockHeader(b), nil
}

// chainMaxSteps bounds an overflow-chain walk given a record's declared
// total length (spec §8 property 7: ceil(total/block_data_bytes) + 8).
func (e *Engine) chainMaxSteps(total int32) int {
	return ceilDivInt(int(total), e.blockDataBytes) + 8
}

// walkChain follows offset's overflow chain, validating marks and
// detecting cycles, and returns every block index in chain order plus
// the head's declared total length.
func (e *Engine) walkChain(offset BlockIndex) ([]BlockIndex, int32, error) {
	head, err := e.readBlockHeader(offset)
	if err != nil {
		return nil, 0, err
	}
	if head.isFree() {
		return nil, 0, ferr.New(ferr.NotSet, "blockstore.walkChain", nil)
	}
	if head.mark != markData {
		return nil, 0, ferr.New(ferr.BadChain, "blockstore.walkChain", nil)
	}

	maxSteps := e.chainMaxSteps(head.totalLength)
	seen := map[BlockIndex]bool{offset: true}
	indices := []BlockIndex{offset}
	cur := head
	for cur.next != -1 {
		if len(indices) >= maxSteps {
			return nil, 0, ferr.New(ferr.BadChain, "blockstore.walkChain", nil)
		}
		next := BlockIndex(cur.next)
		if next == indices[len(indices)-1] || seen[next] {
			return nil, 0, ferr.New(ferr.BadChain, "blockstore.walkChain", nil)
		}
		nh, err := e.readBlockHeader(next)
		if err != nil {
			return nil, 0, err
		}
		if !nh.isAllocated() || nh.mark != markNext {
			return nil, 0, ferr.New(ferr.BadChain, "blockstore.walkChain", nil)
		}
		indices = append(indices, next)
		seen[next] = true
		cur = nh
	}
	return indices, head.totalLength, nil
}

// Read implements Backend.
func (e *Engine) Read(offset BlockIndex) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	indices, total, err := e.walkChain(offset)
	if err != nil {
		return nil, err
	}
	out := make([]byte, total)
	pos := 0
	full := pools.Get(e.blockBytes)
	defer pools.Put(full)
	for _, idx := range indices {
		if err := e.p.readAt(e.blockOffset(idx), full[:BlockHeaderBytes]); err != nil {
			return nil, ferr.New(ferr.Io, "blockstore.Read", err)
		}
		h := decodeBlockHeader(full[:BlockHeaderBytes])
		chunkLen := int(h.chunkLength)
		if pos+chunkLen > len(out) {
			return nil, ferr.New(ferr.BadChain, "blockstore.Read", nil)
		}
		if err := e.p.readAt(e.blockOffset(idx)+BlockHeaderBytes, out[pos:pos+chunkLen]); err != nil {
			return nil, ferr.New(ferr.Io, "blockstore.Read", err)
		}
		pos += chunkLen
	}
	if pos != len(out) {
		return nil, ferr.New(ferr.BadChain, "blockstore.Read", nil)
	}
	return out, nil
}

func (e *Engine) writeChainBlocks(indices []BlockIndex, buf []byte) error {
	n := len(buf)
	for i, idx := range indices {
		start := i * e.blockDataBytes
		end := start + e.blockDataBytes
		if end > n {
			end = n
		}
		chunk := buf[start:end]

		mark := markNext
		var total int32
		if i == 0 {
			mark = markData
			total = int32(n)
		}
		next := int64(-1)
		if i+1 < len(indices) {
			next = int64(indices[i+1])
		}
		h := blockHeader{
			status:      statusAllocated,
			mark:        mark,
			chunkLength: int16(len(chunk)),
			totalLength: total,
			next:        next,
		}
		blockBuf := pools.Get(BlockHeaderBytes + len(chunk))
		h.encode(blockBuf[:BlockHeaderBytes])
		copy(blockBuf[BlockHeaderBytes:], chunk)
		err := e.p.writeAt(e.blockOffset(idx), blockBuf[:BlockHeaderBytes+len(chunk)])
		pools.Put(blockBuf)
		if err != nil {
			return ferr.New(ferr.Io, "blockstore.writeChainBlocks", err)
		}
	}
	return nil
}

// Write implements Backend.
func (e *Engine) Write(buf []byte) (BlockIndex, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	numBlocks := ceilDivInt(len(buf), e.blockDataBytes)
	indices := make([]BlockIndex, numBlocks)
	for i := range indices {
		idx, err := e.allocateBlock()
		if err != nil {
			return 0, err
		}
		indices[i] = idx
	}
	if err := e.writeChainBlocks(indices, buf); err != nil {
		return 0, err
	}
	e.count++
	if err := e.markDirty(); err != nil {
		return 0, err
	}
	return indices[0], nil
}

// freeChain returns every block in indices to the free list, newest
// freed region becoming the new head (spec §4.1 delete semantics).
func (e *Engine) freeChain(indices []BlockIndex) error {
	for i, idx := range indices {
		next := int64(-1)
		if i+1 < len(indices) {
			next = int64(indices[i+1])
		} else {
			next = int64(e.freeListHead)
		}
		h := blockHeader{status: statusFree, mark: markUnused, next: next}
		b := make([]byte, BlockHeaderBytes)
		h.encode(b)
		if err := e.p.writeAt(e.blockOffset(idx), b); err != nil {
			return ferr.New(ferr.Io, "blockstore.freeChain", err)
		}
	}
	if len(indices) > 0 {
		e.freeListHead = indices[0]
	}
	return nil
}

// WriteAt implements Backend.
func (e *Engine) WriteAt(offset BlockIndex, buf []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if offset < 0 {
		return ferr.New(ferr.BadArgument, "blockstore.WriteAt", nil)
	}
	if err := e.ensureBlock(offset); err != nil {
		return err
	}
	hdr, err := e.readBlockHeader(offset)
	if err != nil {
		return err
	}

	var existing []BlockIndex
	if hdr.isFree() {
		if offset != e.freeListHead {
			return ferr.New(ferr.BadArgument, "blockstore.WriteAt", nil)
		}
		e.freeListHead = BlockIndex(hdr.next)
	} else {
		existing, _, err = e.walkChain(offset)
		if err != nil {
			return err
		}
	}

	numBlocks := ceilDivInt(len(buf), e.blockDataBytes)
	indices := make([]BlockIndex, numBlocks)
	indices[0] = offset
	for i := 1; i < numBlocks; i++ {
		if i < len(existing) {
			indices[i] = existing[i]
			continue
		}
		idx, err := e.allocateBlock()
		if err != nil {
			return err
		}
		indices[i] = idx
	}
	if len(existing) > numBlocks {
		if err := e.freeChain(existing[numBlocks:]); err != nil {
			return err
		}
	}
	if err := e.writeChainBlocks(indices, buf); err != nil {
		return err
	}
	if hdr.isFree() {
		e.count++
	}
	return e.markDirty()
}

// Delete implements Backend.
func (e *Engine) Delete(offset BlockIndex) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hdr, err := e.readBlockHeader(offset)
	if err != nil {
		return 0, err
	}
	if hdr.isFree() {
		return 0, nil
	}
	indices, _, err := e.walkChain(offset)
	if err != nil {
		return 0, err
	}
	if err := e.flushPager(); err != nil {
		return 0, err
	}
	if err := e.freeChain(indices); err != nil {
		return 0, err
	}
	e.count--
	if err := e.markDirty(); err != nil {
		return 0, err
	}
	return len(indices), nil
}

// Head implements Backend.
func (e *Engine) Head(off, length int) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if off < 0 || length < 0 || off+length > ExtraHeaderBytes {
		return nil, ferr.New(ferr.BadArgument, "blockstore.Head", nil)
	}
	b := make([]byte, length)
	if err := e.p.readAt(int64(off), b); err != nil {
		return nil, ferr.New(ferr.Io, "blockstore.Head", err)
	}
	return b, nil
}

// WriteHead implements Backend.
func (e *Engine) WriteHead(off int, buf []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if off < 0 || off+len(buf) > ExtraHeaderBytes {
		return ferr.New(ferr.BadArgument, "blockstore.WriteHead", nil)
	}
	if err := e.p.writeAt(int64(off), buf); err != nil {
		return ferr.New(ferr.Io, "blockstore.WriteHead", err)
	}
	return nil
}

// Bytes implements Backend.
func (e *Engine) Bytes() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.p.size()
}

// Count implements Backend.
func (e *Engine) Count() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.count
}

// BlockDataBytes implements Backend.
func (e *Engine) BlockDataBytes() int {
	return e.blockDataBytes
}

// Stats implements StatsProvider, delegating to the pager if it tracks
// cache statistics (the mmap and DIO backends do; memory does not).
func (e *Engine) Stats() Stats {
	if sp, ok := e.p.(statsPager); ok {
		return sp.stats()
	}
	return Stats{}
}

// Close implements Backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.commitHeader(); err != nil {
		e.p.close()
		return err
	}
	if err := e.p.close(); err != nil {
		return ferr.New(ferr.Io, "blockstore.Close", err)
	}
	return nil
}
