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

// Package pools provides size-classed scratch-buffer pooling for the
// block store and B+Tree, covering the block-sized, overflow-chunk-sized,
// and direct-I/O-batch-sized buffers spec §9 calls out as hot allocation
// paths.
package pools

import "sync"

// class is one power-of-two size bucket. Buffers are rounded up to the
// next class on Get and returned to the matching class's pool on Put, so
// a single byte slice never crosses pools of different capacities.
type class struct {
	size int
	pool sync.Pool
}

// classes covers the sizes this engine actually allocates at: a 16-byte
// block header scratch, a minimal block's data region, common chunk
// sizes used by the mmap/DIO backends, and a 1MiB ceiling for large
// direct-I/O batches (spec §3.3's write-combining buffer).
var classes = []*class{
	{size: 16},
	{size: 256},
	{size: 4 << 10},
	{size: 16 << 10},
	{size: 64 << 10},
	{size: 256 << 10},
	{size: 1 << 20},
}

func init() {
	for _, c := range classes {
		sz := c.size
		c.pool.New = func() interface{} {
			b := make([]byte, sz)
			return &b
		}
	}
}

func classFor(n int) *class {
	for _, c := range classes {
		if c.size >= n {
			return c
		}
	}
	return nil
}

// Get returns a []byte of length n, possibly with spare backing capacity
// from a larger size class. The returned slice's contents are not
// zeroed; callers that need a clean buffer must zero it themselves.
func Get(n int) []byte {
	c := classFor(n)
	if c == nil {
		return make([]byte, n)
	}
	bp := c.pool.Get().(*[]byte)
	b := *bp
	if cap(b) < n {
		b = make([]byte, c.size)
	}
	return b[:n]
}

// Put returns a buffer previously obtained from Get to its size class.
// Buffers not originally obtained from Get (e.g. a caller-grown slice
// whose capacity doesn't match any class) are silently dropped.
func Put(buf []byte) {
	c := classFor(cap(buf))
	if c == nil || c.size != cap(buf) {
		return
	}
	b := buf[:cap(buf)]
	c.pool.Put(&b)
}
