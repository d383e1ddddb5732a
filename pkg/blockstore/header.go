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

import "github.com/fillmemory/flintdb-sub001/pkg/bbuf"

// Byte-exact file layout, spec §6.1. All integers little-endian.
const (
	// HeaderBytes is the fixed size of the file header region.
	HeaderBytes = 16384

	// commonTrailerBytes is the size of the fixed-layout trailer at
	// the end of the header region: reserved i64, free_list_head i64,
	// reserved i64, version i16, increment_bytes i32, 24 reserved bytes,
	// block_data_bytes i16, count i64.
	commonTrailerBytes = 64

	// ExtraHeaderBytes is the caller-owned region below the trailer,
	// where the B+Tree stores its magic, count, and root slot.
	ExtraHeaderBytes = HeaderBytes - commonTrailerBytes

	trailerOffset = ExtraHeaderBytes

	fileVersion = 1
)

// commonTrailer mirrors the on-disk trailer layout exactly.
type commonTrailer struct {
	freeListHead   int64
	version        int16
	incrementBytes int32
	blockDataBytes int16
	count          int64
}

// encode writes t into b, which must be at least commonTrailerBytes long.
func (t commonTrailer) encode(b []byte) {
	buf := bbuf.Wrap(b)
	buf.WriteI64(0) // reserved
	buf.WriteI64(t.freeListHead)
	buf.WriteI64(0) // reserved (tail, unused in mmap/dio)
	buf.WriteI16(t.version)
	buf.WriteI32(t.incrementBytes)
	buf.Slice(24) // reserved, left zero
	buf.WriteI16(t.blockDataBytes)
	buf.WriteI64(t.count)
}

// decodeTrailer reads a commonTrailer from b, which must be at least
// commonTrailerBytes long.
func decodeTrailer(b []byte) commonTrailer {
	buf := bbuf.Wrap(b)
	buf.ReadI64() // reserved
	freeListHead := buf.ReadI64()
	buf.ReadI64() // reserved (tail)
	version := buf.ReadI16()
	increment := buf.ReadI32()
	buf.Slice(24) // reserved
	blockDataBytes := buf.ReadI16()
	count := buf.ReadI64()
	return commonTrailer{
		freeListHead:   freeListHead,
		version:        version,
		incrementBytes: increment,
		blockDataBytes: blockDataBytes,
		count:          count,
	}
}
