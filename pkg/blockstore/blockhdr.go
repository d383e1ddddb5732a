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

// BlockHeaderBytes is the size of the per-block header, spec §6.2.
const BlockHeaderBytes = 16

const (
	statusAllocated byte = '+'
	statusFree      byte = '-'

	markData   byte = 'D'
	markNext   byte = 'N'
	markUnused byte = 'X'
)

// blockHeader mirrors the 16-byte on-disk block header exactly.
type blockHeader struct {
	status      byte
	mark        byte
	chunkLength int16
	totalLength int32
	next        int64
}

func (h blockHeader) encode(b []byte) {
	buf := bbuf.Wrap(b)
	buf.WriteU8(h.status)
	buf.WriteU8(h.mark)
	buf.WriteI16(h.chunkLength)
	buf.WriteI32(h.totalLength)
	buf.WriteI64(h.next)
}

func decodeBlockHeader(b []byte) blockHeader {
	buf := bbuf.Wrap(b)
	status := buf.ReadU8()
	mark := buf.ReadU8()
	chunkLength := buf.ReadI16()
	totalLength := buf.ReadI32()
	next := buf.ReadI64()
	return blockHeader{
		status:      status,
		mark:        mark,
		chunkLength: chunkLength,
		totalLength: totalLength,
		next:        next,
	}
}

func (h blockHeader) isFree() bool      { return h.status == statusFree }
func (h blockHeader) isAllocated() bool { return h.status == statusAllocated }
