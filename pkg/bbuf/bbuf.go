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

// Package bbuf is a small little-endian typed accessor over a []byte,
// used to encode and decode the block store's file header, block
// headers, and the B+Tree's node payloads without scattering raw
// encoding/binary offset arithmetic through those packages.
package bbuf

import "encoding/binary"

// Buf wraps a []byte with a cursor ("position") and an upper bound
// ("limit"), in the spirit of a bounded NIO-style byte buffer: typed
// reads and writes advance the position and panic if they would cross
// the limit, so a malformed on-disk length can never walk off the end
// of the underlying slice.
type Buf struct {
	b        []byte
	pos, lim int
}

// Wrap returns a Buf over b, with the limit set to len(b).
func Wrap(b []byte) *Buf {
	return &Buf{b: b, lim: len(b)}
}

// Bytes returns the underlying slice in full, ignoring position/limit.
func (buf *Buf) Bytes() []byte { return buf.b }

// Len returns the limit.
func (buf *Buf) Len() int { return buf.lim }

// Pos returns the current position.
func (buf *Buf) Pos() int { return buf.pos }

// Rewind resets the position to zero.
func (buf *Buf) Rewind() { buf.pos = 0 }

// Remaining reports how many bytes lie between position and limit.
func (buf *Buf) Remaining() int { return buf.lim - buf.pos }

// Seek sets the position explicitly, panicking if it falls outside
// [0, limit].
func (buf *Buf) Seek(pos int) {
	if pos < 0 || pos > buf.lim {
		panic("bbuf: seek out of range")
	}
	buf.pos = pos
}

// Slice returns the n bytes at the current position as a sub-buffer
// sharing the same backing array, and advances the position by n.
func (buf *Buf) Slice(n int) []byte {
	buf.need(n)
	s := buf.b[buf.pos : buf.pos+n]
	buf.pos += n
	return s
}

func (buf *Buf) need(n int) {
	if n < 0 || buf.pos+n > buf.lim {
		panic("bbuf: access out of range")
	}
}

// ReadU8 reads one byte at the current position and advances by 1.
func (buf *Buf) ReadU8() byte {
	buf.need(1)
	v := buf.b[buf.pos]
	buf.pos++
	return v
}

// WriteU8 writes one byte at the current position and advances by 1.
func (buf *Buf) WriteU8(v byte) {
	buf.need(1)
	buf.b[buf.pos] = v
	buf.pos++
}

// ReadI16 reads a little-endian 16-bit signed integer and advances by 2.
func (buf *Buf) ReadI16() int16 {
	buf.need(2)
	v := int16(binary.LittleEndian.Uint16(buf.b[buf.pos:]))
	buf.pos += 2
	return v
}

// WriteI16 writes a little-endian 16-bit signed integer and advances by 2.
func (buf *Buf) WriteI16(v int16) {
	buf.need(2)
	binary.LittleEndian.PutUint16(buf.b[buf.pos:], uint16(v))
	buf.pos += 2
}

// ReadI32 reads a little-endian 32-bit signed integer and advances by 4.
func (buf *Buf) ReadI32() int32 {
	buf.need(4)
	v := int32(binary.LittleEndian.Uint32(buf.b[buf.pos:]))
	buf.pos += 4
	return v
}

// WriteI32 writes a little-endian 32-bit signed integer and advances by 4.
func (buf *Buf) WriteI32(v int32) {
	buf.need(4)
	binary.LittleEndian.PutUint32(buf.b[buf.pos:], uint32(v))
	buf.pos += 4
}

// ReadI64 reads a little-endian 64-bit signed integer and advances by 8.
func (buf *Buf) ReadI64() int64 {
	buf.need(8)
	v := int64(binary.LittleEndian.Uint64(buf.b[buf.pos:]))
	buf.pos += 8
	return v
}

// WriteI64 writes a little-endian 64-bit signed integer and advances by 8.
func (buf *Buf) WriteI64(v int64) {
	buf.need(8)
	binary.LittleEndian.PutUint64(buf.b[buf.pos:], uint64(v))
	buf.pos += 8
}

// PeekI64At reads a little-endian 64-bit signed integer at an absolute
// offset without moving the cursor. Used to sniff the internal-node
// sentinel (spec §6.3) before deciding how to decode the rest of a node.
func PeekI64At(b []byte, off int) int64 {
	return int64(binary.LittleEndian.Uint64(b[off : off+8]))
}

// PutI64At writes v as little-endian at an absolute offset without
// touching any Buf's cursor.
func PutI64At(b []byte, off int, v int64) {
	binary.LittleEndian.PutUint64(b[off:off+8], uint64(v))
}
