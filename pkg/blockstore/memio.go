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
	"fmt"
	"sync"
)

// memPager replaces the file with a single growable in-memory buffer.
// It provides no durability; it exists for tests and ephemeral
// indexes (spec §4.1, "In-memory backend").
type memPager struct {
	mu  sync.Mutex
	buf []byte
}

func (m *memPager) size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.buf))
}

func (m *memPager) ensureSize(n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int64(len(m.buf)) >= n {
		return nil
	}
	grown := make([]byte, n)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

func (m *memPager) readAt(off int64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(buf)) > int64(len(m.buf)) {
		return fmt.Errorf("memio: read [%d,%d) out of range (size %d)", off, off+int64(len(buf)), len(m.buf))
	}
	copy(buf, m.buf[off:])
	return nil
}

func (m *memPager) writeAt(off int64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(buf)) > int64(len(m.buf)) {
		return fmt.Errorf("memio: write [%d,%d) out of range (size %d)", off, off+int64(len(buf)), len(m.buf))
	}
	copy(m.buf[off:], buf)
	return nil
}

func (m *memPager) close() error { return nil }

const memPagerPageSize = 4096

// openMemory opens an Engine over a fresh in-memory pager. There is no
// way to "reopen" prior state: every call starts empty.
func openMemory(opts Options) (*Engine, error) {
	return openEngine(&memPager{}, opts, memPagerPageSize, true)
}
