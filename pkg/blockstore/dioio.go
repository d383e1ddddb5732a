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
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"github.com/fillmemory/flintdb-sub001/pkg/lru"
)

// maxDioCacheBytes bounds the direct-I/O backend's page write-back
// cache, the same internal-policy knob as the mmap backend's chunk
// cache (see maxChunkCacheBytes).
const maxDioCacheBytes = 32 << 20

// dioPager is a page-keyed write-back cache of aligned buffers over a
// file opened (where the platform supports it) with O_DIRECT. Writes
// update the page in cache and mark it dirty; a flush sweeps the
// cache in ascending page order, coalescing contiguous runs into a
// single aligned pwrite (spec §4.1, "Direct-I/O backend").
type dioPager struct {
	f    *os.File
	fd   int
	lock *flock.Flock

	pageSize int64

	mu     sync.Mutex
	sz     int64
	cache  *lru.Cache[int64, []byte]
	dirty  map[int64]bool

	hits, misses, evicted int64
}

func openDioPager(path string, mode Mode, noLock bool) (*dioPager, error) {
	flags := os.O_RDWR | os.O_CREATE
	if mode == ReadOnly {
		flags = os.O_RDONLY
	}
	direct := flags | unix.O_DIRECT
	f, err := os.OpenFile(path, direct, 0o644)
	if err != nil {
		// O_DIRECT isn't available on every filesystem (e.g. tmpfs);
		// fall back to buffered I/O rather than fail outright.
		f, err = os.OpenFile(path, flags, 0o644)
		if err != nil {
			return nil, err
		}
	}

	var fl *flock.Flock
	if !noLock {
		fl = flock.New(path + ".lock")
		locked, err := fl.TryLock()
		if err != nil {
			f.Close()
			return nil, err
		}
		if !locked {
			f.Close()
			return nil, fmt.Errorf("dioio: %s is locked by another process", path)
		}
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	pageSize := int64(unix.Getpagesize())
	p := &dioPager{
		f:        f,
		fd:       int(f.Fd()),
		lock:     fl,
		pageSize: pageSize,
		sz:       fi.Size(),
		dirty:    make(map[int64]bool),
	}
	p.cache = lru.New[int64, []byte](maxDioCacheBytes, func(b []byte) int { return len(b) })
	p.cache.OnEvict(func(idx int64, buf []byte) {
		atomic.AddInt64(&p.evicted, 1)
		if p.dirty[idx] {
			p.flushPage(idx, buf)
		}
	})
	return p, nil
}

func (p *dioPager) size() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sz
}

func (p *dioPager) ensureSize(n int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= p.sz {
		return nil
	}
	if err := unix.Fallocate(p.fd, 0, 0, n); err != nil {
		if err := p.f.Truncate(n); err != nil {
			return err
		}
	}
	p.sz = n
	return nil
}

func (p *dioPager) page(idx int64, forWrite bool) ([]byte, error) {
	if b, ok := p.cache.Get(idx); ok {
		atomic.AddInt64(&p.hits, 1)
		return b, nil
	}
	atomic.AddInt64(&p.misses, 1)
	buf := make([]byte, p.pageSize)
	off := idx * p.pageSize
	if off < p.sz {
		n, err := unix.Pread(p.fd, buf, off)
		if err != nil {
			return nil, err
		}
		_ = n // a short read at EOF just leaves the tail zeroed
	}
	p.cache.Add(idx, buf)
	return buf, nil
}

func (p *dioPager) readAt(off int64, out []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := 0
	for pos < len(out) {
		abs := off + int64(pos)
		idx := abs / p.pageSize
		local := abs % p.pageSize
		buf, err := p.page(idx, false)
		if err != nil {
			return err
		}
		n := copy(out[pos:], buf[local:])
		pos += n
	}
	return nil
}

func (p *dioPager) writeAt(off int64, in []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := 0
	for pos < len(in) {
		abs := off + int64(pos)
		idx := abs / p.pageSize
		local := abs % p.pageSize
		buf, err := p.page(idx, true)
		if err != nil {
			return err
		}
		n := copy(buf[local:], in[pos:])
		p.dirty[idx] = true
		pos += n
	}
	return nil
}

func (p *dioPager) flushPage(idx int64, buf []byte) error {
	_, err := unix.Pwrite(p.fd, buf, idx*p.pageSize)
	if err == nil {
		delete(p.dirty, idx)
	}
	return err
}

// flush coalesces contiguous dirty pages into single pwrite calls,
// ascending by page index, per spec §4.1.
func (p *dioPager) flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked()
}

func (p *dioPager) flushLocked() error {
	if len(p.dirty) == 0 {
		return nil
	}
	idxs := make([]int64, 0, len(p.dirty))
	for idx := range p.dirty {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

	i := 0
	for i < len(idxs) {
		j := i + 1
		for j < len(idxs) && idxs[j] == idxs[j-1]+1 {
			j++
		}
		run := make([]byte, 0, (j-i)*int(p.pageSize))
		for k := i; k < j; k++ {
			buf, ok := p.cache.Get(idxs[k])
			if !ok {
				// Evicted between collecting dirty indices and
				// flushing; eviction already flushed it.
				continue
			}
			run = append(run, buf...)
		}
		if len(run) > 0 {
			if _, err := unix.Pwrite(p.fd, run, idxs[i]*p.pageSize); err != nil {
				return err
			}
		}
		for k := i; k < j; k++ {
			delete(p.dirty, idxs[k])
		}
		i = j
	}
	return nil
}

func (p *dioPager) stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.cache.Stats()
	return Stats{
		Hits:            atomic.LoadInt64(&p.hits),
		Misses:          atomic.LoadInt64(&p.misses),
		Evicted:         atomic.LoadInt64(&p.evicted),
		CacheBytesUsed:  st.BytesUsed,
		CacheBytesTotal: st.BytesTotal,
	}
}

func (p *dioPager) close() error {
	p.mu.Lock()
	flushErr := p.flushLocked()
	p.mu.Unlock()

	var lockErr error
	if p.lock != nil {
		lockErr = p.lock.Unlock()
	}
	if err := p.f.Close(); err != nil {
		return err
	}
	if flushErr != nil {
		return flushErr
	}
	return lockErr
}

// openDirectIO opens an Engine backed by the direct-I/O pager.
func openDirectIO(path string, opts Options) (*Engine, error) {
	p, err := openDioPager(path, opts.Mode, opts.NoCache)
	if err != nil {
		return nil, err
	}
	fresh := p.sz == 0
	e, err := openEngine(p, opts, int(p.pageSize), fresh)
	if err != nil {
		p.close()
		return nil, err
	}
	return e, nil
}
