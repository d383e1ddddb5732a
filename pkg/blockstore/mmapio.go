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
	"sync"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
	"github.com/gofrs/flock"

	"github.com/fillmemory/flintdb-sub001/pkg/lru"
)

// maxChunkCacheBytes bounds how many chunk mappings the mmap backend
// keeps resident at once. This is an internal policy choice, not part
// of the file's configuration surface: spec §6.4 only exposes a
// cache-bytes knob for the B+Tree's node cache.
const maxChunkCacheBytes = 64 << 20

// mmapPager memory-maps the file's header once, persistently, and
// maps each growth chunk lazily on first touch through a bounded LRU
// (spec §4.1, "Mmap backend").
type mmapPager struct {
	f    *os.File
	lock *flock.Flock

	headerMap mmap.MMap

	mu         sync.Mutex
	sz         int64
	chunkBytes int64
	cache      *lru.Cache[int64, mmap.MMap]

	hits, misses, evicted int64
}

func openMmapPager(path string, mode Mode, noLock bool) (*mmapPager, error) {
	flags := os.O_RDWR | os.O_CREATE
	if mode == ReadOnly {
		flags = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
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
			return nil, fmt.Errorf("mmapio: %s is locked by another process", path)
		}
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	p := &mmapPager{f: f, lock: fl, sz: fi.Size()}
	return p, nil
}

// setChunkBytes finishes initialization once the engine has computed
// the chunk size; it also maps the (now guaranteed HeaderBytes-sized)
// header region.
func (p *mmapPager) setChunkBytes(chunkBytes int64) error {
	p.chunkBytes = chunkBytes
	p.cache = lru.New[int64, mmap.MMap](maxChunkCacheBytes, func(m mmap.MMap) int { return len(m) })
	p.cache.OnEvict(func(_ int64, m mmap.MMap) {
		atomic.AddInt64(&p.evicted, 1)
		m.Unmap()
	})
	hm, err := mmap.MapRegion(p.f, HeaderBytes, mmap.RDWR, 0, 0)
	if err != nil {
		return err
	}
	p.headerMap = hm
	return nil
}

func (p *mmapPager) size() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sz
}

func (p *mmapPager) ensureSize(n int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= p.sz {
		return nil
	}
	if err := p.f.Truncate(n); err != nil {
		return err
	}
	p.sz = n
	return nil
}

func (p *mmapPager) chunk(idx int64) (mmap.MMap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.cache.Get(idx); ok {
		atomic.AddInt64(&p.hits, 1)
		return m, nil
	}
	atomic.AddInt64(&p.misses, 1)
	off := int64(HeaderBytes) + idx*p.chunkBytes
	m, err := mmap.MapRegion(p.f, int(p.chunkBytes), mmap.RDWR, 0, off)
	if err != nil {
		return nil, err
	}
	p.cache.Add(idx, m)
	return m, nil
}

func (p *mmapPager) readAt(off int64, buf []byte) error {
	if off+int64(len(buf)) <= HeaderBytes {
		copy(buf, p.headerMap[off:off+int64(len(buf))])
		return nil
	}
	rel := off - HeaderBytes
	idx := rel / p.chunkBytes
	local := rel % p.chunkBytes
	m, err := p.chunk(idx)
	if err != nil {
		return err
	}
	copy(buf, m[local:local+int64(len(buf))])
	return nil
}

func (p *mmapPager) writeAt(off int64, buf []byte) error {
	if off+int64(len(buf)) <= HeaderBytes {
		copy(p.headerMap[off:off+int64(len(buf))], buf)
		return nil
	}
	rel := off - HeaderBytes
	idx := rel / p.chunkBytes
	local := rel % p.chunkBytes
	m, err := p.chunk(idx)
	if err != nil {
		return err
	}
	copy(m[local:local+int64(len(buf))], buf)
	return nil
}

func (p *mmapPager) stats() Stats {
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

func (p *mmapPager) close() error {
	p.mu.Lock()
	if p.cache != nil {
		p.cache.Clear()
	}
	if p.headerMap != nil {
		p.headerMap.Flush()
		p.headerMap.Unmap()
	}
	p.mu.Unlock()

	var lockErr error
	if p.lock != nil {
		lockErr = p.lock.Unlock()
	}
	if err := p.f.Close(); err != nil {
		return err
	}
	return lockErr
}

const mmapPagerFallbackPageSize = 4096

// openMmap opens an Engine backed by the mmap pager.
func openMmap(path string, opts Options) (*Engine, error) {
	p, err := openMmapPager(path, opts.Mode, opts.NoCache)
	if err != nil {
		return nil, err
	}
	pageSize := os.Getpagesize()
	if pageSize <= 0 {
		pageSize = mmapPagerFallbackPageSize
	}

	fresh := p.sz == 0
	if fresh {
		if err := p.ensureSize(HeaderBytes); err != nil {
			p.f.Close()
			return nil, err
		}
	}

	// The chunk size depends only on opts/stored values, not on
	// anything the pager computed, so it's safe to derive it here
	// before calling setChunkBytes and before handing p to the engine.
	o := opts.withDefaults()
	blockBytes := BlockHeaderBytes + o.BlockDataBytes
	chunkBytes := computeChunkBytes(blockBytes, o.IncrementBytes, pageSize)
	if !fresh {
		hdr := make([]byte, commonTrailerBytes)
		// Header isn't mapped yet; read it directly via the file.
		if _, err := p.f.ReadAt(hdr, trailerOffset); err != nil {
			p.f.Close()
			return nil, err
		}
		t := decodeTrailer(hdr)
		blockBytes = BlockHeaderBytes + int(t.blockDataBytes)
		chunkBytes = computeChunkBytes(blockBytes, int(t.incrementBytes), pageSize)
	}
	if err := p.setChunkBytes(chunkBytes); err != nil {
		p.f.Close()
		return nil, err
	}

	return openEngine(p, opts, pageSize, fresh)
}
