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

// Package syncutil provides a lock that can assert the single-writer
// model spec §5 assumes: at most one exclusive holder across the block
// store and B+Tree at any time, with an opt-in diagnostic mode for
// tracking down a stuck holder.
package syncutil

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// RWMutexTracker is a sync.RWMutex that additionally tracks who holds
// the current exclusive lock, for debugging deadlocks. Tracking (the
// background logger and stack capture) is off by default; call
// EnableLogging to turn it on. An embedded library should not spawn a
// logging goroutine merely because it was constructed.
type RWMutexTracker struct {
	mu sync.RWMutex

	nwaitr int32
	nwaitw int32
	nhaver int32
	nhavew int32 // should always be 0 or 1

	logging int32 // atomic bool
	logOnce sync.Once

	hmu    sync.Mutex
	holder []byte
}

const stackBufSize = 16 << 20

// EnableLogging turns on the per-second wait/hold counter log and stack
// capture on Lock/Unlock. Intended for diagnosing a stuck single-writer
// invariant during development, not for production use.
func (m *RWMutexTracker) EnableLogging() {
	atomic.StoreInt32(&m.logging, 1)
	m.logOnce.Do(m.startLogger)
}

func (m *RWMutexTracker) startLogger() {
	go func() {
		for {
			time.Sleep(1 * time.Second)
			if atomic.LoadInt32(&m.logging) == 0 {
				continue
			}
			log.Printf("Mutex %p: waitW %d haveW %d   waitR %d haveR %d",
				m,
				atomic.LoadInt32(&m.nwaitw),
				atomic.LoadInt32(&m.nhavew),
				atomic.LoadInt32(&m.nwaitr),
				atomic.LoadInt32(&m.nhaver))
		}
	}()
}

func (m *RWMutexTracker) Lock() {
	atomic.AddInt32(&m.nwaitw, 1)
	m.mu.Lock()
	atomic.AddInt32(&m.nwaitw, -1)
	atomic.AddInt32(&m.nhavew, 1)

	if atomic.LoadInt32(&m.logging) == 0 {
		return
	}
	m.hmu.Lock()
	if cap(m.holder) < stackBufSize {
		m.holder = make([]byte, stackBufSize)
	}
	m.holder = m.holder[:runtime.Stack(m.holder[:stackBufSize], false)]
	log.Printf("Lock at %s", string(m.holder))
	m.hmu.Unlock()
}

func (m *RWMutexTracker) Unlock() {
	if atomic.LoadInt32(&m.logging) != 0 {
		m.hmu.Lock()
		n := runtime.Stack(m.holder[:stackBufSize], false)
		log.Printf("Unlock at %s", m.holder[:n])
		m.holder = m.holder[:0]
		m.hmu.Unlock()
	}

	atomic.AddInt32(&m.nhavew, -1)
	m.mu.Unlock()
}

func (m *RWMutexTracker) RLock() {
	atomic.AddInt32(&m.nwaitr, 1)
	m.mu.RLock()
	atomic.AddInt32(&m.nwaitr, -1)
	atomic.AddInt32(&m.nhaver, 1)
}

func (m *RWMutexTracker) RUnlock() {
	atomic.AddInt32(&m.nhaver, -1)
	m.mu.RUnlock()
}

// Holder returns the stack trace of the current exclusive lock holder
// captured when it called Lock. It returns the empty string if the lock
// is not currently held, or if EnableLogging was never called.
func (m *RWMutexTracker) Holder() string {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	return string(m.holder)
}
