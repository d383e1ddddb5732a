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

package syncutil

import "testing"

func TestRWMutexTrackerExclusion(t *testing.T) {
	var m RWMutexTracker
	m.Lock()
	done := make(chan struct{})
	go func() {
		m.Lock()
		close(done)
		m.Unlock()
	}()

	select {
	case <-done:
		t.Fatalf("second Lock() returned while first holder still held the lock")
	default:
	}
	m.Unlock()
	<-done
}

func TestRWMutexTrackerHolderEmptyWithoutLogging(t *testing.T) {
	var m RWMutexTracker
	m.Lock()
	defer m.Unlock()
	if h := m.Holder(); h != "" {
		t.Fatalf("Holder() = %q; want empty string when EnableLogging was never called", h)
	}
}

func TestRWMutexTrackerHolderPopulatedWhenLogging(t *testing.T) {
	var m RWMutexTracker
	m.EnableLogging()
	m.Lock()
	defer m.Unlock()
	if h := m.Holder(); h == "" {
		t.Fatalf("Holder() = empty; want a captured stack after EnableLogging")
	}
}

func TestRWMutexTrackerReadLocksConcurrent(t *testing.T) {
	var m RWMutexTracker
	m.RLock()
	done := make(chan struct{})
	go func() {
		m.RLock()
		m.RUnlock()
		close(done)
	}()
	<-done
	m.RUnlock()
}
