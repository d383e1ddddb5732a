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

// Constructor opens a Backend of one Kind at path with the given
// Options. The in-memory backend ignores path.
type Constructor func(path string, opts Options) (Backend, error)

var (
	mapLock      sync.Mutex
	constructors = make(map[Kind]Constructor)
)

// RegisterBackend registers a Constructor for the given Kind. It is an
// error to register the same Kind twice.
func RegisterBackend(kind Kind, ctor Constructor) {
	mapLock.Lock()
	defer mapLock.Unlock()
	if _, dup := constructors[kind]; dup {
		panic("blockstore: backend already registered for kind: " + string(kind))
	}
	constructors[kind] = ctor
}

func init() {
	RegisterBackend(Memory, func(path string, opts Options) (Backend, error) {
		return openMemory(opts)
	})
	RegisterBackend(Mmap, func(path string, opts Options) (Backend, error) {
		return openMmap(path, opts)
	})
	RegisterBackend(DirectIO, func(path string, opts Options) (Backend, error) {
		return openDirectIO(path, opts)
	})
}

// Open opens the store at path (ignored by the Memory backend) using
// the backend named by opts.Backend (defaulting to Memory).
func Open(path string, opts Options) (Backend, error) {
	opts = opts.withDefaults()
	mapLock.Lock()
	ctor, ok := constructors[opts.Backend]
	mapLock.Unlock()
	if !ok {
		return nil, fmt.Errorf("blockstore: backend kind %q not registered", opts.Backend)
	}
	return ctor(path, opts)
}
