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

// Kind names one of the three interchangeable backend implementations.
type Kind string

const (
	Mmap     Kind = "mmap"
	DirectIO Kind = "directio"
	Memory   Kind = "memory"
)

// Options configures Open. There is no JSON or environment-variable
// surface here: this is the enumerated, typed configuration spec §6.4
// describes; any CLI or env-var plumbing belongs to the surrounding
// program, not the core.
type Options struct {
	// Mode selects read-only vs read-write.
	Mode Mode

	// Backend selects which of the three I/O backends to use.
	Backend Kind

	// BlockDataBytes is the payload size per block. On an existing
	// file it must match the stored value, or Open fails with
	// ferr.BadArgument; the stored value always wins.
	BlockDataBytes int

	// IncrementBytes is the file growth unit, before alignment to
	// block size and OS page size. On an existing file, the stored
	// value is adopted and the chunk size recomputed from it.
	IncrementBytes int

	// TrackLocks enables the engine's internal RWMutexTracker
	// diagnostic logging (see pkg/syncutil). Off by default.
	TrackLocks bool

	// NoCache disables the file lock guard of the mmap and direct-I/O
	// backends, allowing multiple opens of the same path within one
	// process (tests only); it has no effect on the in-memory backend.
	NoCache bool
}

const (
	defaultBlockDataBytes = 4080
	defaultIncrementBytes = 4 << 20 // 4 MiB
)

func (o Options) withDefaults() Options {
	if o.BlockDataBytes <= 0 {
		o.BlockDataBytes = defaultBlockDataBytes
	}
	if o.IncrementBytes <= 0 {
		o.IncrementBytes = defaultIncrementBytes
	}
	if o.Backend == "" {
		o.Backend = Memory
	}
	return o
}
