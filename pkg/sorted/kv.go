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

// Package sorted defines the iteration contract shared by this
// project's ordered structures. bplustree.Cursor satisfies Iterator;
// the interface lives in its own package so it carries no dependency
// on the tree or block-store packages, and so a future second index
// implementation could reuse it without importing bplustree.
package sorted

// Iterator iterates over an ordered structure's entries in key order.
//
// An iterator must be closed after use, but it is not necessary to read
// an iterator until exhaustion.
//
// An iterator is not necessarily goroutine-safe, but it is safe to use
// multiple iterators concurrently, with each in a dedicated goroutine,
// subject to the single-writer model documented on the structure that
// produced it.
type Iterator interface {
	// Next advances the iterator to the next entry in its scan
	// direction. It returns false when the iterator is exhausted or
	// has encountered an error; callers must check Err in that case.
	Next() bool

	// Err returns the first error encountered during iteration, or
	// nil if the iterator was simply exhausted.
	Err() error

	// Close closes the iterator and releases any resources it holds.
	// It is valid to call Close multiple times. Other methods should
	// not be called after the iterator has been closed.
	Close() error
}
