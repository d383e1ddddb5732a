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

// Package ferr defines the error kinds used to decide how to deal with
// a given block-store or B+Tree failure, rather than matching on error
// strings.
package ferr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it with errors.As,
// without depending on the wrapped error's message.
type Kind int

const (
	// Io covers backing store read/write/truncate/map failures.
	Io Kind = iota
	// NotSet means a read or chain walk hit a block whose status is free.
	NotSet
	// BadChain means a chain length overflow, self-loop, inconsistent
	// mark on a non-head follower, or a stored length that disagrees
	// with the chain's actual payload.
	BadChain
	// BadArgument means an open-time mismatch between requested and
	// stored block/increment size, or a non-positive key.
	BadArgument
	// Corrupt means a tree-level invariant violation during navigation.
	Corrupt
	// OutOfMemory means an allocation failure for a scratch buffer,
	// cache entry, or node materialization.
	OutOfMemory
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case NotSet:
		return "not-set"
	case BadChain:
		return "bad-chain"
	case BadArgument:
		return "bad-argument"
	case Corrupt:
		return "corrupt"
	case OutOfMemory:
		return "out-of-memory"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned at package boundaries. Op
// names the failing operation (e.g. "blockstore.Read"); Err, if non-nil,
// is the underlying cause and is reachable via errors.Unwrap.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, so callers
// can write errors.Is(err, ferr.New(ferr.NotSet, "", nil)) or, more
// idiomatically, use Kind.Is below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error of the given kind.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Of reports the Kind of err if it (or something it wraps) is a *Error,
// and ok=true. Otherwise it returns (Io, false).
func Of(err error) (kind Kind, ok bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return Io, false
}
