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
	"bytes"
	"path/filepath"
	"testing"

	"github.com/fillmemory/flintdb-sub001/pkg/ferr"
)

// backendCase names one of the three backends under test, adapted
// from the shared-conformance-suite-over-multiple-implementations
// pattern (one test body, many concrete backends).
type backendCase struct {
	name string
	open func(t *testing.T, opts Options) Backend
}

func backendCases() []backendCase {
	return []backendCase{
		{
			name: "memory",
			open: func(t *testing.T, opts Options) Backend {
				opts.Backend = Memory
				s, err := Open("", opts)
				if err != nil {
					t.Fatalf("Open(memory): %v", err)
				}
				return s
			},
		},
		{
			name: "mmap",
			open: func(t *testing.T, opts Options) Backend {
				opts.Backend = Mmap
				opts.NoCache = true
				path := filepath.Join(t.TempDir(), "store.flint")
				s, err := Open(path, opts)
				if err != nil {
					t.Fatalf("Open(mmap): %v", err)
				}
				return s
			},
		},
		{
			name: "directio",
			open: func(t *testing.T, opts Options) Backend {
				opts.Backend = DirectIO
				opts.NoCache = true
				path := filepath.Join(t.TempDir(), "store.flint")
				s, err := Open(path, opts)
				if err != nil {
					t.Fatalf("Open(directio): %v", err)
				}
				return s
			},
		},
	}
}

func testOptions() Options {
	return Options{BlockDataBytes: 4080, IncrementBytes: 64 << 10}
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, testOptions())
			defer s.Close()

			payload := bytes.Repeat([]byte{0x41}, 10)
			off, err := s.Write(payload)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := s.Read(off)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("Read = %v; want %v", got, payload)
			}
		})
	}
}

func TestOverflowChain(t *testing.T) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, testOptions())
			defer s.Close()

			payload := bytes.Repeat([]byte{0xCC}, 10000)
			off, err := s.Write(payload)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := s.Read(off)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("Read returned %d bytes; want %d matching payload", len(got), len(payload))
			}

			n, err := s.Delete(off)
			if err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if n != 3 {
				t.Fatalf("Delete freed %d blocks; want 3 (4080+4080+1840)", n)
			}

			off2, err := s.Write(bytes.Repeat([]byte{0x00}, 10))
			if err != nil {
				t.Fatalf("Write after delete: %v", err)
			}
			if off2 != off {
				t.Fatalf("Write after delete reused offset %d; want free-list head %d", off2, off)
			}
			if got, want := s.Count(), int64(1); got != want {
				t.Fatalf("Count() = %d; want %d", got, want)
			}
		})
	}
}

func TestWriteAtOverwriteShrinksChain(t *testing.T) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, testOptions())
			defer s.Close()

			off, err := s.Write(bytes.Repeat([]byte{0xAA}, 10000))
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := s.WriteAt(off, []byte("short")); err != nil {
				t.Fatalf("WriteAt: %v", err)
			}
			got, err := s.Read(off)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if string(got) != "short" {
				t.Fatalf("Read after WriteAt = %q; want %q", got, "short")
			}
		})
	}
}

func TestDeleteAlreadyFreeReturnsZero(t *testing.T) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, testOptions())
			defer s.Close()

			off, err := s.Write([]byte("x"))
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if _, err := s.Delete(off); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			n, err := s.Delete(off)
			if err != nil {
				t.Fatalf("second Delete: %v", err)
			}
			if n != 0 {
				t.Fatalf("second Delete freed %d blocks; want 0", n)
			}
		})
	}
}

func TestReadFreeBlockReturnsNotSet(t *testing.T) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, testOptions())
			defer s.Close()

			off, err := s.Write([]byte("x"))
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if _, err := s.Delete(off); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			_, err = s.Read(off)
			if err == nil {
				t.Fatalf("Read after delete succeeded; want NotSet error")
			}
			if kind, ok := ferr.Of(err); !ok || kind != ferr.NotSet {
				t.Fatalf("Read after delete error = %v; want kind NotSet", err)
			}
		})
	}
}

func TestHeadWriteHeadRoundTrip(t *testing.T) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, testOptions())
			defer s.Close()

			if err := s.WriteHead(0, []byte("B+T1")); err != nil {
				t.Fatalf("WriteHead: %v", err)
			}
			got, err := s.Head(0, 4)
			if err != nil {
				t.Fatalf("Head: %v", err)
			}
			if string(got) != "B+T1" {
				t.Fatalf("Head = %q; want %q", got, "B+T1")
			}
		})
	}
}

func TestHeadOutOfBoundsFails(t *testing.T) {
	s := backendCases()[0].open(t, testOptions())
	defer s.Close()
	if _, err := s.Head(ExtraHeaderBytes-2, 4); err == nil {
		t.Fatalf("Head past extra header region succeeded; want bounds error")
	}
}

func TestGrowthAcrossManyRecords(t *testing.T) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			opts := testOptions()
			opts.IncrementBytes = 8 << 10 // force several inflations
			s := bc.open(t, opts)
			defer s.Close()

			offs := make([]BlockIndex, 200)
			for i := range offs {
				off, err := s.Write([]byte{byte(i)})
				if err != nil {
					t.Fatalf("Write #%d: %v", i, err)
				}
				offs[i] = off
			}
			for i, off := range offs {
				got, err := s.Read(off)
				if err != nil {
					t.Fatalf("Read #%d: %v", i, err)
				}
				if len(got) != 1 || got[0] != byte(i) {
					t.Fatalf("Read #%d = %v; want [%d]", i, got, byte(i))
				}
			}
			if got, want := s.Count(), int64(200); got != want {
				t.Fatalf("Count() = %d; want %d", got, want)
			}
		})
	}
}

// S1 from spec §8: growth + recovery.
func TestScenarioS1GrowthAndRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1.flint")
	opts := testOptions()
	opts.Backend = Mmap
	opts.NoCache = true

	s, err := Open(path, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	off0, err := s.Write(bytes.Repeat([]byte{0x41}, 10))
	if err != nil {
		t.Fatalf("Write 0x41: %v", err)
	}
	off1, err := s.Write(bytes.Repeat([]byte{0x42}, 10))
	if err != nil {
		t.Fatalf("Write 0x42: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path, opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got0, err := s2.Read(off0)
	if err != nil || !bytes.Equal(got0, bytes.Repeat([]byte{0x41}, 10)) {
		t.Fatalf("Read(off0) = %v, %v; want ten 0x41 bytes", got0, err)
	}
	got1, err := s2.Read(off1)
	if err != nil || !bytes.Equal(got1, bytes.Repeat([]byte{0x42}, 10)) {
		t.Fatalf("Read(off1) = %v, %v; want ten 0x42 bytes", got1, err)
	}
	if got, want := s2.Count(), int64(2); got != want {
		t.Fatalf("Count() = %d; want %d", got, want)
	}
}

// S2 from spec §8: overflow chain with literal block_data_bytes=4080.
func TestScenarioS2OverflowChain(t *testing.T) {
	opts := testOptions()
	s, err := Open("", opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	off, err := s.Write(bytes.Repeat([]byte{0xCC}, 10000))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if off != 0 {
		t.Fatalf("first write returned offset %d; want 0", off)
	}
	got, err := s.Read(off)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 10000 {
		t.Fatalf("Read returned %d bytes; want 10000", len(got))
	}
	n, err := s.Delete(off)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("Delete returned %d; want 1", n)
	}
	off2, err := s.Write(bytes.Repeat([]byte{0x00}, 10))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if off2 != 0 {
		t.Fatalf("second write returned offset %d; want 0 (free-list head)", off2)
	}
	if got, want := s.Count(), int64(1); got != want {
		t.Fatalf("Count() = %d; want %d", got, want)
	}
}
