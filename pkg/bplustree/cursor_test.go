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

package bplustree

import "testing"

func rangeCmp(lo, hi int64) RangeComparator {
	return func(_ any, key int64) int {
		switch {
		case key < lo:
			return 1 // before range: skip
		case key > hi:
			return -1 // after range: stop
		default:
			return 0
		}
	}
}

// S4 from spec §8: after S3 (1..1000 inserted), an ascending find over
// [250,260] yields 250..260, descending yields 260..250.
func TestScenarioS4RangeScan(t *testing.T) {
	tr := openTestTree(t)
	defer tr.Close()
	for k := int64(1); k <= 1000; k++ {
		if err := tr.Put(k); err != nil {
			t.Fatalf("Put(%d): %v", k, err)
		}
	}

	cur, err := tr.Find(Asc, nil, rangeCmp(250, 260))
	if err != nil {
		t.Fatalf("Find(Asc): %v", err)
	}
	var got []int64
	for cur.Next() {
		got = append(got, cur.Key())
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error: %v", err)
	}
	if err := cur.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := []int64{250, 251, 252, 253, 254, 255, 256, 257, 258, 259, 260}
	if !int64SliceEqual(got, want) {
		t.Fatalf("ascending scan = %v; want %v", got, want)
	}

	cur2, err := tr.Find(Desc, nil, rangeCmp(250, 260))
	if err != nil {
		t.Fatalf("Find(Desc): %v", err)
	}
	got = nil
	for cur2.Next() {
		got = append(got, cur2.Key())
	}
	if err := cur2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wantDesc := []int64{260, 259, 258, 257, 256, 255, 254, 253, 252, 251, 250}
	if !int64SliceEqual(got, wantDesc) {
		t.Fatalf("descending scan = %v; want %v", got, wantDesc)
	}
}

func TestFindEmptyTree(t *testing.T) {
	tr := openTestTree(t)
	defer tr.Close()

	cur, err := tr.Find(Asc, nil, rangeCmp(1, 10))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if cur.Next() {
		t.Fatalf("Next() on empty tree returned true")
	}
	if err := cur.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close must be idempotent.
	if err := cur.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestFindUnboundedScan(t *testing.T) {
	tr := openTestTree(t)
	defer tr.Close()
	for _, k := range []int64{5, 1, 3, 2, 4} {
		if err := tr.Put(k); err != nil {
			t.Fatalf("Put(%d): %v", k, err)
		}
	}
	cur, err := tr.Find(Asc, nil, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	defer cur.Close()
	var got []int64
	for cur.Next() {
		got = append(got, cur.Key())
	}
	if !int64SliceEqual(got, []int64{1, 2, 3, 4, 5}) {
		t.Fatalf("unbounded scan = %v; want 1..5", got)
	}
}

func int64SliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
