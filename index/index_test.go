package index_test

import (
	"testing"

	"github.com/partimesh/parti/index"
)

func TestTraversalCompleteness2D(t *testing.T) {
	sp := index.NewSpace("s", 2, index.NewIndex2(4, 4))
	slc := index.NewSlice(sp, index.NewIndex2(1, 1), index.NewIndex2(3, 3))

	want := index.Size(2, slc)
	seen := map[[2]int64]bool{}

	idx := slc.From
	for {
		if !index.Contains(2, slc, idx) {
			t.Fatalf("visited index %v outside slice", idx)
		}
		key := [2]int64{idx.I[0], idx.I[1]}
		if seen[key] {
			t.Fatalf("index %v visited twice", idx)
		}
		seen[key] = true
		if !index.NextLex(2, slc, &idx) {
			break
		}
	}

	if int64(len(seen)) != want {
		t.Fatalf("visited %d indices, want %d", len(seen), want)
	}
}

func TestTraversalCompleteness3D(t *testing.T) {
	sp := index.NewSpace("s", 3, index.NewIndex3(3, 3, 3))
	slc := index.NewSlice(sp, index.NewIndex3(0, 0, 0), index.NewIndex3(2, 3, 2))

	want := index.Size(3, slc)
	count := int64(0)
	idx := slc.From
	for {
		count++
		if !index.NextLex(3, slc, &idx) {
			break
		}
	}
	if count != want {
		t.Fatalf("visited %d indices, want %d", count, want)
	}
}

func TestIsEmpty(t *testing.T) {
	sp := index.NewSpace("s", 1, index.NewIndex1(8))
	empty := index.NewSlice(sp, index.NewIndex1(3), index.NewIndex1(3))
	if !empty.IsEmpty() {
		t.Fatalf("expected empty slice")
	}
	if index.Size(1, empty) != 0 {
		t.Fatalf("expected size 0")
	}
}

func TestIntersect(t *testing.T) {
	sp := index.NewSpace("s", 2, index.NewIndex2(10, 10))
	a := index.NewSlice(sp, index.NewIndex2(0, 0), index.NewIndex2(5, 5))
	b := index.NewSlice(sp, index.NewIndex2(3, 3), index.NewIndex2(8, 8))
	got := index.Intersect(2, a, b)
	want := index.NewSlice(sp, index.NewIndex2(3, 3), index.NewIndex2(5, 5))
	if got.From != want.From || got.To != want.To {
		t.Fatalf("intersect = %+v, want %+v", got, want)
	}
}
