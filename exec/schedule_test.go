package exec

import "testing"

// TestPhasesDeadlockFree checks that the first count phases carry only
// the SendToHigher/RecvFromLower flags and the last count phases only
// SendToLower/RecvFromHigher, and that every task index is the target
// of a phase in each half (backend-mpi.c's count-phases-each-way
// structure).
func TestPhasesDeadlockFree(t *testing.T) {
	const n = 5
	phases := Phases(n)
	if len(phases) != 2*n {
		t.Fatalf("expected %d phases, got %d", 2*n, len(phases))
	}

	for i, ph := range phases {
		if i < n {
			if !ph.SendToHigher || !ph.RecvFromLower {
				t.Fatalf("phase %d: expected SendToHigher+RecvFromLower, got %+v", i, ph)
			}
			if ph.SendToLower || ph.RecvFromHigher {
				t.Fatalf("phase %d: unexpected lower-direction flags set: %+v", i, ph)
			}
		} else {
			if !ph.SendToLower || !ph.RecvFromHigher {
				t.Fatalf("phase %d: expected SendToLower+RecvFromHigher, got %+v", i, ph)
			}
			if ph.SendToHigher || ph.RecvFromLower {
				t.Fatalf("phase %d: unexpected higher-direction flags set: %+v", i, ph)
			}
		}
	}

	// Every task index in [0, n) appears in exactly one "rising" phase
	// (i < n) and once in a "falling" phase (i >= n), the shape
	// backend-mpi.c relies on to guarantee no two live peers wait on
	// each other: at the phase matching task X, only one side of the
	// pair is ever asked to act first.
	seenRising := make(map[int]bool)
	seenFalling := make(map[int]bool)
	for i, ph := range phases {
		if i < n {
			seenRising[ph.Task] = true
		} else {
			seenFalling[ph.Task] = true
		}
	}
	for task := 0; task < n; task++ {
		if !seenRising[task] {
			t.Fatalf("task %d missing from rising phases", task)
		}
		if !seenFalling[task] {
			t.Fatalf("task %d missing from falling phases", task)
		}
	}
}

func TestPhasesZeroAndOne(t *testing.T) {
	if got := Phases(0); len(got) != 0 {
		t.Fatalf("Phases(0): expected no phases, got %d", len(got))
	}
	got := Phases(1)
	if len(got) != 2 {
		t.Fatalf("Phases(1): expected 2 phases, got %d", len(got))
	}
	if got[0].Task != 0 || got[1].Task != 0 {
		t.Fatalf("Phases(1): expected both phases to target task 0, got %+v", got)
	}
}
