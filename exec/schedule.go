// Package exec implements C5: the executor that drives a Transition to
// completion over a Transport, grounded on
// original_source/src/backend-mpi.c's transition-exec routine.
package exec

// Phase is one step of the 2*count-phase schedule spec §4.5 uses to
// avoid deadlock: count phases where tasks only send upward/receive
// from below, followed by count phases going the other way.
type Phase struct {
	Task                                          int
	SendToHigher, RecvFromLower                   bool
	SendToLower, RecvFromHigher                   bool
}

// Phases builds the 2*count-phase schedule for a group of the given
// size, following backend-mpi.c's schedule:
//
//	count phases X: 0..<count-1>
//	  - receive from <task X> if <task X> lower rank
//	  - send to <task X> if <task X> is higher rank
//	count phases Y: 0..<count-1>
//	  - receive from <task count-1-Y> if it is higher rank
//	  - send to <task count-1-Y> if it is lower rank
func Phases(count int) []Phase {
	out := make([]Phase, 2*count)
	for phase := 0; phase < 2*count; phase++ {
		task := phase
		if phase >= count {
			task = 2*count - phase - 1
		}
		out[phase] = Phase{
			Task:           task,
			SendToHigher:   phase < count,
			RecvFromLower:  phase < count,
			SendToLower:    phase >= count,
			RecvFromHigher: phase >= count,
		}
	}
	return out
}
