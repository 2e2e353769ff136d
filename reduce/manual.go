package reduce

import (
	"github.com/partimesh/parti/cmn/nlog"
	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/transition"
	"github.com/partimesh/parti/transport"
)

// MaxManualFanIn is a soft diagnostic, not a hard limit: the source's
// fixed 32-entry gather array is replaced here by a slice that grows as
// needed, so a warning is all a wide input group gets (spec §9 Open
// Questions).
const MaxManualFanIn = 32

// Manual runs the gather/fold/scatter reduction protocol of spec §4.6
// over an arbitrary explicit input/output sub-group pair, or the
// AllGroup sentinel on either side. It is called directly by the
// executor for explicit-subgroup Red entries, and reused by the Dynamic
// transport to implement AllReduce/Reduce (which has no native
// collective to delegate to).
//
// myIn holds this task's n-element contribution (ignored if this task
// isn't in inputGroup); out receives the folded result (only meaningful
// if this task is in outputGroup, and must already be sized n*dt.ElemSize).
func Manual(
	t transport.Transport,
	g *group.Group,
	subgroups []group.SubGroup,
	inputGroup, outputGroup int,
	op transition.ReduceOp,
	dt transport.Datatype,
	n int64,
	tag int,
	myIn, out []byte,
) error {
	inputTasks := effectiveTasks(g, subgroups, inputGroup)
	outputTasks := effectiveTasks(g, subgroups, outputGroup)
	if len(inputTasks) > MaxManualFanIn {
		nlog.Warningf("reduce: manual fan-in %d exceeds soft limit %d\n", len(inputTasks), MaxManualFanIn)
	}

	root := rootOf(outputTasks)
	myID := g.MyID

	if myID == root {
		return gatherFoldScatter(t, g, op, dt, n, tag, inputTasks, outputTasks, myID, myIn, out)
	}

	if containsTask(inputTasks, myID) {
		if err := t.Send(myIn, int(n), dt, g.Location(root), tag); err != nil {
			return err
		}
	}
	if containsTask(outputTasks, myID) {
		if _, err := t.Recv(out, int(n), dt, g.Location(root), tag); err != nil {
			return err
		}
	}
	return nil
}

func gatherFoldScatter(
	t transport.Transport,
	g *group.Group,
	op transition.ReduceOp,
	dt transport.Datatype,
	n int64,
	tag int,
	inputTasks, outputTasks []group.TaskID,
	myID group.TaskID,
	myIn, out []byte,
) error {
	contributions := make([][]byte, 0, len(inputTasks))
	myIdx := -1
	for _, tid := range inputTasks {
		if tid == myID {
			myIdx = len(contributions)
			contributions = append(contributions, myIn)
			continue
		}
		buf := make([]byte, n*int64(dt.ElemSize))
		if _, err := t.Recv(buf, int(n), dt, g.Location(tid), tag); err != nil {
			return err
		}
		contributions = append(contributions, buf)
	}

	// Swap contributions[0] and contributions[myIdx] so the root's own
	// slot is folded first: out may alias myIn, and the fold below writes
	// out on its first step, so myIn must be read before that happens
	// unless it is already at position 0 (spec §4.6 aliasing note).
	if myIdx > 0 {
		contributions[0], contributions[myIdx] = contributions[myIdx], contributions[0]
	}

	switch len(contributions) {
	case 0:
		return nil
	case 1:
		copy(out, contributions[0])
	default:
		reduceFn := dt.Reduce
		reduceFn(out, contributions[0], contributions[1], n, op)
		for i := 2; i < len(contributions); i++ {
			reduceFn(out, out, contributions[i], n, op)
		}
	}

	for _, tid := range outputTasks {
		if tid == myID {
			continue
		}
		if err := t.Send(out, int(n), dt, g.Location(tid), tag); err != nil {
			return err
		}
	}
	return nil
}

func effectiveTasks(g *group.Group, subgroups []group.SubGroup, sg int) []group.TaskID {
	if sg == group.AllGroup {
		all := make([]group.TaskID, g.Size)
		for i := range all {
			all[i] = group.TaskID(i)
		}
		return all
	}
	return subgroups[sg].Tasks
}

// rootOf designates the output sub-group's first listed task as the
// manual reduction's gathering root, matching
// original_source/src/backend-mpi.c's "int reduceTask =
// t->subgroup[op->outputGroup].task[0]" — the partitioner is expected
// to place the intended root at index 0, not necessarily the lowest id.
func rootOf(tasks []group.TaskID) group.TaskID {
	return tasks[0]
}

func containsTask(tasks []group.TaskID, t group.TaskID) bool {
	for _, x := range tasks {
		if x == t {
			return true
		}
	}
	return false
}
