// Package group implements C8: location-id/task-id bookkeeping and the
// sub-group derivation used by shrink operations and by the reduction
// protocol's explicit input/output groups (spec §3, §4.8).
package group

// LocationID is a stable integer identifying a process across group
// changes (spec GLOSSARY).
type LocationID int32

// TaskID is an index within a specific group; depends on membership.
type TaskID int32

// AllGroup is the sentinel denoting "all processes" for a reduction's
// input/output group (spec §3).
const AllGroup = -1

// Endpoint is the transport-level address a location id resolves to.
type Endpoint struct {
	Host string
	Port int
}

// Group is `group.size`, `group.myid` (may be -1 if this process isn't a
// member), and the task-index -> location-id mapping (spec §3, §4.8).
type Group struct {
	Size  int
	MyID  TaskID // -1 if this process is not a member
	tasks []LocationID

	// Parent/FromParent record the shrink lineage: FromParent[childIdx]
	// is the index of that task in Parent.
	Parent     *Group
	FromParent []TaskID
}

// New builds a root group (no parent) from an ordered list of location ids.
func New(myID TaskID, tasks []LocationID) *Group {
	cp := make([]LocationID, len(tasks))
	copy(cp, tasks)
	return &Group{Size: len(cp), MyID: myID, tasks: cp}
}

// Location resolves a task index to its stable location id.
func (g *Group) Location(t TaskID) LocationID {
	return g.tasks[t]
}

// TaskOf returns the task index owning loc, or -1 if absent.
func (g *Group) TaskOf(loc LocationID) TaskID {
	for i, l := range g.tasks {
		if l == loc {
			return TaskID(i)
		}
	}
	return -1
}

// Tasks returns the ordered location-id list backing this group. The
// returned slice must not be mutated by the caller.
func (g *Group) Tasks() []LocationID { return g.tasks }

// IsMember reports whether this process is part of the group at all.
func (g *Group) IsMember() bool { return g.MyID >= 0 }

// Shrink derives a child group from a membership predicate, carrying the
// parent-index array `fromParent[]` (spec §3, §4.8): processes dropped
// by pred receive MyID == -1 in the child and must skip all transition
// execution (property 7 of spec §8).
func (g *Group) Shrink(pred func(LocationID) bool) *Group {
	child := &Group{Parent: g}
	myChildIdx := TaskID(-1)
	for i, loc := range g.tasks {
		if !pred(loc) {
			continue
		}
		child.tasks = append(child.tasks, loc)
		child.FromParent = append(child.FromParent, TaskID(i))
		if TaskID(i) == g.MyID {
			myChildIdx = TaskID(len(child.tasks) - 1)
		}
	}
	child.Size = len(child.tasks)
	child.MyID = myChildIdx
	return child
}

// SubGroup is an ordered list of task ids used as a reduction's input or
// output group (spec §3, GLOSSARY).
type SubGroup struct {
	Tasks []TaskID
}

// IsInGroup reports whether task t belongs to sub-group index sg within
// table, honoring the AllGroup sentinel.
func IsInGroup(table []SubGroup, sg int, t TaskID) bool {
	if sg == AllGroup {
		return true
	}
	for _, m := range table[sg].Tasks {
		if m == t {
			return true
		}
	}
	return false
}

// Root returns sub-group sg's first listed task — the manual reduction
// protocol's designated gathering root (spec §4.6). The partitioner is
// expected to place the intended root at index 0; this does not search
// for the numerically lowest task id.
func Root(table []SubGroup, sg int) TaskID {
	return table[sg].Tasks[0]
}
