package exec

import (
	"github.com/partimesh/parti/cmn"
	"github.com/partimesh/parti/cmn/nlog"
	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/index"
	"github.com/partimesh/parti/mapping"
	"github.com/partimesh/parti/plan"
	"github.com/partimesh/parti/reduce"
	"github.com/partimesh/parti/stats"
	"github.com/partimesh/parti/transition"
	"github.com/partimesh/parti/transport"
)

// sliceSender/sliceReceiver are the optional slice-aware surface the
// Dynamic transport exposes (spec §4.7: "the transport's public calls
// (send_slice, recv_slice)"); the executor prefers them over a manual
// pack/Send loop when available, since Dynamic's wire framing is
// naturally element-at-a-time and position-annotated.
type sliceSender interface {
	SendSlice(m *mapping.Mapping, slc index.Slice, to group.LocationID) error
}

type sliceReceiver interface {
	RecvSlice(m *mapping.Mapping, slc index.Slice, from group.LocationID) error
}

// Executor drives one Transition to completion in spec §4.4's order:
// reductions, then the phased send/recv exchange, then local copies and
// identity init last.
type Executor struct {
	T     transport.Transport
	G     *group.Group
	Pool  *mapping.Pool
	Stats *stats.Stats // optional; nil disables metric tracking
}

func New(t transport.Transport, g *group.Group) *Executor {
	return &Executor{T: t, G: g, Pool: mapping.NewPool()}
}

// Exec runs tr. fromMaps/toMaps are indexed by the Transition entries'
// MapNo; typ supplies elemsize and the reduce/identity functions. pl
// governs record/replay: on a fresh Plan (Recording==true), Send/Recv
// actions are compiled and appended before running; on a replayed Plan
// they are read back out instead of recompiled.
func (e *Executor) Exec(tr *transition.Transition, typ *reduce.Type, fromMaps, toMaps []*mapping.Mapping, pl *plan.Plan) error {
	if !e.G.IsMember() {
		// Dropped by a shrink: no transition work is ours (spec §8
		// property 7).
		return nil
	}

	for _, r := range tr.Red {
		if err := e.execRed(tr, r, typ, fromMaps, toMaps); err != nil {
			return err
		}
	}

	var wire []plan.Action
	if pl.Recording {
		wire = e.compileWire(tr)
		for _, a := range wire {
			pl.Append(a)
		}
		pl.Done()
	} else {
		wire = plan.SplitTransitionExecs(pl.Actions())
	}

	if err := e.runPhased(tr.Dims, wire, typ, fromMaps, toMaps); err != nil {
		return err
	}

	for _, l := range tr.Local {
		e.execLocal(tr.Dims, l, fromMaps, toMaps)
	}
	for _, in := range tr.Init {
		e.execInit(tr.Dims, in, typ, toMaps)
	}
	return nil
}

func (e *Executor) compileWire(tr *transition.Transition) []plan.Action {
	actions := make([]plan.Action, 0, len(tr.Send)+len(tr.Recv))
	for _, s := range tr.Send {
		actions = append(actions, plan.Action{Kind: plan.KindSend, Slice: s.Slice, Peer: s.ToTask, MapNo: s.MapNo, Tag: 1})
	}
	for _, r := range tr.Recv {
		actions = append(actions, plan.Action{Kind: plan.KindRecv, Slice: r.Slice, Peer: r.FromTask, MapNo: r.MapNo, Tag: 1})
	}
	return actions
}

func (e *Executor) execLocal(dims int, l transition.Local, fromMaps, toMaps []*mapping.Mapping) {
	from := fromMaps[l.FromMapNo]
	to := toMaps[l.ToMapNo]
	to.EnsureAllocated()
	idx := l.Slice.From
	for {
		off := from.ElemOffset(idx)
		toff := to.ElemOffset(idx)
		copy(to.Base[toff:toff+int64(to.ElemSize)],
			from.Base[off:off+int64(from.ElemSize)])
		if !index.NextLex(dims, l.Slice, &idx) {
			break
		}
	}
}

func (e *Executor) execInit(dims int, in transition.Init, typ *reduce.Type, toMaps []*mapping.Mapping) {
	to := toMaps[in.MapNo]
	to.EnsureAllocated()
	identity := typ.Identity(in.Op)
	idx := in.Slice.From
	for {
		off := to.ElemOffset(idx)
		copy(to.Base[off:off+int64(to.ElemSize)], identity)
		if !index.NextLex(dims, in.Slice, &idx) {
			break
		}
	}
}

func (e *Executor) execRed(tr *transition.Transition, r transition.Red, typ *reduce.Type, fromMaps, toMaps []*mapping.Mapping) error {
	reduceFn := typ.RequireReduce()
	dt := transport.Datatype{Name: typ.Name, ElemSize: typ.ElemSize, Reduce: reduceFn}
	count := index.Size(tr.Dims, r.Slice)

	from := fromMaps[r.FromMapNo]
	to := toMaps[r.ToMapNo]

	var myIn []byte
	if group.IsInGroup(tr.SubGroup, r.InputGroup, e.G.MyID) {
		off := from.ElemOffset(r.Slice.From)
		myIn = from.Base[off : off+count*int64(from.ElemSize)]
	}
	var out []byte
	if group.IsInGroup(tr.SubGroup, r.OutputGroup, e.G.MyID) {
		to.EnsureAllocated()
		off := to.ElemOffset(r.Slice.From)
		out = to.Base[off : off+count*int64(to.ElemSize)]
	}

	if e.Stats != nil {
		e.Stats.Reductions.Inc()
	}

	if r.InputGroup == group.AllGroup && r.OutputGroup == group.AllGroup {
		nlog.Infof("exec: allreduce %d elements\n", count)
		return e.T.AllReduce(myIn, out, int(count), dt, r.RedOp)
	}
	if r.InputGroup != group.AllGroup && r.OutputGroup != group.AllGroup {
		nlog.Infof("exec: manual reduce %d elements, in group %d out group %d\n", count, r.InputGroup, r.OutputGroup)
		return reduce.Manual(e.T, e.G, tr.SubGroup, r.InputGroup, r.OutputGroup, r.RedOp, dt, count, 1, myIn, out)
	}
	// Exactly one side is AllGroup: delegate to the transport's native
	// reduce-to-root, matching backend-mpi.c's "not handled yet: either
	// input or output is all-group" fast-path branch.
	root := group.TaskID(0)
	if r.OutputGroup != group.AllGroup {
		root = group.Root(tr.SubGroup, r.OutputGroup)
	}
	nlog.Infof("exec: native reduce-to-root %d elements, root T%d\n", count, root)
	return e.T.Reduce(myIn, out, int(count), dt, r.RedOp, root)
}

func (e *Executor) runPhased(dims int, actions []plan.Action, typ *reduce.Type, fromMaps, toMaps []*mapping.Mapping) error {
	myid := e.G.MyID
	for _, ph := range Phases(e.G.Size) {
		if e.Stats != nil {
			e.Stats.PhasesRun.Inc()
		}
		var eligible []plan.Action
		for _, a := range actions {
			switch a.Kind {
			case plan.KindRecv:
				if int(a.Peer) != ph.Task {
					continue
				}
				if ph.RecvFromLower && myid < group.TaskID(ph.Task) {
					continue
				}
				if ph.RecvFromHigher && myid > group.TaskID(ph.Task) {
					continue
				}
				eligible = append(eligible, a)
			case plan.KindSend:
				if int(a.Peer) != ph.Task {
					continue
				}
				if ph.SendToLower && myid < group.TaskID(ph.Task) {
					continue
				}
				if ph.SendToHigher && myid > group.TaskID(ph.Task) {
					continue
				}
				eligible = append(eligible, a)
			}
		}
		ordered := plan.SortTwoPhase(eligible, false) // recv before send, per backend-mpi.c's per-phase sweep
		for _, a := range ordered {
			if err := e.execWire(dims, a, typ, fromMaps, toMaps); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) execWire(dims int, a plan.Action, typ *reduce.Type, fromMaps, toMaps []*mapping.Mapping) error {
	dt := transport.Datatype{Name: typ.Name, ElemSize: typ.ElemSize, Reduce: typ.Reduce}

	switch a.Kind {
	case plan.KindSend:
		m := fromMaps[a.MapNo]
		to := e.G.Location(a.Peer)
		if m.Layout.Contiguous() {
			off := m.ElemOffset(a.Slice.From)
			n := index.Size(dims, a.Slice)
			buf := m.Base[off : off+n*int64(m.ElemSize)]
			if err := e.T.Send(buf, int(n), dt, to, a.Tag); err != nil {
				return err
			}
			if e.Stats != nil {
				e.Stats.TrackSend(len(buf))
			}
			return nil
		}
		if ss, ok := e.T.(sliceSender); ok {
			return ss.SendSlice(m, a.Slice, to)
		}
		return e.packSend(dims, m, a.Slice, dt, to, a.Tag)

	case plan.KindRecv:
		m := toMaps[a.MapNo]
		m.EnsureAllocated()
		from := e.G.Location(a.Peer)
		if m.Layout.Contiguous() {
			off := m.ElemOffset(a.Slice.From)
			n := index.Size(dims, a.Slice)
			buf := m.Base[off : off+n*int64(m.ElemSize)]
			nrecv, err := e.T.Recv(buf, int(n), dt, from, a.Tag)
			if err != nil {
				return err
			}
			if e.Stats != nil {
				e.Stats.TrackRecv(nrecv * dt.ElemSize)
			}
			return nil
		}
		if sr, ok := e.T.(sliceReceiver); ok {
			return sr.RecvSlice(m, a.Slice, from)
		}
		return e.unpackRecv(dims, m, a.Slice, dt, from, a.Tag)

	default:
		return cmn.NewErrInvariant("exec: unexpected wire action kind " + a.Kind.String())
	}
}

// packSend drives the source mapping's Layout.Pack loop into a pooled
// scratch buffer, sending each chunk, until the slice is exhausted
// (spec §4.5 non-contiguous send path).
func (e *Executor) packSend(dims int, m *mapping.Mapping, slc index.Slice, dt transport.Datatype, to group.LocationID, tag int) error {
	cfg := cmn.GCO.Get()
	scratch := e.Pool.Get(cfg.PackBufSize)
	defer e.Pool.Put(scratch)

	cursor := slc.From
	for {
		n := m.Layout.Pack(dims, m.Required, slc, &cursor, m.Base, m.ElemSize, scratch.B)
		if n == 0 {
			break
		}
		if err := e.T.Send(scratch.B[:n*m.ElemSize], n, dt, to, tag); err != nil {
			return err
		}
		if index.Equal(dims, cursor, slc.To) {
			break
		}
	}
	return nil
}

// unpackRecv is packSend's receive-side counterpart.
func (e *Executor) unpackRecv(dims int, m *mapping.Mapping, slc index.Slice, dt transport.Datatype, from group.LocationID, tag int) error {
	cfg := cmn.GCO.Get()
	scratch := e.Pool.Get(cfg.PackBufSize)
	defer e.Pool.Put(scratch)

	capacity := len(scratch.B) / m.ElemSize
	cursor := slc.From
	for {
		n, err := e.T.Recv(scratch.B, capacity, dt, from, tag)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		unpacked := m.Layout.Unpack(dims, m.Required, slc, &cursor, m.Base, m.ElemSize, scratch.B[:n*m.ElemSize])
		if unpacked != n {
			return cmn.NewErrInvariant("exec: unpack count mismatch")
		}
		if index.Equal(dims, cursor, slc.To) {
			break
		}
	}
	return nil
}
