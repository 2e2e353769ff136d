package exec

import (
	"testing"

	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/index"
	"github.com/partimesh/parti/mapping"
	"github.com/partimesh/parti/plan"
	"github.com/partimesh/parti/reduce"
	"github.com/partimesh/parti/transition"
	"github.com/partimesh/parti/transport"
)

// chanTransport is a minimal two-rank transport.Transport backed by a
// shared set of per-destination channels, enough to drive the phased
// send/recv schedule under test without a real socket.
type chanTransport struct {
	g     *group.Group
	chans map[group.LocationID]chan []byte
	self  group.LocationID
}

func newChanTransport(g *group.Group, shared map[group.LocationID]chan []byte) *chanTransport {
	return &chanTransport{g: g, chans: shared, self: g.Location(g.MyID)}
}

func (c *chanTransport) Send(buf []byte, count int, dt transport.Datatype, to group.LocationID, _ int) error {
	cp := make([]byte, count*dt.ElemSize)
	copy(cp, buf[:count*dt.ElemSize])
	c.chans[to] <- cp
	return nil
}

func (c *chanTransport) Recv(buf []byte, count int, dt transport.Datatype, _ group.LocationID, _ int) (int, error) {
	data := <-c.chans[c.self]
	n := copy(buf, data)
	return n / dt.ElemSize, nil
}

func (c *chanTransport) AllReduce([]byte, []byte, int, transport.Datatype, transition.ReduceOp) error {
	panic("not exercised by TestExecutorTwoRankSwap")
}
func (c *chanTransport) Reduce([]byte, []byte, int, transport.Datatype, transition.ReduceOp, group.TaskID) error {
	panic("not exercised by TestExecutorTwoRankSwap")
}
func (c *chanTransport) Exec(*plan.Plan) error          { return nil }
func (c *chanTransport) UpdateGroup(*group.Group) error { return nil }

// TestExecutorTwoRankSwap drives S1 (spec §8): two ranks, each holding
// one element of a length-2 float64 array, swap halves so every rank
// ends up with the other rank's original value.
func TestExecutorTwoRankSwap(t *testing.T) {
	space := index.NewSpace("s", 1, index.NewIndex1(2))
	full := index.NewSlice(space, index.NewIndex1(0), index.NewIndex1(2))
	mine := func(rank int64) index.Slice {
		return index.NewSlice(space, index.NewIndex1(rank), index.NewIndex1(rank+1))
	}

	shared := map[group.LocationID]chan []byte{0: make(chan []byte, 1), 1: make(chan []byte, 1)}
	lids := []group.LocationID{0, 1}

	tr := &transition.Transition{
		Dims: 1,
		Send: []transition.Send{{Slice: mine(0), ToTask: 1, MapNo: 0}},
		Recv: []transition.Recv{{Slice: mine(1), FromTask: 1, MapNo: 0}},
	}
	// Rank 1 sends its element to rank 0, rank 0 receives it.
	tr1 := &transition.Transition{
		Dims: 1,
		Send: []transition.Send{{Slice: mine(1), ToTask: 0, MapNo: 0}},
		Recv: []transition.Recv{{Slice: mine(0), FromTask: 0, MapNo: 0}},
	}

	errs := make(chan error, 2)
	results := make([][]byte, 2)

	run := func(rank int64, tr *transition.Transition) {
		g := group.New(group.TaskID(rank), lids)
		ct := newChanTransport(g, shared)
		e := New(ct, g)

		from := mapping.Allocate(full, 8)
		from.EnsureAllocated()
		off := from.ElemOffset(index.NewIndex1(rank))
		copy(from.Base[off:off+8], []byte{byte(rank + 1), 0, 0, 0, 0, 0, 0, 0})

		to := mapping.Allocate(full, 8)
		pl := plan.Prepare()
		err := e.Exec(tr, reduce.Float64Type, []*mapping.Mapping{from}, []*mapping.Mapping{to}, pl)
		results[rank] = to.Base
		errs <- err
	}

	go run(0, tr)
	go run(1, tr1)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("rank: %v", err)
		}
	}

	// Rank 0's target holds rank 1's original byte at index 1; rank 1's
	// target holds rank 0's original byte at index 0.
	if results[0][8] != 2 {
		t.Fatalf("rank 0: expected swapped-in value 2 at elem 1, got %v", results[0])
	}
	if results[1][0] != 1 {
		t.Fatalf("rank 1: expected swapped-in value 1 at elem 0, got %v", results[1])
	}
}

func TestExecutorSkipsWhenNotMember(t *testing.T) {
	g := &group.Group{Size: 2, MyID: -1}
	e := New(nil, g)
	tr := &transition.Transition{Dims: 1}
	pl := plan.Prepare()
	if err := e.Exec(tr, reduce.Float64Type, nil, nil, pl); err != nil {
		t.Fatalf("expected no-op for a non-member group, got %v", err)
	}
}
