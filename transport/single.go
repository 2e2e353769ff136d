package transport

import (
	"github.com/partimesh/parti/cmn"
	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/plan"
	"github.com/partimesh/parti/transition"
)

// Single is the trivial transport used when group size == 1: send/recv
// are unreachable (asserts if reached) and reductions are in-place
// copies, grounded on original_source/src/laik-backend-single.c.
type Single struct{}

var _ Transport = (*Single)(nil)

func (Single) Send([]byte, int, Datatype, group.LocationID, int) error {
	panic(cmn.NewErrInvariant("single transport: send is unreachable at group size 1"))
}

func (Single) Recv([]byte, int, Datatype, group.LocationID, int) (int, error) {
	panic(cmn.NewErrInvariant("single transport: recv is unreachable at group size 1"))
}

func (Single) AllReduce(in, out []byte, count int, dt Datatype, _ transition.ReduceOp) error {
	n := count * dt.ElemSize
	if n == 0 {
		return nil
	}
	if !samePtr(in, out) {
		copy(out[:n], in[:n])
	}
	return nil
}

// samePtr reports whether a and b share the same backing array start,
// the in-place-aliasing check of spec §4.6/§4.7.
func samePtr(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return &a[0] == &b[0]
}

func (Single) Reduce(in, out []byte, count int, dt Datatype, _ transition.ReduceOp, _ group.TaskID) error {
	copy(out[:count*dt.ElemSize], in[:count*dt.ElemSize])
	return nil
}

func (Single) Exec(p *plan.Plan) error {
	if len(p.Actions()) != 0 {
		panic(cmn.NewErrInvariant("single transport: no actions expected at group size 1"))
	}
	return nil
}

func (Single) UpdateGroup(*group.Group) error { return nil }
