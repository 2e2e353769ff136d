package transport

import (
	"github.com/partimesh/parti/cmn"
	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/plan"
	"github.com/partimesh/parti/transition"
)

// CollectivePrimitive is the synchronous group-messaging primitive the
// Collective transport wraps (spec §4.7: "Wraps a synchronous group-
// messaging primitive"). Grounded on backend-mpi.c's MPI_Send/MPI_Recv/
// MPI_Allreduce/MPI_Reduce/MPI_Comm_split calls, abstracted so no actual
// MPI binding is a hard dependency of this module.
type CollectivePrimitive interface {
	Send(buf []byte, count int, dt Datatype, to group.LocationID, tag int) error
	Recv(buf []byte, count int, dt Datatype, from group.LocationID, tag int) (int, error)
	AllReduce(in, out []byte, count int, dt Datatype, op transition.ReduceOp) error
	Reduce(in, out []byte, count int, dt Datatype, op transition.ReduceOp, root group.LocationID) error
	// Split rebuilds the underlying communicator restricted to a
	// sub-group; predicate mirrors "still a member <-> pass, else drop"
	// (spec §4.7).
	Split(g *group.Group) (CollectivePrimitive, error)
}

// Collective is the synchronous-group-primitive transport.
type Collective struct {
	g   *group.Group
	prm CollectivePrimitive
}

var _ Transport = (*Collective)(nil)

func NewCollective(g *group.Group, prm CollectivePrimitive) *Collective {
	return &Collective{g: g, prm: prm}
}

func (c *Collective) Send(buf []byte, count int, dt Datatype, to group.LocationID, tag int) error {
	return c.prm.Send(buf, count, dt, to, tag)
}

func (c *Collective) Recv(buf []byte, count int, dt Datatype, from group.LocationID, tag int) (int, error) {
	return c.prm.Recv(buf, count, dt, from, tag)
}

func (c *Collective) AllReduce(in, out []byte, count int, dt Datatype, op transition.ReduceOp) error {
	return c.prm.AllReduce(in, out, count, dt, op)
}

func (c *Collective) Reduce(in, out []byte, count int, dt Datatype, op transition.ReduceOp, root group.TaskID) error {
	return c.prm.Reduce(in, out, count, dt, op, c.g.Location(root))
}

func (c *Collective) Exec(p *plan.Plan) error {
	if len(p.Actions()) == 0 {
		return nil
	}
	return cmn.NewErrInvariant("collective transport: Exec fast path requires an Executor-driven replay")
}

func (c *Collective) UpdateGroup(g *group.Group) error {
	prm, err := c.prm.Split(g)
	if err != nil {
		return cmn.NewErrIO("collective: split communicator", err)
	}
	c.g = g
	c.prm = prm
	return nil
}
