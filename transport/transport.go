// Package transport implements C7: the pluggable communication trait the
// executor drives. Three implementations live alongside this interface:
// Single (in-process, size==1), Collective (a synchronous group-messaging
// primitive), and Dynamic (a text-framed, credit-based transport over
// stream sockets, in the transport/dynamic subpackage).
package transport

import (
	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/plan"
	"github.com/partimesh/parti/transition"
)

// Datatype names the wire element type (width + interpretation); kept
// abstract here so Transport implementations don't import `reduce`.
// Reduce is optional: Collective delegates reduction to its native
// primitive and never calls it, but Dynamic has no native collective and
// needs the actual fold function to run the manual protocol itself
// (spec §4.7: "Reduction uses the manual path exclusively").
type Datatype struct {
	Name     string
	ElemSize int
	Reduce   transition.BinaryFunc
}

// Transport is the capability trait spec §4.7 calls out: send/recv,
// collective all_reduce/reduce, a fast path for precompiled action
// sequences, and the ability to rebuild state when the group shrinks.
type Transport interface {
	// Send blocks until the message is delivered or staged.
	Send(buf []byte, count int, dt Datatype, toLID group.LocationID, tag int) error

	// Recv blocks until the message arrives, returning the element count
	// actually received.
	Recv(buf []byte, count int, dt Datatype, fromLID group.LocationID, tag int) (int, error)

	// AllReduce reduces in across the active group into out on every
	// member. in==out (by identity) selects the in-place variant.
	AllReduce(in, out []byte, count int, dt Datatype, op transition.ReduceOp) error

	// Reduce reduces in into out, with the result landing only on root.
	Reduce(in, out []byte, count int, dt Datatype, op transition.ReduceOp, root group.TaskID) error

	// Exec is the fast path for a precompiled plan.Plan.
	Exec(p *plan.Plan) error

	// UpdateGroup rebuilds the internal communicator after a shrink.
	UpdateGroup(g *group.Group) error
}
