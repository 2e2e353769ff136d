// Package transition implements C3: the precomputed plan describing what
// must flow when a process group switches from a source partitioning to
// a target one (spec §3). It is produced by an external partitioner and
// consumed once by the executor.
package transition

import (
	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/index"
)

// ReduceOp identifies the associative, commutative binary op a Red entry
// folds contributions with.
type ReduceOp int

const (
	Sum ReduceOp = iota
	Prod
	Min
	Max
)

// BinaryFunc computes out[i] = op(a[i], b[i]) for n elements of the
// type's native width, operating on raw byte slices — the reduction
// callable of spec §4.6, shared between the `reduce` package (manual
// fold) and `transport.Datatype` (so a Transport can perform a manual
// reduction without importing `reduce`, avoiding an import cycle).
type BinaryFunc func(out, a, b []byte, n int64, op ReduceOp)

// Local is a slice the process keeps: copy from the source mapping to
// the target mapping (spec §3).
type Local struct {
	Slice index.Slice
	// FromMapNo/ToMapNo select among a data container's multiple
	// mappings; 0 in the common single-mapping case.
	FromMapNo, ToMapNo int
}

// Init is a slice to initialize to the identity element of a reduction
// op (spec §3); the executor applies it after the send/recv exchange.
type Init struct {
	Slice  index.Slice
	Op     ReduceOp
	MapNo  int
}

// Send describes one outgoing slice (spec §3).
type Send struct {
	Slice  index.Slice
	ToTask group.TaskID
	MapNo  int
}

// Recv describes one incoming slice (spec §3).
type Recv struct {
	Slice    index.Slice
	FromTask group.TaskID
	MapNo    int
}

// Red is a reduction entry: fold Slice's contributions from InputGroup
// into OutputGroup via RedOp. InputGroup/OutputGroup are indices into
// the SubGroup table, or group.AllGroup for "all processes" (spec §3).
type Red struct {
	Slice               index.Slice
	InputGroup          int
	OutputGroup         int
	RedOp               ReduceOp
	FromMapNo, ToMapNo  int
}

// Transition is the full precomputed plan (spec §3): what each process
// keeps, what to init, what to send, what to receive, what to reduce,
// and the sub-group table the reduction entries index into. It is
// created per switch and consumed exactly once.
type Transition struct {
	Dims int

	Local []Local
	Init  []Init
	Send  []Send
	Recv  []Recv
	Red   []Red

	SubGroup []group.SubGroup
}
