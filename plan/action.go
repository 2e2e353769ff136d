// Package plan implements C4: the compiled, reorderable action sequence
// an Executor produces from a Transition and either executes immediately
// or records for replay (spec §3, §4.3).
package plan

import (
	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/index"
	"github.com/partimesh/parti/transition"
)

// Kind tags an Action's variant (spec §3: "{Send | Recv | Pack+Send |
// Recv+Unpack | Copy | GroupReduce}").
type Kind int

const (
	KindSend Kind = iota
	KindRecv
	KindPackSend
	KindRecvUnpack
	KindCopy
	KindGroupReduce
)

func (k Kind) String() string {
	switch k {
	case KindSend:
		return "Send"
	case KindRecv:
		return "Recv"
	case KindPackSend:
		return "PackSend"
	case KindRecvUnpack:
		return "RecvUnpack"
	case KindCopy:
		return "Copy"
	case KindGroupReduce:
		return "GroupReduce"
	default:
		return "?"
	}
}

// Action is the tagged-variant compiled primitive (spec §3). Only the
// fields relevant to Kind are populated; this mirrors a sum type without
// requiring a generated discriminated-union library, matching the
// teacher's own preference for plain tagged structs (xact.Xact kind
// constants) over heavier alternatives.
type Action struct {
	Kind Kind

	Slice index.Slice
	Peer  group.TaskID // send/recv peer task id
	MapNo int
	Tag   int

	// GroupReduce fields.
	InputGroup, OutputGroup int
	RedOp                   transition.ReduceOp
	FromMapNo, ToMapNo      int
}
