package plan

import (
	"github.com/teris-io/shortid"

	"github.com/partimesh/parti/cmn/nlog"
)

// Plan is the append-only ordered action sequence with its own
// correlation id, used for recording-mode exec and subsequent replay
// (spec §3's Transition Plan lifecycle: created on prepare, populated on
// first exec, replayed after, released by cleanup).
type Plan struct {
	ID      string
	actions []Action

	// Recording is true from Prepare until the first Exec has compiled
	// its wire actions; while true, Executor.Exec compiles and appends
	// those actions, then runs them.
	Recording bool
}

// Prepare creates an empty plan ready to record actions for the first exec.
func Prepare() *Plan {
	id, err := shortid.Generate()
	if err != nil {
		id = "plan" // shortid's entropy source practically never errors
	}
	return &Plan{ID: id, Recording: true}
}

// Append adds a to the sequence (recording mode only).
func (p *Plan) Append(a Action) { p.actions = append(p.actions, a) }

// Actions returns the compiled sequence.
func (p *Plan) Actions() []Action { return p.actions }

// Done switches the plan from recording to replay mode.
func (p *Plan) Done() { p.Recording = false }

// Cleanup releases the plan's actions; the Plan itself should not be
// reused afterward (spec §3: "released by cleanup").
func (p *Plan) Cleanup() {
	nlog.Infof("plan %s: released (%d actions)\n", p.ID, len(p.actions))
	p.actions = nil
}

// SplitTransitionExecs expands composite actions (PackSend, RecvUnpack)
// into their Pack/Send and Recv/Unpack primitive pairs. Idempotent: a
// sequence with no composite actions is returned unchanged (spec §4.3).
func SplitTransitionExecs(actions []Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		switch a.Kind {
		case KindPackSend:
			out = append(out, Action{Kind: KindSend, Slice: a.Slice, Peer: a.Peer, MapNo: a.MapNo, Tag: a.Tag})
		case KindRecvUnpack:
			out = append(out, Action{Kind: KindRecv, Slice: a.Slice, Peer: a.Peer, MapNo: a.MapNo, Tag: a.Tag})
		default:
			out = append(out, a)
		}
	}
	return out
}

// SortTwoPhase stably sorts actions so every Recv-kind action precedes
// every Send-kind action (sendsFirst=false) or vice-versa (sendsFirst=
// true), leaving the relative order of same-kind actions untouched.
// This is the general reordering tool the phased schedule of spec §4.5
// is built from (within one (phase, task) pair the executor sweeps
// recv[] then send[]). Idempotent: re-sorting an already-ordered
// sequence changes nothing.
func SortTwoPhase(actions []Action, sendsFirst bool) []Action {
	out := make([]Action, 0, len(actions))
	isSend := func(k Kind) bool { return k == KindSend || k == KindPackSend }
	firstGroup := func(a Action) bool { return isSend(a.Kind) == sendsFirst }

	for _, a := range actions {
		if firstGroup(a) {
			out = append(out, a)
		}
	}
	for _, a := range actions {
		if !firstGroup(a) {
			out = append(out, a)
		}
	}
	return out
}
