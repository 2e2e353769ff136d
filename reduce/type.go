// Package reduce implements C6: the reduction protocol (fast path via a
// transport's native collective, and the manual gather/fold/scatter path
// for arbitrary sub-groups), plus the small "type registry" capability
// table spec §1 treats as an external collaborator but the reduction
// protocol still needs concretely (spec §4.6, GLOSSARY "reduce function").
package reduce

import (
	"github.com/partimesh/parti/cmn"
	"github.com/partimesh/parti/transition"
)

// BinaryFunc is transition.BinaryFunc (as in the source's
// `(d->type->reduce)(toBase, ptr[0], ptr[1], n, op)` call shape). The
// type itself lives in `transition` so transport.Datatype can carry a
// reduce function without this package importing transport.
type BinaryFunc = transition.BinaryFunc

// Type is the element-type capability table the reduction protocol
// consumes: element size, an optional native reduce function, and the
// identity element per op (used to fill Init entries, spec §3). Absence
// of Reduce is a fatal configuration error when a Red entry needs it
// (spec §4.6: "The reduction callable comes from the element type's
// capability table; absence is a fatal error").
type Type struct {
	Name     string
	ElemSize int
	Reduce   BinaryFunc
	Identity func(op transition.ReduceOp) []byte // one element's worth of bytes
}

// RequireReduce panics with a configuration error if t has no reduce
// function, matching spec §4.6's "absence is a fatal error".
func (t *Type) RequireReduce() BinaryFunc {
	if t.Reduce == nil {
		panic(cmn.NewErrConfig("no reduce function for type "+t.Name, nil))
	}
	return t.Reduce
}

// Float64Type is the float64 Sum/Prod/Min/Max capability table, the
// type exercised by the scenario tests of spec §8.
var Float64Type = &Type{
	Name:     "float64",
	ElemSize: 8,
	Reduce:   reduceFloat64,
	Identity: identityFloat64,
}

// Int64Type is the int64 analog, used by scenarios that want exact
// integer sums without floating-point non-associativity.
var Int64Type = &Type{
	Name:     "int64",
	ElemSize: 8,
	Reduce:   reduceInt64,
	Identity: identityInt64,
}
