package reduce

import (
	"encoding/binary"
	"math"

	"github.com/partimesh/parti/transition"
)

func reduceFloat64(out, a, b []byte, n int64, op transition.ReduceOp) {
	for i := int64(0); i < n; i++ {
		off := i * 8
		av := math.Float64frombits(binary.LittleEndian.Uint64(a[off : off+8]))
		bv := math.Float64frombits(binary.LittleEndian.Uint64(b[off : off+8]))
		var r float64
		switch op {
		case transition.Sum:
			r = av + bv
		case transition.Prod:
			r = av * bv
		case transition.Min:
			r = math.Min(av, bv)
		case transition.Max:
			r = math.Max(av, bv)
		}
		binary.LittleEndian.PutUint64(out[off:off+8], math.Float64bits(r))
	}
}

func identityFloat64(op transition.ReduceOp) []byte {
	var v float64
	switch op {
	case transition.Sum:
		v = 0
	case transition.Prod:
		v = 1
	case transition.Min:
		v = math.Inf(1)
	case transition.Max:
		v = math.Inf(-1)
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

func reduceInt64(out, a, b []byte, n int64, op transition.ReduceOp) {
	for i := int64(0); i < n; i++ {
		off := i * 8
		av := int64(binary.LittleEndian.Uint64(a[off : off+8]))
		bv := int64(binary.LittleEndian.Uint64(b[off : off+8]))
		var r int64
		switch op {
		case transition.Sum:
			r = av + bv
		case transition.Prod:
			r = av * bv
		case transition.Min:
			if av < bv {
				r = av
			} else {
				r = bv
			}
		case transition.Max:
			if av > bv {
				r = av
			} else {
				r = bv
			}
		}
		binary.LittleEndian.PutUint64(out[off:off+8], uint64(r))
	}
}

func identityInt64(op transition.ReduceOp) []byte {
	var v int64
	switch op {
	case transition.Sum:
		v = 0
	case transition.Prod:
		v = 1
	case transition.Min:
		v = math.MaxInt64
	case transition.Max:
		v = math.MinInt64
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	return buf
}
