package mapping

import "github.com/partimesh/parti/index"

// Layout is the capability exposing offset/pack/unpack (spec §3). The
// 1-D contiguous layout skips Pack/Unpack entirely; the executor checks
// Contiguous() to take the raw-pointer fast path of spec §4.5.
type Layout interface {
	// Offset maps idx (absolute, within the owning mapping's required
	// slice) to a linear element offset from the mapping's base.
	Offset(required index.Slice, idx index.Index) int64

	// Contiguous reports whether this layout is 1-D contiguous, in which
	// case the executor bypasses Pack/Unpack.
	Contiguous() bool

	// Pack copies elements of slc starting at *cursor into the byte
	// buffer out (room for len(out)/elemsize elements) from the buffer
	// base, advancing *cursor.
	// Returns the number of elements packed; stops when out is full or
	// the slice is exhausted (cursor == slc.To).
	Pack(dims int, required, slc index.Slice, cursor *index.Index, base []byte, elemsize int, out []byte) int

	// Unpack is the symmetric receive-side counterpart of Pack.
	Unpack(dims int, required, slc index.Slice, cursor *index.Index, base []byte, elemsize int, in []byte) int
}

// ContiguousLayout is the 1-D offset = index - required.From layout.
type ContiguousLayout struct{}

func (ContiguousLayout) Contiguous() bool { return true }

func (ContiguousLayout) Offset(required index.Slice, idx index.Index) int64 {
	return idx.I[0] - required.From.I[0]
}

func (ContiguousLayout) Pack(int, index.Slice, index.Slice, *index.Index, []byte, int, []byte) int {
	panic("mapping: Pack called on contiguous layout; executor must bypass it")
}

func (ContiguousLayout) Unpack(int, index.Slice, index.Slice, *index.Index, []byte, int, []byte) int {
	panic("mapping: Unpack called on contiguous layout; executor must bypass it")
}

// GenericLayout handles 2-D/3-D (and degenerate 1-D) slices by computing
// a row-major linear offset within the required slice's bounding box.
type GenericLayout struct {
	Dims int
}

func (g GenericLayout) Contiguous() bool { return g.Dims == 1 }

func (g GenericLayout) Offset(required index.Slice, idx index.Index) int64 {
	switch g.Dims {
	case 1:
		return idx.I[0] - required.From.I[0]
	case 2:
		w := required.To.I[0] - required.From.I[0]
		return (idx.I[1]-required.From.I[1])*w + (idx.I[0] - required.From.I[0])
	default: // 3
		w := required.To.I[0] - required.From.I[0]
		h := required.To.I[1] - required.From.I[1]
		return (idx.I[2]-required.From.I[2])*w*h +
			(idx.I[1]-required.From.I[1])*w +
			(idx.I[0] - required.From.I[0])
	}
}

// Pack drives NextLex over slc starting at *cursor, copying one element
// at a time into out until out can't hold another element or the slice
// is exhausted. Loop termination is index equality (cursor == slc.To),
// not a precomputed chunk count, per spec §4.5.
func (g GenericLayout) Pack(dims int, required, slc index.Slice, cursor *index.Index, base []byte, elemsize int, out []byte) int {
	packed := 0
	capacity := len(out) / elemsize
	for packed < capacity {
		off := g.Offset(required, *cursor) * int64(elemsize)
		copy(out[packed*elemsize:(packed+1)*elemsize], base[off:off+int64(elemsize)])
		packed++
		if !index.NextLex(dims, slc, cursor) {
			*cursor = slc.To
			break
		}
	}
	return packed
}

// Unpack is the receive-side counterpart of Pack.
func (g GenericLayout) Unpack(dims int, required, slc index.Slice, cursor *index.Index, base []byte, elemsize int, in []byte) int {
	unpacked := 0
	count := len(in) / elemsize
	for unpacked < count {
		off := g.Offset(required, *cursor) * int64(elemsize)
		copy(base[off:off+int64(elemsize)], in[unpacked*elemsize:(unpacked+1)*elemsize])
		unpacked++
		if !index.NextLex(dims, slc, cursor) {
			*cursor = slc.To
			break
		}
	}
	return unpacked
}
