package container

import (
	"github.com/partimesh/parti/index"
	"github.com/partimesh/parti/mapping"
	"github.com/partimesh/parti/reduce"
)

// Data is one named partitioned array: a type and the mapping currently
// backing this process's share of it. A Container may hold several,
// each switched independently via Container.SwitchTo.
type Data struct {
	name    string
	typ     *reduce.Type
	current *mapping.Mapping
}

// Name returns the handle's registered name.
func (d *Data) Name() string { return d.name }

// Mapping returns the mapping currently backing this process's share.
func (d *Data) Mapping() *mapping.Mapping { return d.current }

// Required returns the slice currently allocated for this process.
func (d *Data) Required() index.Slice { return d.current.Required }

// At returns the elemsize bytes at idx within the current mapping,
// allocating the backing buffer on first access.
func (d *Data) At(idx index.Index) []byte {
	d.current.EnsureAllocated()
	off := d.current.ElemOffset(idx)
	return d.current.Base[off : off+int64(d.typ.ElemSize)]
}
