// Package container is X1: the minimal external-collaborator glue spec.md
// §1 leaves out of scope (partitioner, container lifecycle, type
// registry) but that the core engine needs a caller-shaped surface to be
// independently testable end-to-end (SPEC_FULL.md §2 X1).
package container

import (
	"github.com/partimesh/parti/cmn/nlog"
	"github.com/partimesh/parti/exec"
	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/index"
	"github.com/partimesh/parti/mapping"
	"github.com/partimesh/parti/plan"
	"github.com/partimesh/parti/reduce"
	"github.com/partimesh/parti/stats"
	"github.com/partimesh/parti/transition"
	"github.com/partimesh/parti/transport"
)

// Container is one process's view of the running instance (spec.md §1's
// "container lifecycle" collaborator, reduced to what the executor needs
// plus a registry of named Data handles).
type Container struct {
	Group     *group.Group
	Transport transport.Transport
	Dir       *group.Directory
	Stats     *stats.Stats

	executor *exec.Executor
	data     map[string]*Data
}

// New wires a Container around an already-bootstrapped Group/Transport/
// Directory triple (see bootstrap.Join).
func New(g *group.Group, t transport.Transport, dir *group.Directory, st *stats.Stats) *Container {
	e := exec.New(t, g)
	e.Stats = st
	return &Container{
		Group:     g,
		Transport: t,
		Dir:       dir,
		Stats:     st,
		executor:  e,
		data:      make(map[string]*Data),
	}
}

// Shrink derives (or reuses a cached) child group for pred and pushes it
// into the transport, so subsequent Send/Recv/AllReduce calls address
// the new membership (spec.md §3, §4.8).
func (c *Container) Shrink(pred func(group.LocationID) bool) (*group.Group, error) {
	child := c.Dir.ShrinkCached(c.Group, pred)
	if err := c.Transport.UpdateGroup(child); err != nil {
		return nil, err
	}
	c.Group = child
	c.executor = exec.New(c.Transport, child)
	c.executor.Stats = c.Stats
	return child, nil
}

// Define registers a new Data handle under name, covering the given
// required slice at the given element type. The backing mapping is
// allocated lazily on first real use (mapping.Mapping.EnsureAllocated).
func (c *Container) Define(name string, required index.Slice, typ *reduce.Type) *Data {
	d := &Data{
		name:    name,
		typ:     typ,
		current: mapping.Allocate(required, typ.ElemSize),
	}
	c.data[name] = d
	return d
}

// Get looks up a previously Define'd Data handle.
func (c *Container) Get(name string) (*Data, bool) {
	d, ok := c.data[name]
	return d, ok
}

// SwitchTo runs tr against d, replacing d's current mapping with one
// covering newRequired. pl governs record/replay the way
// exec.Executor.Exec does: pass plan.Prepare() the first time a given tr
// shape is executed and reuse the same *plan.Plan on subsequent runs of
// an identical transition to skip recompiling the wire action sequence.
func (c *Container) SwitchTo(d *Data, tr *transition.Transition, newRequired index.Slice, pl *plan.Plan) error {
	next := mapping.Allocate(newRequired, d.typ.ElemSize)
	fromMaps := []*mapping.Mapping{d.current}
	toMaps := []*mapping.Mapping{next}

	if err := c.executor.Exec(tr, d.typ, fromMaps, toMaps, pl); err != nil {
		return err
	}

	nlog.Infof("container: %s switched partitioning, plan %s\n", d.name, pl.ID)
	d.current = next
	return nil
}
