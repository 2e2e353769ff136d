package group_test

import (
	"testing"

	"github.com/partimesh/parti/group"
)

func TestShrinkSkip(t *testing.T) {
	g := group.New(1, []group.LocationID{10, 11, 12, 13})
	child := g.Shrink(func(loc group.LocationID) bool { return loc != 11 })

	if child.Size != 3 {
		t.Fatalf("expected size 3, got %d", child.Size)
	}
	// g.MyID=1 -> location 11, which was dropped: child MyID must be -1.
	if child.MyID >= 0 {
		t.Fatalf("expected dropped process to get myid<0, got %d", child.MyID)
	}
	if child.IsMember() {
		t.Fatalf("dropped process must not be a member")
	}
}

func TestShrinkKeepsFromParent(t *testing.T) {
	g := group.New(0, []group.LocationID{10, 11, 12})
	child := g.Shrink(func(loc group.LocationID) bool { return loc != 11 })
	if len(child.FromParent) != 2 {
		t.Fatalf("expected 2 entries in fromParent, got %d", len(child.FromParent))
	}
	if child.FromParent[0] != 0 || child.FromParent[1] != 2 {
		t.Fatalf("unexpected fromParent mapping: %v", child.FromParent)
	}
}

func TestDirectoryLookup(t *testing.T) {
	d := group.NewDirectory()
	defer d.Close()

	d.Put(5, group.Endpoint{Host: "10.0.0.1", Port: 9001})
	ep, ok := d.Lookup(5)
	if !ok {
		t.Fatalf("expected lookup to succeed")
	}
	if ep.Host != "10.0.0.1" || ep.Port != 9001 {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}

	d.Remove(5)
	if _, ok := d.Lookup(5); ok {
		t.Fatalf("expected lookup to fail after remove")
	}
}

func TestShrinkCachedReused(t *testing.T) {
	d := group.NewDirectory()
	defer d.Close()

	g := group.New(2, []group.LocationID{10, 11, 12, 13})
	pred := func(loc group.LocationID) bool { return loc != 11 }

	c1 := d.ShrinkCached(g, pred)
	c2 := d.ShrinkCached(g, pred)
	if c1 != c2 {
		t.Fatalf("expected cached shrink to return the same group instance")
	}
}
