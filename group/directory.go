package group

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/tidwall/buntdb"

	"github.com/partimesh/parti/cmn"
	"github.com/partimesh/parti/cmn/nlog"
)

// Directory resolves location ids to transport endpoints and caches
// derived sub-groups by membership fingerprint (SPEC_FULL.md §3). It is
// purely in-memory — buntdb here is an indexed table, not a durability
// layer, matching the Non-goal on persistent storage.
type Directory struct {
	db *buntdb.DB

	mu        sync.Mutex
	shrinkFP  map[uint64]*Group // fingerprint -> cached child group
}

// NewDirectory opens an in-memory (":memory:") buntdb instance and
// declares the by-host index used for reverse endpoint lookups.
func NewDirectory() *Directory {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		// :memory: never fails to open; a failure here is a build/env bug.
		panic(cmn.NewErrConfig("open peer directory", err))
	}
	if err := db.CreateIndex("by_host", "ep:*", buntdb.IndexJSON("host")); err != nil {
		panic(cmn.NewErrConfig("index peer directory", err))
	}
	return &Directory{db: db, shrinkFP: make(map[uint64]*Group)}
}

func (d *Directory) Close() error { return d.db.Close() }

func epKey(lid LocationID) string { return fmt.Sprintf("ep:%d", lid) }

// Put records the endpoint for a location id.
func (d *Directory) Put(lid LocationID, ep Endpoint) {
	val := fmt.Sprintf(`{"host":%q,"port":%d}`, ep.Host, ep.Port)
	err := d.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(epKey(lid), val, nil)
		return err
	})
	if err != nil {
		nlog.Errorln("directory: put endpoint:", err)
	}
}

// Lookup resolves a location id to its endpoint. ok is false if unknown.
func (d *Directory) Lookup(lid LocationID) (ep Endpoint, ok bool) {
	err := d.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(epKey(lid))
		if err != nil {
			return err
		}
		_, err = fmt.Sscanf(val, `{"host":%q,"port":%d}`, &ep.Host, &ep.Port)
		return err
	})
	return ep, err == nil
}

// Remove drops a location id's endpoint (graceful peer departure, spec §7).
func (d *Directory) Remove(lid LocationID) {
	_ = d.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(epKey(lid))
		return err
	})
}

// fingerprint hashes the sorted task-id list so repeated Shrink calls
// with the same membership reuse the cached child Group (SPEC_FULL.md §3).
func fingerprint(tasks []LocationID) uint64 {
	sorted := make([]int64, len(tasks))
	for i, t := range tasks {
		sorted[i] = int64(t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	h := xxhash.New64()
	buf := make([]byte, 8)
	for _, v := range sorted {
		binary.LittleEndian.PutUint64(buf, uint64(v))
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

// ShrinkCached derives (or returns a cached) child group for pred,
// keyed by the resulting membership's fingerprint.
func (d *Directory) ShrinkCached(g *Group, pred func(LocationID) bool) *Group {
	candidate := g.Shrink(pred)
	fp := fingerprint(candidate.tasks)

	d.mu.Lock()
	defer d.mu.Unlock()
	if cached, ok := d.shrinkFP[fp]; ok && cached.Size == candidate.Size {
		// Re-derive MyID/Parent for the caller's current group, since the
		// cache is keyed purely on membership, not on which process asks.
		cached.MyID = candidate.MyID
		cached.FromParent = candidate.FromParent
		cached.Parent = g
		return cached
	}
	d.shrinkFP[fp] = candidate
	return candidate
}
