// Package catalog is the spatial index over a collection of point-cloud
// source files treated as one logical dataset. It answers extent and
// area queries for the partitioner and memory guard, and is read-only
// once built, so a run's workers can share it without locking.
package catalog

import (
	"fmt"

	"github.com/banshee-data/lascatalog/internal/geom"
	"github.com/banshee-data/lascatalog/internal/reader"
)

// Entry is one source file: its path, bounding box and point count.
// Immutable once loaded.
type Entry struct {
	Path   string
	Bounds geom.BBox
	Points int64
}

// Catalog is an ordered set of entries with a derived total extent.
type Catalog struct {
	entries []Entry
	extent  geom.BBox
}

// New builds a catalog from entries, preserving their order. At least
// one entry with a non-empty bounding box is required.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog: no entries")
	}
	var extent geom.BBox
	for i, e := range entries {
		if e.Bounds.Empty() {
			return nil, fmt.Errorf("catalog: entry %d (%s) has an empty bounding box", i, e.Path)
		}
		extent = extent.Union(e.Bounds)
	}
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Catalog{entries: cp, extent: extent}, nil
}

// FromHeaders builds a catalog from probed file headers, in header
// order.
func FromHeaders(headers []reader.Header) (*Catalog, error) {
	entries := make([]Entry, len(headers))
	for i, h := range headers {
		entries[i] = Entry{Path: h.Path, Bounds: h.Bounds, Points: h.Points}
	}
	return New(entries)
}

// Extent returns the union of all entry bounding boxes.
func (c *Catalog) Extent() geom.BBox { return c.extent }

// Area returns extent width × height. This feeds the memory guard's
// coarse output estimate; it is not a per-tile accounting.
func (c *Catalog) Area() float64 { return c.extent.Area() }

// Entries returns the catalog's entries in load order. The returned
// slice is a copy; the catalog itself never mutates after New.
func (c *Catalog) Entries() []Entry {
	cp := make([]Entry, len(c.entries))
	copy(cp, c.entries)
	return cp
}

// Len returns the number of source files.
func (c *Catalog) Len() int { return len(c.entries) }

// Points returns the total point count across all entries.
func (c *Catalog) Points() int64 {
	var n int64
	for _, e := range c.entries {
		n += e.Points
	}
	return n
}

// Headers converts the entries back to reader headers, for wiring the
// catalog into a file-backed reader.
func (c *Catalog) Headers() []reader.Header {
	hs := make([]reader.Header, len(c.entries))
	for i, e := range c.entries {
		hs[i] = reader.Header{Path: e.Path, Bounds: e.Bounds, Points: e.Points}
	}
	return hs
}
