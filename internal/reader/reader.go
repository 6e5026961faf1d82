// Package reader is the point-cloud input boundary. The engine only ever
// sees the Reader interface: give it a bounding box and get back the
// points inside it, regardless of how the catalog's files are laid out
// on disk. A buffered tile read may span several source files.
package reader

import (
	"context"

	"github.com/banshee-data/lascatalog/internal/geom"
)

// Point is one point record. X and Y are in the catalog's projected
// units; Z is elevation. Intensity and Class travel with the point when
// selected and are zeroed otherwise.
type Point struct {
	X, Y, Z   float64
	Intensity float64
	Class     int
}

// Selection names which optional attributes a read should populate.
// X, Y and Z are always loaded. Dropping unused attributes keeps
// buffered tile reads small.
type Selection struct {
	Intensity bool
	Class     bool
}

// SelectAll loads every attribute the source carries.
var SelectAll = Selection{Intensity: true, Class: true}

// Filter is a per-point keep predicate applied during the read, before
// points are handed to the aggregation function. A nil Filter keeps
// every point.
type Filter func(Point) bool

// Reader serves point queries against a catalog's source data.
//
// ReadBox returns every point whose (X, Y) falls inside box (min edges
// inclusive, max exclusive), independent of source-file boundaries. An
// empty region returns (nil, nil): no points is not an error.
type Reader interface {
	ReadBox(ctx context.Context, box geom.BBox, sel Selection, keep Filter) ([]Point, error)
}

// Header summarises one source file, as discovered by a probe. The
// catalog stores one Header per file.
type Header struct {
	Path   string
	Bounds geom.BBox
	Points int64
}

func applySelection(p Point, sel Selection) Point {
	if !sel.Intensity {
		p.Intensity = 0
	}
	if !sel.Class {
		p.Class = 0
	}
	return p
}
