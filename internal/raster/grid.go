// Package raster holds the gridded side of the engine: the Grid type
// used for occupancy masks and rasterized tile output, an ESRI ASCII
// grid reader for masks, a TIFF+world-file tile writer, and the VRT
// mosaic index that stitches persisted tiles back into one logical
// raster.
package raster

import (
	"fmt"
	"math"

	"github.com/banshee-data/lascatalog/internal/geom"
	"github.com/banshee-data/lascatalog/internal/table"
)

// Grid is a regular north-up raster. Cells are stored row-major with
// row 0 at the top (maximum Y), matching ASC and TIFF layouts.
type Grid struct {
	MinX, MinY   float64 // lower-left corner of the lower-left cell
	CellX, CellY float64 // pixel size; positive
	Cols, Rows   int
	NoData       float64
	Cells        []float64
}

// NewGrid allocates a grid of the given shape with every cell set to
// nodata.
func NewGrid(minX, minY, cellX, cellY float64, cols, rows int, nodata float64) *Grid {
	g := &Grid{
		MinX: minX, MinY: minY,
		CellX: cellX, CellY: cellY,
		Cols: cols, Rows: rows,
		NoData: nodata,
		Cells:  make([]float64, cols*rows),
	}
	for i := range g.Cells {
		g.Cells[i] = nodata
	}
	return g
}

// Bounds returns the georeferenced extent of the grid.
func (g *Grid) Bounds() geom.BBox {
	return geom.BBox{
		MinX: g.MinX,
		MinY: g.MinY,
		MaxX: g.MinX + float64(g.Cols)*g.CellX,
		MaxY: g.MinY + float64(g.Rows)*g.CellY,
	}
}

// SquareCells reports whether the x and y pixel sizes match (within a
// relative tolerance; mask files routinely carry rounded headers).
func (g *Grid) SquareCells() bool {
	if g.CellX <= 0 || g.CellY <= 0 {
		return false
	}
	return math.Abs(g.CellX-g.CellY) <= 1e-9*math.Max(g.CellX, g.CellY)
}

// At returns the cell value at (col, row); row 0 is the top row.
func (g *Grid) At(col, row int) float64 { return g.Cells[row*g.Cols+col] }

// Set writes the cell value at (col, row).
func (g *Grid) Set(col, row int, v float64) { g.Cells[row*g.Cols+col] = v }

// Occupied reports whether any cell intersecting box holds a value
// other than nodata and zero. Used for mask pruning: a tile whose core
// region sees no occupied mask cell is skipped entirely.
func (g *Grid) Occupied(box geom.BBox) bool {
	b := g.Bounds().Clip(box)
	if b.Empty() {
		return false
	}
	c0 := int(math.Floor((b.MinX - g.MinX) / g.CellX))
	c1 := int(math.Ceil((b.MaxX - g.MinX) / g.CellX))
	// Rows count down from the top edge.
	top := g.MinY + float64(g.Rows)*g.CellY
	r0 := int(math.Floor((top - b.MaxY) / g.CellY))
	r1 := int(math.Ceil((top - b.MinY) / g.CellY))
	c0 = max(c0, 0)
	r0 = max(r0, 0)
	c1 = min(c1, g.Cols)
	r1 = min(r1, g.Rows)
	for row := r0; row < r1; row++ {
		for col := c0; col < c1; col++ {
			v := g.At(col, row)
			if v != g.NoData && v != 0 {
				return true
			}
		}
	}
	return false
}

// Rasterize bins one table column onto a grid covering box at the
// table's resolution. Rows whose cell centre falls outside box are
// dropped; cells with no row stay at nodata.
func Rasterize(t *table.Table, box geom.BBox, column int, nodata float64) (*Grid, error) {
	if t.Len() == 0 {
		return nil, fmt.Errorf("rasterize: empty table")
	}
	if column < 0 || column >= len(t.Columns) {
		return nil, fmt.Errorf("rasterize: column %d out of range (have %d)", column, len(t.Columns))
	}
	res := t.Resolution
	if res <= 0 {
		return nil, fmt.Errorf("rasterize: non-positive resolution %g", res)
	}
	cols := int(math.Ceil(box.Width()/res - 1e-9))
	rows := int(math.Ceil(box.Height()/res - 1e-9))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	g := NewGrid(box.MinX, box.MaxY-float64(rows)*res, res, res, cols, rows, nodata)
	for _, r := range t.Rows {
		if !box.Contains(r.X, r.Y) {
			continue
		}
		col := int(math.Floor((r.X - box.MinX) / res))
		row := int(math.Floor((box.MaxY - r.Y) / res))
		if col < 0 || col >= cols || row < 0 || row >= rows {
			continue
		}
		g.Set(col, row, r.Values[column])
	}
	return g, nil
}
