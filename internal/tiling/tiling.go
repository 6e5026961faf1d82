// Package tiling partitions a catalog extent into buffered tiles. Core
// regions tile the extent exactly (no gaps, no overlap); buffered
// regions overlap neighbours and exist only so edge-affected algorithms
// read real context instead of padding.
package tiling

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/lascatalog/internal/geom"
	"github.com/banshee-data/lascatalog/internal/raster"
)

// ErrMaskResolution marks a mask raster whose x and y pixel sizes
// differ. Tiles must be square, so this is a configuration error and
// aborts before any dispatch.
var ErrMaskResolution = errors.New("tiling: mask pixels are not square")

// Tile is one spatial partition unit. Core is the region the tile
// owns; Buffered is Core grown by the buffer width on every side and
// is used only for reading input.
type Tile struct {
	Index    int
	Name     string
	Core     geom.BBox
	Buffered geom.BBox
}

// CellSizeSpec is the tagged tile-size choice: either a uniform cell
// size, or a sparse occupancy mask that supplies both the cell size
// and the set of regions worth materializing.
type CellSizeSpec struct {
	size float64
	mask *raster.Grid
}

// Uniform tiles the whole extent at size × size cells.
func Uniform(size float64) CellSizeSpec { return CellSizeSpec{size: size} }

// FromMask takes the cell size from the mask's own resolution and
// prunes tiles that intersect no occupied mask cell.
func FromMask(mask *raster.Grid) CellSizeSpec { return CellSizeSpec{mask: mask} }

// Mask returns the occupancy mask, or nil for a uniform spec.
func (s CellSizeSpec) Mask() *raster.Grid { return s.mask }

// Resolution returns the effective cell size. A mask with non-square
// pixels yields ErrMaskResolution.
func (s CellSizeSpec) Resolution() (float64, error) {
	if s.mask != nil {
		if !s.mask.SquareCells() {
			return 0, fmt.Errorf("%w: dx=%g dy=%g", ErrMaskResolution, s.mask.CellX, s.mask.CellY)
		}
		return s.mask.CellX, nil
	}
	if s.size <= 0 {
		return 0, fmt.Errorf("tiling: non-positive cell size %g", s.size)
	}
	return s.size, nil
}

// MakeTiles covers extent with buffered tiles.
//
// The grid is phase-aligned: the first cell is snapped so that cell
// edges land on originX/originY plus whole multiples of the cell size,
// so runs over different sub-extents of the same data share one global
// grid. When the spec carries a mask, alignment comes from the mask's
// own grid and empty mask regions produce no tiles.
//
// Tile order and naming are deterministic: row-major from the snapped
// origin (y outer, x inner), named ROI0, ROI1, ... over the tiles that
// are actually materialized.
func MakeTiles(extent geom.BBox, spec CellSizeSpec, buffer, originX, originY float64) ([]Tile, error) {
	if extent.Empty() {
		return nil, fmt.Errorf("tiling: empty extent %v", extent)
	}
	if buffer < 0 {
		return nil, fmt.Errorf("tiling: negative buffer %g", buffer)
	}
	cell, err := spec.Resolution()
	if err != nil {
		return nil, err
	}
	if spec.mask != nil {
		originX, originY = spec.mask.MinX, spec.mask.MinY
	}

	startX := snapDown(extent.MinX, originX, cell)
	startY := snapDown(extent.MinY, originY, cell)
	nx := cellCount(extent.MaxX-startX, cell)
	ny := cellCount(extent.MaxY-startY, cell)

	var tiles []Tile
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			cellBox := geom.BBox{
				MinX: startX + float64(ix)*cell,
				MinY: startY + float64(iy)*cell,
				MaxX: startX + float64(ix+1)*cell,
				MaxY: startY + float64(iy+1)*cell,
			}
			core := cellBox.Clip(extent)
			if core.Empty() {
				continue
			}
			if spec.mask != nil && !spec.mask.Occupied(core) {
				continue
			}
			idx := len(tiles)
			tiles = append(tiles, Tile{
				Index:    idx,
				Name:     fmt.Sprintf("ROI%d", idx),
				Core:     core,
				Buffered: core.Buffer(buffer),
			})
		}
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("tiling: mask leaves no tiles inside %v", extent)
	}
	return tiles, nil
}

// snapDown returns the largest origin + k*cell that is <= v.
func snapDown(v, origin, cell float64) float64 {
	return origin + math.Floor((v-origin)/cell)*cell
}

// cellCount returns how many cells of the given size cover span,
// tolerating float noise at an exact multiple.
func cellCount(span, cell float64) int {
	n := int(math.Ceil(span/cell - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}
