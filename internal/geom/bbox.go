// Package geom holds the planar bounding-box arithmetic shared by the
// catalog, tiling and engine packages. Coordinates are in the catalog's
// projected units (typically metres); no CRS handling happens here.
package geom

import "fmt"

// BBox is an axis-aligned bounding box. Min is inclusive, Max is
// exclusive for point-membership tests so adjacent boxes tile the plane
// without double-counting shared edges.
type BBox struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width returns the X extent of the box.
func (b BBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the Y extent of the box.
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// Area returns width × height. Degenerate boxes report zero.
func (b BBox) Area() float64 {
	if b.Empty() {
		return 0
	}
	return b.Width() * b.Height()
}

// Empty reports whether the box has no interior.
func (b BBox) Empty() bool { return b.MaxX <= b.MinX || b.MaxY <= b.MinY }

// Buffer returns the box grown by d on every side. Negative d shrinks it;
// a box shrunk past its centre becomes empty.
func (b BBox) Buffer(d float64) BBox {
	return BBox{b.MinX - d, b.MinY - d, b.MaxX + d, b.MaxY + d}
}

// Clip returns the intersection of b and limit.
func (b BBox) Clip(limit BBox) BBox {
	out := BBox{
		MinX: max(b.MinX, limit.MinX),
		MinY: max(b.MinY, limit.MinY),
		MaxX: min(b.MaxX, limit.MaxX),
		MaxY: min(b.MaxY, limit.MaxY),
	}
	return out
}

// Intersects reports whether the two boxes share any interior area.
func (b BBox) Intersects(o BBox) bool {
	return b.MinX < o.MaxX && o.MinX < b.MaxX && b.MinY < o.MaxY && o.MinY < b.MaxY
}

// Contains reports whether point (x, y) lies inside the box, with the
// min edges inclusive and the max edges exclusive.
func (b BBox) Contains(x, y float64) bool {
	return x >= b.MinX && x < b.MaxX && y >= b.MinY && y < b.MaxY
}

// Union returns the smallest box covering both b and o. Union with an
// empty box returns the other operand unchanged.
func (b BBox) Union(o BBox) BBox {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return BBox{
		MinX: min(b.MinX, o.MinX),
		MinY: min(b.MinY, o.MinY),
		MaxX: max(b.MaxX, o.MaxX),
		MaxY: max(b.MaxY, o.MaxY),
	}
}

func (b BBox) String() string {
	return fmt.Sprintf("[%g,%g %g,%g]", b.MinX, b.MinY, b.MaxX, b.MaxY)
}
