package reader

import (
	"context"

	"github.com/banshee-data/lascatalog/internal/geom"
)

// MemReader serves ReadBox from an in-memory point slice. Used by tests
// and by callers that already hold their points.
type MemReader struct {
	points []Point
}

// NewMemReader copies pts into a new reader.
func NewMemReader(pts []Point) *MemReader {
	cp := make([]Point, len(pts))
	copy(cp, pts)
	return &MemReader{points: cp}
}

// ReadBox implements Reader.
func (m *MemReader) ReadBox(ctx context.Context, box geom.BBox, sel Selection, keep Filter) ([]Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Point
	for _, p := range m.points {
		if !box.Contains(p.X, p.Y) {
			continue
		}
		p = applySelection(p, sel)
		if keep != nil && !keep(p) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
