package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/banshee-data/lascatalog/internal/monitoring"
	"github.com/banshee-data/lascatalog/internal/raster"
	"github.com/banshee-data/lascatalog/internal/reader"
	"github.com/banshee-data/lascatalog/internal/table"
	"github.com/banshee-data/lascatalog/internal/tiling"
)

// tileResult is one tile's outcome: a trimmed table, a persisted file
// path, or neither when the tile was empty.
type tileResult struct {
	table     *table.Table
	persisted string
}

// tileWorker holds the read-only per-run configuration shared by all
// pool goroutines. Only multiColWarn mutates after construction, and
// it is a sync.Once.
type tileWorker struct {
	reader     reader.Reader
	fn         UserFunc
	args       map[string]any
	resolution float64
	origin     [2]float64
	sel        reader.Selection
	filter     reader.Filter
	spill      bool
	exportDir  string
	funcName   string

	multiColWarn sync.Once
}

// process runs one tile end to end: buffered read, user function,
// buffer trim, and optional persistence.
func (w *tileWorker) process(ctx context.Context, _ int, tile tiling.Tile) (tileResult, error) {
	points, err := w.reader.ReadBox(ctx, tile.Buffered, w.sel, w.filter)
	if err != nil {
		return tileResult{}, fmt.Errorf("%s: read: %w", tile.Name, err)
	}
	if len(points) == 0 {
		// Nothing under the buffered region. Not an error.
		return tileResult{}, nil
	}

	args := w.args
	if w.origin != ([2]float64{}) {
		args = make(map[string]any, len(w.args)+1)
		for k, v := range w.args {
			args[k] = v
		}
		args["origin"] = w.origin
	}
	out, err := w.fn(points, w.resolution, args)
	if err != nil {
		return tileResult{}, fmt.Errorf("%s: user function: %w", tile.Name, err)
	}
	if out.Len() == 0 {
		return tileResult{}, nil
	}

	// Trim buffer-origin rows: a row survives only in the tile whose
	// core contains its cell centre. Cores are half-open, so a centre
	// exactly on a seam belongs to exactly one tile.
	trimmed := out.Filter(func(r table.Row) bool {
		return tile.Core.Contains(r.X, r.Y)
	})
	trimmed.Resolution = w.resolution
	if trimmed.Len() == 0 {
		return tileResult{}, nil
	}

	if !w.spill {
		return tileResult{table: trimmed}, nil
	}

	if len(trimmed.Columns) > 1 {
		w.multiColWarn.Do(func() {
			monitoring.Logf("engine: raster persistence writes only column %q; %d more columns dropped",
				trimmed.Columns[0], len(trimmed.Columns)-1)
		})
	}
	grid, err := raster.Rasterize(trimmed, tile.Core, 0, -9999)
	if err != nil {
		return tileResult{}, fmt.Errorf("%s: rasterize: %w", tile.Name, err)
	}
	path := filepath.Join(w.exportDir, fmt.Sprintf("%s_%s.tiff", w.funcName, tile.Name))
	if err := raster.WriteTIFF(grid, path); err != nil {
		return tileResult{}, fmt.Errorf("%s: persist: %w", tile.Name, err)
	}
	// The caller holds only the path; the data stays on disk.
	return tileResult{persisted: path}, nil
}
