// Package engine ties the run together: partition the catalog into
// buffered tiles, let the memory guard rule on the estimated output,
// fan the tiles out over a worker pool, and merge the per-tile results
// into one table or one on-disk mosaic.
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/lascatalog/internal/catalog"
	"github.com/banshee-data/lascatalog/internal/catalogdb"
	"github.com/banshee-data/lascatalog/internal/dispatch"
	"github.com/banshee-data/lascatalog/internal/memguard"
	"github.com/banshee-data/lascatalog/internal/monitoring"
	"github.com/banshee-data/lascatalog/internal/raster"
	"github.com/banshee-data/lascatalog/internal/reader"
	"github.com/banshee-data/lascatalog/internal/table"
	"github.com/banshee-data/lascatalog/internal/tiling"
)

// UserFunc is the per-tile aggregation callable. It receives the
// buffered tile's points, the operating resolution, and the caller's
// extra arguments, and returns a table whose rows carry representative
// X,Y cell-centre coordinates — the engine trims buffer-origin rows by
// those coordinates. The stock implementations live in
// internal/metrics.
type UserFunc func(points []reader.Point, resolution float64, args map[string]any) (*table.Table, error)

// Output is the merged result of a run. Exactly one of Table and
// Mosaic is set on success; both are nil when every tile was empty.
type Output struct {
	Table  *table.Table
	Mosaic *raster.Mosaic

	RunID    string
	Decision memguard.Decision
	Tiles    int
}

// Run processes the catalog with fn tile by tile.
//
// Aborts by the memory guard return memguard.ErrAborted with no
// partial output; when a database is configured the aborted run is
// still recorded for the audit trail. Tile failures are isolated:
// siblings finish, their persisted outputs stay on disk, and the
// returned error names every failed tile.
func Run(ctx context.Context, cat *catalog.Catalog, rdr reader.Reader, fn UserFunc, args map[string]any, opts Options) (*Output, error) {
	opts = opts.normalized()

	cellSize, err := opts.CellSize.Resolution()
	if err != nil {
		return nil, err
	}
	resolution := opts.MetricResolution
	if resolution <= 0 {
		resolution = cellSize
	}
	buffer := opts.Buffer + opts.ExtraBuffer
	tiles, err := tiling.MakeTiles(cat.Extent(), opts.CellSize, buffer, opts.Origin[0], opts.Origin[1])
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	record := func(status string) error {
		if opts.DB == nil {
			return nil
		}
		return opts.DB.InsertRun(&catalogdb.Run{
			ID: runID, Catalog: opts.CatalogName, FuncName: opts.FuncName,
			Resolution: resolution, Buffer: buffer, TileCount: len(tiles),
			Status: status, StartedAt: time.Now().UTC(),
		})
	}

	spill := opts.Spill
	estimate := memguard.Estimate(cat.Area(), resolution, opts.BytesPerCell)
	threshold := opts.MemThreshold
	if threshold < 0 {
		threshold = 0 // disabled
	}
	decision := memguard.Check(estimate, threshold, spill, opts.Decide)
	switch decision {
	case memguard.Abort:
		monitoring.Logf("engine: estimated output %d bytes over threshold %d, aborting before dispatch", estimate, threshold)
		if err := record(catalogdb.RunStatusAborted); err != nil {
			monitoring.Logf("engine: record aborted run %s: %v", runID, err)
		} else {
			finishRun(opts, runID, catalogdb.RunStatusAborted, nil)
		}
		return nil, memguard.ErrAborted
	case memguard.Spill:
		spill = true
	}
	if spill {
		if err := os.MkdirAll(opts.ExportDir, 0o755); err != nil {
			return nil, fmt.Errorf("engine: export dir: %w", err)
		}
	}

	if err := record(catalogdb.RunStatusRunning); err != nil {
		return nil, fmt.Errorf("engine: record run: %w", err)
	}

	w := &tileWorker{
		reader:     rdr,
		fn:         fn,
		args:       args,
		resolution: resolution,
		origin:     opts.Origin,
		sel:        opts.Select,
		filter:     opts.Filter,
		spill:      spill,
		exportDir:  opts.ExportDir,
		funcName:   opts.FuncName,
	}

	progress := monitoring.NewProgress("tiles", len(tiles), opts.Progress)
	results, runErr := dispatch.Run(ctx, tiles, w.process, dispatch.Options{
		Workers: opts.Workers,
		OnDone:  progress.Tick,
	})

	if runErr != nil {
		failed := dispatch.FailedIndexes(runErr)
		finishRun(opts, runID, catalogdb.RunStatusFailed, failed)
		return nil, fmt.Errorf("engine: %d of %d tiles failed (indexes %v): %w",
			len(failed), len(tiles), failed, runErr)
	}

	out := &Output{RunID: runID, Decision: decision, Tiles: len(tiles)}
	if spill {
		mosaic, err := raster.BuildMosaic(opts.ExportDir, opts.FuncName)
		if err != nil {
			if !anyPersisted(results) {
				// Every tile was empty; an empty mosaic is a valid
				// (nil) outcome, not a failure.
				finishRun(opts, runID, catalogdb.RunStatusComplete, nil)
				return out, nil
			}
			finishRun(opts, runID, catalogdb.RunStatusFailed, nil)
			return nil, err
		}
		out.Mosaic = mosaic
	} else {
		tables := make([]*table.Table, len(results))
		for i, r := range results {
			tables[i] = r.table
		}
		merged, err := table.Concat(tables)
		if err != nil {
			finishRun(opts, runID, catalogdb.RunStatusFailed, nil)
			return nil, fmt.Errorf("engine: merge: %w", err)
		}
		out.Table = merged
	}
	finishRun(opts, runID, catalogdb.RunStatusComplete, nil)
	return out, nil
}

func finishRun(opts Options, runID, status string, failed []int) {
	if opts.DB == nil {
		return
	}
	if err := opts.DB.FinishRun(runID, status, failed); err != nil {
		monitoring.Logf("engine: finish run %s: %v", runID, err)
	}
}

func anyPersisted(results []tileResult) bool {
	for _, r := range results {
		if r.persisted != "" {
			return true
		}
	}
	return false
}
