package engine

import (
	"runtime"

	"github.com/banshee-data/lascatalog/internal/catalogdb"
	"github.com/banshee-data/lascatalog/internal/memguard"
	"github.com/banshee-data/lascatalog/internal/reader"
	"github.com/banshee-data/lascatalog/internal/tiling"
)

// Defaults for Options. DefaultMemThreshold matches holding roughly
// half a gigabyte of merged rows before the guard intervenes;
// DefaultBytesPerCell is a nominal per-row cost, not a measured one.
const (
	DefaultBuffer       = 15.0
	DefaultCellSize     = 1000.0
	DefaultMemThreshold = int64(5e8)
	DefaultBytesPerCell = int64(16)
)

// Options is the full configuration surface of a run. Nothing here is
// global: two concurrent runs with different Options do not interact.
type Options struct {
	// Buffer is the margin read around each tile core, in catalog
	// units. ExtraBuffer is added on top before dispatch, for callers
	// that widen a preset configuration.
	Buffer      float64
	ExtraBuffer float64

	// CellSize picks the tile size: uniform, or derived from a mask.
	CellSize tiling.CellSizeSpec

	// MetricResolution is the grid resolution handed to the user
	// function. Zero means the tile cell size, giving one output cell
	// per tile; a finer value grids each tile into many cells.
	MetricResolution float64

	// Origin shifts the global grid phase. Default (0,0).
	Origin [2]float64

	// Workers caps the pool; values < 1 mean all available cores. The
	// dispatcher additionally caps at the tile count.
	Workers int

	// Progress enables tile-completion logging.
	Progress bool

	// Spill persists each tile's output as a TIFF under ExportDir
	// instead of holding results in memory; the merged output is then
	// a VRT mosaic. FuncName names the artifacts:
	// <ExportDir>/<FuncName>_ROI<i>.tiff and <FuncName>.vrt.
	Spill     bool
	ExportDir string
	FuncName  string

	// MemThreshold is the estimate (bytes) above which the guard
	// intervenes. Zero means DefaultMemThreshold; negative disables
	// the guard. BytesPerCell is the per-output-cell cost fed to the
	// estimate; zero means DefaultBytesPerCell.
	MemThreshold int64
	BytesPerCell int64

	// Decide resolves over-threshold runs when spilling is not already
	// configured. Nil applies memguard.AlwaysAbort, the safe
	// non-interactive default.
	Decide memguard.DecideFunc

	// Select and Filter are forwarded to every buffered read.
	Select reader.Selection
	Filter reader.Filter

	// DB, when set, records the run (and its failed tiles) under
	// CatalogName.
	DB          *catalogdb.DB
	CatalogName string
}

// DefaultOptions returns the documented defaults: 15-unit buffer,
// 1000-unit tiles, all cores, guard at DefaultMemThreshold.
func DefaultOptions() Options {
	return Options{
		Buffer:       DefaultBuffer,
		CellSize:     tiling.Uniform(DefaultCellSize),
		Workers:      runtime.NumCPU(),
		MemThreshold: DefaultMemThreshold,
		BytesPerCell: DefaultBytesPerCell,
		Select:       reader.SelectAll,
		FuncName:     "metric",
	}
}

// normalized fills zero values with defaults. Explicit zeros that are
// meaningful (Buffer 0, Progress false) pass through untouched.
func (o Options) normalized() Options {
	if o.CellSize == (tiling.CellSizeSpec{}) {
		o.CellSize = tiling.Uniform(DefaultCellSize)
	}
	if o.Workers < 1 {
		o.Workers = runtime.NumCPU()
	}
	if o.MemThreshold == 0 {
		o.MemThreshold = DefaultMemThreshold
	}
	if o.BytesPerCell <= 0 {
		o.BytesPerCell = DefaultBytesPerCell
	}
	if o.FuncName == "" {
		o.FuncName = "metric"
	}
	if o.ExportDir == "" {
		o.ExportDir = "export"
	}
	return o
}
