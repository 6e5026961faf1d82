// Command lascat runs a per-cell aggregation over a point-cloud
// catalog: it indexes the source files, partitions them into buffered
// tiles, fans the tiles out over a worker pool, and writes the merged
// result as CSV or as a TIFF+VRT mosaic.
//
// Usage:
//
//	lascat -dir ./clouds -metric basicz -cell-size 500 -out metrics.csv
//	lascat -dir ./clouds -metric count -mask roads.asc -spill -export-dir ./tiles
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/banshee-data/lascatalog/internal/catalog"
	"github.com/banshee-data/lascatalog/internal/catalogdb"
	"github.com/banshee-data/lascatalog/internal/engine"
	"github.com/banshee-data/lascatalog/internal/memguard"
	"github.com/banshee-data/lascatalog/internal/metrics"
	"github.com/banshee-data/lascatalog/internal/raster"
	"github.com/banshee-data/lascatalog/internal/reader"
	"github.com/banshee-data/lascatalog/internal/table"
	"github.com/banshee-data/lascatalog/internal/tiling"
	"github.com/banshee-data/lascatalog/internal/version"
)

func main() {
	var (
		dir         = flag.String("dir", "", "directory of point files to process")
		ext         = flag.String("ext", ".xyz", "point file extension")
		dbPath      = flag.String("db", "", "catalog database path (optional; caches the index and records runs)")
		catName     = flag.String("catalog", "default", "catalog name inside the database")
		reindex     = flag.Bool("reindex", false, "re-probe the directory even when the database has an index")
		metricName  = flag.String("metric", "count", "metric to compute: count, basicz, zq95")
		cellSize    = flag.Float64("cell-size", engine.DefaultCellSize, "tile cell size in catalog units")
		maskPath    = flag.String("mask", "", "occupancy mask (ESRI ASCII grid); overrides -cell-size")
		metricRes   = flag.Float64("metric-res", 0, "metric grid resolution (default: the tile cell size)")
		buffer      = flag.Float64("buffer", engine.DefaultBuffer, "buffer width read around each tile")
		extraBuffer = flag.Float64("extra-buffer", 0, "additional buffer width added before dispatch")
		originX     = flag.Float64("origin-x", 0, "grid origin X offset")
		originY     = flag.Float64("origin-y", 0, "grid origin Y offset")
		workers     = flag.Int("workers", 0, "worker count (0 = all cores, capped at tile count)")
		progress    = flag.Bool("progress", false, "log tile completion progress")
		spill       = flag.Bool("spill", false, "persist tiles as TIFF files instead of merging in memory")
		exportDir   = flag.String("export-dir", "export", "directory for persisted tiles and the mosaic index")
		threshold   = flag.Int64("mem-threshold", engine.DefaultMemThreshold, "memory-guard byte threshold (negative disables)")
		onOverflow  = flag.String("on-overflow", "abort", "policy when the estimate exceeds the threshold: abort, proceed, spill")
		configPath  = flag.String("config", "", "JSON run configuration (overrides the tuning flags)")
		outPath     = flag.String("out", "", "CSV output path for tabular results (default stdout)")
		showVersion = flag.Bool("version", false, "print the build version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *dir == "" && *dbPath == "" {
		log.Fatal("need -dir (and optionally -db), or -db with a saved catalog")
	}

	opts, err := buildOptions(*configPath, *cellSize, *maskPath, *metricRes, *buffer, *extraBuffer,
		*originX, *originY, *workers, *progress, *spill, *exportDir, *threshold, *onOverflow)
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	opts.FuncName = *metricName

	fn, err := metrics.Lookup(*metricName)
	if err != nil {
		log.Fatal(err)
	}

	var db *catalogdb.DB
	if *dbPath != "" {
		db, err = catalogdb.Open(*dbPath)
		if err != nil {
			log.Fatalf("open catalog db: %v", err)
		}
		defer db.Close()
		opts.DB = db
		opts.CatalogName = *catName
	}

	cat, err := loadCatalog(db, *catName, *dir, *ext, *reindex)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("catalog: %d files, %d points, extent %v", cat.Len(), cat.Points(), cat.Extent())

	rdr := reader.NewXYZReader(cat.Headers())
	out, err := engine.Run(context.Background(), cat, rdr, engine.UserFunc(fn), nil, opts)
	if errors.Is(err, memguard.ErrAborted) {
		log.Print("run aborted by memory guard; no output produced")
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	switch {
	case out.Mosaic != nil:
		log.Printf("mosaic: %d tiles indexed by %s", len(out.Mosaic.Tiles), out.Mosaic.VRTPath)
	case out.Table != nil:
		if err := writeCSV(out.Table, *outPath); err != nil {
			log.Fatalf("write output: %v", err)
		}
		log.Printf("wrote %d rows at resolution %g", out.Table.Len(), out.Table.Resolution)
	default:
		log.Print("every tile was empty; no output produced")
	}
}

func buildOptions(configPath string, cellSize float64, maskPath string, metricRes, buffer, extraBuffer,
	originX, originY float64, workers int, progress, spill bool, exportDir string,
	threshold int64, onOverflow string) (engine.Options, error) {

	if configPath != "" {
		cfg, err := engine.LoadRunConfig(configPath)
		if err != nil {
			return engine.Options{}, err
		}
		return cfg.ToOptions()
	}

	opts := engine.DefaultOptions()
	opts.Buffer = buffer
	opts.ExtraBuffer = extraBuffer
	opts.MetricResolution = metricRes
	opts.Origin = [2]float64{originX, originY}
	opts.Workers = workers
	opts.Progress = progress
	opts.Spill = spill
	opts.ExportDir = exportDir
	opts.MemThreshold = threshold
	if maskPath != "" {
		mask, err := raster.ReadASC(maskPath)
		if err != nil {
			return engine.Options{}, fmt.Errorf("mask: %w", err)
		}
		opts.CellSize = tiling.FromMask(mask)
	} else {
		opts.CellSize = tiling.Uniform(cellSize)
	}
	switch onOverflow {
	case "abort":
		opts.Decide = memguard.AlwaysAbort
	case "proceed":
		opts.Decide = memguard.AlwaysProceed
	case "spill":
		opts.Decide = memguard.AlwaysSpill
	default:
		return engine.Options{}, fmt.Errorf("unknown -on-overflow policy %q", onOverflow)
	}
	return opts, nil
}

// loadCatalog prefers the saved index when a database is present,
// falling back to (and caching) a directory probe.
func loadCatalog(db *catalogdb.DB, name, dir, ext string, reindex bool) (*catalog.Catalog, error) {
	if db != nil && !reindex {
		if cat, err := db.LoadCatalog(name); err == nil {
			return cat, nil
		}
	}
	if dir == "" {
		return nil, fmt.Errorf("catalog %q not in database and no -dir to index", name)
	}
	headers, err := reader.ProbeDir(dir, ext)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", dir, err)
	}
	cat, err := catalog.FromHeaders(headers)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := db.SaveCatalog(name, cat.Entries()); err != nil {
			return nil, fmt.Errorf("save catalog index: %w", err)
		}
	}
	return cat, nil
}

func writeCSV(t *table.Table, path string) error {
	f := os.Stdout
	if path != "" {
		var err error
		f, err = os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
	}
	w := csv.NewWriter(f)
	header := append([]string{"x", "y"}, t.Columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for _, r := range t.Rows {
		rec[0] = strconv.FormatFloat(r.X, 'g', -1, 64)
		rec[1] = strconv.FormatFloat(r.Y, 'g', -1, 64)
		for i, v := range r.Values {
			rec[i+2] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
