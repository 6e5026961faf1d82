// Command tile-plot renders a catalog's tile layout to an interactive
// HTML chart: one outline per tile core plus the centre of every
// source file's bounding box. Useful for sanity-checking a partition
// before a long run.
//
//	tile-plot -dir ./clouds -cell-size 500 -buffer 20 -out tiles.html
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/lascatalog/internal/catalog"
	"github.com/banshee-data/lascatalog/internal/catalogdb"
	"github.com/banshee-data/lascatalog/internal/engine"
	"github.com/banshee-data/lascatalog/internal/geom"
	"github.com/banshee-data/lascatalog/internal/raster"
	"github.com/banshee-data/lascatalog/internal/reader"
	"github.com/banshee-data/lascatalog/internal/tiling"
)

const maxPlottedTiles = 2000

func main() {
	var (
		dir      = flag.String("dir", "", "directory of point files")
		ext      = flag.String("ext", ".xyz", "point file extension")
		dbPath   = flag.String("db", "", "catalog database to load the index from")
		catName  = flag.String("catalog", "default", "catalog name inside the database")
		cellSize = flag.Float64("cell-size", engine.DefaultCellSize, "tile cell size")
		maskPath = flag.String("mask", "", "occupancy mask (ESRI ASCII grid); overrides -cell-size")
		buffer   = flag.Float64("buffer", engine.DefaultBuffer, "buffer width")
		originX  = flag.Float64("origin-x", 0, "grid origin X offset")
		originY  = flag.Float64("origin-y", 0, "grid origin Y offset")
		outPath  = flag.String("out", "tiles.html", "output HTML path")
	)
	flag.Parse()

	cat, err := loadCatalog(*dbPath, *catName, *dir, *ext)
	if err != nil {
		log.Fatal(err)
	}

	spec := tiling.Uniform(*cellSize)
	if *maskPath != "" {
		mask, err := raster.ReadASC(*maskPath)
		if err != nil {
			log.Fatalf("mask: %v", err)
		}
		spec = tiling.FromMask(mask)
	}
	tiles, err := tiling.MakeTiles(cat.Extent(), spec, *buffer, *originX, *originY)
	if err != nil {
		log.Fatal(err)
	}
	if len(tiles) > maxPlottedTiles {
		log.Fatalf("%d tiles is too many to plot (max %d); use a coarser cell size", len(tiles), maxPlottedTiles)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "tile layout",
			Subtitle: fmt.Sprintf("%d tiles over %d files, extent %v", len(tiles), cat.Len(), cat.Extent()),
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	for _, t := range tiles {
		line.AddSeries(t.Name, rectangle(t.Core))
	}
	// File extents ride along as a final series of their corner traces.
	for _, e := range cat.Entries() {
		line.AddSeries(e.Path, rectangle(e.Bounds),
			charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		log.Fatalf("render: %v", err)
	}
	log.Printf("wrote %s (%d tiles)", *outPath, len(tiles))
}

// rectangle traces a bbox outline as a closed five-point line.
func rectangle(b geom.BBox) []opts.LineData {
	corners := [][2]float64{
		{b.MinX, b.MinY},
		{b.MaxX, b.MinY},
		{b.MaxX, b.MaxY},
		{b.MinX, b.MaxY},
		{b.MinX, b.MinY},
	}
	data := make([]opts.LineData, 0, len(corners))
	for _, c := range corners {
		data = append(data, opts.LineData{Value: []interface{}{c[0], c[1]}})
	}
	return data
}

func loadCatalog(dbPath, name, dir, ext string) (*catalog.Catalog, error) {
	if dbPath != "" {
		db, err := catalogdb.Open(dbPath)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.LoadCatalog(name)
	}
	if dir == "" {
		return nil, fmt.Errorf("need -dir or -db")
	}
	headers, err := reader.ProbeDir(dir, ext)
	if err != nil {
		return nil, err
	}
	return catalog.FromHeaders(headers)
}
