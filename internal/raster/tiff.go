package raster

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/banshee-data/lascatalog/internal/geom"
)

// Persisted tiles are 16-bit grayscale TIFFs with an ESRI world file
// alongside for georeferencing. Values are rounded and clamped to
// [0, 65534]; 65535 marks nodata. Tabular mode keeps full float
// precision; raster persistence trades it for a format the stdlib
// image stack can write.
const tiffNoData = 65535

// WriteTIFF writes g to path plus a world file at the matching .tfw
// path.
func WriteTIFF(g *Grid, path string) error {
	img := image.NewGray16(image.Rect(0, 0, g.Cols, g.Rows))
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			v := g.At(col, row)
			pix := uint16(tiffNoData)
			if v != g.NoData && !math.IsNaN(v) {
				r := math.Round(v)
				if r < 0 {
					r = 0
				}
				if r > tiffNoData-1 {
					r = tiffNoData - 1
				}
				pix = uint16(r)
			}
			i := img.PixOffset(col, row)
			img.Pix[i] = byte(pix >> 8)
			img.Pix[i+1] = byte(pix)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return writeWorldFile(worldFilePath(path), g)
}

// ReadTIFF loads a tile written by WriteTIFF, restoring georeferencing
// from the world file.
func ReadTIFF(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	b := img.Bounds()
	cellX, cellY, originX, originY, err := readWorldFile(worldFilePath(path))
	if err != nil {
		return nil, err
	}
	cols, rows := b.Dx(), b.Dy()
	g := NewGrid(originX-cellX/2, (originY+cellY/2)-float64(rows)*cellY, cellX, cellY, cols, rows, tiffNoData)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			r, _, _, _ := img.At(b.Min.X+col, b.Min.Y+row).RGBA()
			g.Set(col, row, float64(r))
		}
	}
	return g, nil
}

// TileShape returns the pixel dimensions and georeferenced bounds of a
// persisted tile without loading its cells.
func TileShape(path string) (cols, rows int, bounds geom.BBox, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, geom.BBox{}, err
	}
	defer f.Close()
	cfg, err := tiff.DecodeConfig(f)
	if err != nil {
		return 0, 0, geom.BBox{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	cellX, cellY, originX, originY, err := readWorldFile(worldFilePath(path))
	if err != nil {
		return 0, 0, geom.BBox{}, err
	}
	minX := originX - cellX/2
	maxY := originY + cellY/2
	bounds = geom.BBox{
		MinX: minX,
		MinY: maxY - float64(cfg.Height)*cellY,
		MaxX: minX + float64(cfg.Width)*cellX,
		MaxY: maxY,
	}
	return cfg.Width, cfg.Height, bounds, nil
}

func worldFilePath(tiffPath string) string {
	ext := filepath.Ext(tiffPath)
	return strings.TrimSuffix(tiffPath, ext) + ".tfw"
}

// writeWorldFile emits the six-line ESRI world file: pixel sizes,
// rotations (always zero here) and the centre of the top-left pixel.
func writeWorldFile(path string, g *Grid) error {
	topCentreY := g.MinY + float64(g.Rows)*g.CellY - g.CellY/2
	body := fmt.Sprintf("%.10g\n0\n0\n%.10g\n%.10g\n%.10g\n",
		g.CellX, -g.CellY, g.MinX+g.CellX/2, topCentreY)
	return os.WriteFile(path, []byte(body), 0o644)
}

func readWorldFile(path string) (cellX, cellY, originX, originY float64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	var vals []float64
	for _, fv := range strings.Fields(string(data)) {
		var v float64
		if _, err := fmt.Sscanf(fv, "%g", &v); err != nil {
			return 0, 0, 0, 0, fmt.Errorf("world file %s: bad value %q", path, fv)
		}
		vals = append(vals, v)
	}
	if len(vals) != 6 {
		return 0, 0, 0, 0, fmt.Errorf("world file %s: want 6 values, got %d", path, len(vals))
	}
	if vals[1] != 0 || vals[2] != 0 {
		return 0, 0, 0, 0, fmt.Errorf("world file %s: rotation unsupported", path)
	}
	return vals[0], -vals[3], vals[4], vals[5], nil
}
