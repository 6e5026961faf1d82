package raster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/lascatalog/internal/geom"
	"github.com/banshee-data/lascatalog/internal/table"
)

func TestReadASCClassicHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mask.asc")
	body := `ncols 4
nrows 2
xllcorner 100
yllcorner 200
cellsize 50
NODATA_value -9999
1 0 -9999 1
0 0 1 1
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	g, err := ReadASC(path)
	if err != nil {
		t.Fatal(err)
	}
	if g.Cols != 4 || g.Rows != 2 {
		t.Fatalf("shape = %dx%d, want 4x2", g.Cols, g.Rows)
	}
	if !g.SquareCells() {
		t.Error("classic header implies square cells")
	}
	want := geom.BBox{MinX: 100, MinY: 200, MaxX: 300, MaxY: 300}
	if g.Bounds() != want {
		t.Errorf("Bounds = %v, want %v", g.Bounds(), want)
	}
	// Top-left cell is the first value.
	if g.At(0, 0) != 1 {
		t.Errorf("At(0,0) = %g, want 1", g.At(0, 0))
	}
	if g.At(2, 0) != -9999 {
		t.Errorf("At(2,0) = %g, want nodata", g.At(2, 0))
	}
}

func TestReadASCNonSquare(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mask.asc")
	body := "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ndx 10\ndy 20\n1\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	g, err := ReadASC(path)
	if err != nil {
		t.Fatal(err)
	}
	if g.SquareCells() {
		t.Error("dx=10 dy=20 must report non-square cells")
	}
}

func TestReadASCCellCountMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mask.asc")
	body := "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadASC(path); err == nil {
		t.Fatal("short cell payload should fail")
	}
}

func TestOccupied(t *testing.T) {
	// 2x2 mask over [0,100]x[0,100]; only the lower-left cell occupied.
	g := NewGrid(0, 0, 50, 50, 2, 2, -9999)
	g.Set(0, 1, 1) // row 1 = bottom row

	if !g.Occupied(geom.BBox{MinX: 0, MinY: 0, MaxX: 50, MaxY: 50}) {
		t.Error("lower-left quadrant should be occupied")
	}
	if g.Occupied(geom.BBox{MinX: 50, MinY: 50, MaxX: 100, MaxY: 100}) {
		t.Error("upper-right quadrant should be empty")
	}
	if g.Occupied(geom.BBox{MinX: 200, MinY: 200, MaxX: 300, MaxY: 300}) {
		t.Error("box outside the mask should be empty")
	}
}

func TestRasterizeAndTIFFRoundTrip(t *testing.T) {
	tbl := table.New(10, "n")
	// Cell centres on a 10-unit grid over [0,30]x[0,20].
	_ = tbl.Append(5, 5, 7)
	_ = tbl.Append(25, 15, 3)

	g, err := Rasterize(tbl, geom.BBox{MinX: 0, MinY: 0, MaxX: 30, MaxY: 20}, 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if g.Cols != 3 || g.Rows != 2 {
		t.Fatalf("shape = %dx%d, want 3x2", g.Cols, g.Rows)
	}
	// (5,5) is bottom-left; (25,15) is top-right.
	if g.At(0, 1) != 7 {
		t.Errorf("bottom-left = %g, want 7", g.At(0, 1))
	}
	if g.At(2, 0) != 3 {
		t.Errorf("top-right = %g, want 3", g.At(2, 0))
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "n_ROI0.tiff")
	if err := WriteTIFF(g, path); err != nil {
		t.Fatal(err)
	}
	back, err := ReadTIFF(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Bounds() != g.Bounds() {
		t.Errorf("bounds %v != %v after round trip", back.Bounds(), g.Bounds())
	}
	if back.At(0, 1) != 7 || back.At(2, 0) != 3 {
		t.Errorf("values lost in round trip: %g, %g", back.At(0, 1), back.At(2, 0))
	}
	// Unset cells come back as the TIFF nodata marker.
	if back.At(1, 0) != tiffNoData {
		t.Errorf("empty cell = %g, want %d", back.At(1, 0), tiffNoData)
	}
}

func TestBuildMosaic(t *testing.T) {
	dir := t.TempDir()

	// Two adjacent 2x2 tiles at resolution 10: [0,20]x[0,20] and [20,40]x[0,20].
	for i, minX := range []float64{0, 20} {
		g := NewGrid(minX, 0, 10, 10, 2, 2, -1)
		g.Set(0, 0, float64(i+1))
		path := filepath.Join(dir, "zmax_ROI"+string(rune('0'+i))+".tiff")
		if err := WriteTIFF(g, path); err != nil {
			t.Fatal(err)
		}
	}

	m, err := BuildMosaic(dir, "zmax")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Tiles) != 2 {
		t.Fatalf("tiles = %d, want 2", len(m.Tiles))
	}
	if m.Extent != (geom.BBox{MinX: 0, MinY: 0, MaxX: 40, MaxY: 20}) {
		t.Errorf("extent = %v", m.Extent)
	}
	if m.Resolution != 10 {
		t.Errorf("resolution = %g, want 10", m.Resolution)
	}

	data, err := os.ReadFile(m.VRTPath)
	if err != nil {
		t.Fatal(err)
	}
	vrt := string(data)
	for _, want := range []string{
		`rasterXSize="4"`, `rasterYSize="2"`,
		"zmax_ROI0.tiff", "zmax_ROI1.tiff",
		`xOff="2"`, // second tile lands two pixels across
	} {
		if !strings.Contains(vrt, want) {
			t.Errorf("VRT missing %q:\n%s", want, vrt)
		}
	}
}

func TestScanTilesIgnoresStrays(t *testing.T) {
	dir := t.TempDir()
	g := NewGrid(0, 0, 10, 10, 1, 1, -1)
	g.Set(0, 0, 1)
	if err := WriteTIFF(g, filepath.Join(dir, "zmax_ROI3.tiff")); err != nil {
		t.Fatal(err)
	}
	// A file from a different run must not be picked up.
	if err := os.WriteFile(filepath.Join(dir, "other_ROI0.tiff"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tiles, err := ScanTiles(dir, "zmax")
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 1 || tiles[0].Index != 3 {
		t.Fatalf("tiles = %+v, want single index 3", tiles)
	}
}
