package metrics

import (
	"math"
	"testing"

	"github.com/banshee-data/lascatalog/internal/reader"
)

func pts(coords ...[3]float64) []reader.Point {
	out := make([]reader.Point, len(coords))
	for i, c := range coords {
		out[i] = reader.Point{X: c[0], Y: c[1], Z: c[2]}
	}
	return out
}

func TestCountBinsOnCellCentres(t *testing.T) {
	// Two points in cell [0,10)x[0,10), one in [10,20)x[0,10).
	tbl, err := Count(pts([3]float64{1, 1, 5}, [3]float64{9, 9, 6}, [3]float64{11, 2, 7}), 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.Len())
	}
	r0 := tbl.Rows[0]
	if r0.X != 5 || r0.Y != 5 || r0.Values[0] != 2 {
		t.Errorf("row 0 = %+v, want centre (5,5) n=2", r0)
	}
	r1 := tbl.Rows[1]
	if r1.X != 15 || r1.Y != 5 || r1.Values[0] != 1 {
		t.Errorf("row 1 = %+v, want centre (15,5) n=1", r1)
	}
	if tbl.Resolution != 10 {
		t.Errorf("resolution = %g, want 10", tbl.Resolution)
	}
}

func TestCountHonoursOriginOffset(t *testing.T) {
	args := map[string]any{"origin": [2]float64{5, 5}}
	tbl, err := Count(pts([3]float64{6, 6, 1}), 10, args)
	if err != nil {
		t.Fatal(err)
	}
	r := tbl.Rows[0]
	if r.X != 10 || r.Y != 10 {
		t.Errorf("centre = (%g,%g), want (10,10) with shifted origin", r.X, r.Y)
	}
}

func TestCountNegativeCoordinates(t *testing.T) {
	tbl, err := Count(pts([3]float64{-3, -3, 1}), 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	r := tbl.Rows[0]
	if r.X != -5 || r.Y != -5 {
		t.Errorf("centre = (%g,%g), want (-5,-5)", r.X, r.Y)
	}
}

func TestBasicZ(t *testing.T) {
	tbl, err := BasicZ(pts(
		[3]float64{1, 1, 2},
		[3]float64{2, 2, 4},
		[3]float64{3, 3, 6},
	), 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("rows = %d, want 1", tbl.Len())
	}
	r := tbl.Rows[0]
	want := map[string]float64{"n": 3, "zmin": 2, "zmax": 6, "zmean": 4, "zsd": 2}
	for i, col := range tbl.Columns {
		if math.Abs(r.Values[i]-want[col]) > 1e-12 {
			t.Errorf("%s = %g, want %g", col, r.Values[i], want[col])
		}
	}
}

func TestZQuantile(t *testing.T) {
	p := make([][3]float64, 100)
	for i := range p {
		p[i] = [3]float64{1, 1, float64(i + 1)}
	}
	tbl, err := ZQuantile(0.95)(pts(p...), 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Columns[0] != "zq95" {
		t.Errorf("column = %q, want zq95", tbl.Columns[0])
	}
	got := tbl.Rows[0].Values[0]
	if got < 94 || got > 96 {
		t.Errorf("zq95 = %g, want ≈95", got)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"count", "basicz", "zq95"} {
		if _, err := Lookup(name); err != nil {
			t.Errorf("Lookup(%q) failed: %v", name, err)
		}
	}
	if _, err := Lookup("nope"); err == nil {
		t.Error("unknown metric should fail")
	}
}
