// Package metrics ships stock per-cell aggregation functions so the
// engine is usable end-to-end without custom code. Each function bins
// the points of one buffered tile onto the run's grid and reduces every
// cell's Z values to summary statistics. Custom aggregations plug into
// the engine the same way; these are just the ones everybody asks for.
package metrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lascatalog/internal/reader"
	"github.com/banshee-data/lascatalog/internal/table"
)

// Func aggregates one tile's points at the given resolution. It has
// the same shape as engine.UserFunc; keeping the signature here too
// lets this package stay independent of the engine.
type Func func(points []reader.Point, resolution float64, args map[string]any) (*table.Table, error)

// Origin extracts the grid origin offset from the args bag. The engine
// sets args["origin"] when the caller configured a non-default offset.
func Origin(args map[string]any) (x, y float64) {
	if args == nil {
		return 0, 0
	}
	if o, ok := args["origin"].([2]float64); ok {
		return o[0], o[1]
	}
	return 0, 0
}

// cell bins points by grid cell, keyed by cell centre.
type cellKey struct{ x, y float64 }

func binPoints(points []reader.Point, res, originX, originY float64) map[cellKey][]float64 {
	cells := make(map[cellKey][]float64)
	for _, p := range points {
		cx := originX + snap(p.X-originX, res) + res/2
		cy := originY + snap(p.Y-originY, res) + res/2
		k := cellKey{cx, cy}
		cells[k] = append(cells[k], p.Z)
	}
	return cells
}

func snap(v, res float64) float64 {
	n := v / res
	f := float64(int64(n))
	if n < f { // floor for negatives
		f--
	}
	return f * res
}

// sortedKeys gives a deterministic row order: y then x, ascending.
func sortedKeys(cells map[cellKey][]float64) []cellKey {
	keys := make([]cellKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].y != keys[j].y {
			return keys[i].y < keys[j].y
		}
		return keys[i].x < keys[j].x
	})
	return keys
}

// Count returns the per-cell point count, column "n".
func Count(points []reader.Point, resolution float64, args map[string]any) (*table.Table, error) {
	ox, oy := Origin(args)
	cells := binPoints(points, resolution, ox, oy)
	t := table.New(resolution, "n")
	for _, k := range sortedKeys(cells) {
		if err := t.Append(k.x, k.y, float64(len(cells[k]))); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// BasicZ returns the standard elevation summary per cell: columns
// n, zmin, zmax, zmean, zsd. Cells with a single point report zsd 0.
func BasicZ(points []reader.Point, resolution float64, args map[string]any) (*table.Table, error) {
	ox, oy := Origin(args)
	cells := binPoints(points, resolution, ox, oy)
	t := table.New(resolution, "n", "zmin", "zmax", "zmean", "zsd")
	for _, k := range sortedKeys(cells) {
		zs := cells[k]
		zmin, zmax := zs[0], zs[0]
		for _, z := range zs[1:] {
			zmin = min(zmin, z)
			zmax = max(zmax, z)
		}
		mean := stat.Mean(zs, nil)
		sd := 0.0
		if len(zs) > 1 {
			sd = stat.StdDev(zs, nil)
		}
		if err := t.Append(k.x, k.y, float64(len(zs)), zmin, zmax, mean, sd); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ZQuantile returns a metric computing one Z quantile per cell
// (column "zq<pct>"), e.g. ZQuantile(0.95) for the 95th percentile.
func ZQuantile(p float64) Func {
	return func(points []reader.Point, resolution float64, args map[string]any) (*table.Table, error) {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("metrics: quantile %g out of [0,1]", p)
		}
		ox, oy := Origin(args)
		cells := binPoints(points, resolution, ox, oy)
		col := fmt.Sprintf("zq%d", int(p*100))
		t := table.New(resolution, col)
		for _, k := range sortedKeys(cells) {
			zs := cells[k]
			sort.Float64s(zs)
			if err := t.Append(k.x, k.y, stat.Quantile(p, stat.Empirical, zs, nil)); err != nil {
				return nil, err
			}
		}
		return t, nil
	}
}

// Lookup resolves a metric by its CLI name.
func Lookup(name string) (Func, error) {
	switch name {
	case "count":
		return Count, nil
	case "basicz":
		return BasicZ, nil
	case "zq95":
		return ZQuantile(0.95), nil
	default:
		return nil, fmt.Errorf("metrics: unknown metric %q (have count, basicz, zq95)", name)
	}
}
