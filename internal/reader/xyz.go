package reader

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/lascatalog/internal/geom"
)

// XYZReader reads whitespace-separated ASCII point files of the form
//
//	X Y Z [Intensity [Class]]
//
// with optional '#' comment lines, the same flat format the capture
// tools emit. It serves ReadBox by scanning only the files whose
// header bounds intersect the query box.
type XYZReader struct {
	headers []Header
}

// NewXYZReader builds a reader over the given file headers, typically
// the entries of a catalog. Headers are copied; the caller may reuse
// the slice.
func NewXYZReader(headers []Header) *XYZReader {
	hs := make([]Header, len(headers))
	copy(hs, headers)
	return &XYZReader{headers: hs}
}

// ReadBox implements Reader. Files whose bounds do not intersect box
// are skipped without being opened.
func (r *XYZReader) ReadBox(ctx context.Context, box geom.BBox, sel Selection, keep Filter) ([]Point, error) {
	var out []Point
	for _, h := range r.headers {
		if !h.Bounds.Intersects(box) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pts, err := scanXYZ(h.Path, box, sel, keep)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", h.Path, err)
		}
		out = append(out, pts...)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func scanXYZ(path string, box geom.BBox, sel Selection, keep Filter) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Point
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		p, err := parsePoint(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !box.Contains(p.X, p.Y) {
			continue
		}
		p = applySelection(p, sel)
		if keep != nil && !keep(p) {
			continue
		}
		out = append(out, p)
	}
	return out, sc.Err()
}

func parsePoint(text string) (Point, error) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return Point{}, fmt.Errorf("want at least 3 columns, got %d", len(fields))
	}
	var p Point
	vals := make([]float64, 0, 4)
	for i, fv := range fields {
		if i == 4 {
			break
		}
		v, err := strconv.ParseFloat(fv, 64)
		if err != nil {
			return Point{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		vals = append(vals, v)
	}
	p.X, p.Y, p.Z = vals[0], vals[1], vals[2]
	if len(vals) > 3 {
		p.Intensity = vals[3]
	}
	if len(fields) > 4 {
		c, err := strconv.Atoi(fields[4])
		if err != nil {
			return Point{}, fmt.Errorf("column 5: %w", err)
		}
		p.Class = c
	}
	return p, nil
}

// ProbeXYZ scans one file and returns its header: bounds and point
// count. Used when indexing a directory into a catalog.
func ProbeXYZ(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	h := Header{Path: path}
	var have bool
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		p, err := parsePoint(text)
		if err != nil {
			return Header{}, fmt.Errorf("probe %s: %w", path, err)
		}
		if !have {
			h.Bounds = geom.BBox{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
			have = true
		} else {
			h.Bounds.MinX = min(h.Bounds.MinX, p.X)
			h.Bounds.MinY = min(h.Bounds.MinY, p.Y)
			h.Bounds.MaxX = max(h.Bounds.MaxX, p.X)
			h.Bounds.MaxY = max(h.Bounds.MaxY, p.Y)
		}
		h.Points++
	}
	if err := sc.Err(); err != nil {
		return Header{}, err
	}
	if !have {
		return Header{}, fmt.Errorf("probe %s: file has no points", path)
	}
	// Bounds are half-open downstream; nudge the max edges so the
	// extreme points still test as inside.
	h.Bounds.MaxX = nextAfter(h.Bounds.MaxX)
	h.Bounds.MaxY = nextAfter(h.Bounds.MaxY)
	return h, nil
}

// ProbeDir probes every file under dir with the given extension
// (e.g. ".xyz") and returns the headers sorted by path, so catalog
// entry order is stable across runs.
func ProbeDir(dir, ext string) ([]Header, error) {
	names, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no %s files under %s", ext, dir)
	}
	sort.Strings(names)
	headers := make([]Header, 0, len(names))
	for _, name := range names {
		h, err := ProbeXYZ(name)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

func nextAfter(v float64) float64 {
	// A hair past v, enough that Contains(v, ...) holds.
	const eps = 1e-9
	if v == 0 {
		return eps
	}
	d := v * 1e-12
	if d < 0 {
		d = -d
	}
	if d < eps {
		d = eps
	}
	return v + d
}
