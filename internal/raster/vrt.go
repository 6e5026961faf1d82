package raster

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/banshee-data/lascatalog/internal/geom"
)

// Mosaic is the merged raster output: a GDAL VRT index referencing
// every persisted tile, composed lazily by whatever consumes it. The
// tile files themselves are never loaded here.
type Mosaic struct {
	VRTPath    string
	Tiles      []MosaicTile
	Extent     geom.BBox
	Resolution float64
}

// MosaicTile is one persisted tile file within a mosaic.
type MosaicTile struct {
	Path       string
	Index      int
	Cols, Rows int
	Bounds     geom.BBox
}

var roiPattern = regexp.MustCompile(`_ROI(\d+)\.tiff$`)

// ScanTiles finds the persisted outputs of one run under dir: files
// named <funcName>_ROI<i>.tiff, returned in ascending tile index order.
func ScanTiles(dir, funcName string) ([]MosaicTile, error) {
	names, err := filepath.Glob(filepath.Join(dir, funcName+"_ROI*.tiff"))
	if err != nil {
		return nil, err
	}
	var tiles []MosaicTile
	for _, name := range names {
		m := roiPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		cols, rows, bounds, err := TileShape(name)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, MosaicTile{Path: name, Index: idx, Cols: cols, Rows: rows, Bounds: bounds})
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].Index < tiles[j].Index })
	return tiles, nil
}

// BuildMosaic scans dir for funcName's tiles and writes
// <dir>/<funcName>.vrt referencing them. The tiles' core regions cover
// the run extent without overlap, so each tile maps to a disjoint
// destination window.
func BuildMosaic(dir, funcName string) (*Mosaic, error) {
	tiles, err := ScanTiles(dir, funcName)
	if err != nil {
		return nil, err
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("mosaic: no %s_ROI*.tiff tiles under %s", funcName, dir)
	}

	res := tiles[0].Bounds.Width() / float64(tiles[0].Cols)
	var extent geom.BBox
	for _, t := range tiles {
		extent = extent.Union(t.Bounds)
	}
	xSize := int(math.Round(extent.Width() / res))
	ySize := int(math.Round(extent.Height() / res))

	vrt := vrtDataset{
		RasterXSize: xSize,
		RasterYSize: ySize,
		GeoTransform: fmt.Sprintf("%.10g, %.10g, 0, %.10g, 0, %.10g",
			extent.MinX, res, extent.MaxY, -res),
		Band: vrtBand{
			DataType:    "UInt16",
			BandNum:     1,
			NoDataValue: tiffNoData,
		},
	}
	for _, t := range tiles {
		vrt.Band.Sources = append(vrt.Band.Sources, vrtSource{
			Filename: vrtFilename{Relative: 1, Name: filepath.Base(t.Path)},
			Band:     1,
			SrcRect:  vrtRect{XSize: t.Cols, YSize: t.Rows},
			DstRect: vrtRect{
				XOff:  int(math.Round((t.Bounds.MinX - extent.MinX) / res)),
				YOff:  int(math.Round((extent.MaxY - t.Bounds.MaxY) / res)),
				XSize: t.Cols,
				YSize: t.Rows,
			},
		})
	}

	out, err := xml.MarshalIndent(vrt, "", "  ")
	if err != nil {
		return nil, err
	}
	vrtPath := filepath.Join(dir, funcName+".vrt")
	if err := os.WriteFile(vrtPath, append(out, '\n'), 0o644); err != nil {
		return nil, err
	}
	return &Mosaic{VRTPath: vrtPath, Tiles: tiles, Extent: extent, Resolution: res}, nil
}

// GDAL VRT schema, the subset we emit.

type vrtDataset struct {
	XMLName      xml.Name `xml:"VRTDataset"`
	RasterXSize  int      `xml:"rasterXSize,attr"`
	RasterYSize  int      `xml:"rasterYSize,attr"`
	GeoTransform string   `xml:"GeoTransform"`
	Band         vrtBand  `xml:"VRTRasterBand"`
}

type vrtBand struct {
	DataType    string      `xml:"dataType,attr"`
	BandNum     int         `xml:"band,attr"`
	NoDataValue float64     `xml:"NoDataValue"`
	Sources     []vrtSource `xml:"SimpleSource"`
}

type vrtSource struct {
	Filename vrtFilename `xml:"SourceFilename"`
	Band     int         `xml:"SourceBand"`
	SrcRect  vrtRect     `xml:"SrcRect"`
	DstRect  vrtRect     `xml:"DstRect"`
}

type vrtFilename struct {
	Relative int    `xml:"relativeToVRT,attr"`
	Name     string `xml:",chardata"`
}

type vrtRect struct {
	XOff  int `xml:"xOff,attr"`
	YOff  int `xml:"yOff,attr"`
	XSize int `xml:"xSize,attr"`
	YSize int `xml:"ySize,attr"`
}
