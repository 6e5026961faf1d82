package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/lascatalog/internal/memguard"
	"github.com/banshee-data/lascatalog/internal/raster"
	"github.com/banshee-data/lascatalog/internal/tiling"
)

// RunConfig is the JSON-loadable form of Options, for driving the CLI
// from a file. Fields are pointers so a partial config keeps the
// documented defaults; the Get* accessors resolve the fallbacks.
type RunConfig struct {
	Buffer           *float64 `json:"buffer,omitempty"`
	ExtraBuffer      *float64 `json:"extra_buffer,omitempty"`
	CellSize         *float64 `json:"cell_size,omitempty"`
	MaskPath         *string  `json:"mask,omitempty"`
	MetricResolution *float64 `json:"metric_resolution,omitempty"`
	OriginX          *float64 `json:"origin_x,omitempty"`
	OriginY          *float64 `json:"origin_y,omitempty"`
	Workers          *int     `json:"workers,omitempty"`
	Progress         *bool    `json:"progress,omitempty"`
	Spill            *bool    `json:"spill,omitempty"`
	ExportDir        *string  `json:"export_dir,omitempty"`
	MemThreshold     *int64   `json:"mem_threshold,omitempty"`
	BytesPerCell     *int64   `json:"bytes_per_cell,omitempty"`
	OnOverflow       *string  `json:"on_overflow,omitempty"` // "abort", "proceed", "spill"
}

// LoadRunConfig reads and validates a JSON run configuration.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &RunConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges; structural errors (e.g. an unreadable
// mask) surface in ToOptions.
func (c *RunConfig) Validate() error {
	if c.Buffer != nil && *c.Buffer < 0 {
		return fmt.Errorf("buffer must be non-negative, got %g", *c.Buffer)
	}
	if c.CellSize != nil && *c.CellSize <= 0 {
		return fmt.Errorf("cell_size must be positive, got %g", *c.CellSize)
	}
	if c.CellSize != nil && c.MaskPath != nil {
		return fmt.Errorf("cell_size and mask are mutually exclusive")
	}
	if c.OnOverflow != nil {
		switch *c.OnOverflow {
		case "abort", "proceed", "spill":
		default:
			return fmt.Errorf("on_overflow must be abort, proceed or spill, got %q", *c.OnOverflow)
		}
	}
	return nil
}

// GetBuffer returns the buffer width or the default.
func (c *RunConfig) GetBuffer() float64 {
	if c.Buffer == nil {
		return DefaultBuffer
	}
	return *c.Buffer
}

// GetWorkers returns the worker count, or 0 meaning all cores.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetOnOverflow maps the configured policy name to a DecideFunc.
func (c *RunConfig) GetOnOverflow() memguard.DecideFunc {
	if c.OnOverflow == nil {
		return memguard.AlwaysAbort
	}
	switch *c.OnOverflow {
	case "proceed":
		return memguard.AlwaysProceed
	case "spill":
		return memguard.AlwaysSpill
	default:
		return memguard.AlwaysAbort
	}
}

// ToOptions resolves the config into engine Options, loading the mask
// raster when one is named.
func (c *RunConfig) ToOptions() (Options, error) {
	opts := DefaultOptions()
	opts.Buffer = c.GetBuffer()
	if c.ExtraBuffer != nil {
		opts.ExtraBuffer = *c.ExtraBuffer
	}
	switch {
	case c.MaskPath != nil:
		mask, err := raster.ReadASC(*c.MaskPath)
		if err != nil {
			return Options{}, fmt.Errorf("mask: %w", err)
		}
		opts.CellSize = tiling.FromMask(mask)
	case c.CellSize != nil:
		opts.CellSize = tiling.Uniform(*c.CellSize)
	}
	if c.MetricResolution != nil {
		opts.MetricResolution = *c.MetricResolution
	}
	if c.OriginX != nil {
		opts.Origin[0] = *c.OriginX
	}
	if c.OriginY != nil {
		opts.Origin[1] = *c.OriginY
	}
	opts.Workers = c.GetWorkers()
	if c.Progress != nil {
		opts.Progress = *c.Progress
	}
	if c.Spill != nil {
		opts.Spill = *c.Spill
	}
	if c.ExportDir != nil {
		opts.ExportDir = *c.ExportDir
	}
	if c.MemThreshold != nil {
		opts.MemThreshold = *c.MemThreshold
	}
	if c.BytesPerCell != nil {
		opts.BytesPerCell = *c.BytesPerCell
	}
	opts.Decide = c.GetOnOverflow()
	return opts, nil
}
