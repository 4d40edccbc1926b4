// Package config provides configuration loading and management for plaquequant.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"plaquequant/pkg/filters"
	"plaquequant/pkg/picks"
	"plaquequant/pkg/quantify"
	"plaquequant/pkg/segment"
	"plaquequant/pkg/specimen"
	"plaquequant/pkg/threshold"
)

// ErrInvalid is returned by Validate for unusable settings.
var ErrInvalid = errors.New("config: invalid value")

// Config represents the application configuration loaded from YAML
type Config struct {
	// Threshold parameters used to derive masks from images
	Threshold struct {
		// Value is the cutoff applied to normalised intensities
		Value float64 `yaml:"value"`

		// Sigma is the Gaussian smoothing scale in pixels
		Sigma float64 `yaml:"sigma"`

		// Normalization is "minmax" or "zscore"
		Normalization string `yaml:"normalization"`
	} `yaml:"threshold"`

	// Filter parameters applied before segmentation
	Filters struct {
		MinComponentSize   int     `yaml:"minComponentSize"`
		DropBorderTouching bool    `yaml:"dropBorderTouching"`
		BorderMinArea      int     `yaml:"borderMinArea"`
		MaxAreaFraction    float64 `yaml:"maxAreaFraction"`

		// Intensity band, in raw sample units, treated as background
		Intensity struct {
			Enabled bool    `yaml:"enabled"`
			Low     float64 `yaml:"low"`
			High    float64 `yaml:"high"`
		} `yaml:"intensity"`
	} `yaml:"filters"`

	// Segmentation parameters
	Segmentation struct {
		// Connectivity is 4 or 8
		Connectivity int `yaml:"connectivity"`
	} `yaml:"segmentation"`

	// Measurement parameters
	Measurement struct {
		// PixelSize is the physical edge length of one pixel, 0 for pixel units
		PixelSize float64 `yaml:"pixelSize"`
	} `yaml:"measurement"`

	// Pick correction parameters
	Picks struct {
		UsePicks            bool    `yaml:"usePicks"`
		ExpectedSingleArea  float64 `yaml:"expectedSingleArea"`
		Population          string  `yaml:"population"`
		ShapeCorrection     bool    `yaml:"shapeCorrection"`
		ElongationThreshold float64 `yaml:"elongationThreshold"`
	} `yaml:"picks"`

	// Plate layout parameters
	Plate struct {
		// NumCores specifies how many wells are measured concurrently
		NumCores int `yaml:"numCores"`

		// Columns is the number of wells per plate row
		Columns int `yaml:"columns"`

		// PitchRow and PitchCol are the distances between neighbouring well origins in pixels
		PitchRow float64 `yaml:"pitchRow"`
		PitchCol float64 `yaml:"pitchCol"`
	} `yaml:"plate"`

	// Output parameters
	Output struct {
		// SaveOverlays determines whether mask overlays are written
		SaveOverlays bool `yaml:"saveOverlays"`

		// OverlayDir is the directory overlays are written to
		OverlayDir string `yaml:"overlayDir"`

		// LogLevel is one of debug, info, warn, error
		LogLevel string `yaml:"logLevel"`

		// Verbose switches to human readable console logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default threshold parameters
	cfg.Threshold.Value = 0.5
	cfg.Threshold.Sigma = 5
	cfg.Threshold.Normalization = "minmax"

	// Set default filter parameters
	cfg.Filters.MinComponentSize = 20
	cfg.Filters.DropBorderTouching = false
	cfg.Filters.MaxAreaFraction = 0

	cfg.Segmentation.Connectivity = 8

	// Set default pick parameters
	cfg.Picks.UsePicks = false
	cfg.Picks.Population = "median"
	cfg.Picks.ElongationThreshold = picks.DefaultElongationThreshold

	// Set default plate parameters
	cfg.Plate.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Plate.Columns = 1

	// Set default output parameters
	cfg.Output.SaveOverlays = false
	cfg.Output.OverlayDir = "overlays"
	cfg.Output.LogLevel = "info"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks that every section converts into valid pipeline parameters.
func (c *Config) Validate() error {
	if _, ok := threshold.ParseNormalization(c.Threshold.Normalization); !ok {
		return fmt.Errorf("%w: normalization %q", ErrInvalid, c.Threshold.Normalization)
	}
	if _, ok := parsePopulation(c.Picks.Population); !ok {
		return fmt.Errorf("%w: population %q", ErrInvalid, c.Picks.Population)
	}
	if c.Plate.NumCores < 0 || c.Plate.Columns < 0 {
		return fmt.Errorf("%w: plate cores and columns must not be negative", ErrInvalid)
	}

	tp, err := c.ThresholdParams()
	if err != nil {
		return err
	}
	if err := tp.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	qp, err := c.QuantifyParams()
	if err != nil {
		return err
	}
	if err := qp.Filter.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := qp.Picks.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if ps := c.Measurement.PixelSize; math.IsNaN(ps) || math.IsInf(ps, 0) || ps < 0 {
		return fmt.Errorf("%w: pixel size %v", ErrInvalid, c.Measurement.PixelSize)
	}
	return nil
}

// ThresholdParams converts the threshold section.
func (c *Config) ThresholdParams() (threshold.Params, error) {
	n, ok := threshold.ParseNormalization(c.Threshold.Normalization)
	if !ok {
		return threshold.Params{}, fmt.Errorf("%w: normalization %q", ErrInvalid, c.Threshold.Normalization)
	}
	return threshold.Params{Threshold: c.Threshold.Value, Sigma: c.Threshold.Sigma, Normalization: n}, nil
}

// ImageSource returns the specimen source that thresholds images with these settings.
func (c *Config) ImageSource() (specimen.ImageSource, error) {
	tp, err := c.ThresholdParams()
	if err != nil {
		return specimen.ImageSource{}, err
	}
	src := specimen.ThresholdSource(tp.Threshold, tp.Sigma)
	src.Normalization = tp.Normalization
	return src, nil
}

// QuantifyParams converts the filter, segmentation, measurement and picks sections.
func (c *Config) QuantifyParams() (quantify.Params, error) {
	pop, ok := parsePopulation(c.Picks.Population)
	if !ok {
		return quantify.Params{}, fmt.Errorf("%w: population %q", ErrInvalid, c.Picks.Population)
	}
	conn := segment.Connectivity(c.Segmentation.Connectivity)
	if _, err := conn.Resolve(); err != nil {
		return quantify.Params{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return quantify.Params{
		Filter: filters.Config{
			MinComponentSize: c.Filters.MinComponentSize,
			Connectivity:     conn,
			Background: filters.BackgroundPolicy{
				DropBorderTouching: c.Filters.DropBorderTouching,
				BorderMinArea:      c.Filters.BorderMinArea,
				MaxAreaFraction:    c.Filters.MaxAreaFraction,
				Intensity: filters.IntensityBand{
					Enabled: c.Filters.Intensity.Enabled,
					Low:     c.Filters.Intensity.Low,
					High:    c.Filters.Intensity.High,
				},
			},
		},
		Connectivity: conn,
		PixelSize:    c.Measurement.PixelSize,
		Picks: picks.Config{
			UsePicks:            c.Picks.UsePicks,
			ExpectedSingleArea:  c.Picks.ExpectedSingleArea,
			Population:          pop,
			ShapeCorrection:     c.Picks.ShapeCorrection,
			ElongationThreshold: c.Picks.ElongationThreshold,
		},
	}, nil
}

func parsePopulation(s string) (picks.Population, bool) {
	switch s {
	case "", "median":
		return picks.Median, true
	case "mode":
		return picks.Modal, true
	default:
		return picks.Median, false
	}
}
