package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"plaquequant/internal/logging"
	"plaquequant/pkg/config"
	"plaquequant/pkg/plate"
	"plaquequant/pkg/raster"
	"plaquequant/pkg/specimen"
	"plaquequant/pkg/visualization"
)

// imageList collects repeated -image flags
type imageList []string

func (l *imageList) String() string { return strings.Join(*l, ",") }

func (l *imageList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var images imageList

	// Parse command line arguments
	configPath := flag.String("config", "plaquequant.yaml", "Path to the YAML configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	flag.Var(&images, "image", "Well image to quantify (repeat for several wells, laid out row-major)")
	var o overrides
	flag.Float64Var(&o.threshold, "threshold", 0, "Override the configured threshold value")
	flag.Float64Var(&o.sigma, "sigma", 0, "Override the configured smoothing sigma")
	flag.BoolVar(&o.usePicks, "picks", false, "Correct merged plaques by expected single-plaque area")
	flag.StringVar(&o.overlayDir, "overlay-dir", "", "Write per-well overlays to this directory")
	scale := flag.Int("scale", 1, "Integer upscaling applied to written overlays")
	flag.StringVar(&o.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	flag.Parse()

	// Only flags given on the command line override the configuration
	o.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if len(images) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Output.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, level, cfg.Output.Verbose)

	if err := run(cfg, images, *scale, logger); err != nil {
		logger.Error().Err(err).Msg("quantification failed")
		os.Exit(1)
	}
}

// overrides holds command line values that replace configured ones
type overrides struct {
	threshold  float64
	sigma      float64
	usePicks   bool
	overlayDir string
	logLevel   string

	// set records the flags explicitly given
	set map[string]bool
}

func (o overrides) apply(cfg *config.Config) {
	if o.set["threshold"] {
		cfg.Threshold.Value = o.threshold
	}
	if o.set["sigma"] {
		cfg.Threshold.Sigma = o.sigma
	}
	if o.set["picks"] {
		cfg.Picks.UsePicks = o.usePicks
	}
	if o.set["overlay-dir"] && o.overlayDir != "" {
		cfg.Output.SaveOverlays = true
		cfg.Output.OverlayDir = o.overlayDir
	}
	if o.set["log-level"] {
		cfg.Output.LogLevel = o.logLevel
	}
}

func run(cfg *config.Config, images []string, scale int, logger zerolog.Logger) error {
	log := logging.Component(logger, "cli")

	params, err := cfg.QuantifyParams()
	if err != nil {
		return err
	}
	src, err := cfg.ImageSource()
	if err != nil {
		return err
	}

	cols := cfg.Plate.Columns
	if cols <= 0 || cols > len(images) {
		cols = len(images)
	}
	rows := (len(images) + cols - 1) / cols
	layout, err := plate.GridLayout(rows, cols, cfg.Plate.PitchRow, cfg.Plate.PitchCol)
	if err != nil {
		return err
	}

	wells := make([]plate.Well, len(images))
	specs := make([]*specimen.Specimen, len(images))
	for i, path := range images {
		img, err := imaging.Open(path)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", path, err)
		}
		field, err := raster.FieldFromImage(img)
		if err != nil {
			return fmt.Errorf("error converting %s: %w", path, err)
		}
		spec, err := specimen.NewImage(filepath.Base(path), field, src,
			specimen.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("error thresholding %s: %w", path, err)
		}
		specs[i] = spec
		wells[i] = plate.Well{ID: layout[i].ID, Offset: layout[i].Offset, Specimen: spec}
	}

	st := plate.NewStitcher(params)
	st.Workers = cfg.Plate.NumCores
	st.Logger = logger

	start := time.Now()
	p, err := st.Stitch(context.Background(), wells)
	if err != nil {
		return err
	}
	log.Info().Dur("elapsed", time.Since(start)).Int("wells", len(wells)).Msg("plate quantified")

	fmt.Println("================================")
	fmt.Printf("%-6s %-24s %8s %8s %-10s\n", "Well", "Image", "Regions", "Plaques", "Mode")
	for i, wr := range p.Wells {
		fmt.Printf("%-6s %-24s %8d %8d %-10s\n",
			wr.ID, specs[i].Name(), wr.Result.Regions(), wr.Result.Total(), wr.Result.PickMode)
	}
	fmt.Println("================================")
	fmt.Printf("Total plaques on plate: %d\n", p.Total())
	if _, spacing := p.NearestNeighbourDistances(); spacing.Max > 0 {
		fmt.Printf("Nearest-neighbour spacing: mean %.2f px (sd %.2f, min %.2f, max %.2f)\n",
			spacing.Mean, spacing.StdDev, spacing.Min, spacing.Max)
	}

	if !cfg.Output.SaveOverlays {
		return nil
	}
	for i, wr := range p.Wells {
		field, _ := specs[i].Image()
		base, err := visualization.FieldImage(field)
		if err != nil {
			return err
		}
		overlay, err := visualization.Overlay(base, wr.Result)
		if err != nil {
			return fmt.Errorf("well %s: %w", wr.ID, err)
		}
		out := filepath.Join(cfg.Output.OverlayDir, fmt.Sprintf("%s_overlay.png", wr.ID))
		if err := visualization.Save(visualization.Upscale(overlay, scale), out); err != nil {
			return err
		}
		log.Debug().Str("well", wr.ID).Str("path", out).Msg("overlay written")
	}
	fmt.Printf("Overlays saved to: %s\n", cfg.Output.OverlayDir)
	return nil
}
