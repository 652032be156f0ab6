package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"charattach/internal/assets"
	"charattach/internal/attachlist"
	"charattach/internal/attachment"
	"charattach/internal/batch"
	"charattach/internal/bmd"
	"charattach/internal/config"
	"charattach/internal/overrides"
	"charattach/internal/skeleton"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.json file")
	dataDir := flag.String("data", "", "Path to base directory (default: auto-detect)")
	listFile := flag.String("list", "", "Attachment list XML (default: Data/Player/attachments.xml)")
	outputDir := flag.String("output", "", "Output directory (default: Data/sim-output)")
	instances := flag.Int("instances", 0, "Number of characters to simulate (default: 1)")
	frames := flag.Int("frames", 0, "Frames per character (default: 120)")
	format := flag.String("format", "", "Snapshot format: webp or tga")
	snapEvery := flag.Int("snapshot-every", -1, "Write a snapshot every N frames (0 disables)")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	verbose := flag.Bool("v", false, "Log attachment manager diagnostics to stderr")

	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *snapEvery >= 0 {
		cfg.SnapshotEvery = *snapEvery
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		DataDir:        *dataDir,
		AttachmentList: *listFile,
		OutputDir:      *outputDir,
		Instances:      *instances,
		Frames:         *frames,
		SnapshotFormat: *format,
		Workers:        *workers,
	})

	if cfg.DataDir == "" {
		fmt.Fprintln(os.Stderr, "Error: cannot find Data directory. Use -data flag or config.json.")
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	attachment.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Load skeleton
	model, err := bmd.Parse(cfg.Skeleton)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading skeleton: %v\n", err)
		os.Exit(1)
	}
	skel, err := skeleton.FromBMD(model.Bones)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building skeleton: %v\n", err)
		os.Exit(1)
	}

	// Load attachment list
	descs, err := attachlist.Parse(cfg.AttachmentList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading attachment list: %v\n", err)
		os.Exit(1)
	}
	if len(descs) == 0 {
		fmt.Println("No attachments to simulate.")
		os.Exit(0)
	}

	// Load overrides
	ovr, err := overrides.Load(cfg.OverridesJSON)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: overrides: %v\n", err)
	}
	fmt.Printf("Overrides: %d rules loaded\n", ovr.Len())

	// Build asset index
	index := assets.BuildIndex(cfg.DataDir)
	loader := assets.NewLoader(assets.NewCache(index))
	fmt.Printf("Assets: %d indexed\n", index.Len())

	fmt.Println("Character attachment simulation")
	fmt.Printf("Skeleton: %s (%d joints)\n", filepath.Base(cfg.Skeleton), skel.JointCount())
	fmt.Printf("Attachments: %d, Characters: %d, Frames: %d, Workers: %d\n",
		len(descs), cfg.Instances, cfg.Frames, cfg.Workers)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	start := time.Now()

	// Run batch
	batchCfg := batch.Config{
		Skeleton:       skel,
		Descs:          descs,
		Loader:         loader,
		Overrides:      ovr,
		Frames:         cfg.Frames,
		FrameRate:      cfg.FrameRate,
		OutputDir:      cfg.OutputDir,
		SnapshotEvery:  cfg.SnapshotEvery,
		SnapshotSize:   cfg.SnapshotSize,
		Supersample:    cfg.Supersample,
		SnapshotFormat: cfg.SnapshotFormat,
		Workers:        cfg.Workers,
		Progress:       true,
	}

	results := batch.Run(batchCfg, batch.Instances(cfg.Instances))

	elapsed := time.Since(start)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", elapsed.Seconds())

	// Count results
	success, failed := 0, 0
	var errs []batch.Result
	for _, r := range results {
		if r.Success {
			success++
		} else {
			failed++
			errs = append(errs, r)
		}
	}

	fmt.Printf("Simulated: %d/%d\n", success, len(results))

	if len(errs) > 0 {
		fmt.Printf("\nFailed (%d):\n", failed)
		limit := 20
		if len(errs) < limit {
			limit = len(errs)
		}
		for _, e := range errs[:limit] {
			fmt.Printf("  %s: %s\n", e.Name, e.Error)
		}
	}

	// Write manifest
	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	os.MkdirAll(cfg.OutputDir, 0755)
	if err := batch.WriteManifest(manifestPath, batch.NewManifest(batchCfg, results)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
