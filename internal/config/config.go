// Package config loads simulation run settings from JSON and overlays CLI
// flags on top of them.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Config holds all configurable paths and run settings.
type Config struct {
	// Paths
	DataDir        string `json:"data_dir"`
	Skeleton       string `json:"skeleton"`        // BMD model whose bones form the skeleton
	AttachmentList string `json:"attachment_list"` // XML attachment list
	OverridesJSON  string `json:"overrides_json"`
	OutputDir      string `json:"output_dir"`

	// Simulation
	Instances int     `json:"instances"`
	Frames    int     `json:"frames"`
	FrameRate float64 `json:"frame_rate"`

	// Snapshots
	SnapshotEvery  int    `json:"snapshot_every"` // 0 disables snapshots
	SnapshotSize   int    `json:"snapshot_size"`
	Supersample    int    `json:"supersample"`
	SnapshotFormat string `json:"snapshot_format"` // "webp" or "tga"

	Workers int `json:"workers"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	DataDir        string
	AttachmentList string
	OutputDir      string
	Instances      int
	Frames         int
	SnapshotFormat string
	Workers        int
}

// Resolve fills in any empty fields with auto-detected defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	if flags.DataDir != "" {
		c.DataDir = flags.DataDir
	}
	if flags.AttachmentList != "" {
		c.AttachmentList = flags.AttachmentList
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Instances > 0 {
		c.Instances = flags.Instances
	}
	if flags.Frames > 0 {
		c.Frames = flags.Frames
	}
	if flags.SnapshotFormat != "" {
		c.SnapshotFormat = flags.SnapshotFormat
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}

	if c.DataDir == "" {
		c.DataDir = detectDataDir()
	}

	// Resolve relative paths against the data dir
	if c.DataDir != "" {
		c.Skeleton = under(c.DataDir, c.Skeleton, filepath.Join("Player", "player.bmd"))
		c.AttachmentList = under(c.DataDir, c.AttachmentList, filepath.Join("Player", "attachments.xml"))
		c.OverridesJSON = under(c.DataDir, c.OverridesJSON, "overrides.json")
		c.OutputDir = under(c.DataDir, c.OutputDir, "sim-output")
	}

	if c.Instances <= 0 {
		c.Instances = 1
	}
	if c.Frames <= 0 {
		c.Frames = 120
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 30
	}
	if c.SnapshotEvery < 0 {
		c.SnapshotEvery = 0
	}
	if c.SnapshotSize <= 0 {
		c.SnapshotSize = 256
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	c.SnapshotFormat = strings.ToLower(c.SnapshotFormat)
	if c.SnapshotFormat != "tga" {
		c.SnapshotFormat = "webp"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

func under(base, p, def string) string {
	if p == "" {
		return filepath.Join(base, def)
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func detectDataDir() string {
	var bases []string
	if exe, _ := os.Executable(); exe != "" {
		dir := filepath.Dir(exe)
		bases = append(bases, dir, filepath.Dir(dir), filepath.Join(dir, "..", ".."))
	}
	if cwd, _ := os.Getwd(); cwd != "" {
		bases = append(bases, cwd, filepath.Dir(cwd))
	}
	for _, base := range bases {
		data := filepath.Join(base, "Data")
		if info, err := os.Stat(data); err == nil && info.IsDir() {
			return data
		}
	}
	return ""
}
