package batch

import (
	"encoding/json"
	"os"
	"time"
)

// Manifest is the summary written next to the snapshots.
type Manifest struct {
	Generated  time.Time `json:"generated"`
	Frames     int       `json:"frames"`
	FrameRate  float64   `json:"frame_rate"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Characters []Result  `json:"characters"`
}

// NewManifest summarizes results.
func NewManifest(cfg Config, results []Result) Manifest {
	m := Manifest{
		Generated:  time.Now().UTC(),
		Frames:     cfg.Frames,
		FrameRate:  cfg.FrameRate,
		Characters: results,
	}
	for _, r := range results {
		if r.Success {
			m.Succeeded++
		} else {
			m.Failed++
		}
	}
	return m
}

// WriteManifest writes manifest.json to path.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
