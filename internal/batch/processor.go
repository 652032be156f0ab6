// Package batch simulates many character instances in parallel, one
// attachment manager per instance, and writes their snapshots.
package batch

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"charattach/internal/attachlist"
	"charattach/internal/attachment"
	"charattach/internal/diag"
	"charattach/internal/mathutil"
	"charattach/internal/overrides"
	"charattach/internal/skeleton"
)

// Config holds all shared resources for a batch run. Everything in it is
// read-only while Run executes.
type Config struct {
	Skeleton  *skeleton.Default
	Descs     []attachlist.Desc
	Loader    attachment.ObjectLoader
	Overrides *overrides.Set
	Motion    Motion

	Frames    int
	FrameRate float64

	OutputDir      string
	SnapshotEvery  int // 0 disables snapshots
	SnapshotSize   int
	Supersample    int
	SnapshotFormat string

	Workers  int
	Progress bool // print a progress line every two seconds
}

// Instance is one simulated character.
type Instance struct {
	Name      string
	Phase     float64 // radians
	Amplitude float64 // metres of sway
}

// Instances returns n instances with staggered phases.
func Instances(n int) []Instance {
	out := make([]Instance, n)
	for i := range out {
		out[i] = Instance{
			Name:      fmt.Sprintf("char_%03d", i),
			Phase:     float64(i) * 0.37,
			Amplitude: 0.5 + 0.1*float64(i%5),
		}
	}
	return out
}

// Motion returns the world location of the character and the relative
// transform of its root joint at time t.
type Motion func(inst Instance, t float64) (mathutil.QuatTS, mathutil.QuatT)

// SwayMotion moves the character side to side along x while it turns about
// the vertical axis.
func SwayMotion(inst Instance, t float64) (mathutil.QuatTS, mathutil.QuatT) {
	w := 2 * math.Pi * 0.8
	loc := mathutil.IdentityTS()
	loc.T = mathutil.Vec3{inst.Amplitude * math.Sin(w*t+inst.Phase), 0, 0}
	yaw := 0.4 * math.Sin(w*0.5*t+inst.Phase)
	root := mathutil.NewQuatT(mgl64.QuatRotate(yaw, mathutil.Vec3{0, 0, 1}), mathutil.Vec3{})
	return loc, root
}

// Result holds the outcome of simulating one instance.
type Result struct {
	Name        string      `json:"name"`
	Attachments int         `json:"attachments"`
	Proxies     int         `json:"proxies"`
	Frames      int         `json:"frames"`
	Drawn       int         `json:"drawn_last_frame"`
	Snapshots   []string    `json:"snapshots,omitempty"`
	Stats       []diag.Stat `json:"stats,omitempty"`
	Success     bool        `json:"success"`
	Error       string      `json:"error,omitempty"`
}

// Run simulates all instances using a worker pool.
func Run(cfg Config, instances []Instance) []Result {
	total := len(instances)
	results := make([]Result, total)
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	if cfg.Progress {
		go func() {
			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					p := processed.Load()
					if p > 0 {
						elapsed := time.Since(start).Seconds()
						rate := float64(p) / elapsed
						fmt.Printf("  [%d/%d] %.1f characters/sec\n", p, total, rate)
					}
				}
			}
		}()
	}

	// Worker pool
	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = simulate(cfg, instances[idx])
				processed.Add(1)
			}
		}()
	}

	for i := range instances {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(done)

	return results
}

type countingSink struct{ n int }

func (s *countingSink) RenderAttachment(attachment.Attachment, attachment.Object, mathutil.QuatT) {
	s.n++
}

func simulate(cfg Config, inst Instance) Result {
	res := Result{Name: inst.Name}
	if cfg.Skeleton == nil {
		res.Error = "no skeleton"
		return res
	}
	motion := cfg.Motion
	if motion == nil {
		motion = SwayMotion
	}
	rate := cfg.FrameRate
	if rate <= 0 {
		rate = 30
	}
	dt := 1 / rate

	rec := diag.NewRecorder()
	m := attachment.NewManager(cfg.Skeleton, attachment.WithObjectLoader(cfg.Loader), attachment.WithObserver(rec))
	m.InitAttachmentList(append([]attachlist.Desc(nil), cfg.Descs...))
	cfg.Overrides.Apply(m)
	res.Attachments = m.AttachmentCount()
	res.Proxies = m.ProxyCount()

	pose := skeleton.NewPose(cfg.Skeleton)
	dp := attachment.DrawParams{Distance: 4, FOV: math.Pi / 3, CharacterRadiusSqr: 4}
	for f := 1; f <= cfg.Frames; f++ {
		loc, root := motion(inst, float64(f)*dt)
		pose.Reset()
		if pose.JointCount() > 0 {
			pose.SetJointRelative(0, root.Mul(cfg.Skeleton.DefaultRelative(0)))
		}
		m.Update(pose, attachment.FrameContext{Dt: dt, Location: loc})

		sink := &countingSink{}
		m.DrawAttachments(dp, sink)
		res.Drawn = sink.n
		res.Frames = f

		if cfg.SnapshotEvery > 0 && f%cfg.SnapshotEvery == 0 {
			path, err := writeSnapshot(cfg, inst, f, m, pose, rec)
			if err != nil {
				res.Error = err.Error()
				return res
			}
			res.Snapshots = append(res.Snapshots, path)
		}
	}
	res.Stats = rec.Stats()
	res.Success = true
	return res
}

func writeSnapshot(cfg Config, inst Instance, frame int, m *attachment.Manager, pose *skeleton.Pose, rec *diag.Recorder) (string, error) {
	rel := filepath.Join(inst.Name, fmt.Sprintf("%04d%s", frame, diag.Ext(cfg.SnapshotFormat)))
	outPath := filepath.Join(cfg.OutputDir, rel)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return "", err
	}

	size := cfg.SnapshotSize
	if size <= 0 {
		size = 256
	}
	img := diag.Render(diag.Scene(m, pose, rec), size, cfg.Supersample)

	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := diag.Encode(f, img, cfg.SnapshotFormat); err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
