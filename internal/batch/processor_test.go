package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"charattach/internal/attachlist"
	"charattach/internal/mathutil"
	"charattach/internal/skeleton"
)

const list = `<AttachmentList>
  <Attachment Type="CA_BONE" AName="tail" BoneName="Tail"
    Rotation="1,0,0,0" Position="0,-0.3,1"
    PA_PendulumType="1" PA_FPS="30" PA_MaxAngle="40" PA_SimulationAxis="0,-0.5,0"/>
  <Attachment Type="CA_PROX" AName="hips" BoneName="Bip01" Rotation="1,0,0,0" Position="0,0,1"
    ProxyParams="0.1,0.2,0,0.15" ProxyPurpose="1"/>
</AttachmentList>`

func testConfig(t *testing.T) Config {
	t.Helper()
	at := func(x, y, z float64) mathutil.QuatT { return mathutil.NewQuatT(mgl64.QuatIdent(), mathutil.Vec3{x, y, z}) }
	def, err := skeleton.New([]skeleton.JointDef{
		{Name: "Bip01", Parent: -1, Relative: at(0, 0, 1)},
		{Name: "Tail", Parent: 0, Relative: at(0, -0.3, 0)},
	})
	if err != nil {
		t.Fatal(err)
	}
	descs, err := attachlist.Decode(strings.NewReader(list))
	if err != nil {
		t.Fatal(err)
	}
	return Config{
		Skeleton:       def,
		Descs:          descs,
		Frames:         12,
		FrameRate:      30,
		OutputDir:      t.TempDir(),
		SnapshotSize:   16,
		Supersample:    1,
		SnapshotFormat: "tga",
		Workers:        2,
	}
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.SnapshotEvery = 6
	results := Run(cfg, Instances(3))
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	for i, r := range results {
		if !r.Success {
			t.Fatalf("%s failed: %s", r.Name, r.Error)
		}
		if r.Name != Instances(3)[i].Name || r.Frames != 12 {
			t.Errorf("result %d = %+v", i, r)
		}
		if r.Attachments != 1 || r.Proxies != 1 {
			t.Errorf("%s: %d attachments %d proxies", r.Name, r.Attachments, r.Proxies)
		}
		if len(r.Snapshots) != 2 {
			t.Fatalf("%s snapshots = %v", r.Name, r.Snapshots)
		}
		for _, s := range r.Snapshots {
			if _, err := os.Stat(filepath.Join(cfg.OutputDir, filepath.FromSlash(s))); err != nil {
				t.Error(err)
			}
		}
	}
	if want := "char_001/0006.tga"; results[1].Snapshots[0] != want {
		t.Errorf("snapshot path %q, want %q", results[1].Snapshots[0], want)
	}
}

func TestRunWebp(t *testing.T) {
	cfg := testConfig(t)
	cfg.SnapshotEvery = 12
	cfg.SnapshotFormat = "webp"
	r := Run(cfg, Instances(1))[0]
	if !r.Success || len(r.Snapshots) != 1 || !strings.HasSuffix(r.Snapshots[0], ".webp") {
		t.Fatalf("result = %+v", r)
	}
}

func TestRunWithoutSkeleton(t *testing.T) {
	cfg := testConfig(t)
	cfg.Skeleton = nil
	r := Run(cfg, Instances(1))[0]
	if r.Success || r.Error == "" {
		t.Errorf("expected failure, got %+v", r)
	}
}

func TestCustomMotion(t *testing.T) {
	cfg := testConfig(t)
	calls := 0
	cfg.Workers = 1
	cfg.Motion = func(inst Instance, tm float64) (mathutil.QuatTS, mathutil.QuatT) {
		calls++
		return mathutil.IdentityTS(), mathutil.Identity()
	}
	Run(cfg, Instances(2))
	if calls != 24 {
		t.Errorf("motion called %d times, want 24", calls)
	}
}

func TestWriteManifest(t *testing.T) {
	cfg := testConfig(t)
	results := []Result{
		{Name: "a", Frames: 12, Success: true},
		{Name: "b", Error: "no skeleton"},
	}
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := WriteManifest(path, NewManifest(cfg, results)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var back Manifest
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Succeeded != 1 || back.Failed != 1 || len(back.Characters) != 2 || back.Frames != 12 {
		t.Errorf("manifest = %+v", back)
	}
	if back.Characters[1].Error != "no skeleton" {
		t.Errorf("error lost: %+v", back.Characters[1])
	}
}
