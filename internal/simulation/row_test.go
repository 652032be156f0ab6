package simulation

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"charattach/internal/mathutil"
	"charattach/internal/skeleton"
)

func skirtSkeleton(t *testing.T) *skeleton.Default {
	t.Helper()
	at := func(x, y, z float64) mathutil.QuatT { return mathutil.NewQuatT(mgl64.QuatIdent(), mathutil.Vec3{x, y, z}) }
	def, err := skeleton.New([]skeleton.JointDef{
		{Name: "Bip01 Pelvis", Parent: -1, Relative: at(0, 0, 1)},
		{Name: "skirt_x00_y00", Parent: 0, Relative: at(0.2, 0, 0)},
		{Name: "skirt_x00_y01", Parent: 1, Relative: at(0, 0, -0.3)},
		{Name: "skirt_x01_y00", Parent: 0, Relative: at(0, 0.2, 0)},
		{Name: "skirt_x01_y01", Parent: 3, Relative: at(0, 0, -0.3)},
		{Name: "skirt_x02_y00", Parent: 0, Relative: at(-0.2, 0, 0)},
	})
	if err != nil {
		t.Fatalf("skeleton: %v", err)
	}
	return def
}

func TestRowJointNames(t *testing.T) {
	names := RowJointNames("skirt_x00_y00")
	if len(names) != 100 {
		t.Fatalf("len = %d", len(names))
	}
	if names[1] != "skirt_x01_y00" || names[42] != "skirt_x42_y00" {
		t.Errorf("names[1]=%q names[42]=%q", names[1], names[42])
	}
	if RowJointNames("hair_01") != nil {
		t.Error("name without marker should yield nil")
	}
}

func TestRowBuild(t *testing.T) {
	def := skirtSkeleton(t)
	var r PendulaRow
	if err := r.Build(def, "skirt_x00_y00"); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(r.Particles) != 3 {
		t.Fatalf("particles = %d, want 3", len(r.Particles))
	}
	p0, p2 := r.Particles[0], r.Particles[2]
	if p0.JointID != 1 || p0.ChildID != 2 {
		t.Errorf("particle 0 = %+v", p0)
	}
	if !almostEqual(p0.Distance[1], 0.3, 1e-12) {
		t.Errorf("rod length = %v, want 0.3", p0.Distance[1])
	}
	if p2.ChildID != -1 || p2.Distance[1] != DefaultRodLength {
		t.Errorf("childless particle = %+v", p2)
	}
	// Probe points (0.2,0,0.7) and (0,0.2,0.7): horizontal spacing 0.2*sqrt2.
	if !almostEqual(p0.Distance[0], 0.2*math.Sqrt2, 1e-12) {
		t.Errorf("spacing = %v", p0.Distance[0])
	}
	if len(r.refresh) != 2 || r.refresh[0] != 2 || r.refresh[1] != 4 {
		t.Errorf("refresh = %v, want [2 4]", r.refresh)
	}

	if err := r.Build(def, "cape_x00_"); err == nil {
		t.Error("expected error for unknown row")
	}
}

func TestRowRestsWithoutForces(t *testing.T) {
	def := skirtSkeleton(t)
	r := PendulaRow{Params: DefaultRowParams()}
	r.Params.Gravity = 0
	if err := r.Build(def, "skirt_x00_y00"); err != nil {
		t.Fatalf("Build: %v", err)
	}
	pose := skeleton.NewPose(def)
	in := RowInput{Location: mathutil.IdentityTS(), Dt: 1.0 / 30}
	for i := 0; i < 30; i++ {
		pose.Reset()
		r.Update(pose, in)
	}
	for id := 0; id < def.JointCount(); id++ {
		if !pose.JointAbsolute(id).IsEquivalent(def.DefaultAbsolute(id), 1e-9) {
			t.Errorf("joint %d moved: %+v", id, pose.JointAbsolute(id))
		}
	}
}

func TestRowSwingsWithinCone(t *testing.T) {
	def := skirtSkeleton(t)
	r := PendulaRow{Params: DefaultRowParams()}
	r.Params.ConeAngle = 20
	r.Params.Turbulence = mathutil.Vec2{5, 3}
	if err := r.Build(def, "skirt_x00_y00"); err != nil {
		t.Fatalf("Build: %v", err)
	}
	pose := skeleton.NewPose(def)
	// Character tipped sideways: gravity pulls the rods off their rest axis.
	in := RowInput{
		Location: mathutil.QuatTS{Q: mgl64.QuatRotate(1.2, mathutil.Vec3{1, 0, 0}), S: 1},
		Dt:       1.0 / 30,
	}
	var st RowState
	for i := 0; i < 60; i++ {
		pose.Reset()
		in.Turbulence += math.Pi * in.Dt
		st = r.Update(pose, in)
	}
	if len(st.Particles) != 3 {
		t.Fatalf("state particles = %d", len(st.Particles))
	}
	for i, ps := range st.Particles {
		rest := def.DefaultAbsolute(ps.JointID).Q.Rotate(r.Particles[i].childDir)
		a := mathutil.AngleBetween(rest, ps.Bob.Sub(ps.Pivot))
		if a > mathutil.Deg2Rad(20)+1e-6 {
			t.Errorf("particle %d at %v deg, cone is 20", i, mathutil.Rad2Deg(a))
		}
		if !mathutil.IsFinite(ps.Bob) {
			t.Fatalf("particle %d not finite", i)
		}
	}
	// Child joints follow their rotated parents.
	child := pose.JointAbsolute(2).T
	bob := st.Particles[0].Bob
	if !vec3AlmostEqual(child, bob, 1e-9) {
		t.Errorf("child joint %v, particle bob %v", child, bob)
	}
}

func TestRowDisabledSnaps(t *testing.T) {
	def := skirtSkeleton(t)
	r := PendulaRow{Params: DefaultRowParams()}
	if err := r.Build(def, "skirt_x00_y00"); err != nil {
		t.Fatalf("Build: %v", err)
	}
	pose := skeleton.NewPose(def)
	r.Update(pose, RowInput{Location: mathutil.IdentityTS(), Dt: 0.1, Disabled: true})
	if !pose.JointAbsolute(1).IsEquivalent(def.DefaultAbsolute(1), 0) {
		t.Error("disabled row changed the pose")
	}
}

func xyDistance(a, b mathutil.Vec3) float64 {
	d := b.Sub(a)
	d[2] = 0
	return d.Len()
}

func TestRowCycleClosesRing(t *testing.T) {
	def := skirtSkeleton(t)
	for _, cycle := range []bool{false, true} {
		r := PendulaRow{Params: DefaultRowParams()}
		r.Params.Cycle = cycle
		if err := r.Build(def, "skirt_x00_y00"); err != nil {
			t.Fatalf("Build: %v", err)
		}
		r.Particles[0].pos = mathutil.Vec3{0.6, 0, 0.7}
		r.Particles[1].pos = mathutil.Vec3{0, 0.2, 0.7}
		r.Particles[2].pos = mathutil.Vec3{-0.13, 0, 1}
		r.relax()

		last := r.Particles[2]
		limit := last.Distance[0] * (1 + r.Params.Stretch)
		got := xyDistance(last.pos, r.Particles[0].pos)
		if cycle && got > limit+1e-9 {
			t.Errorf("cyclic ring: last-to-first spacing %v exceeds %v", got, limit)
		}
		if !cycle && got <= limit {
			t.Errorf("open row pulled its ends together: spacing %v", got)
		}
	}
}

func TestRowWorldSpaceDampingLags(t *testing.T) {
	def := skirtSkeleton(t)
	bobX := func(w float64) float64 {
		r := PendulaRow{Params: DefaultRowParams()}
		r.Params.Gravity = 0
		r.Params.ConeAngle = 80
		r.Params.WorldSpaceDamping = w
		if err := r.Build(def, "skirt_x00_y00"); err != nil {
			t.Fatalf("Build: %v", err)
		}
		pose := skeleton.NewPose(def)
		in := RowInput{Location: mathutil.IdentityTS(), Dt: 1.0 / 30}
		r.Update(pose, in)
		in.Location.T = mathutil.Vec3{0.5, 0, 0}
		pose.Reset()
		return r.Update(pose, in).Particles[0].Bob[0]
	}
	rest := 0.2
	if got := bobX(0); !almostEqual(got, rest, 1e-9) {
		t.Errorf("undamped row moved with the character: bob x = %v, want %v", got, rest)
	}
	if got := bobX(1); got > rest-0.05 {
		t.Errorf("damped row did not lag behind: bob x = %v", got)
	}
}
