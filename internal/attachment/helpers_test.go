package attachment

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"charattach/internal/mathutil"
	"charattach/internal/skeleton"
)

type fakeObject struct {
	kind      ObjectKind
	radiusSqr float64
	processed int
	released  int
}

func (o *fakeObject) Kind() ObjectKind             { return o.kind }
func (o *fakeObject) RadiusSqr() float64           { return o.radiusSqr }
func (o *fakeObject) ProcessAttachment(Attachment) { o.processed++ }
func (o *fakeObject) Release()                     { o.released++ }

type fakeSkin struct {
	fakeObject
	ready  bool
	joints []string
	verts  []SkinVertex
	tris   [][3]int
}

func (s *fakeSkin) Ready() bool            { return s.ready }
func (s *fakeSkin) JointNames() []string   { return s.joints }
func (s *fakeSkin) Vertices() []SkinVertex { return s.verts }
func (s *fakeSkin) Triangles() [][3]int    { return s.tris }

// plateSkin is a single triangle at z=1 skinned fully to Spine.
func plateSkin() *fakeSkin {
	w := [4]float64{1}
	return &fakeSkin{
		fakeObject: fakeObject{kind: KindSkinMesh, radiusSqr: 4},
		ready:      true,
		joints:     []string{"Spine", "not_in_skeleton"},
		verts: []SkinVertex{
			{Pos: mathutil.Vec3{0, 0, 1}, Weights: w},
			{Pos: mathutil.Vec3{1, 0, 1}, Weights: w},
			{Pos: mathutil.Vec3{0, 1, 1}, Weights: w},
		},
		tris: [][3]int{{0, 1, 2}},
	}
}

func at(x, y, z float64) mathutil.QuatT {
	return mathutil.NewQuatT(mgl64.QuatIdent(), mathutil.Vec3{x, y, z})
}

// testSkeleton is Bip01 > Spine > weapon_bone > weapon_tip, plus extra.
func testSkeleton(t *testing.T, extra ...skeleton.JointDef) *skeleton.Default {
	t.Helper()
	joints := []skeleton.JointDef{
		{Name: "Bip01", Parent: -1, Relative: at(0, 0, 0)},
		{Name: "Spine", Parent: 0, Relative: at(0, 0, 1)},
		{Name: "weapon_bone", Parent: 1, Relative: at(0.5, 0, 0)},
		{Name: "weapon_tip", Parent: 2, Relative: at(0.3, 0, 0)},
	}
	def, err := skeleton.New(append(joints, extra...))
	if err != nil {
		t.Fatalf("skeleton: %v", err)
	}
	return def
}

func testManager(t *testing.T, opts ...Option) (*Manager, *skeleton.Default) {
	t.Helper()
	def := testSkeleton(t)
	return NewManager(def, opts...), def
}

func mustCreate(t *testing.T, m *Manager, name string, typ Type, joint string) Attachment {
	t.Helper()
	a, err := m.CreateAttachment(name, typ, joint, "")
	if err != nil {
		t.Fatalf("CreateAttachment(%q): %v", name, err)
	}
	return a
}

func frame() FrameContext {
	return FrameContext{Dt: 1.0 / 30, Location: mathutil.IdentityTS()}
}
