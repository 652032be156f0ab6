package attachment

import (
	"testing"

	"charattach/internal/mathutil"
	"charattach/internal/skeleton"
)

func TestSkinRemapTable(t *testing.T) {
	m, _ := testManager(t)
	s := mustCreate(t, m, "body", TypeSkin, "").(*SkinAttachment)
	if err := s.AddBinding(&fakeObject{kind: KindStatObj}); err == nil {
		t.Error("skin accepted a static object")
	}
	s.AddBinding(plateSkin())
	got := s.RemapTable()
	if len(got) != 2 || got[0] != 1 || got[1] != -1 {
		t.Errorf("remap = %v, want [1 -1]", got)
	}
	s.ClearBinding()
	if len(s.RemapTable()) != 0 {
		t.Error("remap kept after clearing")
	}
}

func TestSkinSwapBindingRemaps(t *testing.T) {
	m, _ := testManager(t)
	s1 := mustCreate(t, m, "body", TypeSkin, "").(*SkinAttachment)
	s2 := mustCreate(t, m, "gloves", TypeSkin, "").(*SkinAttachment)
	s1.AddBinding(plateSkin())
	tip := plateSkin()
	tip.joints = []string{"weapon_tip"}
	s2.AddBinding(tip)

	if err := s1.SwapBinding(s2); err != nil {
		t.Fatal(err)
	}
	if s1.Object() != Object(tip) {
		t.Fatal("payloads not swapped")
	}
	if got := s1.RemapTable(); len(got) != 1 || got[0] != 3 {
		t.Errorf("body remap = %v, want [3]", got)
	}
	if got := s2.RemapTable(); len(got) != 2 || got[0] != 1 || got[1] != -1 {
		t.Errorf("gloves remap = %v, want [1 -1]", got)
	}
	if s1.Flags()&FlagProjected == 0 || s2.Flags()&FlagProjected == 0 {
		t.Error("remap tables should be current after the swap")
	}
}

func TestFaceProjectsOntoClosestTriangle(t *testing.T) {
	m, def := testManager(t)
	skin := plateSkin()
	mustCreate(t, m, "body", TypeSkin, "").AddBinding(skin)
	f := mustCreate(t, m, "badge", TypeFace, "").(*FaceAttachment)
	f.SetAttAbsoluteDefault(at(0.2, 0.2, 1.5))

	skin.ready = false
	if f.ProjectAttachment() {
		t.Fatal("projected onto a skin that is still streaming")
	}
	skin.ready = true
	if !f.ProjectAttachment() {
		t.Fatal("projection failed")
	}
	if h, tri := f.Triangle(); tri != 0 || m.GetInterfaceByHandle(h).Name() != "body" {
		t.Errorf("bound to %+v tri %d", h, tri)
	}
	if f.JointID() != 0 {
		t.Errorf("joint id = %d, want the triangle index", f.JointID())
	}
	centroid := mathutil.Vec3{1.0 / 3, 1.0 / 3, 1}
	if want := (mathutil.Vec3{0.2, 0.2, 1.5}).Sub(centroid); !f.AttRelativeDefault().T.ApproxEqualThreshold(want, 1e-9) {
		t.Errorf("relative offset = %v, want %v", f.AttRelativeDefault().T, want)
	}

	pose := skeleton.NewPose(def)
	pose.SetJointRelative(0, at(0, 0, 2))
	m.Update(pose, frame())
	if want := (mathutil.Vec3{0.2, 0.2, 3.5}); !f.AttModelRelative().T.ApproxEqualThreshold(want, 1e-9) {
		t.Errorf("face follows skin to %v, want %v", f.AttModelRelative().T, want)
	}
}

func TestFaceSkipsHiddenSkins(t *testing.T) {
	m, _ := testManager(t)
	s := mustCreate(t, m, "body", TypeSkin, "")
	s.AddBinding(plateSkin())
	s.HideAttachment(true)
	f := mustCreate(t, m, "badge", TypeFace, "").(*FaceAttachment)
	if f.ProjectAttachment() {
		t.Error("projected onto a hidden skin")
	}
}

func TestFaceLosesSkin(t *testing.T) {
	m, def := testManager(t)
	mustCreate(t, m, "body", TypeSkin, "").AddBinding(plateSkin())
	f := mustCreate(t, m, "badge", TypeFace, "").(*FaceAttachment)
	if m.ProjectAllAttachments() != 2 {
		t.Fatal("expected skin and face to project")
	}
	m.RemoveAttachmentByName("body")
	m.Update(skeleton.NewPose(def), frame())
	if f.Flags()&FlagProjected != 0 {
		t.Error("face still projected after its skin was removed")
	}
}

func TestClosestOnTriangle(t *testing.T) {
	a, b, c := toR3(mathutil.Vec3{0, 0, 0}), toR3(mathutil.Vec3{1, 0, 0}), toR3(mathutil.Vec3{0, 1, 0})
	tests := []struct {
		p, want mathutil.Vec3
	}{
		{mathutil.Vec3{0.2, 0.2, 1}, mathutil.Vec3{0.2, 0.2, 0}},
		{mathutil.Vec3{-1, -1, 0}, mathutil.Vec3{0, 0, 0}},
		{mathutil.Vec3{2, -0.5, 0}, mathutil.Vec3{1, 0, 0}},
		{mathutil.Vec3{0.5, -1, 0}, mathutil.Vec3{0.5, 0, 0}},
		{mathutil.Vec3{1, 1, 0}, mathutil.Vec3{0.5, 0.5, 0}},
	}
	for _, tt := range tests {
		if got := fromR3(closestOnTriangle(toR3(tt.p), a, b, c)); !got.ApproxEqualThreshold(tt.want, 1e-12) {
			t.Errorf("closest(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
