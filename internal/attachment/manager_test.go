package attachment

import (
	"errors"
	"testing"

	"charattach/internal/mathutil"
)

func TestBoneBucketFollowsPayload(t *testing.T) {
	m, _ := testManager(t)
	a := mustCreate(t, m, "gun01", TypeBone, "weapon_bone")
	obj := &fakeObject{kind: KindStatObj, radiusSqr: 1}
	if err := a.AddBinding(obj); err != nil {
		t.Fatalf("AddBinding: %v", err)
	}
	if got := m.BucketOf(m.GetIndexByName("gun01")); got != BucketBoneStatic {
		t.Errorf("bucket = %v, want bs", got)
	}

	a.ClearBinding()
	if got := m.BucketOf(m.GetIndexByName("GUN01")); got != BucketBoneEmpty {
		t.Errorf("bucket after clear = %v, want be", got)
	}
	if a.Object() != nil {
		t.Error("object should be nil after ClearBinding")
	}
	if obj.released != 1 {
		t.Errorf("released %d times, want 1", obj.released)
	}
	if a.Type().String() != "CA_BONE" || a.IsAttachmentHidden() {
		t.Errorf("type %v hidden %v", a.Type(), a.IsAttachmentHidden())
	}

	if err := a.AddBinding(&fakeObject{kind: KindEffect}); err != nil {
		t.Fatalf("AddBinding effect: %v", err)
	}
	if got := m.BucketOf(m.GetIndexByName("gun01")); got != BucketBoneExecute {
		t.Errorf("bucket with effect = %v, want bx", got)
	}
	if err := a.AddBinding(plateSkin()); !errors.Is(err, ErrIncompatibleObject) {
		t.Errorf("bone accepted a skin: %v", err)
	}
}

func TestCreateAttachmentRejects(t *testing.T) {
	m, _ := testManager(t)
	mustCreate(t, m, "socket", TypeBone, "weapon_bone")
	mustCreate(t, m, "plumless", TypeFace, "")

	tests := []struct {
		name, joint string
		typ         Type
		want        error
	}{
		{"SOCKET", "weapon_bone", TypeBone, ErrNameInUse},
		{"buckeroo", "", TypeFace, ErrNameCRCClash},
		{"sword", "no_such_joint", TypeBone, ErrUnknownJoint},
		{"hair", "hair_x00_", TypeRow, ErrUnknownJoint},
		{"shin", "Spine", TypeProx, ErrTypeMismatch},
		{"", "Spine", TypeBone, ErrEmptyName},
	}
	for _, tt := range tests {
		a, err := m.CreateAttachment(tt.name, tt.typ, tt.joint, "")
		if a != nil || !errors.Is(err, tt.want) {
			t.Errorf("CreateAttachment(%q, %v) = %v, %v; want nil, %v", tt.name, tt.typ, a, err, tt.want)
		}
	}
	if n := m.AttachmentCount(); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestRemoveAndHandles(t *testing.T) {
	m, _ := testManager(t)
	a := mustCreate(t, m, "gun01", TypeBone, "weapon_bone")
	mustCreate(t, m, "gun02", TypeBone, "Spine")
	obj := &fakeObject{kind: KindStatObj}
	a.AddBinding(obj)
	h := a.Handle()

	if m.RemoveAttachmentByName("nonexistent") {
		t.Error("removed an unknown attachment")
	}
	if m.AttachmentCount() != 2 {
		t.Fatalf("count = %d, want 2", m.AttachmentCount())
	}
	if m.GetInterfaceByHandle(h) != a {
		t.Fatal("handle does not resolve")
	}
	if !m.RemoveAttachmentByInterface(a) {
		t.Fatal("RemoveAttachmentByInterface failed")
	}
	if obj.released != 1 {
		t.Errorf("payload released %d times", obj.released)
	}
	if m.GetInterfaceByHandle(h) != nil || m.GetInterfaceByName("gun01") != nil {
		t.Error("removed attachment still resolves")
	}

	b := mustCreate(t, m, "gun03", TypeBone, "weapon_bone")
	if b.Handle().Index != h.Index {
		t.Errorf("slot %d not reused (old %d)", b.Handle().Index, h.Index)
	}
	if m.GetInterfaceByHandle(h) != nil {
		t.Error("stale handle resolves to the slot's new owner")
	}
	if m.GetInterfaceByHandle(b.Handle()) != b {
		t.Error("new handle does not resolve")
	}

	m.RemoveAllAttachments()
	if m.AttachmentCount() != 0 || m.GetInterfaceByIndex(0) != nil {
		t.Error("RemoveAllAttachments left attachments behind")
	}
}

func TestLookupByNameCRC(t *testing.T) {
	m, _ := testManager(t)
	a := mustCreate(t, m, "Weapon_Socket", TypeBone, "weapon_bone")
	if m.GetInterfaceByNameCRC(a.NameCRC()) != a {
		t.Error("lookup by crc failed")
	}
	if m.GetIndexByNameCRC(12345) != -1 {
		t.Error("unknown crc should give -1")
	}
	if !m.RemoveAttachmentByNameCRC(a.NameCRC()) || m.AttachmentCount() != 0 {
		t.Error("remove by crc failed")
	}
}

func TestDefaultsRoundTrip(t *testing.T) {
	m, def := testManager(t)
	a := mustCreate(t, m, "gun01", TypeBone, "weapon_bone").(*BoneAttachment)
	abs := at(0.7, 0.1, 1.2)
	a.SetAttAbsoluteDefault(abs)
	if !a.ProjectAttachment(def) {
		t.Fatal("projection failed")
	}
	jd := def.DefaultAbsolute(2)
	if want := jd.Inverted().Mul(abs); !a.AttRelativeDefault().IsEquivalent(want, 1e-12) {
		t.Errorf("relative default = %+v, want %+v", a.AttRelativeDefault(), want)
	}
	rel := a.AttRelativeDefault()
	if !a.ProjectAttachment(def) || !a.AttRelativeDefault().IsEquivalent(rel, 1e-12) {
		t.Error("projection is not idempotent")
	}

	a.SetAttRelativeDefault(at(0, 0, 0.25))
	if a.Flags()&FlagProjected != 0 || !a.RelativeDefaultPrimary() {
		t.Error("setting the relative default should clear projection")
	}
	a.ProjectAttachment(def)
	if want := jd.Mul(at(0, 0, 0.25)); !a.AttAbsoluteDefault().IsEquivalent(want, 1e-12) {
		t.Errorf("absolute default = %+v, want %+v", a.AttAbsoluteDefault(), want)
	}
}

func TestSecondJointBlendsDefaults(t *testing.T) {
	m, def := testManager(t)
	a, err := m.CreateAttachment("grip", TypeBone, "weapon_bone", "weapon_tip")
	if err != nil {
		t.Fatal(err)
	}
	b := a.(*BoneAttachment)
	b.SetAttAbsoluteDefault(at(0.65, 0, 1))
	if !b.ProjectAttachment(def) {
		t.Fatal("projection failed")
	}
	if !b.AttRelativeDefault().IsEquivalent(mathutil.Identity(), 1e-12) {
		t.Errorf("midpoint relative = %+v, want identity", b.AttRelativeDefault())
	}
	if _, err := m.CreateAttachment("bad", TypeBone, "weapon_bone", "nope"); !errors.Is(err, ErrUnknownJoint) {
		t.Errorf("unknown second joint: %v", err)
	}
}

func TestClassifyMatchesRanges(t *testing.T) {
	m, _ := testManager(t)
	mustCreate(t, m, "a", TypeBone, "Spine").AddBinding(&fakeObject{kind: KindStatObj})
	mustCreate(t, m, "b", TypeFace, "")
	mustCreate(t, m, "c", TypeSkin, "").AddBinding(plateSkin())
	mustCreate(t, m, "d", TypeBone, "weapon_bone")
	mustCreate(t, m, "e", TypeVCloth, "")
	mustCreate(t, m, "f", TypeBone, "weapon_tip").AddBinding(&fakeObject{kind: KindLight})

	m.SortByType()
	for i := 0; i < m.AttachmentCount(); i++ {
		a := m.GetInterfaceByIndex(i)
		if got, want := m.BucketOf(i), Classify(a); got != want {
			t.Errorf("%s at %d in %v, classified %v", a.Name(), i, got, want)
		}
	}
	if s, e := m.BucketRange(BucketBoneEmpty); e-s != 1 {
		t.Errorf("be range [%d,%d)", s, e)
	}
	if s, e := m.BucketRange(BucketRow); e-s != 1 || m.GetInterfaceByIndex(s).Name() != "e" {
		t.Errorf("vc range [%d,%d)", s, e)
	}
}

func TestSwapBinding(t *testing.T) {
	m, _ := testManager(t)
	a := mustCreate(t, m, "a", TypeBone, "Spine")
	b := mustCreate(t, m, "b", TypeBone, "weapon_bone")
	f := mustCreate(t, m, "f", TypeFace, "")
	obj := &fakeObject{kind: KindStatObj}
	a.AddBinding(obj)

	if err := a.SwapBinding(b); err != nil {
		t.Fatal(err)
	}
	if a.Object() != nil || b.Object() != obj || obj.released != 0 {
		t.Error("swap did not move the payload")
	}
	if err := b.SwapBinding(f); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("swap across types: %v", err)
	}
}

func TestReleaseClearsAtZero(t *testing.T) {
	m, _ := testManager(t)
	a := mustCreate(t, m, "a", TypeBone, "Spine")
	obj := &fakeObject{kind: KindStatObj}
	a.AddBinding(obj)
	a.AddRef()
	a.Release()
	if a.Object() == nil {
		t.Fatal("binding cleared while still referenced")
	}
	a.Release()
	if a.Object() != nil || obj.released != 1 {
		t.Error("last release should clear the binding")
	}
}

func TestHideFlags(t *testing.T) {
	m, _ := testManager(t)
	a := mustCreate(t, m, "a", TypeBone, "Spine")
	a.HideAttachment(true)
	if !a.IsAttachmentHidden() || !a.IsAttachmentHiddenInShadow() || !a.IsAttachmentHiddenInRecursion() {
		t.Error("HideAttachment should set every hide bit")
	}
	a.HideInShadow(false)
	if !a.IsAttachmentHidden() || a.IsAttachmentHiddenInShadow() {
		t.Error("HideInShadow touched the wrong bit")
	}
	a.(*BoneAttachment).ProjectAttachment(m.Skeleton())
	a.SetFlags(0)
	if a.Flags()&FlagProjected == 0 {
		t.Error("SetFlags dropped a derived bit")
	}
}
