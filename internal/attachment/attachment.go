package attachment

import (
	"charattach/internal/mathutil"
	"charattach/internal/proxy"
)

// Attachment is the common surface of every attachment variant. The set of
// implementations is closed: BoneAttachment, FaceAttachment, SkinAttachment,
// RowAttachment and VClothAttachment.
type Attachment interface {
	Handle() Handle
	Name() string
	NameCRC() uint32
	Type() Type

	AddRef()
	Release()

	AddBinding(obj Object) error
	ClearBinding()
	SwapBinding(other Attachment) error
	Object() Object

	Flags() Flags
	SetFlags(f Flags)
	HideAttachment(hide bool)
	IsAttachmentHidden() bool
	HideInRecursion(hide bool)
	IsAttachmentHiddenInRecursion() bool
	HideInShadow(hide bool)
	IsAttachmentHiddenInShadow() bool

	SetAttAbsoluteDefault(qt mathutil.QuatT)
	AttAbsoluteDefault() mathutil.QuatT
	SetAttRelativeDefault(qt mathutil.QuatT)
	AttRelativeDefault() mathutil.QuatT
	RelativeDefaultPrimary() bool
	AttModelRelative() mathutil.QuatT
	AttWorldAbsolute() mathutil.QuatT
	UpdateAttModelRelative()
	AdditionalTransformation() mathutil.QuatT

	Serialize() Record

	core() *base
}

// base carries the state shared by all variants.
type base struct {
	mgr    *Manager
	handle Handle
	name   string
	crc    uint32
	typ    Type
	refs   int

	obj   Object
	flags Flags

	absDefault mathutil.QuatT
	relDefault mathutil.QuatT
	relPrimary bool
	modelRel   mathutil.QuatT
	add        mathutil.QuatT

	jointName string
	jointID   int
}

func newBase(name string, typ Type, joint string) base {
	return base{
		name:       name,
		crc:        proxy.NameCRC(name),
		typ:        typ,
		refs:       1,
		absDefault: mathutil.Identity(),
		relDefault: mathutil.Identity(),
		modelRel:   mathutil.Identity(),
		add:        mathutil.Identity(),
		jointName:  joint,
		jointID:    -1,
	}
}

func (b *base) core() *base       { return b }
func (b *base) Handle() Handle    { return b.handle }
func (b *base) Name() string      { return b.name }
func (b *base) NameCRC() uint32   { return b.crc }
func (b *base) Type() Type        { return b.typ }
func (b *base) Object() Object    { return b.obj }
func (b *base) Flags() Flags      { return b.flags }
func (b *base) JointName() string { return b.jointName }

// JointID is the resolved joint, -1 while unprojected.
func (b *base) JointID() int { return b.jointID }

func (b *base) AddRef() { b.refs++ }

// Release drops one reference. The last release clears the binding.
func (b *base) Release() {
	if b.refs <= 0 {
		return
	}
	b.refs--
	if b.refs == 0 {
		b.clear()
	}
}

// invalidate marks the manager's bucket partition stale.
func (b *base) invalidate() {
	if b.mgr != nil {
		b.mgr.touch()
	}
}

func (b *base) bind(obj Object) {
	if b.obj == obj {
		return
	}
	b.clear()
	b.obj = obj
	b.invalidate()
}

func (b *base) clear() {
	if b.obj == nil {
		return
	}
	obj := b.obj
	b.obj = nil
	b.flags &^= FlagVisible
	obj.Release()
	b.invalidate()
}

func (b *base) ClearBinding() { b.clear() }

// SwapBinding exchanges payloads with another attachment of the same variant
// without releasing either.
func (b *base) SwapBinding(other Attachment) error {
	if other == nil {
		return ErrTypeMismatch
	}
	o := other.core()
	if o.typ != b.typ {
		return ErrTypeMismatch
	}
	if o == b {
		return nil
	}
	b.obj, o.obj = o.obj, b.obj
	b.invalidate()
	o.invalidate()
	return nil
}

// SetFlags replaces the authored flags. Derived bits are kept.
func (b *base) SetFlags(f Flags) {
	b.flags = (b.flags & derivedFlags) | (f &^ derivedFlags)
}

func (b *base) setBit(bit Flags, on bool) {
	if on {
		b.flags |= bit
	} else {
		b.flags &^= bit
	}
}

func (b *base) HideAttachment(hide bool)  { b.setBit(FlagHideAttachment, hide) }
func (b *base) IsAttachmentHidden() bool  { return b.flags&FlagHideMainPass != 0 }
func (b *base) HideInRecursion(hide bool) { b.setBit(FlagHideRecursion, hide) }
func (b *base) IsAttachmentHiddenInRecursion() bool {
	return b.flags&FlagHideRecursion != 0
}
func (b *base) HideInShadow(hide bool) { b.setBit(FlagHideShadowPass, hide) }
func (b *base) IsAttachmentHiddenInShadow() bool {
	return b.flags&FlagHideShadowPass != 0
}

// SetAttAbsoluteDefault makes the model-space default primary; the joint
// relative default is derived on the next projection.
func (b *base) SetAttAbsoluteDefault(qt mathutil.QuatT) {
	b.absDefault = qt
	b.relPrimary = false
	b.flags &^= FlagProjected
}

func (b *base) AttAbsoluteDefault() mathutil.QuatT { return b.absDefault }

// SetAttRelativeDefault makes the joint-relative default primary.
func (b *base) SetAttRelativeDefault(qt mathutil.QuatT) {
	b.relDefault = qt
	b.relPrimary = true
	b.flags &^= FlagProjected
}

func (b *base) AttRelativeDefault() mathutil.QuatT       { return b.relDefault }
func (b *base) RelativeDefaultPrimary() bool             { return b.relPrimary }
func (b *base) AttModelRelative() mathutil.QuatT         { return b.modelRel }
func (b *base) AdditionalTransformation() mathutil.QuatT { return b.add }

// AttWorldAbsolute places the attachment, including its simulation
// correction, in the world.
func (b *base) AttWorldAbsolute() mathutil.QuatT {
	m := b.modelRel.Mul(b.add)
	if b.mgr == nil {
		return m
	}
	return b.mgr.location.MulQuatT(m)
}

func (b *base) Serialize() Record {
	return Record{Name: b.name, Hidden: b.IsAttachmentHidden()}
}

func (b *base) projected() bool { return b.flags&FlagProjected != 0 }

// resolveDefaults derives whichever default is not primary from the joint's
// default absolute transform.
func (b *base) resolveDefaults(jointDefAbs mathutil.QuatT) {
	if b.relPrimary {
		b.absDefault = jointDefAbs.Mul(b.relDefault)
	} else {
		b.relDefault = jointDefAbs.Inverted().Mul(b.absDefault)
	}
}
