package attachment

import "charattach/internal/skeleton"

// SkinAttachment deforms a skin mesh with the character skeleton.
type SkinAttachment struct {
	base
	remap []int // skin joint index -> skeleton joint id
}

func newSkin(name string) *SkinAttachment {
	return &SkinAttachment{base: newBase(name, TypeSkin, "")}
}

// AddBinding accepts skin meshes only and rebuilds the remap table.
func (a *SkinAttachment) AddBinding(obj Object) error {
	if obj == nil {
		a.clear()
		a.remap = nil
		return nil
	}
	if obj.Kind() != KindSkinMesh {
		return ErrIncompatibleObject
	}
	a.bind(obj)
	if a.mgr != nil {
		a.UpdateRemapTable(a.mgr.skel)
	}
	return nil
}

func (a *SkinAttachment) ClearBinding() {
	a.clear()
	a.remap = nil
}

// SwapBinding exchanges meshes with another skin attachment. Both remap
// tables follow their new meshes.
func (a *SkinAttachment) SwapBinding(other Attachment) error {
	if err := a.base.SwapBinding(other); err != nil {
		return err
	}
	o, ok := other.(*SkinAttachment)
	if !ok {
		return nil
	}
	for _, s := range []*SkinAttachment{a, o} {
		s.flags &^= FlagProjected
		s.remap = s.remap[:0]
		if s.mgr != nil && s.obj != nil {
			s.UpdateRemapTable(s.mgr.skel)
		}
	}
	return nil
}

func (a *SkinAttachment) source() SkinSource {
	src, _ := a.obj.(SkinSource)
	return src
}

// UpdateRemapTable maps the skin's joint names onto def. Names the skeleton
// lacks map to -1.
func (a *SkinAttachment) UpdateRemapTable(def *skeleton.Default) {
	a.remap = a.remap[:0]
	src := a.source()
	if src == nil || def == nil {
		return
	}
	for _, n := range src.JointNames() {
		a.remap = append(a.remap, def.JointIDByName(n))
	}
	a.flags |= FlagProjected
}

// RemapTable returns the current skin-to-skeleton joint table.
func (a *SkinAttachment) RemapTable() []int { return a.remap }

func (a *SkinAttachment) remapJoint(i int) int {
	if i < 0 || i >= len(a.remap) {
		return -1
	}
	return a.remap[i]
}

// UpdateAttModelRelative is a no-op: skins live in model space.
func (a *SkinAttachment) UpdateAttModelRelative() {}

func (a *SkinAttachment) update() {
	a.flags &^= FlagVisible
	if a.obj == nil {
		return
	}
	if !a.projected() && a.mgr != nil {
		a.UpdateRemapTable(a.mgr.skel)
	}
	a.flags |= FlagVisible
	a.obj.ProcessAttachment(a)
}
