package skeleton

import "charattach/internal/mathutil"

// Pose is the per-frame joint buffer shared between animation and the
// attachment passes. Absolute transforms are model space.
type Pose struct {
	def      *Default
	relative []mathutil.QuatT
	absolute []mathutil.QuatT
	computed []bool
}

// NewPose returns a pose initialised to the default skeleton.
func NewPose(def *Default) *Pose {
	p := &Pose{
		def:      def,
		relative: make([]mathutil.QuatT, def.JointCount()),
		absolute: make([]mathutil.QuatT, def.JointCount()),
		computed: make([]bool, def.JointCount()),
	}
	p.Reset()
	return p
}

// Default returns the skeleton the pose was built for.
func (p *Pose) Default() *Default { return p.def }

// JointCount returns the number of joints in the buffer.
func (p *Pose) JointCount() int { return len(p.relative) }

// Reset restores the bind pose and marks every joint computed.
func (p *Pose) Reset() {
	copy(p.relative, p.def.relative)
	copy(p.absolute, p.def.absolute)
	for i := range p.computed {
		p.computed[i] = true
	}
}

func (p *Pose) valid(id int) bool { return id >= 0 && id < len(p.relative) }

// JointRelative returns the parent-relative transform of joint id.
func (p *Pose) JointRelative(id int) mathutil.QuatT {
	if !p.valid(id) {
		return mathutil.Identity()
	}
	return p.relative[id]
}

// JointAbsolute returns the model-space transform of joint id.
func (p *Pose) JointAbsolute(id int) mathutil.QuatT {
	if !p.valid(id) {
		return mathutil.Identity()
	}
	return p.absolute[id]
}

// SetJointRelative replaces the relative transform and marks the joint stale.
func (p *Pose) SetJointRelative(id int, qt mathutil.QuatT) {
	if !p.valid(id) {
		return
	}
	p.relative[id] = qt
	p.computed[id] = false
}

// SetJointAbsolute replaces the absolute transform and derives the relative
// one from the parent's current absolute transform.
func (p *Pose) SetJointAbsolute(id int, qt mathutil.QuatT) {
	if !p.valid(id) {
		return
	}
	p.absolute[id] = qt
	if parent := p.def.parents[id]; parent >= 0 {
		p.relative[id] = p.absolute[parent].Inverted().Mul(qt)
	} else {
		p.relative[id] = qt
	}
	p.computed[id] = true
}

// IsComputed reports whether the absolute transform of id is current.
func (p *Pose) IsComputed(id int) bool {
	return p.valid(id) && p.computed[id]
}

// ComputeAbsolute runs forward kinematics over every joint. A joint whose
// parent was recomputed is recomputed as well.
func (p *Pose) ComputeAbsolute() {
	dirty := make([]bool, len(p.relative))
	for i := range p.relative {
		parent := p.def.parents[i]
		if p.computed[i] && (parent < 0 || !dirty[parent]) {
			continue
		}
		if parent >= 0 {
			p.absolute[i] = p.absolute[parent].Mul(p.relative[i])
		} else {
			p.absolute[i] = p.relative[i]
		}
		p.computed[i] = true
		dirty[i] = true
	}
}

// RecomputeChildren refreshes the absolute transforms of the given joints,
// which must be ordered parents first, from their relative transforms.
func (p *Pose) RecomputeChildren(ids []int) {
	for _, id := range ids {
		if !p.valid(id) {
			continue
		}
		if parent := p.def.parents[id]; parent >= 0 {
			p.absolute[id] = p.absolute[parent].Mul(p.relative[id])
		}
		p.computed[id] = true
	}
}
