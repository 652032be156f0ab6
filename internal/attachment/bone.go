package attachment

import (
	"charattach/internal/mathutil"
	"charattach/internal/simulation"
	"charattach/internal/skeleton"
)

// BoneAttachment follows one joint, or the midpoint of two.
type BoneAttachment struct {
	base
	socket

	secondJoint string
	secondID    int
	procFunc    string
	children    []int // descendants refreshed after a redirected write
}

func newBone(name, joint, second string) *BoneAttachment {
	return &BoneAttachment{
		base:        newBase(name, TypeBone, joint),
		socket:      newSocket(),
		secondJoint: second,
		secondID:    -1,
	}
}

// AddBinding binds any rigid or animated payload. Skins need a skin attachment.
func (a *BoneAttachment) AddBinding(obj Object) error {
	if obj == nil {
		a.clear()
		return nil
	}
	switch obj.Kind() {
	case KindSkinMesh, KindCloth:
		return ErrIncompatibleObject
	}
	a.bind(obj)
	return nil
}

// SetSimParams replaces the socket parameters. Toggling redirection moves
// the attachment to another bucket.
func (a *BoneAttachment) SetSimParams(p simulation.Params) {
	moved := p.Redirect != a.sim.Params.Redirect
	a.setParams(p)
	a.add = mathutil.Identity()
	a.resolveDirTrans(a.mgr)
	if moved {
		a.invalidate()
	}
}

// SecondJointName is the optional blend partner, empty for single-joint bones.
func (a *BoneAttachment) SecondJointName() string { return a.secondJoint }

// ProcFunction names the registered procedure run after each update.
func (a *BoneAttachment) ProcFunction() string { return a.procFunc }

func (a *BoneAttachment) SetProcFunction(name string) { a.procFunc = name }

// Redirected reports whether simulation results are written into the pose.
func (a *BoneAttachment) Redirected() bool { return a.redirected() }

// ProjectAttachment resolves the joint names and derives the missing default.
// It is a pure function of the skeleton and the primary default.
func (a *BoneAttachment) ProjectAttachment(def *skeleton.Default) bool {
	a.flags &^= FlagProjected
	a.jointID, a.secondID = -1, -1
	if def == nil {
		return false
	}
	id := def.JointIDByName(a.jointName)
	if id < 0 {
		return false
	}
	jd := def.DefaultAbsolute(id)
	if a.secondJoint != "" {
		sid := def.JointIDByName(a.secondJoint)
		if sid < 0 {
			return false
		}
		a.secondID = sid
		jd = mathutil.SlerpQuatT(jd, def.DefaultAbsolute(sid), 0.5)
	}
	a.jointID = id
	a.resolveDefaults(jd)
	a.flags |= FlagProjected
	a.resolveDirTrans(a.mgr)
	return true
}

func (a *BoneAttachment) ensureProjected() bool {
	if a.projected() && a.jointID >= 0 {
		return true
	}
	if a.mgr == nil {
		return false
	}
	return a.ProjectAttachment(a.mgr.skel)
}

func (a *BoneAttachment) jointAbs(pose *skeleton.Pose) mathutil.QuatT {
	abs := pose.JointAbsolute(a.jointID)
	if a.secondID >= 0 {
		abs = mathutil.SlerpQuatT(abs, pose.JointAbsolute(a.secondID), 0.5)
	}
	return abs
}

// UpdateAttModelRelative recomputes the model-space transform from the
// manager's last pose without advancing the simulation.
func (a *BoneAttachment) UpdateAttModelRelative() {
	if a.mgr == nil || a.mgr.pose == nil || !a.ensureProjected() {
		return
	}
	a.modelRel = a.jointAbs(a.mgr.pose).Mul(a.relDefault)
}

func (a *BoneAttachment) locate(pose *skeleton.Pose, fc FrameContext) bool {
	if !a.ensureProjected() {
		return false
	}
	a.modelRel = a.jointAbs(pose).Mul(a.relDefault)
	a.add = a.step(a.mgr, a.name, a.jointID, a.modelRel, fc, pose)
	a.runProc(pose)
	return true
}

func (a *BoneAttachment) runProc(pose *skeleton.Pose) {
	if a.procFunc != "" && a.mgr != nil {
		a.mgr.ExecProcFunction(a.procFunc, a, pose)
	}
}

func (a *BoneAttachment) updateEmpty(pose *skeleton.Pose, fc FrameContext) {
	a.locate(pose, fc)
}

// updateStatic skips payloads too small to see at the current zoom.
func (a *BoneAttachment) updateStatic(pose *skeleton.Pose, fc FrameContext) {
	a.flags &^= FlagVisible
	if a.obj == nil || !a.mgr.inView(a.obj) {
		return
	}
	if a.locate(pose, fc) {
		a.flags |= FlagVisible
	}
}

func (a *BoneAttachment) updateExecute(pose *skeleton.Pose, fc FrameContext) {
	a.flags &^= FlagVisible
	if !a.locate(pose, fc) {
		return
	}
	if a.obj != nil {
		if a.mgr.inView(a.obj) {
			a.flags |= FlagVisible
		}
		a.obj.ProcessAttachment(a)
	}
}

// updateRedirected writes the simulated joint into the pose and refreshes
// the joints below it. Callers walk redirected bones parents first.
func (a *BoneAttachment) updateRedirected(pose *skeleton.Pose, fc FrameContext) {
	if !a.ensureProjected() {
		return
	}
	jabs := a.jointAbs(pose)
	a.modelRel = jabs.Mul(a.relDefault)
	add := a.step(a.mgr, a.name, a.jointID, a.modelRel, fc, pose)
	if w := a.mgr.blendWeight(pose); w < 1 {
		add = mathutil.NLerpQuatT(mathutil.Identity(), add, w)
	}
	a.add = mathutil.Identity()
	local := a.relDefault.Mul(add).Mul(a.relDefault.Inverted())
	newAbs := jabs.Mul(local).Normalized()
	pose.SetJointAbsolute(a.jointID, newAbs)
	pose.RecomputeChildren(a.children)
	a.modelRel = newAbs.Mul(a.relDefault)
	a.flags |= FlagVisible
	a.runProc(pose)
	if a.obj != nil {
		a.obj.ProcessAttachment(a)
	}
}
