package attachment

import (
	"math"

	"charattach/internal/mathutil"
	"charattach/internal/proxy"
	"charattach/internal/simulation"
	"charattach/internal/skeleton"
)

// FrameContext is the per-frame input shared by every update pass.
type FrameContext struct {
	Dt                 float64
	Location           mathutil.QuatTS
	SimulationDisabled bool
	AnimationLOD       int
}

// Update runs the full per-frame sequence: forward kinematics, redirected
// joints and rows, then every attachment location.
func (m *Manager) Update(pose *skeleton.Pose, fc FrameContext) {
	if pose == nil {
		return
	}
	pose.ComputeAbsolute()
	m.UpdateAllRedirectedTransformations(pose, fc)
	m.UpdateAllLocations(pose, fc)
}

func (m *Manager) begin(pose *skeleton.Pose, fc FrameContext) {
	m.ensureSorted()
	m.pose = pose
	m.location = fc.Location
}

// UpdateAllRedirectedTransformations writes simulated joints into pose. It
// must run before anything else reads the pose this frame.
func (m *Manager) UpdateAllRedirectedTransformations(pose *skeleton.Pose, fc FrameContext) {
	if pose == nil {
		return
	}
	m.begin(pose, fc)
	if fc.Dt > 0 {
		m.turbulence += math.Pi * fc.Dt
	}
	m.eachProxy(func(p *proxy.Proxy) {
		if p.JointID >= 0 {
			p.UpdateFromJoint(pose.JointAbsolute(p.JointID))
		}
	})

	gen := m.gen
	for _, a := range m.bucket(BucketRedirected) {
		if m.gen != gen {
			return
		}
		a.(*BoneAttachment).updateRedirected(pose, fc)
	}

	m.eachProxy(func(p *proxy.Proxy) { p.ModelRelativePrev = p.ModelRelative })

	for _, a := range m.bucket(BucketRow) {
		if m.gen != gen {
			return
		}
		if r, ok := a.(*RowAttachment); ok {
			r.update(pose, fc)
		}
	}
}

// UpdateAllLocations computes the model-space transform of every bone, face,
// skin and cloth attachment. Empty face sockets are skipped at coarse
// animation LODs.
func (m *Manager) UpdateAllLocations(pose *skeleton.Pose, fc FrameContext) {
	if pose == nil {
		return
	}
	m.begin(pose, fc)
	gen := m.gen
	walk := func(b Bucket, fn func(Attachment)) bool {
		for _, a := range m.bucket(b) {
			if m.gen != gen {
				return false
			}
			fn(a)
		}
		return true
	}
	steps := []struct {
		b  Bucket
		fn func(Attachment)
	}{
		{BucketBoneEmpty, func(a Attachment) { a.(*BoneAttachment).updateEmpty(pose, fc) }},
		{BucketBoneStatic, func(a Attachment) { a.(*BoneAttachment).updateStatic(pose, fc) }},
		{BucketBoneExecute, func(a Attachment) { a.(*BoneAttachment).updateExecute(pose, fc) }},
		{BucketFaceEmpty, func(a Attachment) {
			if fc.AnimationLOD < 1 {
				a.(*FaceAttachment).updateEmpty(pose, fc)
			}
		}},
		{BucketFaceStatic, func(a Attachment) { a.(*FaceAttachment).updateStatic(pose, fc) }},
		{BucketFaceExecute, func(a Attachment) { a.(*FaceAttachment).updateExecute(pose, fc) }},
		{BucketSkin, func(a Attachment) { a.(*SkinAttachment).update() }},
		{BucketRow, func(a Attachment) {
			if c, ok := a.(*VClothAttachment); ok {
				c.update()
			}
		}},
	}
	for _, s := range steps {
		if !walk(s.b, s.fn) {
			return
		}
	}
}

// UpdateAllLocationsFast is the off-screen variant: only executing payloads
// are updated.
func (m *Manager) UpdateAllLocationsFast(pose *skeleton.Pose, fc FrameContext) {
	if pose == nil {
		return
	}
	m.begin(pose, fc)
	gen := m.gen
	for _, a := range m.bucket(BucketBoneExecute) {
		if m.gen != gen {
			return
		}
		a.(*BoneAttachment).updateExecute(pose, fc)
	}
	for _, a := range m.bucket(BucketFaceExecute) {
		if m.gen != gen {
			return
		}
		a.(*FaceAttachment).updateExecute(pose, fc)
	}
}

// blendWeight is the scale of redirected results, from the override joint.
func (m *Manager) blendWeight(pose *skeleton.Pose) float64 {
	if m.blendJoint < 0 || pose == nil {
		return 1
	}
	return mathutil.Clamp01(pose.JointRelative(m.blendJoint).T[0])
}

// ProjectAllAttachments resolves every bone and face against the current
// skeleton and refreshes skin remap tables. Failures stay unprojected and
// are retried lazily.
func (m *Manager) ProjectAllAttachments() int {
	n := 0
	for _, a := range m.order {
		ok := false
		switch v := a.(type) {
		case *BoneAttachment:
			ok = v.ProjectAttachment(m.skel)
		case *FaceAttachment:
			ok = v.ProjectAttachment()
		case *SkinAttachment:
			v.UpdateRemapTable(m.skel)
			ok = v.projected()
		}
		if ok {
			n++
		}
	}
	m.touch()
	return n
}

// UpdateAllRemapTables rebuilds the joint tables of every skin.
func (m *Manager) UpdateAllRemapTables() {
	for _, s := range m.skins() {
		s.UpdateRemapTable(m.skel)
	}
}

// SetSkeleton rebinds the manager to a new skeleton. Every attachment and
// proxy is reprojected lazily or immediately where that is cheap.
func (m *Manager) SetSkeleton(def *skeleton.Default) {
	m.skel = def
	m.pose = nil
	for _, a := range m.order {
		a.core().flags &^= FlagProjected
		a.core().jointID = -1
	}
	m.eachProxy(func(p *proxy.Proxy) {
		if def == nil || !p.Project(def) {
			p.JointID = -1
			Logger().Warn("attachment: proxy joint missing from skeleton", "proxy", p.Name, "joint", p.JointName)
		}
	})
	m.UpdateAllRemapTables()
	for _, a := range m.order {
		if s, ok := a.(*BoneAttachment); ok {
			s.resolveDirTrans(m)
		}
	}
	m.touch()
}

// Observer returns the current simulation observer.
func (m *Manager) Observer() simulation.Observer { return m.observer }
