package attachment

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"

	"charattach/internal/mathutil"
	"charattach/internal/simulation"
	"charattach/internal/skeleton"
)

// FaceAttachment sticks to the closest triangle of the character's skins and
// follows it as the skin deforms.
type FaceAttachment struct {
	base
	socket

	skin Handle // skin attachment owning the triangle
	tri  int
}

func newFace(name string) *FaceAttachment {
	return &FaceAttachment{
		base:   newBase(name, TypeFace, ""),
		socket: newSocket(),
		tri:    -1,
	}
}

func (a *FaceAttachment) AddBinding(obj Object) error {
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

func (a *FaceAttachment) SetSimParams(p simulation.Params) {
	a.setParams(p)
	a.add = mathutil.Identity()
	a.resolveDirTrans(a.mgr)
}

// Triangle reports the skin attachment and triangle the face is bound to.
func (a *FaceAttachment) Triangle() (Handle, int) { return a.skin, a.tri }

// ProjectAttachment searches every visible skin for the triangle closest to
// the absolute default. It fails softly while any skin is still streaming.
func (a *FaceAttachment) ProjectAttachment() bool {
	a.flags &^= FlagProjected
	a.jointID = -1
	if a.mgr == nil {
		return false
	}
	target := toR3(a.absDefault.T)
	best := math.MaxFloat64
	var frame mathutil.QuatT
	found := false
	for _, s := range a.mgr.skins() {
		if s.IsAttachmentHidden() {
			continue
		}
		src := s.source()
		if src == nil {
			continue
		}
		if !src.Ready() {
			return false
		}
		verts := src.Vertices()
		for i, t := range src.Triangles() {
			if !validTri(t, len(verts)) {
				continue
			}
			p0, p1, p2 := toR3(verts[t[0]].Pos), toR3(verts[t[1]].Pos), toR3(verts[t[2]].Pos)
			d := r3.Norm2(r3.Sub(closestOnTriangle(target, p0, p1, p2), target))
			if d >= best {
				continue
			}
			f, ok := triFrame(p0, p1, p2)
			if !ok {
				continue
			}
			best, frame, found = d, f, true
			a.skin, a.tri = s.handle, i
		}
	}
	if !found {
		return false
	}
	a.relDefault = frame.Inverted().Mul(a.absDefault)
	a.relPrimary = false
	a.jointID = a.tri
	a.flags |= FlagProjected
	a.resolveDirTrans(a.mgr)
	return true
}

// ComputeTriMat rebuilds the bound triangle's frame from the current pose
// using a dual-quaternion blend of the vertex influences.
func (a *FaceAttachment) ComputeTriMat(pose *skeleton.Pose) (mathutil.QuatT, bool) {
	if a.mgr == nil || pose == nil || a.tri < 0 {
		return mathutil.Identity(), false
	}
	s, _ := a.mgr.GetInterfaceByHandle(a.skin).(*SkinAttachment)
	if s == nil {
		return mathutil.Identity(), false
	}
	src := s.source()
	if src == nil || !src.Ready() {
		return mathutil.Identity(), false
	}
	tris, verts := src.Triangles(), src.Vertices()
	if a.tri >= len(tris) || !validTri(tris[a.tri], len(verts)) {
		return mathutil.Identity(), false
	}
	def := a.mgr.skel
	var p [3]r3.Vec
	for k, vi := range tris[a.tri] {
		v := verts[vi]
		dq := mathutil.ZeroDual()
		for i, w := range v.Weights {
			id := s.remapJoint(v.Joints[i])
			if w <= 0 || id < 0 {
				continue
			}
			m := pose.JointAbsolute(id).Mul(def.DefaultAbsolute(id).Inverted())
			dq = dq.AddWeighted(mathutil.DualFromQuatT(m), w)
		}
		p[k] = toR3(dq.ToQuatT().TransformPoint(v.Pos))
	}
	return triFrame(p[0], p[1], p[2])
}

func (a *FaceAttachment) UpdateAttModelRelative() {
	if a.mgr == nil || !a.projected() {
		return
	}
	if f, ok := a.ComputeTriMat(a.mgr.pose); ok {
		a.modelRel = f.Mul(a.relDefault)
	}
}

func (a *FaceAttachment) locate(pose *skeleton.Pose, fc FrameContext) bool {
	if !a.projected() && !a.ProjectAttachment() {
		return false
	}
	f, ok := a.ComputeTriMat(pose)
	if !ok {
		// the skin went away; search again next frame
		a.flags &^= FlagProjected
		a.jointID = -1
		return false
	}
	a.modelRel = f.Mul(a.relDefault)
	a.add = a.step(a.mgr, a.name, a.tri, a.modelRel, fc, pose)
	return true
}

func (a *FaceAttachment) updateEmpty(pose *skeleton.Pose, fc FrameContext) {
	a.locate(pose, fc)
}

func (a *FaceAttachment) updateStatic(pose *skeleton.Pose, fc FrameContext) {
	a.flags &^= FlagVisible
	if a.obj == nil || !a.mgr.inView(a.obj) {
		return
	}
	if a.locate(pose, fc) {
		a.flags |= FlagVisible
	}
}

func (a *FaceAttachment) updateExecute(pose *skeleton.Pose, fc FrameContext) {
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

func validTri(t [3]int, n int) bool {
	for _, i := range t {
		if i < 0 || i >= n {
			return false
		}
	}
	return true
}

func toR3(v mathutil.Vec3) r3.Vec   { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }
func fromR3(v r3.Vec) mathutil.Vec3 { return mathutil.Vec3{v.X, v.Y, v.Z} }

// triFrame places a frame at the triangle centroid with X along the first
// edge and Z along the face normal.
func triFrame(v0, v1, v2 r3.Vec) (mathutil.QuatT, bool) {
	x := r3.Sub(v1, v0)
	n := r3.Cross(x, r3.Sub(v2, v0))
	if r3.Norm(x) < mathutil.Epsilon || r3.Norm(n) < mathutil.Epsilon {
		return mathutil.Identity(), false
	}
	x, z := r3.Unit(x), r3.Unit(n)
	y := r3.Cross(z, x)
	m := mgl64.Mat3{x.X, x.Y, x.Z, y.X, y.Y, y.Z, z.X, z.Y, z.Z}
	q := mgl64.Mat4ToQuat(m.Mat4()).Normalize()
	c := r3.Scale(1.0/3, r3.Add(r3.Add(v0, v1), v2))
	return mathutil.NewQuatT(q, fromR3(c)), true
}

// closestOnTriangle returns the point of triangle abc nearest to p.
func closestOnTriangle(p, a, b, c r3.Vec) r3.Vec {
	ab, ac, ap := r3.Sub(b, a), r3.Sub(c, a), r3.Sub(p, a)
	d1, d2 := r3.Dot(ab, ap), r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := r3.Sub(p, b)
	d3, d4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(d1/(d1-d3), ab))
	}
	cp := r3.Sub(p, c)
	d5, d6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(d2/(d2-d6), ac))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(b, r3.Scale(w, r3.Sub(c, b)))
	}
	sum := va + vb + vc
	if sum == 0 {
		return a
	}
	v, w := vb/sum, vc/sum
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}
