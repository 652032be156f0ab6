package simulation

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"charattach/internal/mathutil"
	"charattach/internal/proxy"
)

// ProxyRef is a proxy collided against in one update, with its model-space
// transform at the start and end of the frame.
type ProxyRef struct {
	Proxy *proxy.Proxy
	Prev  mathutil.QuatT
	Cur   mathutil.QuatT
}

// Input is everything one socket update reads. Base transforms are model
// space; Location places the model in the world.
type Input struct {
	Base     mathutil.QuatT
	Location mathutil.QuatTS
	Dt       float64
	Disabled bool
	JointID  int
	Proxies  []ProxyRef

	// DirTrans is the model-space position of the direction joint used by
	// directed translation; HasDirTrans is false when none is configured.
	DirTrans    mathutil.Vec3
	HasDirTrans bool
}

// Output is the transform to compose onto the base, in joint space.
type Output struct {
	Add        mathutil.QuatT
	SetupError string
}

// Simulation is one socket's integrator and its persistent bob state.
type Simulation struct {
	Params Params

	bob      mathutil.Vec3 // world space
	vel      mathutil.Vec3 // world space
	prevBase mathutil.QuatT
	primed   bool

	state SocketState
}

// New returns a simulation for params.
func New(p Params) *Simulation {
	return &Simulation{Params: p}
}

// Reset drops the persistent state; the next update starts from rest.
func (s *Simulation) Reset() {
	s.primed = false
	s.vel = mathutil.Vec3{}
}

// State returns the values of the last update for diagnostics.
func (s *Simulation) State() SocketState { return s.state }

// BobWorld returns the current world-space bob position.
func (s *Simulation) BobWorld() mathutil.Vec3 { return s.bob }

// Update advances the socket by in.Dt and returns the correction to apply.
func (s *Simulation) Update(in Input) Output {
	d := s.Params.cache()
	s.state = SocketState{Clamp: s.Params.ClampType}

	switch {
	case s.Params.ClampType == ClampNone:
		return Output{Add: mathutil.Identity()}
	case s.Params.ClampType == ClampTranslationalProjection:
		return s.project(in, d)
	case in.Disabled || s.Params.Mass <= 0 || in.JointID < 0 || !in.Base.IsFinite():
		s.snap(in, d)
		return Output{Add: mathutil.Identity()}
	}

	if !s.primed {
		s.snap(in, d)
	}
	loc := in.Location.QuatT()
	inv := loc.Inverted()
	p := inv.TransformPoint(s.bob)
	v := inv.TransformVector(s.vel)
	g := inv.TransformVector(mathutil.Down).Mul(s.Params.Gravity)

	n := SubSteps(in.Dt, s.Params.FPS)
	s.state.SubSteps = n
	var out Output
	if in.Dt > 0 {
		h := in.Dt / float64(n)
		for i := 1; i <= n; i++ {
			t := float64(i) / float64(n)
			base := mathutil.SlerpQuatT(s.prevBase, in.Base, t)
			if s.Params.ClampType == ClampSpringEllipsoid {
				p, v, out.SetupError = s.stepSpring(base, p, v, g, h, t, in.Proxies, d)
			} else {
				p, v, out.SetupError = s.stepPendulum(base, p, v, g, h, t, in.Proxies, d)
			}
		}
	}
	if !mathutil.IsFinite(p) || !mathutil.IsFinite(v) {
		s.snap(in, d)
		return Output{Add: mathutil.Identity()}
	}

	s.bob = loc.TransformPoint(p)
	s.vel = loc.TransformVector(v)
	s.prevBase = in.Base
	out.Add = s.correction(in.Base, p, d)
	s.state.Bob = p
	s.state.SetupError = out.SetupError
	return out
}

// snap places the bob at rest under the current base with zero velocity.
func (s *Simulation) snap(in Input, d *derived) {
	base := in.Base
	if !base.IsFinite() {
		base = mathutil.Identity()
	}
	rest := s.restPoint(base, d)
	s.bob = in.Location.QuatT().TransformPoint(rest)
	s.vel = mathutil.Vec3{}
	s.prevBase = base
	s.primed = true
	s.state.Bob = rest
	s.state.Pivot = base.TransformPoint(s.Params.PivotOffset)
}

func (s *Simulation) restPoint(base mathutil.QuatT, d *derived) mathutil.Vec3 {
	pivot := base.TransformPoint(s.Params.PivotOffset)
	if s.Params.ClampType == ClampSpringEllipsoid {
		return pivot
	}
	return pivot.Add(base.Q.Rotate(d.axis).Mul(d.rodLen))
}

// stepPendulum advances the rod by one sub-step in model space.
func (s *Simulation) stepPendulum(base mathutil.QuatT, p, v, g mathutil.Vec3, h, t float64, proxies []ProxyRef, d *derived) (mathutil.Vec3, mathutil.Vec3, string) {
	pivot := base.TransformPoint(s.Params.PivotOffset)
	rest := base.Q.Rotate(d.axis)
	target := pivot.Add(base.Q.Rotate(d.target).Mul(d.rodLen))

	a := g.Add(target.Sub(p).Mul(s.Params.Stiffness / s.Params.Mass)).Sub(v.Mul(s.Params.Damping))
	old := p
	v = v.Add(a.Mul(h * 0.5))
	p = p.Add(v.Mul(h))

	dir := mathutil.SafeNormalize(p.Sub(pivot), rest)
	hinge := base.Q.Rotate(d.hinge)
	switch s.Params.ClampType {
	case ClampPendulumHingePlane:
		dir = ClampHingePlane(hinge, dir, rest)
	case ClampPendulumHalfCone:
		dir = ClampHalfSpace(hinge, dir, rest)
	}
	dir = ClampCone(rest, dir, d.maxRad)

	var setupErr string
	if s.Params.ProjectionType == ProjectionShortarcRotation || s.Params.ProjectionType == ProjectionDirectedRotation {
		for _, ref := range proxies {
			pt := mathutil.SlerpQuatT(ref.Prev, ref.Cur, t)
			var msg string
			dir, msg = s.rotateOut(ref.Proxy, pt, pivot, dir, hinge, d)
			if msg != "" {
				setupErr = msg
			}
		}
	}

	p = pivot.Add(dir.Mul(d.rodLen))
	v = p.Sub(old).Mul(1 / h)
	s.state.Pivot = pivot
	s.state.Rest = rest
	return p, v, setupErr
}

// rotateOut swings dir out of one proxy. A pivot inside the proxy is left
// alone and reported.
func (s *Simulation) rotateOut(px *proxy.Proxy, pt mathutil.QuatT, pivot, dir, hinge mathutil.Vec3, d *derived) (mathutil.Vec3, string) {
	if px == nil || !px.Valid() {
		return dir, ""
	}
	inv := pt.Inverted()
	lp := inv.TransformPoint(pivot)
	ld := inv.TransformVector(dir)
	if px.GetDistanceSphere(lp, d.capsuleRad) < 0 {
		return dir, fmt.Sprintf("pivot inside proxy %q", px.Name)
	}
	var q mathutil.Quat
	if s.Params.ProjectionType == ProjectionDirectedRotation {
		q = px.DirectedRotationalProjection(lp, ld, d.capsuleLen, d.capsuleRad, inv.TransformVector(hinge))
	} else {
		q = px.ShortarcRotationalProjection(lp, ld, d.capsuleLen, d.capsuleRad)
	}
	return pt.TransformVector(q.Rotate(ld)), ""
}

// stepSpring advances the spring bob by one sub-step in model space.
func (s *Simulation) stepSpring(base mathutil.QuatT, p, v, g mathutil.Vec3, h, t float64, proxies []ProxyRef, d *derived) (mathutil.Vec3, mathutil.Vec3, string) {
	anchor := base.TransformPoint(s.Params.PivotOffset)
	frame := base.Q.Mul(d.disk)
	target := anchor.Add(frame.Rotate(mathutil.Vec3{s.Params.StiffnessTarget[0], s.Params.StiffnessTarget[1], 0}))

	a := g.Add(target.Sub(p).Mul(s.Params.Stiffness / s.Params.Mass)).Sub(v.Mul(s.Params.Damping))
	old := p
	v = v.Add(a.Mul(h * 0.5))
	p = p.Add(v.Mul(h))

	r := math.Max(0, s.Params.Radius)
	local := frame.Inverse().Rotate(p.Sub(anchor))
	local = ClampEllipsoid(local, r, r, r*s.Params.ScaleZP, r*s.Params.ScaleZN)
	p = anchor.Add(frame.Rotate(local))

	var setupErr string
	if s.Params.ProjectionType == ProjectionShortvecTranslation {
		for _, ref := range proxies {
			if ref.Proxy == nil || !ref.Proxy.Valid() {
				continue
			}
			pt := mathutil.SlerpQuatT(ref.Prev, ref.Cur, t)
			inv := pt.Inverted()
			if ref.Proxy.GetDistanceSphere(inv.TransformPoint(anchor), d.capsuleRad) < 0 {
				setupErr = fmt.Sprintf("spring anchor inside proxy %q", ref.Proxy.Name)
				continue
			}
			push := ref.Proxy.ShortvecTranslationalProjection(inv.TransformPoint(p), d.capsuleRad)
			p = p.Add(pt.TransformVector(push))
		}
	}

	v = p.Sub(old).Mul(1 / h)
	s.state.Pivot = anchor
	s.state.Rest = frame.Rotate(mathutil.Vec3{0, 0, 1})
	return p, v, setupErr
}

// correction converts the model-space bob into a joint-space transform.
func (s *Simulation) correction(base mathutil.QuatT, p mathutil.Vec3, d *derived) mathutil.QuatT {
	pivot := base.TransformPoint(s.Params.PivotOffset)
	local := base.Q.Inverse()
	if s.Params.ClampType == ClampSpringEllipsoid {
		return mathutil.NewQuatT(mgl64.QuatIdent(), local.Rotate(p.Sub(pivot)))
	}
	dir := local.Rotate(p.Sub(pivot))
	q := mathutil.RotationArc(d.axis, dir)
	off := s.Params.PivotOffset
	return mathutil.NewQuatT(q, off.Sub(q.Rotate(off)))
}

// project applies pure translational projection: no dynamics, no state.
func (s *Simulation) project(in Input, d *derived) Output {
	out := Output{Add: mathutil.Identity()}
	if in.Disabled || in.JointID < 0 || !in.Base.IsFinite() {
		return out
	}
	origin := in.Base.TransformPoint(s.Params.PivotOffset)
	pos := origin
	dir := in.Base.Q.Rotate(d.transAxis)
	if in.HasDirTrans {
		dir = mathutil.SafeNormalize(pos.Sub(in.DirTrans), dir)
	}

	for _, ref := range in.Proxies {
		px := ref.Proxy
		if px == nil || !px.Valid() {
			continue
		}
		inv := ref.Cur.Inverted()
		lp := inv.TransformPoint(pos)
		if px.InsideCore(lp) {
			out.SetupError = fmt.Sprintf("joint inside core of proxy %q", px.Name)
			continue
		}
		switch s.Params.ProjectionType {
		case ProjectionDirectedTranslation:
			push := px.DirectedTranslationalProjection(lp, inv.TransformVector(dir), d.capsuleRad)
			pos = pos.Add(dir.Mul(push))
		default:
			pos = pos.Add(ref.Cur.TransformVector(px.ShortvecTranslationalProjection(lp, d.capsuleRad)))
		}
	}
	out.Add = mathutil.NewQuatT(mgl64.QuatIdent(), in.Base.Q.Inverse().Rotate(pos.Sub(origin)))
	s.state.Pivot = origin
	s.state.Bob = pos
	s.state.SetupError = out.SetupError
	return out
}
