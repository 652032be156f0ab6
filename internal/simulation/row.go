package simulation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tiendc/go-deepcopy"

	"charattach/internal/mathutil"
	"charattach/internal/skeleton"
)

// RowMarker is the joint-name pattern that numbers the joints of a row.
const RowMarker = "_x00_"

// DefaultRodLength is used for particles whose joint has no child.
const DefaultRodLength = 0.07

// RowParams is the parameter block of a pendulum row. Angles are degrees.
type RowParams struct {
	ClampMode         ClampType // cone, hinge plane or half cone
	FPS               float64
	ConeAngle         float64
	ConeRotation      mathutil.Vec3
	Mass              float64
	Gravity           float64
	Damping           float64
	JointSpring       float64
	RodLength         float64
	StiffnessTarget   mathutil.Vec2
	Turbulence        mathutil.Vec2 // amplitude, frequency
	MaxVelocity       float64
	WorldSpaceDamping float64 // fraction of the character's motion the row lags behind
	Cycle             bool
	RelaxLoops        int
	Stretch           float64
	CapsuleX          float64
	CapsuleY          float64
	ProjectionType    ProjectionType
	ProxyNames        []string
}

// DefaultRowParams returns the parameters of a freshly created row.
func DefaultRowParams() RowParams {
	return RowParams{
		ClampMode:   ClampPendulumCone,
		FPS:         30,
		ConeAngle:   45,
		Mass:        1,
		Gravity:     9.81,
		Damping:     1,
		MaxVelocity: 10,
		RelaxLoops:  2,
		Stretch:     0.1,
	}
}

// Clone returns a deep copy that shares no slices with p.
func (p *RowParams) Clone() RowParams {
	var out RowParams
	if err := deepcopy.Copy(&out, p); err != nil {
		out = *p
		out.ProxyNames = append([]string(nil), p.ProxyNames...)
	}
	return out
}

// Particle is one joint of a row.
type Particle struct {
	JointID  int
	ChildID  int
	Distance mathutil.Vec2 // X: to the next particle, Y: rod length

	childDir mathutil.Vec3 // unit rod direction in joint space
	pos      mathutil.Vec3 // model space
	vel      mathutil.Vec3
}

// RowInput is what one row update reads besides the pose.
type RowInput struct {
	Location   mathutil.QuatTS
	Dt         float64
	Turbulence float64 // per-manager accumulator
	Disabled   bool
	Proxies    []ProxyRef
}

// PendulaRow is a ring or strip of coupled pendulums, one per joint.
type PendulaRow struct {
	Params    RowParams
	Particles []Particle

	refresh []int // non-row descendants, parents first
	prevLoc mathutil.QuatT
	primed  bool
	state   RowState
}

// RowJointNames expands a row joint name containing RowMarker into the
// numbered sequence _x00_, _x01_, ... up to 100 names.
func RowJointNames(name string) []string {
	idx := strings.Index(strings.ToLower(name), RowMarker)
	if idx < 0 {
		return nil
	}
	out := make([]string, 0, 100)
	for j := 0; j < 100; j++ {
		out = append(out, fmt.Sprintf("%s%02d%s", name[:idx+2], j, name[idx+4:]))
	}
	return out
}

// Build resolves the joint chain from the default skeleton. It stops at the
// first missing number and fails when not a single joint resolves.
func (r *PendulaRow) Build(def *skeleton.Default, rowJoint string) error {
	r.Particles = r.Particles[:0]
	r.primed = false
	names := RowJointNames(rowJoint)
	if names == nil {
		return fmt.Errorf("simulation: row joint %q does not contain %s", rowJoint, RowMarker)
	}
	for _, n := range names {
		id := def.JointIDByName(n)
		if id < 0 {
			break
		}
		r.Particles = append(r.Particles, Particle{JointID: id, ChildID: -1})
	}
	if len(r.Particles) == 0 {
		return fmt.Errorf("simulation: row joint %q not in skeleton", rowJoint)
	}

	row := make(map[int]bool, len(r.Particles))
	for i := range r.Particles {
		pt := &r.Particles[i]
		row[pt.JointID] = true
		pt.Distance[1] = DefaultRodLength
		pt.childDir = mathutil.Vec3{1, 0, 0}
		for c := pt.JointID + 1; c < def.JointCount(); c++ {
			if def.ParentID(c) == pt.JointID {
				pt.ChildID = c
				rel := def.DefaultRelative(c).T
				if l := rel.Len(); l > mathutil.Epsilon {
					pt.Distance[1] = l
					pt.childDir = rel.Mul(1 / l)
				}
				break
			}
		}
	}

	probe := func(pt Particle) mathutil.Vec3 {
		abs := def.DefaultAbsolute(pt.JointID)
		return abs.Q.Rotate(pt.childDir).Mul(pt.Distance[1]).Add(abs.T)
	}
	n := len(r.Particles)
	for i := range r.Particles {
		next := r.Particles[(i+1)%n]
		d := probe(next).Sub(probe(r.Particles[i]))
		d[2] = 0
		r.Particles[i].Distance[0] = d.Len()
	}

	seen := map[int]bool{}
	r.refresh = r.refresh[:0]
	for _, pt := range r.Particles {
		for _, c := range def.Descendants(pt.JointID) {
			if !row[c] && !seen[c] {
				seen[c] = true
				r.refresh = append(r.refresh, c)
			}
		}
	}
	sort.Ints(r.refresh)
	return nil
}

// State returns the values of the last update for diagnostics.
func (r *PendulaRow) State() RowState { return r.state }

func (r *PendulaRow) rodLen(pt *Particle) float64 {
	if r.Params.RodLength > 0 {
		return r.Params.RodLength
	}
	return pt.Distance[1]
}

type rowFrame struct {
	pivot, rest, hinge mathutil.Vec3
	jointQ             mathutil.Quat
}

func (r *PendulaRow) frames(pose *skeleton.Pose) []rowFrame {
	cone := mathutil.EulerToQuat(mathutil.Deg2Rad(r.Params.ConeRotation[0]), mathutil.Deg2Rad(r.Params.ConeRotation[1]), mathutil.Deg2Rad(r.Params.ConeRotation[2]))
	out := make([]rowFrame, len(r.Particles))
	for i := range r.Particles {
		pt := &r.Particles[i]
		abs := pose.JointAbsolute(pt.JointID)
		local := cone.Rotate(pt.childDir)
		n0 := mathutil.SafeNormalize(local.Cross(mathutil.Vec3{0, 0, 1}), mathutil.AnyPerpendicular(local))
		out[i] = rowFrame{
			pivot:  abs.T,
			rest:   abs.Q.Rotate(local),
			hinge:  abs.Q.Rotate(n0),
			jointQ: abs.Q,
		}
	}
	return out
}

// Update integrates the row and writes the resulting joint rotations into pose.
func (r *PendulaRow) Update(pose *skeleton.Pose, in RowInput) RowState {
	r.state = RowState{}
	if len(r.Particles) == 0 || pose == nil {
		return r.state
	}
	fr := r.frames(pose)
	loc := in.Location.QuatT()

	if !r.primed || in.Disabled || r.Params.Mass <= 0 {
		for i := range r.Particles {
			pt := &r.Particles[i]
			pt.pos = fr[i].pivot.Add(fr[i].rest.Mul(r.rodLen(pt)))
			pt.vel = mathutil.Vec3{}
		}
		r.prevLoc = loc
		r.primed = true
		if in.Disabled || r.Params.Mass <= 0 {
			r.capture(fr)
			return r.state
		}
	}

	if w := mathutil.Clamp01(r.Params.WorldSpaceDamping); w > 0 {
		carry := loc.Inverted().Mul(r.prevLoc)
		for i := range r.Particles {
			pt := &r.Particles[i]
			pt.pos = mathutil.Lerp(pt.pos, carry.TransformPoint(pt.pos), w)
		}
	}
	r.prevLoc = loc

	g := loc.Inverted().TransformVector(mathutil.Down).Mul(r.Params.Gravity)
	target := mathutil.EulerToQuat(mathutil.Deg2Rad(r.Params.StiffnessTarget[0]), 0, mathutil.Deg2Rad(r.Params.StiffnessTarget[1]))
	n := SubSteps(in.Dt, r.Params.FPS)
	r.state.SubSteps = n
	if in.Dt > 0 {
		h := in.Dt / float64(n)
		old := make([]mathutil.Vec3, len(r.Particles))
		for step := 0; step < n; step++ {
			for i := range r.Particles {
				pt := &r.Particles[i]
				f := fr[i]
				old[i] = pt.pos
				goal := f.pivot.Add(target.Rotate(f.rest).Mul(r.rodLen(pt)))
				a := g.Add(goal.Sub(pt.pos).Mul(r.Params.JointSpring / r.Params.Mass)).Sub(pt.vel.Mul(r.Params.Damping))
				a = a.Add(r.turbulence(i, f, in.Turbulence))
				pt.vel = pt.vel.Add(a.Mul(h * 0.5))
				if mv := r.Params.MaxVelocity; mv > 0 && pt.vel.Len() > mv {
					pt.vel = pt.vel.Normalize().Mul(mv)
				}
				pt.pos = pt.pos.Add(pt.vel.Mul(h))
			}
			loops := r.Params.RelaxLoops
			if loops < 1 {
				loops = 1
			}
			for k := 0; k < loops; k++ {
				r.constrainRods(fr, in.Proxies)
				r.relax()
			}
			r.constrainRods(fr, in.Proxies)
			for i := range r.Particles {
				pt := &r.Particles[i]
				pt.vel = pt.pos.Sub(old[i]).Mul(1 / h)
			}
		}
	}

	for i := range r.Particles {
		pt := &r.Particles[i]
		if !mathutil.IsFinite(pt.pos) || !mathutil.IsFinite(pt.vel) {
			pt.pos = fr[i].pivot.Add(fr[i].rest.Mul(r.rodLen(pt)))
			pt.vel = mathutil.Vec3{}
		}
		dir := mathutil.SafeNormalize(pt.pos.Sub(fr[i].pivot), fr[i].rest)
		q := mathutil.RotationArc(fr[i].rest, dir).Mul(fr[i].jointQ)
		pose.SetJointAbsolute(pt.JointID, mathutil.NewQuatT(q.Normalize(), fr[i].pivot))
	}
	pose.RecomputeChildren(r.refresh)
	r.capture(fr)
	return r.state
}

func (r *PendulaRow) capture(fr []rowFrame) {
	r.state.Particles = make([]ParticleState, len(r.Particles))
	for i, pt := range r.Particles {
		r.state.Particles[i] = ParticleState{JointID: pt.JointID, Pivot: fr[i].pivot, Bob: pt.pos}
	}
}

func (r *PendulaRow) turbulence(i int, f rowFrame, phase float64) mathutil.Vec3 {
	amp := r.Params.Turbulence[0]
	if amp == 0 {
		return mathutil.Vec3{}
	}
	side := mathutil.SafeNormalize(f.rest.Cross(f.hinge), f.hinge)
	return side.Mul(amp * math.Sin(phase*r.Params.Turbulence[1]+float64(i)*0.7))
}

// constrainRods puts every particle back on its rod inside the clamp and
// outside the proxies.
func (r *PendulaRow) constrainRods(fr []rowFrame, proxies []ProxyRef) {
	maxRad := mathutil.Deg2Rad(math.Max(0, math.Min(180, r.Params.ConeAngle)))
	sr := math.Max(0, r.Params.CapsuleY)
	for i := range r.Particles {
		pt := &r.Particles[i]
		f := fr[i]
		l := r.rodLen(pt)
		dir := mathutil.SafeNormalize(pt.pos.Sub(f.pivot), f.rest)
		switch r.Params.ClampMode {
		case ClampPendulumHingePlane:
			dir = ClampHingePlane(f.hinge, dir, f.rest)
		case ClampPendulumHalfCone:
			dir = ClampHalfSpace(f.hinge, dir, f.rest)
		}
		dir = ClampCone(f.rest, dir, maxRad)

		if r.Params.ProjectionType == ProjectionShortarcRotation || r.Params.ProjectionType == ProjectionDirectedRotation {
			sl := r.Params.CapsuleX
			if sl <= 0 {
				sl = l
			}
			for _, ref := range proxies {
				px := ref.Proxy
				if px == nil || !px.Valid() {
					continue
				}
				inv := ref.Cur.Inverted()
				lp := inv.TransformPoint(f.pivot)
				if px.GetDistanceSphere(lp, sr) < 0 {
					r.state.SetupError = fmt.Sprintf("row joint %d inside proxy %q", pt.JointID, px.Name)
					continue
				}
				ld := inv.TransformVector(dir)
				var q mathutil.Quat
				if r.Params.ProjectionType == ProjectionDirectedRotation {
					q = px.DirectedRotationalProjection(lp, ld, sl, sr, inv.TransformVector(f.hinge))
				} else {
					q = px.ShortarcRotationalProjection(lp, ld, sl, sr)
				}
				if q != mgl64.QuatIdent() {
					dir = ref.Cur.TransformVector(q.Rotate(ld))
				}
			}
		}
		pt.pos = f.pivot.Add(dir.Mul(l))
	}
}

// relax pulls neighbouring particles toward their default horizontal (XY)
// spacing, tolerating Stretch as a fraction of it.
func (r *PendulaRow) relax() {
	n := len(r.Particles)
	pairs := n - 1
	if r.Params.Cycle && n > 2 {
		pairs = n
	}
	stretch := math.Max(0, r.Params.Stretch)
	for i := 0; i < pairs; i++ {
		a := &r.Particles[i]
		b := &r.Particles[(i+1)%n]
		rest := a.Distance[0]
		if rest <= 0 {
			continue
		}
		delta := b.pos.Sub(a.pos)
		delta[2] = 0
		dist := delta.Len()
		if dist < mathutil.Epsilon {
			continue
		}
		want := math.Max(rest*(1-stretch), math.Min(rest*(1+stretch), dist))
		if want == dist {
			continue
		}
		corr := delta.Mul((dist - want) / dist * 0.5)
		a.pos = a.pos.Add(corr)
		b.pos = b.pos.Sub(corr)
	}
}
