// Package simulation integrates the dynamic part of attachment sockets:
// single pendulums and springs bound to one joint, translational projection
// against proxies, and rows of coupled pendulums driving skeleton joints.
package simulation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tiendc/go-deepcopy"

	"charattach/internal/mathutil"
)

// ClampType selects the constraint a socket applies to its bob.
type ClampType int

const (
	ClampNone ClampType = iota
	ClampPendulumCone
	ClampPendulumHingePlane
	ClampPendulumHalfCone
	ClampSpringEllipsoid
	ClampTranslationalProjection
)

func (c ClampType) String() string {
	switch c {
	case ClampNone:
		return "none"
	case ClampPendulumCone:
		return "pendulum-cone"
	case ClampPendulumHingePlane:
		return "pendulum-hinge-plane"
	case ClampPendulumHalfCone:
		return "pendulum-half-cone"
	case ClampSpringEllipsoid:
		return "spring-ellipsoid"
	case ClampTranslationalProjection:
		return "translational-projection"
	}
	return "unknown"
}

// IsPendulum reports whether c integrates a rotating rod.
func (c ClampType) IsPendulum() bool {
	return c == ClampPendulumCone || c == ClampPendulumHingePlane || c == ClampPendulumHalfCone
}

// ProjectionType selects how a socket is pushed out of proxies.
type ProjectionType int

const (
	ProjectionNone ProjectionType = iota
	ProjectionShortvecTranslation
	ProjectionShortarcRotation
	ProjectionDirectedTranslation
	ProjectionDirectedRotation
)

// MaxProxies is the number of proxy names a socket or row can reference.
const MaxProxies = 8

// Params is the per-socket parameter block as authored in the attachment
// list. Angles are degrees. Editors may change fields at any time and must
// call Touch afterwards.
type Params struct {
	ClampType ClampType
	FPS       float64
	Redirect  bool

	Mass      float64
	Gravity   float64
	Damping   float64
	Stiffness float64

	// Pendulum
	MaxAngle        float64
	HRotation       float64
	SimulationAxis  mathutil.Vec3 // rod direction and length in joint space
	PivotOffset     mathutil.Vec3
	StiffnessTarget mathutil.Vec2

	// Spring
	Radius   float64
	ScaleZP  float64
	ScaleZN  float64
	DiskRotX float64
	DiskRotZ float64

	// Proxy collision
	CapsuleX        float64 // length
	CapsuleY        float64 // radius
	ProjectionType  ProjectionType
	DirTransJoint   string
	TranslationAxis mathutil.Vec3
	ProxyNames      []string

	derived derived
	fresh   bool
}

// derived caches values recomputed from the authored fields.
type derived struct {
	cosMax     float64
	maxRad     float64
	axis       mathutil.Vec3 // unit rod direction
	rodLen     float64
	hinge      mathutil.Vec3 // hinge plane normal, joint space
	target     mathutil.Vec3 // unit stiffness target direction, joint space
	disk       mathutil.Quat
	transAxis  mathutil.Vec3
	capsuleLen float64
	capsuleRad float64
}

// DefaultParams returns the parameters of a freshly created socket.
func DefaultParams() Params {
	return Params{
		FPS:             30,
		Mass:            1,
		Gravity:         9.81,
		Damping:         1,
		MaxAngle:        45,
		SimulationAxis:  mathutil.Vec3{0, 0.5, 0},
		Radius:          0.5,
		ScaleZP:         1,
		ScaleZN:         1,
		TranslationAxis: mathutil.Vec3{0, 0, 1},
	}
}

// Touch marks the derived cache stale after an edit.
func (p *Params) Touch() { p.fresh = false }

// Clone returns a deep copy that shares no slices with p.
func (p *Params) Clone() Params {
	var out Params
	if err := deepcopy.Copy(&out, p); err != nil {
		out = *p
		out.ProxyNames = append([]string(nil), p.ProxyNames...)
	}
	out.fresh = false
	return out
}

// IsActive reports whether the socket does any per-frame work.
func (p *Params) IsActive() bool {
	return p.ClampType != ClampNone
}

func (p *Params) cache() *derived {
	if p.fresh {
		return &p.derived
	}
	d := &p.derived
	d.maxRad = mathutil.Deg2Rad(math.Max(0, math.Min(180, p.MaxAngle)))
	d.cosMax = math.Cos(d.maxRad)
	d.rodLen = p.SimulationAxis.Len()
	d.axis = mathutil.SafeNormalize(p.SimulationAxis, mathutil.Vec3{0, 1, 0})
	if d.rodLen < mathutil.Epsilon || math.IsNaN(d.rodLen) {
		d.rodLen = 0.5
	}

	n0 := mathutil.SafeNormalize(d.axis.Cross(mathutil.Vec3{0, 0, 1}), mathutil.AnyPerpendicular(d.axis))
	d.hinge = mgl64.QuatRotate(mathutil.Deg2Rad(p.HRotation), d.axis).Rotate(n0)

	st := mathutil.EulerToQuat(mathutil.Deg2Rad(p.StiffnessTarget[0]), 0, mathutil.Deg2Rad(p.StiffnessTarget[1]))
	d.target = st.Rotate(d.axis)
	d.disk = mathutil.EulerToQuat(mathutil.Deg2Rad(p.DiskRotX), 0, mathutil.Deg2Rad(p.DiskRotZ))
	d.transAxis = mathutil.SafeNormalize(p.TranslationAxis, mathutil.Vec3{0, 0, 1})

	d.capsuleLen = p.CapsuleX
	if d.capsuleLen <= 0 || math.IsNaN(d.capsuleLen) {
		d.capsuleLen = d.rodLen
	}
	d.capsuleRad = math.Max(0, p.CapsuleY)
	if math.IsNaN(d.capsuleRad) {
		d.capsuleRad = 0
	}
	p.fresh = true
	return d
}

// SubSteps returns the number of integration steps for a frame of length dt
// at the given simulation rate (floored at 10 Hz, capped at 15 steps).
func SubSteps(dt, fps float64) int {
	if dt <= 0 || math.IsNaN(dt) {
		return 1
	}
	if fps < 10 || math.IsNaN(fps) {
		fps = 10
	}
	n := int(math.Ceil(dt * fps))
	if n < 1 {
		return 1
	}
	if n > 15 {
		return 15
	}
	return n
}
