package proxy

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"charattach/internal/mathutil"
)

const (
	searchIterations = 48
	angleSteps       = 16
	bisectIterations = 32
)

// boxSqDist is the squared distance from p to the core box of the lozenge.
func (p *Proxy) boxSqDist(pt mathutil.Vec3) float64 {
	sq := 0.0
	for i := 0; i < 3; i++ {
		if t := math.Abs(pt[i]) - p.Params[i]; t > 0 {
			sq += t * t
		}
	}
	return sq
}

func (p *Proxy) closestOnBox(pt mathutil.Vec3) mathutil.Vec3 {
	var c mathutil.Vec3
	for i := 0; i < 3; i++ {
		c[i] = math.Max(-p.Params[i], math.Min(p.Params[i], pt[i]))
	}
	return c
}

// InsideCore reports whether pt lies inside the un-inflated core box, where
// no push direction is well defined.
func (p *Proxy) InsideCore(pt mathutil.Vec3) bool {
	if !p.Valid() {
		return false
	}
	for i := 0; i < 3; i++ {
		if math.Abs(pt[i]) >= p.Params[i] && !(p.Params[i] == 0 && pt[i] == 0) {
			return false
		}
	}
	return true
}

// GetDistance returns the signed distance from a proxy-local point to the
// lozenge surface, negative inside.
func (p *Proxy) GetDistance(pt mathutil.Vec3) float64 {
	return p.GetDistanceSphere(pt, 0)
}

// GetDistanceSphere is GetDistance for a sphere of radius r centred at pt.
func (p *Proxy) GetDistanceSphere(pt mathutil.Vec3, r float64) float64 {
	if !p.Valid() || !mathutil.IsFinite(pt) {
		return math.MaxFloat64
	}
	return math.Sqrt(p.boxSqDist(pt)) - (p.Params[3] + r)
}

// segmentMin returns the parameter in [0, sl] of the point on p0+dir*t that
// is closest to the core box, and its squared distance.
func (p *Proxy) segmentMin(p0, dir mathutil.Vec3, sl float64) (float64, float64) {
	f := func(t float64) float64 { return p.boxSqDist(p0.Add(dir.Mul(t))) }
	lo, hi := 0.0, sl
	const phi = 0.6180339887498949
	a := hi - phi*(hi-lo)
	b := lo + phi*(hi-lo)
	fa, fb := f(a), f(b)
	for i := 0; i < searchIterations; i++ {
		if fa <= fb {
			hi, b, fb = b, a, fa
			a = hi - phi*(hi-lo)
			fa = f(a)
		} else {
			lo, a, fa = a, b, fb
			b = lo + phi*(hi-lo)
			fb = f(b)
		}
	}
	t, best := (lo+hi)*0.5, f((lo+hi)*0.5)
	if e := f(0); e < best {
		t, best = 0, e
	}
	if e := f(sl); e < best {
		t, best = sl, e
	}
	return t, best
}

// TestOverlapping checks a capsule (segment from p0 along unit dir of length
// sl, radius sr) against the lozenge and returns a pseudo squared distance:
// negative when they overlap.
func (p *Proxy) TestOverlapping(p0, dir mathutil.Vec3, sl, sr float64) float64 {
	d := mathutil.SafeNormalize(dir, mathutil.Vec3{})
	if !p.Valid() || d == (mathutil.Vec3{}) || sl < 0 || sr < 0 || !mathutil.IsFinite(p0) {
		return 0
	}
	_, sq := p.segmentMin(p0, d, sl)
	r := p.Params[3] + sr
	return sq - r*r
}

// ShortvecTranslationalProjection returns the smallest translation that moves
// a sphere of radius sr at pt out of the lozenge. Zero when not penetrating.
func (p *Proxy) ShortvecTranslationalProjection(pt mathutil.Vec3, sr float64) mathutil.Vec3 {
	if sr < 0 || p.GetDistanceSphere(pt, sr) >= 0 {
		return mathutil.Vec3{}
	}
	r := p.Params[3] + sr
	c := p.closestOnBox(pt)
	if off := pt.Sub(c); off.Len() > mathutil.Epsilon {
		return c.Add(off.Normalize().Mul(r)).Sub(pt)
	}

	// Inside the core box: leave through the nearest face.
	axis, depth := 0, math.MaxFloat64
	for i := 0; i < 3; i++ {
		if d := p.Params[i] - math.Abs(pt[i]); d < depth {
			axis, depth = i, d
		}
	}
	target := pt
	sign := 1.0
	if pt[axis] < 0 {
		sign = -1
	}
	target[axis] = sign * (p.Params[axis] + r)
	return target.Sub(pt)
}

// DirectedTranslationalProjection returns how far a sphere of radius sr at pt
// must travel along dir to leave the lozenge. Zero when not penetrating.
func (p *Proxy) DirectedTranslationalProjection(pt, dir mathutil.Vec3, sr float64) float64 {
	d := mathutil.SafeNormalize(dir, mathutil.Vec3{})
	if d == (mathutil.Vec3{}) || sr < 0 || p.GetDistanceSphere(pt, sr) >= 0 {
		return 0
	}
	ext := mathutil.Vec3{p.Params[0], p.Params[1], p.Params[2]}.Len()
	lo, hi := 0.0, pt.Len()+ext+p.Params[3]+sr+mathutil.Epsilon
	for i := 0; i < bisectIterations*2; i++ {
		mid := (lo + hi) * 0.5
		if p.GetDistanceSphere(pt.Add(d.Mul(mid)), sr) < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}

// ShortarcRotationalProjection returns the smallest rotation about pivot that
// swings the capsule (pivot, dir, sl, sr) out of the lozenge. Identity when
// not overlapping or when no rotation can free it.
func (p *Proxy) ShortarcRotationalProjection(pivot, dir mathutil.Vec3, sl, sr float64) mathutil.Quat {
	d := mathutil.SafeNormalize(dir, mathutil.Vec3{})
	if d == (mathutil.Vec3{}) || sl <= 0 || p.TestOverlapping(pivot, d, sl, sr) >= 0 {
		return mgl64.QuatIdent()
	}

	// Swing away from the box point nearest to the deepest capsule point.
	t, _ := p.segmentMin(pivot, d, sl)
	deep := pivot.Add(d.Mul(t))
	away := deep.Sub(p.closestOnBox(deep))
	if away.Len() < mathutil.Epsilon {
		away = deep
	}
	away = away.Sub(d.Mul(away.Dot(d)))
	axis := mathutil.SafeNormalize(d.Cross(away), mathutil.AnyPerpendicular(d))
	return p.rotateFree(pivot, d, sl, sr, axis, false)
}

// DirectedRotationalProjection is ShortarcRotationalProjection restricted to
// rotations about the hinge axis, in whichever direction is shorter.
func (p *Proxy) DirectedRotationalProjection(pivot, dir mathutil.Vec3, sl, sr float64, hinge mathutil.Vec3) mathutil.Quat {
	d := mathutil.SafeNormalize(dir, mathutil.Vec3{})
	h := mathutil.SafeNormalize(hinge, mathutil.Vec3{})
	if d == (mathutil.Vec3{}) || h == (mathutil.Vec3{}) || sl <= 0 || p.TestOverlapping(pivot, d, sl, sr) >= 0 {
		return mgl64.QuatIdent()
	}
	return p.rotateFree(pivot, d, sl, sr, h, true)
}

// rotateFree scans for the smallest angle about axis that clears the capsule,
// then refines it by bisection.
func (p *Proxy) rotateFree(pivot, d mathutil.Vec3, sl, sr float64, axis mathutil.Vec3, bothWays bool) mathutil.Quat {
	free := func(angle float64) bool {
		nd := mgl64.QuatRotate(angle, axis).Rotate(d)
		return p.TestOverlapping(pivot, nd, sl, sr) >= 0
	}
	step := math.Pi / angleSteps
	for i := 1; i <= angleSteps; i++ {
		hi := step * float64(i)
		for _, sign := range []float64{1, -1} {
			if sign < 0 && !bothWays {
				continue
			}
			if !free(sign * hi) {
				continue
			}
			lo := hi - step
			for k := 0; k < bisectIterations; k++ {
				mid := (lo + hi) * 0.5
				if free(sign * mid) {
					hi = mid
				} else {
					lo = mid
				}
			}
			return mgl64.QuatRotate(sign*hi, axis)
		}
	}
	return mgl64.QuatIdent()
}
