package raster

import (
	"image/color"
	"math"

	"charattach/internal/mathutil"
)

// LightConfig holds the flat shading parameters.
type LightConfig struct {
	LightDir mathutil.Vec3
	Ambient  float64
	Direct   float64
}

// DefaultLightConfig is a key light from the upper front right.
func DefaultLightConfig() LightConfig {
	return LightConfig{
		LightDir: mathutil.Vec3{0.4, -0.6, 0.7}.Normalize(),
		Ambient:  0.45,
		Direct:   0.55,
	}
}

// Shade scales c by the two-sided Lambert term of normal n.
func (lc *LightConfig) Shade(c color.NRGBA, n mathutil.Vec3) color.NRGBA {
	k := lc.Ambient + math.Abs(n.Dot(lc.LightDir))*lc.Direct
	return color.NRGBA{R: clamp255(float64(c.R) * k), G: clamp255(float64(c.G) * k), B: clamp255(float64(c.B) * k), A: c.A}
}

// FillTriangle rasterizes one flat-colored triangle with depth testing.
// Vertices are in screen space: x right, y down, larger z nearer.
func FillTriangle(fb *FrameBuffer, p0, p1, p2 mathutil.Vec3, c color.NRGBA) {
	x0, y0, z0 := p0[0], p0[1], p0[2]
	x1, y1, z1 := p1[0], p1[1], p1[2]
	x2, y2, z2 := p2[0], p2[1], p2[2]

	minX := int(math.Floor(math.Min(math.Min(x0, x1), x2)))
	maxX := int(math.Ceil(math.Max(math.Max(x0, x1), x2)))
	minY := int(math.Floor(math.Min(math.Min(y0, y1), y2)))
	maxY := int(math.Ceil(math.Max(math.Max(y0, y1), y2)))
	if minX < 0 {
		minX = 0
	}
	if maxX >= fb.Width {
		maxX = fb.Width - 1
	}
	if minY < 0 {
		minY = 0
	}
	if maxY >= fb.Height {
		maxY = fb.Height - 1
	}
	if minX > maxX || minY > maxY {
		return
	}

	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det

	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) + 0.5 - y2
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) + 0.5 - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}
			fb.plot(sx, sy, w0*z0+w1*z1+w2*z2, c)
		}
	}
}

// DrawDisc fills a disc of radius r pixels centred on p.
func DrawDisc(fb *FrameBuffer, p mathutil.Vec3, r float64, c color.NRGBA) {
	if r < 0.5 {
		r = 0.5
	}
	ri := int(math.Ceil(r))
	cx, cy := int(math.Floor(p[0])), int(math.Floor(p[1]))
	for dy := -ri; dy <= ri; dy++ {
		for dx := -ri; dx <= ri; dx++ {
			if float64(dx*dx+dy*dy) > r*r {
				continue
			}
			fb.plot(cx+dx, cy+dy, p[2], c)
		}
	}
}

// DrawLine draws a segment of the given pixel width by stamping discs.
func DrawLine(fb *FrameBuffer, a, b mathutil.Vec3, width float64, c color.NRGBA) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		z := a[2]
		if a[2] != b[2] {
			z = a[2] + (b[2]-a[2])*t
		}
		DrawDisc(fb, mathutil.Vec3{a[0] + dx*t, a[1] + dy*t, z}, width/2, c)
	}
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
