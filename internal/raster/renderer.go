package raster

import (
	"image"
	"image/color"
	"math"

	"charattach/internal/mathutil"
)

// Triangle is a shaded model-space triangle.
type Triangle struct {
	V     [3]mathutil.Vec3
	Color color.NRGBA
}

// Segment is a model-space line; Width is in output pixels.
type Segment struct {
	A, B  mathutil.Vec3
	Width float64
	Color color.NRGBA
}

// Point is a model-space marker; Radius is in output pixels.
type Point struct {
	P      mathutil.Vec3
	Radius float64
	Color  color.NRGBA
}

// Scene is everything drawn into one snapshot.
type Scene struct {
	Triangles  []Triangle
	Segments   []Segment
	Points     []Point
	Background color.NRGBA
}

// view is an orthographic front view fitted to the scene bounds: model x
// maps right, model z up, and smaller model y is nearer the camera.
type view struct {
	center mathutil.Vec3
	scale  float64
	size   float64
}

func (v view) project(p mathutil.Vec3) mathutil.Vec3 {
	d := p.Sub(v.center)
	return mathutil.Vec3{
		v.size/2 + d[0]*v.scale,
		v.size/2 - d[2]*v.scale,
		-d[1],
	}
}

func (v view) overlay(p mathutil.Vec3) mathutil.Vec3 {
	q := v.project(p)
	q[2] = math.Inf(1)
	return q
}

func fit(s *Scene, renderSize, margin int) view {
	lo := mathutil.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := mathutil.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	grow := func(p mathutil.Vec3) {
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], p[k])
			hi[k] = math.Max(hi[k], p[k])
		}
	}
	for _, t := range s.Triangles {
		grow(t.V[0])
		grow(t.V[1])
		grow(t.V[2])
	}
	for _, sg := range s.Segments {
		grow(sg.A)
		grow(sg.B)
	}
	for _, p := range s.Points {
		grow(p.P)
	}
	if lo[0] > hi[0] {
		return view{scale: 1, size: float64(renderSize)}
	}
	if margin > renderSize/4 {
		margin = renderSize / 4
	}
	span := math.Max(hi[0]-lo[0], hi[2]-lo[2])
	if span < 0.001 {
		span = 0.001
	}
	return view{
		center: lo.Add(hi).Mul(0.5),
		scale:  float64(renderSize-2*margin) / span,
		size:   float64(renderSize),
	}
}

// Render draws s at size*supersample pixels square. Callers downsample the
// result to size.
func Render(s *Scene, size, supersample int) *image.NRGBA {
	if supersample < 1 {
		supersample = 1
	}
	renderSize := size * supersample
	fb := NewFrameBuffer(renderSize, renderSize)
	fb.Fill(s.Background)

	v := fit(s, renderSize, 16*supersample)
	lc := DefaultLightConfig()
	for _, t := range s.Triangles {
		n := t.V[1].Sub(t.V[0]).Cross(t.V[2].Sub(t.V[0]))
		if n.Len() < 1e-12 {
			continue
		}
		c := lc.Shade(t.Color, n.Normalize())
		FillTriangle(fb, v.project(t.V[0]), v.project(t.V[1]), v.project(t.V[2]), c)
	}
	// Overlays sit on top of the mesh, later ones over earlier ones.
	ss := float64(supersample)
	for _, sg := range s.Segments {
		DrawLine(fb, v.overlay(sg.A), v.overlay(sg.B), sg.Width*ss, sg.Color)
	}
	for _, p := range s.Points {
		DrawDisc(fb, v.overlay(p.P), p.Radius*ss, p.Color)
	}
	return fb.Image()
}
