package diag

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"

	"charattach/internal/attachment"
	"charattach/internal/mathutil"
	"charattach/internal/postprocess"
	"charattach/internal/raster"
	"charattach/internal/skeleton"
)

var (
	background = color.NRGBA{R: 24, G: 26, B: 30, A: 255}
	boneColor  = color.NRGBA{R: 150, G: 150, B: 160, A: 255}
	skinColor  = color.NRGBA{R: 170, G: 140, B: 120, A: 255}
	proxyColor = color.NRGBA{R: 60, G: 140, B: 220, A: 255}
	rodColor   = color.NRGBA{R: 240, G: 200, B: 60, A: 255}
	hiddenTint = color.NRGBA{R: 90, G: 90, B: 90, A: 255}
)

var typeColors = map[attachment.Type]color.NRGBA{
	attachment.TypeBone:   {R: 230, G: 80, B: 70, A: 255},
	attachment.TypeFace:   {R: 90, G: 210, B: 120, A: 255},
	attachment.TypeRow:    {R: 200, G: 110, B: 230, A: 255},
	attachment.TypeVCloth: {R: 240, G: 150, B: 60, A: 255},
}

// Scene collects one frame of m into a drawable scene: skin meshes deformed
// by pose, the joint hierarchy, proxies, attachment locations and, when rec
// is not nil, the simulated rods it last observed.
func Scene(m *attachment.Manager, pose *skeleton.Pose, rec *Recorder) *raster.Scene {
	s := &raster.Scene{Background: background}
	if m == nil || pose == nil {
		return s
	}
	def := pose.Default()

	for i := 0; i < m.AttachmentCount(); i++ {
		if sk, ok := m.GetInterfaceByIndex(i).(*attachment.SkinAttachment); ok && !sk.IsAttachmentHidden() {
			s.Triangles = append(s.Triangles, skinTriangles(sk, pose, def)...)
		}
	}

	for id := 0; id < pose.JointCount(); id++ {
		parent := def.ParentID(id)
		if parent < 0 {
			continue
		}
		s.Segments = append(s.Segments, raster.Segment{
			A:     pose.JointAbsolute(parent).T,
			B:     pose.JointAbsolute(id).T,
			Width: 1,
			Color: boneColor,
		})
	}

	for i := 0; i < m.ProxyCount(); i++ {
		p := m.GetProxyByIndex(i)
		if p == nil || p.Hidden {
			continue
		}
		s.Points = append(s.Points, raster.Point{P: p.ModelRelative.T, Radius: 4, Color: proxyColor})
	}

	if rec != nil {
		for _, ns := range rec.Sockets() {
			st := ns.State
			s.Segments = append(s.Segments, raster.Segment{A: st.Pivot, B: st.Bob, Width: 2, Color: rodColor})
		}
		for _, nr := range rec.Rows() {
			for _, pt := range nr.State.Particles {
				s.Segments = append(s.Segments, raster.Segment{A: pt.Pivot, B: pt.Bob, Width: 2, Color: rodColor})
			}
		}
	}

	for i := 0; i < m.AttachmentCount(); i++ {
		a := m.GetInterfaceByIndex(i)
		c, ok := typeColors[a.Type()]
		if !ok {
			continue
		}
		if a.IsAttachmentHidden() {
			c = hiddenTint
		}
		s.Points = append(s.Points, raster.Point{P: a.AttModelRelative().T, Radius: 3, Color: c})
	}
	return s
}

// skinTriangles linearly blends each vertex with the skinning transforms of
// its remapped joints.
func skinTriangles(sk *attachment.SkinAttachment, pose *skeleton.Pose, def *skeleton.Default) []raster.Triangle {
	src, ok := sk.Object().(attachment.SkinSource)
	if !ok || !src.Ready() {
		return nil
	}
	remap := sk.RemapTable()
	verts := src.Vertices()
	pos := make([]mathutil.Vec3, len(verts))
	for i, v := range verts {
		var sum mathutil.Vec3
		var total float64
		for k := 0; k < 4; k++ {
			w := v.Weights[k]
			j := v.Joints[k]
			if w <= 0 || j < 0 || j >= len(remap) || remap[j] < 0 {
				continue
			}
			id := remap[j]
			skin := pose.JointAbsolute(id).Mul(def.DefaultAbsolute(id).Inverted())
			sum = sum.Add(skin.TransformPoint(v.Pos).Mul(w))
			total += w
		}
		if total > 0 {
			pos[i] = sum.Mul(1 / total)
		} else {
			pos[i] = v.Pos
		}
	}
	tris := src.Triangles()
	out := make([]raster.Triangle, 0, len(tris))
	for _, t := range tris {
		if t[0] >= len(pos) || t[1] >= len(pos) || t[2] >= len(pos) || t[0] < 0 || t[1] < 0 || t[2] < 0 {
			continue
		}
		out = append(out, raster.Triangle{V: [3]mathutil.Vec3{pos[t[0]], pos[t[1]], pos[t[2]]}, Color: skinColor})
	}
	return out
}

// Render draws the scene supersampled and downsamples it to size.
func Render(s *raster.Scene, size, supersample int) *image.NRGBA {
	img := raster.Render(s, size, supersample)
	return postprocess.Downsample(img, supersample)
}

// Encode writes img as "webp" or "tga".
func Encode(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(format) {
	case "", "webp":
		if err := nativewebp.Encode(w, img, nil); err != nil {
			return fmt.Errorf("diag: webp encode: %w", err)
		}
	case "tga":
		if err := tga.Encode(w, img); err != nil {
			return fmt.Errorf("diag: tga encode: %w", err)
		}
	default:
		return fmt.Errorf("diag: unknown snapshot format %q", format)
	}
	return nil
}

// Ext returns the file extension for a snapshot format.
func Ext(format string) string {
	if strings.EqualFold(format, "tga") {
		return ".tga"
	}
	return ".webp"
}
