package attachment

import (
	"charattach/internal/mathutil"
)

// DrawParams describes one render pass over the character.
type DrawParams struct {
	Distance     float64 // camera to character
	FOV          float64 // radians
	CullingRatio float64
	Recursion    int // 0 for the main view
	ShadowPass   bool

	// CharacterRadiusSqr bounds skin and cloth payloads, which cull with
	// the whole character.
	CharacterRadiusSqr float64
}

// RenderSink receives every attachment that survives culling.
type RenderSink interface {
	RenderAttachment(a Attachment, obj Object, world mathutil.QuatT)
}

// ZoomDistanceSq returns the squared zoom-adjusted distance for dp.
func (dp DrawParams) ZoomDistanceSq() float64 {
	ratio := dp.CullingRatio
	if ratio <= 0 {
		ratio = 1
	}
	zoom := mathutil.Rad2Deg(dp.FOV) / 60
	d := dp.Distance * zoom / ratio
	return d * d
}

func (dp DrawParams) hideMask() Flags {
	switch {
	case dp.Recursion > 1:
		return FlagHideRecursion
	case dp.ShadowPass:
		return FlagHideShadowPass
	}
	return FlagHideMainPass
}

// DrawAttachments hands every visible payload to sink and returns how many
// were emitted. The zoom distance used for update culling is stored only
// for non-recursive passes, so culling may lag the camera by a frame.
func (m *Manager) DrawAttachments(dp DrawParams, sink RenderSink) int {
	m.ensureSorted()
	zoomSq := dp.ZoomDistanceSq()
	if dp.Recursion == 0 {
		m.zoomSq = zoomSq
	}
	if sink == nil {
		return 0
	}
	mask := dp.hideMask()
	n := 0
	emit := func(a Attachment, b *base) {
		sink.RenderAttachment(a, b.obj, m.location.MulQuatT(b.modelRel.Mul(b.add)))
		n++
	}

	if m.redirectPayloads > 0 {
		for _, a := range m.bucket(BucketRedirected) {
			b := a.core()
			if b.obj == nil || b.flags&mask != 0 || b.jointID < 0 {
				continue
			}
			emit(a, b)
		}
	}
	for _, bk := range []Bucket{BucketBoneStatic, BucketBoneExecute} {
		for _, a := range m.bucket(bk) {
			b := a.core()
			if b.flags&mask != 0 || b.jointID < 0 || b.flags&FlagVisible == 0 {
				continue
			}
			emit(a, b)
		}
	}
	for _, bk := range []Bucket{BucketFaceStatic, BucketFaceExecute} {
		for _, a := range m.bucket(bk) {
			b := a.core()
			if b.flags&mask != 0 || !b.projected() || b.flags&FlagVisible == 0 {
				continue
			}
			emit(a, b)
		}
	}

	skinVisible := dp.CharacterRadiusSqr > 0 && zoomSq <= dp.CharacterRadiusSqr
	for _, bk := range []Bucket{BucketSkin, BucketRow} {
		for _, a := range m.bucket(bk) {
			if a.Type() == TypeRow {
				continue
			}
			b := a.core()
			if b.flags&mask != 0 || b.obj == nil || !skinVisible {
				continue
			}
			emit(a, b)
		}
	}
	return n
}
