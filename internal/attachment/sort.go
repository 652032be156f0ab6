package attachment

import (
	"fmt"
	"slices"
)

// Bucket is one partition of the flat attachment array. Update and draw
// passes walk buckets in this order.
type Bucket int

const (
	BucketRedirected Bucket = iota
	BucketBoneEmpty
	BucketBoneStatic
	BucketBoneExecute
	BucketFaceEmpty
	BucketFaceStatic
	BucketFaceExecute
	BucketSkin
	BucketRow // rows and vertex cloth
	numBuckets
)

var bucketNames = [numBuckets]string{"br", "be", "bs", "bx", "fe", "fs", "fx", "sm", "vc"}

func (b Bucket) String() string {
	if b < 0 || b >= numBuckets {
		return "invalid"
	}
	return bucketNames[b]
}

// BlendWeightJoint is the animation override joint whose relative X
// translation scales redirected simulation results.
const BlendWeightJoint = "all_blendWeightPendulum"

// Classify derives the bucket of a from its variant, redirect setting and
// payload kind.
func Classify(a Attachment) Bucket {
	switch v := a.(type) {
	case *BoneAttachment:
		if v.redirected() {
			return BucketRedirected
		}
		return BucketBoneEmpty + payloadState(v.obj)
	case *FaceAttachment:
		return BucketFaceEmpty + payloadState(v.obj)
	case *SkinAttachment:
		return BucketSkin
	case *RowAttachment, *VClothAttachment:
		return BucketRow
	}
	return -1
}

// payloadState is 0 for empty, 1 for static and 2 for executing payloads.
func payloadState(obj Object) Bucket {
	switch {
	case obj == nil:
		return 0
	case obj.Kind().animated():
		return 2
	}
	return 1
}

// SortByType partitions the flat array into buckets and rebuilds the lookup
// tables derived from it: redirected bones ordered parents first with their
// descendant lists, the blend-weight joint and the joint chain of every
// unbuilt row.
func (m *Manager) SortByType() {
	n := len(m.order)
	var parts [numBuckets][]Attachment
	for _, a := range m.order {
		if b, ok := a.(*BoneAttachment); ok && b.redirected() {
			b.ensureProjected()
		}
		if k := Classify(a); k >= 0 && k < numBuckets {
			parts[k] = append(parts[k], a)
		}
	}
	slices.SortStableFunc(parts[BucketRedirected], func(x, y Attachment) int {
		return x.core().jointID - y.core().jointID
	})

	sorted := make([]Attachment, 0, n)
	for k := range parts {
		m.ranges[k][0] = len(sorted)
		sorted = append(sorted, parts[k]...)
		m.ranges[k][1] = len(sorted)
	}
	if len(sorted) != n {
		panic(fmt.Sprintf("attachment: fatal: %d of %d attachments classified", len(sorted), n))
	}
	copy(m.order, sorted)

	m.blendJoint = -1
	if m.skel != nil {
		m.blendJoint = m.skel.JointIDByName(BlendWeightJoint)
	}
	m.redirectPayloads = 0
	for _, a := range parts[BucketRedirected] {
		b := a.(*BoneAttachment)
		if b.obj != nil {
			m.redirectPayloads++
		}
		b.children = b.children[:0]
		if b.jointID >= 0 {
			b.children = append(b.children, m.skel.Descendants(b.jointID)...)
		}
	}
	for _, a := range parts[BucketRow] {
		if r, ok := a.(*RowAttachment); ok && !r.projected() {
			r.build(m.skel)
			if err := r.BuildError(); err != nil {
				Logger().Warn("attachment: row not built", "name", r.name, "err", err)
			}
		}
	}
	m.sortedGen = m.gen
	Logger().Debug("attachment: buckets rebuilt", "count", n, "redirected", len(parts[BucketRedirected]))
}

func (m *Manager) ensureSorted() {
	if m.sortedGen != m.gen {
		m.SortByType()
	}
}

// BucketRange returns the half-open index range of b in the flat array,
// sorting first if the partition is stale.
func (m *Manager) BucketRange(b Bucket) (start, end int) {
	if b < 0 || b >= numBuckets {
		return 0, 0
	}
	m.ensureSorted()
	return m.ranges[b][0], m.ranges[b][1]
}

// BucketOf reports the bucket the attachment at index i currently occupies.
func (m *Manager) BucketOf(i int) Bucket {
	m.ensureSorted()
	for k := Bucket(0); k < numBuckets; k++ {
		if i >= m.ranges[k][0] && i < m.ranges[k][1] {
			return k
		}
	}
	return -1
}

// bucket returns a snapshot of the attachments in b.
func (m *Manager) bucket(b Bucket) []Attachment {
	s, e := m.ranges[b][0], m.ranges[b][1]
	return slices.Clone(m.order[s:e])
}
