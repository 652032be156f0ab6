package skeleton

import (
	"fmt"

	"charattach/internal/bmd"
	"charattach/internal/mathutil"
)

// FromBMD builds a default skeleton from parsed BMD bones using the bind pose
// (action 0, frame 0). Dummy bones become unnamed identity joints under the root.
func FromBMD(bones []bmd.Bone) (*Default, error) {
	joints := make([]JointDef, len(bones))
	for i, bone := range bones {
		if bone.IsDummy {
			joints[i] = JointDef{Parent: -1, Relative: mathutil.Identity()}
			continue
		}
		q := mathutil.EulerToQuat(bone.BindRotation[0], bone.BindRotation[1], bone.BindRotation[2])
		pos := mathutil.Vec3{bone.BindPosition[0], bone.BindPosition[1], bone.BindPosition[2]}

		parent := bone.Parent
		if parent >= i {
			return nil, fmt.Errorf("skeleton: bone %q (%d) parent %d out of order", bone.Name, i, parent)
		}
		if parent >= 0 && bones[parent].IsDummy {
			parent = -1
		}
		joints[i] = JointDef{Name: bone.Name, Parent: parent, Relative: mathutil.NewQuatT(q, pos)}
	}
	return New(joints)
}
