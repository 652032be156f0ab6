package attachlist

import (
	"charattach/internal/mathutil"
	"charattach/internal/simulation"
)

// Desc is one <Attachment> entry of an attachment list.
type Desc struct {
	Type string // CA_BONE, CA_FACE, CA_SKIN, CA_PROX, CA_PROW or CA_VCLOTH
	Name string

	// Absolute (model-space) default. RelRotation and RelPosition override
	// the joint-relative default component-wise when present.
	Rotation       mathutil.Quat
	Position       mathutil.Vec3
	RelRotation    mathutil.Quat
	RelPosition    mathutil.Vec3
	HasRelRotation bool
	HasRelPosition bool

	BoneName     string
	Binding      string
	SimBinding   string
	ProxyParams  mathutil.Vec4
	ProxyPurpose int
	Flags        uint32
	ProcFunction string

	Sim simulation.Params // ClampNone when no PA_/SA_/P_ block is present

	RowJointName string
	Row          simulation.RowParams
	HasRow       bool

	Cloth simulation.ClothParams
}

// AbsoluteDefault returns the authored model-space transform.
func (d *Desc) AbsoluteDefault() mathutil.QuatT {
	return mathutil.NewQuatT(d.Rotation, d.Position)
}
