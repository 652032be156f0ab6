package simulation

// ClothParams is the authored parameter block of a vertex-cloth attachment.
// The solver that consumes it lives with the cloth payload.
type ClothParams struct {
	Hide                  bool
	Thickness             float64
	CollisionDamping      float64
	StretchStiffness      float64
	ShearStiffness        float64
	BendStiffness         float64
	NumIterations         int
	TimeStep              float64
	RigidDamping          float64
	TranslationBlend      float64
	RotationBlend         float64
	Friction              float64
	PullStiffness         float64
	Tolerance             float64
	MaxBlendWeight        float64
	MaxAnimDistance       float64
	StiffnessGradient     float64
	HalfStretchIterations int
	IsMainCharacter       bool

	SimMeshName    string
	RenderMeshName string
	SimBinding     string
	RenderBinding  string
}

// DefaultClothParams returns the parameters of a freshly created cloth.
func DefaultClothParams() ClothParams {
	return ClothParams{
		StretchStiffness: 1,
		NumIterations:    5,
		TimeStep:         1.0 / 60,
		TranslationBlend: 1,
		RotationBlend:    1,
		MaxBlendWeight:   1,
	}
}
