package bmd

// Model is one parsed BMD file: skinned sub-meshes plus the bone hierarchy
// they are bound to.
type Model struct {
	Name   string
	Meshes []Mesh
	Bones  []Bone
}

// Mesh holds the geometry of one sub-mesh. Every vertex is rigidly bound to
// the bone in Nodes at the same index.
type Mesh struct {
	Verts   [][3]float32
	Nodes   []int16
	Tris    [][3]int32 // quads are split as 0-1-2 and 0-2-3
	TexPath string
}

// Bone holds bind-pose data for one bone in the skeleton hierarchy.
// Dummy bones carry no name or transform.
type Bone struct {
	Name         string
	Parent       int
	IsDummy      bool
	BindPosition [3]float64
	BindRotation [3]float64 // Euler XYZ radians
}

// BoneNames returns the bone name table, dummy bones as empty strings.
func (m *Model) BoneNames() []string {
	names := make([]string, len(m.Bones))
	for i, b := range m.Bones {
		names[i] = b.Name
	}
	return names
}
