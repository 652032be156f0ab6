package simulation

import "charattach/internal/mathutil"

// SocketState is a read-only snapshot of one socket update, model space.
type SocketState struct {
	Clamp      ClampType
	SubSteps   int
	Pivot      mathutil.Vec3
	Rest       mathutil.Vec3
	Bob        mathutil.Vec3
	SetupError string
}

// ParticleState is one row particle after an update, model space.
type ParticleState struct {
	JointID int
	Pivot   mathutil.Vec3
	Bob     mathutil.Vec3
}

// RowState is a read-only snapshot of one row update.
type RowState struct {
	SubSteps   int
	Particles  []ParticleState
	SetupError string
}

// Observer receives simulation state after every update. Implementations
// must not retain the slices they are handed.
type Observer interface {
	ObserveSocket(name string, st SocketState)
	ObserveRow(name string, st RowState)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) ObserveSocket(string, SocketState) {}
func (NopObserver) ObserveRow(string, RowState)       {}
