package attachment

import (
	"charattach/internal/proxy"
	"charattach/internal/simulation"
	"charattach/internal/skeleton"
)

// RowAttachment drives a numbered chain of joints as a pendulum row.
type RowAttachment struct {
	base
	row   simulation.PendulaRow
	links []proxyLink
	err   error // last Build failure
}

func newRow(name, rowJoint string) *RowAttachment {
	a := &RowAttachment{base: newBase(name, TypeRow, rowJoint)}
	a.row.Params = simulation.DefaultRowParams()
	return a
}

// AddBinding accepts nothing: a row has no payload of its own.
func (a *RowAttachment) AddBinding(obj Object) error {
	if obj == nil {
		return nil
	}
	return ErrIncompatibleObject
}

// RowParams returns a copy of the row parameters for editing.
func (a *RowAttachment) RowParams() simulation.RowParams { return a.row.Params.Clone() }

// SetRowParams replaces the row parameters and relinks its proxies.
func (a *RowAttachment) SetRowParams(p simulation.RowParams) {
	a.row.Params = p
	a.links = a.links[:0]
	for _, n := range p.ProxyNames {
		if len(a.links) == simulation.MaxProxies {
			break
		}
		a.links = append(a.links, proxyLink{crc: proxy.NameCRC(n)})
	}
}

// Row exposes the solver for diagnostics.
func (a *RowAttachment) Row() *simulation.PendulaRow { return &a.row }

// BuildError reports why the joint chain could not be resolved, if it could not.
func (a *RowAttachment) BuildError() error { return a.err }

func (a *RowAttachment) build(def *skeleton.Default) {
	a.flags &^= FlagProjected
	a.err = nil
	if def == nil {
		return
	}
	if a.err = a.row.Build(def, a.jointName); a.err != nil {
		return
	}
	a.jointID = a.row.Particles[0].JointID
	a.flags |= FlagProjected
}

func (a *RowAttachment) UpdateAttModelRelative() {
	if a.mgr == nil || a.mgr.pose == nil || a.jointID < 0 {
		return
	}
	a.modelRel = a.mgr.pose.JointAbsolute(a.jointID)
}

func (a *RowAttachment) proxyRefs(m *Manager) []simulation.ProxyRef {
	if a.row.Params.ProjectionType == simulation.ProjectionNone {
		return nil
	}
	return resolveProxies(m, a.links)
}

func (a *RowAttachment) update(pose *skeleton.Pose, fc FrameContext) {
	if !a.projected() {
		return
	}
	st := a.row.Update(pose, simulation.RowInput{
		Location:   fc.Location,
		Dt:         fc.Dt,
		Turbulence: a.mgr.turbulence,
		Disabled:   fc.SimulationDisabled,
		Proxies:    a.proxyRefs(a.mgr),
	})
	a.modelRel = pose.JointAbsolute(a.jointID)
	a.mgr.observer.ObserveRow(a.name, st)
	if st.SetupError != "" {
		a.mgr.setupError(a.name, st.SetupError)
	}
}
