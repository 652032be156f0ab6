package attachment

import (
	"charattach/internal/mathutil"
	"charattach/internal/proxy"
	"charattach/internal/simulation"
)

// proxyLink is a lazily resolved reference to a manager proxy by name hash.
type proxyLink struct {
	crc    uint32
	handle ProxyHandle
}

// socket is the simulated part of bone and face attachments.
type socket struct {
	sim        *simulation.Simulation
	links      []proxyLink
	dirTransID int
}

func newSocket() socket {
	return socket{sim: simulation.New(simulation.DefaultParams()), dirTransID: -1}
}

// SimParams returns a copy of the socket parameters for editing.
func (s *socket) SimParams() simulation.Params { return s.sim.Params.Clone() }

// Simulation exposes the integrator for diagnostics.
func (s *socket) Simulation() *simulation.Simulation { return s.sim }

// setParams installs edited parameters. The bob keeps its position and
// velocity unless the clamp type changes.
func (s *socket) setParams(p simulation.Params) {
	p.Touch()
	if p.ClampType != s.sim.Params.ClampType {
		s.sim.Reset()
	}
	s.sim.Params = p
	s.links = s.links[:0]
	for _, n := range p.ProxyNames {
		if len(s.links) == simulation.MaxProxies {
			break
		}
		s.links = append(s.links, proxyLink{crc: proxy.NameCRC(n)})
	}
	s.dirTransID = -1
}

// redirected reports whether results are written back into the pose.
func (s *socket) redirected() bool { return s.sim.Params.Redirect }

func (s *socket) resolveDirTrans(m *Manager) {
	s.dirTransID = -1
	if s.sim.Params.DirTransJoint != "" && m != nil && m.skel != nil {
		s.dirTransID = m.skel.JointIDByName(s.sim.Params.DirTransJoint)
	}
}

func (s *socket) proxyRefs(m *Manager) []simulation.ProxyRef {
	if s.sim.Params.ProjectionType == simulation.ProjectionNone {
		return nil
	}
	return resolveProxies(m, s.links)
}

// resolveProxies looks up linked proxies for this frame. Links survive proxy
// insertion and removal: a stale handle is looked up again by name hash.
func resolveProxies(m *Manager, links []proxyLink) []simulation.ProxyRef {
	if m == nil || len(links) == 0 {
		return nil
	}
	refs := make([]simulation.ProxyRef, 0, len(links))
	for i := range links {
		l := &links[i]
		px := m.GetProxyByHandle(l.handle)
		if px == nil || px.NameCRC != l.crc {
			l.handle = m.proxyHandleByCRC(l.crc)
			px = m.GetProxyByHandle(l.handle)
		}
		if px == nil || px.JointID < 0 {
			continue
		}
		refs = append(refs, simulation.ProxyRef{Proxy: px, Prev: px.ModelRelativePrev, Cur: px.ModelRelative})
	}
	return refs
}

// step runs the socket for one frame with base in model space.
func (s *socket) step(m *Manager, name string, jointID int, base mathutil.QuatT, fc FrameContext, pose dirTransPose) mathutil.QuatT {
	if !s.sim.Params.IsActive() {
		return mathutil.Identity()
	}
	in := simulation.Input{
		Base:     base,
		Location: fc.Location,
		Dt:       fc.Dt,
		Disabled: fc.SimulationDisabled,
		JointID:  jointID,
		Proxies:  s.proxyRefs(m),
	}
	if s.dirTransID >= 0 && pose != nil {
		in.DirTrans = pose.JointAbsolute(s.dirTransID).T
		in.HasDirTrans = true
	}
	out := s.sim.Update(in)
	if m != nil {
		m.observer.ObserveSocket(name, s.sim.State())
		if out.SetupError != "" {
			m.setupError(name, out.SetupError)
		}
	}
	return out.Add
}

type dirTransPose interface {
	JointAbsolute(id int) mathutil.QuatT
}
